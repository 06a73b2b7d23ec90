package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

var (
	ErrNegativeCash     = errors.New("cash would become negative")
	ErrNegativeQuantity = errors.New("quantity would become negative")
	ErrPosNotFound      = errors.New("position is not found")
)

// Realization is the profit booked by a single sell fill.
type Realization struct {
	Security  string      `json:"security"`
	Quantity  int64       `json:"quantity"`
	PnL       fixed.Point `json:"pnl"`
	TimeStamp time.Time   `json:"ts"`
}

// Ledger holds cash and long positions. It is mutated only by fills and
// corporate actions and never lets cash or a quantity go below zero; a
// rejected mutation leaves the ledger untouched.
type Ledger struct {
	cash         fixed.Point
	positions    map[string]*common.Position
	realizations []Realization
}

func NewLedger(cash fixed.Point) *Ledger {
	return &Ledger{
		cash:      cash,
		positions: make(map[string]*common.Position),
	}
}

func (l *Ledger) Cash() fixed.Point {
	return l.cash
}

func (l *Ledger) Position(security string) (common.Position, bool) {
	p, ok := l.positions[security]
	if !ok {
		return common.Position{}, false
	}
	return *p, true
}

// Closeable is the quantity of security that can be sold today.
func (l *Ledger) Closeable(security string) int64 {
	p, ok := l.positions[security]
	if !ok {
		return 0
	}
	return p.Closeable()
}

// Positions returns copies of all positions ordered by security.
func (l *Ledger) Positions() []common.Position {
	keys := make([]string, 0, len(l.positions))
	for k := range l.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]common.Position, 0, len(keys))
	for _, k := range keys {
		out = append(out, *l.positions[k])
	}
	return out
}

func (l *Ledger) Count() int {
	return len(l.positions)
}

func (l *Ledger) Realizations() []Realization {
	out := make([]Realization, len(l.realizations))
	copy(out, l.realizations)
	return out
}

// ApplyFill books a trade. Buy commissions are capitalised into the cost
// basis; sell commissions only reduce cash and realized profit.
func (l *Ledger) ApplyFill(f common.Fill) error {
	if f.Quantity <= 0 {
		return fmt.Errorf("%w: fill %d has quantity %d", ErrNegativeQuantity, f.ID, f.Quantity)
	}
	value := f.Value()

	switch f.Side {
	case common.OrderSideBuy:
		return l.applyBuy(f, value)
	case common.OrderSideSell:
		return l.applySell(f, value)
	}
	return fmt.Errorf("fill %d has unknown side %v", f.ID, f.Side)
}

func (l *Ledger) applyBuy(f common.Fill, value fixed.Point) error {
	cost := value.Add(f.Commission)
	cash := l.cash.Sub(cost)
	if cash.IsNeg() {
		return fmt.Errorf("%w: buying %d %s needs %s, have %s", ErrNegativeCash, f.Quantity, f.Security, cost, l.cash)
	}

	p, ok := l.positions[f.Security]
	if !ok {
		p = &common.Position{Security: f.Security, CostBasis: fixed.Zero, RealizedPnL: fixed.Zero}
		l.positions[f.Security] = p
	}

	newQty := p.Quantity + f.Quantity
	p.CostBasis = p.CostBasis.MulInt64(p.Quantity).Add(cost).DivInt64(newQty)
	p.Quantity = newQty
	p.TodayBought += f.Quantity
	p.LastPrice = f.Price
	l.cash = cash
	return nil
}

func (l *Ledger) applySell(f common.Fill, value fixed.Point) error {
	p, ok := l.positions[f.Security]
	if !ok {
		return fmt.Errorf("%w: selling %d %s without a position", ErrNegativeQuantity, f.Quantity, f.Security)
	}
	if f.Quantity > p.Quantity {
		return fmt.Errorf("%w: selling %d %s, holding %d", ErrNegativeQuantity, f.Quantity, f.Security, p.Quantity)
	}
	cash := l.cash.Add(value).Sub(f.Commission)
	if cash.IsNeg() {
		return fmt.Errorf("%w: commission %s exceeds proceeds", ErrNegativeCash, f.Commission)
	}

	pnl := f.Price.Sub(p.CostBasis).MulInt64(f.Quantity).Sub(f.Commission)
	l.realizations = append(l.realizations, Realization{
		Security:  f.Security,
		Quantity:  f.Quantity,
		PnL:       pnl,
		TimeStamp: f.TimeStamp,
	})

	l.cash = cash
	p.Quantity -= f.Quantity
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.LastPrice = f.Price
	if p.TodayBought > p.Quantity {
		p.TodayBought = p.Quantity
	}
	if p.Quantity == 0 {
		delete(l.positions, f.Security)
	}
	return nil
}

// ApplyCorporateAction rebases the cost basis and last price of security by
// the factor, cost = A*cost + B.
func (l *Ledger) ApplyCorporateAction(security string, f common.AdjustmentFactor) error {
	p, ok := l.positions[security]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPosNotFound, security)
	}
	p.CostBasis = f.Apply(p.CostBasis)
	if !p.LastPrice.IsZero() {
		p.LastPrice = f.Apply(p.LastPrice)
	}
	return nil
}

// ApplySplit grants bonus shares, quantity = floor(qty * (1 + ratio)).
func (l *Ledger) ApplySplit(security string, ratio fixed.Point) error {
	p, ok := l.positions[security]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPosNotFound, security)
	}
	mult := fixed.One.Add(ratio)
	if mult.IsNeg() {
		return fmt.Errorf("%w: split ratio %s for %s", ErrNegativeQuantity, ratio, security)
	}
	p.Quantity = mult.MulInt64(p.Quantity).Floor(0).Int64()
	p.TodayBought = mult.MulInt64(p.TodayBought).Floor(0).Int64()
	if p.Quantity == 0 {
		delete(l.positions, security)
	}
	return nil
}

// CreditDividend pays perShare for every held share and returns the amount.
func (l *Ledger) CreditDividend(security string, perShare fixed.Point) (fixed.Point, error) {
	p, ok := l.positions[security]
	if !ok {
		return fixed.Zero, fmt.Errorf("%w: %s", ErrPosNotFound, security)
	}
	amount := perShare.MulInt64(p.Quantity)
	cash := l.cash.Add(amount)
	if cash.IsNeg() {
		return fixed.Zero, fmt.Errorf("%w: dividend %s on %s", ErrNegativeCash, amount, security)
	}
	l.cash = cash
	return amount, nil
}

// StartDay settles yesterday's purchases so they can be sold.
func (l *Ledger) StartDay() {
	for _, p := range l.positions {
		p.TodayBought = 0
	}
}

// Mark updates the last known price used for valuation.
func (l *Ledger) Mark(security string, price fixed.Point) {
	if p, ok := l.positions[security]; ok && price.IsPos() {
		p.LastPrice = price
	}
}

func (l *Ledger) MarketValue() fixed.Point {
	total := fixed.Zero
	for _, p := range l.positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

// Snapshot projects the ledger at ts. TotalValue is derived and never
// written back.
func (l *Ledger) Snapshot(ts time.Time) common.Snapshot {
	positions := l.Positions()
	total := l.cash
	for _, p := range positions {
		total = total.Add(p.MarketValue())
	}
	return common.Snapshot{
		TimeStamp:  ts,
		Cash:       l.cash,
		Positions:  positions,
		TotalValue: total,
	}
}
