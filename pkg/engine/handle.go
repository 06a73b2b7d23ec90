package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// Handle is what strategy code sees of the engine. Query methods answer
// while the run is live and return zero values once Run has returned;
// configuration and trading methods are checked against the phase gate and
// fail with *PhaseViolationError.
type Handle struct {
	e        *Engine
	detached bool
}

func (h *Handle) detach() {
	h.detached = true
}

func (h *Handle) Phase() Phase {
	return h.e.clock.Phase
}

func (h *Handle) Clock() Clock {
	return h.e.clock
}

func (h *Handle) Now() time.Time {
	return h.e.clock.Now
}

func (h *Handle) RunID() utility.ExecutionID {
	return h.e.runID
}

func (h *Handle) Logger() *zap.Logger {
	return h.e.logger
}

// Universe lists the securities of the run. It is empty until the first
// trading day.
func (h *Handle) Universe() []string {
	if h.detached {
		return nil
	}
	out := make([]string, len(h.e.universe))
	copy(out, h.e.universe)
	return out
}

func (h *Handle) Cash() fixed.Point {
	if h.detached {
		return fixed.Zero
	}
	return h.e.ledger.Cash()
}

func (h *Handle) Position(security string) (common.Position, bool) {
	if h.detached {
		return common.Position{}, false
	}
	return h.e.ledger.Position(security)
}

func (h *Handle) Portfolio() common.Snapshot {
	if h.detached {
		return common.Snapshot{}
	}
	return h.e.ledger.Snapshot(h.e.clock.Now)
}

// CurrentBar is the latest bar of security seen today.
func (h *Handle) CurrentBar(security string) (common.Bar, bool) {
	if h.detached {
		return common.Bar{}, false
	}
	b, ok := h.e.current[security]
	return b, ok
}

// History returns up to count bars visible at the current time, adjusted
// with the configured mode.
func (h *Handle) History(security string, count int) []common.Bar {
	return h.HistoryMode(security, count, h.e.cfg.AdjustMode)
}

func (h *Handle) HistoryMode(security string, count int, mode adjustment.Mode) []common.Bar {
	if h.detached {
		return nil
	}
	w := h.e.cache.Adjusted(security, h.e.cfg.Frequency, h.e.visibleUntil, count, mode, h.e.clock.Date)
	out := make([]common.Bar, len(w))
	copy(out, w)
	return out
}

func (h *Handle) Limits(security string) exchange.Limits {
	if h.detached {
		return exchange.Limits{}
	}
	return h.e.broker.Limits(security)
}

func (h *Handle) GetOrder(id common.OrderID) (common.Order, bool) {
	if h.detached {
		return common.Order{}, false
	}
	return h.e.broker.Order(id)
}

func (h *Handle) OpenOrders() []common.Order {
	if h.detached {
		return nil
	}
	return h.e.broker.OpenOrders()
}

// RunDaily registers fn to run every trading day at at.
func (h *Handle) RunDaily(at At, name string, fn Callback) error {
	if err := h.e.gate.check(OpRunDaily, h.e.clock.Phase); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: %q has no callback", ErrInvalidSchedule, name)
	}
	h.e.sched.daily = append(h.e.sched.daily, &dailyJob{name: name, at: at, fn: fn})
	return nil
}

// RunEvery registers fn to run after every n-th session bar.
func (h *Handle) RunEvery(n int, name string, fn Callback) error {
	if err := h.e.gate.check(OpRunEvery, h.e.clock.Phase); err != nil {
		return err
	}
	if n < 1 || fn == nil {
		return fmt.Errorf("%w: %q every %d bars", ErrInvalidSchedule, name, n)
	}
	h.e.sched.interval = append(h.e.sched.interval, &intervalJob{name: name, every: n, fn: fn})
	return nil
}

// Subscribe adds securities to the universe of the run.
func (h *Handle) Subscribe(securities ...string) error {
	if err := h.e.gate.check(OpSubscribe, h.e.clock.Phase); err != nil {
		return err
	}
	h.e.subscribed = append(h.e.subscribed, securities...)
	return nil
}

type OrderOption func(*common.Order)

// Limit turns the order into a limit order at price.
func Limit(price fixed.Point) OrderOption {
	return func(o *common.Order) {
		o.Type = common.OrderTypeLimit
		o.LimitPrice = price
	}
}

func Comment(comment string) OrderOption {
	return func(o *common.Order) {
		o.Comment = comment
	}
}

// Order buys quantity shares, or sells when quantity is negative. The
// returned ticket is already validated when placed during the session; a
// rejection is reported through its status, not as an error.
func (h *Handle) Order(security string, quantity int64, options ...OrderOption) (common.Order, error) {
	if err := h.e.gate.check(OpOrder, h.e.clock.Phase); err != nil {
		return common.Order{}, err
	}
	return h.submit(security, quantity, options), nil
}

// OrderTarget trades the difference between the held and the target
// quantity. It returns a zero Order when the position is already on target.
func (h *Handle) OrderTarget(security string, target int64, options ...OrderOption) (common.Order, error) {
	if err := h.e.gate.check(OpOrderTarget, h.e.clock.Phase); err != nil {
		return common.Order{}, err
	}
	target = max(target, 0)
	held := int64(0)
	if p, ok := h.e.ledger.Position(security); ok {
		held = p.Quantity
	}
	if target == held {
		return common.Order{}, nil
	}
	return h.submit(security, target-held, options), nil
}

// OrderValue trades value worth of shares at the limit price or the latest
// close. A negative value sells.
func (h *Handle) OrderValue(security string, value fixed.Point, options ...OrderOption) (common.Order, error) {
	if err := h.e.gate.check(OpOrderValue, h.e.clock.Phase); err != nil {
		return common.Order{}, err
	}

	var shape common.Order
	for _, option := range options {
		option(&shape)
	}
	price := shape.LimitPrice
	if shape.Type != common.OrderTypeLimit {
		price = h.e.lastClose[security]
	}

	quantity := int64(0)
	if price.IsPos() {
		quantity = value.Div(price).Trunc(0).Int64()
	}
	return h.submit(security, quantity, options), nil
}

func (h *Handle) Cancel(id common.OrderID) (common.Order, error) {
	if err := h.e.gate.check(OpCancel, h.e.clock.Phase); err != nil {
		return common.Order{}, err
	}
	return h.e.broker.Cancel(id, h.e.clock.Now)
}

func (h *Handle) submit(security string, quantity int64, options []OrderOption) common.Order {
	order := common.Order{
		Security: security,
		Side:     common.OrderSideBuy,
		Type:     common.OrderTypeMarket,
		Quantity: quantity,
	}
	if quantity < 0 {
		order.Side = common.OrderSideSell
		order.Quantity = -quantity
	}
	for _, option := range options {
		option(&order)
	}

	placed := h.e.broker.Submit(order, h.e.clock.Now)
	if h.e.clock.Phase != PhaseInSession || !placed.IsOpen() {
		return placed
	}

	// in session the order meets the current bar right away
	if bar, ok := h.e.current[security]; ok && bar.TimeStamp.Equal(h.e.clock.Now) {
		h.e.broker.Process(bar)
		if o, ok := h.e.broker.Order(placed.ID); ok {
			placed = o
		}
	}
	return placed
}
