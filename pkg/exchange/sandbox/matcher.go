package sandbox

import (
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Matcher turns validated orders into fills against a bar.
type Matcher struct {
	commission  money.CommissionModel
	slippage    SlippageModel
	volumeRatio fixed.Point
}

func NewMatcher(commission money.CommissionModel, slippage SlippageModel, volumeRatio fixed.Point) *Matcher {
	if slippage == nil {
		slippage = NoSlippage{}
	}
	return &Matcher{
		commission:  commission,
		slippage:    slippage,
		volumeRatio: volumeRatio,
	}
}

// Fill executes up to remaining shares of order on bar. It reports false when
// nothing can trade on this bar and the order should stay pending.
func (m *Matcher) Fill(order NormalizedOrder, remaining int64, bar common.Bar) (common.Fill, bool) {
	if remaining <= 0 || bar.IsSuspended() {
		return common.Fill{}, false
	}

	ref, ok := m.referencePrice(order.Order, bar)
	if !ok {
		return common.Fill{}, false
	}

	qty := m.capToVolume(remaining, order.LotSize, bar)
	if qty == 0 {
		return common.Fill{}, false
	}

	side := order.Order.Side
	price := money.RoundPrice(m.slippage.Price(ref, side, qty, bar))
	price = fixed.Max(bar.Low, fixed.Min(bar.High, price))
	if order.Order.Type == common.OrderTypeLimit {
		if side == common.OrderSideBuy {
			price = fixed.Min(price, order.Order.LimitPrice)
		} else {
			price = fixed.Max(price, order.Order.LimitPrice)
		}
	}

	value := price.MulInt64(qty)
	return common.Fill{
		OrderID:    order.Order.ID,
		Security:   order.Order.Security,
		Side:       side,
		Quantity:   qty,
		Price:      price,
		Commission: m.commission.Compute(value, side),
		Slippage:   price.Sub(ref),
		TimeStamp:  bar.TimeStamp,
	}, true
}

// Resize shrinks fill to qty shares at the same price and recomputes the
// commission on the smaller value.
func (m *Matcher) Resize(fill common.Fill, qty int64) common.Fill {
	fill.Quantity = qty
	fill.Commission = m.commission.Compute(fill.Price.MulInt64(qty), fill.Side)
	return fill
}

// referencePrice is the close for market orders. Limit orders trade only when
// the bar range reaches the limit, at the close when it is on the right side
// of the limit and at the limit otherwise.
func (m *Matcher) referencePrice(order common.Order, bar common.Bar) (fixed.Point, bool) {
	if order.Type != common.OrderTypeLimit {
		return bar.Close, true
	}
	limit := order.LimitPrice
	if order.Side == common.OrderSideBuy {
		if bar.Low.Gt(limit) {
			return fixed.Zero, false
		}
		return fixed.Min(bar.Close, limit), true
	}
	if bar.High.Lt(limit) {
		return fixed.Zero, false
	}
	return fixed.Max(bar.Close, limit), true
}

func (m *Matcher) capToVolume(remaining, lot int64, bar common.Bar) int64 {
	if !m.volumeRatio.IsPos() {
		return remaining
	}
	limit := m.volumeRatio.MulInt64(bar.Volume).Int64()
	if remaining <= limit {
		return remaining
	}
	return limit / lot * lot
}
