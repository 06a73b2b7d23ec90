package money

import (
	"math"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// CommissionModel charges a ratio fee with a floor, stamp duty on sells and a
// transfer fee on both sides. Rates are fractions of trade value.
type CommissionModel struct {
	Ratio       float64
	Minimum     float64
	StampDuty   float64
	TransferFee float64
}

func DefaultCommissionModel() CommissionModel {
	return CommissionModel{
		Ratio:       0.0003,
		Minimum:     5,
		StampDuty:   0.001,
		TransferFee: 0.00001,
	}
}

// Compute returns the total fee for a trade of the given value. Every float
// step is materialised with an explicit conversion so the compiler cannot fuse
// multiply and add, keeping results identical across architectures.
func (m CommissionModel) Compute(tradeValue fixed.Point, side common.OrderSide) fixed.Point {
	value, _ := tradeValue.Abs().Float64()

	fee := float64(value * m.Ratio)
	if fee < m.Minimum {
		fee = m.Minimum
	}
	if side == common.OrderSideSell {
		fee = float64(fee + float64(value*m.StampDuty))
	}
	fee = float64(fee + float64(value*m.TransferFee))

	if fee <= 0 {
		return fixed.Zero.Rescale(centScale)
	}
	return RoundCurrency(fee)
}

// MaxBuyQuantity is the largest multiple of lot whose value at price plus the
// buy side fee fits cash. The fee is piecewise linear in the trade value, so
// the bound is solved directly instead of searched.
func (m CommissionModel) MaxBuyQuantity(cash, price fixed.Point, lot int64) int64 {
	if lot <= 0 || !price.IsPos() || !cash.IsPos() {
		return 0
	}
	c, _ := cash.Float64()
	p, _ := price.Float64()

	// value at which the fee floor stops binding
	value := float64(float64(c-m.Minimum) / float64(1+m.TransferFee))
	if float64(value*m.Ratio) > m.Minimum {
		value = float64(c / float64(1+m.Ratio+m.TransferFee))
	}
	if value <= 0 {
		return 0
	}

	qty := int64(math.Floor(value/p/float64(lot))) * lot
	// cent rounding of the fee can move the bound by one lot either way
	switch {
	case qty > 0 && m.buyCost(price, qty).Gt(cash):
		qty -= lot
	case m.buyCost(price, qty+lot).Lte(cash):
		qty += lot
	}
	return max(qty, 0)
}

func (m CommissionModel) buyCost(price fixed.Point, qty int64) fixed.Point {
	value := price.MulInt64(qty)
	return value.Add(m.Compute(value, common.OrderSideBuy))
}
