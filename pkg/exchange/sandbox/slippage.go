package sandbox

import (
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

var tenThousand = fixed.FromInt(10_000, 0)

// SlippageModel moves the reference price against the trader.
type SlippageModel interface {
	Price(ref fixed.Point, side common.OrderSide, qty int64, bar common.Bar) fixed.Point
}

func against(ref, delta fixed.Point, side common.OrderSide) fixed.Point {
	if side == common.OrderSideBuy {
		return ref.Add(delta)
	}
	return ref.Sub(delta)
}

type NoSlippage struct{}

func (NoSlippage) Price(ref fixed.Point, _ common.OrderSide, _ int64, _ common.Bar) fixed.Point {
	return ref
}

// FixedBasisPoints shifts the price by Bps / 10000 of itself.
type FixedBasisPoints struct {
	Bps fixed.Point
}

func (s FixedBasisPoints) Price(ref fixed.Point, side common.OrderSide, _ int64, _ common.Bar) fixed.Point {
	return against(ref, ref.Mul(s.Bps).Div(tenThousand), side)
}

// PriceRelated charges Ratio of the price per round trip, half on each side.
type PriceRelated struct {
	Ratio fixed.Point
}

func (s PriceRelated) Price(ref fixed.Point, side common.OrderSide, _ int64, _ common.Bar) fixed.Point {
	return against(ref, ref.Mul(s.Ratio).Div(fixed.Two), side)
}

// FixedSpread crosses half of an absolute spread.
type FixedSpread struct {
	Spread fixed.Point
}

func (s FixedSpread) Price(ref fixed.Point, side common.OrderSide, _ int64, _ common.Bar) fixed.Point {
	return against(ref, s.Spread.Div(fixed.Two), side)
}

// VolumeShare impacts the price proportionally to the traded share of the
// bar volume, ref * Impact * qty / volume.
type VolumeShare struct {
	Impact fixed.Point
}

func (s VolumeShare) Price(ref fixed.Point, side common.OrderSide, qty int64, bar common.Bar) fixed.Point {
	if bar.Volume <= 0 {
		return ref
	}
	share := fixed.FromInt64(qty, 0).DivInt64(bar.Volume)
	return against(ref, ref.Mul(s.Impact).Mul(share), side)
}
