package sandbox

import (
	"fmt"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Account is the read-only view of the ledger the validator needs.
type Account interface {
	Cash() fixed.Point
	Closeable(security string) int64
}

// NormalizedOrder is an order that passed validation, with its quantity
// rounded to the board lot and fitted to cash or position.
type NormalizedOrder struct {
	Order          common.Order
	Quantity       int64
	LotSize        int64
	ReferencePrice fixed.Point
}

type Validator struct {
	catalog    *exchange.Catalog
	commission money.CommissionModel

	// number of times the quantity fitting routine ran
	adjustments int
}

func NewValidator(catalog *exchange.Catalog, commission money.CommissionModel) *Validator {
	return &Validator{
		catalog:    catalog,
		commission: commission,
	}
}

// Validate checks order against the bar it would trade on. It has no side
// effects on account; the first failing check determines the rejection.
func (v *Validator) Validate(order common.Order, bar common.Bar, limits exchange.Limits, account Account, info exchange.SymbolInfo) (NormalizedOrder, *common.Rejection) {
	reject := func(reason common.RejectReason, format string, args ...any) (NormalizedOrder, *common.Rejection) {
		return NormalizedOrder{}, &common.Rejection{
			Order:     order,
			Reason:    reason,
			Detail:    fmt.Sprintf(format, args...),
			TimeStamp: bar.TimeStamp,
		}
	}

	if order.Quantity <= 0 {
		return reject(common.RejectReasonInvalidOrder, "quantity %d is not positive", order.Quantity)
	}
	if order.Type == common.OrderTypeLimit && !order.LimitPrice.IsPos() {
		return reject(common.RejectReasonInvalidOrder, "limit order without a positive limit price")
	}
	if order.Security != bar.Security {
		return reject(common.RejectReasonInvalidOrder, "bar is for %s", bar.Security)
	}

	if bar.IsSuspended() {
		return reject(common.RejectReasonSuspended, "%s is suspended", order.Security)
	}
	if !bar.Close.IsPos() {
		return reject(common.RejectReasonInvalidOrder, "bar for %s has no price", order.Security)
	}

	if limits.Known() {
		if order.Side == common.OrderSideBuy && bar.Close.Gte(limits.Up) {
			return reject(common.RejectReasonLimitUp, "close %s at limit up %s", bar.Close, limits.Up)
		}
		if order.Side == common.OrderSideSell && bar.Close.Lte(limits.Down) {
			return reject(common.RejectReasonLimitDown, "close %s at limit down %s", bar.Close, limits.Down)
		}
	}

	lot := v.catalog.LotSize(info)
	ref := bar.Close
	if order.Type == common.OrderTypeLimit {
		ref = order.LimitPrice
	}

	var qty int64
	switch order.Side {
	case common.OrderSideBuy:
		qty = order.Quantity / lot * lot
		if qty == 0 {
			return reject(common.RejectReasonZeroAfterRounding, "%d below lot %d", order.Quantity, lot)
		}

		cash := account.Cash()
		if !v.affordable(ref, lot, cash) {
			return reject(common.RejectReasonInsufficientFunds, "one lot of %d at %s exceeds cash %s", lot, ref, cash)
		}
		qty = v.fitToCash(qty, lot, ref, cash)

	case common.OrderSideSell:
		closeable := account.Closeable(order.Security)
		if closeable <= 0 {
			return reject(common.RejectReasonInsufficientPosition, "nothing closeable in %s", order.Security)
		}
		if order.Quantity >= closeable {
			// selling out may include an odd lot
			qty = closeable
		} else {
			qty = order.Quantity / lot * lot
		}
		if qty == 0 {
			return reject(common.RejectReasonZeroAfterRounding, "%d below lot %d", order.Quantity, lot)
		}

	default:
		return reject(common.RejectReasonInvalidOrder, "unknown side %v", order.Side)
	}

	return NormalizedOrder{
		Order:          order,
		Quantity:       qty,
		LotSize:        lot,
		ReferencePrice: ref,
	}, nil
}

func (v *Validator) affordable(price fixed.Point, qty int64, cash fixed.Point) bool {
	value := price.MulInt64(qty)
	return value.Add(v.commission.Compute(value, common.OrderSideBuy)).Lte(cash)
}

// fitToCash caps qty at the whole lots cash can pay for. The caller
// guarantees that one lot fits.
func (v *Validator) fitToCash(qty, lot int64, price fixed.Point, cash fixed.Point) int64 {
	v.adjustments++
	return min(qty, v.commission.MaxBuyQuantity(cash, price, lot))
}
