package common

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

type OrderID = uint64
type OrderSide int
type OrderType int
type OrderStatus int

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
)

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusFilled
	OrderStatusExpired
	OrderStatusRejected
	OrderStatusCancelled
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusExpired:
		return "expired"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type Order struct {
	ID             OrderID     `json:"id"`
	Security       string      `json:"security"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	Quantity       int64       `json:"quantity"`
	LimitPrice     fixed.Point `json:"limit_price,omitempty"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	Status         OrderStatus `json:"status"`
	FilledQuantity int64       `json:"filled_quantity"`
	Comment        string      `json:"comment,omitempty"`
	// RejectReason is set when Status is OrderStatusRejected.
	RejectReason RejectReason `json:"reject_reason,omitempty"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
}

func (o Order) IsOpen() bool {
	return o.Status == OrderStatusPending
}

func (o Order) Remaining() int64 {
	return o.Quantity - o.FilledQuantity
}

func (o Order) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("order_id", o.ID),
		zap.String("security", o.Security),
		zap.Stringer("side", o.Side),
		zap.Stringer("type", o.Type),
		zap.Int64("quantity", o.Quantity),
		zap.String("limit_price", o.LimitPrice.String()),
		zap.Stringer("status", o.Status),
	}
}
