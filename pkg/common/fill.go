package common

import (
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

type FillID = uint64

type Fill struct {
	ID         FillID      `json:"id"`
	OrderID    OrderID     `json:"order_id"`
	Security   string      `json:"security"`
	Side       OrderSide   `json:"side"`
	Quantity   int64       `json:"quantity"`
	Price      fixed.Point `json:"price"`
	Commission fixed.Point `json:"commission"`
	// Slippage is the per-share price difference against the reference price.
	Slippage  fixed.Point `json:"slippage"`
	TimeStamp time.Time   `json:"ts"`

	ExecutionID utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
}

func (f Fill) Value() fixed.Point {
	return f.Price.MulInt64(f.Quantity)
}

func (f Fill) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("fill_id", f.ID),
		zap.Uint64("order_id", f.OrderID),
		zap.String("security", f.Security),
		zap.Stringer("side", f.Side),
		zap.Int64("quantity", f.Quantity),
		zap.String("price", f.Price.String()),
		zap.String("commission", f.Commission.String()),
	}
}
