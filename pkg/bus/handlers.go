package bus

import (
	"context"

	"github.com/peter-kozarec/replay/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type BarEventHandler EventHandler[common.Bar]
type OrderEventHandler EventHandler[common.Order]
type OrderRejectionEventHandler EventHandler[common.Rejection]
type OrderFillEventHandler EventHandler[common.Fill]
type OrderExpiryEventHandler EventHandler[common.Order]
type OrderCancelEventHandler EventHandler[common.Order]
type CorporateActionEventHandler EventHandler[common.CorporateAction]
type SnapshotEventHandler EventHandler[common.Snapshot]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
