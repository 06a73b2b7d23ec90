package bus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrEventCapacity = errors.New("event capacity reached")

type event struct {
	id   EventId
	data interface{}
}

// Router is a synchronous FIFO event queue. Events posted while draining are
// dispatched in the same Drain call, after the events already queued.
type Router struct {
	logger   *zap.Logger
	capacity int
	events   []event

	OnBar             BarEventHandler
	OnOrder           OrderEventHandler
	OnOrderRejection  OrderRejectionEventHandler
	OnOrderFill       OrderFillEventHandler
	OnOrderExpiry     OrderExpiryEventHandler
	OnOrderCancel     OrderCancelEventHandler
	OnCorporateAction CorporateActionEventHandler
	OnSnapshot        SnapshotEventHandler

	postCount     uint64
	postFails     uint64
	dispatchCount uint64
	dispatchFails uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	return &Router{
		logger:   logger,
		capacity: eventCapacity,
		events:   make([]event, 0, eventCapacity),
	}
}

func (r *Router) Post(id EventId, data interface{}) error {
	if len(r.events) >= r.capacity {
		r.postFails++
		return fmt.Errorf("%w: %d pending", ErrEventCapacity, len(r.events))
	}
	r.events = append(r.events, event{id, data})
	r.postCount++
	return nil
}

func (r *Router) Pending() int {
	return len(r.events)
}

// Drain dispatches queued events until the queue is empty or ctx is done.
func (r *Router) Drain(ctx context.Context) error {
	for len(r.events) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := r.events[0]
		r.events[0] = event{}
		r.events = r.events[1:]

		r.dispatchCount++
		if err := r.dispatch(ctx, ev); err != nil {
			r.dispatchFails++
			r.logger.Warn("dispatch failed", zap.Error(err), zap.Stringer("event", ev.id))
		}
	}
	r.events = r.events[:0]
	return nil
}

func (r *Router) GetStatistics() Statistics {
	return Statistics{
		PostCount:     r.postCount,
		PostFails:     r.postFails,
		DispatchCount: r.dispatchCount,
		DispatchFails: r.dispatchFails,
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case BarEvent:
		return call(ctx, ev, r.OnBar)
	case OrderEvent:
		return call(ctx, ev, r.OnOrder)
	case OrderRejectionEvent:
		return call(ctx, ev, r.OnOrderRejection)
	case OrderFillEvent:
		return call(ctx, ev, r.OnOrderFill)
	case OrderExpiryEvent:
		return call(ctx, ev, r.OnOrderExpiry)
	case OrderCancelEvent:
		return call(ctx, ev, r.OnOrderCancel)
	case CorporateActionEvent:
		return call(ctx, ev, r.OnCorporateAction)
	case SnapshotEvent:
		return call(ctx, ev, r.OnSnapshot)
	}
	return fmt.Errorf("unknown event id %d", ev.id)
}

func call[T any, H ~func(context.Context, T)](ctx context.Context, ev event, handler H) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("invalid type assertion for %s event", ev.id)
	}
	if handler != nil {
		handler(ctx, data)
	}
	return nil
}
