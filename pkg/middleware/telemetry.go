package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/bus"
	"github.com/peter-kozarec/replay/pkg/common"
)

// Telemetry counts events per kind.
type Telemetry struct {
	logger *zap.Logger

	barEventCounter       int64
	orderEventCounter     int64
	rejectionEventCounter int64
	fillEventCounter      int64
	expiryEventCounter    int64
	cancelEventCounter    int64
	snapshotEventCounter  int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

func (t *Telemetry) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return func(ctx context.Context, bar common.Bar) {
		t.barEventCounter++
		handler(ctx, bar)
	}
}

func (t *Telemetry) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		t.orderEventCounter++
		handler(ctx, order)
	}
}

func (t *Telemetry) WithOrderRejection(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejection common.Rejection) {
		t.rejectionEventCounter++
		handler(ctx, rejection)
	}
}

func (t *Telemetry) WithOrderFill(handler bus.OrderFillEventHandler) bus.OrderFillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		t.fillEventCounter++
		handler(ctx, fill)
	}
}

func (t *Telemetry) WithOrderExpiry(handler bus.OrderExpiryEventHandler) bus.OrderExpiryEventHandler {
	return func(ctx context.Context, order common.Order) {
		t.expiryEventCounter++
		handler(ctx, order)
	}
}

func (t *Telemetry) WithOrderCancel(handler bus.OrderCancelEventHandler) bus.OrderCancelEventHandler {
	return func(ctx context.Context, order common.Order) {
		t.cancelEventCounter++
		handler(ctx, order)
	}
}

func (t *Telemetry) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		t.snapshotEventCounter++
		handler(ctx, snapshot)
	}
}

func (t *Telemetry) PrintStatistics() {
	t.logger.Info("event statistics",
		zap.Int64("bar_events", t.barEventCounter),
		zap.Int64("order_events", t.orderEventCounter),
		zap.Int64("rejection_events", t.rejectionEventCounter),
		zap.Int64("fill_events", t.fillEventCounter),
		zap.Int64("expiry_events", t.expiryEventCounter),
		zap.Int64("cancel_events", t.cancelEventCounter),
		zap.Int64("snapshot_events", t.snapshotEventCounter))
}
