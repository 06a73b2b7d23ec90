package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/bus"
	"github.com/peter-kozarec/replay/pkg/common"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorBars
	MonitorOrders
	MonitorOrdersRejected
	MonitorOrdersFilled
	MonitorOrdersExpired
	MonitorOrdersCancelled
	MonitorCorporateActions
	MonitorSnapshots
)

var monitorFlagNames = map[string]MonitorFlags{
	"none":              MonitorNone,
	"all":               MonitorAll,
	"bars":              MonitorBars,
	"orders":            MonitorOrders,
	"rejections":        MonitorOrdersRejected,
	"fills":             MonitorOrdersFilled,
	"expiries":          MonitorOrdersExpired,
	"cancels":           MonitorOrdersCancelled,
	"corporate_actions": MonitorCorporateActions,
	"snapshots":         MonitorSnapshots,
}

// ParseMonitorFlags ORs the named flags together, ignoring unknown names.
func ParseMonitorFlags(names []string) MonitorFlags {
	var flags MonitorFlags
	for _, n := range names {
		flags |= monitorFlagNames[n]
	}
	return flags
}

// Monitor logs bus events selected by its flags before passing them on.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithBar(handler bus.BarEventHandler) bus.BarEventHandler {
	return func(ctx context.Context, bar common.Bar) {
		if m.enabled(MonitorBars) {
			m.logger.Info("bar",
				zap.String("security", bar.Security),
				zap.Time("ts", bar.TimeStamp),
				zap.String("close", bar.Close.String()),
				zap.Int64("volume", bar.Volume))
		}
		handler(ctx, bar)
	}
}

func (m *Monitor) WithOrder(handler bus.OrderEventHandler) bus.OrderEventHandler {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrders) {
			m.logger.Info("order", order.Fields()...)
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithOrderRejection(handler bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler {
	return func(ctx context.Context, rejection common.Rejection) {
		if m.enabled(MonitorOrdersRejected) {
			m.logger.Info("order rejected", rejection.Fields()...)
		}
		handler(ctx, rejection)
	}
}

func (m *Monitor) WithOrderFill(handler bus.OrderFillEventHandler) bus.OrderFillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		if m.enabled(MonitorOrdersFilled) {
			m.logger.Info("order filled", fill.Fields()...)
		}
		handler(ctx, fill)
	}
}

func (m *Monitor) WithOrderExpiry(handler bus.OrderExpiryEventHandler) bus.OrderExpiryEventHandler {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrdersExpired) {
			m.logger.Info("order expired", order.Fields()...)
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithOrderCancel(handler bus.OrderCancelEventHandler) bus.OrderCancelEventHandler {
	return func(ctx context.Context, order common.Order) {
		if m.enabled(MonitorOrdersCancelled) {
			m.logger.Info("order cancelled", order.Fields()...)
		}
		handler(ctx, order)
	}
}

func (m *Monitor) WithCorporateAction(handler bus.CorporateActionEventHandler) bus.CorporateActionEventHandler {
	return func(ctx context.Context, action common.CorporateAction) {
		if m.enabled(MonitorCorporateActions) {
			m.logger.Info("corporate action",
				zap.String("security", action.Security),
				zap.Time("ex_date", action.ExDate),
				zap.String("cash_per_share", action.CashPerShare.String()),
				zap.String("share_ratio", action.ShareRatio.String()))
		}
		handler(ctx, action)
	}
}

func (m *Monitor) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		if m.enabled(MonitorSnapshots) {
			m.logger.Info("snapshot", snapshot.Fields()...)
		}
		handler(ctx, snapshot)
	}
}
