package engine

import (
	"github.com/peter-kozarec/replay/pkg/exchange/sandbox"
	"github.com/peter-kozarec/replay/pkg/journal"
	"github.com/peter-kozarec/replay/pkg/middleware"
)

type Option func(*Engine)

// WithTradingPhases changes where order calls are allowed, for platforms
// that also accept orders after the close.
func WithTradingPhases(mask PhaseMask) Option {
	return func(e *Engine) {
		e.tradingPhases = mask
	}
}

func WithSlippageModel(model sandbox.SlippageModel) Option {
	return func(e *Engine) {
		e.slippage = model
	}
}

func WithJournal(w *journal.Writer) Option {
	return func(e *Engine) {
		e.journal = w
	}
}

func WithMonitor(m *middleware.Monitor) Option {
	return func(e *Engine) {
		e.monitor = m
	}
}

func WithTelemetry(t *middleware.Telemetry) Option {
	return func(e *Engine) {
		e.telemetry = t
	}
}
