package sandbox

import (
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

type Option func(*Broker)

func WithCommissionModel(model money.CommissionModel) Option {
	return func(b *Broker) {
		b.commission = model
	}
}

func WithSlippageModel(model SlippageModel) Option {
	return func(b *Broker) {
		b.slippage = model
	}
}

// WithVolumeRatio caps each fill at ratio of the bar volume. Zero disables
// the cap.
func WithVolumeRatio(ratio fixed.Point) Option {
	return func(b *Broker) {
		b.volumeRatio = ratio
	}
}

func WithExecutionID(id utility.ExecutionID) Option {
	return func(b *Broker) {
		b.executionID = id
		b.traces = utility.NewTraceGenerator(id)
	}
}
