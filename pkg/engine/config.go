package engine

import (
	"time"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Config is the plain data a run is built from.
type Config struct {
	Cash       fixed.Point
	Start      time.Time
	End        time.Time
	Frequency  common.Frequency
	Securities []string

	Commission  money.CommissionModel
	VolumeRatio fixed.Point
	// AdjustMode is the default price adjustment of Handle.History.
	AdjustMode adjustment.Mode
	// Seed derives the run id. Equal seeds and inputs give equal journals.
	Seed          string
	EventCapacity int
}

func DefaultConfig() Config {
	return Config{
		Cash:          fixed.FromInt(1_000_000, 0),
		Frequency:     common.FrequencyDaily,
		Commission:    money.DefaultCommissionModel(),
		VolumeRatio:   fixed.Zero,
		AdjustMode:    adjustment.ModeForward,
		Seed:          "replay",
		EventCapacity: 4096,
	}
}
