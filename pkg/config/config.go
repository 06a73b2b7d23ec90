package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/engine"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/exchange/sandbox"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const dateLayout = "2006-01-02"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Run        Run                    `mapstructure:"run"`
	Commission Commission             `mapstructure:"commission"`
	Slippage   Slippage               `mapstructure:"slippage"`
	Boards     map[string]BoardConfig `mapstructure:"boards" validate:"dive,keys,oneof=main star gem bse MAIN STAR GEM BSE,endkeys"`
	// STLimitRatio is the price limit of securities under special treatment.
	STLimitRatio float64 `mapstructure:"st_limit_ratio" validate:"gt=0,lt=1"`
	// VolumeRatio caps a fill at this share of the bar volume, zero disables.
	VolumeRatio float64 `mapstructure:"volume_ratio" validate:"gte=0,lte=1"`
}

type Run struct {
	Cash       float64  `mapstructure:"cash" validate:"gt=0"`
	Start      string   `mapstructure:"start" validate:"required,datetime=2006-01-02"`
	End        string   `mapstructure:"end" validate:"required,datetime=2006-01-02"`
	Timezone   string   `mapstructure:"timezone" validate:"required,timezone"`
	Frequency  string   `mapstructure:"frequency" validate:"oneof=1d 1m"`
	Securities []string `mapstructure:"securities" validate:"dive,required"`
	Adjust     string   `mapstructure:"adjust" validate:"oneof=none forward backward pre post"`
	Seed       string   `mapstructure:"seed" validate:"required"`
	// AfterHoursOrders also accepts orders after the close, queued for the
	// next session.
	AfterHoursOrders bool `mapstructure:"after_hours_orders"`
}

type Commission struct {
	Ratio       float64 `mapstructure:"ratio" validate:"gte=0,lt=1"`
	Minimum     float64 `mapstructure:"minimum" validate:"gte=0"`
	StampDuty   float64 `mapstructure:"stamp_duty" validate:"gte=0,lt=1"`
	TransferFee float64 `mapstructure:"transfer_fee" validate:"gte=0,lt=1"`
}

type Slippage struct {
	Model string  `mapstructure:"model" validate:"oneof=none bps ratio spread volume"`
	Value float64 `mapstructure:"value" validate:"gte=0"`
}

type BoardConfig struct {
	LotSize    int64   `mapstructure:"lot_size" validate:"gte=1"`
	LimitRatio float64 `mapstructure:"limit_ratio" validate:"gt=0,lt=1"`
}

func Default() Config {
	commission := money.DefaultCommissionModel()
	return Config{
		Run: Run{
			Cash:      1_000_000,
			Timezone:  "Asia/Shanghai",
			Frequency: string(common.FrequencyDaily),
			Adjust:    adjustment.ModeForward.String(),
			Seed:      "replay",
		},
		Commission: Commission{
			Ratio:       commission.Ratio,
			Minimum:     commission.Minimum,
			StampDuty:   commission.StampDuty,
			TransferFee: commission.TransferFee,
		},
		Slippage: Slippage{Model: "none"},
		Boards: map[string]BoardConfig{
			"main": {LotSize: 100, LimitRatio: 0.10},
			"star": {LotSize: 200, LimitRatio: 0.20},
			"gem":  {LotSize: 100, LimitRatio: 0.20},
			"bse":  {LotSize: 100, LimitRatio: 0.30},
		},
		STLimitRatio: 0.05,
	}
}

// Load reads a yaml, toml or json file on top of Default. Keys present in the
// file can be overridden from the environment, run.cash as REPLAY_RUN_CASH.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("replay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("unable to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	start, end, err := c.Period()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidConfig, c.Run.End, c.Run.Start)
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Run.Timezone)
}

// Period returns the first and the last day of the run in its timezone. The
// end is extended to the last instant of its day.
func (c Config) Period() (time.Time, time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := time.ParseInLocation(dateLayout, c.Run.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation(dateLayout, c.Run.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (c Config) Engine() (engine.Config, error) {
	start, end, err := c.Period()
	if err != nil {
		return engine.Config{}, err
	}
	mode, err := adjustment.ParseMode(c.Run.Adjust)
	if err != nil {
		return engine.Config{}, err
	}

	cfg := engine.DefaultConfig()
	cfg.Cash = fixed.FromFloat64(c.Run.Cash)
	cfg.Start = start
	cfg.End = end
	cfg.Frequency = common.Frequency(c.Run.Frequency)
	cfg.Securities = append([]string(nil), c.Run.Securities...)
	cfg.Commission = money.CommissionModel{
		Ratio:       c.Commission.Ratio,
		Minimum:     c.Commission.Minimum,
		StampDuty:   c.Commission.StampDuty,
		TransferFee: c.Commission.TransferFee,
	}
	cfg.VolumeRatio = fixed.FromFloat64(c.VolumeRatio)
	cfg.AdjustMode = mode
	cfg.Seed = c.Run.Seed
	return cfg, nil
}

// Rules starts from the platform rules and overrides the configured boards.
func (c Config) Rules() (exchange.Rules, error) {
	rules := exchange.DefaultRules()
	for name, board := range c.Boards {
		b, err := exchange.ParseBoard(name)
		if err != nil {
			return exchange.Rules{}, err
		}
		rules.Boards[b] = exchange.BoardRule{
			LotSize:    board.LotSize,
			LimitRatio: fixed.FromFloat64(board.LimitRatio),
		}
	}
	rules.STLimitRatio = fixed.FromFloat64(c.STLimitRatio)
	return rules, nil
}

func (c Config) SlippageModel() sandbox.SlippageModel {
	value := fixed.FromFloat64(c.Slippage.Value)
	switch c.Slippage.Model {
	case "bps":
		return sandbox.FixedBasisPoints{Bps: value}
	case "ratio":
		return sandbox.PriceRelated{Ratio: value}
	case "spread":
		return sandbox.FixedSpread{Spread: value}
	case "volume":
		return sandbox.VolumeShare{Impact: value}
	}
	return sandbox.NoSlippage{}
}

// EngineOptions translates the platform switches into engine options.
func (c Config) EngineOptions() []engine.Option {
	options := []engine.Option{engine.WithSlippageModel(c.SlippageModel())}
	if c.Run.AfterHoursOrders {
		options = append(options, engine.WithTradingPhases(engine.MaskOf(engine.PhasePreMarket, engine.PhaseInSession, engine.PhasePostMarket)))
	}
	return options
}
