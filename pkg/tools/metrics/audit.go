package metrics

import (
	"context"
	"errors"
	"math"

	"github.com/peter-kozarec/replay/pkg/bus"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/ledger"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const tradingDaysPerYear = 252

var ErrNoSnapshots = errors.New("no snapshots to report on")

// Audit collects daily snapshots, fills and realized trades of a run.
type Audit struct {
	snapshots    []common.Snapshot
	fills        []common.Fill
	realizations []ledger.Realization
}

func NewAudit() *Audit {
	return &Audit{}
}

func (a *Audit) OnSnapshot(_ context.Context, snapshot common.Snapshot) {
	a.snapshots = append(a.snapshots, snapshot)
}

func (a *Audit) OnOrderFill(_ context.Context, fill common.Fill) {
	a.fills = append(a.fills, fill)
}

func (a *Audit) WithSnapshot(handler bus.SnapshotEventHandler) bus.SnapshotEventHandler {
	return func(ctx context.Context, snapshot common.Snapshot) {
		a.OnSnapshot(ctx, snapshot)
		handler(ctx, snapshot)
	}
}

func (a *Audit) WithOrderFill(handler bus.OrderFillEventHandler) bus.OrderFillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		a.OnOrderFill(ctx, fill)
		handler(ctx, fill)
	}
}

func (a *Audit) AddRealizations(realizations ...ledger.Realization) {
	a.realizations = append(a.realizations, realizations...)
}

// GenerateReport measures the run against the cash it started with.
func (a *Audit) GenerateReport(initialCash fixed.Point) (Report, error) {
	if len(a.snapshots) == 0 {
		return Report{}, ErrNoSnapshots
	}

	report := Report{}
	first, last := a.snapshots[0], a.snapshots[len(a.snapshots)-1]

	report.StartDate = first.TimeStamp
	report.EndDate = last.TimeStamp
	report.TradingDays = len(a.snapshots)
	report.InitialValue = initialCash
	report.FinalValue = last.TotalValue

	if initialCash.IsPos() {
		ratio := report.FinalValue.Div(initialCash)
		report.TotalReturn = ratio.Sub(fixed.One).MulInt64(100).Rescale(2)
		report.AnnualizedReturn = annualize(ratio, report.TradingDays)
	}

	values := make([]fixed.Point, 0, len(a.snapshots)+1)
	values = append(values, initialCash)
	for _, s := range a.snapshots {
		values = append(values, s.TotalValue)
	}
	maxDrawdown := fixed.MaxDrawdown(values)

	for _, f := range a.fills {
		report.TotalCommission = report.TotalCommission.Add(f.Commission)
		report.Turnover = report.Turnover.Add(f.Value())
	}

	var totalProfit, totalLoss fixed.Point
	for _, r := range a.realizations {
		report.TotalTrades++
		if r.PnL.IsPos() {
			totalProfit = totalProfit.Add(r.PnL)
			report.WinningTrades++
		} else {
			totalLoss = totalLoss.Add(r.PnL.Neg())
			report.LosingTrades++
		}
	}

	if report.WinningTrades > 0 {
		report.AverageWin = totalProfit.DivInt(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = totalLoss.DivInt(report.LosingTrades)
	}
	if totalLoss.IsPos() {
		report.ProfitFactor = totalProfit.Div(totalLoss)
	}
	if report.AverageLoss.IsPos() {
		report.RiskRewardRatio = report.AverageWin.Div(report.AverageLoss)
	}
	if report.TotalTrades > 0 {
		report.Expectancy = totalProfit.Sub(totalLoss).DivInt(report.TotalTrades)
		report.WinRate = fixed.FromInt(report.WinningTrades, 0).DivInt(report.TotalTrades).MulInt64(100).Rescale(2)
	}
	if maxDrawdown.IsPos() {
		report.RecoveryFactor = report.TotalReturn.Div(maxDrawdown.MulInt64(100)).Rescale(5)
	}
	report.MaxDrawdown = maxDrawdown.MulInt64(100).Rescale(2)

	returns := dailyReturns(values)
	mean := fixed.Mean(returns)
	vol := fixed.StdDev(returns, mean)
	if !vol.IsZero() {
		report.AnnualizedVolatility = vol.Mul(fixed.Sqrt252).MulInt64(100).Rescale(2)
		report.SharpeRatio = fixed.SharpeRatio(returns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
		report.SortinoRatio = fixed.SortinoRatio(returns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
	}

	return report, nil
}

// annualize compounds ratio over a 252 day year, in percent. Runs too short
// to extrapolate sensibly report zero.
func annualize(ratio fixed.Point, days int) fixed.Point {
	r, ok := ratio.Float64()
	if !ok || r <= 0 || days == 0 {
		return fixed.Zero
	}
	annual := (math.Pow(r, tradingDaysPerYear/float64(days)) - 1) * 100
	if math.IsInf(annual, 0) || math.IsNaN(annual) || math.Abs(annual) > 1e12 {
		return fixed.Zero
	}
	return fixed.FromFloat64(annual).Rescale(2)
}

func dailyReturns(values []fixed.Point) []fixed.Point {
	if len(values) < 2 {
		return nil
	}
	out := make([]fixed.Point, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1].IsZero() {
			continue
		}
		out = append(out, values[i].Div(values[i-1]).Sub(fixed.One))
	}
	return out
}
