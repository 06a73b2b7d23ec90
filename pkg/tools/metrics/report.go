package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

// Report values ending in Return, Drawdown, Rate and Volatility are
// percentages.
type Report struct {
	StartDate            time.Time   `json:"start_date"`
	EndDate              time.Time   `json:"end_date"`
	TradingDays          int         `json:"trading_days"`
	InitialValue         fixed.Point `json:"initial_value"`
	FinalValue           fixed.Point `json:"final_value"`
	TotalReturn          fixed.Point `json:"total_return"`
	AnnualizedReturn     fixed.Point `json:"annualized_return"`
	MaxDrawdown          fixed.Point `json:"max_drawdown"`
	RecoveryFactor       fixed.Point `json:"recovery_factor"`
	TotalCommission      fixed.Point `json:"total_commission"`
	Turnover             fixed.Point `json:"turnover"`
	TotalTrades          int         `json:"total_trades"`
	WinningTrades        int         `json:"winning_trades"`
	LosingTrades         int         `json:"losing_trades"`
	WinRate              fixed.Point `json:"win_rate"`
	Expectancy           fixed.Point `json:"expectancy"`
	ProfitFactor         fixed.Point `json:"profit_factor"`
	AverageWin           fixed.Point `json:"average_win"`
	AverageLoss          fixed.Point `json:"average_loss"`
	RiskRewardRatio      fixed.Point `json:"risk_reward_ratio"`
	SharpeRatio          fixed.Point `json:"sharpe_ratio"`
	SortinoRatio         fixed.Point `json:"sortino_ratio"`
	AnnualizedVolatility fixed.Point `json:"annualized_volatility"`
}

func (r Report) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.Time("start", r.StartDate),
		zap.Time("end", r.EndDate),
		zap.Int("trading_days", r.TradingDays),
		zap.String("initial_value", r.InitialValue.String()),
		zap.String("final_value", r.FinalValue.String()),
		zap.String("total_return", fmt.Sprintf("%s%%", r.TotalReturn)),
		zap.String("annualized_return", fmt.Sprintf("%s%%", r.AnnualizedReturn)),
		zap.String("max_drawdown", fmt.Sprintf("%s%%", r.MaxDrawdown)),
		zap.String("recovery_factor", r.RecoveryFactor.String()),
		zap.String("total_commission", r.TotalCommission.String()),
		zap.String("turnover", r.Turnover.String()))

	logger.Info("trade statistics",
		zap.Int("total_trades", r.TotalTrades),
		zap.Int("winning_trades", r.WinningTrades),
		zap.Int("losing_trades", r.LosingTrades),
		zap.String("win_rate", fmt.Sprintf("%s%%", r.WinRate)),
		zap.String("expectancy", r.Expectancy.String()),
		zap.String("profit_factor", r.ProfitFactor.String()),
		zap.String("average_win", r.AverageWin.String()),
		zap.String("average_loss", r.AverageLoss.String()),
		zap.String("risk_reward_ratio", r.RiskRewardRatio.String()))

	logger.Info("risk metrics",
		zap.String("sharpe_ratio", r.SharpeRatio.String()),
		zap.String("sortino_ratio", r.SortinoRatio.String()),
		zap.String("annualized_volatility", fmt.Sprintf("%s%%", r.AnnualizedVolatility)))
}

// Export is the document written by WriteJSON.
type Export struct {
	RunID      utility.ExecutionID `json:"run_id"`
	Report     Report              `json:"report"`
	History    []common.Snapshot   `json:"history"`
	Fills      []common.Fill       `json:"fills"`
	Rejections []common.Rejection  `json:"rejections"`
}

func WriteJSON(w io.Writer, export Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("unable to encode report: %w", err)
	}
	return nil
}

func ReadJSON(r io.Reader) (Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return Export{}, fmt.Errorf("unable to decode report: %w", err)
	}
	return export, nil
}
