package common

import (
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

type Position struct {
	Security string `json:"security"`
	Quantity int64  `json:"quantity"`
	// CostBasis is the average cost per share, buy commissions included.
	CostBasis   fixed.Point `json:"cost_basis"`
	TodayBought int64       `json:"today_bought"`
	RealizedPnL fixed.Point `json:"realized_pnl"`
	LastPrice   fixed.Point `json:"last_price"`
}

// Closeable is the quantity that may be sold today. Shares bought today settle
// on the next trading day.
func (p Position) Closeable() int64 {
	c := p.Quantity - p.TodayBought
	if c < 0 {
		return 0
	}
	return c
}

func (p Position) MarketValue() fixed.Point {
	return p.LastPrice.MulInt64(p.Quantity)
}

func (p Position) UnrealizedPnL() fixed.Point {
	return p.LastPrice.Sub(p.CostBasis).MulInt64(p.Quantity)
}

type Snapshot struct {
	TimeStamp  time.Time   `json:"ts"`
	Cash       fixed.Point `json:"cash"`
	Positions  []Position  `json:"positions"`
	TotalValue fixed.Point `json:"total_value"`
}

func (s Snapshot) Position(security string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Security == security {
			return p, true
		}
	}
	return Position{}, false
}

func (s Snapshot) Fields() []zap.Field {
	return []zap.Field{
		zap.Time("ts", s.TimeStamp),
		zap.String("cash", s.Cash.String()),
		zap.Int("positions", len(s.Positions)),
		zap.String("total_value", s.TotalValue.String()),
	}
}
