package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const sec = "600000.XSHG"

var ts = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func fill(side common.OrderSide, qty int64, price, commission string) common.Fill {
	return common.Fill{
		Security:   sec,
		Side:       side,
		Quantity:   qty,
		Price:      fixed.MustParse(price),
		Commission: fixed.MustParse(commission),
		TimeStamp:  ts,
	}
}

func TestLedger_ApplyFillBuy(t *testing.T) {
	l := NewLedger(fixed.FromInt(1_000_000, 0))

	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 10_000, "10.00", "31.00")))

	assert.True(t, l.Cash().Eq(fixed.MustParse("899969")), "cash %s", l.Cash())
	p, ok := l.Position(sec)
	require.True(t, ok)
	assert.Equal(t, int64(10_000), p.Quantity)
	assert.Equal(t, int64(10_000), p.TodayBought)
	assert.Equal(t, int64(0), p.Closeable())
	assert.True(t, p.CostBasis.Eq(fixed.MustParse("10.0031")), "cost %s", p.CostBasis)
}

func TestLedger_ApplyFillAveragesCost(t *testing.T) {
	l := NewLedger(fixed.FromInt(100_000, 0))
	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 100, "10", "0")))
	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 100, "12", "0")))

	p, _ := l.Position(sec)
	assert.True(t, p.CostBasis.Eq(fixed.FromInt(11, 0)))
	assert.Equal(t, int64(200), p.Quantity)
}

func TestLedger_ApplyFillSell(t *testing.T) {
	l := NewLedger(fixed.FromInt(100_000, 0))
	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 1000, "10", "5")))
	l.StartDay()

	cashBefore := l.Cash()
	require.NoError(t, l.ApplyFill(fill(common.OrderSideSell, 400, "12", "7")))

	// commission on sells only touches cash and realized profit
	assert.True(t, l.Cash().Eq(cashBefore.Add(fixed.FromInt(4800-7, 0))))
	p, _ := l.Position(sec)
	assert.Equal(t, int64(600), p.Quantity)
	assert.True(t, p.CostBasis.Eq(fixed.MustParse("10.005")))
	// (12 - 10.005) * 400 - 7
	assert.True(t, p.RealizedPnL.Eq(fixed.MustParse("791")), "pnl %s", p.RealizedPnL)

	require.NoError(t, l.ApplyFill(fill(common.OrderSideSell, 600, "12", "7")))
	_, ok := l.Position(sec)
	assert.False(t, ok, "position removed at zero")
	require.Len(t, l.Realizations(), 2)
}

func TestLedger_InvariantsLeaveStateUntouched(t *testing.T) {
	l := NewLedger(fixed.FromInt(1000, 0))

	err := l.ApplyFill(fill(common.OrderSideBuy, 100, "10", "5"))
	assert.True(t, errors.Is(err, ErrNegativeCash))
	assert.True(t, l.Cash().Eq(fixed.FromInt(1000, 0)))
	assert.Equal(t, 0, l.Count())

	err = l.ApplyFill(fill(common.OrderSideSell, 100, "10", "5"))
	assert.True(t, errors.Is(err, ErrNegativeQuantity))

	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 50, "10", "0")))
	err = l.ApplyFill(fill(common.OrderSideSell, 100, "10", "0"))
	assert.True(t, errors.Is(err, ErrNegativeQuantity))
	p, _ := l.Position(sec)
	assert.Equal(t, int64(50), p.Quantity)
}

func TestLedger_ApplyCorporateAction(t *testing.T) {
	l := NewLedger(fixed.FromInt(1_000_000, 0))
	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 10_000, "10.00", "31.00")))
	before, _ := l.Position(sec)

	f := common.AdjustmentFactor{Security: sec, A: fixed.MustParse("0.98"), B: fixed.MustParse("0.02")}
	require.NoError(t, l.ApplyCorporateAction(sec, f))

	after, _ := l.Position(sec)
	expected := fixed.MustParse("0.98").Mul(before.CostBasis).Add(fixed.MustParse("0.02"))
	assert.True(t, after.CostBasis.Eq(expected), "cost %s want %s", after.CostBasis, expected)
	assert.True(t, after.LastPrice.Eq(fixed.MustParse("9.82")))
	assert.Equal(t, before.Quantity, after.Quantity)

	err := l.ApplyCorporateAction("000001.XSHE", f)
	assert.True(t, errors.Is(err, ErrPosNotFound))
}

func TestLedger_SplitAndDividend(t *testing.T) {
	l := NewLedger(fixed.FromInt(100_000, 0))
	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 1050, "10", "0")))

	amount, err := l.CreditDividend(sec, fixed.MustParse("0.5"))
	require.NoError(t, err)
	assert.True(t, amount.Eq(fixed.FromInt(525, 0)))
	assert.True(t, l.Cash().Eq(fixed.FromInt(100_000-10_500+525, 0)))

	require.NoError(t, l.ApplySplit(sec, fixed.MustParse("0.3")))
	p, _ := l.Position(sec)
	// floor(1050 * 1.3) = 1365
	assert.Equal(t, int64(1365), p.Quantity)
	assert.Equal(t, int64(1365), p.TodayBought)
}

func TestLedger_Snapshot(t *testing.T) {
	l := NewLedger(fixed.FromInt(10_000, 0))
	require.NoError(t, l.ApplyFill(fill(common.OrderSideBuy, 100, "10", "0")))
	l.Mark(sec, fixed.FromInt(11, 0))

	s := l.Snapshot(ts)
	assert.True(t, s.Cash.Eq(fixed.FromInt(9000, 0)))
	assert.True(t, s.TotalValue.Eq(fixed.FromInt(10_100, 0)))
	require.Len(t, s.Positions, 1)

	// snapshots are copies
	s.Positions[0].Quantity = 0
	p, _ := l.Position(sec)
	assert.Equal(t, int64(100), p.Quantity)
}
