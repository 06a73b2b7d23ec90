package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
	"github.com/peter-kozarec/replay/pkg/datasource/synthetic"
	"github.com/peter-kozarec/replay/pkg/journal"
	"github.com/peter-kozarec/replay/pkg/middleware"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const sec = "600000.XSHG"

type funcStrategy struct {
	BaseStrategy
	init   func(context.Context, *Handle) error
	before func(context.Context, *Handle) error
	onBar  func(context.Context, *Handle, Slice) error
	after  func(context.Context, *Handle) error
}

func (s *funcStrategy) Initialize(ctx context.Context, h *Handle) error {
	if s.init == nil {
		return nil
	}
	return s.init(ctx, h)
}

func (s *funcStrategy) BeforeSession(ctx context.Context, h *Handle) error {
	if s.before == nil {
		return nil
	}
	return s.before(ctx, h)
}

func (s *funcStrategy) OnBar(ctx context.Context, h *Handle, slice Slice) error {
	if s.onBar == nil {
		return nil
	}
	return s.onBar(ctx, h, slice)
}

func (s *funcStrategy) AfterSession(ctx context.Context, h *Handle) error {
	if s.after == nil {
		return nil
	}
	return s.after(ctx, h)
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func dailyBar(security string, d int, closePrice string, volume int64) common.Bar {
	c := fixed.MustParse(closePrice)
	return common.Bar{
		Security:  security,
		Frequency: common.FrequencyDaily,
		TimeStamp: day(d).Add(15 * time.Hour),
		Open:      c,
		High:      c.Add(fixed.MustParse("0.10")),
		Low:       c.Sub(fixed.MustParse("0.10")),
		Close:     c,
		Volume:    volume,
	}
}

func newTestEngine(t *testing.T, market Market, options ...Option) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Securities = []string{sec}
	e, err := NewEngine(zaptest.NewLogger(t), cfg, market, options...)
	require.NoError(t, err)
	return e
}

func flatMarket() Market {
	return Market{Source: datasource.NewMemorySource(
		dailyBar(sec, 2, "10.00", 1_000_000),
		dailyBar(sec, 3, "10.00", 1_000_000),
		dailyBar(sec, 4, "10.00", 1_000_000),
	)}
}

func TestEngine_BuyScenario(t *testing.T) {
	var ticket common.Order
	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, slice Slice) error {
			if h.Clock().BarIndex != 1 {
				return nil
			}
			var err error
			ticket, err = h.Order(sec, 10_000)
			return err
		},
	}

	e := newTestEngine(t, flatMarket())
	result, err := e.Run(context.Background(), strategy)
	require.NoError(t, err)

	assert.Equal(t, common.OrderStatusFilled, ticket.Status)
	assert.Equal(t, int64(10_000), ticket.FilledQuantity)

	require.Len(t, result.Fills, 1)
	fill := result.Fills[0]
	assert.Equal(t, "10.00", fill.Price.String())
	assert.Equal(t, "31.00", fill.Commission.String())

	require.Len(t, result.History, 3)
	first := result.History[0]
	assert.True(t, first.Cash.Eq(fixed.MustParse("899969")))
	p, ok := first.Position(sec)
	require.True(t, ok)
	assert.Equal(t, int64(10_000), p.Quantity)
	assert.True(t, p.CostBasis.Eq(fixed.MustParse("10.0031")), p.CostBasis.String())

	final, ok := result.Final()
	require.True(t, ok)
	assert.True(t, final.TotalValue.Eq(fixed.MustParse("999969")))
	assert.Equal(t, PhaseTerminated, e.Clock().Phase)
}

func TestEngine_CrossDayAdjustment(t *testing.T) {
	table := adjustment.NewTable()
	factor := common.AdjustmentFactor{Security: sec, EffectiveDate: day(3), A: fixed.MustParse("0.98"), B: fixed.MustParse("0.02")}
	require.NoError(t, table.Add(factor))

	market := Market{
		Source: datasource.NewMemorySource(
			dailyBar(sec, 2, "10.00", 1_000_000),
			dailyBar(sec, 3, "9.82", 1_000_000),
		),
		Table: table,
	}

	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, _ Slice) error {
			if h.Clock().BarIndex == 1 {
				_, err := h.Order(sec, 10_000)
				return err
			}
			return nil
		},
	}

	result, err := newTestEngine(t, market).Run(context.Background(), strategy)
	require.NoError(t, err)
	require.Len(t, result.History, 2)

	before, after := result.History[0], result.History[1]
	pBefore, _ := before.Position(sec)
	pAfter, ok := after.Position(sec)
	require.True(t, ok)

	expectedCost := factor.A.Mul(pBefore.CostBasis).Add(factor.B)
	assert.True(t, pAfter.CostBasis.Eq(expectedCost), "%s != %s", pAfter.CostBasis, expectedCost)
	assert.True(t, pAfter.CostBasis.Eq(fixed.MustParse("9.823038")))

	continuous := before.Cash.Add(factor.Apply(pBefore.LastPrice).MulInt64(pBefore.Quantity))
	assert.True(t, after.TotalValue.Eq(continuous), "%s != %s", after.TotalValue, continuous)
}

func TestEngine_DividendAndBonusShares(t *testing.T) {
	market := Market{
		Source: datasource.NewMemorySource(
			dailyBar(sec, 2, "10.00", 1_000_000),
			dailyBar(sec, 3, "7.60", 1_000_000),
		),
		Actions: []common.CorporateAction{
			{Security: sec, ExDate: day(3), CashPerShare: fixed.MustParse("0.5"), ShareRatio: fixed.MustParse("0.25")},
		},
	}

	var actions int
	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, _ Slice) error {
			if h.Clock().BarIndex == 1 {
				_, err := h.Order(sec, 1000)
				return err
			}
			return nil
		},
	}

	monitor := middleware.NewMonitor(zap.NewNop(), middleware.MonitorCorporateActions)
	e := newTestEngine(t, market, WithMonitor(monitor))
	next := e.Router().OnCorporateAction
	e.Router().OnCorporateAction = func(ctx context.Context, a common.CorporateAction) {
		actions++
		next(ctx, a)
	}

	result, err := e.Run(context.Background(), strategy)
	require.NoError(t, err)

	before, after := result.History[0], result.History[1]
	p, ok := after.Position(sec)
	require.True(t, ok)
	assert.Equal(t, int64(1250), p.Quantity)
	assert.True(t, p.CostBasis.Eq(fixed.MustParse("7.60408")), p.CostBasis.String())
	assert.True(t, after.Cash.Eq(before.Cash.Add(fixed.MustParse("500"))))
	assert.Equal(t, 1, actions)
}

func shanghaiBar(d int, closePrice string) common.Bar {
	b := dailyBar(sec, d, closePrice, 1_000_000)
	b.TimeStamp = time.Date(2024, 1, d, 15, 0, 0, 0, time.FixedZone("CST", 8*60*60))
	return b
}

func TestEngine_ExDateMatchedByCalendarDate(t *testing.T) {
	market := Market{
		Source: datasource.NewMemorySource(
			shanghaiBar(2, "10.00"),
			shanghaiBar(3, "9.50"),
		),
		Actions: []common.CorporateAction{
			{Security: sec, ExDate: day(3), CashPerShare: fixed.MustParse("0.50")},
		},
	}

	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, _ Slice) error {
			if h.Clock().BarIndex == 1 {
				_, err := h.Order(sec, 1000)
				return err
			}
			return nil
		},
	}

	result, err := newTestEngine(t, market).Run(context.Background(), strategy)
	require.NoError(t, err)
	require.Len(t, result.History, 2)

	before, after := result.History[0], result.History[1]
	assert.True(t, after.Cash.Eq(before.Cash.Add(fixed.MustParse("500"))), "cash %s after %s", after.Cash, before.Cash)
	assert.True(t, after.TotalValue.Eq(before.TotalValue), "%s != %s", after.TotalValue, before.TotalValue)

	pBefore, _ := before.Position(sec)
	pAfter, ok := after.Position(sec)
	require.True(t, ok)
	assert.True(t, pAfter.CostBasis.Eq(pBefore.CostBasis.Sub(fixed.MustParse("0.50"))), pAfter.CostBasis.String())
}

func TestEngine_StartMatchedByCalendarDate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Securities = []string{sec}
	cfg.Start = day(3)
	market := Market{Source: datasource.NewMemorySource(
		shanghaiBar(2, "10.00"),
		shanghaiBar(3, "10.00"),
		shanghaiBar(4, "10.00"),
	)}

	e, err := NewEngine(zaptest.NewLogger(t), cfg, market)
	require.NoError(t, err)
	result, err := e.Run(context.Background(), &funcStrategy{})
	require.NoError(t, err)

	require.Len(t, result.History, 2)
	assert.Equal(t, 3, result.History[0].TimeStamp.Day())
}

func TestEngine_HandleDetachedAfterRun(t *testing.T) {
	var kept *Handle
	strategy := &funcStrategy{
		init: func(_ context.Context, h *Handle) error {
			kept = h
			return nil
		},
		onBar: func(_ context.Context, h *Handle, _ Slice) error {
			if h.Clock().BarIndex == 1 {
				assert.NotEmpty(t, h.History(sec, 1))
				_, err := h.Order(sec, 1000)
				return err
			}
			return nil
		},
	}

	_, err := newTestEngine(t, flatMarket()).Run(context.Background(), strategy)
	require.NoError(t, err)
	require.NotNil(t, kept)

	assert.Equal(t, PhaseTerminated, kept.Phase())
	assert.True(t, kept.Cash().IsZero())
	_, held := kept.Position(sec)
	assert.False(t, held)
	assert.Empty(t, kept.History(sec, 5))
	assert.Empty(t, kept.Universe())
	assert.Empty(t, kept.Portfolio().Positions)
	_, ok := kept.GetOrder(1)
	assert.False(t, ok)

	_, err = kept.Order(sec, 100)
	assert.ErrorIs(t, err, ErrPhaseViolation)
}

func TestEngine_PhaseGate(t *testing.T) {
	var errs = map[Phase]error{}
	strategy := &funcStrategy{
		init: func(_ context.Context, h *Handle) error {
			_, errs[PhaseInitialized] = h.Order(sec, 100)
			assert.True(t, h.Cash().IsPos())
			return h.RunDaily(BeforeOpen(), "noop", func(context.Context, *Handle) error { return nil })
		},
		before: func(_ context.Context, h *Handle) error {
			errs[PhasePreMarket] = h.RunEvery(1, "late", func(context.Context, *Handle) error { return nil })
			return nil
		},
		after: func(_ context.Context, h *Handle) error {
			_, errs[PhasePostMarket] = h.Cancel(1)
			return nil
		},
	}

	_, err := newTestEngine(t, flatMarket()).Run(context.Background(), strategy)
	require.NoError(t, err)

	for phase, op := range map[Phase]Operation{
		PhaseInitialized: OpOrder,
		PhasePreMarket:   OpRunEvery,
		PhasePostMarket:  OpCancel,
	} {
		require.ErrorIs(t, errs[phase], ErrPhaseViolation, phase.String())
		var violation *PhaseViolationError
		require.True(t, errors.As(errs[phase], &violation))
		assert.Equal(t, phase, violation.Phase)
		assert.Equal(t, op, violation.Operation)
	}
}

func TestEngine_TradingPhasesProfile(t *testing.T) {
	var afterCloseOrder common.Order
	strategy := &funcStrategy{
		after: func(_ context.Context, h *Handle) error {
			if h.Clock().Date.Equal(day(2)) {
				var err error
				afterCloseOrder, err = h.Order(sec, 100)
				return err
			}
			return nil
		},
	}

	e := newTestEngine(t, flatMarket(), WithTradingPhases(MaskOf(PhasePreMarket, PhaseInSession, PhasePostMarket)))
	result, err := e.Run(context.Background(), strategy)
	require.NoError(t, err)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, afterCloseOrder.ID, result.Fills[0].OrderID)
	assert.Equal(t, 3, result.Fills[0].TimeStamp.Day())
}

func TestEngine_TPlusOne(t *testing.T) {
	var sameDay, nextDay common.Order
	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, _ Slice) error {
			var err error
			switch h.Clock().BarIndex {
			case 1:
				if _, err = h.Order(sec, 1000); err != nil {
					return err
				}
				sameDay, err = h.Order(sec, -1000)
			case 2:
				nextDay, err = h.OrderTarget(sec, 0)
			}
			return err
		},
	}

	result, err := newTestEngine(t, flatMarket()).Run(context.Background(), strategy)
	require.NoError(t, err)

	assert.Equal(t, common.OrderStatusRejected, sameDay.Status)
	assert.Equal(t, common.RejectReasonInsufficientPosition, sameDay.RejectReason)
	assert.Equal(t, common.OrderStatusFilled, nextDay.Status)
	assert.Equal(t, common.OrderSideSell, nextDay.Side)

	require.Len(t, result.Realizations, 1)
	_, held := result.History[2].Position(sec)
	assert.False(t, held)
}

func TestEngine_LimitOrderExpires(t *testing.T) {
	var first, second common.Order
	market := Market{Source: datasource.NewMemorySource(
		dailyBar(sec, 2, "10.00", 1_000_000),
		common.Bar{
			Security: sec, Frequency: common.FrequencyDaily, TimeStamp: day(3).Add(15 * time.Hour),
			Open: fixed.MustParse("9.60"), High: fixed.MustParse("9.70"), Low: fixed.MustParse("9.40"),
			Close: fixed.MustParse("9.45"), Volume: 1_000_000,
		},
	)}

	strategy := &funcStrategy{
		before: func(_ context.Context, h *Handle) error {
			o, err := h.Order(sec, 1000, Limit(fixed.MustParse("9.50")))
			if h.Clock().Date.Equal(day(2)) {
				first = o
			} else {
				second = o
			}
			return err
		},
	}

	result, err := newTestEngine(t, market).Run(context.Background(), strategy)
	require.NoError(t, err)

	byID := make(map[common.OrderID]common.Order)
	for _, o := range result.Orders {
		byID[o.ID] = o
	}
	assert.Equal(t, common.OrderStatusExpired, byID[first.ID].Status)
	assert.Equal(t, common.OrderStatusFilled, byID[second.ID].Status)

	require.Len(t, result.Fills, 1)
	assert.Equal(t, "9.45", result.Fills[0].Price.String())
}

func TestEngine_LimitOrderFillsOnLaterMinuteBar(t *testing.T) {
	minute := func(m int, low, closePrice string) common.Bar {
		c := fixed.MustParse(closePrice)
		return common.Bar{
			Security: sec, Frequency: common.FrequencyMinute,
			TimeStamp: day(2).Add(9*time.Hour + time.Duration(30+m)*time.Minute),
			Open:      c, High: c.Add(fixed.MustParse("0.05")), Low: fixed.MustParse(low), Close: c,
			Volume: 50_000,
		}
	}
	market := Market{Source: datasource.NewMemorySource(
		minute(1, "9.90", "10.00"),
		minute(2, "9.40", "9.45"),
		minute(3, "9.40", "9.42"),
	)}

	var placed, afterPlacing common.Order
	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, _ Slice) error {
			if h.Clock().BarIndex == 1 {
				var err error
				placed, err = h.Order(sec, 500, Limit(fixed.MustParse("9.50")))
				afterPlacing, _ = h.GetOrder(placed.ID)
				return err
			}
			return nil
		},
	}

	cfg := DefaultConfig()
	cfg.Frequency = common.FrequencyMinute
	cfg.Securities = []string{sec}
	e, err := NewEngine(zaptest.NewLogger(t), cfg, market)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), strategy)
	require.NoError(t, err)

	assert.Equal(t, common.OrderStatusPending, afterPlacing.Status)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, 32, result.Fills[0].TimeStamp.Minute())
	assert.Equal(t, "9.45", result.Fills[0].Price.String())
	require.Len(t, result.History, 1)
}

func TestEngine_MissingBarIsSuspended(t *testing.T) {
	const other = "000001.XSHE"
	market := Market{Source: datasource.NewMemorySource(
		dailyBar(sec, 2, "10.00", 1_000_000),
		dailyBar(sec, 3, "10.00", 1_000_000),
		dailyBar(other, 2, "12.00", 1_000_000),
		dailyBar(other, 4, "12.00", 1_000_000),
	)}

	var ticket common.Order
	var suspended bool
	strategy := &funcStrategy{
		onBar: func(_ context.Context, h *Handle, slice Slice) error {
			if h.Clock().BarIndex != 2 {
				return nil
			}
			b, ok := slice.Bar(other)
			suspended = ok && b.IsSuspended()
			var err error
			ticket, err = h.Order(other, 100)
			return err
		},
	}

	cfg := DefaultConfig()
	cfg.Securities = []string{sec, other}
	e, err := NewEngine(zaptest.NewLogger(t), cfg, market)
	require.NoError(t, err)

	result, err := e.Run(context.Background(), strategy)
	require.NoError(t, err)

	assert.True(t, suspended)
	assert.Equal(t, common.RejectReasonSuspended, ticket.RejectReason)
	require.Len(t, result.Rejections, 1)
	assert.Len(t, result.History, 3)
}

func TestEngine_Scheduler(t *testing.T) {
	counts := make(map[string]int)
	count := func(name string) Callback {
		return func(context.Context, *Handle) error {
			counts[name]++
			return nil
		}
	}
	strategy := &funcStrategy{
		init: func(_ context.Context, h *Handle) error {
			at, err := ParseAt("14:50")
			require.NoError(t, err)
			require.NoError(t, h.RunDaily(BeforeOpen(), "open", count("open")))
			require.NoError(t, h.RunDaily(AfterClose(), "close", count("close")))
			require.NoError(t, h.RunDaily(at, "intraday", count("intraday")))
			require.NoError(t, h.RunDaily(AtTime(15, 30), "never", count("never")))
			require.NoError(t, h.RunEvery(2, "every2", count("every2")))
			assert.ErrorIs(t, h.RunEvery(0, "bad", count("bad")), ErrInvalidSchedule)
			return nil
		},
	}

	_, err := newTestEngine(t, flatMarket()).Run(context.Background(), strategy)
	require.NoError(t, err)

	assert.Equal(t, 3, counts["open"])
	assert.Equal(t, 3, counts["close"])
	assert.Equal(t, 3, counts["intraday"])
	assert.Equal(t, 0, counts["never"])
	assert.Equal(t, 1, counts["every2"])
}

func TestEngine_HookErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	strategy := &funcStrategy{
		before: func(context.Context, *Handle) error { return boom },
	}
	_, err := newTestEngine(t, flatMarket()).Run(context.Background(), strategy)
	assert.ErrorIs(t, err, boom)
}

func TestEngine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bars int
	strategy := &funcStrategy{
		onBar: func(context.Context, *Handle, Slice) error {
			bars++
			cancel()
			return nil
		},
	}

	_, err := newTestEngine(t, flatMarket()).Run(ctx, strategy)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, bars)
}

func TestEngine_DataIntegrity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Securities = []string{sec, "000001.XSHE"}
	e, err := NewEngine(zaptest.NewLogger(t), cfg, flatMarket())
	require.NoError(t, err)

	_, err = e.Run(context.Background(), &funcStrategy{})
	require.ErrorIs(t, err, datasource.ErrDataIntegrity)
	var integrity *DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "000001.XSHE", integrity.Security)
}

func TestEngine_RunOnlyOnce(t *testing.T) {
	e := newTestEngine(t, flatMarket())
	_, err := e.Run(context.Background(), &funcStrategy{})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), &funcStrategy{})
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestEngine_HistoryHasNoLookAhead(t *testing.T) {
	var seen []int
	strategy := &funcStrategy{
		before: func(_ context.Context, h *Handle) error {
			seen = append(seen, len(h.History(sec, 10)))
			return nil
		},
		onBar: func(_ context.Context, h *Handle, slice Slice) error {
			bars := h.History(sec, 10)
			require.NotEmpty(t, bars)
			assert.True(t, bars[len(bars)-1].TimeStamp.Equal(slice.TimeStamp))
			return nil
		},
	}

	_, err := newTestEngine(t, flatMarket()).Run(context.Background(), strategy)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

// momentum buys after two rising closes and exits after two falling ones.
type momentum struct {
	BaseStrategy
	securities []string
}

func (m *momentum) Initialize(_ context.Context, h *Handle) error {
	return h.Subscribe(m.securities...)
}

func (m *momentum) OnBar(_ context.Context, h *Handle, slice Slice) error {
	for _, b := range slice.Bars {
		bars := h.History(b.Security, 3)
		if len(bars) < 3 || b.IsSuspended() {
			continue
		}
		rising := bars[2].Close.Gt(bars[1].Close) && bars[1].Close.Gt(bars[0].Close)
		falling := bars[2].Close.Lt(bars[1].Close) && bars[1].Close.Lt(bars[0].Close)
		var err error
		switch {
		case rising:
			_, err = h.OrderValue(b.Security, fixed.FromInt(200_000, 0))
		case falling:
			_, err = h.OrderTarget(b.Security, 0)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runJournaled(t *testing.T) []byte {
	t.Helper()

	gen := synthetic.NewGenerator(2024, day(2), 60)
	gen.Add("600000.XSHG", synthetic.BlueChip(10))
	gen.Add("688001.XSHG", synthetic.Growth(40))

	var buf bytes.Buffer
	w := journal.NewWriter(&buf)

	cfg := DefaultConfig()
	cfg.Seed = "determinism"
	e, err := NewEngine(zap.NewNop(), cfg, Market{Source: gen}, WithJournal(w))
	require.NoError(t, err)

	result, err := e.Run(context.Background(), &momentum{securities: []string{"600000.XSHG", "688001.XSHG"}})
	require.NoError(t, err)
	require.Len(t, result.History, 60)
	require.NoError(t, w.Err())
	return buf.Bytes()
}

func TestEngine_DeterministicJournal(t *testing.T) {
	first := runJournaled(t)
	second := runJournaled(t)

	require.NotEmpty(t, first)
	assert.True(t, bytes.Equal(first, second))

	entries, err := journal.ReadAll(bytes.NewReader(first), time.UTC)
	require.NoError(t, err)
	snapshots := 0
	for _, e := range entries {
		if e.Snapshot != nil {
			snapshots++
		}
	}
	assert.Equal(t, 60, snapshots)
	require.NotNil(t, entries[0].RunID)
}
