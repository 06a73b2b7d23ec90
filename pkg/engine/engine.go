package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/adjustment"
	"github.com/peter-kozarec/replay/pkg/bus"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/exchange/sandbox"
	"github.com/peter-kozarec/replay/pkg/journal"
	"github.com/peter-kozarec/replay/pkg/ledger"
	"github.com/peter-kozarec/replay/pkg/middleware"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const engineComponentName = "engine"

var ErrAlreadyRun = errors.New("engine already ran")

// Market is the data a run replays.
type Market struct {
	Source  datasource.BarSource
	Catalog *exchange.Catalog
	// Table holds the price adjustment factors. When nil it is derived from
	// Actions.
	Table   *adjustment.Table
	Actions []common.CorporateAction
}

// Result is the immutable outcome of a run.
type Result struct {
	RunID        utility.ExecutionID
	History      []common.Snapshot
	Fills        []common.Fill
	Rejections   []common.Rejection
	Orders       []common.Order
	Realizations []ledger.Realization
}

func (r Result) Final() (common.Snapshot, bool) {
	if len(r.History) == 0 {
		return common.Snapshot{}, false
	}
	return r.History[len(r.History)-1], true
}

type tradingDay struct {
	date   time.Time
	stamps []time.Time
}

// Engine replays bars day by day through the lifecycle phases and drives a
// strategy against the simulated exchange.
type Engine struct {
	logger *zap.Logger
	cfg    Config
	market Market

	tradingPhases PhaseMask
	slippage      sandbox.SlippageModel
	journal       *journal.Writer
	monitor       *middleware.Monitor
	telemetry     *middleware.Telemetry

	runID   utility.ExecutionID
	router  *bus.Router
	ledger  *ledger.Ledger
	broker  *sandbox.Broker
	cache   *datasource.Cache
	catalog *exchange.Catalog
	table   *adjustment.Table
	gate    gate
	clock   Clock
	sched   scheduler
	handle  *Handle

	subscribed   []string
	universe     []string
	days         []tradingDay
	bars         map[string]map[int64]common.Bar
	actions      map[int64][]common.CorporateAction
	lastClose    map[string]fixed.Point
	current      map[string]common.Bar
	visibleUntil time.Time
	history      []common.Snapshot
}

func NewEngine(logger *zap.Logger, cfg Config, market Market, options ...Option) (*Engine, error) {
	if market.Source == nil {
		return nil, errors.New("market has no bar source")
	}
	if !cfg.Frequency.Valid() {
		return nil, fmt.Errorf("invalid frequency %q", cfg.Frequency)
	}
	if !cfg.Cash.IsPos() {
		return nil, fmt.Errorf("initial cash must be positive, got %s", cfg.Cash)
	}
	if !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("end %s before start %s", cfg.End, cfg.Start)
	}
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = DefaultConfig().EventCapacity
	}

	e := &Engine{
		logger:        logger,
		cfg:           cfg,
		market:        market,
		tradingPhases: TradingPhases,
		slippage:      sandbox.NoSlippage{},
		catalog:       market.Catalog,
		table:         market.Table,
		bars:          make(map[string]map[int64]common.Bar),
		actions:       make(map[int64][]common.CorporateAction),
		lastClose:     make(map[string]fixed.Point),
		current:       make(map[string]common.Bar),
	}
	for _, option := range options {
		option(e)
	}

	if e.catalog == nil {
		e.catalog = exchange.NewCatalog(exchange.DefaultRules())
	}
	if e.table == nil {
		table, err := adjustment.FromActions(market.Actions)
		if err != nil {
			return nil, fmt.Errorf("unable to build adjustment table: %w", err)
		}
		e.table = table
	}
	for _, a := range market.Actions {
		k := common.CalendarDate(a.ExDate).UnixNano()
		e.actions[k] = append(e.actions[k], a)
	}
	for _, list := range e.actions {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Security < list[j].Security })
	}

	e.runID = utility.NewExecutionID(cfg.Seed)
	e.gate = newGate(e.tradingPhases)
	e.handle = &Handle{e: e}
	e.cache = datasource.NewCache(e.table)
	e.ledger = ledger.NewLedger(cfg.Cash)
	e.router = bus.NewRouter(logger, cfg.EventCapacity)
	e.broker = sandbox.NewBroker(logger, e.router, e.ledger, e.catalog,
		sandbox.WithCommissionModel(cfg.Commission),
		sandbox.WithSlippageModel(e.slippage),
		sandbox.WithVolumeRatio(cfg.VolumeRatio),
		sandbox.WithExecutionID(e.runID))
	e.wireRouter()

	return e, nil
}

func (e *Engine) wireRouter() {
	var (
		bars       []func(bus.BarEventHandler) bus.BarEventHandler
		orders     []func(bus.OrderEventHandler) bus.OrderEventHandler
		rejections []func(bus.OrderRejectionEventHandler) bus.OrderRejectionEventHandler
		fills      []func(bus.OrderFillEventHandler) bus.OrderFillEventHandler
		expiries   []func(bus.OrderExpiryEventHandler) bus.OrderExpiryEventHandler
		cancels    []func(bus.OrderCancelEventHandler) bus.OrderCancelEventHandler
		actions    []func(bus.CorporateActionEventHandler) bus.CorporateActionEventHandler
		snapshots  []func(bus.SnapshotEventHandler) bus.SnapshotEventHandler
	)
	if e.monitor != nil {
		bars = append(bars, e.monitor.WithBar)
		orders = append(orders, e.monitor.WithOrder)
		rejections = append(rejections, e.monitor.WithOrderRejection)
		fills = append(fills, e.monitor.WithOrderFill)
		expiries = append(expiries, e.monitor.WithOrderExpiry)
		cancels = append(cancels, e.monitor.WithOrderCancel)
		actions = append(actions, e.monitor.WithCorporateAction)
		snapshots = append(snapshots, e.monitor.WithSnapshot)
	}
	if e.telemetry != nil {
		bars = append(bars, e.telemetry.WithBar)
		orders = append(orders, e.telemetry.WithOrder)
		rejections = append(rejections, e.telemetry.WithOrderRejection)
		fills = append(fills, e.telemetry.WithOrderFill)
		expiries = append(expiries, e.telemetry.WithOrderExpiry)
		cancels = append(cancels, e.telemetry.WithOrderCancel)
		snapshots = append(snapshots, e.telemetry.WithSnapshot)
	}
	if e.journal != nil {
		rejections = append(rejections, e.journal.WithOrderRejection)
		fills = append(fills, e.journal.WithOrderFill)
		snapshots = append(snapshots, e.journal.WithSnapshot)
	}

	e.router.OnBar = middleware.Chain(bars...)(middleware.NoopBarHdl)
	e.router.OnOrder = middleware.Chain(orders...)(middleware.NoopOrderHdl)
	e.router.OnOrderRejection = middleware.Chain(rejections...)(middleware.NoopOrderRjctHdl)
	e.router.OnOrderFill = middleware.Chain(fills...)(middleware.NoopOrderFillHdl)
	e.router.OnOrderExpiry = middleware.Chain(expiries...)(middleware.NoopOrderHdl)
	e.router.OnOrderCancel = middleware.Chain(cancels...)(middleware.NoopOrderHdl)
	e.router.OnCorporateAction = middleware.Chain(actions...)(middleware.NoopCorpActHdl)
	e.router.OnSnapshot = middleware.Chain(snapshots...)(middleware.NoopSnapshotHdl)
}

func (e *Engine) RunID() utility.ExecutionID {
	return e.runID
}

func (e *Engine) Clock() Clock {
	return e.clock
}

func (e *Engine) Router() *bus.Router {
	return e.router
}

// Run replays every trading day in the configured range. The context is
// checked between bars; a cancelled run returns the context error and no
// result.
func (e *Engine) Run(ctx context.Context, strategy Strategy) (Result, error) {
	if e.clock.Phase != PhaseUninitialized {
		return Result{}, ErrAlreadyRun
	}
	defer e.handle.detach()

	if err := e.enter(PhaseInitialized); err != nil {
		return Result{}, err
	}
	if err := strategy.Initialize(ctx, e.handle); err != nil {
		return Result{}, fmt.Errorf("initialize: %w", err)
	}
	if err := e.load(); err != nil {
		return Result{}, err
	}
	if e.journal != nil {
		if err := e.journal.WriteHeader(e.runID); err != nil {
			return Result{}, err
		}
	}

	e.logger.Info("run started",
		zap.String("run_id", e.runID.String()),
		zap.Strings("universe", e.universe),
		zap.Int("days", len(e.days)),
		zap.String("frequency", string(e.cfg.Frequency)),
		zap.String("cash", e.cfg.Cash.String()))

	for _, day := range e.days {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := e.runDay(ctx, strategy, day); err != nil {
			return Result{}, err
		}
	}

	if err := e.enter(PhaseTerminated); err != nil {
		return Result{}, err
	}

	result := e.result()
	if final, ok := result.Final(); ok {
		e.logger.Info("run finished",
			zap.String("run_id", e.runID.String()),
			zap.Int("fills", len(result.Fills)),
			zap.Int("rejections", len(result.Rejections)),
			zap.String("total_value", final.TotalValue.String()))
	}
	e.router.GetStatistics().Print(e.logger)
	hits, misses := e.cache.Stats()
	e.logger.Debug("history cache", zap.Uint64("hits", hits), zap.Uint64("misses", misses))
	return result, nil
}

func (e *Engine) enter(p Phase) error {
	if err := e.clock.enter(p); err != nil {
		return err
	}
	e.logger.Debug("phase", zap.Stringer("phase", p), zap.Time("date", e.clock.Date), zap.String("src", engineComponentName))
	return nil
}

// load reads every subscribed series and builds the trading calendar from
// the days that have at least one bar within the range.
func (e *Engine) load() error {
	seen := make(map[string]struct{})
	for _, s := range append(append([]string{}, e.cfg.Securities...), e.subscribed...) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			e.universe = append(e.universe, s)
		}
	}
	if len(e.universe) == 0 {
		return ErrNoSecurities
	}
	sort.Strings(e.universe)

	start := common.CalendarDate(e.cfg.Start)
	var end time.Time
	if !e.cfg.End.IsZero() {
		end = common.CalendarDate(e.cfg.End)
	}

	stamps := make(map[int64]time.Time)
	for _, security := range e.universe {
		if _, err := e.catalog.Lookup(security); err != nil {
			e.catalog.Add(exchange.SymbolFromCode(security))
		}

		series, err := e.cache.Load(e.market.Source, security, e.cfg.Frequency)
		if err != nil {
			return newDataIntegrityError(security, err)
		}

		byStamp := make(map[int64]common.Bar)
		for _, b := range series {
			day := common.CalendarDate(b.TimeStamp)
			if day.Before(start) {
				if !b.IsSuspended() {
					e.lastClose[security] = b.Close
				}
				continue
			}
			if !end.IsZero() && day.After(end) {
				break
			}
			byStamp[b.TimeStamp.UnixNano()] = b
			stamps[b.TimeStamp.UnixNano()] = b.TimeStamp
		}
		e.bars[security] = byStamp
	}

	ordered := make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		ordered = append(ordered, ts)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	for _, ts := range ordered {
		day := common.TradingDay(ts)
		if n := len(e.days); n == 0 || !e.days[n-1].date.Equal(day) {
			e.days = append(e.days, tradingDay{date: day})
		}
		last := &e.days[len(e.days)-1]
		last.stamps = append(last.stamps, ts)
	}
	if len(e.days) == 0 {
		return fmt.Errorf("%w: %s to %s", ErrNoTradingDays, e.cfg.Start.Format(time.DateOnly), e.cfg.End.Format(time.DateOnly))
	}
	return nil
}

func (e *Engine) runDay(ctx context.Context, strategy Strategy, day tradingDay) error {
	if err := e.preMarket(ctx, strategy, day); err != nil {
		return err
	}
	if err := e.session(ctx, strategy, day); err != nil {
		return err
	}
	return e.postMarket(ctx, strategy, day)
}

func (e *Engine) preMarket(ctx context.Context, strategy Strategy, day tradingDay) error {
	e.clock.Date = day.date
	if err := e.clock.advance(day.date); err != nil {
		return err
	}
	if err := e.enter(PhasePreMarket); err != nil {
		return err
	}
	e.visibleUntil = day.date.Add(-time.Nanosecond)
	clear(e.current)

	e.ledger.StartDay()
	if err := e.applyCorporateActions(day.date); err != nil {
		return err
	}
	e.setLimits(day)
	if err := e.router.Drain(ctx); err != nil {
		return err
	}

	if err := e.sched.runDaily(ctx, e.handle, slotBeforeOpen); err != nil {
		return err
	}
	if err := strategy.BeforeSession(ctx, e.handle); err != nil {
		return fmt.Errorf("before session %s: %w", day.date.Format(time.DateOnly), err)
	}
	return e.router.Drain(ctx)
}

func (e *Engine) session(ctx context.Context, strategy Strategy, day tradingDay) error {
	if err := e.enter(PhaseInSession); err != nil {
		return err
	}

	for _, ts := range day.stamps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.clock.advance(ts); err != nil {
			return err
		}
		e.clock.BarIndex++
		e.visibleUntil = ts

		slice := e.slice(ts)
		for _, b := range slice.Bars {
			e.current[b.Security] = b
			if !b.IsSuspended() {
				e.ledger.Mark(b.Security, b.Close)
				e.lastClose[b.Security] = b.Close
			}
		}
		for _, b := range slice.Bars {
			e.broker.Process(b)
			e.post(bus.BarEvent, b)
		}
		if err := e.router.Drain(ctx); err != nil {
			return err
		}

		if err := strategy.OnBar(ctx, e.handle, slice); err != nil {
			return fmt.Errorf("on bar %s: %w", ts, err)
		}
		if err := e.sched.runInterval(ctx, e.handle, e.clock.BarIndex); err != nil {
			return err
		}
		if err := e.sched.runIntraday(ctx, e.handle, day.date, ts); err != nil {
			return err
		}
		if err := e.router.Drain(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) postMarket(ctx context.Context, strategy Strategy, day tradingDay) error {
	if err := e.enter(PhasePostMarket); err != nil {
		return err
	}
	closedAt := day.stamps[len(day.stamps)-1]

	e.broker.ExpireAll(closedAt)
	if err := e.router.Drain(ctx); err != nil {
		return err
	}

	if err := strategy.AfterSession(ctx, e.handle); err != nil {
		return fmt.Errorf("after session %s: %w", day.date.Format(time.DateOnly), err)
	}
	if err := e.sched.runDaily(ctx, e.handle, slotAfterClose); err != nil {
		return err
	}

	snapshot := e.ledger.Snapshot(closedAt)
	e.history = append(e.history, snapshot)
	e.post(bus.SnapshotEvent, snapshot)
	if err := e.router.Drain(ctx); err != nil {
		return err
	}
	e.logger.Debug("session closed", snapshot.Fields()...)

	if e.journal != nil && e.journal.Err() != nil {
		return e.journal.Err()
	}
	return nil
}

// slice collects the bars stamped ts. A security without a bar at ts is
// treated as suspended and gets a zero volume bar at its last close.
func (e *Engine) slice(ts time.Time) Slice {
	s := Slice{TimeStamp: ts, Bars: make([]common.Bar, 0, len(e.universe))}
	for _, security := range e.universe {
		b, ok := e.bars[security][ts.UnixNano()]
		if !ok {
			last := e.lastClose[security]
			b = common.Bar{
				Security:  security,
				Frequency: e.cfg.Frequency,
				TimeStamp: ts,
				Open:      last,
				High:      last,
				Low:       last,
				Close:     last,
				PreClose:  last,
			}
		}
		s.Bars = append(s.Bars, b)
	}
	return s
}

// applyCorporateActions books the ex-date effects on held positions:
// dividend cash first, then the cost basis factor, then bonus shares.
func (e *Engine) applyCorporateActions(day time.Time) error {
	actions := e.actions[common.CalendarDate(day).UnixNano()]
	for _, a := range actions {
		e.post(bus.CorporateActionEvent, a)
	}

	for _, security := range e.universe {
		if _, held := e.ledger.Position(security); !held {
			continue
		}
		factor, hasFactor := e.table.FactorOn(security, day)

		for _, a := range actions {
			if a.Security != security || !a.CashPerShare.IsPos() {
				continue
			}
			amount, err := e.ledger.CreditDividend(security, a.CashPerShare)
			if err != nil {
				return fmt.Errorf("dividend of %s: %w", security, err)
			}
			e.logger.Info("dividend credited", zap.String("security", security), zap.String("amount", amount.String()))
		}
		if hasFactor {
			if err := e.ledger.ApplyCorporateAction(security, factor); err != nil {
				return fmt.Errorf("adjusting %s: %w", security, err)
			}
			e.logger.Info("cost basis adjusted",
				zap.String("security", security),
				zap.String("a", factor.A.String()),
				zap.String("b", factor.B.String()))
		}
		for _, a := range actions {
			if a.Security != security || !a.ShareRatio.IsPos() {
				continue
			}
			if err := e.ledger.ApplySplit(security, a.ShareRatio); err != nil {
				return fmt.Errorf("bonus shares of %s: %w", security, err)
			}
		}
	}
	return nil
}

// setLimits prices the daily band from the bar's own pre-close, falling back
// to the previous close rebased by the day's adjustment factor.
func (e *Engine) setLimits(day tradingDay) {
	for _, security := range e.universe {
		info, err := e.catalog.Lookup(security)
		if err != nil {
			continue
		}

		preClose := fixed.Zero
		if b, ok := e.firstBar(security, day); ok && b.PreClose.IsPos() {
			preClose = b.PreClose
		} else if last, ok := e.lastClose[security]; ok {
			preClose = last
			if f, ok := e.table.FactorOn(security, day.date); ok {
				preClose = money.RoundPrice(f.Apply(last))
			}
		}

		var limits exchange.Limits
		if preClose.IsPos() {
			limits = e.catalog.LimitPrices(info, preClose)
		}
		e.broker.SetLimits(security, limits)
	}
}

func (e *Engine) firstBar(security string, day tradingDay) (common.Bar, bool) {
	series := e.bars[security]
	for _, ts := range day.stamps {
		if b, ok := series[ts.UnixNano()]; ok {
			return b, true
		}
	}
	return common.Bar{}, false
}

func (e *Engine) post(id bus.EventId, data interface{}) {
	if err := e.router.Post(id, data); err != nil {
		e.logger.Warn("unable to post event", zap.Stringer("event", id), zap.Error(err), zap.String("src", engineComponentName))
	}
}

func (e *Engine) result() Result {
	history := make([]common.Snapshot, len(e.history))
	copy(history, e.history)
	return Result{
		RunID:        e.runID,
		History:      history,
		Fills:        e.broker.Fills(),
		Rejections:   e.broker.Rejections(),
		Orders:       e.broker.Orders(),
		Realizations: e.ledger.Realizations(),
	}
}
