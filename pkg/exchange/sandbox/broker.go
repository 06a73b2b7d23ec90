package sandbox

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/replay/pkg/bus"
	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/exchange"
	"github.com/peter-kozarec/replay/pkg/ledger"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const brokerComponentName = "exchange.sandbox.broker"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderNotOpen  = errors.New("order is not open")
)

type ticket struct {
	order     *common.Order
	info      exchange.SymbolInfo
	norm      NormalizedOrder
	validated bool
	lastBar   time.Time
}

// Broker simulates the exchange side of a run. Orders are validated on the
// first bar they meet, matched against bars, and every fill is booked into the
// ledger before it is announced on the router.
type Broker struct {
	logger  *zap.Logger
	router  *bus.Router
	ledger  *ledger.Ledger
	catalog *exchange.Catalog

	commission  money.CommissionModel
	slippage    SlippageModel
	volumeRatio fixed.Point
	executionID utility.ExecutionID
	traces      *utility.TraceGenerator

	validator *Validator
	matcher   *Matcher

	limits map[string]exchange.Limits

	orders      []*common.Order
	open        []*ticket
	fills       []common.Fill
	rejections  []common.Rejection
	nextOrderID common.OrderID
	nextFillID  common.FillID
}

func NewBroker(logger *zap.Logger, router *bus.Router, l *ledger.Ledger, catalog *exchange.Catalog, options ...Option) *Broker {
	b := &Broker{
		logger:      logger,
		router:      router,
		ledger:      l,
		catalog:     catalog,
		commission:  money.DefaultCommissionModel(),
		slippage:    NoSlippage{},
		volumeRatio: fixed.Zero,
		limits:      make(map[string]exchange.Limits),
	}
	for _, option := range options {
		option(b)
	}
	if b.traces == nil {
		b.traces = utility.NewTraceGenerator(b.executionID)
	}

	b.validator = NewValidator(catalog, b.commission)
	b.matcher = NewMatcher(b.commission, b.slippage, b.volumeRatio)
	return b
}

func (b *Broker) SetLimits(security string, limits exchange.Limits) {
	b.limits[security] = limits
}

func (b *Broker) Limits(security string) exchange.Limits {
	return b.limits[security]
}

// Submit registers an order as pending. It is validated and matched by the
// next Process call that sees a bar of its security.
func (b *Broker) Submit(order common.Order, ts time.Time) common.Order {
	b.nextOrderID++
	order.ID = b.nextOrderID
	order.Status = common.OrderStatusPending
	order.FilledQuantity = 0
	order.SubmittedAt = ts
	order.ExecutionID = b.executionID
	order.TraceID = b.traces.Next(ts)

	o := &order
	b.orders = append(b.orders, o)

	info, err := b.catalog.Lookup(order.Security)
	if err != nil {
		b.reject(o, &common.Rejection{
			Order:     order,
			Reason:    common.RejectReasonInvalidOrder,
			Detail:    err.Error(),
			TimeStamp: ts,
		})
		return *o
	}

	b.open = append(b.open, &ticket{order: o, info: info})
	b.post(bus.OrderEvent, *o)
	return *o
}

// Process validates queued orders and matches open orders of bar's security.
// An order is evaluated at most once per bar.
func (b *Broker) Process(bar common.Bar) {
	for _, t := range b.open {
		if t.order.Security != bar.Security || !t.order.IsOpen() || t.lastBar.Equal(bar.TimeStamp) {
			continue
		}
		t.lastBar = bar.TimeStamp

		if !t.validated {
			norm, rejection := b.validator.Validate(*t.order, bar, b.limits[bar.Security], b.ledger, t.info)
			if rejection != nil {
				b.reject(t.order, rejection)
				continue
			}
			t.norm = norm
			t.order.Quantity = norm.Quantity
			t.validated = true
		}

		b.match(t, bar)
	}
	b.compact()
}

func (b *Broker) match(t *ticket, bar common.Bar) {
	remaining := t.order.Remaining()
	if t.order.Side == common.OrderSideSell {
		remaining = min(remaining, b.ledger.Closeable(t.order.Security))
		if remaining == 0 {
			b.rejectUnfilled(t.order, common.RejectReasonInsufficientPosition, "position sold by another order", bar.TimeStamp)
			return
		}
	}

	fill, ok := b.matcher.Fill(t.norm, remaining, bar)
	if !ok {
		return
	}

	// slippage can lift the executed cost above cash; size the buy once at
	// the executed price
	if fill.Side == common.OrderSideBuy && fill.Value().Add(fill.Commission).Gt(b.ledger.Cash()) {
		qty := b.commission.MaxBuyQuantity(b.ledger.Cash(), fill.Price, t.norm.LotSize)
		if qty == 0 {
			b.endUnaffordable(t.order, fill.Price, bar.TimeStamp)
			return
		}
		fill = b.matcher.Resize(fill, qty)
	}

	if err := b.ledger.ApplyFill(fill); err != nil {
		b.logger.Error("unable to book fill", zap.Error(err), zap.Uint64("order_id", t.order.ID))
		b.rejectUnfilled(t.order, common.RejectReasonInvalidOrder, err.Error(), bar.TimeStamp)
		return
	}
	b.book(t.order, fill)
}

// endUnaffordable closes a buy whose next lot no longer fits cash. Orders
// with fills expire, the rest are rejected.
func (b *Broker) endUnaffordable(o *common.Order, price fixed.Point, ts time.Time) {
	if o.FilledQuantity == 0 {
		b.rejectUnfilled(o, common.RejectReasonInsufficientFunds, fmt.Sprintf("one lot at %s exceeds cash %s", price, b.ledger.Cash()), ts)
		return
	}
	b.expire(o, ts)
}

func (b *Broker) book(o *common.Order, fill common.Fill) {
	b.nextFillID++
	fill.ID = b.nextFillID
	fill.ExecutionID = b.executionID
	fill.TraceID = b.traces.Next(fill.TimeStamp)

	o.FilledQuantity += fill.Quantity
	if o.Remaining() == 0 {
		o.Status = common.OrderStatusFilled
	}
	b.fills = append(b.fills, fill)
	b.post(bus.OrderFillEvent, fill)
}

// rejectUnfilled rejects an order without fills. Partially filled orders stay
// pending until they fill or expire.
func (b *Broker) rejectUnfilled(o *common.Order, reason common.RejectReason, detail string, ts time.Time) {
	if o.FilledQuantity > 0 {
		return
	}
	b.reject(o, &common.Rejection{Order: *o, Reason: reason, Detail: detail, TimeStamp: ts})
}

func (b *Broker) reject(o *common.Order, r *common.Rejection) {
	o.Status = common.OrderStatusRejected
	o.RejectReason = r.Reason
	r.Order = *o
	r.ExecutionID = b.executionID
	r.TraceID = b.traces.Next(r.TimeStamp)

	b.rejections = append(b.rejections, *r)
	b.logger.Info("order rejected", r.Fields()...)
	b.post(bus.OrderRejectionEvent, *r)
}

// Cancel withdraws an open order.
func (b *Broker) Cancel(id common.OrderID, ts time.Time) (common.Order, error) {
	o := b.find(id)
	if o == nil {
		return common.Order{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if !o.IsOpen() {
		return *o, fmt.Errorf("%w: %d is %s", ErrOrderNotOpen, id, o.Status)
	}
	o.Status = common.OrderStatusCancelled
	b.compact()
	b.logger.Debug("order cancelled", zap.Uint64("order_id", id), zap.Time("ts", ts))
	b.post(bus.OrderCancelEvent, *o)
	return *o, nil
}

// ExpireAll ends the day for every open order.
func (b *Broker) ExpireAll(ts time.Time) {
	for _, t := range b.open {
		if !t.order.IsOpen() {
			continue
		}
		b.expire(t.order, ts)
	}
	b.open = b.open[:0]
}

func (b *Broker) expire(o *common.Order, ts time.Time) {
	o.Status = common.OrderStatusExpired
	b.logger.Debug("order expired", zap.Uint64("order_id", o.ID), zap.Time("ts", ts))
	b.post(bus.OrderExpiryEvent, *o)
}

func (b *Broker) Order(id common.OrderID) (common.Order, bool) {
	o := b.find(id)
	if o == nil {
		return common.Order{}, false
	}
	return *o, true
}

func (b *Broker) OpenOrders() []common.Order {
	out := make([]common.Order, 0, len(b.open))
	for _, t := range b.open {
		if t.order.IsOpen() {
			out = append(out, *t.order)
		}
	}
	return out
}

func (b *Broker) Orders() []common.Order {
	out := make([]common.Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = *o
	}
	return out
}

func (b *Broker) Fills() []common.Fill {
	out := make([]common.Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

func (b *Broker) Rejections() []common.Rejection {
	out := make([]common.Rejection, len(b.rejections))
	copy(out, b.rejections)
	return out
}

func (b *Broker) find(id common.OrderID) *common.Order {
	if id == 0 || id > common.OrderID(len(b.orders)) {
		return nil
	}
	return b.orders[id-1]
}

func (b *Broker) compact() {
	open := b.open[:0]
	for _, t := range b.open {
		if t.order.IsOpen() {
			open = append(open, t)
		}
	}
	for i := len(open); i < len(b.open); i++ {
		b.open[i] = nil
	}
	b.open = open
}

func (b *Broker) post(id bus.EventId, data interface{}) {
	if b.router == nil {
		return
	}
	if err := b.router.Post(id, data); err != nil {
		b.logger.Warn("unable to post event", zap.Stringer("event", id), zap.Error(err), zap.String("src", brokerComponentName))
	}
}
