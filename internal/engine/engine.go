package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"duality/internal/book"
	"duality/internal/common"
	"duality/internal/events"
	"duality/internal/ledger"
	"duality/internal/market"
	"duality/internal/matching"
	"duality/internal/normalize"
	"duality/internal/reservation"
)

const defaultInboxSize = 256

// Metrics is the narrow surface the actor reports to; internal/metrics
// implements it over prometheus/client_golang. Kept as an interface here so
// this package never imports prometheus directly.
type Metrics interface {
	ObserveCommand(action string, d time.Duration)
	IncTrades(n int)
	SetRestingOrders(marketID uint64, count int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCommand(string, time.Duration) {}
func (noopMetrics) IncTrades(int)                        {}
func (noopMetrics) SetRestingOrders(uint64, int)         {}

// Engine is the single-writer actor: every field below is touched only from
// the command goroutine Run starts, per spec.md §5's scheduling model.
type Engine struct {
	registry *market.Registry
	books    map[uint64]*book.Book // keyed by canonical (YES) market id
	ledger   *ledger.Ledger
	reserve  *reservation.Manager
	matcher  *matching.Engine

	origins     map[uint64]common.Origin // order id -> user-facing placement
	nextOrderID uint64

	outbox  *events.Outbox
	metrics Metrics
	log     zerolog.Logger

	inbox chan Command
	t     *tomb.Tomb
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithMetrics wires a Metrics sink other than the no-op default.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger wires a zerolog.Logger other than zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithInboxSize overrides the bounded command channel's capacity.
func WithInboxSize(n int) Option {
	return func(e *Engine) { e.inbox = make(chan Command, n) }
}

// New builds an Engine with empty state. outbox may be nil, in which case
// events are dropped (useful for tests that only assert ledger/book state).
func New(outbox *events.Outbox, opts ...Option) *Engine {
	l := ledger.New()
	e := &Engine{
		registry: market.New(),
		books:    make(map[uint64]*book.Book),
		ledger:   l,
		origins:  make(map[uint64]common.Origin),
		outbox:   outbox,
		metrics:  noopMetrics{},
		log:      zerolog.Nop(),
		inbox:    make(chan Command, defaultInboxSize),
	}
	e.reserve = reservation.New(l)
	e.matcher = matching.New(e.reserve)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drains the inbox until ctx is cancelled, in a goroutine supervised by
// a tomb — grounded on the teacher's internal/net/server.go
// Run(ctx)/tomb.WithContext shape (saiputravu-Exchange). A panic in a
// handler is not recovered; it terminates the process.
func (e *Engine) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	e.t = t
	t.Go(func() error {
		for {
			select {
			case <-t.Dying():
				return nil
			case cmd := <-e.inbox:
				e.dispatch(cmd)
			}
		}
	})
	<-t.Dying()
	return t.Err()
}

// Submit enqueues cmd on the actor's inbox, blocking if it is full — the
// intended backpressure signal per spec.md §5.
func (e *Engine) Submit(cmd Command) {
	e.inbox <- cmd
}

func (e *Engine) dispatch(cmd Command) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveCommand(actionName(cmd), time.Since(start))
	}()
	cmd.execute(e)
}

func actionName(cmd Command) string {
	switch cmd.(type) {
	case PlaceOrderCmd:
		return "place-order"
	case CancelOrderCmd:
		return "cancel-order"
	case ModifyOrderCmd:
		return "modify-order"
	case InitMarketsCmd:
		return "init-event-markets"
	case CloseEventMarketsCmd:
		return "close-event-markets"
	case SplitCmd:
		return "split-order"
	case MergeCmd:
		return "merge-order"
	case CreateUserCmd:
		return "create-user"
	case OnrampCmd:
		return "onramp"
	case GetOrderBookCmd:
		return "get-orderbook"
	case GetOrderbooksByEventCmd:
		return "get-orderbooks-by-event"
	case GetOrderbooksByOutcomeCmd:
		return "get-orderbooks-by-outcome"
	case GetBestBidCmd:
		return "get-best-bid"
	case GetBestAskCmd:
		return "get-best-ask"
	case GetUserOpenOrdersCmd:
		return "get-open-orders"
	case GetOrderStatusCmd:
		return "get-order-status"
	case GetBalanceCmd:
		return "get-balance"
	case GetPositionCmd:
		return "get-position"
	case GetUserPositionsCmd:
		return "get-positions"
	default:
		return "unknown"
	}
}

func (e *Engine) emit(ev events.Event) {
	ev.Timestamp = time.Now()
	if e.outbox == nil {
		return
	}
	if !e.outbox.Enqueue(ev) {
		e.log.Warn().Str("event_type", string(ev.Kind)).Msg("outbox full, event dropped")
	}
}

func (e *Engine) denormOrigin(orderID uint64) common.Origin {
	if o, ok := e.origins[orderID]; ok {
		return o
	}
	return common.Origin{}
}

func (e *Engine) snapshotOrder(o *common.Order, origin common.Origin) common.Order {
	out := *o
	out.MarketID = origin.MarketID
	out.Side = origin.Side
	out.Price = normalize.DenormalizePrice(origin.MarketID, o.Price, e.registry)
	return out
}
