// Package common holds the value types shared across the matching engine:
// sides, order types, status enums, and the order/trade/user records
// themselves. Nothing here owns state — the owning stores live in
// internal/book, internal/ledger and internal/market.
package common

import "time"

// Side is which side of the book an order rests on.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderType distinguishes resting limit orders from immediate-or-fail market
// orders.
type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "LIMIT"
	}
	return "MARKET"
}

// MarketSide is which half of a YES/NO pair a market represents.
type MarketSide int

const (
	Yes MarketSide = iota
	No
)

func (s MarketSide) String() string {
	if s == Yes {
		return "YES"
	}
	return "NO"
}

// MarketStatus is the lifecycle state of a tradeable market.
type MarketStatus int

const (
	MarketActive MarketStatus = iota
	MarketPaused
	MarketResolved
	MarketCancelled
)

func (s MarketStatus) String() string {
	switch s {
	case MarketActive:
		return "ACTIVE"
	case MarketPaused:
		return "PAUSED"
	case MarketResolved:
		return "RESOLVED"
	case MarketCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// EventStatus is the lifecycle state of a prediction-market event.
type EventStatus int

const (
	EventOpen EventStatus = iota
	EventResolved
)

func (s EventStatus) String() string {
	if s == EventOpen {
		return "OPEN"
	}
	return "RESOLVED"
}

// OutcomeStatus is the lifecycle state of one outcome within an event.
type OutcomeStatus int

const (
	OutcomeActive OutcomeStatus = iota
	OutcomeResolved
	OutcomeRejected
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeActive:
		return "ACTIVE"
	case OutcomeResolved:
		return "RESOLVED"
	case OutcomeRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus is the lifecycle state of a single order.
type OrderStatus int

const (
	OrderNew OrderStatus = iota
	OrderPartiallyFilled
	OrderFilled
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderNew:
		return "NEW"
	case OrderPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderFilled:
		return "FILLED"
	case OrderCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// MaxPrice is the top of the closed price range a binary-outcome contract
// trades in; 100 represents certainty.
const MaxPrice uint8 = 100

// Order is a resting or in-flight trade intent against a canonical
// (YES-side) market. Price and quantities are always in canonical terms by
// the time an Order reaches internal/book or internal/matching — denormalizing
// back to the user-facing market is internal/normalize's job.
type Order struct {
	OrderID       uint64
	MarketID      uint64 // canonical (YES) market id
	UserID        uint64
	Side          Side
	Type          OrderType
	Price         uint8 // 0..=100, meaningless for a resting MARKET order (never stored resting)
	OriginalQty   uint64
	RemainingQty  uint64
	Status        OrderStatus
	PlacedAt      time.Time
	ExchTimestamp time.Time
}

// Origin records how an order was originally addressed by its owner, so
// cancel/status/snapshot replies can denormalize canonical state back to the
// user-facing (market, side, price) the order was placed against.
type Origin struct {
	MarketID uint64 // user-facing market id (YES or NO)
	Side     Side   // user-facing side
	Price    uint8  // user-facing price
}

// Trade is one maker/taker fill produced by the Matching Core.
type Trade struct {
	TradeID      string
	MarketID     uint64 // canonical market id
	TakerOrderID uint64
	MakerOrderID uint64
	TakerUserID  uint64
	MakerUserID  uint64
	TakerSide    Side
	Price        uint8
	Quantity     uint64
	Timestamp    time.Time
}

// User is a cash balance and a sparse per-market position table.
type User struct {
	UserID    uint64
	Name      string
	Email     string
	Balance   int64
	Positions map[uint64]uint64 // marketID -> qty, never stored at zero
}

// Event is a logical binary prediction question, owning one or more Outcomes.
type Event struct {
	EventID          uint64
	Slug             string
	Title            string
	Description      string
	Category         string
	Status           EventStatus
	WinningOutcomeID *uint64
	CreatorID        uint64
}

// Outcome is one possible answer within an Event, owning a paired YES/NO
// market.
type Outcome struct {
	OutcomeID  uint64
	EventID    uint64
	Name       string
	Status     OutcomeStatus
	YesMarket  uint64
	NoMarket   uint64
}

// Market is one tradeable side of an Outcome.
type Market struct {
	MarketID       uint64
	Side           MarketSide
	PairedMarketID uint64
	EventID        uint64
	OutcomeID      uint64
	Status         MarketStatus
}

// IsCanonical reports whether m is the YES market of its pair — the only
// side an order book is physically maintained for.
func (m Market) IsCanonical() bool {
	return m.Side == Yes
}
