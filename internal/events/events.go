// Package events defines the domain event envelope the Engine Actor emits
// after every committed state change (spec.md §4.7) and the FIFO outbox that
// buffers them for internal/bus to publish to the db_events stream.
//
// Field shapes are pinned field-for-field to
// original_source/.../types/db_event_types.rs's DbEvent enum, with one
// deliberate omission: UserCreatedEvent there carries a plaintext password
// field, which has no business appearing on an event bus; it is dropped
// here rather than carried forward.
package events

import "time"

// Kind is the event_type discriminant, matching db_event_types.rs's
// #[serde(tag = "event_type")] values.
type Kind string

const (
	OrderPlaced     Kind = "order_placed"
	OrderCancelled  Kind = "order_cancelled"
	OrderModified   Kind = "order_modified"
	OrderFilled     Kind = "order_filled"
	TradeExecuted   Kind = "trade_executed"
	PositionUpdated Kind = "position_updated"
	BalanceUpdated  Kind = "balance_updated"
	UserCreated     Kind = "user_created"
	EventCreated    Kind = "event_created"
	EventResolved   Kind = "event_resolved"
	EventUpdated    Kind = "event_updated"
	EventDeleted    Kind = "event_deleted"
)

// Event is the envelope appended to the outbox; Kind selects which of the
// payload fields are meaningful, mirroring the tagged-union shape of the
// Rust original within a single Go struct so a single JSON marshal produces
// the flat {"event_type": ..., ...fields} shape db_events consumers expect.
type Event struct {
	Kind      Kind      `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	OrderPlacedData     *OrderPlacedData     `json:"-"`
	OrderCancelledData  *OrderCancelledData  `json:"-"`
	OrderModifiedData   *OrderModifiedData   `json:"-"`
	OrderFilledData     *OrderFilledData     `json:"-"`
	TradeExecutedData   *TradeExecutedData   `json:"-"`
	PositionUpdatedData *PositionUpdatedData `json:"-"`
	BalanceUpdatedData  *BalanceUpdatedData  `json:"-"`
	UserCreatedData     *UserCreatedData     `json:"-"`
	EventCreatedData    *EventCreatedData    `json:"-"`
	EventResolvedData   *EventResolvedData   `json:"-"`
	EventUpdatedData    *EventUpdatedData    `json:"-"`
	EventDeletedData    *EventDeletedData    `json:"-"`
}

type OrderPlacedData struct {
	OrderID      uint64 `json:"order_id"`
	UserID       uint64 `json:"user_id"`
	MarketID     uint64 `json:"market_id"`
	Side         string `json:"side"`
	Price        uint8  `json:"price"`
	OriginalQty  uint64 `json:"original_qty"`
	RemainingQty uint64 `json:"remaining_qty"`
}

type OrderCancelledData struct {
	OrderID  uint64 `json:"order_id"`
	UserID   uint64 `json:"user_id"`
	MarketID uint64 `json:"market_id"`
}

type OrderModifiedData struct {
	OrderID      uint64 `json:"order_id"`
	UserID       uint64 `json:"user_id"`
	MarketID     uint64 `json:"market_id"`
	Price        uint8  `json:"price"`
	OriginalQty  uint64 `json:"original_qty"`
	RemainingQty uint64 `json:"remaining_qty"`
}

type OrderFilledData struct {
	OrderID      uint64 `json:"order_id"`
	UserID       uint64 `json:"user_id"`
	MarketID     uint64 `json:"market_id"`
	FilledQty    uint64 `json:"filled_qty"`
	RemainingQty uint64 `json:"remaining_qty"`
	Status       string `json:"status"`
}

type TradeExecutedData struct {
	TradeID      string `json:"trade_id"`
	MarketID     uint64 `json:"market_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	TakerUserID  uint64 `json:"taker_user_id"`
	MakerUserID  uint64 `json:"maker_user_id"`
	Price        uint8  `json:"price"`
	Quantity     uint64 `json:"quantity"`
	TakerSide    string `json:"taker_side"`
}

type PositionUpdatedData struct {
	UserID   uint64 `json:"user_id"`
	MarketID uint64 `json:"market_id"`
	Quantity uint64 `json:"quantity"`
}

type BalanceUpdatedData struct {
	UserID  uint64 `json:"user_id"`
	Balance int64  `json:"balance"`
}

type UserCreatedData struct {
	UserID  uint64 `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

type OutcomeData struct {
	OutcomeID   uint64 `json:"outcome_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	YesMarketID uint64 `json:"yes_market_id"`
	NoMarketID  uint64 `json:"no_market_id"`
}

type EventCreatedData struct {
	EventID     uint64        `json:"event_id"`
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Status      string        `json:"status"`
	CreatedBy   uint64        `json:"created_by"`
	Outcomes    []OutcomeData `json:"outcomes"`
}

type EventResolvedData struct {
	EventID          uint64 `json:"event_id"`
	Status           string `json:"status"`
	ResolvedAt       string `json:"resolved_at"`
	WinningOutcomeID uint64 `json:"winning_outcome_id"`
}

type EventUpdatedData struct {
	EventID     uint64 `json:"event_id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Status      string `json:"status"`
}

type EventDeletedData struct {
	EventID uint64 `json:"event_id"`
}
