// Package engine implements the single-writer Engine Actor of spec.md §4.6:
// one goroutine drains a bounded command channel, serializing every mutation
// to the market registry, order books, and ledger. Grounded on the
// teacher's (saiputravu-Exchange) internal/net/server.go session-handler
// loop and internal/worker.go's tomb-supervised pool, generalized from a TCP
// accept loop to a command-channel drain loop, and on
// original_source/.../store/orderbook/commands.rs for the command
// enumeration this engine must expose (PlaceOrder/CancelOrder/ModifyOrder/
// InitMarkets/CloseEventMarkets/Split/Merge/CreateUser/Onramp/the Get*
// read commands).
package engine

import "duality/internal/common"

// Reply is the uniform result of executing a Command: Data holds the
// action-specific payload on success (nil on failure), Err is a
// *common.Error on failure. This mirrors the {status_code, success,
// message, data} envelope spec.md §6 requires on the reply bus — encoding
// Reply to that JSON shape is internal/bus's job, not this package's.
type Reply struct {
	Data any
	Err  error
}

// Command is anything the actor's loop can execute. Each concrete command
// type owns its own reply channel, typed to the data it produces — the Go
// analogue of the original's tagged oneshot-channel Command enum
// (original_source/.../store/orderbook/commands.rs).
type Command interface {
	execute(e *Engine)
}

// PlaceOrderCmd places a new order against a user-facing (possibly NO-side)
// market.
type PlaceOrderCmd struct {
	MarketID uint64
	UserID   uint64
	Side     common.Side
	Type     common.OrderType
	Price    uint8
	Qty      uint64
	Reply    chan Reply
}

// CancelOrderCmd cancels a resting order by its engine-assigned id.
type CancelOrderCmd struct {
	OrderID uint64
	Reply   chan Reply
}

// ModifyOrderCmd replaces an existing resting order's price/qty and
// re-matches it against the current book.
type ModifyOrderCmd struct {
	OrderID  uint64
	NewPrice uint8
	NewQty   uint64
	Reply    chan Reply
}

// InitMarketsCmd registers a batch of YES/NO market pairs.
type InitMarketsCmd struct {
	Metas []MarketMeta
	Reply chan Reply
}

// MarketMeta mirrors market.Meta at the command boundary — kept distinct so
// internal/engine's public surface doesn't require callers to import
// internal/market just to build a command.
type MarketMeta struct {
	EventID     uint64
	OutcomeID   uint64
	YesMarketID uint64
	NoMarketID  uint64
}

// CloseEventMarketsCmd resolves an event: pays winners, drains positions,
// cancels resting orders, and unregisters the event's markets.
type CloseEventMarketsCmd struct {
	EventID          uint64
	WinningOutcomeID uint64
	Reply            chan Reply
}

// SplitCmd converts cash into a matched YES+NO position pair.
type SplitCmd struct {
	UserID      uint64
	YesMarketID uint64
	Amount      uint64
	Reply       chan Reply
}

// MergeCmd converts a matched YES+NO position pair back into cash.
type MergeCmd struct {
	UserID      uint64
	YesMarketID uint64
	Reply       chan Reply
}

// CreateUserCmd registers a new user with a starting balance.
type CreateUserCmd struct {
	UserID  uint64
	Name    string
	Email   string
	Balance int64
	Reply   chan Reply
}

// OnrampCmd credits a user's cash balance unconditionally (external funding
// event, e.g. a card top-up already settled upstream).
type OnrampCmd struct {
	UserID uint64
	Amount int64
	Reply  chan Reply
}

// GetOrderBookCmd returns a denormalized snapshot of marketID's book.
type GetOrderBookCmd struct {
	MarketID uint64
	Reply    chan Reply
}

// GetOrderbooksByEventCmd returns a snapshot for every market of eventID.
type GetOrderbooksByEventCmd struct {
	EventID uint64
	Reply   chan Reply
}

// GetOrderbooksByOutcomeCmd returns a snapshot for every market of outcomeID.
type GetOrderbooksByOutcomeCmd struct {
	OutcomeID uint64
	Reply     chan Reply
}

// GetBestBidCmd returns marketID's best denormalized bid price.
type GetBestBidCmd struct {
	MarketID uint64
	Reply    chan Reply
}

// GetBestAskCmd returns marketID's best denormalized ask price.
type GetBestAskCmd struct {
	MarketID uint64
	Reply    chan Reply
}

// GetUserOpenOrdersCmd lists a user's resting orders, denormalized.
type GetUserOpenOrdersCmd struct {
	UserID uint64
	Reply  chan Reply
}

// GetOrderStatusCmd returns one order's current denormalized state.
type GetOrderStatusCmd struct {
	OrderID uint64
	Reply   chan Reply
}

// GetBalanceCmd returns a user's cash balance.
type GetBalanceCmd struct {
	UserID uint64
	Reply  chan Reply
}

// GetPositionCmd returns a user's held quantity in one market.
type GetPositionCmd struct {
	UserID   uint64
	MarketID uint64
	Reply    chan Reply
}

// GetUserPositionsCmd returns a user's full position table.
type GetUserPositionsCmd struct {
	UserID uint64
	Reply  chan Reply
}

func (c PlaceOrderCmd) execute(e *Engine)             { e.handlePlaceOrder(c) }
func (c CancelOrderCmd) execute(e *Engine)            { e.handleCancelOrder(c) }
func (c ModifyOrderCmd) execute(e *Engine)            { e.handleModifyOrder(c) }
func (c InitMarketsCmd) execute(e *Engine)            { e.handleInitMarkets(c) }
func (c CloseEventMarketsCmd) execute(e *Engine)      { e.handleCloseEventMarkets(c) }
func (c SplitCmd) execute(e *Engine)                  { e.handleSplit(c) }
func (c MergeCmd) execute(e *Engine)                  { e.handleMerge(c) }
func (c CreateUserCmd) execute(e *Engine)             { e.handleCreateUser(c) }
func (c OnrampCmd) execute(e *Engine)                 { e.handleOnramp(c) }
func (c GetOrderBookCmd) execute(e *Engine)           { e.handleGetOrderBook(c) }
func (c GetOrderbooksByEventCmd) execute(e *Engine)   { e.handleGetOrderbooksByEvent(c) }
func (c GetOrderbooksByOutcomeCmd) execute(e *Engine) { e.handleGetOrderbooksByOutcome(c) }
func (c GetBestBidCmd) execute(e *Engine)             { e.handleGetBestBid(c) }
func (c GetBestAskCmd) execute(e *Engine)             { e.handleGetBestAsk(c) }
func (c GetUserOpenOrdersCmd) execute(e *Engine)      { e.handleGetUserOpenOrders(c) }
func (c GetOrderStatusCmd) execute(e *Engine)         { e.handleGetOrderStatus(c) }
func (c GetBalanceCmd) execute(e *Engine)             { e.handleGetBalance(c) }
func (c GetPositionCmd) execute(e *Engine)            { e.handleGetPosition(c) }
func (c GetUserPositionsCmd) execute(e *Engine)       { e.handleGetUserPositions(c) }
