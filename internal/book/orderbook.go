// Package book implements the per-canonical-market OrderBookData of
// spec.md §4.2: an ordered map from price to aggregate remaining quantity
// per side, a FIFO queue of resting order ids per price level, and a flat
// map from order id to the full Order. It does not decide whether to cross
// — internal/matching does — it only exposes AddResting/RemoveResting and
// the price-ordered views matching needs.
//
// Generalized from internal/engine/orderbook.go's btree.BTreeG[*PriceLevel]
// (teacher: saiputravu-Exchange) to the tuple of structures
// original_source/.../types/orderbook_types.rs::OrderbookData actually
// specifies, keeping tidwall/btree as the ordering structure.
package book

import (
	"github.com/tidwall/btree"

	"duality/internal/common"
)

// Level is one denormalized price/quantity pair, as returned in a snapshot.
type Level struct {
	Price    uint8
	Quantity uint64
}

// Book is the order book for a single canonical (YES) market.
type Book struct {
	MarketID uint64

	bids *btree.Map[uint8, uint64] // price -> aggregate remaining qty
	asks *btree.Map[uint8, uint64]

	bidQueue map[uint8][]uint64 // price -> FIFO order ids
	askQueue map[uint8][]uint64

	orders map[uint64]*common.Order // order id -> full order

	lastPrice    uint8
	hasLastPrice bool
}

// New builds an empty book for marketID.
func New(marketID uint64) *Book {
	return &Book{
		MarketID: marketID,
		bids:     btree.NewMap[uint8, uint64](0),
		asks:     btree.NewMap[uint8, uint64](0),
		bidQueue: make(map[uint8][]uint64),
		askQueue: make(map[uint8][]uint64),
		orders:   make(map[uint64]*common.Order),
	}
}

func (b *Book) levels(side common.Side) (*btree.Map[uint8, uint64], map[uint8][]uint64) {
	if side == common.Bid {
		return b.bids, b.bidQueue
	}
	return b.asks, b.askQueue
}

// AddResting inserts order into the book at its canonical price: appends its
// id to that level's FIFO queue and adds its remaining quantity to the
// aggregate. order must already carry RemainingQty > 0.
func (b *Book) AddResting(order *common.Order) {
	agg, queue := b.levels(order.Side)

	qty, _ := agg.Get(order.Price)
	agg.Set(order.Price, qty+order.RemainingQty)
	queue[order.Price] = append(queue[order.Price], order.OrderID)
	b.orders[order.OrderID] = order
}

// RemoveResting is the inverse of AddResting: subtracts from the aggregate,
// removes the id from its queue (dropping the queue/level if now empty), and
// drops the order from the id map.
func (b *Book) RemoveResting(orderID uint64) {
	order, ok := b.orders[orderID]
	if !ok {
		return
	}
	agg, queue := b.levels(order.Side)

	ids := queue[order.Price]
	for i, id := range ids {
		if id == orderID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(queue, order.Price)
	} else {
		queue[order.Price] = ids
	}

	if qty, found := agg.Get(order.Price); found {
		if qty <= order.RemainingQty {
			agg.Delete(order.Price)
		} else {
			agg.Set(order.Price, qty-order.RemainingQty)
		}
	}

	delete(b.orders, orderID)
}

// DecrementLevel reduces the aggregate quantity at price on side by qty,
// without touching the queue or id map — used mid-match after a maker's
// remaining_qty has already been decremented in place.
func (b *Book) DecrementLevel(side common.Side, price uint8, qty uint64) {
	agg, _ := b.levels(side)
	cur, ok := agg.Get(price)
	if !ok {
		return
	}
	if cur <= qty {
		agg.Delete(price)
	} else {
		agg.Set(price, cur-qty)
	}
}

// PopFront removes and returns the order id at the head of side's queue at
// price, or false if the level has no queue.
func (b *Book) PopFront(side common.Side, price uint8) (uint64, bool) {
	_, queue := b.levels(side)
	ids, ok := queue[price]
	if !ok || len(ids) == 0 {
		return 0, false
	}
	id := ids[0]
	if len(ids) == 1 {
		delete(queue, price)
	} else {
		queue[price] = ids[1:]
	}
	return id, true
}

// RequeueFront reinserts orderID at the front of side's queue at price —
// used when a partially-filled maker must keep priority at its level after
// matching.Engine pops it off to inspect it.
func (b *Book) RequeueFront(side common.Side, price uint8, orderID uint64) {
	_, queue := b.levels(side)
	queue[price] = append([]uint64{orderID}, queue[price]...)
}

// Order looks up the full resting order by id.
func (b *Book) Order(orderID uint64) (*common.Order, bool) {
	o, ok := b.orders[orderID]
	return o, ok
}

// BestBid returns the highest bid price with resting quantity.
func (b *Book) BestBid() (uint8, bool) {
	var price uint8
	var found bool
	b.bids.Reverse(func(k uint8, _ uint64) bool {
		price, found = k, true
		return false
	})
	return price, found
}

// BestAsk returns the lowest ask price with resting quantity.
func (b *Book) BestAsk() (uint8, bool) {
	var price uint8
	var found bool
	b.asks.Scan(func(k uint8, _ uint64) bool {
		price, found = k, true
		return false
	})
	return price, found
}

// SetLastPrice records the price of the most recent fill on this book.
func (b *Book) SetLastPrice(price uint8) {
	b.lastPrice = price
	b.hasLastPrice = true
}

// LastPrice returns the book's last traded price, if any.
func (b *Book) LastPrice() (uint8, bool) {
	return b.lastPrice, b.hasLastPrice
}

// Bids returns resting bid levels, best (highest) first.
func (b *Book) Bids() []Level {
	var out []Level
	b.bids.Reverse(func(k uint8, v uint64) bool {
		out = append(out, Level{Price: k, Quantity: v})
		return true
	})
	return out
}

// Asks returns resting ask levels, best (lowest) first.
func (b *Book) Asks() []Level {
	var out []Level
	b.asks.Scan(func(k uint8, v uint64) bool {
		out = append(out, Level{Price: k, Quantity: v})
		return true
	})
	return out
}

// Orders returns every resting order in the book, order unspecified — used
// by CloseEventMarkets to cancel the whole book.
func (b *Book) Orders() []*common.Order {
	out := make([]*common.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}
