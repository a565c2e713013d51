// Package matching implements the Matching Core (spec.md §4.3): the
// price-time priority sweep that crosses an incoming taker order against
// the resting side of a book, producing trades and settling both legs
// through a reservation.Manager.
//
// The algorithm is generalized from the teacher's
// internal/engine/orderbook.go (saiputravu-Exchange) BTreeG walk, with the
// exact settlement arithmetic — price-improvement refund on a BID taker,
// symmetric revenue/debit on the maker leg, maker removal at
// remaining_qty == 0 — pinned to original_source/.../store/matching.rs.
package matching

import (
	"time"

	"github.com/google/uuid"

	"duality/internal/book"
	"duality/internal/common"
	"duality/internal/reservation"
)

// Engine runs the sweep for a single canonical book, settling fills through
// a reservation.Manager.
type Engine struct {
	reserve *reservation.Manager
}

// New builds a matching Engine over the given reservation manager.
func New(r *reservation.Manager) *Engine {
	return &Engine{reserve: r}
}

// Match sweeps taker against b's resting opposite side until taker is
// exhausted, the opposite side is empty, or (for a LIMIT taker) the best
// opposite price no longer crosses taker's limit. taker's RemainingQty is
// mutated in place; it is never itself inserted into b — callers rest it
// afterward if RemainingQty > 0 and Type == Limit.
func (e *Engine) Match(b *book.Book, taker *common.Order) ([]common.Trade, error) {
	opp := taker.Side.Opposite()
	var trades []common.Trade

	if taker.Type == common.Market && taker.Side == common.Bid {
		affordable, err := e.affordableQty(b, taker.UserID, taker.RemainingQty)
		if err != nil {
			return nil, err
		}
		taker.RemainingQty = affordable
		taker.OriginalQty = affordable
	}

	for taker.RemainingQty > 0 {
		price, ok := bestPrice(b, opp)
		if !ok {
			break
		}
		if taker.Type == common.Limit && !crosses(taker.Side, taker.Price, price) {
			break
		}

		makerID, ok := b.PopFront(opp, price)
		if !ok {
			break
		}
		maker, ok := b.Order(makerID)
		if !ok {
			// Queue/id-map desync should never happen; skip defensively.
			continue
		}

		fillQty := taker.RemainingQty
		if maker.RemainingQty < fillQty {
			fillQty = maker.RemainingQty
		}
		fillPrice := price

		taker.RemainingQty -= fillQty
		maker.RemainingQty -= fillQty
		b.DecrementLevel(opp, price, fillQty)
		b.SetLastPrice(fillPrice)

		// A LIMIT BID pre-paid taker.Price*qty at Reserve time, so its per-fill
		// settlement is a refund of the price improvement. A MARKET BID never
		// reserved anything (see affordableQty above), so its "refund" must
		// instead be the actual debit: limitPrice 0 makes the shared formula
		// in ApplyFillTaker compute -fillPrice*fillQty, an outright debit.
		limitPrice := taker.Price
		if taker.Type == common.Market && taker.Side == common.Bid {
			limitPrice = 0
		}
		if err := e.reserve.ApplyFillTaker(taker, limitPrice, fillPrice, fillQty); err != nil {
			return trades, err
		}
		if err := e.reserve.ApplyFillMaker(maker, fillPrice, fillQty); err != nil {
			return trades, err
		}

		trades = append(trades, common.Trade{
			TradeID:      uuid.NewString(),
			MarketID:     b.MarketID,
			TakerOrderID: taker.OrderID,
			MakerOrderID: maker.OrderID,
			TakerUserID:  taker.UserID,
			MakerUserID:  maker.UserID,
			TakerSide:    taker.Side,
			Price:        fillPrice,
			Quantity:     fillQty,
			Timestamp:    time.Now(),
		})

		if maker.RemainingQty == 0 {
			maker.Status = common.OrderFilled
			b.RemoveResting(maker.OrderID)
		} else {
			maker.Status = common.OrderPartiallyFilled
			// Maker stays at the head of its queue; requeue it there since
			// PopFront already removed it from the FIFO slice.
			b.RequeueFront(opp, price, maker.OrderID)
		}
	}

	if taker.RemainingQty == 0 {
		taker.Status = common.OrderFilled
	} else if taker.RemainingQty < taker.OriginalQty {
		taker.Status = common.OrderPartiallyFilled
	}

	return trades, nil
}

// affordableQty walks the ask side best-price-first, summing cumulative
// cost, and returns the largest prefix of requestedQty the user's current
// balance can cover. A MARKET BID never reserves a fixed cash amount up
// front (it has no limit price to reserve against), so this clamp is what
// keeps matching's per-fill debits from ever failing mid-sweep — the
// "no partial, uncompensated mutation" invariant of spec.md §4.3 is upheld
// by preventing the failure, rather than unwinding trades after the fact.
// Documented as a deliberate design choice in DESIGN.md; original_source
// has no equivalent (its balance.rs::reserve_balance is only ever exercised
// with a LIMIT order's price).
func (e *Engine) affordableQty(b *book.Book, userID uint64, requestedQty uint64) (uint64, error) {
	balance, err := e.reserve.Balance(userID)
	if err != nil {
		return 0, err
	}
	if balance <= 0 {
		return 0, common.NewError(common.InsufficientBalance, "user %d has no available balance for a MARKET order", userID)
	}

	remaining := requestedQty
	var affordable uint64
	var spent int64

	for _, level := range b.Asks() {
		if remaining == 0 {
			break
		}
		qty := level.Quantity
		if qty > remaining {
			qty = remaining
		}
		for qty > 0 {
			cost := int64(level.Price)
			if cost == 0 {
				affordable += qty
				remaining -= qty
				break
			}
			affordableAtLevel := uint64((balance - spent) / cost)
			if affordableAtLevel >= qty {
				affordable += qty
				spent += cost * int64(qty)
				remaining -= qty
				break
			}
			affordable += affordableAtLevel
			spent += cost * int64(affordableAtLevel)
			remaining -= affordableAtLevel
			return affordable, nil
		}
	}

	if affordable == 0 {
		return 0, common.NewError(common.InsufficientBalance, "user %d cannot afford any quantity at current ask prices", userID)
	}
	return affordable, nil
}

func bestPrice(b *book.Book, side common.Side) (uint8, bool) {
	if side == common.Bid {
		return b.BestBid()
	}
	return b.BestAsk()
}

// crosses reports whether a taker limit at takerPrice crosses a resting
// opposite level at restPrice: a BID taker crosses asks at or below its
// price; an ASK taker crosses bids at or above its price.
func crosses(takerSide common.Side, takerPrice, restPrice uint8) bool {
	if takerSide == common.Bid {
		return takerPrice >= restPrice
	}
	return takerPrice <= restPrice
}
