// Package normalize implements the YES/NO Normalizer and the Split/Merge
// primitives of spec.md §4.5. Every order that reaches internal/book or
// internal/matching is in canonical (YES-market) terms; this package is the
// only place that translates between a user's NO-market intent and that
// canonical form, and back again for replies.
//
// Grounded on original_source/.../store/orderbook/helpers.rs
// (normalize_order/denormalize_price) for the order-normalization and
// price-denormalization rules, and .../store/orderbook/snapshot.rs for
// snapshot denormalization — except snapshot.rs denormalizes each level's
// price but leaves the bids/asks arrays unswapped, which would report a NO
// market's book with its sides reversed. spec.md §4.5 requires snapshots
// to "denormalize every level before reply", so Snapshot here also swaps
// bids/asks for a NO-market view; this divergence is intentional, not an
// oversight.
package normalize

import (
	"duality/internal/book"
	"duality/internal/common"
	"duality/internal/market"
)

// Normalize rewrites order in place from its user-facing (market, side,
// price) into canonical (YES-market) terms, returning the canonical market
// id it now targets. A YES-market order is unchanged. A NO-market order has
// its market id replaced by the paired YES market, its side flipped, and
// its price replaced by 100-price.
func Normalize(order *common.Order, reg *market.Registry) (uint64, error) {
	m, ok := reg.GetMarket(order.MarketID)
	if !ok {
		return 0, common.NewError(common.NotFound, "market %d not found", order.MarketID)
	}
	if order.Price > common.MaxPrice {
		return 0, common.NewError(common.InvalidArgument, "price %d exceeds max price %d", order.Price, common.MaxPrice)
	}

	if m.Side == common.No {
		order.MarketID = m.PairedMarketID
		order.Price = common.MaxPrice - order.Price
		order.Side = order.Side.Opposite()
	}
	return order.MarketID, nil
}

// DenormalizePrice converts a canonical price back to marketID's user-facing
// terms: unchanged for YES, 100-price for NO. Unknown markets pass the price
// through unchanged, matching the original's fail-open behavior for a
// display-only helper.
func DenormalizePrice(marketID uint64, canonicalPrice uint8, reg *market.Registry) uint8 {
	m, ok := reg.GetMarket(marketID)
	if !ok {
		return canonicalPrice
	}
	if m.Side == common.No {
		return common.MaxPrice - canonicalPrice
	}
	return canonicalPrice
}

// Snapshot is a denormalized, user-facing view of an order book.
type Snapshot struct {
	MarketID  uint64
	Bids      []book.Level
	Asks      []book.Level
	LastPrice uint8
	HasLast   bool
}

// BuildSnapshot produces marketID's book view, denormalized to marketID's
// own side. For a NO market this denormalizes every level's price AND swaps
// the bids/asks arrays, since the canonical book's bids are the NO market's
// asks and vice versa.
func BuildSnapshot(marketID uint64, b *book.Book, reg *market.Registry) (Snapshot, error) {
	m, ok := reg.GetMarket(marketID)
	if !ok {
		return Snapshot{}, common.NewError(common.NotFound, "market %d not found", marketID)
	}

	canonBids, canonAsks := b.Bids(), b.Asks()
	snap := Snapshot{MarketID: marketID}

	if m.Side == common.No {
		snap.Bids = denormalizeLevels(canonAsks, marketID, reg)
		snap.Asks = denormalizeLevels(canonBids, marketID, reg)
	} else {
		snap.Bids = denormalizeLevels(canonBids, marketID, reg)
		snap.Asks = denormalizeLevels(canonAsks, marketID, reg)
	}

	if last, ok := b.LastPrice(); ok {
		snap.LastPrice = DenormalizePrice(marketID, last, reg)
		snap.HasLast = true
	}
	return snap, nil
}

func denormalizeLevels(levels []book.Level, marketID uint64, reg *market.Registry) []book.Level {
	out := make([]book.Level, len(levels))
	for i, l := range levels {
		out[i] = book.Level{Price: DenormalizePrice(marketID, l.Price, reg), Quantity: l.Quantity}
	}
	return out
}
