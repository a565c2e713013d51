// Package reservation implements the Reservation Manager (spec.md §4.4):
// pre-trade debiting of cash/position, post-trade refunds, and the
// cancel/modify reconciliation that guarantees every successful Reserve is
// eventually matched by exactly one of a completing fill, a ReturnReserved,
// or a ReturnUnused.
//
// Grounded on original_source/.../store/balance.rs's reserve_balance/
// return_reserved_balance/return_unused_reservation, composed the way
// internal/ledger exposes primitives for it to call.
package reservation

import (
	"duality/internal/common"
	"duality/internal/ledger"
)

// Manager wraps a Ledger with the order-shaped reserve/return/settle
// operations the Engine Actor needs.
type Manager struct {
	ledger *ledger.Ledger
}

// New builds a Manager over l.
func New(l *ledger.Ledger) *Manager {
	return &Manager{ledger: l}
}

// Balance exposes the ledger's cash balance, so matching can pre-clamp a
// MARKET BID's affordable quantity before sweeping (see matching.Engine).
func (m *Manager) Balance(userID uint64) (int64, error) {
	return m.ledger.Balance(userID)
}

// Reserve debits the cash or position an order commits at placement: for a
// LIMIT BID, original_qty × price cash; for any ASK (LIMIT or MARKET),
// original_qty units of position. Fails cleanly (no partial debit) if
// insufficient. A MARKET BID has no limit price to reserve against — its
// cost is instead clamped and debited fill-by-fill by matching.Engine, so
// Reserve is a no-op for it (grounded on the asymmetry already present in
// original_source/.../store/balance.rs::reserve_balance, which is only ever
// called with a LIMIT order's price in the retrieved call sites).
func (m *Manager) Reserve(o *common.Order) error {
	switch o.Side {
	case common.Bid:
		if o.Type == common.Market {
			return nil
		}
		cost := int64(o.OriginalQty) * int64(o.Price)
		return m.ledger.UpdateBalance(o.UserID, -cost)
	default: // Ask
		if !m.ledger.HasPosition(o.UserID, o.MarketID, o.OriginalQty) {
			return common.NewError(common.InsufficientPosition, "user %d lacks %d position in market %d", o.UserID, o.OriginalQty, o.MarketID)
		}
		return m.ledger.UpdatePosition(o.UserID, o.MarketID, -int64(o.OriginalQty))
	}
}

// ReturnReserved refunds the reservation outstanding on o's current
// remaining_qty: used on cancel, and before re-reserving on modify.
func (m *Manager) ReturnReserved(o *common.Order) error {
	switch o.Side {
	case common.Bid:
		refund := int64(o.RemainingQty) * int64(o.Price)
		return m.ledger.UpdateBalance(o.UserID, refund)
	default:
		return m.ledger.UpdatePosition(o.UserID, o.MarketID, int64(o.RemainingQty))
	}
}

// ReturnUnused is called once an order has matched down to
// remaining_qty == 0: it is a no-op in the common case, since every
// per-fill price-improvement refund (BID) is already applied during
// matching and an ASK's reservation is spent unit-for-unit as it fills.
// Kept as an explicit step, symmetric with spec.md §4.4, so a future
// reservation scheme (e.g. maker rebates) has a single place to change.
func (m *Manager) ReturnUnused(o *common.Order) error {
	if o.RemainingQty != 0 {
		return common.NewError(common.InvalidArgument, "ReturnUnused called on order %d with remaining_qty %d", o.OrderID, o.RemainingQty)
	}
	return nil
}

// ApplyFillTaker settles one fill from the taker's side of a trade. For a
// BID taker: refund the price improvement (limitPrice-fillPrice)*qty, and
// credit fillQty units of position. For a MARKET BID, which reserved nothing,
// matching.Engine passes limitPrice 0, so the same formula debits
// fillPrice*qty outright. For an ASK taker: credit
// fillPrice*qty cash only — the position was already debited by Reserve at
// placement, so the fill must not debit it again.
func (m *Manager) ApplyFillTaker(o *common.Order, limitPrice, fillPrice uint8, fillQty uint64) error {
	switch o.Side {
	case common.Bid:
		refund := (int64(limitPrice) - int64(fillPrice)) * int64(fillQty)
		if refund != 0 {
			if err := m.ledger.UpdateBalance(o.UserID, refund); err != nil {
				return err
			}
		}
		return m.ledger.UpdatePosition(o.UserID, o.MarketID, int64(fillQty))
	default:
		proceeds := int64(fillPrice) * int64(fillQty)
		return m.ledger.UpdateBalance(o.UserID, proceeds)
	}
}

// ApplyFillMaker settles one fill from the resting maker's side. A maker BID
// is refunded its own price improvement and credited position; a maker ASK
// is credited cash only — its position was already debited by Reserve when
// it was placed, so the fill must not debit it a second time.
func (m *Manager) ApplyFillMaker(o *common.Order, fillPrice uint8, fillQty uint64) error {
	switch o.Side {
	case common.Bid:
		refund := (int64(o.Price) - int64(fillPrice)) * int64(fillQty)
		if refund != 0 {
			if err := m.ledger.UpdateBalance(o.UserID, refund); err != nil {
				return err
			}
		}
		return m.ledger.UpdatePosition(o.UserID, o.MarketID, int64(fillQty))
	default:
		revenue := int64(fillPrice) * int64(fillQty)
		return m.ledger.UpdateBalance(o.UserID, revenue)
	}
}
