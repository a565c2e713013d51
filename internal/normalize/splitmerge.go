package normalize

import (
	"duality/internal/common"
	"duality/internal/ledger"
	"duality/internal/market"
)

// Split converts amount units of cash into amount units of YES position and
// amount units of NO position, at face value: 1 cash unit always backs
// exactly one YES share and one NO share, since together they resolve to
// exactly 1 cash unit no matter the outcome. Fails with
// common.InsufficientBalance if the user cannot cover amount.
//
// No original_source equivalent was retrieved for this operation; the
// 1-cash-in/1-YES+1-NO-out rule follows directly from spec.md §4.5's
// statement that a YES/NO pair always redeems for 100, so splitting a unit
// of cash (worth 100 at resolution either way) into one share of each side
// is the only amount that keeps the ledger balanced.
func Split(l *ledger.Ledger, reg *market.Registry, userID uint64, yesMarketID uint64, amount uint64) error {
	m, ok := reg.GetMarket(yesMarketID)
	if !ok {
		return common.NewError(common.NotFound, "market %d not found", yesMarketID)
	}
	if m.Side != common.Yes {
		return common.NewError(common.InvalidArgument, "market %d is not a YES market", yesMarketID)
	}
	noMarketID := m.PairedMarketID

	cost := int64(amount)
	if err := l.UpdateBalance(userID, -cost); err != nil {
		return err
	}
	if err := l.UpdatePosition(userID, yesMarketID, int64(amount)); err != nil {
		return err
	}
	return l.UpdatePosition(userID, noMarketID, int64(amount))
}

// Merge converts min(yesQty, noQty) worth of matched YES+NO position back
// into cash at face value 100 per pair, crediting the user's balance and
// debiting both positions by the same amount.
func Merge(l *ledger.Ledger, reg *market.Registry, userID uint64, yesMarketID uint64) (uint64, error) {
	m, ok := reg.GetMarket(yesMarketID)
	if !ok {
		return 0, common.NewError(common.NotFound, "market %d not found", yesMarketID)
	}
	if m.Side != common.Yes {
		return 0, common.NewError(common.InvalidArgument, "market %d is not a YES market", yesMarketID)
	}
	noMarketID := m.PairedMarketID

	yesQty, err := l.Position(userID, yesMarketID)
	if err != nil {
		return 0, err
	}
	noQty, err := l.Position(userID, noMarketID)
	if err != nil {
		return 0, err
	}

	qty := yesQty
	if noQty < qty {
		qty = noQty
	}
	if qty == 0 {
		return 0, common.NewError(common.InsufficientPosition, "user %d has no matched YES/NO position in market %d", userID, yesMarketID)
	}

	if err := l.UpdatePosition(userID, yesMarketID, -int64(qty)); err != nil {
		return 0, err
	}
	if err := l.UpdatePosition(userID, noMarketID, -int64(qty)); err != nil {
		return 0, err
	}
	if err := l.CreditBalance(userID, int64(qty)*int64(common.MaxPrice)); err != nil {
		return 0, err
	}
	return qty, nil
}
