// Package ledger is the single source of truth for user cash balances and
// per-market positions (spec.md §4.4). It is touched only from the Engine
// Actor's goroutine, so — unlike internal/market — it needs no lock: the
// single-writer discipline of spec.md §5 is the concurrency control.
//
// Grounded on original_source/.../store/user.rs and
// .../store/matching.rs::update_balance/update_position for the exact
// "remove position entry at zero" rule.
package ledger

import "duality/internal/common"

// Ledger owns every User record.
type Ledger struct {
	users map[uint64]*common.User
}

// New builds an empty Ledger.
func New() *Ledger {
	return &Ledger{users: make(map[uint64]*common.User)}
}

// CreateUser registers a new user with the given starting balance. Fails if
// the id is already taken.
func (l *Ledger) CreateUser(userID uint64, name, email string, balance int64) (*common.User, error) {
	if _, exists := l.users[userID]; exists {
		return nil, common.NewError(common.InvalidArgument, "user %d already exists", userID)
	}
	u := &common.User{
		UserID:    userID,
		Name:      name,
		Email:     email,
		Balance:   balance,
		Positions: make(map[uint64]uint64),
	}
	l.users[userID] = u
	return u, nil
}

// User returns the user record, or false if unknown.
func (l *Ledger) User(userID uint64) (*common.User, bool) {
	u, ok := l.users[userID]
	return u, ok
}

// UserByEmail linear-scans for a user by email, matching
// original_source/.../store/user.rs::get_user_by_email.
func (l *Ledger) UserByEmail(email string) (*common.User, bool) {
	for _, u := range l.users {
		if u.Email == email {
			return u, true
		}
	}
	return nil, false
}

// Balance returns a user's cash balance.
func (l *Ledger) Balance(userID uint64) (int64, error) {
	u, ok := l.users[userID]
	if !ok {
		return 0, common.NewError(common.NotFound, "user %d not found", userID)
	}
	return u.Balance, nil
}

// UpdateBalance applies delta to a user's cash balance. A negative delta
// that would drive the balance below zero fails; the balance is never left
// negative at rest.
func (l *Ledger) UpdateBalance(userID uint64, delta int64) error {
	u, ok := l.users[userID]
	if !ok {
		return common.NewError(common.NotFound, "user %d not found", userID)
	}
	if delta < 0 && u.Balance < -delta {
		return common.NewError(common.InsufficientBalance, "user %d has balance %d, needs %d", userID, u.Balance, -delta)
	}
	u.Balance += delta
	return nil
}

// CreditBalance applies a non-negative delta unconditionally (onramp, payout).
func (l *Ledger) CreditBalance(userID uint64, amount int64) error {
	if amount < 0 {
		return common.NewError(common.InvalidArgument, "credit amount must be non-negative, got %d", amount)
	}
	return l.UpdateBalance(userID, amount)
}

// Position returns a user's held quantity for marketID (0 if none).
func (l *Ledger) Position(userID, marketID uint64) (uint64, error) {
	u, ok := l.users[userID]
	if !ok {
		return 0, common.NewError(common.NotFound, "user %d not found", userID)
	}
	return u.Positions[marketID], nil
}

// Positions returns a copy of a user's full position table.
func (l *Ledger) Positions(userID uint64) (map[uint64]uint64, error) {
	u, ok := l.users[userID]
	if !ok {
		return nil, common.NewError(common.NotFound, "user %d not found", userID)
	}
	out := make(map[uint64]uint64, len(u.Positions))
	for k, v := range u.Positions {
		out[k] = v
	}
	return out, nil
}

// UpdatePosition applies delta to a user's position in marketID. A negative
// delta that would drive the position below zero fails. A position that
// reaches exactly zero is removed from the table rather than stored as zero.
func (l *Ledger) UpdatePosition(userID, marketID uint64, delta int64) error {
	u, ok := l.users[userID]
	if !ok {
		return common.NewError(common.NotFound, "user %d not found", userID)
	}
	current := u.Positions[marketID]
	if delta < 0 && int64(current) < -delta {
		return common.NewError(common.InsufficientPosition, "user %d has position %d in market %d, needs %d", userID, current, marketID, -delta)
	}
	next := int64(current) + delta
	if next == 0 {
		delete(u.Positions, marketID)
	} else {
		u.Positions[marketID] = uint64(next)
	}
	return nil
}

// PositionsByMarket returns every user holding a position in marketID,
// keyed by user id. Used only by CloseEventMarkets, which needs every
// holder of one market's position when paying out or draining a losing
// side; no other operation needs a by-market reverse index, so this is a
// linear scan over all users rather than a maintained index.
func (l *Ledger) PositionsByMarket(marketID uint64) map[uint64]uint64 {
	out := make(map[uint64]uint64)
	for userID, u := range l.users {
		if qty, ok := u.Positions[marketID]; ok {
			out[userID] = qty
		}
	}
	return out
}

// HasPosition reports whether userID holds at least requiredQty in marketID.
func (l *Ledger) HasPosition(userID, marketID, requiredQty uint64) bool {
	u, ok := l.users[userID]
	if !ok {
		return false
	}
	return u.Positions[marketID] >= requiredQty
}
