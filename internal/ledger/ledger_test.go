package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duality/internal/common"
)

func TestCreateUser_DuplicateFails(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 1000)
	require.NoError(t, err)

	_, err = l.CreateUser(1, "alice2", "alice2@example.com", 500)
	assert.Error(t, err)
	assert.Equal(t, common.InvalidArgument, err.(*common.Error).Kind)
}

func TestUpdateBalance_InsufficientFails(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 100)
	require.NoError(t, err)

	err = l.UpdateBalance(1, -150)
	require.Error(t, err)
	assert.Equal(t, common.InsufficientBalance, err.(*common.Error).Kind)

	bal, err := l.Balance(1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal, "failed debit leaves balance untouched")
}

func TestUpdateBalance_ExactZeroAllowed(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 100)
	require.NoError(t, err)

	require.NoError(t, l.UpdateBalance(1, -100))
	bal, _ := l.Balance(1)
	assert.Equal(t, int64(0), bal)
}

func TestCreditBalance_RejectsNegative(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 0)
	require.NoError(t, err)

	err = l.CreditBalance(1, -1)
	assert.Error(t, err)
}

func TestUpdatePosition_RemovesZeroEntry(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 0)
	require.NoError(t, err)

	require.NoError(t, l.UpdatePosition(1, 42, 10))
	qty, _ := l.Position(1, 42)
	assert.Equal(t, uint64(10), qty)

	require.NoError(t, l.UpdatePosition(1, 42, -10))
	positions, err := l.Positions(1)
	require.NoError(t, err)
	_, held := positions[42]
	assert.False(t, held, "position entry removed once it hits zero, not stored as zero")
}

func TestUpdatePosition_InsufficientFails(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 0)
	require.NoError(t, err)
	require.NoError(t, l.UpdatePosition(1, 42, 5))

	err = l.UpdatePosition(1, 42, -10)
	assert.Error(t, err)
	assert.Equal(t, common.InsufficientPosition, err.(*common.Error).Kind)
}

func TestHasPosition(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 0)
	require.NoError(t, err)
	require.NoError(t, l.UpdatePosition(1, 42, 5))

	assert.True(t, l.HasPosition(1, 42, 5))
	assert.False(t, l.HasPosition(1, 42, 6))
	assert.False(t, l.HasPosition(2, 42, 1), "unknown user has no position")
}

func TestPositionsByMarket(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 0)
	require.NoError(t, err)
	_, err = l.CreateUser(2, "bob", "bob@example.com", 0)
	require.NoError(t, err)
	_, err = l.CreateUser(3, "carol", "carol@example.com", 0)
	require.NoError(t, err)

	require.NoError(t, l.UpdatePosition(1, 42, 5))
	require.NoError(t, l.UpdatePosition(2, 42, 7))
	require.NoError(t, l.UpdatePosition(3, 99, 3))

	holders := l.PositionsByMarket(42)
	assert.Equal(t, map[uint64]uint64{1: 5, 2: 7}, holders)
}

func TestUserByEmail(t *testing.T) {
	l := New()
	_, err := l.CreateUser(1, "alice", "alice@example.com", 0)
	require.NoError(t, err)

	u, ok := l.UserByEmail("alice@example.com")
	require.True(t, ok)
	assert.Equal(t, uint64(1), u.UserID)

	_, ok = l.UserByEmail("missing@example.com")
	assert.False(t, ok)
}
