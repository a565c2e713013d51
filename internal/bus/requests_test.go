package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duality/internal/engine"
)

func runningEngine(t *testing.T) (*engine.Engine, func()) {
	t.Helper()
	e := engine.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	return e, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("engine did not shut down")
		}
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDispatchTradingAction_CreateUserThenOnramp(t *testing.T) {
	e, stop := runningEngine(t)
	defer stop()

	_, err := dispatchTradingAction(e, "create-user", mustJSON(t, createUserRequest{UserID: 1, Name: "alice", Email: "alice@example.com", Balance: 100}))
	require.NoError(t, err)

	data, err := dispatchTradingAction(e, "onramp", mustJSON(t, onrampRequest{UserID: 1, Amount: 50}))
	require.NoError(t, err)
	assert.Equal(t, int64(150), data)
}

func TestDispatchTradingAction_UnknownActionFails(t *testing.T) {
	e, stop := runningEngine(t)
	defer stop()

	_, err := dispatchTradingAction(e, "does-not-exist", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestDispatchTradingAction_PlaceOrderRoundTrip(t *testing.T) {
	e, stop := runningEngine(t)
	defer stop()

	_, err := dispatchTradingAction(e, "create-user", mustJSON(t, createUserRequest{UserID: 1, Name: "alice", Email: "a@example.com", Balance: 1000}))
	require.NoError(t, err)

	_, err = dispatchTradingAction(e, "init-event-markets", mustJSON(t, initEventMarketsRequest{
		Markets: []marketMetaRequest{{EventID: 1, OutcomeID: 1, YesMarketID: 10, NoMarketID: 11}},
	}))
	require.NoError(t, err)

	data, err := dispatchTradingAction(e, "place-order", mustJSON(t, placeOrderRequest{
		MarketID: 10, UserID: 1, Side: "buy", OrderType: "limit", Price: 40, Quantity: 5,
	}))
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestDispatchTradingAction_GetPortfolioComposesBalanceAndPositions(t *testing.T) {
	e, stop := runningEngine(t)
	defer stop()

	_, err := dispatchTradingAction(e, "create-user", mustJSON(t, createUserRequest{UserID: 1, Name: "alice", Email: "a@example.com", Balance: 500}))
	require.NoError(t, err)

	data, err := dispatchTradingAction(e, "get-portfolio", mustJSON(t, userIDRequest{UserID: 1}))
	require.NoError(t, err)

	portfolio, ok := data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(500), portfolio["balance"])
	assert.Contains(t, portfolio, "positions")
}

func TestDispatchReadAction_GetOrderbookUnknownMarketFails(t *testing.T) {
	e, stop := runningEngine(t)
	defer stop()

	_, err := dispatchReadAction(e, "get-orderbook", mustJSON(t, marketIDRequest{MarketID: 999}))
	assert.Error(t, err)
}

func TestDispatchReadAction_UnknownActionFails(t *testing.T) {
	e, stop := runningEngine(t)
	defer stop()

	_, err := dispatchReadAction(e, "not-a-real-action", json.RawMessage(`{}`))
	assert.Error(t, err)
}
