package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duality/internal/common"
	"duality/internal/events"
	"duality/internal/normalize"
)

func newRunningEngine(t *testing.T, outbox *events.Outbox) (*Engine, func()) {
	t.Helper()
	e := New(outbox)
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

func createUser(t *testing.T, e *Engine, userID uint64, balance int64) {
	t.Helper()
	reply := make(chan Reply, 1)
	e.Submit(CreateUserCmd{UserID: userID, Name: "user", Email: "user@example.com", Balance: balance, Reply: reply})
	res := <-reply
	require.NoError(t, res.Err)
}

func initMarkets(t *testing.T, e *Engine, eventID, outcomeID, yesID, noID uint64) {
	t.Helper()
	reply := make(chan Reply, 1)
	e.Submit(InitMarketsCmd{Metas: []MarketMeta{{EventID: eventID, OutcomeID: outcomeID, YesMarketID: yesID, NoMarketID: noID}}, Reply: reply})
	res := <-reply
	require.NoError(t, res.Err)
}

func placeOrder(t *testing.T, e *Engine, marketID, userID uint64, side common.Side, typ common.OrderType, price uint8, qty uint64) Reply {
	t.Helper()
	reply := make(chan Reply, 1)
	e.Submit(PlaceOrderCmd{MarketID: marketID, UserID: userID, Side: side, Type: typ, Price: price, Qty: qty, Reply: reply})
	return <-reply
}

func TestEngine_CreateUserThenOnramp(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 100)

	reply := make(chan Reply, 1)
	e.Submit(OnrampCmd{UserID: 1, Amount: 25, Reply: reply})
	res := <-reply
	require.NoError(t, res.Err)
	assert.Equal(t, int64(125), res.Data)

	balReply := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balReply})
	balRes := <-balReply
	require.NoError(t, balRes.Err)
	assert.Equal(t, int64(125), balRes.Data)
}

func TestEngine_PlaceOrder_RestsWhenBookEmpty(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 10, 1, common.Bid, common.Limit, 40, 5)
	require.NoError(t, res.Err)
	order := res.Data.(common.Order)
	assert.Equal(t, uint64(5), order.RemainingQty)
	assert.Equal(t, common.OrderNew, order.Status)

	obReply := make(chan Reply, 1)
	e.Submit(GetOrderBookCmd{MarketID: 10, Reply: obReply})
	obRes := <-obReply
	require.NoError(t, obRes.Err)
	snap := obRes.Data.(normalize.Snapshot)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, uint8(40), snap.Bids[0].Price)
}

func TestEngine_PlaceOrder_MatchesAndEmitsFills(t *testing.T) {
	outbox := events.NewOutbox(64)
	e, stop := newRunningEngine(t, outbox)
	defer stop()

	createUser(t, e, 1, 1000)
	createUser(t, e, 2, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	// Give user 1 a real YES position via Split so the maker ASK below goes
	// through Reserve exactly as handlePlaceOrder drives it in production,
	// rather than being injected straight onto the book.
	splitReply := make(chan Reply, 1)
	e.Submit(SplitCmd{UserID: 1, YesMarketID: 10, Amount: 10, Reply: splitReply})
	require.NoError(t, (<-splitReply).Err)

	makerRes := placeOrder(t, e, 10, 1, common.Ask, common.Limit, 60, 10)
	require.NoError(t, makerRes.Err)

	takerRes := placeOrder(t, e, 10, 2, common.Bid, common.Limit, 60, 4)
	require.NoError(t, takerRes.Err)
	taker := takerRes.Data.(common.Order)
	assert.Equal(t, uint64(0), taker.RemainingQty)
	assert.Equal(t, common.OrderFilled, taker.Status)

	takerPosReply := make(chan Reply, 1)
	e.Submit(GetPositionCmd{UserID: 2, MarketID: 10, Reply: takerPosReply})
	takerPosRes := <-takerPosReply
	require.NoError(t, takerPosRes.Err)
	assert.Equal(t, uint64(4), takerPosRes.Data)

	// Maker (user 1) had all 10 YES units debited by Reserve at placement;
	// the fill of 4 must not debit them a second time at settlement, and
	// the 6 unfilled units stay committed to the resting order.
	makerPosReply := make(chan Reply, 1)
	e.Submit(GetPositionCmd{UserID: 1, MarketID: 10, Reply: makerPosReply})
	makerPosRes := <-makerPosReply
	require.NoError(t, makerPosRes.Err)
	assert.Equal(t, uint64(0), makerPosRes.Data, "10 reserved at placement, debited exactly once; none re-debited by the fill")

	makerBalReply := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: makerBalReply})
	makerBalRes := <-makerBalReply
	require.NoError(t, makerBalRes.Err)
	assert.Equal(t, int64(1000-10+4*60), makerBalRes.Data, "1000 - split cost (10) + maker revenue (4*60)")

	outbox.Close()
	var published []events.Event
	outbox.Drain(recordingSinkFunc(func(ev events.Event) error {
		published = append(published, ev)
		return nil
	}), nil)

	var kinds []events.Kind
	for _, ev := range published {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, events.TradeExecuted)
	assert.Contains(t, kinds, events.OrderFilled)
	assert.Contains(t, kinds, events.BalanceUpdated)
	assert.Contains(t, kinds, events.PositionUpdated)
}

type recordingSinkFunc func(events.Event) error

func (f recordingSinkFunc) Publish(ev events.Event) error { return f(ev) }

func TestEngine_PlaceOrder_NoMarketNormalizesSideAndPrice(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 11, 1, common.Bid, common.Limit, 30, 5)
	require.NoError(t, res.Err)
	order := res.Data.(common.Order)
	assert.Equal(t, uint64(11), order.MarketID, "reply is denormalized back to the NO market the caller placed against")
	assert.Equal(t, common.Bid, order.Side)
	assert.Equal(t, uint8(30), order.Price)

	obReply := make(chan Reply, 1)
	e.Submit(GetOrderBookCmd{MarketID: 11, Reply: obReply})
	obRes := <-obReply
	require.NoError(t, obRes.Err)
	snap := obRes.Data.(normalize.Snapshot)
	require.Len(t, snap.Bids, 1, "a NO bid rests on the YES book's ask side, but the NO snapshot still shows it as a bid")
	assert.Equal(t, uint8(30), snap.Bids[0].Price)
}

func TestEngine_CancelOrder_ReturnsReservation(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 10, 1, common.Bid, common.Limit, 40, 5)
	require.NoError(t, res.Err)
	order := res.Data.(common.Order)

	balBefore := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balBefore})
	before := (<-balBefore).Data.(int64)
	assert.Equal(t, int64(800), before, "200 reserved at 40 * 5")

	cancelReply := make(chan Reply, 1)
	e.Submit(CancelOrderCmd{OrderID: order.OrderID, Reply: cancelReply})
	cancelRes := <-cancelReply
	require.NoError(t, cancelRes.Err)

	balAfter := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balAfter})
	after := (<-balAfter).Data.(int64)
	assert.Equal(t, int64(1000), after)

	statusReply := make(chan Reply, 1)
	e.Submit(GetOrderStatusCmd{OrderID: order.OrderID, Reply: statusReply})
	statusRes := <-statusReply
	assert.Error(t, statusRes.Err, "cancelled orders are forgotten, not retained with a CANCELLED status")
}

func TestEngine_ModifyOrder_ReplacesPriceAndQty(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 10, 1, common.Bid, common.Limit, 40, 5)
	require.NoError(t, res.Err)
	order := res.Data.(common.Order)

	modReply := make(chan Reply, 1)
	e.Submit(ModifyOrderCmd{OrderID: order.OrderID, NewPrice: 50, NewQty: 3, Reply: modReply})
	modRes := <-modReply
	require.NoError(t, modRes.Err)
	modified := modRes.Data.(common.Order)
	assert.Equal(t, uint8(50), modified.Price)
	assert.Equal(t, uint64(3), modified.RemainingQty)

	balReply := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balReply})
	bal := (<-balReply).Data.(int64)
	assert.Equal(t, int64(850), bal, "150 reserved at 50 * 3 after the old 200 reservation was returned")
}

func TestEngine_SplitThenMerge(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	splitReply := make(chan Reply, 1)
	e.Submit(SplitCmd{UserID: 1, YesMarketID: 10, Amount: 20, Reply: splitReply})
	require.NoError(t, (<-splitReply).Err)

	balReply := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balReply})
	assert.Equal(t, int64(980), (<-balReply).Data.(int64))

	yesPos := make(chan Reply, 1)
	e.Submit(GetPositionCmd{UserID: 1, MarketID: 10, Reply: yesPos})
	assert.Equal(t, uint64(20), (<-yesPos).Data.(uint64))

	noPos := make(chan Reply, 1)
	e.Submit(GetPositionCmd{UserID: 1, MarketID: 11, Reply: noPos})
	noPosRes := <-noPos
	require.NoError(t, noPosRes.Err)
	assert.Equal(t, uint64(20), noPosRes.Data.(uint64), "the NO leg of a split must be visible by its own market id")

	mergeReply := make(chan Reply, 1)
	e.Submit(MergeCmd{UserID: 1, YesMarketID: 10, Reply: mergeReply})
	mergeRes := <-mergeReply
	require.NoError(t, mergeRes.Err)
	assert.Equal(t, uint64(20), mergeRes.Data)

	balAfter := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balAfter})
	assert.Equal(t, int64(1000), (<-balAfter).Data.(int64))
}

func TestEngine_CloseEventMarkets_PaysWinnerAndDrainsLoser(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	splitReply := make(chan Reply, 1)
	e.Submit(SplitCmd{UserID: 1, YesMarketID: 10, Amount: 20, Reply: splitReply})
	require.NoError(t, (<-splitReply).Err)

	closeReply := make(chan Reply, 1)
	e.Submit(CloseEventMarketsCmd{EventID: 1, WinningOutcomeID: 1, Reply: closeReply})
	require.NoError(t, (<-closeReply).Err)

	balReply := make(chan Reply, 1)
	e.Submit(GetBalanceCmd{UserID: 1, Reply: balReply})
	assert.Equal(t, int64(980+20*int64(common.MaxPrice)), (<-balReply).Data.(int64), "winning YES position pays out at 100 per unit")

	yesPos := make(chan Reply, 1)
	e.Submit(GetPositionCmd{UserID: 1, MarketID: 10, Reply: yesPos})
	assert.Error(t, (<-yesPos).Err, "market is unregistered after the event closes")

	noQty, err := e.ledger.Position(1, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), noQty, "the NO leg, stored under its own market id by Split, is drained on close too")
}

func TestEngine_CloseEventMarkets_UnknownEventFails(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	reply := make(chan Reply, 1)
	e.Submit(CloseEventMarketsCmd{EventID: 999, WinningOutcomeID: 1, Reply: reply})
	assert.Error(t, (<-reply).Err)
}

func TestEngine_GetBestBidAsk_NoMarketSwapsSides(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	splitReply := make(chan Reply, 1)
	e.Submit(SplitCmd{UserID: 1, YesMarketID: 10, Amount: 5, Reply: splitReply})
	require.NoError(t, (<-splitReply).Err)

	res := placeOrder(t, e, 10, 1, common.Ask, common.Limit, 65, 5)
	require.NoError(t, res.Err)

	bidReply := make(chan Reply, 1)
	e.Submit(GetBestBidCmd{MarketID: 11, Reply: bidReply})
	bidRes := <-bidReply
	require.NoError(t, bidRes.Err)
	assert.Equal(t, uint8(35), bidRes.Data, "a YES ask at 65 becomes the NO market's best bid at 100-65")
}

func TestEngine_GetUserOpenOrders_DenormalizesAcrossBooks(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 11, 1, common.Bid, common.Limit, 30, 5)
	require.NoError(t, res.Err)

	openReply := make(chan Reply, 1)
	e.Submit(GetUserOpenOrdersCmd{UserID: 1, Reply: openReply})
	openRes := <-openReply
	require.NoError(t, openRes.Err)
	orders := openRes.Data.([]common.Order)
	require.Len(t, orders, 1)
	assert.Equal(t, uint64(11), orders[0].MarketID)
	assert.Equal(t, uint8(30), orders[0].Price)
}

func TestEngine_PlaceOrder_RejectsInvalidPrice(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 10, 1, common.Bid, common.Limit, 101, 5)
	assert.Error(t, res.Err)
}

func TestEngine_PlaceOrder_MarketOrderWithEmptyBookFails(t *testing.T) {
	e, stop := newRunningEngine(t, nil)
	defer stop()

	createUser(t, e, 1, 1000)
	initMarkets(t, e, 1, 1, 10, 11)

	res := placeOrder(t, e, 10, 1, common.Bid, common.Market, 0, 5)
	assert.Error(t, res.Err)
}
