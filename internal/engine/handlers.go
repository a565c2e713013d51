package engine

import (
	"time"

	"duality/internal/book"
	"duality/internal/common"
	"duality/internal/events"
	"duality/internal/market"
	"duality/internal/normalize"
)

func reply(ch chan Reply, data any, err error) {
	ch <- Reply{Data: data, Err: err}
}

// handlePlaceOrder implements spec.md §4.6's PlaceOrder: normalize, validate,
// reserve, match, rest the residual, emit events.
func (e *Engine) handlePlaceOrder(c PlaceOrderCmd) {
	if c.Type == common.Limit && c.Price > common.MaxPrice {
		reply(c.Reply, nil, common.NewError(common.InvalidArgument, "price %d exceeds max price %d", c.Price, common.MaxPrice))
		return
	}
	if c.Qty == 0 {
		reply(c.Reply, nil, common.NewError(common.InvalidArgument, "quantity must be > 0"))
		return
	}

	origin := common.Origin{MarketID: c.MarketID, Side: c.Side, Price: c.Price}
	now := time.Now()
	order := &common.Order{
		MarketID:      c.MarketID,
		UserID:        c.UserID,
		Side:          c.Side,
		Type:          c.Type,
		Price:         c.Price,
		OriginalQty:   c.Qty,
		RemainingQty:  c.Qty,
		Status:        common.OrderNew,
		PlacedAt:      now,
		ExchTimestamp: now,
	}

	canonicalID, err := normalize.Normalize(order, e.registry)
	if err != nil {
		reply(c.Reply, nil, err)
		return
	}

	m, ok := e.registry.GetMarket(canonicalID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", canonicalID))
		return
	}
	if m.Status != common.MarketActive {
		reply(c.Reply, nil, common.NewError(common.MarketInactive, "market %d is not active", canonicalID))
		return
	}

	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order book for market %d not found", canonicalID))
		return
	}

	if order.Type == common.Market {
		levels := b.Asks()
		if order.Side == common.Ask {
			levels = b.Bids()
		}
		var available uint64
		for _, l := range levels {
			available += l.Quantity
		}
		if available < order.RemainingQty {
			reply(c.Reply, nil, common.NewError(common.NoLiquidity, "not enough resting liquidity on the opposite side of market %d", canonicalID))
			return
		}
	}

	if err := e.reserve.Reserve(order); err != nil {
		reply(c.Reply, nil, err)
		return
	}

	orderID := e.nextOrderID
	e.nextOrderID++
	order.OrderID = orderID
	e.origins[orderID] = origin

	trades, err := e.matcher.Match(b, order)
	if err != nil {
		_ = e.reserve.ReturnReserved(order)
		delete(e.origins, orderID)
		reply(c.Reply, nil, err)
		return
	}

	if order.RemainingQty > 0 && order.Type == common.Limit {
		b.AddResting(order)
	}
	// e.origins keeps orderID -> origin regardless of whether the order
	// rests: the fill events below need it even for an order that filled
	// immediately and was never added to the book. GetOrderStatus still
	// answers NotFound for such an order, since it only reads resting orders.

	e.metrics.SetRestingOrders(canonicalID, len(b.Orders()))

	e.emit(events.Event{Kind: events.OrderPlaced, OrderPlacedData: &events.OrderPlacedData{
		OrderID: orderID, UserID: order.UserID, MarketID: origin.MarketID,
		Side: origin.Side.String(), Price: origin.Price,
		OriginalQty: order.OriginalQty, RemainingQty: order.RemainingQty,
	}})

	e.emitFills(b, order, trades)

	reply(c.Reply, e.snapshotOrder(order, origin), nil)
}

// emitFills emits TradeExecuted/OrderFilled/BalanceUpdated/PositionUpdated
// for every trade matching produced, for both taker and maker legs — see
// spec.md §4.7 and end-to-end scenario 2's event list.
func (e *Engine) emitFills(b *book.Book, taker *common.Order, trades []common.Trade) {
	for _, tr := range trades {
		maker, hasMaker := b.Order(tr.MakerOrderID)
		var makerUserID, makerMarketID uint64
		var makerStatus common.OrderStatus
		var makerRemaining uint64
		if hasMaker {
			makerUserID, makerMarketID, makerStatus, makerRemaining = maker.UserID, maker.MarketID, maker.Status, maker.RemainingQty
		} else {
			// Maker fully filled and already removed from the book; its
			// final state was captured on tr before removal.
			makerUserID, makerMarketID = tr.MakerUserID, tr.MarketID
			makerStatus, makerRemaining = common.OrderFilled, 0
		}

		makerOrigin := e.denormOrigin(tr.MakerOrderID)
		takerOrigin := e.denormOrigin(tr.TakerOrderID)

		e.emit(events.Event{Kind: events.TradeExecuted, TradeExecutedData: &events.TradeExecutedData{
			TradeID: tr.TradeID, MarketID: tr.MarketID,
			TakerOrderID: tr.TakerOrderID, MakerOrderID: tr.MakerOrderID,
			TakerUserID: tr.TakerUserID, MakerUserID: tr.MakerUserID,
			Price:     normalize.DenormalizePrice(takerOrigin.MarketID, tr.Price, e.registry),
			Quantity:  tr.Quantity,
			TakerSide: tr.TakerSide.String(),
		}})

		e.emit(events.Event{Kind: events.OrderFilled, OrderFilledData: &events.OrderFilledData{
			OrderID: tr.TakerOrderID, UserID: tr.TakerUserID, MarketID: takerOrigin.MarketID,
			FilledQty: tr.Quantity, RemainingQty: taker.RemainingQty, Status: taker.Status.String(),
		}})
		e.emit(events.Event{Kind: events.OrderFilled, OrderFilledData: &events.OrderFilledData{
			OrderID: tr.MakerOrderID, UserID: makerUserID, MarketID: makerOrigin.MarketID,
			FilledQty: tr.Quantity, RemainingQty: makerRemaining, Status: makerStatus.String(),
		}})

		takerBalance, _ := e.ledger.Balance(tr.TakerUserID)
		makerBalance, _ := e.ledger.Balance(makerUserID)
		e.emit(events.Event{Kind: events.BalanceUpdated, BalanceUpdatedData: &events.BalanceUpdatedData{UserID: tr.TakerUserID, Balance: takerBalance}})
		e.emit(events.Event{Kind: events.BalanceUpdated, BalanceUpdatedData: &events.BalanceUpdatedData{UserID: makerUserID, Balance: makerBalance}})

		takerPos, _ := e.ledger.Position(tr.TakerUserID, tr.MarketID)
		makerPos, _ := e.ledger.Position(makerUserID, makerMarketID)
		e.emit(events.Event{Kind: events.PositionUpdated, PositionUpdatedData: &events.PositionUpdatedData{UserID: tr.TakerUserID, MarketID: tr.MarketID, Quantity: takerPos}})
		e.emit(events.Event{Kind: events.PositionUpdated, PositionUpdatedData: &events.PositionUpdatedData{UserID: makerUserID, MarketID: makerMarketID, Quantity: makerPos}})

		e.metrics.IncTrades(1)
	}
}

// handleCancelOrder implements spec.md §4.6's CancelOrder.
func (e *Engine) handleCancelOrder(c CancelOrderCmd) {
	origin, ok := e.origins[c.OrderID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	canonicalID, ok := e.registry.CanonicalID(origin.MarketID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", origin.MarketID))
		return
	}
	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order book for market %d not found", canonicalID))
		return
	}
	order, ok := b.Order(c.OrderID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}

	if err := e.reserve.ReturnReserved(order); err != nil {
		reply(c.Reply, nil, err)
		return
	}
	b.RemoveResting(c.OrderID)
	order.Status = common.OrderCancelled
	delete(e.origins, c.OrderID)

	e.metrics.SetRestingOrders(canonicalID, len(b.Orders()))

	e.emit(events.Event{Kind: events.OrderCancelled, OrderCancelledData: &events.OrderCancelledData{
		OrderID: c.OrderID, UserID: order.UserID, MarketID: origin.MarketID,
	}})

	reply(c.Reply, e.snapshotOrder(order, origin), nil)
}

// handleModifyOrder implements spec.md §4.6's ModifyOrder: return the old
// reservation, replace price/qty, and re-run PlaceOrder's machinery against
// the current book.
func (e *Engine) handleModifyOrder(c ModifyOrderCmd) {
	origin, ok := e.origins[c.OrderID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	canonicalID, ok := e.registry.CanonicalID(origin.MarketID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", origin.MarketID))
		return
	}
	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order book for market %d not found", canonicalID))
		return
	}
	old, ok := b.Order(c.OrderID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	userID, side := old.UserID, origin.Side

	if err := e.reserve.ReturnReserved(old); err != nil {
		reply(c.Reply, nil, err)
		return
	}
	b.RemoveResting(c.OrderID)
	delete(e.origins, c.OrderID)

	placeReply := make(chan Reply, 1)
	e.handlePlaceOrder(PlaceOrderCmd{
		MarketID: origin.MarketID, UserID: userID, Side: side, Type: common.Limit,
		Price: c.NewPrice, Qty: c.NewQty, Reply: placeReply,
	})
	result := <-placeReply
	if result.Err != nil {
		reply(c.Reply, nil, result.Err)
		return
	}

	placed := result.Data.(common.Order)
	e.emit(events.Event{Kind: events.OrderModified, OrderModifiedData: &events.OrderModifiedData{
		OrderID: placed.OrderID, UserID: userID, MarketID: origin.MarketID,
		Price: c.NewPrice, OriginalQty: c.NewQty, RemainingQty: placed.RemainingQty,
	}})

	reply(c.Reply, placed, nil)
}

// handleInitMarkets implements spec.md §4.6's InitMarkets.
func (e *Engine) handleInitMarkets(c InitMarketsCmd) {
	seen := make(map[uint64]bool)
	for _, meta := range c.Metas {
		for _, id := range []uint64{meta.YesMarketID, meta.NoMarketID} {
			if _, exists := e.registry.GetMarket(id); exists || seen[id] {
				reply(c.Reply, nil, common.NewError(common.DuplicateMarket, "market %d already registered", id))
				return
			}
			seen[id] = true
		}
	}
	for _, meta := range c.Metas {
		if err := e.registry.RegisterMarketPair(market.Meta{
			EventID: meta.EventID, OutcomeID: meta.OutcomeID,
			YesMarketID: meta.YesMarketID, NoMarketID: meta.NoMarketID,
		}); err != nil {
			reply(c.Reply, nil, err)
			return
		}
		e.books[meta.YesMarketID] = book.New(meta.YesMarketID)
	}
	reply(c.Reply, nil, nil)
}

// handleCloseEventMarkets implements spec.md §4.6's CloseEventMarkets:
// cancel every resting order on the event's canonical books with
// reservation return, credit winners quantity×100 cash, drain positions on
// affected markets, mark RESOLVED then unregister.
func (e *Engine) handleCloseEventMarkets(c CloseEventMarketsCmd) {
	marketIDs := e.registry.GetMarketsByEvent(c.EventID)
	if len(marketIDs) == 0 {
		reply(c.Reply, nil, common.NewError(common.NotFound, "event %d has no registered markets", c.EventID))
		return
	}

	for _, id := range marketIDs {
		m, ok := e.registry.GetMarket(id)
		if !ok || m.Side != common.Yes {
			continue
		}
		b, ok := e.books[id]
		if !ok {
			continue
		}
		for _, o := range b.Orders() {
			origin := e.denormOrigin(o.OrderID)
			_ = e.reserve.ReturnReserved(o)
			b.RemoveResting(o.OrderID)
			delete(e.origins, o.OrderID)
			e.emit(events.Event{Kind: events.OrderCancelled, OrderCancelledData: &events.OrderCancelledData{
				OrderID: o.OrderID, UserID: o.UserID, MarketID: origin.MarketID,
			}})
		}
	}

	winningMarketID, ok := findMarket(marketIDs, c.WinningOutcomeID, e.registry, common.Yes)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "winning outcome %d has no YES market among event %d's markets", c.WinningOutcomeID, c.EventID))
		return
	}

	payout := make(map[uint64]uint64) // userID -> winning qty, collected before draining
	for userID, qty := range e.ledgerPositionsByMarket(winningMarketID) {
		payout[userID] = qty
	}

	for userID, qty := range payout {
		if qty == 0 {
			continue
		}
		_ = e.ledger.UpdatePosition(userID, winningMarketID, -int64(qty))
		_ = e.ledger.CreditBalance(userID, int64(qty)*int64(common.MaxPrice))
		balance, _ := e.ledger.Balance(userID)
		e.emit(events.Event{Kind: events.PositionUpdated, PositionUpdatedData: &events.PositionUpdatedData{UserID: userID, MarketID: winningMarketID, Quantity: 0}})
		e.emit(events.Event{Kind: events.BalanceUpdated, BalanceUpdatedData: &events.BalanceUpdatedData{UserID: userID, Balance: balance}})
	}

	// Drain every other market's positions, YES or NO side alike: Split
	// credits a NO position under the NO market's own id (splitmerge.go),
	// so a losing-outcome YES holding and a worthless NO holding (including
	// the winning outcome's own NO side) must both be zeroed here, not just
	// the YES side.
	for _, id := range marketIDs {
		if id == winningMarketID {
			continue
		}
		for userID, qty := range e.ledgerPositionsByMarket(id) {
			if qty == 0 {
				continue
			}
			_ = e.ledger.UpdatePosition(userID, id, -int64(qty))
			e.emit(events.Event{Kind: events.PositionUpdated, PositionUpdatedData: &events.PositionUpdatedData{UserID: userID, MarketID: id, Quantity: 0}})
		}
	}

	e.registry.UpdateStatus(marketIDs, common.MarketResolved)
	e.registry.RemoveMarketsByEvent(c.EventID)
	for _, id := range marketIDs {
		delete(e.books, id)
	}

	reply(c.Reply, nil, nil)
}

// ledgerPositionsByMarket is a defensive linear scan used only by
// CloseEventMarkets, which runs rarely (once per event resolution) and
// needs every holder of a given market's position — internal/ledger has no
// by-market reverse index since no other operation needs one.
func (e *Engine) ledgerPositionsByMarket(marketID uint64) map[uint64]uint64 {
	return e.ledger.PositionsByMarket(marketID)
}

func findMarket(marketIDs []uint64, outcomeID uint64, reg *market.Registry, side common.MarketSide) (uint64, bool) {
	for _, id := range marketIDs {
		m, ok := reg.GetMarket(id)
		if ok && m.OutcomeID == outcomeID && m.Side == side {
			return id, true
		}
	}
	return 0, false
}

// handleSplit implements spec.md §4.5's split primitive.
func (e *Engine) handleSplit(c SplitCmd) {
	if err := normalize.Split(e.ledger, e.registry, c.UserID, c.YesMarketID, c.Amount); err != nil {
		reply(c.Reply, nil, err)
		return
	}
	balance, _ := e.ledger.Balance(c.UserID)
	e.emit(events.Event{Kind: events.BalanceUpdated, BalanceUpdatedData: &events.BalanceUpdatedData{UserID: c.UserID, Balance: balance}})
	reply(c.Reply, nil, nil)
}

// handleMerge implements spec.md §4.5's merge primitive.
func (e *Engine) handleMerge(c MergeCmd) {
	qty, err := normalize.Merge(e.ledger, e.registry, c.UserID, c.YesMarketID)
	if err != nil {
		reply(c.Reply, nil, err)
		return
	}
	balance, _ := e.ledger.Balance(c.UserID)
	e.emit(events.Event{Kind: events.BalanceUpdated, BalanceUpdatedData: &events.BalanceUpdatedData{UserID: c.UserID, Balance: balance}})
	reply(c.Reply, qty, nil)
}

// handleCreateUser implements the supplemented CreateUser command (SPEC_FULL.md).
func (e *Engine) handleCreateUser(c CreateUserCmd) {
	u, err := e.ledger.CreateUser(c.UserID, c.Name, c.Email, c.Balance)
	if err != nil {
		reply(c.Reply, nil, err)
		return
	}
	e.emit(events.Event{Kind: events.UserCreated, UserCreatedData: &events.UserCreatedData{
		UserID: u.UserID, Email: u.Email, Name: u.Name, Balance: u.Balance,
	}})
	reply(c.Reply, *u, nil)
}

// handleOnramp implements the supplemented Onramp command (SPEC_FULL.md).
func (e *Engine) handleOnramp(c OnrampCmd) {
	if err := e.ledger.CreditBalance(c.UserID, c.Amount); err != nil {
		reply(c.Reply, nil, err)
		return
	}
	balance, _ := e.ledger.Balance(c.UserID)
	e.emit(events.Event{Kind: events.BalanceUpdated, BalanceUpdatedData: &events.BalanceUpdatedData{UserID: c.UserID, Balance: balance}})
	reply(c.Reply, balance, nil)
}

func (e *Engine) handleGetOrderBook(c GetOrderBookCmd) {
	canonicalID, ok := e.registry.CanonicalID(c.MarketID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", c.MarketID))
		return
	}
	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order book for market %d not found", canonicalID))
		return
	}
	snap, err := normalize.BuildSnapshot(c.MarketID, b, e.registry)
	reply(c.Reply, snap, err)
}

func (e *Engine) handleGetOrderbooksByEvent(c GetOrderbooksByEventCmd) {
	marketIDs := e.registry.GetMarketsByEvent(c.EventID)
	if len(marketIDs) == 0 {
		reply(c.Reply, nil, common.NewError(common.NotFound, "event %d not found", c.EventID))
		return
	}
	snaps := make([]normalize.Snapshot, 0, len(marketIDs))
	for _, id := range marketIDs {
		canonicalID, _ := e.registry.CanonicalID(id)
		b, ok := e.books[canonicalID]
		if !ok {
			continue
		}
		snap, err := normalize.BuildSnapshot(id, b, e.registry)
		if err == nil {
			snaps = append(snaps, snap)
		}
	}
	reply(c.Reply, snaps, nil)
}

func (e *Engine) handleGetOrderbooksByOutcome(c GetOrderbooksByOutcomeCmd) {
	marketIDs := e.registry.GetMarketsByOutcome(c.OutcomeID)
	if len(marketIDs) == 0 {
		reply(c.Reply, nil, common.NewError(common.NotFound, "outcome %d not found", c.OutcomeID))
		return
	}
	snaps := make([]normalize.Snapshot, 0, len(marketIDs))
	for _, id := range marketIDs {
		canonicalID, _ := e.registry.CanonicalID(id)
		b, ok := e.books[canonicalID]
		if !ok {
			continue
		}
		snap, err := normalize.BuildSnapshot(id, b, e.registry)
		if err == nil {
			snaps = append(snaps, snap)
		}
	}
	reply(c.Reply, snaps, nil)
}

func (e *Engine) handleGetBestBid(c GetBestBidCmd) {
	canonicalID, ok := e.registry.CanonicalID(c.MarketID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", c.MarketID))
		return
	}
	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order book for market %d not found", canonicalID))
		return
	}

	m, _ := e.registry.GetMarket(c.MarketID)
	var price uint8
	var found bool
	if m.Side == common.No {
		price, found = b.BestAsk()
	} else {
		price, found = b.BestBid()
	}
	if !found {
		reply(c.Reply, nil, common.NewError(common.NotFound, "no resting bid on market %d", c.MarketID))
		return
	}
	reply(c.Reply, normalize.DenormalizePrice(c.MarketID, price, e.registry), nil)
}

func (e *Engine) handleGetBestAsk(c GetBestAskCmd) {
	canonicalID, ok := e.registry.CanonicalID(c.MarketID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", c.MarketID))
		return
	}
	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order book for market %d not found", canonicalID))
		return
	}

	m, _ := e.registry.GetMarket(c.MarketID)
	var price uint8
	var found bool
	if m.Side == common.No {
		price, found = b.BestBid()
	} else {
		price, found = b.BestAsk()
	}
	if !found {
		reply(c.Reply, nil, common.NewError(common.NotFound, "no resting ask on market %d", c.MarketID))
		return
	}
	reply(c.Reply, normalize.DenormalizePrice(c.MarketID, price, e.registry), nil)
}

func (e *Engine) handleGetUserOpenOrders(c GetUserOpenOrdersCmd) {
	var out []common.Order
	for _, b := range e.books {
		for _, o := range b.Orders() {
			if o.UserID != c.UserID {
				continue
			}
			origin := e.denormOrigin(o.OrderID)
			out = append(out, e.snapshotOrder(o, origin))
		}
	}
	reply(c.Reply, out, nil)
}

func (e *Engine) handleGetOrderStatus(c GetOrderStatusCmd) {
	origin, ok := e.origins[c.OrderID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	canonicalID, ok := e.registry.CanonicalID(origin.MarketID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	b, ok := e.books[canonicalID]
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	order, ok := b.Order(c.OrderID)
	if !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "order %d not found", c.OrderID))
		return
	}
	reply(c.Reply, e.snapshotOrder(order, origin), nil)
}

func (e *Engine) handleGetBalance(c GetBalanceCmd) {
	balance, err := e.ledger.Balance(c.UserID)
	reply(c.Reply, balance, err)
}

// handleGetPosition reads the position stored under c.MarketID directly,
// without canonicalizing to the YES side: matching fills always settle
// under the canonical (YES) market id, but Split/Merge (normalize.Split)
// credit a NO position under the NO market's own id, so collapsing every
// query to the canonical id would hide a user's NO holdings entirely.
func (e *Engine) handleGetPosition(c GetPositionCmd) {
	if _, ok := e.registry.GetMarket(c.MarketID); !ok {
		reply(c.Reply, nil, common.NewError(common.NotFound, "market %d not found", c.MarketID))
		return
	}
	qty, err := e.ledger.Position(c.UserID, c.MarketID)
	reply(c.Reply, qty, err)
}

func (e *Engine) handleGetUserPositions(c GetUserPositionsCmd) {
	positions, err := e.ledger.Positions(c.UserID)
	reply(c.Reply, positions, err)
}
