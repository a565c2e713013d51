package bus

import (
	"encoding/json"
	"fmt"

	"duality/internal/common"
	"duality/internal/engine"
)

func parseSide(s string) (common.Side, error) {
	switch s {
	case "bid", "BID", "buy", "BUY":
		return common.Bid, nil
	case "ask", "ASK", "sell", "SELL":
		return common.Ask, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseOrderType(s string) (common.OrderType, error) {
	switch s {
	case "limit", "LIMIT", "", "Limit":
		return common.Limit, nil
	case "market", "MARKET", "Market":
		return common.Market, nil
	default:
		return 0, fmt.Errorf("unknown order_type %q", s)
	}
}

type placeOrderRequest struct {
	MarketID  uint64 `json:"market_id"`
	UserID    uint64 `json:"user_id"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Price     uint8  `json:"price"`
	Quantity  uint64 `json:"quantity"`
}

type cancelOrderRequest struct {
	OrderID uint64 `json:"order_id"`
}

type modifyOrderRequest struct {
	OrderID  uint64 `json:"order_id"`
	NewPrice uint8  `json:"new_price"`
	NewQty   uint64 `json:"new_qty"`
}

type splitOrderRequest struct {
	UserID      uint64 `json:"user_id"`
	YesMarketID uint64 `json:"yes_market_id"`
	Amount      uint64 `json:"amount"`
}

type mergeOrderRequest struct {
	UserID      uint64 `json:"user_id"`
	YesMarketID uint64 `json:"yes_market_id"`
}

type marketMetaRequest struct {
	EventID     uint64 `json:"event_id"`
	OutcomeID   uint64 `json:"outcome_id"`
	YesMarketID uint64 `json:"yes_market_id"`
	NoMarketID  uint64 `json:"no_market_id"`
}

type initEventMarketsRequest struct {
	Markets []marketMetaRequest `json:"markets"`
}

type closeEventMarketsRequest struct {
	EventID          uint64 `json:"event_id"`
	WinningOutcomeID uint64 `json:"winning_outcome_id"`
}

type createUserRequest struct {
	UserID  uint64 `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
}

type onrampRequest struct {
	UserID uint64 `json:"user_id"`
	Amount int64  `json:"amount"`
}

type userIDRequest struct {
	UserID uint64 `json:"user_id"`
}

type orderIDRequest struct {
	OrderID uint64 `json:"order_id"`
}

type positionRequest struct {
	UserID   uint64 `json:"user_id"`
	MarketID uint64 `json:"market_id"`
}

type marketIDRequest struct {
	MarketID uint64 `json:"market_id"`
}

type eventIDRequest struct {
	EventID uint64 `json:"event_id"`
}

type outcomeIDRequest struct {
	OutcomeID uint64 `json:"outcome_id"`
}

// dispatchTradingAction decodes and executes one server_requests action,
// covering spec.md §6's command vocabulary
// (place-order/cancel-order/modify-order/split-order/merge-order/
// init-event-markets/close-event-markets/create-user/onramp/get-balance/
// get-positions/get-position/get-portfolio/get-open-orders/get-order-status).
func dispatchTradingAction(e *engine.Engine, action string, data json.RawMessage) (any, error) {
	switch action {
	case "place-order":
		var req placeOrderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid place-order payload: %v", err)
		}
		side, err := parseSide(req.Side)
		if err != nil {
			return nil, common.NewError(common.InvalidArgument, "%v", err)
		}
		otype, err := parseOrderType(req.OrderType)
		if err != nil {
			return nil, common.NewError(common.InvalidArgument, "%v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.PlaceOrderCmd{
			MarketID: req.MarketID, UserID: req.UserID, Side: side, Type: otype,
			Price: req.Price, Qty: req.Quantity, Reply: ch,
		})
		result := <-ch
		return result.Data, result.Err

	case "cancel-order":
		var req cancelOrderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid cancel-order payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.CancelOrderCmd{OrderID: req.OrderID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "modify-order":
		var req modifyOrderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid modify-order payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.ModifyOrderCmd{OrderID: req.OrderID, NewPrice: req.NewPrice, NewQty: req.NewQty, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "split-order":
		var req splitOrderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid split-order payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.SplitCmd{UserID: req.UserID, YesMarketID: req.YesMarketID, Amount: req.Amount, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "merge-order":
		var req mergeOrderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid merge-order payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.MergeCmd{UserID: req.UserID, YesMarketID: req.YesMarketID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "init-event-markets":
		var req initEventMarketsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid init-event-markets payload: %v", err)
		}
		metas := make([]engine.MarketMeta, len(req.Markets))
		for i, m := range req.Markets {
			metas[i] = engine.MarketMeta{
				EventID: m.EventID, OutcomeID: m.OutcomeID,
				YesMarketID: m.YesMarketID, NoMarketID: m.NoMarketID,
			}
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.InitMarketsCmd{Metas: metas, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "close-event-markets":
		var req closeEventMarketsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid close-event-markets payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.CloseEventMarketsCmd{EventID: req.EventID, WinningOutcomeID: req.WinningOutcomeID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "create-user":
		var req createUserRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid create-user payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.CreateUserCmd{UserID: req.UserID, Name: req.Name, Email: req.Email, Balance: req.Balance, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "onramp":
		var req onrampRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid onramp payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.OnrampCmd{UserID: req.UserID, Amount: req.Amount, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-open-orders":
		var req userIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-open-orders payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetUserOpenOrdersCmd{UserID: req.UserID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-order-status":
		var req orderIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-order-status payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetOrderStatusCmd{OrderID: req.OrderID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-balance":
		var req userIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-balance payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetBalanceCmd{UserID: req.UserID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-positions":
		var req userIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-positions payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetUserPositionsCmd{UserID: req.UserID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-position":
		var req positionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-position payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetPositionCmd{UserID: req.UserID, MarketID: req.MarketID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-portfolio":
		var req userIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-portfolio payload: %v", err)
		}
		balanceCh := make(chan engine.Reply, 1)
		e.Submit(engine.GetBalanceCmd{UserID: req.UserID, Reply: balanceCh})
		balanceResult := <-balanceCh
		if balanceResult.Err != nil {
			return nil, balanceResult.Err
		}
		positionsCh := make(chan engine.Reply, 1)
		e.Submit(engine.GetUserPositionsCmd{UserID: req.UserID, Reply: positionsCh})
		positionsResult := <-positionsCh
		if positionsResult.Err != nil {
			return nil, positionsResult.Err
		}
		return map[string]any{"balance": balanceResult.Data, "positions": positionsResult.Data}, nil

	default:
		return nil, common.NewError(common.InvalidArgument, "unknown action %q", action)
	}
}

// dispatchReadAction covers the book/market read queries spec.md §6 routes
// over db_read_requests rather than server_requests.
func dispatchReadAction(e *engine.Engine, action string, data json.RawMessage) (any, error) {
	switch action {
	case "get-orderbook":
		var req marketIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-orderbook payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetOrderBookCmd{MarketID: req.MarketID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-orderbooks-by-event":
		var req eventIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-orderbooks-by-event payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetOrderbooksByEventCmd{EventID: req.EventID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-orderbooks-by-outcome":
		var req outcomeIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-orderbooks-by-outcome payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetOrderbooksByOutcomeCmd{OutcomeID: req.OutcomeID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-best-bid":
		var req marketIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-best-bid payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetBestBidCmd{MarketID: req.MarketID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	case "get-best-ask":
		var req marketIDRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, common.NewError(common.InvalidArgument, "invalid get-best-ask payload: %v", err)
		}
		ch := make(chan engine.Reply, 1)
		e.Submit(engine.GetBestAskCmd{MarketID: req.MarketID, Reply: ch})
		result := <-ch
		return result.Data, result.Err

	default:
		return nil, common.NewError(common.InvalidArgument, "unknown action %q", action)
	}
}
