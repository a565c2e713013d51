package events

import "encoding/json"

// MarshalJSON flattens the tagged-union shape: only the payload matching
// Kind is emitted alongside event_type and timestamp, matching db_events'
// wire format (one flat JSON object per entry, not a nested "data" field).
func (e Event) MarshalJSON() ([]byte, error) {
	base := map[string]any{
		"event_type": e.Kind,
		"timestamp":  e.Timestamp,
	}
	merge := func(payload any) ([]byte, error) {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			base[k] = v
		}
		return json.Marshal(base)
	}

	switch e.Kind {
	case OrderPlaced:
		return merge(e.OrderPlacedData)
	case OrderCancelled:
		return merge(e.OrderCancelledData)
	case OrderModified:
		return merge(e.OrderModifiedData)
	case OrderFilled:
		return merge(e.OrderFilledData)
	case TradeExecuted:
		return merge(e.TradeExecutedData)
	case PositionUpdated:
		return merge(e.PositionUpdatedData)
	case BalanceUpdated:
		return merge(e.BalanceUpdatedData)
	case UserCreated:
		return merge(e.UserCreatedData)
	case EventCreated:
		return merge(e.EventCreatedData)
	case EventResolved:
		return merge(e.EventResolvedData)
	case EventUpdated:
		return merge(e.EventUpdatedData)
	case EventDeleted:
		return merge(e.EventDeletedData)
	default:
		return json.Marshal(base)
	}
}
