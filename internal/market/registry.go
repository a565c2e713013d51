// Package market implements the Market Registry (spec.md §4.1): immutable
// (after creation) market metadata plus the event→markets and
// outcome→markets indexes. Writes come only from the Engine Actor; reads are
// shared with any goroutine holding a *Registry, per spec.md §5's
// "actor-owned, replies via snapshot copy" option, grounded on
// original_source/.../store/market.rs's Arc<RwLock<HashMap>>.
package market

import (
	"sort"
	"sync"

	"github.com/emirpasic/gods/v2/sets/treeset"

	"duality/internal/common"
)

func uint64Cmp(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Meta describes one outcome's YES/NO market pair at registration time.
type Meta struct {
	EventID      uint64
	OutcomeID    uint64
	YesMarketID  uint64
	NoMarketID   uint64
}

// Registry is the shared-read, actor-written store of Market metadata.
type Registry struct {
	mu           sync.RWMutex
	markets      map[uint64]common.Market
	byEvent      map[uint64]*treeset.Set[uint64]
	byOutcome    map[uint64]*treeset.Set[uint64]
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		markets:   make(map[uint64]common.Market),
		byEvent:   make(map[uint64]*treeset.Set[uint64]),
		byOutcome: make(map[uint64]*treeset.Set[uint64]),
	}
}

// RegisterMarketPair atomically inserts both markets of m.Meta with
// complementary paired_market_id, side and status ACTIVE. It fails if either
// id is already registered.
func (r *Registry) RegisterMarketPair(m Meta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.YesMarketID]; exists {
		return common.NewError(common.DuplicateMarket, "market %d already registered", m.YesMarketID)
	}
	if _, exists := r.markets[m.NoMarketID]; exists {
		return common.NewError(common.DuplicateMarket, "market %d already registered", m.NoMarketID)
	}

	r.markets[m.YesMarketID] = common.Market{
		MarketID:       m.YesMarketID,
		Side:           common.Yes,
		PairedMarketID: m.NoMarketID,
		EventID:        m.EventID,
		OutcomeID:      m.OutcomeID,
		Status:         common.MarketActive,
	}
	r.markets[m.NoMarketID] = common.Market{
		MarketID:       m.NoMarketID,
		Side:           common.No,
		PairedMarketID: m.YesMarketID,
		EventID:        m.EventID,
		OutcomeID:      m.OutcomeID,
		Status:         common.MarketActive,
	}

	r.indexAdd(r.byEvent, m.EventID, m.YesMarketID)
	r.indexAdd(r.byEvent, m.EventID, m.NoMarketID)
	r.indexAdd(r.byOutcome, m.OutcomeID, m.YesMarketID)
	r.indexAdd(r.byOutcome, m.OutcomeID, m.NoMarketID)

	return nil
}

func (r *Registry) indexAdd(index map[uint64]*treeset.Set[uint64], key, marketID uint64) {
	set, ok := index[key]
	if !ok {
		set = treeset.NewWith(uint64Cmp)
		index[key] = set
	}
	set.Add(marketID)
}

// GetMarket returns a copy of the market's metadata, or false if unregistered.
func (r *Registry) GetMarket(marketID uint64) (common.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[marketID]
	return m, ok
}

// GetMarketsByEvent returns the market ids belonging to event, ascending.
func (r *Registry) GetMarketsByEvent(eventID uint64) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.byEvent[eventID]
	if !ok {
		return nil
	}
	return set.Values()
}

// GetMarketsByOutcome returns the market ids belonging to outcome, ascending.
func (r *Registry) GetMarketsByOutcome(outcomeID uint64) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.byOutcome[outcomeID]
	if !ok {
		return nil
	}
	return set.Values()
}

// UpdateStatus bulk-transitions marketIDs to newStatus. Unknown ids are
// skipped rather than failing the whole batch, since CloseEventMarkets calls
// this after orders on a mix of possibly-already-terminal markets have been
// unwound.
func (r *Registry) UpdateStatus(marketIDs []uint64, newStatus common.MarketStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range marketIDs {
		if m, ok := r.markets[id]; ok {
			m.Status = newStatus
			r.markets[id] = m
		}
	}
}

// RemoveMarketsByEvent removes metadata for every market of event and cleans
// both indexes. Returns the removed market ids.
func (r *Registry) RemoveMarketsByEvent(eventID uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byEvent[eventID]
	if !ok {
		return nil
	}
	ids := set.Values()
	for _, id := range ids {
		m := r.markets[id]
		delete(r.markets, id)
		if outcomeSet, ok := r.byOutcome[m.OutcomeID]; ok {
			outcomeSet.Remove(id)
			if outcomeSet.Empty() {
				delete(r.byOutcome, m.OutcomeID)
			}
		}
	}
	delete(r.byEvent, eventID)

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CanonicalID returns the canonical (YES) market id for marketID, following
// paired_market_id if marketID is a NO market. Returns false if unregistered.
func (r *Registry) CanonicalID(marketID uint64) (uint64, bool) {
	m, ok := r.GetMarket(marketID)
	if !ok {
		return 0, false
	}
	if m.Side == common.Yes {
		return m.MarketID, true
	}
	return m.PairedMarketID, true
}
