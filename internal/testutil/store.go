// Package testutil provides in-memory fakes of the storage and venue
// contracts for stage-service tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/openpredict/crossarb/pkg/types"
)

// MemoryStore is an in-memory storage.Store with the same idempotency
// semantics as the Postgres implementation.
type MemoryStore struct {
	mu          sync.Mutex
	markets     map[string]*types.Market     // by market key
	pairs       map[string]types.MarketPair  // by pair key
	books       []*types.OrderBook
	orders      map[int64]*types.Order       // by internal id
	orderByCOID map[string]int64             // client order id -> internal id
	trades      map[string]*types.Trade      // by order id + venue trade id
	nextOrderID int64
	nextTradeID int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:     make(map[string]*types.Market),
		pairs:       make(map[string]types.MarketPair),
		orders:      make(map[int64]*types.Order),
		orderByCOID: make(map[string]int64),
		trades:      make(map[string]*types.Trade),
	}
}

// UpsertMarkets inserts or replaces market records.
func (s *MemoryStore) UpsertMarkets(_ context.Context, markets []*types.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range markets {
		copied := *m
		s.markets[m.Key()] = &copied
	}
	return nil
}

// FilterNewMarketIDs returns the ids not yet stored for the venue.
func (s *MemoryStore) FilterNewMarketIDs(_ context.Context, venue types.VenueKind, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range ids {
		if _, ok := s.markets[string(venue)+"/"+id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// GetMarket fetches one market.
func (s *MemoryStore) GetMarket(_ context.Context, venue types.VenueKind, marketID string) (*types.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[string(venue)+"/"+marketID]
	if !ok {
		return nil, fmt.Errorf("market %s/%s not found", venue, marketID)
	}
	copied := *m
	return &copied, nil
}

// GetMarkets fetches known markets for the ids, skipping unknowns.
func (s *MemoryStore) GetMarkets(_ context.Context, venue types.VenueKind, ids []string) ([]*types.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Market
	for _, id := range ids {
		if m, ok := s.markets[string(venue)+"/"+id]; ok {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

// InsertMarketPairs inserts canonical pairs, returning only the new ones.
func (s *MemoryStore) InsertMarketPairs(_ context.Context, pairs []types.MarketPair) ([]types.MarketPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted []types.MarketPair
	for _, p := range pairs {
		p.Canonicalize()
		if _, ok := s.pairs[p.Key()]; ok {
			continue
		}
		s.pairs[p.Key()] = p
		inserted = append(inserted, p)
	}
	return inserted, nil
}

// ListMarketPairs returns all stored pairs.
func (s *MemoryStore) ListMarketPairs(_ context.Context) ([]types.MarketPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.MarketPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	return out, nil
}

// InsertOrderBooks appends audit snapshots.
func (s *MemoryStore) InsertOrderBooks(_ context.Context, books []*types.OrderBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = append(s.books, books...)
	return nil
}

// InsertOrder assigns the order's internal id. Reinserting the same client
// order id reuses the existing id, as the unique constraint does in Postgres.
func (s *MemoryStore) InsertOrder(_ context.Context, o *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.orderByCOID[o.ClientOrderID]; ok {
		o.ID = id
		return nil
	}
	s.nextOrderID++
	o.ID = s.nextOrderID
	copied := *o
	s.orders[o.ID] = &copied
	s.orderByCOID[o.ClientOrderID] = o.ID
	return nil
}

// UpdateOrder persists status, fill size and venue order id.
func (s *MemoryStore) UpdateOrder(_ context.Context, o *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %d not found", o.ID)
	}
	stored.Status = o.Status
	stored.FillSize = o.FillSize
	stored.VenueOrderID = o.VenueOrderID
	return nil
}

// GetUnsettledOrders returns copies of all non-terminal orders.
func (s *MemoryStore) GetUnsettledOrders(_ context.Context) ([]*types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Order
	for _, o := range s.orders {
		if !o.Status.Terminal() {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

// InsertTrades appends fills, ignoring duplicates on (order, venue trade).
func (s *MemoryStore) InsertTrades(_ context.Context, trades []*types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		key := fmt.Sprintf("%d/%s", t.OrderID, t.VenueTradeID)
		if _, ok := s.trades[key]; ok {
			continue
		}
		s.nextTradeID++
		copied := *t
		copied.ID = s.nextTradeID
		s.trades[key] = &copied
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Order returns a copy of the stored order, or nil.
func (s *MemoryStore) Order(id int64) *types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	copied := *o
	return &copied
}

// Orders returns copies of every stored order.
func (s *MemoryStore) Orders() []*types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Order, 0, len(s.orders))
	for _, o := range s.orders {
		copied := *o
		out = append(out, &copied)
	}
	return out
}

// TradeCount reports the number of distinct stored trades.
func (s *MemoryStore) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// BookCount reports the number of persisted book snapshots.
func (s *MemoryStore) BookCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.books)
}

// PairCount reports the number of stored pairs.
func (s *MemoryStore) PairCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pairs)
}
