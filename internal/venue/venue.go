// Package venue defines the adapter contract every event-contract venue
// implements, plus a registry the stage services use to resolve adapters by
// venue kind.
package venue

import (
	"context"
	"fmt"

	"github.com/openpredict/crossarb/pkg/types"
)

// Venue is the common adapter contract. Adapters are the sole site
// responsible for converting venue-native prices to tenths of a cent and
// fractional sizes to whole contracts. PlaceOrder, CancelOrder and
// GetOrderStatus mutate the passed order in place.
type Venue interface {
	// Kind returns the venue identifier.
	Kind() types.VenueKind

	// FindNewMarkets returns up to limit ids of currently-tradable markets,
	// newest first.
	FindNewMarkets(ctx context.Context, limit int) ([]string, error)

	// GetMarkets returns full Market records for the given ids, skipping
	// unknown ids. Batched internally.
	GetMarkets(ctx context.Context, ids []string) ([]*types.Market, error)

	// GetOrderBooks returns one normalized OrderBook per id: prices in
	// tenths of a cent, quantities in whole contracts, levels sorted
	// ascending. Empty level sequences are permitted.
	GetOrderBooks(ctx context.Context, ids []string) ([]*types.OrderBook, error)

	// GetBalance returns available cash in whole dollars.
	GetBalance(ctx context.Context) (float64, error)

	// PlaceOrder submits the order. On acceptance it sets VenueOrderID and
	// status OPEN; on an authoritative rejection it sets status FAILED and
	// returns the rejection. The order's ClientOrderID is used as the
	// idempotency key where the venue supports one.
	PlaceOrder(ctx context.Context, o *types.Order) error

	// CancelOrder requests cancellation; on acceptance sets status CANCELED.
	CancelOrder(ctx context.Context, o *types.Order) error

	// GetOrderStatus refreshes the order's status and fill size from venue
	// truth and returns any fills observed since the last call.
	GetOrderStatus(ctx context.Context, o *types.Order) ([]*types.Trade, error)
}

// Registry resolves adapters by venue kind.
type Registry struct {
	venues map[types.VenueKind]Venue
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(venues ...Venue) *Registry {
	m := make(map[types.VenueKind]Venue, len(venues))
	for _, v := range venues {
		m[v.Kind()] = v
	}
	return &Registry{venues: m}
}

// Get returns the adapter for a venue kind.
func (r *Registry) Get(kind types.VenueKind) (Venue, error) {
	v, ok := r.venues[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for venue %q", kind)
	}
	return v, nil
}

// All returns every registered adapter.
func (r *Registry) All() []Venue {
	out := make([]Venue, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, v)
	}
	return out
}
