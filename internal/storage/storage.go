// Package storage persists markets, pairs, order books, orders and trades.
// Uniqueness constraints here are the authoritative idempotency mechanism for
// the at-least-once pipeline.
package storage

import (
	"context"

	"github.com/openpredict/crossarb/pkg/types"
)

// Store is the persistence contract shared by the stage services.
type Store interface {
	// UpsertMarkets inserts or replaces market records keyed by
	// (venue, market_id).
	UpsertMarkets(ctx context.Context, markets []*types.Market) error

	// FilterNewMarketIDs returns the subset of ids not yet persisted for the
	// venue.
	FilterNewMarketIDs(ctx context.Context, venue types.VenueKind, ids []string) ([]string, error)

	// GetMarket fetches one market by its unique key.
	GetMarket(ctx context.Context, venue types.VenueKind, marketID string) (*types.Market, error)

	// GetMarkets fetches market records for the given ids of one venue,
	// skipping unknowns. Batched internally.
	GetMarkets(ctx context.Context, venue types.VenueKind, ids []string) ([]*types.Market, error)

	// InsertMarketPairs inserts canonicalized pairs, ignoring duplicates, and
	// returns the pairs that were actually new.
	InsertMarketPairs(ctx context.Context, pairs []types.MarketPair) ([]types.MarketPair, error)

	// ListMarketPairs returns all persisted pairs.
	ListMarketPairs(ctx context.Context) ([]types.MarketPair, error)

	// InsertOrderBooks persists book snapshots for audit.
	InsertOrderBooks(ctx context.Context, books []*types.OrderBook) error

	// InsertOrder persists a new order and assigns its internal id.
	InsertOrder(ctx context.Context, o *types.Order) error

	// UpdateOrder persists the order's status, fill size and venue order id.
	UpdateOrder(ctx context.Context, o *types.Order) error

	// GetUnsettledOrders returns orders whose status is non-terminal.
	GetUnsettledOrders(ctx context.Context) ([]*types.Order, error)

	// InsertTrades appends fill receipts.
	InsertTrades(ctx context.Context, trades []*types.Trade) error

	// Close closes the storage connection.
	Close() error
}
