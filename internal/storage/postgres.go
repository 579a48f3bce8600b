package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

// uniqueViolation is the Postgres error code for duplicate keys. Duplicate
// inserts are idempotent successes under at-least-once delivery.
const uniqueViolation = "23505"

// markets IN-queries are chunked to keep parameter arrays bounded.
const marketChunkSize = 100

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// NewPostgresStoreFromDB wraps an existing connection. Used by tests with
// sqlmock.
func NewPostgresStoreFromDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// UpsertMarkets inserts or replaces market records keyed by (venue, market_id).
func (p *PostgresStore) UpsertMarkets(ctx context.Context, markets []*types.Market) error {
	query := `
		INSERT INTO markets (venue, market_id, name, rules, close_timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (venue, market_id) DO UPDATE SET
			name = EXCLUDED.name,
			rules = EXCLUDED.rules,
			close_timestamp = EXCLUDED.close_timestamp
	`

	for _, m := range markets {
		_, err := p.db.ExecContext(ctx, query,
			m.Venue, m.MarketID, m.Name, m.Rules, m.CloseTimestamp)
		if err != nil {
			return fmt.Errorf("upsert market %s: %w", m.Key(), err)
		}
	}

	p.logger.Debug("markets-upserted", zap.Int("count", len(markets)))
	return nil
}

// FilterNewMarketIDs returns the subset of ids not yet persisted for the venue.
func (p *PostgresStore) FilterNewMarketIDs(ctx context.Context, venue types.VenueKind, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{})
	query := `SELECT market_id FROM markets WHERE venue = $1 AND market_id = ANY($2)`

	for _, chunk := range chunkStrings(ids, marketChunkSize) {
		rows, err := p.db.QueryContext(ctx, query, venue, pq.Array(chunk))
		if err != nil {
			return nil, fmt.Errorf("query known markets: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan market id: %w", err)
			}
			known[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate market ids: %w", err)
		}
		rows.Close()
	}

	var fresh []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// GetMarket fetches one market by its unique key.
func (p *PostgresStore) GetMarket(ctx context.Context, venue types.VenueKind, marketID string) (*types.Market, error) {
	query := `
		SELECT venue, market_id, name, rules, close_timestamp
		FROM markets WHERE venue = $1 AND market_id = $2
	`

	var m types.Market
	err := p.db.QueryRowContext(ctx, query, venue, marketID).Scan(
		&m.Venue, &m.MarketID, &m.Name, &m.Rules, &m.CloseTimestamp)
	if err != nil {
		return nil, fmt.Errorf("get market %s/%s: %w", venue, marketID, err)
	}
	return &m, nil
}

// GetMarkets fetches market records for the given ids, skipping unknowns.
func (p *PostgresStore) GetMarkets(ctx context.Context, venue types.VenueKind, ids []string) ([]*types.Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT venue, market_id, name, rules, close_timestamp
		FROM markets WHERE venue = $1 AND market_id = ANY($2)
	`

	var out []*types.Market
	for _, chunk := range chunkStrings(ids, marketChunkSize) {
		rows, err := p.db.QueryContext(ctx, query, venue, pq.Array(chunk))
		if err != nil {
			return nil, fmt.Errorf("query markets: %w", err)
		}
		for rows.Next() {
			var m types.Market
			if err := rows.Scan(&m.Venue, &m.MarketID, &m.Name, &m.Rules, &m.CloseTimestamp); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan market: %w", err)
			}
			out = append(out, &m)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate markets: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// InsertMarketPairs inserts canonicalized pairs, ignoring duplicates, and
// returns the pairs that were actually new.
func (p *PostgresStore) InsertMarketPairs(ctx context.Context, pairs []types.MarketPair) ([]types.MarketPair, error) {
	query := `
		INSERT INTO market_pairs (market_id_1, venue_1, market_id_2, venue_2)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (market_id_1, market_id_2) DO NOTHING
	`

	var inserted []types.MarketPair
	for _, pair := range pairs {
		pair.Canonicalize()
		res, err := p.db.ExecContext(ctx, query,
			pair.MarketID1, pair.Venue1, pair.MarketID2, pair.Venue2)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("insert pair %s: %w", pair.Key(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected for pair %s: %w", pair.Key(), err)
		}
		if n > 0 {
			inserted = append(inserted, pair)
		}
	}

	p.logger.Debug("market-pairs-inserted",
		zap.Int("attempted", len(pairs)),
		zap.Int("new", len(inserted)))
	return inserted, nil
}

// ListMarketPairs returns all persisted pairs.
func (p *PostgresStore) ListMarketPairs(ctx context.Context) ([]types.MarketPair, error) {
	query := `SELECT market_id_1, venue_1, market_id_2, venue_2 FROM market_pairs`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list market pairs: %w", err)
	}
	defer rows.Close()

	var out []types.MarketPair
	for rows.Next() {
		var pair types.MarketPair
		if err := rows.Scan(&pair.MarketID1, &pair.Venue1, &pair.MarketID2, &pair.Venue2); err != nil {
			return nil, fmt.Errorf("scan market pair: %w", err)
		}
		out = append(out, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market pairs: %w", err)
	}
	return out, nil
}

// InsertOrderBooks persists book snapshots for audit. Level sequences are
// stored as a JSON document.
func (p *PostgresStore) InsertOrderBooks(ctx context.Context, books []*types.OrderBook) error {
	query := `
		INSERT INTO order_books (venue, market_id, ts, book)
		VALUES ($1, $2, $3, $4)
	`

	for _, b := range books {
		doc, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal order book %s/%s: %w", b.Venue, b.MarketID, err)
		}
		_, err = p.db.ExecContext(ctx, query, b.Venue, b.MarketID, b.Timestamp, doc)
		if err != nil {
			return fmt.Errorf("insert order book %s/%s: %w", b.Venue, b.MarketID, err)
		}
	}
	return nil
}

// InsertOrder persists a new order and assigns its internal id. Duplicate
// client order ids (redelivered placements) surface the existing row's id.
func (p *PostgresStore) InsertOrder(ctx context.Context, o *types.Order) error {
	query := `
		INSERT INTO orders (
			client_order_id, venue, market_id, side, action, order_type,
			size, price, max_price, time_in_force, venue_order_id, status, fill_size
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := p.db.QueryRowContext(ctx, query,
		o.ClientOrderID, o.Venue, o.MarketID, o.Side, o.Action, o.Type,
		o.Size, o.Price, o.MaxPrice, o.TimeInForce, o.VenueOrderID, o.Status, o.FillSize,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			lookup := `SELECT id FROM orders WHERE client_order_id = $1`
			if scanErr := p.db.QueryRowContext(ctx, lookup, o.ClientOrderID).Scan(&o.ID); scanErr == nil {
				return nil
			}
		}
		return fmt.Errorf("insert order %s: %w", o.ClientOrderID, err)
	}
	return nil
}

// UpdateOrder persists the order's status, fill size and venue order id.
func (p *PostgresStore) UpdateOrder(ctx context.Context, o *types.Order) error {
	query := `
		UPDATE orders SET status = $1, fill_size = $2, venue_order_id = $3
		WHERE id = $4
	`

	_, err := p.db.ExecContext(ctx, query, o.Status, o.FillSize, o.VenueOrderID, o.ID)
	if err != nil {
		return fmt.Errorf("update order %d: %w", o.ID, err)
	}
	return nil
}

// GetUnsettledOrders returns orders whose status is non-terminal.
func (p *PostgresStore) GetUnsettledOrders(ctx context.Context) ([]*types.Order, error) {
	query := `
		SELECT id, client_order_id, venue, market_id, side, action, order_type,
			size, price, max_price, time_in_force, venue_order_id, status, fill_size
		FROM orders WHERE status IN ($1, $2, $3)
	`

	rows, err := p.db.QueryContext(ctx, query,
		types.OrderPending, types.OrderOpen, types.OrderPartiallyFilled)
	if err != nil {
		return nil, fmt.Errorf("query unsettled orders: %w", err)
	}
	defer rows.Close()

	var out []*types.Order
	for rows.Next() {
		var o types.Order
		err := rows.Scan(
			&o.ID, &o.ClientOrderID, &o.Venue, &o.MarketID, &o.Side, &o.Action, &o.Type,
			&o.Size, &o.Price, &o.MaxPrice, &o.TimeInForce, &o.VenueOrderID, &o.Status, &o.FillSize)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

// InsertTrades appends fill receipts. Duplicate venue trade ids are ignored.
func (p *PostgresStore) InsertTrades(ctx context.Context, trades []*types.Trade) error {
	query := `
		INSERT INTO trades (order_id, venue_trade_id, quantity, price, executed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, venue_trade_id) DO NOTHING
	`

	for _, t := range trades {
		_, err := p.db.ExecContext(ctx, query,
			t.OrderID, t.VenueTradeID, t.Quantity, t.Price, t.ExecutedAt)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return fmt.Errorf("insert trade %s: %w", t.VenueTradeID, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}
