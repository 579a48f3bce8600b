// Package testvenue is a synthetic venue for dry runs. It fabricates
// deterministic markets and books, accepts every order and fills it on the
// first status poll, so the whole pipeline can run without venue credentials.
package testvenue

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

// Adapter is the synthetic venue.
type Adapter struct {
	logger *zap.Logger
}

// New creates a test venue adapter.
func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Kind returns the venue identifier.
func (a *Adapter) Kind() types.VenueKind { return types.VenueTest }

// FindNewMarkets fabricates a stable set of market ids.
func (a *Adapter) FindNewMarkets(_ context.Context, limit int) ([]string, error) {
	ids := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		ids = append(ids, fmt.Sprintf("TEST-MARKET-%03d", i))
	}
	return ids, nil
}

// GetMarkets returns synthetic market records for the given ids.
func (a *Adapter) GetMarkets(_ context.Context, ids []string) ([]*types.Market, error) {
	out := make([]*types.Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, &types.Market{
			Venue:          types.VenueTest,
			MarketID:       id,
			Name:           fmt.Sprintf("Synthetic event %s resolves YES?", id),
			Rules:          "Resolves YES when the synthetic oracle says so.",
			CloseTimestamp: time.Now().Add(24 * time.Hour).Unix(),
		})
	}
	return out, nil
}

// GetOrderBooks fabricates mirrored books seeded by the market id, so
// repeated fetches of the same market agree.
func (a *Adapter) GetOrderBooks(_ context.Context, ids []string) ([]*types.OrderBook, error) {
	out := make([]*types.OrderBook, 0, len(ids))
	for _, id := range ids {
		h := fnv.New64a()
		_, _ = h.Write([]byte(id))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))

		// A YES price in [200, 800) with a small spread around it.
		mid := int64(200 + rng.Intn(600))
		spread := int64(5 + rng.Intn(20))
		qty := int64(50 + rng.Intn(200))

		book := &types.OrderBook{
			Venue:     types.VenueTest,
			MarketID:  id,
			Timestamp: time.Now().UnixMilli(),
			Yes: types.BookSide{
				Bid: []types.Level{{Price: mid - spread, Quantity: qty}},
				Ask: []types.Level{{Price: mid + spread, Quantity: qty}},
			},
			No: types.BookSide{
				Bid: []types.Level{{Price: 1000 - mid - spread, Quantity: qty}},
				Ask: []types.Level{{Price: 1000 - mid + spread, Quantity: qty}},
			},
		}
		book.SortLevels()
		out = append(out, book)
	}
	return out, nil
}

// GetBalance reports a fixed synthetic bankroll.
func (a *Adapter) GetBalance(_ context.Context) (float64, error) {
	return 10000, nil
}

// PlaceOrder accepts every order.
func (a *Adapter) PlaceOrder(_ context.Context, o *types.Order) error {
	o.VenueOrderID = uuid.NewString()
	if err := o.SetStatus(types.OrderOpen); err != nil {
		return err
	}

	a.logger.Debug("test-order-placed",
		zap.String("market", o.MarketID),
		zap.String("venue-order-id", o.VenueOrderID))
	return nil
}

// CancelOrder cancels any still-open order.
func (a *Adapter) CancelOrder(_ context.Context, o *types.Order) error {
	return venue.AdvanceStatus(o, types.OrderCanceled)
}

// GetOrderStatus fills the whole order on the first poll.
func (a *Adapter) GetOrderStatus(_ context.Context, o *types.Order) ([]*types.Trade, error) {
	if o.Status.Terminal() {
		return nil, nil
	}

	o.FillSize = o.Size
	if err := venue.AdvanceStatus(o, types.OrderExecuted); err != nil {
		return nil, err
	}

	price := o.Price * 10
	if o.Type == types.OrderTypeMarket {
		price = o.MaxPrice * 10
	}
	return []*types.Trade{{
		OrderID:      o.ID,
		VenueTradeID: uuid.NewString(),
		Quantity:     o.Size,
		Price:        price,
		ExecutedAt:   time.Now().Unix(),
	}}, nil
}
