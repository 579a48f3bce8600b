package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openpredict/crossarb/internal/testutil"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/stream"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string]interface{}
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]interface{})} }

func (c *mapCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(key string, value interface{}, _ time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return true
}

func (c *mapCache) Delete(key string) {}
func (c *mapCache) Clear()            {}
func (c *mapCache) Close()            {}

func newService(t *testing.T, store *testutil.MemoryStore, log *stream.MemoryLog, v1, v2 venue.Venue) *Service {
	t.Helper()

	svc := New(&Config{
		Log:   log,
		Store: store,
		Strategy: NewStrategy(&StrategyConfig{
			Registry:     venue.NewRegistry(v1, v2),
			Store:        store,
			PollTimeout:  100 * time.Millisecond,
			PollInterval: time.Millisecond,
			Logger:       zap.NewNop(),
		}),
		Markets:  newMapCache(),
		Consumer: "executor-test",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, svc.Init(context.Background()))
	return svc
}

func seedMarkets(t *testing.T, store *testutil.MemoryStore) {
	t.Helper()
	require.NoError(t, store.UpsertMarkets(context.Background(), []*types.Market{
		{Venue: types.VenuePolymarket, MarketID: "0xfed", Name: "Fed rate cut?"},
		{Venue: types.VenueKalshi, MarketID: "FED-CUT", Name: "Fed cuts rates?"},
	}))
}

func opportunityEvent(t *testing.T, shares int64) map[string]string {
	t.Helper()
	encoded, err := testOpportunity(shares).Encode()
	require.NoError(t, err)
	return map[string]string{
		"market_id_1": "0xfed",
		"venue_1":     "polymarket",
		"market_id_2": "FED-CUT",
		"venue_2":     "kalshi",
		"opportunity": encoded,
	}
}

func TestRunOnceExecutesOpportunity(t *testing.T) {
	store := testutil.NewMemoryStore()
	log := stream.NewMemoryLog()
	v1 := &testutil.ScriptedVenue{VenueKind: types.VenuePolymarket}
	v2 := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	svc := newService(t, store, log, v1, v2)
	seedMarkets(t, store)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.Opportunities, opportunityEvent(t, 20)))
	svc.RunOnce(ctx)

	require.Equal(t, 0, log.PendingCount(stream.Opportunities, stream.ExecutionGroup))
	require.Equal(t, int64(20), sumFills(v1.Placed()))
	require.Equal(t, int64(20), sumFills(v2.Placed()))
}

func TestRunOnceAcksAbandonedOpportunity(t *testing.T) {
	store := testutil.NewMemoryStore()
	log := stream.NewMemoryLog()
	v1 := &testutil.ScriptedVenue{VenueKind: types.VenuePolymarket}
	v2 := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	v2.PlaceFunc = func(o *types.Order) error {
		_ = o.SetStatus(types.OrderFailed)
		return types.Rejected(types.VenueKalshi, "market_closed", "market is closed")
	}
	svc := newService(t, store, log, v1, v2)
	seedMarkets(t, store)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.Opportunities, opportunityEvent(t, 20)))
	svc.RunOnce(ctx)

	// A partially worked opportunity must not be redelivered.
	require.Equal(t, 0, log.PendingCount(stream.Opportunities, stream.ExecutionGroup))
	require.Len(t, v1.Canceled(), 1)
}

func TestRunOncePoisonOpportunityAcked(t *testing.T) {
	store := testutil.NewMemoryStore()
	log := stream.NewMemoryLog()
	v1 := &testutil.ScriptedVenue{VenueKind: types.VenuePolymarket}
	v2 := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	svc := newService(t, store, log, v1, v2)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.Opportunities, map[string]string{
		"market_id_1": "0xfed",
		"venue_1":     "polymarket",
		"market_id_2": "FED-CUT",
		"venue_2":     "kalshi",
		"opportunity": `{"type":"sideways"}`,
	}))
	svc.RunOnce(ctx)

	require.Equal(t, 0, log.PendingCount(stream.Opportunities, stream.ExecutionGroup))
	require.Empty(t, v1.Placed())
}

func TestRunOnceUnknownMarketLeavesPending(t *testing.T) {
	store := testutil.NewMemoryStore() // markets never seeded
	log := stream.NewMemoryLog()
	v1 := &testutil.ScriptedVenue{VenueKind: types.VenuePolymarket}
	v2 := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	svc := newService(t, store, log, v1, v2)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.Opportunities, opportunityEvent(t, 20)))
	svc.RunOnce(ctx)

	require.Equal(t, 1, log.PendingCount(stream.Opportunities, stream.ExecutionGroup))
	require.Empty(t, v1.Placed())
}
