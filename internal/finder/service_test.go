package finder

import (
	"context"
	"errors"
	"testing"

	"github.com/openpredict/crossarb/internal/arbitrage"
	"github.com/openpredict/crossarb/internal/testutil"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/stream"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func book(v types.VenueKind, id string, yesAsk, noAsk int64) *types.OrderBook {
	return &types.OrderBook{
		Venue:    v,
		MarketID: id,
		Yes:      types.BookSide{Ask: []types.Level{{Price: yesAsk, Quantity: 400}}},
		No:       types.BookSide{Ask: []types.Level{{Price: noAsk, Quantity: 400}}},
	}
}

func pairEvent() map[string]string {
	return map[string]string{
		"market_id_1": "0xfed",
		"venue_1":     "polymarket",
		"market_id_2": "FED-CUT",
		"venue_2":     "kalshi",
	}
}

func newFixture(t *testing.T, v1, v2 venue.Venue) (*Service, *stream.MemoryLog, *testutil.MemoryStore) {
	t.Helper()

	log := stream.NewMemoryLog()
	store := testutil.NewMemoryStore()
	svc := New(&Config{
		Log:      log,
		Store:    store,
		Registry: venue.NewRegistry(v1, v2),
		Sizer: arbitrage.Config{
			ProfitThreshold:  0.05,
			ExpectedSlippage: 0.01,
		},
		Consumer: "finder-test",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, svc.Init(context.Background()))
	return svc, log, store
}

func TestEvaluatePublishesOpportunity(t *testing.T) {
	poly := &testutil.ScriptedVenue{
		VenueKind: types.VenuePolymarket,
		Books:     map[string]*types.OrderBook{"0xfed": book(types.VenuePolymarket, "0xfed", 400, 700)},
	}
	kalshi := &testutil.ScriptedVenue{
		VenueKind: types.VenueKalshi,
		Books:     map[string]*types.OrderBook{"FED-CUT": book(types.VenueKalshi, "FED-CUT", 700, 400)},
	}
	svc, log, store := newFixture(t, poly, kalshi)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.MarketPairs, pairEvent()))
	svc.RunOnce(ctx)

	require.Equal(t, 0, log.PendingCount(stream.MarketPairs, stream.ArbitrageGroup))
	require.Equal(t, 2, store.BookCount())

	records := log.Records(stream.Opportunities)
	require.Len(t, records, 1)
	require.Equal(t, "0xfed", records[0].Values["market_id_1"])
	require.Equal(t, "kalshi", records[0].Values["venue_2"])

	opp, err := types.DecodeOpportunity(records[0].Values["opportunity"])
	require.NoError(t, err)
	// YES at 400 on venue 1, NO at 400 on venue 2: combined 800 per share
	// clears the 1000 payout with margin for the whole 400-contract depth.
	require.Equal(t, types.OppYes1No2, opp.Type)
	require.Equal(t, int64(400), opp.Shares)
	require.Equal(t, int64(800), opp.CostPerShare)
	require.Equal(t, "0xfed|FED-CUT", opp.PairKey)
}

func TestEvaluateNoArbitragePublishesNothing(t *testing.T) {
	poly := &testutil.ScriptedVenue{
		VenueKind: types.VenuePolymarket,
		Books:     map[string]*types.OrderBook{"0xfed": book(types.VenuePolymarket, "0xfed", 500, 500)},
	}
	kalshi := &testutil.ScriptedVenue{
		VenueKind: types.VenueKalshi,
		Books:     map[string]*types.OrderBook{"FED-CUT": book(types.VenueKalshi, "FED-CUT", 500, 500)},
	}
	svc, log, _ := newFixture(t, poly, kalshi)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.MarketPairs, pairEvent()))
	svc.RunOnce(ctx)

	// The record still acks: no arbitrage is a normal outcome.
	require.Equal(t, 0, log.PendingCount(stream.MarketPairs, stream.ArbitrageGroup))
	require.Equal(t, 0, log.Len(stream.Opportunities))
}

func TestEvaluateBookFetchFailureLeavesPending(t *testing.T) {
	poly := &testutil.ScriptedVenue{
		VenueKind: types.VenuePolymarket,
		BooksErr:  errors.New("rate limited"),
	}
	kalshi := &testutil.ScriptedVenue{
		VenueKind: types.VenueKalshi,
		Books:     map[string]*types.OrderBook{"FED-CUT": book(types.VenueKalshi, "FED-CUT", 700, 400)},
	}
	svc, log, _ := newFixture(t, poly, kalshi)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.MarketPairs, pairEvent()))
	svc.RunOnce(ctx)

	require.Equal(t, 1, log.PendingCount(stream.MarketPairs, stream.ArbitrageGroup))
	require.Equal(t, 0, log.Len(stream.Opportunities))
}

func TestResweepEvaluatesPersistedPairs(t *testing.T) {
	poly := &testutil.ScriptedVenue{
		VenueKind: types.VenuePolymarket,
		Books:     map[string]*types.OrderBook{"0xfed": book(types.VenuePolymarket, "0xfed", 400, 700)},
	}
	kalshi := &testutil.ScriptedVenue{
		VenueKind: types.VenueKalshi,
		Books:     map[string]*types.OrderBook{"FED-CUT": book(types.VenueKalshi, "FED-CUT", 700, 400)},
	}
	svc, log, store := newFixture(t, poly, kalshi)
	ctx := context.Background()

	// The pair is already persisted; nothing is on the stream.
	_, err := store.InsertMarketPairs(ctx, []types.MarketPair{{
		MarketID1: "0xfed", Venue1: types.VenuePolymarket,
		MarketID2: "FED-CUT", Venue2: types.VenueKalshi,
	}})
	require.NoError(t, err)

	svc.Resweep(ctx)

	records := log.Records(stream.Opportunities)
	require.Len(t, records, 1)
	opp, err := types.DecodeOpportunity(records[0].Values["opportunity"])
	require.NoError(t, err)
	require.Equal(t, int64(400), opp.Shares)
}

func TestPoisonPairIsAcked(t *testing.T) {
	poly := &testutil.ScriptedVenue{VenueKind: types.VenuePolymarket}
	kalshi := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	svc, log, _ := newFixture(t, poly, kalshi)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, stream.MarketPairs, map[string]string{
		"market_id_1": "X", "venue_1": "nasdaq", "market_id_2": "Y", "venue_2": "kalshi",
	}))
	svc.RunOnce(ctx)

	require.Equal(t, 0, log.PendingCount(stream.MarketPairs, stream.ArbitrageGroup))
}
