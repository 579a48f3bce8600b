package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/openpredict/crossarb/internal/testutil"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(store *testutil.MemoryStore, venues ...venue.Venue) *Service {
	return New(&Config{
		Store:    store,
		Registry: venue.NewRegistry(venues...),
		Logger:   zap.NewNop(),
	})
}

func insertOrder(t *testing.T, store *testutil.MemoryStore, v types.VenueKind, marketID string) *types.Order {
	t.Helper()
	o, err := types.NewMarketBuyOrder(v, marketID, types.SideYes, 10, 40)
	require.NoError(t, err)
	require.NoError(t, store.InsertOrder(context.Background(), o))
	return o
}

func TestRunOnceSettlesCrashedOrder(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()

	// The executor died right after placement: the row is still PENDING
	// although the venue filled the order.
	o := insertOrder(t, store, types.VenueKalshi, "FED-CUT")

	kalshi := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	kalshi.StatusFunc = func(o *types.Order) ([]*types.Trade, error) {
		if o.Status.Terminal() {
			return nil, nil
		}
		o.VenueOrderID = "k-1"
		o.FillSize = o.Size
		if err := venue.AdvanceStatus(o, types.OrderExecuted); err != nil {
			return nil, err
		}
		return []*types.Trade{{
			OrderID:      o.ID,
			VenueTradeID: "fill-1",
			Quantity:     o.Size,
			Price:        400,
			ExecutedAt:   1788264000,
		}}, nil
	}

	svc := newService(store, kalshi)
	svc.RunOnce(ctx)

	settled := store.Order(o.ID)
	require.Equal(t, types.OrderExecuted, settled.Status)
	require.Equal(t, int64(10), settled.FillSize)
	require.Equal(t, "k-1", settled.VenueOrderID)
	require.Equal(t, 1, store.TradeCount())

	// A second pass is a no-op: the order is terminal and the trade unique.
	svc.RunOnce(ctx)
	require.Equal(t, 1, store.TradeCount())

	unsettled, err := store.GetUnsettledOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, unsettled)
}

func TestRunOncePartialFillStaysUnsettled(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()

	o := insertOrder(t, store, types.VenueKalshi, "FED-CUT")

	kalshi := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	kalshi.StatusFunc = func(o *types.Order) ([]*types.Trade, error) {
		o.FillSize = 4
		if err := venue.AdvanceStatus(o, types.OrderPartiallyFilled); err != nil {
			return nil, err
		}
		return []*types.Trade{{OrderID: o.ID, VenueTradeID: "fill-1", Quantity: 4, Price: 400}}, nil
	}

	svc := newService(store, kalshi)
	svc.RunOnce(ctx)

	settled := store.Order(o.ID)
	require.Equal(t, types.OrderPartiallyFilled, settled.Status)
	require.Equal(t, int64(4), settled.FillSize)

	// Still unsettled: the next pass keeps watching it.
	unsettled, err := store.GetUnsettledOrders(ctx)
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
}

func TestRunOnceVenueErrorSkipsOrder(t *testing.T) {
	store := testutil.NewMemoryStore()
	ctx := context.Background()

	o1 := insertOrder(t, store, types.VenueKalshi, "FED-CUT")
	o2 := insertOrder(t, store, types.VenuePolymarket, "0xfed")

	kalshi := &testutil.ScriptedVenue{VenueKind: types.VenueKalshi}
	kalshi.StatusFunc = func(*types.Order) ([]*types.Trade, error) {
		return nil, errors.New("gateway timeout")
	}
	poly := &testutil.ScriptedVenue{VenueKind: types.VenuePolymarket}

	svc := newService(store, kalshi, poly)
	svc.RunOnce(ctx)

	// The kalshi order is untouched; the polymarket one settled.
	require.Equal(t, types.OrderPending, store.Order(o1.ID).Status)
	require.Equal(t, types.OrderExecuted, store.Order(o2.ID).Status)
}
