package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStoreFromDB(db, zap.NewNop()), mock
}

func TestUpsertMarkets(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO markets").
		WithArgs(types.VenueKalshi, "FED-CUT", "Fed cuts rates?", "Any cut.", int64(1788264000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertMarkets(context.Background(), []*types.Market{
		{Venue: types.VenueKalshi, MarketID: "FED-CUT", Name: "Fed cuts rates?", Rules: "Any cut.", CloseTimestamp: 1788264000},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterNewMarketIDs(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT market_id FROM markets").
		WithArgs(types.VenueKalshi, pq.Array([]string{"A", "B", "C"})).
		WillReturnRows(sqlmock.NewRows([]string{"market_id"}).AddRow("B"))

	fresh, err := store.FilterNewMarketIDs(context.Background(), types.VenueKalshi, []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, fresh)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMarketPairsReportsOnlyNewRows(t *testing.T) {
	store, mock := newMockStore(t)

	// The first pair arrives non-canonical and is swapped before insert.
	mock.ExpectExec("INSERT INTO market_pairs").
		WithArgs("0xfed", types.VenuePolymarket, "FED-CUT", types.VenueKalshi).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The second already exists: ON CONFLICT DO NOTHING affects zero rows.
	mock.ExpectExec("INSERT INTO market_pairs").
		WithArgs("A", types.VenueKalshi, "B", types.VenuePolymarket).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.InsertMarketPairs(context.Background(), []types.MarketPair{
		{MarketID1: "FED-CUT", Venue1: types.VenueKalshi, MarketID2: "0xfed", Venue2: types.VenuePolymarket},
		{MarketID1: "A", Venue1: types.VenueKalshi, MarketID2: "B", Venue2: types.VenuePolymarket},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	require.Equal(t, "0xfed", inserted[0].MarketID1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOrderAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	o, err := types.NewMarketBuyOrder(types.VenueKalshi, "FED-CUT", types.SideYes, 10, 40)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	require.NoError(t, store.InsertOrder(context.Background(), o))
	require.Equal(t, int64(7), o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOrderDuplicateClientIDReusesRow(t *testing.T) {
	store, mock := newMockStore(t)

	o, err := types.NewMarketBuyOrder(types.VenueKalshi, "FED-CUT", types.SideYes, 10, 40)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO orders").
		WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectQuery("SELECT id FROM orders").
		WithArgs(o.ClientOrderID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	require.NoError(t, store.InsertOrder(context.Background(), o))
	require.Equal(t, int64(3), o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrder(t *testing.T) {
	store, mock := newMockStore(t)

	o, err := types.NewMarketBuyOrder(types.VenueKalshi, "FED-CUT", types.SideYes, 10, 40)
	require.NoError(t, err)
	o.ID = 7
	o.VenueOrderID = "k-1"
	require.NoError(t, o.SetStatus(types.OrderOpen))

	mock.ExpectExec("UPDATE orders SET").
		WithArgs(types.OrderOpen, int64(0), "k-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateOrder(context.Background(), o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnsettledOrders(t *testing.T) {
	store, mock := newMockStore(t)

	cols := []string{
		"id", "client_order_id", "venue", "market_id", "side", "action", "order_type",
		"size", "price", "max_price", "time_in_force", "venue_order_id", "status", "fill_size",
	}
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE status IN").
		WithArgs(types.OrderPending, types.OrderOpen, types.OrderPartiallyFilled).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(7), "coid-1", "kalshi", "FED-CUT", "yes", "buy", "market",
			int64(10), int64(0), int64(40), "IOC", "k-1", "open", int64(0),
		))

	orders, err := store.GetUnsettledOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, types.OrderOpen, orders[0].Status)
	require.Equal(t, types.VenueKalshi, orders[0].Venue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTradesIgnoresDuplicates(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO trades").
		WithArgs(int64(7), "fill-1", int64(10), int64(400), int64(1788264000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO trades").
		WithArgs(int64(7), "fill-1", int64(10), int64(400), int64(1788264000)).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	trades := []*types.Trade{
		{OrderID: 7, VenueTradeID: "fill-1", Quantity: 10, Price: 400, ExecutedAt: 1788264000},
		{OrderID: 7, VenueTradeID: "fill-1", Quantity: 10, Price: 400, ExecutedAt: 1788264000},
	}
	require.NoError(t, store.InsertTrades(context.Background(), trades))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkStrings(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e"}
	chunks := chunkStrings(in, 2)
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)

	require.Nil(t, chunkStrings(nil, 2))
	require.Equal(t, [][]string{{"a"}}, chunkStrings([]string{"a"}, 100))
}
