package polymarket

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPrivateKeyHex(t *testing.T) string {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(ethcrypto.FromECDSA(key))
}

func testAdapter(t *testing.T, gamma, clob http.Handler) *Adapter {
	t.Helper()

	gammaServer := httptest.NewServer(gamma)
	t.Cleanup(gammaServer.Close)
	clobServer := httptest.NewServer(clob)
	t.Cleanup(clobServer.Close)

	a, err := New(&Config{
		GammaURL:   gammaServer.URL,
		ClobURL:    clobServer.URL,
		PrivateKey: testPrivateKeyHex(t),
		APIKey:     "api-key",
		Secret:     "c2VjcmV0LWJ5dGVz", // url-safe base64
		Passphrase: "passphrase",
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return a
}

func gammaMarketsHandler(markets []gammaMarket) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "" && r.URL.Query().Get("offset") != "0" {
			_ = json.NewEncoder(w).Encode([]gammaMarket{})
			return
		}
		_ = json.NewEncoder(w).Encode(markets)
	})
}

func TestGetMarketsNormalizes(t *testing.T) {
	a := testAdapter(t, gammaMarketsHandler([]gammaMarket{
		{
			ConditionID:  "0xabc",
			Question:     "Will the Fed cut rates?",
			Description:  "Resolves YES on any cut at the next meeting.",
			EndDate:      "2026-12-15T00:00:00Z",
			ClobTokenIDs: `["111", "222"]`,
		},
		{ConditionID: "0xbad", Question: "broken", EndDate: "nope"},
	}), http.NotFoundHandler())

	markets, err := a.GetMarkets(context.Background(), []string{"0xabc", "0xbad"})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, types.VenuePolymarket, markets[0].Venue)
	require.Equal(t, "0xabc", markets[0].MarketID)
	require.Equal(t, "Will the Fed cut rates?", markets[0].Name)

	// Token ids were cached from the gamma payload.
	pair, err := a.getTokens(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Equal(t, "111", pair.yes)
	require.Equal(t, "222", pair.no)
}

func TestFindNewMarketsPaginates(t *testing.T) {
	a := testAdapter(t, gammaMarketsHandler([]gammaMarket{
		{ConditionID: "0x1", ClobTokenIDs: `["a","b"]`},
		{ConditionID: "0x2", ClobTokenIDs: `["c","d"]`},
	}), http.NotFoundHandler())

	ids, err := a.FindNewMarkets(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"0x1", "0x2"}, ids)
}

func TestGetOrderBooksConverts(t *testing.T) {
	clob := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/book", r.URL.Path)
		var book clobBook
		switch r.URL.Query().Get("token_id") {
		case "111": // YES token
			book = clobBook{
				Asks: []clobLevel{{Price: "0.40", Size: "100.7"}, {Price: "0.45", Size: "0.5"}},
				Bids: []clobLevel{{Price: "0.38", Size: "50"}},
			}
		case "222": // NO token
			book = clobBook{
				Asks: []clobLevel{{Price: "0.61", Size: "30"}},
				Bids: []clobLevel{{Price: "0.59", Size: "20"}},
			}
		default:
			t.Fatalf("unexpected token %s", r.URL.Query().Get("token_id"))
		}
		_ = json.NewEncoder(w).Encode(book)
	})

	a := testAdapter(t, gammaMarketsHandler([]gammaMarket{
		{ConditionID: "0xabc", EndDate: "2026-12-15T00:00:00Z", ClobTokenIDs: `["111","222"]`},
	}), clob)

	books, err := a.GetOrderBooks(context.Background(), []string{"0xabc"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	book := books[0]

	// Dollars to tenths of a cent; fractional sizes floored, sub-contract
	// levels dropped.
	require.Equal(t, []types.Level{{Price: 400, Quantity: 100}}, book.Yes.Ask)
	require.Equal(t, []types.Level{{Price: 380, Quantity: 50}}, book.Yes.Bid)
	require.Equal(t, []types.Level{{Price: 610, Quantity: 30}}, book.No.Ask)
	require.Equal(t, []types.Level{{Price: 590, Quantity: 20}}, book.No.Bid)
}

func TestPlaceOrderBelowMinimumFails(t *testing.T) {
	a := testAdapter(t, http.NotFoundHandler(), http.NotFoundHandler())

	o, err := types.NewMarketBuyOrder(types.VenuePolymarket, "0xabc", types.SideYes, 4, 40)
	require.NoError(t, err)

	err = a.PlaceOrder(context.Background(), o)
	require.Error(t, err)
	require.Equal(t, types.OrderFailed, o.Status)

	var ve *types.VenueError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, types.ErrKindRejected, ve.Kind)
	require.Equal(t, "min_size", ve.Code)
}

func TestPlaceOrderSubmitsSignedOrder(t *testing.T) {
	var gotOrder map[string]interface{}
	clob := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order", r.URL.Path)
		require.Equal(t, "api-key", r.Header.Get("POLY_API_KEY"))
		require.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		require.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOrder))
		_ = json.NewEncoder(w).Encode(orderResult{OrderID: "clob-1", Status: "live"})
	})

	a := testAdapter(t, gammaMarketsHandler([]gammaMarket{
		{ConditionID: "0xabc", EndDate: "2026-12-15T00:00:00Z", ClobTokenIDs: `["111","222"]`},
	}), clob)

	o, err := types.NewMarketBuyOrder(types.VenuePolymarket, "0xabc", types.SideNo, 10, 40)
	require.NoError(t, err)

	require.NoError(t, a.PlaceOrder(context.Background(), o))
	require.Equal(t, types.OrderOpen, o.Status)
	require.Equal(t, "clob-1", o.VenueOrderID)

	require.Equal(t, "api-key", gotOrder["owner"])
	require.Equal(t, "FAK", gotOrder["orderType"])
	signed := gotOrder["order"].(map[string]interface{})
	require.Equal(t, "222", signed["tokenId"]) // NO side token
	require.Equal(t, "BUY", signed["side"])
	require.NotEmpty(t, signed["signature"])
	// 10 contracts at a $0.40 cap: $4.00 maker, 10 shares taker (6 decimals).
	require.Equal(t, "4000000", signed["makerAmount"])
	require.Equal(t, "10000000", signed["takerAmount"])
}

func TestGetOrderStatusMapsStates(t *testing.T) {
	tests := []struct {
		name       string
		wire       openOrder
		wantStatus types.OrderStatus
		wantFill   int64
		wantTrades int
	}{
		{
			name:       "matched",
			wire:       openOrder{Status: "matched", SizeMatched: "10"},
			wantStatus: types.OrderExecuted,
			wantFill:   10,
		},
		{
			name: "partial",
			wire: openOrder{
				Status:      "live",
				SizeMatched: "4",
				AssociateTrades: []clobTrade{
					{ID: "t1", Price: "0.40", Size: "4", MatchTime: "1724500000"},
				},
			},
			wantStatus: types.OrderPartiallyFilled,
			wantFill:   4,
			wantTrades: 1,
		},
		{
			name:       "canceled",
			wire:       openOrder{Status: "canceled", SizeMatched: "0"},
			wantStatus: types.OrderCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clob := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/data/order/clob-1", r.URL.Path)
				_ = json.NewEncoder(w).Encode(tt.wire)
			})
			a := testAdapter(t, http.NotFoundHandler(), clob)

			o, err := types.NewMarketBuyOrder(types.VenuePolymarket, "0xabc", types.SideYes, 10, 40)
			require.NoError(t, err)
			o.ID = 3
			o.VenueOrderID = "clob-1"

			trades, err := a.GetOrderStatus(context.Background(), o)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, o.Status)
			require.Equal(t, tt.wantFill, o.FillSize)
			require.Len(t, trades, tt.wantTrades)
			if tt.wantTrades > 0 {
				require.Equal(t, int64(400), trades[0].Price)
				require.Equal(t, int64(4), trades[0].Quantity)
				require.Equal(t, int64(3), trades[0].OrderID)
			}
		})
	}
}
