package similarity

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIndexUpsertRecords(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	idx := NewIndex(&IndexConfig{BaseURL: server.URL, APIKey: "test-key", Logger: zap.NewNop()})

	market := &types.Market{
		Venue:    types.VenueKalshi,
		MarketID: "FED-25DEC",
		Name:     "Fed cuts rates in December?",
		Rules:    "Resolves YES if the FOMC lowers the target rate.",
	}
	err := idx.UpsertRecords(context.Background(), MarketRecords(market))
	require.NoError(t, err)
	require.Equal(t, "/records/upsert", gotPath)

	records := gotBody["records"].([]interface{})
	require.Len(t, records, 2)
	first := records[0].(map[string]interface{})
	require.Equal(t, "FED-25DEC-name", first["_id"])
	require.Equal(t, "name", first["kind"])
	require.Equal(t, "kalshi", first["venue"])
}

func TestIndexSearchFiltersAndParses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/records/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 3, req.Query.TopK)
		require.Equal(t, "name", req.Query.Filter["kind"])
		venueFilter := req.Query.Filter["venue"].(map[string]interface{})
		require.Equal(t, "kalshi", venueFilter["$ne"])

		resp := map[string]interface{}{
			"result": map[string]interface{}{
				"hits": []map[string]interface{}{
					{
						"_id":    "0xabc-name",
						"_score": 0.93,
						"fields": map[string]interface{}{"market_id": "0xabc", "venue": "polymarket"},
					},
					{
						"_id":    "bad-name",
						"_score": 0.41,
						"fields": map[string]interface{}{"market_id": "bad", "venue": "nonsense"},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	idx := NewIndex(&IndexConfig{BaseURL: server.URL, APIKey: "k", Logger: zap.NewNop()})
	matches, err := idx.Search(context.Background(), "Fed cuts rates?", 3, types.VenueKalshi)
	require.NoError(t, err)

	// The unknown-venue hit is dropped.
	require.Len(t, matches, 1)
	require.Equal(t, "0xabc", matches[0].MarketID)
	require.Equal(t, types.VenuePolymarket, matches[0].Venue)
	require.InDelta(t, 0.93, matches[0].Score, 1e-9)
}

func TestIndexSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	idx := NewIndex(&IndexConfig{BaseURL: server.URL, APIKey: "k", Logger: zap.NewNop()})
	_, err := idx.Search(context.Background(), "q", 3, types.VenueKalshi)
	require.Error(t, err)
}

func judgeServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer judge-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": answer}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestJudgeVerdicts(t *testing.T) {
	a := &types.Market{Venue: types.VenueKalshi, MarketID: "m1", Name: "Rain tomorrow?"}
	b := &types.Market{Venue: types.VenuePolymarket, MarketID: "m2", Name: "Will it rain tomorrow?"}

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "confirmed", answer: `{"final_answer": true}`, want: true},
		{name: "denied", answer: `{"final_answer": false}`, want: false},
		{name: "malformed-content", answer: `not json`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := judgeServer(t, tt.answer)
			defer server.Close()

			j := NewJudge(&JudgeConfig{
				BaseURL: server.URL,
				APIKey:  "judge-key",
				Model:   "gpt-4o-2024-08-06",
				Logger:  zap.NewNop(),
			})
			require.Equal(t, tt.want, j.SameMarket(context.Background(), a, b))
		})
	}
}

func TestJudgeServerFailureIsFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	j := NewJudge(&JudgeConfig{BaseURL: server.URL, APIKey: "judge-key", Model: "m", Logger: zap.NewNop()})
	a := &types.Market{Venue: types.VenueKalshi, MarketID: "m1"}
	b := &types.Market{Venue: types.VenuePolymarket, MarketID: "m2"}
	require.False(t, j.SameMarket(context.Background(), a, b))
}
