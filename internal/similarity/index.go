// Package similarity wraps the two external collaborators of the matcher
// stage: a text-embedding record index for recall-oriented candidate lookup
// and an LLM judge for precision-oriented confirmation.
package similarity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

// Record is one text-keyed entry of the index. Each market contributes two:
// one for its name and one for its resolution rules.
type Record struct {
	ID       string `json:"_id"`
	MarketID string `json:"market_id"`
	Venue    string `json:"venue"`
	Kind     string `json:"kind"` // "name" or "rules"
	Text     string `json:"text"`
}

// Match is one nearest-neighbour hit.
type Match struct {
	MarketID string
	Venue    types.VenueKind
	Score    float64
}

// Index is an HTTP client for a hosted embedding index with integrated
// inference: text goes in, the service embeds and stores or searches it.
type Index struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// IndexConfig holds index client configuration.
type IndexConfig struct {
	BaseURL string
	APIKey  string
	Logger  *zap.Logger
}

// NewIndex creates an index client.
func NewIndex(cfg *IndexConfig) *Index {
	return &Index{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     cfg.Logger,
	}
}

// NameRecordID returns the index id of a market's name vector.
func NameRecordID(marketID string) string { return marketID + "-name" }

// RulesRecordID returns the index id of a market's rules vector.
func RulesRecordID(marketID string) string { return marketID + "-rules" }

// MarketRecords builds the two index records for a market.
func MarketRecords(m *types.Market) []Record {
	return []Record{
		{
			ID:       NameRecordID(m.MarketID),
			MarketID: m.MarketID,
			Venue:    string(m.Venue),
			Kind:     "name",
			Text:     m.Name,
		},
		{
			ID:       RulesRecordID(m.MarketID),
			MarketID: m.MarketID,
			Venue:    string(m.Venue),
			Kind:     "rules",
			Text:     m.Rules,
		},
	}
}

// UpsertRecords inserts or replaces records in the index.
func (i *Index) UpsertRecords(ctx context.Context, records []Record) error {
	body, err := json.Marshal(map[string]interface{}{"records": records})
	if err != nil {
		return fmt.Errorf("marshal upsert: %w", err)
	}

	resp, err := i.post(ctx, "/records/upsert", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("index upsert status %d: %s", resp.StatusCode, string(raw))
	}

	IndexUpsertsTotal.Add(float64(len(records)))
	return nil
}

type searchRequest struct {
	Query searchQuery `json:"query"`
}

type searchQuery struct {
	Inputs map[string]string      `json:"inputs"`
	TopK   int                    `json:"top_k"`
	Filter map[string]interface{} `json:"filter,omitempty"`
}

type searchResponse struct {
	Result struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Fields struct {
				MarketID string `json:"market_id"`
				Venue    string `json:"venue"`
			} `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Search returns the topK nearest name-vectors for the query text, excluding
// records from venueNot. Cross-venue candidates only: a market can never pair
// with its own venue.
func (i *Index) Search(ctx context.Context, text string, topK int, venueNot types.VenueKind) ([]Match, error) {
	reqBody := searchRequest{
		Query: searchQuery{
			Inputs: map[string]string{"text": text},
			TopK:   topK,
			Filter: map[string]interface{}{
				"kind":  "name",
				"venue": map[string]interface{}{"$ne": string(venueNot)},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	resp, err := i.post(ctx, "/records/search", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("index search status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	err = json.NewDecoder(resp.Body).Decode(&parsed)
	if err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]Match, 0, len(parsed.Result.Hits))
	for _, hit := range parsed.Result.Hits {
		venue, err := types.ParseVenueKind(hit.Fields.Venue)
		if err != nil {
			i.logger.Warn("index-hit-unknown-venue",
				zap.String("id", hit.ID),
				zap.String("venue", hit.Fields.Venue))
			continue
		}
		matches = append(matches, Match{
			MarketID: hit.Fields.MarketID,
			Venue:    venue,
			Score:    hit.Score,
		})
	}

	IndexSearchesTotal.Inc()
	return matches, nil
}

func (i *Index) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", i.apiKey)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request %s: %w", path, err)
	}
	return resp, nil
}
