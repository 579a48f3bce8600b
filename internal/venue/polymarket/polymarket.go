// Package polymarket adapts the Polymarket Gamma and CLOB APIs to the venue
// contract. Market discovery and metadata come from Gamma keyed by condition
// id; books and orders go through the CLOB keyed by outcome token id. Dollar
// prices are multiplied by 1000 on ingest; fractional contract sizes are
// floored to whole contracts so depth is never overstated.
package polymarket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const (
	// The venue rejects orders below five contracts; enforcing it locally
	// turns the rejection into a deterministic FAILED before any request.
	minOrderContracts = 5

	discoveryPageSize  = 100
	conditionBatchSize = 20
	bookConcurrency    = 8
)

// Adapter is the Polymarket venue adapter.
type Adapter struct {
	gammaURL   string
	clobURL    string
	rpcURL     string
	httpClient *http.Client
	orders     *orderClient
	logger     *zap.Logger

	mu     sync.Mutex
	tokens map[string]tokenPair // condition id -> outcome token ids
}

type tokenPair struct {
	yes string
	no  string
}

// Config holds Polymarket adapter configuration.
type Config struct {
	GammaURL     string
	ClobURL      string
	RPCURL       string // Polygon JSON-RPC endpoint for balance reads
	PrivateKey   string
	ProxyAddress string
	APIKey       string
	Secret       string
	Passphrase   string
	Logger       *zap.Logger
}

// New creates a Polymarket adapter.
func New(cfg *Config) (*Adapter, error) {
	orders, err := newOrderClient(&orderClientConfig{
		ClobURL:      cfg.ClobURL,
		APIKey:       cfg.APIKey,
		Secret:       cfg.Secret,
		Passphrase:   cfg.Passphrase,
		PrivateKey:   cfg.PrivateKey,
		ProxyAddress: cfg.ProxyAddress,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket order client: %w", err)
	}

	rpcURL := cfg.RPCURL
	if rpcURL == "" {
		rpcURL = "https://polygon-rpc.com"
	}

	return &Adapter{
		gammaURL:   cfg.GammaURL,
		clobURL:    cfg.ClobURL,
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		orders:     orders,
		logger:     cfg.Logger,
		tokens:     make(map[string]tokenPair),
	}, nil
}

// Kind returns the venue identifier.
func (a *Adapter) Kind() types.VenueKind { return types.VenuePolymarket }

type gammaMarket struct {
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	Description  string `json:"description"`
	EndDate      string `json:"endDate"`
	ClobTokenIDs string `json:"clobTokenIds"` // JSON-encoded string array
}

func (a *Adapter) getGamma(ctx context.Context, path string, query url.Values) ([]gammaMarket, error) {
	fullURL := a.gammaURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, types.Transient(types.VenuePolymarket, "GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, types.Transient(types.VenuePolymarket, "GET %s: status %d", path, resp.StatusCode)
		}
		return nil, types.Rejected(types.VenuePolymarket, "",
			"GET %s: status %d: %s", path, resp.StatusCode, string(raw))
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("decode gamma response: %w", err)
	}
	return markets, nil
}

// FindNewMarkets returns up to limit condition ids of open markets, newest
// first, following offset pagination.
func (a *Adapter) FindNewMarkets(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	for offset := 0; len(ids) < limit; offset += discoveryPageSize {
		query := url.Values{}
		query.Set("closed", "false")
		query.Set("order", "startDate")
		query.Set("ascending", "false")
		query.Set("limit", strconv.Itoa(discoveryPageSize))
		query.Set("offset", strconv.Itoa(offset))

		page, err := a.getGamma(ctx, "/markets", query)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, m := range page {
			if m.ConditionID == "" {
				continue
			}
			a.rememberTokens(m)
			ids = append(ids, m.ConditionID)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

// GetMarkets fetches full market records in condition-id batches.
func (a *Adapter) GetMarkets(ctx context.Context, ids []string) ([]*types.Market, error) {
	var out []*types.Market
	for start := 0; start < len(ids); start += conditionBatchSize {
		end := start + conditionBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		query := url.Values{}
		for _, id := range ids[start:end] {
			query.Add("condition_ids", id)
		}

		page, err := a.getGamma(ctx, "/markets", query)
		if err != nil {
			return nil, err
		}

		for _, m := range page {
			a.rememberTokens(m)
			market, err := normalizeMarket(m)
			if err != nil {
				a.logger.Warn("polymarket-market-skipped",
					zap.String("condition-id", m.ConditionID), zap.Error(err))
				continue
			}
			out = append(out, market)
		}
	}
	return out, nil
}

func normalizeMarket(m gammaMarket) (*types.Market, error) {
	closeAt, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", m.EndDate, err)
	}
	return &types.Market{
		Venue:          types.VenuePolymarket,
		MarketID:       m.ConditionID,
		Name:           m.Question,
		Rules:          m.Description,
		CloseTimestamp: closeAt.Unix(),
	}, nil
}

// rememberTokens caches the condition's outcome token ids. Gamma encodes
// them as a JSON array string, YES first.
func (a *Adapter) rememberTokens(m gammaMarket) {
	if m.ConditionID == "" || m.ClobTokenIDs == "" {
		return
	}
	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err != nil || len(tokenIDs) < 2 {
		return
	}
	a.mu.Lock()
	a.tokens[m.ConditionID] = tokenPair{yes: tokenIDs[0], no: tokenIDs[1]}
	a.mu.Unlock()
}

func (a *Adapter) getTokens(ctx context.Context, conditionID string) (tokenPair, error) {
	a.mu.Lock()
	pair, ok := a.tokens[conditionID]
	a.mu.Unlock()
	if ok {
		return pair, nil
	}

	_, err := a.GetMarkets(ctx, []string{conditionID})
	if err != nil {
		return tokenPair{}, err
	}

	a.mu.Lock()
	pair, ok = a.tokens[conditionID]
	a.mu.Unlock()
	if !ok {
		return tokenPair{}, fmt.Errorf("no outcome tokens for condition %s", conditionID)
	}
	return pair, nil
}

type clobLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type clobBook struct {
	Bids []clobLevel `json:"bids"`
	Asks []clobLevel `json:"asks"`
}

// GetOrderBooks fetches both outcome books per condition with bounded
// concurrency.
func (a *Adapter) GetOrderBooks(ctx context.Context, ids []string) ([]*types.OrderBook, error) {
	books := make([]*types.OrderBook, len(ids))
	errs := make([]error, len(ids))

	sem := make(chan struct{}, bookConcurrency)
	var wg sync.WaitGroup
	for idx, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			books[idx], errs[idx] = a.getOrderBook(ctx, id)
		}(idx, id)
	}
	wg.Wait()

	out := make([]*types.OrderBook, 0, len(ids))
	for idx, b := range books {
		if errs[idx] != nil {
			return nil, errs[idx]
		}
		out = append(out, b)
	}
	return out, nil
}

func (a *Adapter) getOrderBook(ctx context.Context, conditionID string) (*types.OrderBook, error) {
	pair, err := a.getTokens(ctx, conditionID)
	if err != nil {
		return nil, err
	}

	yesBook, err := a.getTokenBook(ctx, pair.yes)
	if err != nil {
		return nil, err
	}
	noBook, err := a.getTokenBook(ctx, pair.no)
	if err != nil {
		return nil, err
	}

	book := &types.OrderBook{
		Venue:     types.VenuePolymarket,
		MarketID:  conditionID,
		Timestamp: time.Now().UnixMilli(),
		Yes: types.BookSide{
			Bid: dollarLevels(yesBook.Bids),
			Ask: dollarLevels(yesBook.Asks),
		},
		No: types.BookSide{
			Bid: dollarLevels(noBook.Bids),
			Ask: dollarLevels(noBook.Asks),
		},
	}
	book.SortLevels()
	return book, nil
}

func (a *Adapter) getTokenBook(ctx context.Context, tokenID string) (*clobBook, error) {
	fullURL := a.clobURL + "/book?token_id=" + url.QueryEscape(tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, types.Transient(types.VenuePolymarket, "GET /book: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, types.Transient(types.VenuePolymarket, "GET /book: status %d", resp.StatusCode)
		}
		return nil, types.Rejected(types.VenuePolymarket, "", "GET /book: status %d", resp.StatusCode)
	}

	var book clobBook
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", tokenID, err)
	}
	return &book, nil
}

// dollarLevels converts dollar-denominated levels to tenths of a cent and
// whole contracts. Levels below one whole contract are dropped.
func dollarLevels(levels []clobLevel) []types.Level {
	out := make([]types.Level, 0, len(levels))
	for _, l := range levels {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			continue
		}
		qty := int64(math.Floor(size))
		if qty <= 0 {
			continue
		}
		out = append(out, types.Level{
			Price:    int64(math.Round(price * 1000)),
			Quantity: qty,
		})
	}
	return out
}

// GetBalance returns the funder address's on-chain USDC balance in dollars.
func (a *Adapter) GetBalance(ctx context.Context) (float64, error) {
	return usdcBalance(ctx, a.rpcURL, a.orders.funderAddress())
}

// PlaceOrder submits an EIP-712 signed buy. The venue's five-contract floor
// is enforced here, turning undersized orders into deterministic failures.
func (a *Adapter) PlaceOrder(ctx context.Context, o *types.Order) error {
	if o.Size < minOrderContracts {
		_ = o.SetStatus(types.OrderFailed)
		return types.Rejected(types.VenuePolymarket, "min_size",
			"order size %d below venue minimum %d", o.Size, minOrderContracts)
	}

	pair, err := a.getTokens(ctx, o.MarketID)
	if err != nil {
		return err
	}
	tokenID := pair.yes
	if o.Side == types.SideNo {
		tokenID = pair.no
	}

	// Cent prices cross the venue boundary as dollars.
	var price float64
	var orderType string
	switch o.Type {
	case types.OrderTypeMarket:
		price = float64(o.MaxPrice) / 100
		orderType = "FAK" // immediate-or-cancel in CLOB terms
	default:
		price = float64(o.Price) / 100
		orderType = "GTC"
	}

	result, err := a.orders.place(ctx, tokenID, o.Size, price, orderType)
	if err != nil {
		var ve *types.VenueError
		if errors.As(err, &ve) && ve.Kind == types.ErrKindRejected {
			_ = o.SetStatus(types.OrderFailed)
		}
		return err
	}
	if result.ErrorMsg != "" {
		_ = o.SetStatus(types.OrderFailed)
		return types.Rejected(types.VenuePolymarket, "", "order rejected: %s", result.ErrorMsg)
	}

	o.VenueOrderID = result.OrderID
	switch result.Status {
	case "matched":
		o.FillSize = o.Size
		return venue.AdvanceStatus(o, types.OrderExecuted)
	case "live", "delayed":
		return venue.AdvanceStatus(o, types.OrderOpen)
	default:
		return venue.AdvanceStatus(o, types.OrderOpen)
	}
}

// CancelOrder requests cancellation of a resting order.
func (a *Adapter) CancelOrder(ctx context.Context, o *types.Order) error {
	if o.VenueOrderID == "" {
		return types.Rejected(types.VenuePolymarket, "", "cancel without venue order id")
	}
	if err := a.orders.cancel(ctx, o.VenueOrderID); err != nil {
		return err
	}
	return venue.AdvanceStatus(o, types.OrderCanceled)
}

// GetOrderStatus refreshes status and fill size from venue truth and returns
// the order's fills.
func (a *Adapter) GetOrderStatus(ctx context.Context, o *types.Order) ([]*types.Trade, error) {
	if o.VenueOrderID == "" {
		return nil, types.Rejected(types.VenuePolymarket, "", "status without venue order id")
	}

	order, err := a.orders.getOrder(ctx, o.VenueOrderID)
	if err != nil {
		return nil, err
	}

	if matched, err := strconv.ParseFloat(order.SizeMatched, 64); err == nil {
		if filled := int64(matched); filled > o.FillSize {
			o.FillSize = filled
		}
	}

	trades := make([]*types.Trade, 0, len(order.AssociateTrades))
	for _, t := range order.AssociateTrades {
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(t.Size, 64)
		if err != nil {
			continue
		}
		executedAt := int64(0)
		if ts, err := strconv.ParseInt(t.MatchTime, 10, 64); err == nil {
			executedAt = ts
		}
		trades = append(trades, &types.Trade{
			OrderID:      o.ID,
			VenueTradeID: t.ID,
			Quantity:     int64(size),
			Price:        int64(math.Round(price * 1000)),
			ExecutedAt:   executedAt,
		})
	}

	var target types.OrderStatus
	switch order.Status {
	case "matched":
		target = types.OrderExecuted
		o.FillSize = o.Size
	case "canceled":
		target = types.OrderCanceled
	case "live", "delayed":
		if o.FillSize > 0 && o.FillSize < o.Size {
			target = types.OrderPartiallyFilled
		} else {
			target = types.OrderOpen
		}
	default:
		return nil, fmt.Errorf("unknown polymarket order status %q", order.Status)
	}

	if err := venue.AdvanceStatus(o, target); err != nil {
		return nil, err
	}
	return trades, nil
}
