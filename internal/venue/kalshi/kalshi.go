// Package kalshi adapts the Kalshi trade API to the venue contract. The API
// quotes cent prices and whole contracts; this adapter multiplies prices by
// ten on ingest so everything downstream sees tenths of a cent.
package kalshi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const (
	marketsPageSize  = 100
	tickerBatchSize  = 50
	bookConcurrency  = 8
	requestTimeout   = 15 * time.Second
	accessKeyHeader  = "KALSHI-ACCESS-KEY"
	timestampHeader  = "KALSHI-ACCESS-TIMESTAMP"
	signatureHeader  = "KALSHI-ACCESS-SIGNATURE"
)

// Adapter is the Kalshi venue adapter.
type Adapter struct {
	baseURL    string
	basePath   string
	accessKey  string
	signer     *signer
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds Kalshi adapter configuration.
type Config struct {
	BaseURL    string
	AccessKey  string
	PrivateKey string // PEM-encoded RSA key
	Logger     *zap.Logger
}

// New creates a Kalshi adapter.
func New(cfg *Config) (*Adapter, error) {
	s, err := newSigner(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("kalshi signer: %w", err)
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Adapter{
		baseURL:    cfg.BaseURL,
		basePath:   parsed.Path,
		accessKey:  cfg.AccessKey,
		signer:     s,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     cfg.Logger,
	}, nil
}

// Kind returns the venue identifier.
func (a *Adapter) Kind() types.VenueKind { return types.VenueKalshi }

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends a signed request. The signature covers the millisecond timestamp,
// the method and the request path without its query string.
func (a *Adapter) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	fullURL := a.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature, err := a.signer.sign(timestamp, method, a.basePath+path)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessKeyHeader, a.accessKey)
	req.Header.Set(timestampHeader, timestamp)
	req.Header.Set(signatureHeader, signature)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, types.Transient(types.VenueKalshi, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Transient(types.VenueKalshi, "read response: %v", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.Transient(types.VenueKalshi, "%s %s: status %d", method, path, resp.StatusCode)
	default:
		var parsed apiError
		_ = json.Unmarshal(raw, &parsed)
		return nil, types.Rejected(types.VenueKalshi, parsed.Error.Code,
			"%s %s: status %d: %s", method, path, resp.StatusCode, parsed.Error.Message)
	}
}

type wireMarket struct {
	Ticker       string `json:"ticker"`
	Title        string `json:"title"`
	RulesPrimary string `json:"rules_primary"`
	CloseTime    string `json:"close_time"`
}

type marketsResponse struct {
	Markets []wireMarket `json:"markets"`
	Cursor  string       `json:"cursor"`
}

// FindNewMarkets returns up to limit tickers of open markets, newest first,
// following pagination cursors.
func (a *Adapter) FindNewMarkets(ctx context.Context, limit int) ([]string, error) {
	var (
		ids    []string
		cursor string
	)
	for len(ids) < limit {
		query := url.Values{}
		query.Set("status", "open")
		query.Set("limit", strconv.Itoa(marketsPageSize))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		raw, err := a.do(ctx, http.MethodGet, "/markets", query, nil)
		if err != nil {
			return nil, err
		}

		var page marketsResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode markets page: %w", err)
		}

		for _, m := range page.Markets {
			ids = append(ids, m.Ticker)
			if len(ids) == limit {
				break
			}
		}
		if page.Cursor == "" || len(page.Markets) == 0 {
			break
		}
		cursor = page.Cursor
	}
	return ids, nil
}

// GetMarkets fetches full market records in ticker batches of 50.
func (a *Adapter) GetMarkets(ctx context.Context, ids []string) ([]*types.Market, error) {
	var out []*types.Market
	for start := 0; start < len(ids); start += tickerBatchSize {
		end := start + tickerBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		query := url.Values{}
		query.Set("tickers", strings.Join(ids[start:end], ","))
		query.Set("limit", strconv.Itoa(tickerBatchSize))

		raw, err := a.do(ctx, http.MethodGet, "/markets", query, nil)
		if err != nil {
			return nil, err
		}

		var page marketsResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode markets batch: %w", err)
		}

		for _, m := range page.Markets {
			market, err := normalizeMarket(m)
			if err != nil {
				a.logger.Warn("kalshi-market-skipped",
					zap.String("ticker", m.Ticker), zap.Error(err))
				continue
			}
			out = append(out, market)
		}
	}
	return out, nil
}

func normalizeMarket(m wireMarket) (*types.Market, error) {
	closeAt, err := time.Parse(time.RFC3339, m.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("parse close time %q: %w", m.CloseTime, err)
	}
	return &types.Market{
		Venue:          types.VenueKalshi,
		MarketID:       m.Ticker,
		Name:           m.Title,
		Rules:          m.RulesPrimary,
		CloseTimestamp: closeAt.Unix(),
	}, nil
}

type wireBook struct {
	Orderbook struct {
		Yes [][2]int64 `json:"yes"` // resting YES bids: [price_cents, quantity]
		No  [][2]int64 `json:"no"`  // resting NO bids
	} `json:"orderbook"`
}

// GetOrderBooks fetches one book per ticker with bounded concurrency.
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

func (a *Adapter) getOrderBook(ctx context.Context, id string) (*types.OrderBook, error) {
	raw, err := a.do(ctx, http.MethodGet, "/markets/"+id+"/orderbook", nil, nil)
	if err != nil {
		return nil, err
	}

	var parsed wireBook
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode orderbook %s: %w", id, err)
	}

	book := &types.OrderBook{
		Venue:     types.VenueKalshi,
		MarketID:  id,
		Timestamp: time.Now().UnixMilli(),
	}
	book.Yes.Bid = centLevels(parsed.Orderbook.Yes)
	book.No.Bid = centLevels(parsed.Orderbook.No)

	// The API exposes only resting bids. Asks are synthesized from the
	// opposite side via the complement identity, then filtered so a
	// synthetic ask never crosses the book's own best bid.
	book.Yes.Ask = synthesizeAsks(book.No.Bid, book.Yes.Bid)
	book.No.Ask = synthesizeAsks(book.Yes.Bid, book.No.Bid)

	book.SortLevels()
	return book, nil
}

func centLevels(levels [][2]int64) []types.Level {
	out := make([]types.Level, 0, len(levels))
	for _, l := range levels {
		out = append(out, types.Level{Price: l[0] * 10, Quantity: l[1]})
	}
	return out
}

// synthesizeAsks mirrors opposite-side bids into this side's asks:
// ask_price = 1000 - opposite_bid_price, with matched quantity.
func synthesizeAsks(oppositeBids, ownBids []types.Level) []types.Level {
	var bestOwnBid int64
	for _, l := range ownBids {
		if l.Price > bestOwnBid {
			bestOwnBid = l.Price
		}
	}

	out := make([]types.Level, 0, len(oppositeBids))
	for _, bid := range oppositeBids {
		price := 1000 - bid.Price
		if price <= bestOwnBid {
			continue // would cross the book
		}
		out = append(out, types.Level{Price: price, Quantity: bid.Quantity})
	}
	return out
}

type balanceResponse struct {
	Balance int64 `json:"balance"` // cents
}

// GetBalance returns available cash in dollars.
func (a *Adapter) GetBalance(ctx context.Context) (float64, error) {
	raw, err := a.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil)
	if err != nil {
		return 0, err
	}

	var parsed balanceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return float64(parsed.Balance) / 100, nil
}

type placeOrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Count         int64  `json:"count"`
	Type          string `json:"type"`
	YesPrice      int64  `json:"yes_price,omitempty"`
	NoPrice       int64  `json:"no_price,omitempty"`
	BuyMaxCost    int64  `json:"buy_max_cost,omitempty"`
}

type wireOrder struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	FillCount int64  `json:"fill_count"`
}

type orderResponse struct {
	Order wireOrder `json:"order"`
}

// PlaceOrder submits the order, using the client order id as the venue's
// idempotency key. Prices cross the venue boundary in cents.
func (a *Adapter) PlaceOrder(ctx context.Context, o *types.Order) error {
	req := placeOrderRequest{
		Ticker:        o.MarketID,
		ClientOrderID: o.ClientOrderID,
		Action:        string(o.Action),
		Side:          string(o.Side),
		Count:         o.Size,
		Type:          string(o.Type),
	}
	switch o.Type {
	case types.OrderTypeMarket:
		req.BuyMaxCost = o.MaxPrice * o.Size
	case types.OrderTypeLimit:
		if o.Side == types.SideYes {
			req.YesPrice = o.Price
		} else {
			req.NoPrice = o.Price
		}
	}

	raw, err := a.do(ctx, http.MethodPost, "/portfolio/orders", nil, req)
	if err != nil {
		var ve *types.VenueError
		if errors.As(err, &ve) && ve.Kind == types.ErrKindRejected {
			_ = o.SetStatus(types.OrderFailed)
		}
		return err
	}

	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode place order response: %w", err)
	}

	o.VenueOrderID = parsed.Order.OrderID
	return a.applyWireStatus(o, parsed.Order)
}

// CancelOrder requests cancellation of a resting order.
func (a *Adapter) CancelOrder(ctx context.Context, o *types.Order) error {
	if o.VenueOrderID == "" {
		return types.Rejected(types.VenueKalshi, "", "cancel without venue order id")
	}

	raw, err := a.do(ctx, http.MethodDelete, "/portfolio/orders/"+o.VenueOrderID, nil, nil)
	if err != nil {
		return err
	}

	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode cancel response: %w", err)
	}
	if parsed.Order.FillCount > o.FillSize {
		o.FillSize = parsed.Order.FillCount
	}
	return venue.AdvanceStatus(o, types.OrderCanceled)
}

type wireFill struct {
	TradeID     string `json:"trade_id"`
	Count       int64  `json:"count"`
	YesPrice    int64  `json:"yes_price"`
	NoPrice     int64  `json:"no_price"`
	CreatedTime string `json:"created_time"`
}

type fillsResponse struct {
	Fills []wireFill `json:"fills"`
}

// GetOrderStatus refreshes status and fill size from venue truth and returns
// the order's fills. Fill receipts are deduplicated by persistence, so
// returning already-seen fills is harmless.
func (a *Adapter) GetOrderStatus(ctx context.Context, o *types.Order) ([]*types.Trade, error) {
	if o.VenueOrderID == "" {
		return nil, types.Rejected(types.VenueKalshi, "", "status without venue order id")
	}

	raw, err := a.do(ctx, http.MethodGet, "/portfolio/orders/"+o.VenueOrderID, nil, nil)
	if err != nil {
		return nil, err
	}
	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	query := url.Values{}
	query.Set("order_id", o.VenueOrderID)
	rawFills, err := a.do(ctx, http.MethodGet, "/portfolio/fills", query, nil)
	if err != nil {
		return nil, err
	}
	var fills fillsResponse
	if err := json.Unmarshal(rawFills, &fills); err != nil {
		return nil, fmt.Errorf("decode fills: %w", err)
	}

	trades := make([]*types.Trade, 0, len(fills.Fills))
	for _, f := range fills.Fills {
		price := f.YesPrice
		if o.Side == types.SideNo {
			price = f.NoPrice
		}
		executedAt := int64(0)
		if ts, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			executedAt = ts.Unix()
		}
		trades = append(trades, &types.Trade{
			OrderID:      o.ID,
			VenueTradeID: f.TradeID,
			Quantity:     f.Count,
			Price:        price * 10,
			ExecutedAt:   executedAt,
		})
	}

	if err := a.applyWireStatus(o, parsed.Order); err != nil {
		return nil, err
	}
	return trades, nil
}

// applyWireStatus maps venue status strings onto the order lifecycle.
func (a *Adapter) applyWireStatus(o *types.Order, w wireOrder) error {
	if w.FillCount > o.FillSize {
		o.FillSize = w.FillCount
	}

	var target types.OrderStatus
	switch w.Status {
	case "executed":
		target = types.OrderExecuted
		o.FillSize = o.Size
	case "canceled":
		target = types.OrderCanceled
	case "resting", "pending":
		if o.FillSize > 0 && o.FillSize < o.Size {
			target = types.OrderPartiallyFilled
		} else {
			target = types.OrderOpen
		}
	default:
		return fmt.Errorf("unknown kalshi order status %q", w.Status)
	}
	return venue.AdvanceStatus(o, target)
}
