// Package poller discovers live markets on every registered venue and
// publishes each new one to the market_events stream.
package poller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/stream"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

// Config holds poller dependencies.
type Config struct {
	Registry    *venue.Registry
	Store       storage.Store
	Log         stream.Log
	MarketLimit int
	Logger      *zap.Logger
}

// Service is the market poller stage.
type Service struct {
	registry *venue.Registry
	store    storage.Store
	log      stream.Log
	limit    int
	logger   *zap.Logger
}

// New creates a poller service.
func New(cfg *Config) *Service {
	return &Service{
		registry: cfg.Registry,
		store:    cfg.Store,
		log:      cfg.Log,
		limit:    cfg.MarketLimit,
		logger:   cfg.Logger,
	}
}

// Run polls on the interval until the context is canceled. The first cycle
// runs immediately.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce polls every registered venue once. A venue failure is logged and
// skips that venue for the cycle; it never aborts the others.
func (s *Service) RunOnce(ctx context.Context) {
	for _, v := range s.registry.All() {
		err := s.pollVenue(ctx, v)
		if err != nil {
			VenueErrorsTotal.WithLabelValues(string(v.Kind())).Inc()
			s.logger.Warn("poll-venue-failed",
				zap.String("venue", string(v.Kind())),
				zap.Error(err))
		}
	}
}

func (s *Service) pollVenue(ctx context.Context, v venue.Venue) error {
	ids, err := v.FindNewMarkets(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("find markets: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	newIDs, err := s.store.FilterNewMarketIDs(ctx, v.Kind(), ids)
	if err != nil {
		return fmt.Errorf("filter known markets: %w", err)
	}
	if len(newIDs) == 0 {
		s.logger.Debug("no-new-markets", zap.String("venue", string(v.Kind())))
		return nil
	}

	markets, err := v.GetMarkets(ctx, newIDs)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	err = s.store.UpsertMarkets(ctx, markets)
	if err != nil {
		return fmt.Errorf("persist markets: %w", err)
	}

	for _, m := range markets {
		err = s.log.Append(ctx, stream.MarketEvents, encodeMarketEvent(m))
		if err != nil {
			// Append failures are not fatal for the cycle: the market is
			// already persisted and the next FilterNewMarketIDs call will
			// not re-emit it, so log loudly.
			s.logger.Error("publish-market-event-failed",
				zap.String("market", m.Key()),
				zap.Error(err))
			continue
		}
		MarketsDiscoveredTotal.WithLabelValues(string(v.Kind())).Inc()
	}

	s.logger.Info("markets-discovered",
		zap.String("venue", string(v.Kind())),
		zap.Int("count", len(markets)))
	return nil
}

func encodeMarketEvent(m *types.Market) map[string]string {
	return map[string]string{
		"market_id":       m.MarketID,
		"venue":           string(m.Venue),
		"name":            m.Name,
		"rules":           m.Rules,
		"close_timestamp": strconv.FormatInt(m.CloseTimestamp, 10),
	}
}
