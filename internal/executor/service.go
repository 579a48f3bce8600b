// Package executor consumes sized opportunities and works them as chunked
// symmetric market buys on the two venues of the pair.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/pkg/cache"
	"github.com/openpredict/crossarb/pkg/stream"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const (
	readBatchSize  = 8
	marketCacheTTL = 10 * time.Minute
)

// Config holds executor dependencies.
type Config struct {
	Log      stream.Log
	Store    storage.Store
	Strategy *Strategy
	Markets  cache.Cache // memoizes Market lookups across opportunities
	Consumer string
	Logger   *zap.Logger
}

// Service is the trade executor stage.
type Service struct {
	log      stream.Log
	store    storage.Store
	strategy *Strategy
	markets  cache.Cache
	consumer string
	logger   *zap.Logger
}

// New creates an executor service.
func New(cfg *Config) *Service {
	return &Service{
		log:      cfg.Log,
		store:    cfg.Store,
		strategy: cfg.Strategy,
		markets:  cfg.Markets,
		consumer: cfg.Consumer,
		logger:   cfg.Logger,
	}
}

// Init creates the consumer group.
func (s *Service) Init(ctx context.Context) error {
	return s.log.CreateGroup(ctx, stream.Opportunities, stream.ExecutionGroup)
}

// Run consumes on the interval until the context is canceled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	err := s.Init(ctx)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

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

// RunOnce reads one batch of opportunities and executes each. An
// opportunity is acknowledged once execution has been attempted: a partially
// worked opportunity must never be redelivered and double-bought.
func (s *Service) RunOnce(ctx context.Context) {
	msgs, err := s.log.ReadGroup(ctx, stream.Opportunities, stream.ExecutionGroup, s.consumer, readBatchSize)
	if err != nil {
		s.logger.Error("read-opportunities-failed", zap.Error(err))
		return
	}

	for _, msg := range msgs {
		pair, opp, err := decodeOpportunityEvent(msg.Values)
		if err != nil {
			PoisonOpportunitiesTotal.Inc()
			s.logger.Error("poison-opportunity",
				zap.String("record-id", msg.ID),
				zap.Error(err))
			s.ack(ctx, msg.ID)
			continue
		}

		m1, err := s.loadMarket(ctx, pair.Venue1, pair.MarketID1)
		if err != nil {
			s.logger.Warn("load-market-failed", zap.String("record-id", msg.ID), zap.Error(err))
			continue // left pending; storage should recover
		}
		m2, err := s.loadMarket(ctx, pair.Venue2, pair.MarketID2)
		if err != nil {
			s.logger.Warn("load-market-failed", zap.String("record-id", msg.ID), zap.Error(err))
			continue
		}

		s.logger.Info("executing-opportunity",
			zap.String("pair", opp.PairKey),
			zap.String("market-1", m1.Name),
			zap.String("market-2", m2.Name),
			zap.String("type", string(opp.Type)),
			zap.Int64("shares", opp.Shares))

		executed, err := s.strategy.Execute(ctx, pair, opp)
		if err != nil {
			s.logger.Error("opportunity-abandoned",
				zap.String("pair", opp.PairKey),
				zap.Int64("executed", executed),
				zap.Int64("target", opp.Shares),
				zap.Error(err))
		} else {
			OpportunitiesExecutedTotal.Inc()
			s.logger.Info("opportunity-executed",
				zap.String("pair", opp.PairKey),
				zap.Int64("shares", executed))
		}

		s.ack(ctx, msg.ID)
	}
}

func (s *Service) ack(ctx context.Context, id string) {
	err := s.log.Ack(ctx, stream.Opportunities, stream.ExecutionGroup, id)
	if err != nil {
		s.logger.Error("ack-failed", zap.String("record-id", id), zap.Error(err))
	}
}

func (s *Service) loadMarket(ctx context.Context, venue types.VenueKind, marketID string) (*types.Market, error) {
	key := string(venue) + "/" + marketID
	if v, ok := s.markets.Get(key); ok {
		if m, ok := v.(*types.Market); ok {
			return m, nil
		}
	}

	m, err := s.store.GetMarket(ctx, venue, marketID)
	if err != nil {
		return nil, err
	}
	s.markets.Set(key, m, marketCacheTTL)
	return m, nil
}

func decodeOpportunityEvent(values map[string]string) (types.MarketPair, *types.Opportunity, error) {
	venue1, err := types.ParseVenueKind(values["venue_1"])
	if err != nil {
		return types.MarketPair{}, nil, err
	}
	venue2, err := types.ParseVenueKind(values["venue_2"])
	if err != nil {
		return types.MarketPair{}, nil, err
	}
	if values["market_id_1"] == "" || values["market_id_2"] == "" {
		return types.MarketPair{}, nil, fmt.Errorf("missing market ids")
	}

	opp, err := types.DecodeOpportunity(values["opportunity"])
	if err != nil {
		return types.MarketPair{}, nil, err
	}

	pair := types.MarketPair{
		MarketID1: values["market_id_1"],
		Venue1:    venue1,
		MarketID2: values["market_id_2"],
		Venue2:    venue2,
	}
	pair.Canonicalize()
	return pair, opp, nil
}
