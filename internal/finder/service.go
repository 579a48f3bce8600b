// Package finder consumes market_pairs, pulls live depth for both sides of
// each pair and publishes sized opportunities from the depth-curve sizer.
package finder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openpredict/crossarb/internal/arbitrage"
	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/stream"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const (
	readBatchSize = 32

	// Every resweepEvery cycles the finder re-evaluates all persisted pairs,
	// not just new stream records, so depth that moved since pairing is seen.
	resweepEvery = 10
)

// Config holds finder dependencies.
type Config struct {
	Log      stream.Log
	Store    storage.Store
	Registry *venue.Registry
	Sizer    arbitrage.Config
	Consumer string
	Logger   *zap.Logger
}

// Service is the arbitrage finder stage.
type Service struct {
	log      stream.Log
	store    storage.Store
	registry *venue.Registry
	sizer    arbitrage.Config
	consumer string
	logger   *zap.Logger
}

// New creates a finder service.
func New(cfg *Config) *Service {
	return &Service{
		log:      cfg.Log,
		store:    cfg.Store,
		registry: cfg.Registry,
		sizer:    cfg.Sizer,
		consumer: cfg.Consumer,
		logger:   cfg.Logger,
	}
}

// Init creates the consumer group.
func (s *Service) Init(ctx context.Context) error {
	return s.log.CreateGroup(ctx, stream.MarketPairs, stream.ArbitrageGroup)
}

// Run consumes on the interval until the context is canceled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	err := s.Init(ctx)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for cycle := 0; ; cycle++ {
		s.RunOnce(ctx)
		if cycle%resweepEvery == resweepEvery-1 {
			s.Resweep(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce reads one batch of pairs and evaluates each for arbitrage.
func (s *Service) RunOnce(ctx context.Context) {
	msgs, err := s.log.ReadGroup(ctx, stream.MarketPairs, stream.ArbitrageGroup, s.consumer, readBatchSize)
	if err != nil {
		s.logger.Error("read-market-pairs-failed", zap.Error(err))
		return
	}

	for _, msg := range msgs {
		pair, err := decodeMarketPair(msg.Values)
		if err != nil {
			PoisonPairsTotal.Inc()
			s.logger.Error("poison-market-pair",
				zap.String("record-id", msg.ID),
				zap.Error(err))
			s.ack(ctx, msg.ID)
			continue
		}

		err = s.evaluate(ctx, pair)
		if err != nil {
			s.logger.Warn("evaluate-pair-failed",
				zap.String("record-id", msg.ID),
				zap.String("pair", pair.Key()),
				zap.Error(err))
			continue // left pending, redelivered later
		}

		PairsEvaluatedTotal.Inc()
		s.ack(ctx, msg.ID)
	}
}

// Resweep evaluates every persisted pair against live depth. Pair records on
// the stream cover new pairings; the sweep covers books that moved since.
func (s *Service) Resweep(ctx context.Context) {
	pairs, err := s.store.ListMarketPairs(ctx)
	if err != nil {
		s.logger.Error("list-market-pairs-failed", zap.Error(err))
		return
	}

	for _, pair := range pairs {
		if ctx.Err() != nil {
			return
		}
		err = s.evaluate(ctx, pair)
		if err != nil {
			s.logger.Warn("resweep-pair-failed",
				zap.String("pair", pair.Key()),
				zap.Error(err))
			continue
		}
		PairsEvaluatedTotal.Inc()
	}
}

func (s *Service) ack(ctx context.Context, id string) {
	err := s.log.Ack(ctx, stream.MarketPairs, stream.ArbitrageGroup, id)
	if err != nil {
		s.logger.Error("ack-failed", zap.String("record-id", id), zap.Error(err))
	}
}

// evaluate fetches both books in parallel, persists them for audit, runs
// the sizer and publishes any opportunity.
func (s *Service) evaluate(ctx context.Context, pair types.MarketPair) error {
	v1, err := s.registry.Get(pair.Venue1)
	if err != nil {
		return err
	}
	v2, err := s.registry.Get(pair.Venue2)
	if err != nil {
		return err
	}

	var (
		wg     sync.WaitGroup
		b1, b2 *types.OrderBook
		e1, e2 error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		b1, e1 = fetchBook(ctx, v1, pair.MarketID1)
	}()
	go func() {
		defer wg.Done()
		b2, e2 = fetchBook(ctx, v2, pair.MarketID2)
	}()
	wg.Wait()

	if e1 != nil {
		return fmt.Errorf("fetch book %s/%s: %w", pair.Venue1, pair.MarketID1, e1)
	}
	if e2 != nil {
		return fmt.Errorf("fetch book %s/%s: %w", pair.Venue2, pair.MarketID2, e2)
	}

	// Audit snapshots; a failed write must not block detection.
	err = s.store.InsertOrderBooks(ctx, []*types.OrderBook{b1, b2})
	if err != nil {
		s.logger.Warn("persist-books-failed",
			zap.String("pair", pair.Key()),
			zap.Error(err))
	}

	opp := arbitrage.FindOpportunity(pair, b1, b2, s.sizer)
	if opp == nil {
		return nil
	}

	encoded, err := opp.Encode()
	if err != nil {
		return fmt.Errorf("encode opportunity: %w", err)
	}

	values := map[string]string{
		"market_id_1": pair.MarketID1,
		"venue_1":     string(pair.Venue1),
		"market_id_2": pair.MarketID2,
		"venue_2":     string(pair.Venue2),
		"opportunity": encoded,
	}
	err = s.log.Append(ctx, stream.Opportunities, values)
	if err != nil {
		return fmt.Errorf("publish opportunity: %w", err)
	}

	OpportunitiesPublishedTotal.Inc()
	s.logger.Info("opportunity-published",
		zap.String("pair", pair.Key()),
		zap.String("type", string(opp.Type)),
		zap.Int64("shares", opp.Shares),
		zap.Int64("total-cost", opp.TotalCost))
	return nil
}

func fetchBook(ctx context.Context, v venue.Venue, marketID string) (*types.OrderBook, error) {
	books, err := v.GetOrderBooks(ctx, []string{marketID})
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("no book returned for %s", marketID)
	}
	return books[0], nil
}

func decodeMarketPair(values map[string]string) (types.MarketPair, error) {
	venue1, err := types.ParseVenueKind(values["venue_1"])
	if err != nil {
		return types.MarketPair{}, err
	}
	venue2, err := types.ParseVenueKind(values["venue_2"])
	if err != nil {
		return types.MarketPair{}, err
	}
	if values["market_id_1"] == "" || values["market_id_2"] == "" {
		return types.MarketPair{}, fmt.Errorf("missing market ids")
	}

	pair := types.MarketPair{
		MarketID1: values["market_id_1"],
		Venue1:    venue1,
		MarketID2: values["market_id_2"],
		Venue2:    venue2,
	}
	pair.Canonicalize()
	return pair, nil
}
