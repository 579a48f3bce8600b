// Package matcher consumes market_events, finds cross-venue markets that
// describe the same real-world event and publishes confirmed pairs to
// market_pairs. Matching is two-phase: a cheap vector-index recall pass
// followed by an expensive LLM precision pass.
package matcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/openpredict/crossarb/internal/similarity"
	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/pkg/cache"
	"github.com/openpredict/crossarb/pkg/stream"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const (
	readBatchSize = 32
	candidateTopK = 3
	verdictTTL    = 24 * time.Hour
)

// Index is the candidate-recall side of matching.
type Index interface {
	UpsertRecords(ctx context.Context, records []similarity.Record) error
	Search(ctx context.Context, text string, topK int, venueNot types.VenueKind) ([]similarity.Match, error)
}

// Judge is the precision side of matching.
type Judge interface {
	SameMarket(ctx context.Context, a, b *types.Market) bool
}

// Config holds matcher dependencies.
type Config struct {
	Log      stream.Log
	Store    storage.Store
	Index    Index
	Judge    Judge
	Verdicts cache.Cache // memoizes judge verdicts across redeliveries
	Consumer string
	Logger   *zap.Logger
}

// Service is the similarity matcher stage.
type Service struct {
	log      stream.Log
	store    storage.Store
	index    Index
	judge    Judge
	verdicts cache.Cache
	consumer string
	logger   *zap.Logger
}

// New creates a matcher service.
func New(cfg *Config) *Service {
	return &Service{
		log:      cfg.Log,
		store:    cfg.Store,
		index:    cfg.Index,
		judge:    cfg.Judge,
		verdicts: cfg.Verdicts,
		consumer: cfg.Consumer,
		logger:   cfg.Logger,
	}
}

// Init creates the consumer group.
func (s *Service) Init(ctx context.Context) error {
	return s.log.CreateGroup(ctx, stream.MarketEvents, stream.SimilarityGroup)
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

// RunOnce reads one batch of market events and processes each. A failed
// record stays unacknowledged for redelivery; a structurally unprocessable
// one is acknowledged and dropped.
func (s *Service) RunOnce(ctx context.Context) {
	msgs, err := s.log.ReadGroup(ctx, stream.MarketEvents, stream.SimilarityGroup, s.consumer, readBatchSize)
	if err != nil {
		s.logger.Error("read-market-events-failed", zap.Error(err))
		return
	}

	// De-duplicates confirmed pairs within the batch; two events of the same
	// pair's markets must not double-judge or double-publish.
	seen := make(map[string]bool)

	for _, msg := range msgs {
		market, err := decodeMarketEvent(msg.Values)
		if err != nil {
			PoisonEventsTotal.Inc()
			s.logger.Error("poison-market-event",
				zap.String("record-id", msg.ID),
				zap.Error(err))
			s.ack(ctx, msg.ID)
			continue
		}

		err = s.process(ctx, market, seen)
		if err != nil {
			s.logger.Warn("process-market-event-failed",
				zap.String("record-id", msg.ID),
				zap.String("market", market.Key()),
				zap.Error(err))
			continue // left pending, redelivered later
		}

		EventsProcessedTotal.Inc()
		s.ack(ctx, msg.ID)
	}
}

func (s *Service) ack(ctx context.Context, id string) {
	err := s.log.Ack(ctx, stream.MarketEvents, stream.SimilarityGroup, id)
	if err != nil {
		s.logger.Error("ack-failed", zap.String("record-id", id), zap.Error(err))
	}
}

// process runs the full matching pipeline for one market. All side effects
// are idempotent, so a redelivery after a partial run is safe.
func (s *Service) process(ctx context.Context, market *types.Market, seen map[string]bool) error {
	err := s.store.UpsertMarkets(ctx, []*types.Market{market})
	if err != nil {
		return fmt.Errorf("persist market: %w", err)
	}

	err = s.index.UpsertRecords(ctx, similarity.MarketRecords(market))
	if err != nil {
		return fmt.Errorf("index market: %w", err)
	}

	matches, err := s.index.Search(ctx, market.Name, candidateTopK, market.Venue)
	if err != nil {
		return fmt.Errorf("search candidates: %w", err)
	}

	var confirmed []types.MarketPair
	for _, match := range matches {
		candidate, err := s.store.GetMarket(ctx, match.Venue, match.MarketID)
		if err != nil {
			// The candidate's own event may not have been ingested yet; the
			// pair will surface when it is.
			s.logger.Debug("candidate-not-ingested",
				zap.String("market", string(match.Venue)+"/"+match.MarketID))
			continue
		}

		pair := types.NewMarketPair(market, candidate)
		if seen[pair.Key()] {
			continue
		}

		if !s.sameMarket(ctx, pair.Key(), market, candidate) {
			continue
		}

		seen[pair.Key()] = true
		confirmed = append(confirmed, pair)
	}

	if len(confirmed) == 0 {
		return nil
	}

	inserted, err := s.store.InsertMarketPairs(ctx, confirmed)
	if err != nil {
		return fmt.Errorf("persist pairs: %w", err)
	}

	for _, pair := range inserted {
		err = s.log.Append(ctx, stream.MarketPairs, encodeMarketPair(pair))
		if err != nil {
			return fmt.Errorf("publish pair %s: %w", pair.Key(), err)
		}
		PairsConfirmedTotal.Inc()
		s.logger.Info("pair-confirmed",
			zap.String("market-1", string(pair.Venue1)+"/"+pair.MarketID1),
			zap.String("market-2", string(pair.Venue2)+"/"+pair.MarketID2))
	}
	return nil
}

// sameMarket returns the judge's verdict for the pair, memoized so a
// redelivered event does not re-spend an LLM call.
func (s *Service) sameMarket(ctx context.Context, pairKey string, a, b *types.Market) bool {
	if v, ok := s.verdicts.Get(pairKey); ok {
		VerdictCacheHitsTotal.Inc()
		same, _ := v.(bool)
		return same
	}

	same := s.judge.SameMarket(ctx, a, b)
	s.verdicts.Set(pairKey, same, verdictTTL)
	return same
}

func decodeMarketEvent(values map[string]string) (*types.Market, error) {
	venue, err := types.ParseVenueKind(values["venue"])
	if err != nil {
		return nil, err
	}
	if values["market_id"] == "" {
		return nil, fmt.Errorf("missing market_id")
	}

	closeTS, err := strconv.ParseInt(values["close_timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad close_timestamp %q: %w", values["close_timestamp"], err)
	}

	return &types.Market{
		Venue:          venue,
		MarketID:       values["market_id"],
		Name:           values["name"],
		Rules:          values["rules"],
		CloseTimestamp: closeTS,
	}, nil
}

func encodeMarketPair(p types.MarketPair) map[string]string {
	return map[string]string{
		"market_id_1": p.MarketID1,
		"venue_1":     string(p.Venue1),
		"market_id_2": p.MarketID2,
		"venue_2":     string(p.Venue2),
	}
}
