package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

const chunkDivisor = 10

// Strategy executes one opportunity as a sequence of symmetric chunks. Each
// chunk buys the two legs on their venues and waits for both to fill before
// the next, so the venues' net inventories stay balanced after every chunk.
type Strategy struct {
	registry     *venue.Registry
	store        storage.Store
	pollTimeout  time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// StrategyConfig holds strategy dependencies.
type StrategyConfig struct {
	Registry    *venue.Registry
	Store       storage.Store
	PollTimeout time.Duration
	// PollInterval is the sleep between fill polls; defaults to 500ms.
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewStrategy creates a chunked execution strategy.
func NewStrategy(cfg *StrategyConfig) *Strategy {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Strategy{
		registry:     cfg.Registry,
		store:        cfg.Store,
		pollTimeout:  cfg.PollTimeout,
		pollInterval: interval,
		logger:       cfg.Logger,
	}
}

// clampCents converts a tenths-of-a-cent price to the cent granularity the
// venue APIs demand, rounding and clamping into [1, 99].
func clampCents(tenths int64) int64 {
	cents := (tenths + 5) / 10
	if cents < 1 {
		return 1
	}
	if cents > 99 {
		return 99
	}
	return cents
}

// Execute runs the chunk loop. It returns the number of shares both legs
// fully executed; a non-nil error means the opportunity was abandoned with
// any dangling open leg canceled.
func (s *Strategy) Execute(ctx context.Context, pair types.MarketPair, opp *types.Opportunity) (int64, error) {
	v1, err := s.registry.Get(pair.Venue1)
	if err != nil {
		return 0, err
	}
	v2, err := s.registry.Get(pair.Venue2)
	if err != nil {
		return 0, err
	}

	side1, side2 := opp.Legs()
	max1 := clampCents(opp.MaxPrice1)
	max2 := clampCents(opp.MaxPrice2)

	chunk := opp.Shares / chunkDivisor
	if chunk < 1 {
		chunk = 1
	}

	var executed int64
	for executed < opp.Shares {
		size := chunk
		if remaining := opp.Shares - executed; remaining < size {
			size = remaining
		}

		err := s.executeChunk(ctx, v1, v2, pair, side1, side2, size, max1, max2)
		if err != nil {
			return executed, fmt.Errorf("chunk at %d/%d shares: %w", executed, opp.Shares, err)
		}

		executed += size
		ChunksExecutedTotal.Inc()
	}

	SharesExecutedTotal.Add(float64(executed))
	return executed, nil
}

func (s *Strategy) executeChunk(ctx context.Context, v1, v2 venue.Venue, pair types.MarketPair,
	side1, side2 types.Side, size, max1, max2 int64) error {

	o1, err := types.NewMarketBuyOrder(pair.Venue1, pair.MarketID1, side1, size, max1)
	if err != nil {
		return err
	}
	o2, err := types.NewMarketBuyOrder(pair.Venue2, pair.MarketID2, side2, size, max2)
	if err != nil {
		return err
	}

	// Persist both legs before placement: a crash between place and update
	// leaves a PENDING row the reconciler converges to venue truth.
	err = s.store.InsertOrder(ctx, o1)
	if err != nil {
		return fmt.Errorf("persist leg 1: %w", err)
	}
	err = s.store.InsertOrder(ctx, o2)
	if err != nil {
		return fmt.Errorf("persist leg 2: %w", err)
	}

	err1 := v1.PlaceOrder(ctx, o1)
	s.persist(ctx, o1)
	err2 := v2.PlaceOrder(ctx, o2)
	s.persist(ctx, o2)

	if o1.Status == types.OrderFailed || o2.Status == types.OrderFailed || err1 != nil || err2 != nil {
		s.abandon(ctx, v1, o1, v2, o2)
		switch {
		case err1 != nil:
			return fmt.Errorf("place leg 1: %w", err1)
		case err2 != nil:
			return fmt.Errorf("place leg 2: %w", err2)
		default:
			return fmt.Errorf("leg rejected (%s=%s, %s=%s)", pair.Venue1, o1.Status, pair.Venue2, o2.Status)
		}
	}

	err = s.awaitFills(ctx, v1, o1, v2, o2)
	if err != nil {
		s.abandon(ctx, v1, o1, v2, o2)
		return err
	}
	return nil
}

// awaitFills polls both legs until both are EXECUTED or the per-chunk
// deadline elapses.
func (s *Strategy) awaitFills(ctx context.Context, v1 venue.Venue, o1 *types.Order, v2 venue.Venue, o2 *types.Order) error {
	deadline := time.Now().Add(s.pollTimeout)

	for {
		s.poll(ctx, v1, o1)
		s.poll(ctx, v2, o2)

		if o1.Status == types.OrderExecuted && o2.Status == types.OrderExecuted {
			return nil
		}
		// A leg canceled or failed at the venue cannot complete the barrier.
		if badLeg(o1) || badLeg(o2) {
			return fmt.Errorf("leg terminated unfilled (%s, %s)", o1.Status, o2.Status)
		}
		if time.Now().After(deadline) {
			ChunkTimeoutsTotal.Inc()
			return fmt.Errorf("fill barrier timed out after %s", s.pollTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func badLeg(o *types.Order) bool {
	return o.Status == types.OrderCanceled || o.Status == types.OrderFailed
}

// poll refreshes one leg from venue truth, persisting any fills.
func (s *Strategy) poll(ctx context.Context, v venue.Venue, o *types.Order) {
	if o.Status.Terminal() {
		return
	}

	trades, err := v.GetOrderStatus(ctx, o)
	if err != nil {
		s.logger.Warn("poll-order-failed",
			zap.String("client-order-id", o.ClientOrderID),
			zap.Error(err))
		return
	}

	if len(trades) > 0 {
		err = s.store.InsertTrades(ctx, trades)
		if err != nil {
			s.logger.Error("persist-trades-failed",
				zap.String("client-order-id", o.ClientOrderID),
				zap.Error(err))
		}
	}
	s.persist(ctx, o)
}

// abandon cancels whichever legs are still cancellable. A cancel rejection
// is logged and left for the reconciler to settle.
func (s *Strategy) abandon(ctx context.Context, v1 venue.Venue, o1 *types.Order, v2 venue.Venue, o2 *types.Order) {
	OpportunitiesAbandonedTotal.Inc()
	for _, leg := range []struct {
		v venue.Venue
		o *types.Order
	}{{v1, o1}, {v2, o2}} {
		if leg.o.Status.Terminal() || leg.o.Status == types.OrderPending {
			continue
		}
		err := leg.v.CancelOrder(ctx, leg.o)
		if err != nil {
			s.logger.Warn("cancel-leg-failed",
				zap.String("client-order-id", leg.o.ClientOrderID),
				zap.Error(err))
			continue
		}
		s.persist(ctx, leg.o)
	}
}

func (s *Strategy) persist(ctx context.Context, o *types.Order) {
	err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		s.logger.Error("persist-order-failed",
			zap.String("client-order-id", o.ClientOrderID),
			zap.Error(err))
	}
}
