// Package reconciler converges persisted order state to venue truth. It
// polls every non-terminal order's status and records fills, so the durable
// state recovers from any executor crash. Observation only: it never cancels.
package reconciler

import (
	"context"
	"time"

	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/pkg/types"
	"go.uber.org/zap"
)

// Config holds reconciler dependencies.
type Config struct {
	Store    storage.Store
	Registry *venue.Registry
	Logger   *zap.Logger
}

// Service is the reconciler.
type Service struct {
	store    storage.Store
	registry *venue.Registry
	logger   *zap.Logger
}

// New creates a reconciler service.
func New(cfg *Config) *Service {
	return &Service{
		store:    cfg.Store,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Run reconciles on the interval until the context is canceled.
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

// RunOnce settles one pass over all non-terminal orders. Per-order failures
// are logged and skipped; the next pass retries them.
func (s *Service) RunOnce(ctx context.Context) {
	orders, err := s.store.GetUnsettledOrders(ctx)
	if err != nil {
		s.logger.Error("fetch-unsettled-orders-failed", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}

	s.logger.Info("reconciling-orders", zap.Int("count", len(orders)))
	for _, o := range orders {
		err := s.reconcile(ctx, o)
		if err != nil {
			ErrorsTotal.Inc()
			s.logger.Warn("reconcile-order-failed",
				zap.String("client-order-id", o.ClientOrderID),
				zap.String("venue", string(o.Venue)),
				zap.Error(err))
		}
	}
}

func (s *Service) reconcile(ctx context.Context, o *types.Order) error {
	v, err := s.registry.Get(o.Venue)
	if err != nil {
		return err
	}

	before := o.Status
	trades, err := v.GetOrderStatus(ctx, o)
	if err != nil {
		return err
	}

	if len(trades) > 0 {
		err = s.store.InsertTrades(ctx, trades)
		if err != nil {
			return err
		}
		TradesRecordedTotal.Add(float64(len(trades)))
	}

	err = s.store.UpdateOrder(ctx, o)
	if err != nil {
		return err
	}

	OrdersReconciledTotal.Inc()
	if o.Status != before {
		s.logger.Info("order-settled",
			zap.String("client-order-id", o.ClientOrderID),
			zap.String("from", string(before)),
			zap.String("to", string(o.Status)),
			zap.Int64("fill-size", o.FillSize))
	}
	return nil
}
