package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/openpredict/crossarb/internal/poller"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var pollerCmd = &cobra.Command{
	Use:   "poller",
	Short: "Discover live markets and publish them to market_events",
	RunE:  runPoller,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pollerCmd)
}

func runPoller(_ *cobra.Command, _ []string) error {
	env, ctx, cancel, err := newStageEnv("poller")
	if err != nil {
		return err
	}
	defer cancel()
	defer env.shutdown()

	registry, err := buildRegistry(env.cfg, env.logger)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	svc := poller.New(&poller.Config{
		Registry:    registry,
		Store:       env.store,
		Log:         env.log,
		MarketLimit: env.cfg.PollerMarketLimit,
		Logger:      env.logger,
	})

	env.start()
	err = svc.Run(ctx, env.cfg.PollingInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
