package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/openpredict/crossarb/internal/executor"
	"github.com/openpredict/crossarb/pkg/cache"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var executorCmd = &cobra.Command{
	Use:   "executor",
	Short: "Execute opportunities as chunked symmetric buys",
	RunE:  runExecutor,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(executorCmd)
}

func runExecutor(_ *cobra.Command, _ []string) error {
	env, ctx, cancel, err := newStageEnv("executor")
	if err != nil {
		return err
	}
	defer cancel()
	defer env.shutdown()

	registry, err := buildRegistry(env.cfg, env.logger)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	markets, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
		Logger:      env.logger,
	})
	if err != nil {
		return fmt.Errorf("create market cache: %w", err)
	}
	defer markets.Close()

	svc := executor.New(&executor.Config{
		Log:   env.log,
		Store: env.store,
		Strategy: executor.NewStrategy(&executor.StrategyConfig{
			Registry:    registry,
			Store:       env.store,
			PollTimeout: env.cfg.PollingTimeout,
			Logger:      env.logger,
		}),
		Markets:  markets,
		Consumer: consumerName("executor"),
		Logger:   env.logger,
	})

	env.start()
	err = svc.Run(ctx, env.cfg.TradePollingInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
