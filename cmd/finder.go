package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/openpredict/crossarb/internal/arbitrage"
	"github.com/openpredict/crossarb/internal/finder"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var finderCmd = &cobra.Command{
	Use:   "finder",
	Short: "Size arbitrage opportunities from live order-book depth",
	RunE:  runFinder,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(finderCmd)
}

func runFinder(_ *cobra.Command, _ []string) error {
	env, ctx, cancel, err := newStageEnv("finder")
	if err != nil {
		return err
	}
	defer cancel()
	defer env.shutdown()

	registry, err := buildRegistry(env.cfg, env.logger)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	svc := finder.New(&finder.Config{
		Log:      env.log,
		Store:    env.store,
		Registry: registry,
		Sizer: arbitrage.Config{
			ProfitThreshold:  env.cfg.ProfitThreshold,
			ExpectedSlippage: env.cfg.ExpectedSlippage,
			MaxCost:          env.cfg.MaxTradeCost,
		},
		Consumer: consumerName("finder"),
		Logger:   env.logger,
	})

	env.start()
	err = svc.Run(ctx, env.cfg.ArbitragePollingInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
