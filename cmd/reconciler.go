package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/openpredict/crossarb/internal/reconciler"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var reconcilerCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Converge persisted order state to venue truth",
	RunE:  runReconciler,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(reconcilerCmd)
}

func runReconciler(_ *cobra.Command, _ []string) error {
	env, ctx, cancel, err := newStageEnv("reconciler")
	if err != nil {
		return err
	}
	defer cancel()
	defer env.shutdown()

	registry, err := buildRegistry(env.cfg, env.logger)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	svc := reconciler.New(&reconciler.Config{
		Store:    env.store,
		Registry: registry,
		Logger:   env.logger,
	})

	env.start()
	err = svc.Run(ctx, env.cfg.ReconciliationPollingInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
