package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/openpredict/crossarb/internal/matcher"
	"github.com/openpredict/crossarb/internal/similarity"
	"github.com/openpredict/crossarb/pkg/cache"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var matcherCmd = &cobra.Command{
	Use:   "matcher",
	Short: "Pair semantically identical cross-venue markets",
	RunE:  runMatcher,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(matcherCmd)
}

func runMatcher(_ *cobra.Command, _ []string) error {
	env, ctx, cancel, err := newStageEnv("matcher")
	if err != nil {
		return err
	}
	defer cancel()
	defer env.shutdown()

	err = env.cfg.RequireSimilarity()
	if err != nil {
		return err
	}

	verdicts, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
		Logger:      env.logger,
	})
	if err != nil {
		return fmt.Errorf("create verdict cache: %w", err)
	}
	defer verdicts.Close()

	svc := matcher.New(&matcher.Config{
		Log:   env.log,
		Store: env.store,
		Index: similarity.NewIndex(&similarity.IndexConfig{
			BaseURL: env.cfg.IndexURL,
			APIKey:  env.cfg.IndexAPIKey,
			Logger:  env.logger,
		}),
		Judge: similarity.NewJudge(&similarity.JudgeConfig{
			APIKey: env.cfg.JudgeAPIKey,
			Model:  env.cfg.JudgeModel,
			Logger: env.logger,
		}),
		Verdicts: verdicts,
		Consumer: consumerName("matcher"),
		Logger:   env.logger,
	})

	env.start()
	err = svc.Run(ctx, env.cfg.SimilarityPollingInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
