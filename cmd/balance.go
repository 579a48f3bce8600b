package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/openpredict/crossarb/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print available cash on every configured venue",
	RunE:  runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger("balance")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("build venue registry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var total float64
	for _, v := range registry.All() {
		balance, err := v.GetBalance(ctx)
		if err != nil {
			fmt.Printf("%-12s error: %v\n", v.Kind(), err)
			continue
		}
		fmt.Printf("%-12s $%.2f\n", v.Kind(), balance)
		total += balance
	}
	fmt.Printf("%-12s $%.2f\n", "total", total)
	return nil
}
