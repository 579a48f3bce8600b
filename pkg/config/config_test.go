package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.HTTPPort)
	require.InDelta(t, 0.05, cfg.ProfitThreshold, 1e-9)
	require.InDelta(t, 0.01, cfg.ExpectedSlippage, 1e-9)
	require.Zero(t, cfg.MaxTradeCost)
	require.Equal(t, 60*time.Second, cfg.PollingInterval)
	require.Equal(t, 10*time.Second, cfg.ArbitragePollingInterval)
	require.Equal(t, 30*time.Second, cfg.PollingTimeout)
	require.Equal(t, 100, cfg.PollerMarketLimit)
	require.False(t, cfg.EnableTestVenue)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PROFIT_THRESHOLD", "0.10")
	t.Setenv("MAX_TRADE_COST", "8000")
	t.Setenv("POLLING_TIMEOUT_S", "5")
	t.Setenv("ENABLE_TEST_VENUE", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.InDelta(t, 0.10, cfg.ProfitThreshold, 1e-9)
	require.Equal(t, int64(8000), cfg.MaxTradeCost)
	require.Equal(t, 5*time.Second, cfg.PollingTimeout)
	require.True(t, cfg.EnableTestVenue)
}

func TestLoadFromEnvRejectsBadThreshold(t *testing.T) {
	t.Setenv("PROFIT_THRESHOLD", "1.5")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestValidateRejectsNegativeCost(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	cfg.MaxTradeCost = -1
	require.Error(t, cfg.Validate())
}

func TestStageCredentialRequirements(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.Error(t, cfg.RequireKalshi())
	require.Error(t, cfg.RequirePolymarket())
	require.Error(t, cfg.RequireSimilarity())

	cfg.KalshiAccessKey = "key"
	cfg.KalshiPrivateKey = "pem"
	require.NoError(t, cfg.RequireKalshi())

	cfg.PolymarketPrivateKey = "hex"
	require.NoError(t, cfg.RequirePolymarket())

	cfg.IndexURL = "https://index.example"
	cfg.IndexAPIKey = "k"
	cfg.JudgeAPIKey = "k"
	require.NoError(t, cfg.RequireSimilarity())
}
