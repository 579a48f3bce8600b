package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration. Every stage loads the full struct
// and validates only what it needs at startup.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Log (Redis Streams)
	RedisURL  string
	RedisAddr string

	// Arbitrage sizing
	ProfitThreshold  float64
	ExpectedSlippage float64
	MaxTradeCost     int64 // tenths of a cent; 0 means uncapped

	// Per-stage loop intervals
	PollingInterval               time.Duration
	SimilarityPollingInterval     time.Duration
	ArbitragePollingInterval      time.Duration
	TradePollingInterval          time.Duration
	ReconciliationPollingInterval time.Duration

	// Executor per-chunk wait
	PollingTimeout time.Duration

	// Poller
	PollerMarketLimit int
	EnableTestVenue   bool

	// Kalshi credentials
	KalshiBaseURL    string
	KalshiAccessKey  string
	KalshiPrivateKey string // PEM-encoded RSA key

	// Polymarket credentials
	PolymarketGammaURL   string
	PolymarketClobURL    string
	PolymarketPrivateKey string
	PolymarketProxy      string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string
	PolygonRPCURL        string

	// Similarity index (vector store)
	IndexURL    string
	IndexAPIKey string

	// LLM judge
	JudgeAPIKey string
	JudgeModel  string

	// Storage
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		RedisURL:  os.Getenv("REDIS_URL"),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		ProfitThreshold:  getFloat64OrDefault("PROFIT_THRESHOLD", 0.05),
		ExpectedSlippage: getFloat64OrDefault("EXPECTED_SLIPPAGE", 0.01),
		MaxTradeCost:     getInt64OrDefault("MAX_TRADE_COST", 0),

		PollingInterval:               getSecondsOrDefault("POLLING_INTERVAL_S", 60*time.Second),
		SimilarityPollingInterval:     getSecondsOrDefault("SIMILARITY_POLLING_INTERVAL_S", 10*time.Second),
		ArbitragePollingInterval:      getSecondsOrDefault("ARBITRAGE_POLLING_INTERVAL_S", 10*time.Second),
		TradePollingInterval:          getSecondsOrDefault("TRADE_POLLING_INTERVAL_S", 10*time.Second),
		ReconciliationPollingInterval: getSecondsOrDefault("RECONCILIATION_POLLING_INTERVAL_S", 60*time.Second),

		PollingTimeout: getSecondsOrDefault("POLLING_TIMEOUT_S", 30*time.Second),

		PollerMarketLimit: getIntOrDefault("POLLER_MARKET_LIMIT", 100),
		EnableTestVenue:   getBoolOrDefault("ENABLE_TEST_VENUE", false),

		KalshiBaseURL:    getEnvOrDefault("KALSHI_BASE_URL", "https://api.elections.kalshi.com/trade-api/v2"),
		KalshiAccessKey:  os.Getenv("KALSHI_ACCESS_KEY"),
		KalshiPrivateKey: os.Getenv("KALSHI_PRIVATE_KEY"),

		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketClobURL:    getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketPrivateKey: os.Getenv("POLYMARKET_PRIVATE_KEY"),
		PolymarketProxy:      os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		PolygonRPCURL:        getEnvOrDefault("POLYGON_RPC_URL", "https://polygon-rpc.com"),

		IndexURL:    os.Getenv("SIMILARITY_INDEX_URL"),
		IndexAPIKey: os.Getenv("SIMILARITY_INDEX_API_KEY"),

		JudgeAPIKey: os.Getenv("OPENAI_API_KEY"),
		JudgeModel:  getEnvOrDefault("JUDGE_MODEL", "gpt-4o-2024-08-06"),

		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "crossarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "crossarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are internally consistent.
// Per-stage credential requirements are checked by the stage commands.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.ProfitThreshold < 0 || c.ProfitThreshold >= 1.0 {
		return fmt.Errorf("PROFIT_THRESHOLD must be in [0, 1.0), got %f", c.ProfitThreshold)
	}

	if c.ExpectedSlippage < 0 || c.ExpectedSlippage >= 1.0 {
		return fmt.Errorf("EXPECTED_SLIPPAGE must be in [0, 1.0), got %f", c.ExpectedSlippage)
	}

	if c.MaxTradeCost < 0 {
		return fmt.Errorf("MAX_TRADE_COST cannot be negative, got %d", c.MaxTradeCost)
	}

	if c.PollingTimeout <= 0 {
		return fmt.Errorf("POLLING_TIMEOUT_S must be positive")
	}

	return nil
}

// RequireKalshi verifies the Kalshi credentials are present.
func (c *Config) RequireKalshi() error {
	if c.KalshiAccessKey == "" || c.KalshiPrivateKey == "" {
		return fmt.Errorf("KALSHI_ACCESS_KEY and KALSHI_PRIVATE_KEY must be set")
	}
	return nil
}

// RequirePolymarket verifies the Polymarket credentials are present.
func (c *Config) RequirePolymarket() error {
	if c.PolymarketPrivateKey == "" {
		return fmt.Errorf("POLYMARKET_PRIVATE_KEY must be set")
	}
	return nil
}

// RequireSimilarity verifies the index and judge credentials are present.
func (c *Config) RequireSimilarity() error {
	if c.IndexURL == "" || c.IndexAPIKey == "" {
		return fmt.Errorf("SIMILARITY_INDEX_URL and SIMILARITY_INDEX_API_KEY must be set")
	}
	if c.JudgeAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set")
	}
	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

// getSecondsOrDefault reads a whole-seconds env var (the *_S options).
func getSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	secs, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(secs) * time.Second
}
