package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openpredict/crossarb/internal/storage"
	"github.com/openpredict/crossarb/internal/venue"
	"github.com/openpredict/crossarb/internal/venue/kalshi"
	"github.com/openpredict/crossarb/internal/venue/polymarket"
	"github.com/openpredict/crossarb/internal/venue/testvenue"
	"github.com/openpredict/crossarb/pkg/config"
	"github.com/openpredict/crossarb/pkg/healthprobe"
	"github.com/openpredict/crossarb/pkg/httpserver"
	"github.com/openpredict/crossarb/pkg/stream"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// stageEnv is the shared runtime of one stage process: config, logger, log
// client, storage and the metrics/health HTTP server.
type stageEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	log    stream.Log
	store  storage.Store
	health *healthprobe.HealthChecker
	server *httpserver.Server
}

// newStageEnv boots the shared runtime. The returned context is canceled on
// SIGINT/SIGTERM; the loop finishes its current batch and exits.
func newStageEnv(name string) (*stageEnv, context.Context, context.CancelFunc, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	log, err := stream.NewRedisLog(ctx, &stream.RedisConfig{
		URL:    cfg.RedisURL,
		Addr:   cfg.RedisAddr,
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect redis log: %w", err)
	}

	store, err := storage.NewPostgresStore(&storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	health := healthprobe.New(name)
	server := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: health,
	})

	return &stageEnv{
		cfg:    cfg,
		logger: logger,
		log:    log,
		store:  store,
		health: health,
		server: server,
	}, ctx, cancel, nil
}

// start serves metrics/health in the background and marks the stage ready.
func (e *stageEnv) start() {
	go func() {
		err := e.server.Start()
		if err != nil {
			e.logger.Error("http-server-failed", zap.Error(err))
		}
	}()
	e.health.SetReady(true)
}

// shutdown tears the runtime down in dependency order.
func (e *stageEnv) shutdown() {
	e.health.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := e.server.Shutdown(ctx)
	if err != nil {
		e.logger.Error("http-server-shutdown-error", zap.Error(err))
	}
	err = e.log.Close()
	if err != nil {
		e.logger.Error("log-close-error", zap.Error(err))
	}
	err = e.store.Close()
	if err != nil {
		e.logger.Error("storage-close-error", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// consumerName derives the per-process consumer name for a stage.
func consumerName(stage string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return stage + "-" + host
}

// buildRegistry constructs the venue adapters the configuration provides
// credentials for. Trading stages need at least two venues to be useful, but
// the registry itself only requires one.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*venue.Registry, error) {
	var venues []venue.Venue

	if cfg.KalshiAccessKey != "" && cfg.KalshiPrivateKey != "" {
		k, err := kalshi.New(&kalshi.Config{
			BaseURL:    cfg.KalshiBaseURL,
			AccessKey:  cfg.KalshiAccessKey,
			PrivateKey: cfg.KalshiPrivateKey,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("kalshi adapter: %w", err)
		}
		venues = append(venues, k)
	}

	if cfg.PolymarketPrivateKey != "" {
		p, err := polymarket.New(&polymarket.Config{
			GammaURL:     cfg.PolymarketGammaURL,
			ClobURL:      cfg.PolymarketClobURL,
			RPCURL:       cfg.PolygonRPCURL,
			PrivateKey:   cfg.PolymarketPrivateKey,
			ProxyAddress: cfg.PolymarketProxy,
			APIKey:       cfg.PolymarketAPIKey,
			Secret:       cfg.PolymarketSecret,
			Passphrase:   cfg.PolymarketPassphrase,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("polymarket adapter: %w", err)
		}
		venues = append(venues, p)
	}

	if cfg.EnableTestVenue {
		venues = append(venues, testvenue.New(logger))
	}

	if len(venues) == 0 {
		return nil, fmt.Errorf("no venue credentials configured")
	}
	return venue.NewRegistry(venues...), nil
}
