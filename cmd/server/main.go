// Package main provides the API server entry point for the BlockE ledger service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blocke-ledger/internal/adapter"
	"github.com/blocke-ledger/internal/api"
	"github.com/blocke-ledger/internal/config"
	"github.com/blocke-ledger/internal/logging"
	"github.com/blocke-ledger/internal/service"
	"github.com/blocke-ledger/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB connects on first use; index creation is best effort so the
	// server still starts while the cluster is unreachable.
	mongo := storage.NewMongoDB(&cfg.Database.Mongo)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongo.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("Failed to close MongoDB")
		}
	}()
	if err := mongo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to ensure MongoDB indexes")
	}

	if err := storage.RunMigrations(cfg.Database.Postgres.URL(), cfg.Migrations.Path); err != nil {
		logger.WithError(err).Fatal("Failed to apply Postgres migrations")
	}
	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	healthChecks := map[string]api.HealthChecker{
		"mongodb":  mongo,
		"postgres": postgres,
	}

	var (
		totalsCache service.TotalsCache
		checkpoints service.CheckpointStore
	)
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, totals are cached in process and scans are not checkpointed")
		} else {
			defer redis.Close()
			totalsCache = storage.NewCacheService(redis)
			checkpoints = storage.NewCheckpointRepository(redis)
			healthChecks["redis"] = redis
		}
	}

	metrics := api.NewMetrics()

	services := api.Services{
		Balance:     service.NewBalanceService(storage.NewBalanceRepository(mongo)),
		Ledger:      service.NewLedgerService(storage.NewTransactionRepository(postgres)),
		Staking:     service.NewStakingService(storage.NewStakingRepository(mongo)),
		BEUID:       service.NewBEUIDService(storage.NewBEUIDRepository(mongo)),
		Preferences: service.NewPreferenceService(storage.NewPreferenceRepository(mongo)),

		HealthChecks: healthChecks,
	}

	if cfg.Chain.Enabled() {
		chain, err := adapter.NewEthereumAdapter(ctx, &cfg.Chain)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create chain adapter")
		}
		defer chain.Close()

		services.Aggregator = service.NewAggregatorService(chain, checkpoints, totalsCache, metrics, service.AggregatorConfig{
			StartBlock:    cfg.Chain.StartBlock,
			BlockSpan:     cfg.Chain.BlockSpan,
			Confirmations: cfg.Chain.Confirmations,
			CacheTTL:      cfg.Cache.TTL,
		})
		logger.WithFields(map[string]interface{}{
			"token":   cfg.Chain.TokenContract,
			"staking": cfg.Chain.StakingContract,
		}).Info("On-chain aggregator enabled")
	} else {
		logger.Warn("RPC_URL or TOKEN_CONTRACT_ADDRESS not set, on-chain totals are disabled")
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    float64(cfg.RateLimit.RPS),
		RateLimitBurst:  cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, services, metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
