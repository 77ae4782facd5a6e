package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/stockledger/internal/adapter/http"
	"github.com/iho/stockledger/internal/adapter/http/handler"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/stockledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/stockledger/internal/adapter/repository/redis"
	"github.com/iho/stockledger/internal/infrastructure/auth"
	"github.com/iho/stockledger/internal/infrastructure/config"
	"github.com/iho/stockledger/internal/infrastructure/logger"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
	redisClient "github.com/iho/stockledger/internal/infrastructure/redis"
	"github.com/iho/stockledger/internal/usecase"
)

const (
	limiterSweepInterval = time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log).Up(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis. The ledger runs without it; summaries are then
	// computed on every request and Idempotency-Key is ignored.
	rdb, err := redisClient.NewClient(ctx, redisClient.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without cache and idempotency")
		rdb = nil
	} else {
		defer rdb.Close()
		log.Info().Msg("connected to redis")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool, cfg.LockTimeout)
	recordRepo := postgresRepo.NewRecordRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)

	var (
		cache            usecase.Cache
		idempotencyStore usecase.IdempotencyStore
	)
	if rdb != nil {
		cache = redisRepo.NewCache(rdb,
			redisRepo.WithKeyPrefix(cfg.RedisKeyPrefix),
			redisRepo.WithLookupObserver(m.ObserveCacheLookup),
		)
		idempotencyStore = redisRepo.NewIdempotencyStore(rdb, cfg.RedisKeyPrefix)
	}

	// Initialize use cases
	ledgerOpts := []usecase.LedgerOption{
		usecase.WithMetrics(m),
		usecase.WithTransactionTimeout(cfg.TransactionTimeout),
	}
	if cache != nil {
		ledgerOpts = append(ledgerOpts, usecase.WithCache(cache))
	}

	ledgerUC := usecase.NewLedgerUseCase(txManager, recordRepo, entryRepo, cfg.Policy(), ledgerOpts...)
	recordUC := usecase.NewRecordUseCase(txManager, recordRepo, entryRepo, cache, m)
	summaryUC := usecase.NewSummaryUseCase(recordRepo, entryRepo, cache, cfg.SummaryCacheTTL)
	reconciliationUC := usecase.NewReconciliationUseCase(txManager, recordRepo, entryRepo, cache, m)
	recordUC.SetTransactionTimeout(cfg.TransactionTimeout)
	reconciliationUC.SetTransactionTimeout(cfg.TransactionTimeout)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m.RateLimitHits.Inc)
	go sweepLimiter(ctx, rateLimiter, limiterSweepInterval, log)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		RecordHandler:         handler.NewRecordHandler(recordUC),
		EntryHandler:          handler.NewEntryHandler(ledgerUC),
		SummaryHandler:        handler.NewSummaryHandler(summaryUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		HealthHandler:         handler.NewHealthHandler(pool, redisPinger(rdb)),
		Logger:                log,
		JWTManager:            jwtManager,
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           rateLimiter,
		Metrics:               m,
		AllowedOrigins:        cfg.CORSAllowedOrigins,
	})

	server := newHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.HTTPPort).
			Str("cascade_policy", string(cfg.Policy())).
			Bool("auth", cfg.AuthEnabled).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

// redisPinger returns nil when Redis is not configured so readiness skips it.
func redisPinger(client *redis.Client) handler.Pinger {
	if client == nil {
		return nil
	}
	return handler.PingerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// sweepLimiter drops per-client limiters that have been idle until ctx ends.
func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(limiterMaxIdle); n > 0 {
				log.Debug().Int("removed", n).Msg("rate limiter sweep")
			}
		}
	}
}
