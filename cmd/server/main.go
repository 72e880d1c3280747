package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/stockledger/internal/adapter/http"
	"github.com/iho/stockledger/internal/adapter/http/handler"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/adapter/lock"
	"github.com/iho/stockledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/stockledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/stockledger/internal/adapter/repository/redis"
	"github.com/iho/stockledger/internal/adapter/repository/sqlite"
	"github.com/iho/stockledger/internal/infrastructure/config"
	"github.com/iho/stockledger/internal/infrastructure/eventpublisher"
	"github.com/iho/stockledger/internal/infrastructure/logger"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
	"github.com/iho/stockledger/internal/infrastructure/redis"
	"github.com/iho/stockledger/internal/usecase"
)

func main() {
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
}

// storage bundles the repositories of one storage driver.
type storage struct {
	txManager usecase.TransactionManager
	entities  usecase.EntityRepository
	movements usecase.MovementRepository
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier
	ping      handler.CheckFunc
	close     func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log).Up(); err != nil {
			return nil, err
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		log.Info().Msg("connected to postgres")

		return &storage{
			txManager: postgresRepo.NewTxManager(pool, postgresRepo.WithLockTimeout(cfg.LockTimeout)),
			entities:  postgresRepo.NewEntityRepository(pool),
			movements: postgresRepo.NewMovementRepository(pool),
			outbox:    postgresRepo.NewOutboxRepository(pool),
			retrier:   postgresRepo.NewRetrier(log),
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil

	case config.StorageSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, sqlite.WithBusyTimeout(cfg.LockTimeout))
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")

		return &storage{
			txManager: sqlite.NewTxManager(store),
			entities:  sqlite.NewEntityRepository(store),
			movements: sqlite.NewMovementRepository(store),
			outbox:    sqlite.NewOutboxRepository(store),
			ping:      store.Ping,
			close:     func() { _ = store.Close() },
		}, nil

	case config.StorageMemory:
		store := memory.NewStore()
		log.Warn().Msg("using in-memory storage, state is lost on exit")

		return &storage{
			txManager: memory.NewTxManager(store),
			entities:  memory.NewEntityRepository(store),
			movements: memory.NewMovementRepository(store),
			outbox:    memory.NewOutboxRepository(store),
			ping:      store.Ping,
			close:     func() {},
		}, nil
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

func newEventSink(cfg *config.Config, redisClient *goredis.Client, log zerolog.Logger) (eventpublisher.Publisher, io.Closer, error) {
	switch cfg.EventPublisher {
	case config.PublisherRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis event publisher requires a redis client")
		}
		return eventpublisher.NewRedisPublisher(redisClient, cfg.RedisEventChannel), nil, nil
	case config.PublisherAMQP:
		p, err := eventpublisher.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return eventpublisher.NewLogPublisher(log), nil, nil
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	checks := map[string]handler.CheckFunc{"storage": store.ping}

	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")

		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	var locker usecase.EntityLocker = lock.NewLocal()
	if cfg.LockBackend == config.LockRedis {
		locker = redisRepo.NewLocker(redisClient, cfg.LockTTL, log)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	outbox := store.outbox
	if !cfg.OutboxEnabled {
		outbox = postgresRepo.NewNullOutboxRepository()
	}

	ledger := usecase.NewLedgerUseCase(usecase.LedgerDeps{
		TxManager: store.txManager,
		Entities:  store.entities,
		Movements: store.movements,
		Outbox:    outbox,
		Locker:    locker,
		Retrier:   store.retrier,
		IDGen:     postgresRepo.NewULIDGenerator(),
		Metrics:   m,
		Logger:    log,
	}, usecase.LedgerConfig{
		LowBalanceThreshold: cfg.LowBalanceThreshold,
		LockTimeout:         cfg.LockTimeout,
	})
	recon := usecase.NewReconciliationUseCase(store.entities, store.movements, nil)

	routerCfg := httpAdapter.RouterConfig{
		LedgerHandler:         handler.NewLedgerHandler(ledger),
		ReconciliationHandler: handler.NewReconciliationHandler(recon),
		HealthHandler:         handler.NewHealthHandler(checks),
		Logger:                log,
		Metrics:               m,
		MetricsHandler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:    cfg.CORSAllowedOrigins,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		routerCfg.IdempotencyTTL = cfg.IdempotencyTTL
	}
	if cfg.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		routerCfg.RateLimiter = rl
		go sweepVisitors(ctx, rl)
	}

	if cfg.OutboxEnabled {
		sink, closer, err := newEventSink(cfg, redisClient, log)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		if closer != nil {
			defer closer.Close()
		}

		relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: store.outbox,
			Publisher:  sink,
			Logger:     log,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			Retention:  cfg.OutboxRetention,
			Metrics:    m,
		})
		go func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
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

	log.Info().Msg("server stopped")
	return nil
}

func sweepVisitors(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup(3 * time.Minute)
		}
	}
}
