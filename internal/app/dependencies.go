// Package app wires the stores, domain services and background task client
// from configuration. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-pos/internal/alerts"
	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/health"
	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/livecart"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/resilience"
	"github.com/noah-isme/toko-pos/internal/settings"
	"github.com/noah-isme/toko-pos/internal/store/memory"
	"github.com/noah-isme/toko-pos/internal/store/postgres"
	"github.com/noah-isme/toko-pos/internal/store/retrying"
)

// Dependencies holds the wired services shared by the HTTP API and the tools.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger

	DB    *pgxpool.Pool
	Redis redis.UniversalClient

	Items    inventory.ItemStore
	Txs      inventory.TransactionStore
	Settings settings.Store

	Ledger    *inventory.Ledger
	Inventory *inventory.Service
	Processor *checkout.Processor
	LiveCart  *livecart.Publisher
	Locker    lock.Locker
	Idem      common.Idem

	TaskClient *asynq.Client

	closers []func() error
}

// Options supplies pre-built clients. Tests pass a miniredis-backed client and
// the memory driver; the binaries leave it empty.
type Options struct {
	Redis redis.UniversalClient
	DB    *pgxpool.Pool
}

// New builds the dependency graph for cfg.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}

	if opts.Redis != nil {
		d.Redis = opts.Redis
	} else {
		client, err := OpenRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		d.Redis = client
		d.closers = append(d.closers, client.Close)
	}

	if err := d.initStores(ctx, opts); err != nil {
		d.Close()
		return nil, err
	}

	var observer inventory.StockObserver
	if cfg.LowStockAlerts {
		conn, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("parse redis url for tasks: %w", err)
		}
		d.TaskClient = asynq.NewClient(conn)
		d.closers = append(d.closers, d.TaskClient.Close)
		observer = &alerts.Notifier{
			Client:    d.TaskClient,
			Queue:     cfg.AlertQueue,
			UniqueTTL: cfg.LowStockAlertTTL,
			Logger:    d.component("alerts"),
		}
	}

	d.Ledger = &inventory.Ledger{
		Items:              d.Items,
		Txs:                d.Txs,
		Observer:           observer,
		Logger:             d.component("ledger"),
		MaxConflictRetries: cfg.LedgerMaxConflictRetries,
		Location:           cfg.StoreTimezone,
	}
	d.Inventory = &inventory.Service{
		Items:  d.Items,
		Txs:    d.Txs,
		Ledger: d.Ledger,
		Logger: d.component("inventory"),
	}
	d.Processor = &checkout.Processor{
		Ledger: d.Ledger,
		Logger: d.component("checkout"),
	}
	d.LiveCart = &livecart.Publisher{
		Store: d.liveCartStore(),
		Key:   cfg.LiveCartKey,
	}
	d.Locker = lock.Locker{R: d.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.CheckoutLockTTL}
	d.Idem = common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	return d, nil
}

func (d *Dependencies) initStores(ctx context.Context, opts Options) error {
	cfg := d.Config
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := memory.New()
		d.Items, d.Txs, d.Settings = mem, mem, mem.Settings()
		return nil
	case config.DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	pool := opts.DB
	if pool == nil {
		if cfg.RunMigrations {
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			d.Logger.Info().Msg("migrations applied")
		}
		var err error
		pool, err = OpenPostgres(ctx, cfg.DatabaseURL, d.Logger)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
	}
	d.DB = pool

	policy := d.storePolicy("postgres")
	pg := postgres.New(pool)
	d.Items = retrying.Items{Next: pg, Policy: policy}
	d.Txs = retrying.Transactions{Next: pg, Policy: policy}
	d.Settings = retrying.Settings{Next: pg.Settings(), Policy: policy}
	return nil
}

func (d *Dependencies) liveCartStore() settings.Store {
	if d.Config.LiveCartBackend == config.LiveCartStore {
		return d.Settings
	}
	return retrying.Settings{
		Next:   settings.NewRedisStore(d.Redis, "pos:settings", 0),
		Policy: d.storePolicy("redis"),
	}
}

// storePolicy builds the retry policy for one backend, each with its own
// breaker so a Redis outage does not trip reads from Postgres.
func (d *Dependencies) storePolicy(target string) resilience.Policy {
	cfg := d.Config
	return retrying.NewPolicy(resilience.Policy{
		Attempts:  cfg.StoreRetryAttempts,
		BaseDelay: cfg.StoreRetryBaseDelay,
		Jitter:    cfg.StoreRetryJitter,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:       target,
			MinRequests:  cfg.StoreBreakerMinRequests,
			FailureRatio: cfg.StoreBreakerFailureRatio,
			OpenFor:      cfg.StoreBreakerOpenFor,
			Logger:       d.component("breaker"),
		}),
		Target: target,
		Logger: d.component("store"),
	})
}

func (d *Dependencies) component(name string) *zerolog.Logger {
	l := d.Logger.With().Str("component", name).Logger()
	return &l
}

// Probes returns the readiness checks for the configured backends.
func (d *Dependencies) Probes() map[string]health.Probe {
	probes := map[string]health.Probe{"redis": health.RedisProbe(d.Redis)}
	if d.DB != nil {
		probes["postgres"] = health.PostgresProbe(d.DB)
	}
	return probes
}

// Close releases the clients opened by New in reverse order.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error().Err(err).Msg("close dependency")
		}
	}
	d.closers = nil
}

// OpenPostgres connects a traced pool and pings it.
func OpenPostgres(ctx context.Context, url string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-pos"

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info().Msg("database connected")
	return pool, nil
}

// OpenRedis connects an instrumented client and pings it.
func OpenRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiter builds a Redis-backed ulule limiter from a formatted rate such as
// "300-M". An empty rate disables limiting.
func NewLimiter(rdb redis.UniversalClient, rate string) (*limiter.Limiter, error) {
	if rate == "" {
		return nil, nil
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", rate, err)
	}
	if rdb == nil {
		return nil, errors.New("rate limiter requires redis")
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "pos:limiter"})
	if err != nil {
		return nil, fmt.Errorf("rate limiter store: %w", err)
	}
	return limiter.New(store, parsed), nil
}
