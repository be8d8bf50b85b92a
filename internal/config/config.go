package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/toko-pos/internal/obs"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Live cart backends.
const (
	LiveCartRedis = "redis"
	LiveCartStore = "store"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	StoreDriver string
	DatabaseURL string
	RedisURL    string

	LiveCartBackend string
	LiveCartKey     string
	StoreTimezone   *time.Location

	StoreRetryAttempts       int
	StoreRetryBaseDelay      time.Duration
	StoreRetryJitter         float64
	StoreBreakerMinRequests  int
	StoreBreakerFailureRatio float64
	StoreBreakerOpenFor      time.Duration
	LedgerMaxConflictRetries int

	LowStockAlerts   bool
	LowStockAlertTTL time.Duration
	AlertQueue       string

	CheckoutLockTTL  time.Duration
	LockRetryBackoff time.Duration
	IdempotencyTTL   time.Duration
	RateLimit        string

	CORSAllowedOrigins []string
	RunMigrations      bool

	LogFormat          string
	LogLevel           string
	MetricsNamespace   string
	EnablePrometheus   bool
	MetricsBucketsMs   []float64
	EnableTracing      bool
	TracingExporter    string
	TracingSampleRatio float64
	OTLPEndpoint       string
	EnablePprof        bool
	PprofUser          string
	PprofPass          string
	WorkerConcurrency  int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		StoreDriver: strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), DriverPostgres)),
		DatabaseURL: strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(k.String("REDIS_URL")),

		LiveCartBackend: strings.ToLower(valueOrDefault(k.String("LIVE_CART_BACKEND"), LiveCartRedis)),
		LiveCartKey:     valueOrDefault(k.String("LIVE_CART_KEY"), "live_cart_data"),

		StoreRetryAttempts:       parseInt(k.String("STORE_RETRY_ATTEMPTS"), 3),
		StoreRetryBaseDelay:      parseDuration(k.String("STORE_RETRY_BASE_DELAY"), "200ms"),
		StoreRetryJitter:         parseFloat(k.String("STORE_RETRY_JITTER"), 0.2),
		StoreBreakerMinRequests:  parseInt(k.String("STORE_BREAKER_MIN_REQUESTS"), 20),
		StoreBreakerFailureRatio: parseFloat(k.String("STORE_BREAKER_FAILURE_RATIO"), 0.5),
		StoreBreakerOpenFor:      parseDuration(k.String("STORE_BREAKER_OPEN_FOR"), "30s"),
		LedgerMaxConflictRetries: parseInt(k.String("LEDGER_MAX_CONFLICT_RETRIES"), 5),

		LowStockAlerts:   parseBool(valueOrDefault(k.String("LOW_STOCK_ALERTS"), "true")),
		LowStockAlertTTL: parseDuration(k.String("LOW_STOCK_ALERT_TTL"), "1h"),
		AlertQueue:       valueOrDefault(k.String("ALERT_QUEUE"), "alerts"),

		CheckoutLockTTL:  parseDuration(k.String("CHECKOUT_LOCK_TTL"), "10s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:        valueOrDefault(k.String("RATE_LIMIT"), "300-M"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RunMigrations:      parseBool(valueOrDefault(k.String("RUN_MIGRATIONS"), "true")),

		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko_pos"),
		EnablePrometheus:   parseBool(valueOrDefault(k.String("OBS_ENABLE_PROMETHEUS"), "true")),
		MetricsBucketsMs:   obs.ParseBucketsCSV(k.String("OBS_METRICS_BUCKETS_MS")),
		EnableTracing:      parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		TracingSampleRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		EnablePprof:        parseBool(k.String("OBS_ENABLE_PPROF")),
		PprofUser:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
	}

	tz := valueOrDefault(k.String("STORE_TIMEZONE"), "America/New_York")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("STORE_TIMEZONE %q: %w", tz, err)
	}
	cfg.StoreTimezone = loc

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q", DriverPostgres, DriverMemory)
	}
	switch cfg.LiveCartBackend {
	case LiveCartRedis, LiveCartStore:
	default:
		return nil, fmt.Errorf("LIVE_CART_BACKEND must be %q or %q", LiveCartRedis, LiveCartStore)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
