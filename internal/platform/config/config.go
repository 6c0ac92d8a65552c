// Package config reads process configuration from the environment. An
// optional .env file in the working directory is loaded first; variables
// already set in the environment win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends accepted by FROTA_CACHE.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Station  string
	LogLevel string
	Upstream UpstreamConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Batch    BatchConfig
	Server   Server
}

// UpstreamConfig describes the document service.
type UpstreamConfig struct {
	BaseURL       string
	Timeout       time.Duration
	PrimeStatuses []int
	MaxBodyBytes  int64
}

// CacheConfig selects the document cache.
type CacheConfig struct {
	Backend string
	TTL     time.Duration
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the PostgreSQL connection.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
}

// KafkaConfig configures the optional row export topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether Kafka export is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// BatchConfig tunes the batch runner and its file layout.
type BatchConfig struct {
	Concurrency int
	KeyTimeout  time.Duration
	KeysFile    string
	OutputDir   string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Load reads .env when present and then builds the config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	var err error

	cfg.Station = getString("FROTA_STATION", "deluca")
	cfg.LogLevel = getString("FROTA_LOG_LEVEL", "info")

	cfg.Upstream.BaseURL = getString("FROTA_UPSTREAM_URL", "https://ws.meudanfe.com")
	if cfg.Upstream.Timeout, err = getDuration("FROTA_UPSTREAM_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Upstream.PrimeStatuses, err = getInts("FROTA_PRIME_STATUSES", []int{400, 500}); err != nil {
		return Config{}, err
	}
	maxBody, err := getInt("FROTA_UPSTREAM_MAX_BODY_BYTES", 10<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.Upstream.MaxBodyBytes = int64(maxBody)

	cfg.Cache.Backend = strings.ToLower(getString("FROTA_CACHE", CacheMemory))
	switch cfg.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis, CachePostgres:
	default:
		return Config{}, fmt.Errorf("FROTA_CACHE: unknown backend %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL, err = getDuration("FROTA_CACHE_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	cfg.Redis.URL = os.Getenv("REDIS_URL")
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Config{}, err
	}
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second

	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	if cfg.Postgres.MaxOpenConns, err = getInt("DATABASE_MAX_OPEN_CONNS", 10); err != nil {
		return Config{}, err
	}
	if cfg.Cache.Backend == CacheRedis && cfg.Redis.URL == "" {
		return Config{}, fmt.Errorf("FROTA_CACHE=redis requires REDIS_URL")
	}
	if cfg.Cache.Backend == CachePostgres && cfg.Postgres.DSN == "" {
		return Config{}, fmt.Errorf("FROTA_CACHE=postgres requires DATABASE_URL")
	}

	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.Topic = getString("KAFKA_TOPIC", "frota.fuel-records")

	if cfg.Batch.Concurrency, err = getInt("FROTA_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.Batch.KeyTimeout, err = getDuration("FROTA_KEY_TIMEOUT", 45*time.Second); err != nil {
		return Config{}, err
	}
	cfg.Batch.KeysFile = getString("FROTA_KEYS_FILE", "access_keys.txt")
	cfg.Batch.OutputDir = getString("FROTA_OUTPUT_DIR", ".")

	cfg.Server.Addr = getString("FROTA_ADDR", ":8080")
	if cfg.Server.ShutdownTimeout, err = getDuration("FROTA_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func getInt(name string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func getDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func getInts(name string, fallback []int) ([]int, error) {
	parts := splitList(os.Getenv(name))
	if len(parts) == 0 {
		return fallback, nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 100 || n > 599 {
			return nil, fmt.Errorf("%s: %q is not an HTTP status", name, p)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
