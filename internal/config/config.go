package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort         string        `env:"HTTP_PORT" env-default:"8080"`
	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	CORSAllowOrigins []string      `env:"CORS_ALLOW_ORIGINS" env-separator:"," env-default:"*"`

	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	DBPoolSize  int    `env:"DB_POOL_SIZE" env-default:"20"`

	// RedisURL empty disables the list cache.
	RedisURL      string        `env:"REDIS_URL"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" env-default:"50"`
	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"5m"`

	// KafkaBrokers empty disables change events and the invalidation worker.
	KafkaBrokers    []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic      string   `env:"KAFKA_TODO_TOPIC" env-default:"todo-events"`
	KafkaPartitions int      `env:"KAFKA_PARTITIONS" env-default:"3"`
	KafkaGroupID    string   `env:"KAFKA_GROUP_ID" env-default:"todo-cache-invalidators"`

	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	cfg.CORSAllowOrigins = compact(cfg.CORSAllowOrigins)
	if cfg.DBPoolSize <= 0 {
		return nil, fmt.Errorf("DB_POOL_SIZE must be positive, got %d", cfg.DBPoolSize)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive, got %s", cfg.CacheTTL)
	}
	return &cfg, nil
}

// CacheEnabled reports whether a Redis URL is configured.
func (c *Config) CacheEnabled() bool { return c.RedisURL != "" }

// EventsEnabled reports whether Kafka brokers are configured.
func (c *Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
