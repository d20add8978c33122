package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures infrastructure wiring for the versioned-record subsystem.
type Config struct {
	// PostgresDSN is the database/sql connection string for the version tables.
	PostgresDSN string
	// Redis configures the optional policy read-through cache. Empty URL
	// disables caching.
	Redis RedisConfig
	// Audit configures the optional kafka change-feed publisher. Empty broker
	// list disables publishing.
	Audit AuditConfig
	// PolicyCacheTTL bounds how long a resolved policy may be served from
	// cache before the next resolution goes back to the store. Currency is
	// re-checked against the store before every use regardless.
	PolicyCacheTTL time.Duration
}

// RedisConfig holds connection settings for the policy cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig holds connection settings for the audit change-feed.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so composition roots stay lean.
func FromEnv() Config {
	cfg := Config{
		PostgresDSN: os.Getenv("SOLACE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("SOLACE_REDIS_URL"),
			PoolSize:     envInt("SOLACE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SOLACE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("SOLACE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SOLACE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SOLACE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			Topic: envDefault("SOLACE_AUDIT_TOPIC", "solace.audit.versions"),
		},
		PolicyCacheTTL: envDuration("SOLACE_POLICY_CACHE_TTL", 30*time.Second),
	}
	if brokers := os.Getenv("SOLACE_AUDIT_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Audit.Brokers = append(cfg.Audit.Brokers, b)
			}
		}
	}
	return cfg
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
