package config

import (
	"os"
	"strconv"
	"time"
)

// Store captures storage level configuration for the membership core.
type Store struct {
	PostgresDSN string
	Redis       RedisConfig
}

// RedisConfig tunes the optional Redis client used for the configuration
// cache and distributed household locks. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigCacheTTL bounds staleness of cached fee configurations. Fee
// schedules change at most once a year, so an hour is conservative.
var ConfigCacheTTL = time.Hour

// HouseholdLockTTL bounds how long a crashed transition can hold a
// distributed household lock before it expires.
var HouseholdLockTTL = 30 * time.Second

// FromEnv builds a Store config from environment variables so callers stay lean.
func FromEnv() Store {
	return Store{
		PostgresDSN: os.Getenv("CAIRN_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CAIRN_REDIS_URL"),
			PoolSize:     envInt("CAIRN_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CAIRN_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
