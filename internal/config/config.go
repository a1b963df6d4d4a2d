// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load errors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all runtime configuration for the ingest service.
type Config struct {
	Port         string
	GRPCPort     string
	StoreDriver  string
	DatabaseURL  string
	SQLitePath   string
	RedisURL     string // optional; enables the distributed lock and events
	HTTPTimeout  time.Duration
	ResolveLimit time.Duration // whole-resolution timeout
	AshbyDelay   time.Duration
	LockTTL      time.Duration

	RefreshIntervalHours int // 0 disables the refresh scheduler
	RefreshOnStart       bool
	SearchRateLimit      int // POST /searchCompany per minute per client; 0 disables
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getenv("INGEST_PORT", "8083"),
		GRPCPort:    getenv("GRPC_PORT", "9083"),
		StoreDriver: getenv("STORE_DRIVER", DriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getenv("SQLITE_PATH", "job-board-finder.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.StoreDriver)
	}

	var err error
	if cfg.HTTPTimeout, err = seconds("HTTP_TIMEOUT_SECONDS", 15, 1); err != nil {
		return nil, err
	}
	if cfg.ResolveLimit, err = seconds("RESOLVE_TIMEOUT_SECONDS", 300, 1); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = seconds("LOCK_TTL_SECONDS", 600, 1); err != nil {
		return nil, err
	}
	delayMS, err := intEnv("ASHBY_DELAY_MS", 500, 0)
	if err != nil {
		return nil, err
	}
	cfg.AshbyDelay = time.Duration(delayMS) * time.Millisecond

	if cfg.RefreshIntervalHours, err = intEnv("REFRESH_INTERVAL_HOURS", 24, 0); err != nil {
		return nil, err
	}
	if cfg.SearchRateLimit, err = intEnv("SEARCH_RATE_LIMIT", 10, 0); err != nil {
		return nil, err
	}
	if s := os.Getenv("REFRESH_ON_START"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("REFRESH_ON_START must be a boolean, got %q", s)
		}
		cfg.RefreshOnStart = v
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def, min int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min {
		return 0, fmt.Errorf("%s must be an integer >= %d, got %q", key, min, s)
	}
	return v, nil
}

func seconds(key string, def, min int) (time.Duration, error) {
	v, err := intEnv(key, def, min)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}
