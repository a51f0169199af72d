package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays SCYLLA_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SCYLLA_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("SCYLLA_PG_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SCYLLA_PG_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = n
		}
	}
	if v := os.Getenv("SCYLLA_PG_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SCYLLA_PG_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SCYLLA_PG_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SCYLLA_PG_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.PoolSize = n
		}
	}
	if v := os.Getenv("SCYLLA_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if d, ok := envDuration("SCYLLA_LEASE_DURATION"); ok {
		cfg.LeaseDuration = d
	}
	if d, ok := envDuration("SCYLLA_MONITOR_RESET_INTERVAL"); ok {
		cfg.Monitor.ResetInterval = d
	}
	if d, ok := envDuration("SCYLLA_MONITOR_DELETE_INTERVAL"); ok {
		cfg.Monitor.DeleteInterval = d
	}
	if d, ok := envDuration("SCYLLA_MONITOR_RETENTION"); ok {
		cfg.Monitor.Retention = d
	}
}

func envDuration(key string) (Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return Duration(d), true
}
