package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kindredgroup/scylla/internal/store/postgres"
)

// Store engine names accepted in Config.Store.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Duration is a time.Duration that marshals as a string such as "30s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Monitor holds the background maintenance settings.
type Monitor struct {
	ResetInterval  Duration `json:"resetInterval"`
	DeleteInterval Duration `json:"deleteInterval"`
	Retention      Duration `json:"retention"`
}

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Store         string          `json:"store"`
	Postgres      postgres.Config `json:"postgres"`
	SQLitePath    string          `json:"sqlitePath"`
	LeaseDuration Duration        `json:"leaseDuration"`
	Monitor       Monitor         `json:"monitor"`
}

// Default returns built-in defaults: a Postgres store on localhost and
// the maintenance cadence suitable for development.
func Default() Config {
	return Config{
		Store: StorePostgres,
		Postgres: postgres.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "admin",
			Password: "admin",
			Database: "scylla",
			PoolSize: postgres.DefaultPoolSize,
		},
		SQLitePath:    DefaultSQLitePath(),
		LeaseDuration: Duration(30 * time.Second),
		Monitor: Monitor{
			ResetInterval:  Duration(5 * time.Second),
			DeleteInterval: Duration(60 * time.Second),
			Retention:      Duration(24 * time.Hour),
		},
	}
}

// Load reads configuration from a JSON file, overlaying the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engines cannot open.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Store, StorePostgres, StoreSQLite)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite store needs a database path")
	}
	if c.LeaseDuration <= 0 {
		return fmt.Errorf("lease duration must be positive, got %s", c.LeaseDuration.Std())
	}
	return nil
}
