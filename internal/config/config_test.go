package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store != StorePostgres {
		t.Fatalf("default store = %s", cfg.Store)
	}
	if cfg.Postgres.Port != 5432 {
		t.Fatalf("default port = %d", cfg.Postgres.Port)
	}
	if cfg.LeaseDuration.Std() != 30*time.Second {
		t.Fatalf("default lease = %s", cfg.LeaseDuration.Std())
	}
	if cfg.Monitor.Retention.Std() != 24*time.Hour {
		t.Fatalf("default retention = %s", cfg.Monitor.Retention.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scylla.json")
	data := []byte(`{"store":"sqlite","sqlitePath":"/tmp/t.db","leaseDuration":"1m","monitor":{"resetInterval":"10s"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreSQLite || cfg.SQLitePath != "/tmp/t.db" {
		t.Fatalf("store = %s %s", cfg.Store, cfg.SQLitePath)
	}
	if cfg.LeaseDuration.Std() != time.Minute {
		t.Fatalf("lease = %s", cfg.LeaseDuration.Std())
	}
	if cfg.Monitor.ResetInterval.Std() != 10*time.Second {
		t.Fatalf("reset interval = %s", cfg.Monitor.ResetInterval.Std())
	}
	// untouched fields keep their defaults
	if cfg.Monitor.DeleteInterval.Std() != 60*time.Second {
		t.Fatalf("delete interval = %s", cfg.Monitor.DeleteInterval.Std())
	}
}

func TestLoadBadDuration(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scylla.json")
	if err := os.WriteFile(file, []byte(`{"leaseDuration":"soon"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatal("bad duration should fail to load")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("SCYLLA_STORE", "sqlite")
	t.Setenv("SCYLLA_SQLITE_PATH", "/data/tasks.db")
	t.Setenv("SCYLLA_PG_HOST", "db.internal")
	t.Setenv("SCYLLA_PG_PORT", "6432")
	t.Setenv("SCYLLA_PG_POOL_SIZE", "32")
	t.Setenv("SCYLLA_LEASE_DURATION", "90s")
	t.Setenv("SCYLLA_MONITOR_RETENTION", "48h")
	FromEnv(&cfg)
	if cfg.Store != StoreSQLite || cfg.SQLitePath != "/data/tasks.db" {
		t.Fatalf("store overlay = %s %s", cfg.Store, cfg.SQLitePath)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 6432 || cfg.Postgres.PoolSize != 32 {
		t.Fatalf("postgres overlay = %+v", cfg.Postgres)
	}
	if cfg.LeaseDuration.Std() != 90*time.Second {
		t.Fatalf("lease overlay = %s", cfg.LeaseDuration.Std())
	}
	if cfg.Monitor.Retention.Std() != 48*time.Hour {
		t.Fatalf("retention overlay = %s", cfg.Monitor.Retention.Std())
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown store should be rejected")
	}
	cfg = Default()
	cfg.Store = StoreSQLite
	cfg.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("sqlite without path should be rejected")
	}
	cfg = Default()
	cfg.LeaseDuration = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero lease duration should be rejected")
	}
}

func TestDefaultSQLitePath(t *testing.T) {
	if DefaultSQLitePath() == "" {
		t.Fatal("default path should never be empty")
	}
}
