package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/kindredgroup/scylla/internal/config"
	"github.com/kindredgroup/scylla/internal/manager"
	"github.com/kindredgroup/scylla/internal/store"
	"github.com/kindredgroup/scylla/internal/store/postgres"
	"github.com/kindredgroup/scylla/internal/store/sqlite"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

// NewRoot constructs the root command of the scylla CLI.
func NewRoot(logger logpkg.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "scylla",
		Short: "Durable task store CLI",
		Long: `Scylla is a durable task store for competing workers.

Tasks are added to named queues, leased by workers, driven to a
terminal state, and eventually deleted after the retention window.
Expired leases are reclaimed by the monitor.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a JSON config file")
	root.PersistentFlags().String("store", "", "Store engine: postgres|sqlite (default from config)")
	root.PersistentFlags().String("sqlite-path", "", "SQLite database path (sqlite store only)")

	root.AddCommand(NewTaskCommand(logger))
	root.AddCommand(NewMonitorCommand(logger))
	root.AddCommand(NewMigrateCommand(logger))
	return root
}

// loadConfig resolves configuration in precedence order: defaults, then
// the config file, then SCYLLA_* environment, then flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store = v
	}
	if v, _ := cmd.Flags().GetString("sqlite-path"); v != "" {
		cfg.SQLitePath = v
	}
	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg cfgpkg.Config, logger logpkg.Logger) (store.Store, error) {
	switch cfg.Store {
	case cfgpkg.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, sqlite.WithLogger(logger))
	case cfgpkg.StorePostgres:
		return postgres.Open(ctx, cfg.Postgres, postgres.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// openManager builds the manager for a single command invocation. The
// returned closer releases the underlying store.
func openManager(cmd *cobra.Command, logger logpkg.Logger) (*manager.Manager, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	mgr := manager.New(s,
		manager.WithLogger(logger),
		manager.WithDefaultLease(cfg.LeaseDuration.Std()))
	return mgr, func() { _ = s.Close() }, nil
}
