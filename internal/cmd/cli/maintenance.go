package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cfgpkg "github.com/kindredgroup/scylla/internal/config"
	"github.com/kindredgroup/scylla/internal/manager"
	"github.com/kindredgroup/scylla/internal/monitor"
	"github.com/kindredgroup/scylla/internal/store/postgres"
	"github.com/kindredgroup/scylla/internal/store/sqlite"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

// NewMonitorCommand constructs the `monitor` command group.
func NewMonitorCommand(logger logpkg.Logger) *cobra.Command {
	monCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Background maintenance",
	}
	monCmd.AddCommand(
		newMonitorRunCommand(logger),
		newMonitorResetExpiredCommand(logger),
		newMonitorDeleteRetiredCommand(logger),
	)
	return monCmd
}

func newMonitorRunCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the maintenance loops until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store, err)
			}
			defer func() { _ = s.Close() }()

			mgr := manager.New(s,
				manager.WithLogger(logger),
				manager.WithDefaultLease(cfg.LeaseDuration.Std()))
			mon := monitor.New(mgr,
				monitor.WithLogger(logger),
				monitor.WithResetInterval(cfg.Monitor.ResetInterval.Std()),
				monitor.WithDeleteInterval(cfg.Monitor.DeleteInterval.Std()),
				monitor.WithRetention(cfg.Monitor.Retention.Std()))
			mon.Start(ctx)
			<-ctx.Done()
			mon.Stop()
			return nil
		},
	}
}

func newMonitorResetExpiredCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-expired",
		Short: "Reclaim every expired lease once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			reset, err := mgr.ResetExpiredTasks(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, reset)
		},
	}
}

func newMonitorDeleteRetiredCommand(logger logpkg.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-retired",
		Short: "Delete retired tasks past the retention window and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			retention := cfg.Monitor.Retention.Std()
			if cmd.Flags().Changed("retention") {
				retention, _ = cmd.Flags().GetDuration("retention")
			}
			mgr, done, err := openManager(cmd, logger)
			if err != nil {
				return err
			}
			defer done()
			n, err := mgr.DeleteRetiredTasks(cmd.Context(), retention)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d tasks\n", n)
			return err
		},
	}
	cmd.Flags().Duration("retention", 0, "Retention window override (default from config)")
	return cmd
}

// NewMigrateCommand constructs the `migrate` command, which applies the
// task schema to the configured store.
func NewMigrateCommand(logger logpkg.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the task schema to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch cfg.Store {
			case cfgpkg.StorePostgres:
				pool, err := postgres.OpenPool(ctx, cfg.Postgres)
				if err != nil {
					return fmt.Errorf("open pool: %w", err)
				}
				defer pool.Close()
				if err := postgres.Migrate(ctx, pool); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			case cfgpkg.StoreSQLite:
				// opening applies the schema
				e, err := sqlite.Open(ctx, cfg.SQLitePath, sqlite.WithLogger(logger))
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				_ = e.Close()
			}
			logger.Info("schema applied", logpkg.F("store", cfg.Store))
			return nil
		},
	}
}
