// Command migrate runs schema operations against the configured database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"postdesk/internal/config"
	"postdesk/internal/database"
	"postdesk/internal/middleware"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type migrator struct {
	cfg *config.Config
	db  *gorm.DB
}

func (m *migrator) open(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	m.cfg, m.db = cfg, db
	return nil
}

func (m *migrator) close(_ *cobra.Command, _ []string) error {
	return database.Close(m.db)
}

func main() {
	m := &migrator{}

	rootCmd := &cobra.Command{
		Use:                "migrate",
		Short:              "Postdesk schema tool",
		SilenceUsage:       true,
		PersistentPreRunE:  m.open,
		PersistentPostRunE: m.close,
	}

	rootCmd.AddCommand(
		m.upCmd(),
		m.autoCmd(),
		m.statusCmd(),
		m.downCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (m *migrator) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.RunMigrations(cmd.Context(), m.db); err != nil {
				return fmt.Errorf("sql migrations failed: %w", err)
			}
			middleware.Logger.Info("sql migrations applied")
			return nil
		},
	}
}

func (m *migrator) autoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto",
		Short: "Run GORM AutoMigrate for the persistent models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m.cfg.DBSchemaMode = config.SchemaModeAuto
			if err := database.ApplySchema(cmd.Context(), m.db, m.cfg); err != nil {
				return fmt.Errorf("auto schema apply failed: %w", err)
			}
			middleware.Logger.Info("automigrations applied")
			return nil
		},
	}
}

func (m *migrator) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := database.GetSchemaStatus(cmd.Context(), m.db, m.cfg)
			if err != nil {
				return fmt.Errorf("schema status failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode=%s env=%s dialect=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
				status.Mode, status.Env, status.Dialect, status.SQL,
				status.AutoMigrate, len(status.Applied), len(status.Pending))
			for _, p := range status.Pending {
				fmt.Fprintf(out, "pending: %s\n", p.String())
			}
			return nil
		},
	}
}

func (m *migrator) downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [version]",
		Short: "Roll back one migration, the latest when no version is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				version, err := database.RollbackLatest(cmd.Context(), m.db)
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				if version == 0 {
					middleware.Logger.Info("nothing to roll back")
					return nil
				}
				middleware.Logger.Info("rolled back migration", slog.Int("version", version))
				return nil
			}

			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			if err := database.RollbackMigration(cmd.Context(), m.db, version); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			middleware.Logger.Info("rolled back migration", slog.Int("version", version))
			return nil
		},
	}
}
