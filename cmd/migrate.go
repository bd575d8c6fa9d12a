package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/jayapriya2010/aquaponics-server/internal/config"
	"github.com/jayapriya2010/aquaponics-server/internal/store"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show current migration version without applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	setupLogging(logFormat)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if dryRun {
		slog.Info("dry run, showing migration status only")
		return showMigrationStatus(cfg)
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		// Opening the store runs migrations.
		s, err := store.NewSQLiteStore(cfg.DSN())
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck
	case "postgres":
		s, err := store.NewPostgresStore(cfg.DSN(), slog.Default())
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck
		if err := s.Migrate(cmd.Context()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage driver %q has no migrations", cfg.Storage.Driver)
	}

	slog.Info("migrations complete", "driver", cfg.Storage.Driver)
	return nil
}

func showMigrationStatus(cfg *config.Config) error {
	var db *sql.DB
	var err error
	var dialect string

	switch cfg.Storage.Driver {
	case "sqlite":
		db, err = sql.Open("sqlite", cfg.DSN())
		dialect = "sqlite3"
	case "postgres":
		db, err = sql.Open("pgx", cfg.DSN())
		dialect = "postgres"
	default:
		return fmt.Errorf("storage driver %q has no migrations", cfg.Storage.Driver)
	}
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		current = 0
	}

	slog.Info("migration status", "current_version", current, "driver", cfg.Storage.Driver)
	return nil
}
