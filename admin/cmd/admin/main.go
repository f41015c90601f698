package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/electionlake/admin/internal/admin"
	"github.com/malbeclabs/electionlake/pipeline/pkg/clickhouse"
	"github.com/malbeclabs/electionlake/pipeline/pkg/config"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
	"github.com/malbeclabs/electionlake/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	envFileFlag := flag.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	driverFlag := flag.String("driver", "", "postgres, mysql or sqlite3 (or set DB_CONNECTION env var)")

	// Commands
	migrateFlag := flag.Bool("migrate", false, "Run relational database migrations using goose")
	migrateStatusFlag := flag.Bool("migrate-status", false, "Show relational database migration status")
	migrateDownFlag := flag.Bool("migrate-down", false, "Roll back the most recent relational migration")
	clickhouseMigrateFlag := flag.Bool("clickhouse-migrate", false, "Run ClickHouse fact sink migrations (uses CLICKHOUSE_* env vars)")
	clickhouseMigrateStatusFlag := flag.Bool("clickhouse-migrate-status", false, "Show ClickHouse fact sink migration status")
	resetDBFlag := flag.Bool("reset-db", false, "Drop all pipeline tables from the relational database")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	log := logger.New(*verboseFlag)
	ctx := context.Background()

	if err := config.LoadDotEnv(*envFileFlag); err != nil {
		return err
	}
	if *driverFlag != "" {
		os.Setenv("DB_CONNECTION", *driverFlag)
	}
	if *clickhouseMigrateFlag || *clickhouseMigrateStatusFlag {
		os.Setenv("FACT_SINK", config.FactSinkClickHouse)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	mcfg := admin.MigrateConfig{Dialect: cfg.DBConnection, DSN: dsn}

	// Execute commands
	if *clickhouseMigrateFlag {
		return admin.ClickHouseMigrate(ctx, log, cfg.ClickHouse)
	}

	if *clickhouseMigrateStatusFlag {
		states, err := clickhouse.MigrationStatus(ctx, log, cfg.ClickHouse)
		if err != nil {
			return err
		}
		printStates(states)
		return nil
	}

	if *migrateFlag {
		return admin.MigrateUp(ctx, log, mcfg)
	}

	if *migrateDownFlag {
		return admin.MigrateDown(ctx, log, mcfg)
	}

	if *migrateStatusFlag {
		states, err := admin.MigrateStatus(ctx, log, mcfg)
		if err != nil {
			return err
		}
		printStates(states)
		return nil
	}

	if *resetDBFlag {
		db, err := admin.OpenDB(ctx, mcfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return admin.ResetDB(ctx, log, db, admin.ResetOptions{
			DryRun:      *dryRunFlag,
			SkipConfirm: *yesFlag,
			In:          os.Stdin,
			Out:         os.Stdout,
		})
	}

	flag.Usage()
	return nil
}

func printStates(states []schema.MigrationState) {
	for _, s := range states {
		mark := "pending"
		if s.Applied {
			mark = "applied"
		}
		fmt.Printf("%-8s %d %s\n", mark, s.Version, s.Path)
	}
}
