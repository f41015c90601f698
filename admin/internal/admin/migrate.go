package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	_ "github.com/mattn/go-sqlite3"

	"github.com/malbeclabs/electionlake/pipeline/pkg/clickhouse"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
)

// MigrateConfig selects the relational database to migrate.
type MigrateConfig struct {
	Dialect schema.Dialect
	DSN     string
}

var drivers = map[schema.Dialect]string{
	schema.DialectPostgres: "pgx",
	schema.DialectMySQL:    "mysql",
	schema.DialectSQLite3:  "sqlite3",
}

// OpenDB opens and pings a relational database.
func OpenDB(ctx context.Context, cfg MigrateConfig) (*sql.DB, error) {
	driver, ok := drivers[cfg.Dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// MigrateUp runs all pending migrations.
func MigrateUp(ctx context.Context, log *slog.Logger, cfg MigrateConfig) error {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return schema.Up(ctx, log, db, cfg.Dialect)
}

// MigrateDown rolls back the last migration.
func MigrateDown(ctx context.Context, log *slog.Logger, cfg MigrateConfig) error {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return schema.Down(ctx, log, db, cfg.Dialect)
}

func MigrateStatus(ctx context.Context, log *slog.Logger, cfg MigrateConfig) ([]schema.MigrationState, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return schema.Status(ctx, log, db, cfg.Dialect)
}

// ClickHouseMigrate creates the analytics database if needed and runs its
// migrations.
func ClickHouseMigrate(ctx context.Context, log *slog.Logger, cfg clickhouse.ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	bootstrap := cfg
	bootstrap.Database = "default"
	client, err := clickhouse.NewClient(ctx, log, bootstrap)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer client.Close()

	conn, err := client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()
	if err := clickhouse.CreateDatabase(ctx, log, conn, cfg.Database); err != nil {
		return fmt.Errorf("failed to create database %s: %w", cfg.Database, err)
	}

	return clickhouse.Up(ctx, log, cfg)
}
