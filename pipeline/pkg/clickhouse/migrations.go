package clickhouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
)

func CreateDatabase(ctx context.Context, log *slog.Logger, conn Connection, database string) error {
	log.Info("clickhouse: creating database", "database", database)
	return conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))
}

// Up runs all pending ClickHouse migrations.
func Up(ctx context.Context, log *slog.Logger, cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	db := clickhouse.OpenDB(cfg.options())
	defer db.Close()

	if err := schema.Up(ctx, log, db, schema.DialectClickHouse); err != nil {
		return err
	}
	return nil
}

// Down rolls back the most recent ClickHouse migration.
func Down(ctx context.Context, log *slog.Logger, cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	db := clickhouse.OpenDB(cfg.options())
	defer db.Close()

	return schema.Down(ctx, log, db, schema.DialectClickHouse)
}

// MigrationStatus logs and returns the state of every ClickHouse migration.
func MigrationStatus(ctx context.Context, log *slog.Logger, cfg ClientConfig) ([]schema.MigrationState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	db := clickhouse.OpenDB(cfg.options())
	defer db.Close()

	return schema.Status(ctx, log, db, schema.DialectClickHouse)
}
