// Package schema provisions the star schema with goose migrations embedded
// in the pipeline binary.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/malbeclabs/electionlake/pipeline"
)

type Dialect string

const (
	DialectPostgres   Dialect = "postgres"
	DialectMySQL      Dialect = "mysql"
	DialectSQLite3    Dialect = "sqlite3"
	DialectClickHouse Dialect = "clickhouse"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(s); d {
	case DialectPostgres, DialectMySQL, DialectSQLite3, DialectClickHouse:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", s)
	}
}

func (d Dialect) gooseDialect() goose.Dialect {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres
	case DialectMySQL:
		return goose.DialectMySQL
	case DialectSQLite3:
		return goose.DialectSQLite3
	default:
		return goose.DialectClickHouse
	}
}

// MigrationsDir is the directory of a dialect's migrations in MigrationsFS.
func (d Dialect) MigrationsDir() string {
	return "db/" + string(d) + "/migrations"
}

func newProvider(db *sql.DB, dialect Dialect) (*goose.Provider, error) {
	fsys, err := fs.Sub(pipeline.MigrationsFS, dialect.MigrationsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", dialect, err)
	}
	provider, err := goose.NewProvider(dialect.gooseDialect(), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}
	return provider, nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, log *slog.Logger, db *sql.DB, dialect Dialect) error {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return err
	}

	log.Info("schema: running migrations (up)", "dialect", dialect)
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		log.Info("schema: applied migration", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration.String())
	}
	log.Info("schema: migrations completed", "dialect", dialect, "applied", len(results))
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, log *slog.Logger, db *sql.DB, dialect Dialect) error {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return err
	}

	log.Info("schema: rolling back migration (down)", "dialect", dialect)
	result, err := provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	if result != nil && result.Source != nil {
		log.Info("schema: rolled back migration", "version", result.Source.Version, "path", result.Source.Path)
	}
	return nil
}

// MigrationState is the applied state of one migration.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// Status reports every known migration and whether it is applied.
func Status(ctx context.Context, log *slog.Logger, db *sql.DB, dialect Dialect) ([]MigrationState, error) {
	provider, err := newProvider(db, dialect)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		state := MigrationState{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		}
		log.Info("schema: migration status", "version", state.Version, "path", state.Path, "applied", state.Applied)
		out = append(out, state)
	}
	return out, nil
}
