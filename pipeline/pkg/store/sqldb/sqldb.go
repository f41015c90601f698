// Package sqldb implements the dimension, fact and status stores over
// database/sql for MySQL and SQLite.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
	"github.com/malbeclabs/electionlake/utils/pkg/dberror"
)

const (
	factsTable  = "votos_consolidados"
	filesTable  = "arquivos_processados"
	factColumns = 6
)

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	name       schema.Dialect
	driver     string
	factBatch  int
	upsertFile string
}

var dialects = map[schema.Dialect]dialect{
	schema.DialectMySQL: {
		name:      schema.DialectMySQL,
		driver:    "mysql",
		factBatch: 1000,
		upsertFile: "INSERT INTO " + filesTable + " (caminho, status, linhas_processadas, registrado_em, atualizado_em) VALUES (?, ?, 0, ?, ?) " +
			"ON DUPLICATE KEY UPDATE status = VALUES(status), linhas_processadas = 0, atualizado_em = VALUES(atualizado_em)",
	},
	schema.DialectSQLite3: {
		name:   schema.DialectSQLite3,
		driver: "sqlite3",
		// SQLite limits a statement to 999 bound parameters by default.
		factBatch: 999 / factColumns,
		upsertFile: "INSERT INTO " + filesTable + " (caminho, status, linhas_processadas, registrado_em, atualizado_em) VALUES (?, ?, 0, ?, ?) " +
			"ON CONFLICT (caminho) DO UPDATE SET status = excluded.status, linhas_processadas = 0, atualizado_em = excluded.atualizado_em",
	},
}

type Config struct {
	Logger  *slog.Logger
	Dialect schema.Dialect
	DSN     string
	// MaxOpenConns defaults to 10, and is always 1 for SQLite.
	MaxOpenConns int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if _, ok := dialects[cfg.Dialect]; !ok {
		return fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
	if cfg.DSN == "" {
		return errors.New("dsn is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.Dialect == schema.DialectSQLite3 {
		cfg.MaxOpenConns = 1
	}
	return nil
}

type Store struct {
	log *slog.Logger
	db  *sql.DB
	d   dialect
}

var (
	_ dimension.Store    = (*Store)(nil)
	_ loader.FactWriter  = (*Store)(nil)
	_ loader.StatusStore = (*Store)(nil)
)

// Open opens and pings the database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	d := dialects[cfg.Dialect]

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{log: cfg.Logger, db: db, d: d}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Dialect() schema.Dialect {
	return s.d.name
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Lookup(ctx context.Context, sc dimension.Schema, key dimension.NaturalKey) (dimension.ID, error) {
	conds := make([]string, len(sc.KeyColumns))
	for i, col := range sc.KeyColumns {
		conds[i] = col + " = ?"
	}
	query := "SELECT id FROM " + sc.Table + " WHERE " + strings.Join(conds, " AND ")

	var id int64
	err := s.db.QueryRowContext(ctx, query, dimension.DBValues(key.Values)...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return dimension.None, dimension.ErrNotFound
	}
	if err != nil {
		return dimension.None, fmt.Errorf("failed to query %s: %w", sc.Table, err)
	}
	return dimension.ID(id), nil
}

func (s *Store) Insert(ctx context.Context, sc dimension.Schema, key dimension.NaturalKey, attrs []any) error {
	cols := append(append([]string{}, sc.KeyColumns...), sc.AttributeColumns...)
	args := append(dimension.DBValues(key.Values), dimension.DBValues(attrs)...)
	if len(args) != len(cols) {
		return fmt.Errorf("%s: got %d values for %d columns", sc.Table, len(args), len(cols))
	}
	query := "INSERT INTO " + sc.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if dberror.IsConflict(err) {
			return dimension.ErrConflict
		}
		return fmt.Errorf("failed to insert into %s: %w", sc.Table, err)
	}
	return nil
}

// WriteFacts inserts facts with multi-row statements in one transaction.
func (s *Store) WriteFacts(ctx context.Context, runID string, facts []loader.Fact) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.Error("sqldb: failed to roll back fact load", "error", rbErr)
			}
		}
	}()

	prefix := "INSERT INTO " + factsTable + " (eleicao_id, municipio_id, cargo_id, candidato_id, total_votos, run_id) VALUES "
	row := "(" + placeholders(factColumns) + ")"
	for start := 0; start < len(facts); start += s.d.factBatch {
		batch := facts[start:min(start+s.d.factBatch, len(facts))]

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, len(batch)*factColumns)
		for i, f := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(row)
			args = append(args, int64(f.ElectionID), int64(f.MunicipalityID), int64(f.OfficeID), int64(f.CandidateID), f.TotalVotes, runID)
		}
		if _, err = tx.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("failed to insert facts %d-%d: %w", start, start+len(batch), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit facts: %w", err)
	}
	return nil
}

func (s *Store) RegisterFile(ctx context.Context, path string, at time.Time) (loader.FileID, error) {
	if _, err := s.db.ExecContext(ctx, s.d.upsertFile, path, string(loader.StatusProcessing), at, at); err != nil {
		return 0, fmt.Errorf("failed to upsert file %s: %w", path, err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM "+filesTable+" WHERE caminho = ?", path).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read file id of %s: %w", path, err)
	}
	return loader.FileID(id), nil
}

func (s *Store) UpdateFileStatus(ctx context.Context, rec loader.FileStatusRecord) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+filesTable+" SET status = ?, linhas_processadas = ?, atualizado_em = ? WHERE id = ?",
		string(rec.Status), rec.Lines, rec.UpdatedAt, int64(rec.FileID))
	if err != nil {
		return fmt.Errorf("failed to update file %d: %w", rec.FileID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports zero affected rows when nothing changed, so only
		// a missing id is an error.
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+filesTable+" WHERE id = ?", int64(rec.FileID)).Scan(&exists); err != nil {
			return fmt.Errorf("file %d is not registered: %w", rec.FileID, err)
		}
	}
	return nil
}

// FileStatus reads back a status record.
func (s *Store) FileStatus(ctx context.Context, path string) (loader.FileStatusRecord, error) {
	var (
		rec    loader.FileStatusRecord
		id     int64
		status string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, status, linhas_processadas, atualizado_em FROM "+filesTable+" WHERE caminho = ?", path,
	).Scan(&id, &status, &rec.Lines, &rec.UpdatedAt)
	if err != nil {
		return rec, fmt.Errorf("failed to read file status of %s: %w", path, err)
	}
	rec.FileID = loader.FileID(id)
	rec.Status = loader.FileStatus(status)
	return rec, nil
}

// CountFacts returns the number of fact rows written by a run.
func (s *Store) CountFacts(ctx context.Context, runID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+factsTable+" WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
