// Package postgres implements the dimension, fact and status stores on a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
)

type Config struct {
	Logger  *slog.Logger
	ConnStr string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ConnStr == "" {
		return errors.New("connection string is required")
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns <= 0 {
		cfg.MinConns = 2
	}
	if cfg.MaxConnLifetime <= 0 {
		cfg.MaxConnLifetime = time.Hour
	}
	if cfg.MaxConnIdleTime <= 0 {
		cfg.MaxConnIdleTime = 30 * time.Minute
	}
	return nil
}

// ConnString builds a postgres URL from its parts.
func ConnString(host, port, database, username, password, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", username, password, host, port, database, sslMode)
}

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var (
	_ dimension.Store    = (*Store)(nil)
	_ loader.FactWriter  = (*Store)(nil)
	_ loader.StatusStore = (*Store)(nil)
)

// Open creates the pool and pings the server.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	cfg.Logger.Info("postgres: connected", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)
	return &Store{log: cfg.Logger, pool: pool}, nil
}

// New wraps an existing pool.
func New(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Lookup(ctx context.Context, sc dimension.Schema, key dimension.NaturalKey) (dimension.ID, error) {
	conds := make([]string, len(sc.KeyColumns))
	for i, col := range sc.KeyColumns {
		conds[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	query := "SELECT id FROM " + sc.Table + " WHERE " + strings.Join(conds, " AND ")

	var id int64
	err := s.pool.QueryRow(ctx, query, dimension.DBValues(key.Values)...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return dimension.None, dimension.ErrNotFound
	}
	if err != nil {
		return dimension.None, fmt.Errorf("failed to query %s: %w", sc.Table, err)
	}
	return dimension.ID(id), nil
}

// Insert relies on the natural-key unique constraint: a conflicting row is
// skipped by ON CONFLICT DO NOTHING and reported as ErrConflict.
func (s *Store) Insert(ctx context.Context, sc dimension.Schema, key dimension.NaturalKey, attrs []any) error {
	cols := append(append([]string{}, sc.KeyColumns...), sc.AttributeColumns...)
	args := append(dimension.DBValues(key.Values), dimension.DBValues(attrs)...)
	if len(args) != len(cols) {
		return fmt.Errorf("%s: got %d values for %d columns", sc.Table, len(args), len(cols))
	}

	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		sc.Table, strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(sc.KeyColumns, ", "))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", sc.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return dimension.ErrConflict
	}
	return nil
}

// WriteFacts copies facts in a single transaction.
func (s *Store) WriteFacts(ctx context.Context, runID string, facts []loader.Fact) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"votos_consolidados"},
			[]string{"eleicao_id", "municipio_id", "cargo_id", "candidato_id", "total_votos", "run_id"},
			pgx.CopyFromSlice(len(facts), func(i int) ([]any, error) {
				f := facts[i]
				return []any{int64(f.ElectionID), int64(f.MunicipalityID), int64(f.OfficeID), int64(f.CandidateID), f.TotalVotes, runID}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to copy facts: %w", err)
		}
		if int(n) != len(facts) {
			return fmt.Errorf("copied %d of %d facts", n, len(facts))
		}
		return nil
	})
}

func (s *Store) RegisterFile(ctx context.Context, path string, at time.Time) (loader.FileID, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO arquivos_processados (caminho, status, linhas_processadas, registrado_em, atualizado_em)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (caminho) DO UPDATE
		SET status = EXCLUDED.status, linhas_processadas = 0, atualizado_em = EXCLUDED.atualizado_em
		RETURNING id`,
		path, string(loader.StatusProcessing), at,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert file %s: %w", path, err)
	}
	return loader.FileID(id), nil
}

func (s *Store) UpdateFileStatus(ctx context.Context, rec loader.FileStatusRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE arquivos_processados SET status = $1, linhas_processadas = $2, atualizado_em = $3 WHERE id = $4`,
		string(rec.Status), rec.Lines, rec.UpdatedAt, int64(rec.FileID))
	if err != nil {
		return fmt.Errorf("failed to update file %d: %w", rec.FileID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file %d is not registered", rec.FileID)
	}
	return nil
}

// CountFacts returns the number of fact rows written by a run.
func (s *Store) CountFacts(ctx context.Context, runID string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM votos_consolidados WHERE run_id = $1`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return n, nil
}
