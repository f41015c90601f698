package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/electionlake/pipeline/pkg/metrics"
)

type Config struct {
	Logger *slog.Logger
	Facts  FactWriter
	Status StatusStore
	RunID  string
	Clock  clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Facts == nil {
		return errors.New("fact writer is required")
	}
	if cfg.Status == nil {
		return errors.New("status store is required")
	}
	if cfg.RunID == "" {
		return errors.New("run id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Loader persists consolidated facts and file bookkeeping.
type Loader struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Loader{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

func (l *Loader) RunID() string {
	return l.cfg.RunID
}

// LoadFacts appends facts in one all-or-nothing write. Failures are returned
// as *BulkLoadError.
func (l *Loader) LoadFacts(ctx context.Context, facts []Fact) error {
	if len(facts) == 0 {
		return nil
	}

	start := l.cfg.Clock.Now()
	err := l.cfg.Facts.WriteFacts(ctx, l.cfg.RunID, facts)
	duration := l.cfg.Clock.Since(start)
	if err != nil {
		metrics.BulkLoadDuration.WithLabelValues("error").Observe(duration.Seconds())
		return &BulkLoadError{Rows: len(facts), Err: err}
	}
	metrics.BulkLoadDuration.WithLabelValues("success").Observe(duration.Seconds())
	metrics.FactsLoadedTotal.Add(float64(len(facts)))

	l.log.Debug("loader: facts written", "count", len(facts), "duration", duration.String())
	return nil
}

func (l *Loader) RegisterFile(ctx context.Context, path string) (FileID, error) {
	id, err := l.cfg.Status.RegisterFile(ctx, path, l.cfg.Clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to register file %s: %w", path, err)
	}
	return id, nil
}

// RecordFileStatus overwrites the status record of a file. Calling it again
// with the same arguments leaves the record unchanged apart from its
// timestamp.
func (l *Loader) RecordFileStatus(ctx context.Context, id FileID, status FileStatus, lines int64) error {
	rec := FileStatusRecord{
		FileID:    id,
		Status:    status,
		Lines:     lines,
		UpdatedAt: l.cfg.Clock.Now().UTC(),
	}
	if err := l.cfg.Status.UpdateFileStatus(ctx, rec); err != nil {
		return fmt.Errorf("failed to record status %s for file %d: %w", status, id, err)
	}
	if status.Terminal() {
		metrics.FilesTotal.WithLabelValues(string(status)).Inc()
	}
	return nil
}

// StatusTimeout bounds a status write made after the run context is done.
const StatusTimeout = 10 * time.Second
