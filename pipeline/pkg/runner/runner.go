// Package runner drives a pipeline run: it discovers extracts, feeds their
// chunks through the consolidation engine and keeps the per-file status
// records up to date.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/electionlake/pipeline/pkg/consolidate"
	"github.com/malbeclabs/electionlake/pipeline/pkg/discovery"
	"github.com/malbeclabs/electionlake/pipeline/pkg/extract"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
	"github.com/malbeclabs/electionlake/pipeline/pkg/record"
)

// NewRunID returns a fresh identifier for one pipeline invocation.
func NewRunID() string {
	return uuid.NewString()
}

type ChunkProcessor interface {
	ProcessChunk(ctx context.Context, meta record.FileMetadata, chunk *record.Chunk) (*consolidate.ChunkReport, error)
}

type FileRecorder interface {
	RegisterFile(ctx context.Context, path string) (loader.FileID, error)
	RecordFileStatus(ctx context.Context, id loader.FileID, status loader.FileStatus, lines int64) error
}

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	RunID   string
	Source  discovery.Source
	Engine  ChunkProcessor
	Files   FileRecorder
	Extract extract.Config

	// OnFileError is called after a file is marked ERROR.
	OnFileError func(ctx context.Context, file discovery.File, err error)
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Files == nil {
		return errors.New("file recorder is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RunID == "" {
		cfg.RunID = NewRunID()
	}
	if err := cfg.Extract.Validate(); err != nil {
		return fmt.Errorf("invalid extract config: %w", err)
	}
	return nil
}

type Runner struct {
	log *slog.Logger
	cfg Config

	mu       sync.Mutex
	progress Progress
}

func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Runner{
		log:      cfg.Logger,
		cfg:      cfg,
		progress: Progress{RunID: cfg.RunID},
	}, nil
}

// Run processes every discovered file in order. A failing file is marked
// ERROR and the run moves on; Run returns an error only when discovery
// fails or the context is done.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: r.cfg.RunID, StartedAt: r.cfg.Clock.Now().UTC()}
	r.update(func(p *Progress) {
		p.Running = true
		p.StartedAt = report.StartedAt
	})
	defer func() {
		report.FinishedAt = r.cfg.Clock.Now().UTC()
		r.update(func(p *Progress) {
			p.Running = false
			p.CurrentFile = ""
			p.FinishedAt = report.FinishedAt
		})
	}()

	files, err := r.cfg.Source.Discover(ctx)
	if err != nil {
		return report, err
	}
	r.update(func(p *Progress) { p.FilesTotal = len(files) })
	r.log.Info("runner: files discovered", "source", r.cfg.Source.String(), "count", len(files), "run_id", r.cfg.RunID)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fr := r.processFile(ctx, file)
		report.Files = append(report.Files, fr)
		r.update(func(p *Progress) {
			p.FilesDone++
			if fr.Err != nil {
				p.FilesFailed++
			}
		})
	}

	r.log.Info("runner: run finished",
		"run_id", r.cfg.RunID,
		"files", len(report.Files),
		"failed", report.Failed(),
		"lines", report.Lines(),
		"facts", report.FactsLoaded(),
		"duration", r.cfg.Clock.Since(report.StartedAt).String(),
	)
	return report, ctx.Err()
}

func (r *Runner) processFile(ctx context.Context, file discovery.File) FileReport {
	start := r.cfg.Clock.Now()
	fr := FileReport{Path: file.Path, StartedAt: start.UTC()}
	r.update(func(p *Progress) { p.CurrentFile = file.Path })
	log := r.log.With("file", file.Path)

	id, err := r.cfg.Files.RegisterFile(ctx, file.Path)
	if err != nil {
		fr.Err = err
		fr.FinishedAt = r.cfg.Clock.Now().UTC()
		log.Error("runner: failed to register file", "error", err)
		r.notify(ctx, file, err)
		return fr
	}
	fr.FileID = id
	log.Info("runner: processing file", "file_id", id, "round", file.Metadata.Round, "state", file.Metadata.StateCode)

	err = r.consume(ctx, file, &fr)

	status := loader.StatusProcessed
	if err != nil {
		status = loader.StatusError
		fr.Err = err
	}
	fr.Status = status

	// The status record is written even when ctx is done so the file is not
	// left PROCESSING.
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loader.StatusTimeout)
	defer cancel()
	if serr := r.cfg.Files.RecordFileStatus(statusCtx, id, status, fr.Lines); serr != nil {
		log.Error("runner: failed to record file status", "status", status, "error", serr)
		fr.Err = errors.Join(fr.Err, serr)
	}
	fr.FinishedAt = r.cfg.Clock.Now().UTC()

	if err != nil {
		log.Error("runner: file failed", "lines", fr.Lines, "chunks", fr.Chunks, "error", err)
		r.notify(ctx, file, err)
		return fr
	}
	log.Info("runner: file processed",
		"lines", fr.Lines,
		"chunks", fr.Chunks,
		"facts", fr.FactsLoaded,
		"malformed_rows", fr.MalformedRows,
		"failed_partitions", fr.FailedPartitions,
		"dropped_grains", fr.DroppedGrains,
		"duration", r.cfg.Clock.Since(start).String(),
	)
	return fr
}

// consume runs every chunk of file through the engine. fr.Lines only counts
// lines of chunks that were loaded.
func (r *Runner) consume(ctx context.Context, file discovery.File, fr *FileReport) error {
	rc, err := r.cfg.Source.Open(ctx, file.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer rc.Close()

	ex, err := extract.New(rc, r.cfg.Extract)
	if err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := ex.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		chunk := record.NewChunk(raw)
		cr, err := r.cfg.Engine.ProcessChunk(ctx, file.Metadata, chunk)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		fr.add(cr)
		r.update(func(p *Progress) {
			p.Lines += int64(cr.Lines)
			p.FactsLoaded += int64(cr.FactsLoaded)
		})
	}
}

func (r *Runner) notify(ctx context.Context, file discovery.File, err error) {
	if r.cfg.OnFileError != nil {
		r.cfg.OnFileError(ctx, file, err)
	}
}

func (r *Runner) update(fn func(*Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.progress)
}

// Progress returns a snapshot of the current run.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Progress is a point-in-time view of a run, served on the status endpoint.
type Progress struct {
	RunID       string    `json:"run_id"`
	Running     bool      `json:"running"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	CurrentFile string    `json:"current_file,omitempty"`
	FilesTotal  int       `json:"files_total"`
	FilesDone   int       `json:"files_done"`
	FilesFailed int       `json:"files_failed"`
	Lines       int64     `json:"lines"`
	FactsLoaded int64     `json:"facts_loaded"`
}
