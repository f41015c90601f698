package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
)

const FactTable = "fact_consolidated_votes"

type FactSinkConfig struct {
	Logger *slog.Logger
	Client Client
	Clock  clockwork.Clock
}

func (cfg *FactSinkConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// FactSink writes consolidated votes to ClickHouse for analytics. A batch is
// sent as one insert block, so it is persisted entirely or not at all.
type FactSink struct {
	log *slog.Logger
	cfg FactSinkConfig
}

var _ loader.FactWriter = (*FactSink)(nil)

func NewFactSink(cfg FactSinkConfig) (*FactSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &FactSink{log: cfg.Logger, cfg: cfg}, nil
}

func (s *FactSink) WriteFacts(ctx context.Context, runID string, facts []loader.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	s.log.Debug("clickhouse: writing fact batch", "table", FactTable, "count", len(facts))

	batch, err := conn.PrepareBatch(ContextWithSyncInsert(ctx), "INSERT INTO "+FactTable)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	defer batch.Close() // Always release the connection back to the pool

	ingestedAt := s.cfg.Clock.Now().UTC()
	for i, f := range facts {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during batch insert: %w", ctx.Err())
		default:
		}
		if f.TotalVotes < 0 {
			return fmt.Errorf("fact %d has negative total votes %d", i, f.TotalVotes)
		}
		if err := batch.Append(
			runID,
			int64(f.ElectionID),
			int64(f.MunicipalityID),
			int64(f.OfficeID),
			int64(f.CandidateID),
			uint64(f.TotalVotes),
			ingestedAt,
		); err != nil {
			return fmt.Errorf("failed to append row %d: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.log.Debug("clickhouse: wrote fact batch", "table", FactTable, "count", len(facts))
	return nil
}

// RunTotals sums the votes a run wrote per election.
func (s *FactSink) RunTotals(ctx context.Context, runID string) (map[int64]uint64, error) {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.Query(ctx, "SELECT election_id, sum(total_votes) FROM "+FactTable+" WHERE run_id = ? GROUP BY election_id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run totals: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]uint64)
	for rows.Next() {
		var (
			election int64
			total    uint64
		)
		if err := rows.Scan(&election, &total); err != nil {
			return nil, fmt.Errorf("failed to scan run totals: %w", err)
		}
		out[election] = total
	}
	return out, rows.Err()
}
