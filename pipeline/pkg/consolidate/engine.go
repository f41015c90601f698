// Package consolidate turns validated chunks into consolidated vote facts:
// it partitions a chunk by election, resolves every dimension the partition
// references, aggregates votes per grain and hands the facts to the loader.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/electionlake/pipeline/pkg/aggregate"
	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
	"github.com/malbeclabs/electionlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/electionlake/pipeline/pkg/record"
)

// FactLoader persists the facts of a chunk in a single write.
type FactLoader interface {
	LoadFacts(ctx context.Context, facts []loader.Fact) error
}

type EngineConfig struct {
	Logger   *slog.Logger
	Resolver *dimension.Resolver
	Loader   FactLoader
	Clock    clockwork.Clock
}

func (cfg *EngineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Resolver == nil {
		return errors.New("resolver is required")
	}
	if cfg.Loader == nil {
		return errors.New("loader is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine is not safe for concurrent use: it shares its resolver's cache.
type Engine struct {
	log *slog.Logger
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Engine{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

type municipalityKey struct {
	state string
	code  string
}

type candidateKey struct {
	office string
	ballot string
}

// partition holds the rows of one election code and the identifiers
// resolved for them.
type partition struct {
	code string
	rows []record.Row

	election       dimension.ID
	municipalities map[municipalityKey]dimension.ID
	offices        map[string]dimension.ID
	candidates     map[candidateKey]dimension.ID

	report PartitionReport
}

// ProcessChunk consolidates one chunk. A failure to resolve a partition's
// dimensions abandons only that partition and is reported in the returned
// report; the error is non-nil only when the chunk as a whole failed, which
// happens when the context is done or the bulk load fails.
func (e *Engine) ProcessChunk(ctx context.Context, meta record.FileMetadata, chunk *record.Chunk) (*ChunkReport, error) {
	start := e.cfg.Clock.Now()
	report := &ChunkReport{
		Index:         chunk.Index,
		State:         StateReceived,
		Lines:         chunk.Lines,
		MalformedRows: len(chunk.Malformed),
	}
	defer func() {
		metrics.ChunksTotal.WithLabelValues(report.State.String()).Inc()
		metrics.ChunkDuration.Observe(e.cfg.Clock.Since(start).Seconds())
	}()

	if len(chunk.Malformed) > 0 {
		metrics.RowsMalformedTotal.Add(float64(len(chunk.Malformed)))
		first := chunk.Malformed[0]
		e.log.Warn("consolidate: skipped malformed rows", "chunk", chunk.Index, "count", len(chunk.Malformed), "first_line", first.Line, "first_error", first.Error())
	}

	partitions := partitionByElection(meta, chunk.Rows)
	if err := report.transition(StateElectionsPartitioned); err != nil {
		return e.fail(report, err)
	}

	for _, p := range partitions {
		if err := e.resolvePartition(ctx, meta, p); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.fail(report, fmt.Errorf("chunk %d canceled: %w", chunk.Index, ctxErr))
			}
			p.report.Err = err
			metrics.PartitionsTotal.WithLabelValues("failed").Inc()
			e.log.Warn("consolidate: partition abandoned", "chunk", chunk.Index, "election", p.code, "rows", len(p.rows), "error", err)
		}
	}
	if err := report.transition(StateDimensionsResolved); err != nil {
		return e.fail(report, err)
	}

	var facts []loader.Fact
	for _, p := range partitions {
		if p.report.Failed() {
			continue
		}
		facts = append(facts, e.buildFacts(chunk.Index, p)...)
	}
	if err := report.transition(StateAggregated); err != nil {
		return e.fail(report, err)
	}

	if err := e.cfg.Loader.LoadFacts(ctx, facts); err != nil {
		for i := range partitions {
			partitions[i].report.Facts = 0
		}
		report.Partitions = partitionReports(partitions)
		return e.fail(report, err)
	}
	report.FactsLoaded = len(facts)
	report.Partitions = partitionReports(partitions)
	for _, p := range partitions {
		if !p.report.Failed() {
			metrics.PartitionsTotal.WithLabelValues("loaded").Inc()
		}
	}
	if err := report.transition(StateLoaded); err != nil {
		return e.fail(report, err)
	}

	e.log.Debug("consolidate: chunk loaded", "chunk", chunk.Index, "lines", chunk.Lines, "partitions", len(partitions), "facts", len(facts), "failed_partitions", report.FailedPartitions())
	return report, nil
}

func (e *Engine) fail(report *ChunkReport, err error) (*ChunkReport, error) {
	report.State = StateFailed
	report.Err = err
	return report, err
}

// partitionByElection groups rows by election code in order of first
// appearance, filling missing state codes from the file metadata.
func partitionByElection(meta record.FileMetadata, rows []record.Row) []*partition {
	var out []*partition
	index := make(map[string]*partition)
	for _, row := range rows {
		row.StateCode = meta.StateCodeFor(row)
		p, ok := index[row.ElectionCode]
		if !ok {
			p = &partition{
				code:           row.ElectionCode,
				municipalities: make(map[municipalityKey]dimension.ID),
				offices:        make(map[string]dimension.ID),
				candidates:     make(map[candidateKey]dimension.ID),
			}
			p.report.ElectionCode = row.ElectionCode
			index[row.ElectionCode] = p
			out = append(out, p)
		}
		p.rows = append(p.rows, row)
	}
	for _, p := range out {
		p.report.Rows = len(p.rows)
	}
	return out
}

// resolvePartition resolves parents before children: election, states and
// municipalities, offices, parties, then candidates. Each distinct natural
// key is resolved once. Rows lacking a municipality or office code are left
// unresolved and dropped at fact construction.
func (e *Engine) resolvePartition(ctx context.Context, meta record.FileMetadata, p *partition) error {
	r := e.cfg.Resolver

	info, err := meta.Election(p.rows[0])
	if err != nil {
		return fmt.Errorf("failed to derive election: %w", err)
	}
	// The first row's year and round stand for the whole partition.
	for _, row := range p.rows[1:] {
		other, err := meta.Election(row)
		if err != nil || other.Year != info.Year || other.Round != info.Round {
			p.report.ElectionKeyConflicts++
		}
	}
	if p.report.ElectionKeyConflicts > 0 {
		metrics.ElectionKeyConflictsTotal.Add(float64(p.report.ElectionKeyConflicts))
		e.log.Warn("consolidate: rows disagree on election year or round, keeping first row", "election", p.code, "year", info.Year, "round", info.Round, "rows", p.report.ElectionKeyConflicts)
	}
	p.election, err = r.ResolveElection(ctx, info)
	if err != nil {
		return err
	}
	p.report.ElectionID = p.election

	states := make(map[string]dimension.ID)
	for _, row := range p.rows {
		if row.StateCode == "" {
			continue
		}
		if _, ok := states[row.StateCode]; ok {
			continue
		}
		id, err := r.ResolveState(ctx, row.StateCode)
		if err != nil {
			return err
		}
		states[row.StateCode] = id
	}

	for _, row := range p.rows {
		key := municipalityKey{state: row.StateCode, code: row.MunicipalityCode}
		stateID, ok := states[row.StateCode]
		if !ok || row.MunicipalityCode == "" {
			continue
		}
		if _, ok := p.municipalities[key]; ok {
			continue
		}
		id, err := r.ResolveMunicipality(ctx, stateID, row.MunicipalityCode, row.MunicipalityName)
		if err != nil {
			return err
		}
		p.municipalities[key] = id
	}

	for _, row := range p.rows {
		if row.OfficeCode == "" {
			continue
		}
		if _, ok := p.offices[row.OfficeCode]; ok {
			continue
		}
		id, err := r.ResolveOffice(ctx, row.OfficeCode, row.OfficeDescription)
		if err != nil {
			return err
		}
		p.offices[row.OfficeCode] = id
	}

	parties := make(map[string]dimension.ID)
	for _, row := range p.rows {
		if _, ok := parties[row.PartyNumber]; ok {
			continue
		}
		id, err := r.ResolveParty(ctx, row.PartyNumber, row.PartyAbbreviation, row.PartyName)
		if err != nil {
			return err
		}
		parties[row.PartyNumber] = id
	}

	for _, row := range p.rows {
		officeID, ok := p.offices[row.OfficeCode]
		if !ok {
			continue
		}
		key := candidateKey{office: row.OfficeCode, ballot: row.BallotNumber}
		if _, ok := p.candidates[key]; ok {
			continue
		}
		id, err := r.ResolveCandidate(ctx, p.election, officeID, parties[row.PartyNumber], row.BallotNumber, row.CandidateName)
		if err != nil {
			return err
		}
		p.candidates[key] = id
	}
	return nil
}

// buildFacts aggregates a resolved partition and substitutes identifiers for
// natural keys. Grains missing a required identifier are dropped and
// counted.
func (e *Engine) buildFacts(chunkIndex int, p *partition) []loader.Fact {
	res := aggregate.Aggregate(p.rows)
	p.report.Grains = len(res.Totals)
	p.report.AttributeConflicts = res.AttributeConflicts
	if res.AttributeConflicts > 0 {
		metrics.AttributeConflictsTotal.Add(float64(res.AttributeConflicts))
		e.log.Warn("consolidate: grains with conflicting attributes, keeping first row", "chunk", chunkIndex, "election", p.code, "grains", res.AttributeConflicts)
	}

	facts := make([]loader.Fact, 0, len(res.Totals))
	for _, t := range res.Totals {
		muni, okMuni := p.municipalities[municipalityKey{state: t.StateCode, code: t.MunicipalityCode}]
		office, okOffice := p.offices[t.OfficeCode]
		cand, okCand := p.candidates[candidateKey{office: t.OfficeCode, ballot: t.BallotNumber}]
		if !okMuni || !okOffice || !okCand || !muni.Valid() || !office.Valid() || !cand.Valid() {
			p.report.DroppedGrains++
			continue
		}
		facts = append(facts, loader.Fact{
			ElectionID:     p.election,
			MunicipalityID: muni,
			OfficeID:       office,
			CandidateID:    cand,
			TotalVotes:     t.Votes,
		})
	}
	if p.report.DroppedGrains > 0 {
		metrics.GrainsDroppedTotal.Add(float64(p.report.DroppedGrains))
		e.log.Warn("consolidate: dropped grains missing identifiers", "chunk", chunkIndex, "election", p.code, "grains", p.report.DroppedGrains)
	}
	p.report.Facts = len(facts)
	return facts
}

func partitionReports(partitions []*partition) []PartitionReport {
	out := make([]PartitionReport, len(partitions))
	for i, p := range partitions {
		out[i] = p.report
	}
	return out
}
