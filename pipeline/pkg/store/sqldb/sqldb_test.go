package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
	"github.com/malbeclabs/electionlake/pipeline/pkg/schema"
	electiontesting "github.com/malbeclabs/electionlake/utils/pkg/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := t.Context()
	log := electiontesting.NewLogger()

	s, err := Open(ctx, Config{Logger: log, Dialect: schema.DialectSQLite3, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, schema.Up(ctx, log, s.DB(), schema.DialectSQLite3))
	return s
}

func TestElectionLake_SQLDB_Config_Validate(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: electiontesting.NewLogger(), Dialect: schema.DialectPostgres, DSN: "x"}
	require.ErrorContains(t, cfg.Validate(), "unsupported dialect")

	cfg = Config{Logger: electiontesting.NewLogger(), Dialect: schema.DialectSQLite3, DSN: ":memory:", MaxOpenConns: 8}
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.MaxOpenConns)

	cfg = Config{Logger: electiontesting.NewLogger(), Dialect: schema.DialectMySQL, DSN: "u:p@tcp(db:3306)/eleicoes"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10, cfg.MaxOpenConns)
}

func TestElectionLake_SQLDB_Dimensions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	key := dimension.NewNaturalKey("SP")
	_, err := s.Lookup(ctx, dimension.StateSchema, key)
	require.ErrorIs(t, err, dimension.ErrNotFound)

	require.NoError(t, s.Insert(ctx, dimension.StateSchema, key, nil))
	require.ErrorIs(t, s.Insert(ctx, dimension.StateSchema, key, nil), dimension.ErrConflict)

	id, err := s.Lookup(ctx, dimension.StateSchema, key)
	require.NoError(t, err)
	require.True(t, id.Valid())

	// Nullable party reference.
	require.NoError(t, s.Insert(ctx, dimension.CandidateSchema, dimension.NewNaturalKey(dimension.ID(1), dimension.ID(1), ""), []any{dimension.None, "Branco"}))
	var partyID *int64
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT partido_id FROM candidatos").Scan(&partyID))
	require.Nil(t, partyID)

	err = s.Insert(ctx, dimension.OfficeSchema, dimension.NewNaturalKey("1"), nil)
	require.ErrorContains(t, err, "got 1 values for 2 columns")
}

func TestElectionLake_SQLDB_Resolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	log := electiontesting.NewLogger()

	newResolver := func() *dimension.Resolver {
		r, err := dimension.NewResolver(dimension.ResolverConfig{Logger: log, Store: s})
		require.NoError(t, err)
		return r
	}

	r := newResolver()
	state, err := r.ResolveState(ctx, "MG")
	require.NoError(t, err)
	muni, err := r.ResolveMunicipality(ctx, state, "41238", "BELO HORIZONTE")
	require.NoError(t, err)

	// A second run with a cold cache finds the same rows.
	r2 := newResolver()
	state2, err := r2.ResolveState(ctx, "MG")
	require.NoError(t, err)
	muni2, err := r2.ResolveMunicipality(ctx, state2, "41238", "BELO HORIZONTE")
	require.NoError(t, err)
	require.Equal(t, state, state2)
	require.Equal(t, muni, muni2)

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM municipios").Scan(&n))
	require.Equal(t, 1, n)
}

func TestElectionLake_SQLDB_WriteFacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	facts := make([]loader.Fact, 2*s.d.factBatch+7)
	for i := range facts {
		facts[i] = loader.Fact{ElectionID: 1, MunicipalityID: dimension.ID(i + 1), OfficeID: 1, CandidateID: 1, TotalVotes: int64(i)}
	}
	require.NoError(t, s.WriteFacts(ctx, "run-1", facts))

	n, err := s.CountFacts(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, int64(len(facts)), n)

	t.Run("failed write persists nothing", func(t *testing.T) {
		bad := []loader.Fact{
			{ElectionID: 1, MunicipalityID: 1, OfficeID: 1, CandidateID: 1, TotalVotes: 1},
			{ElectionID: 1, MunicipalityID: 1, OfficeID: 1, CandidateID: 1, TotalVotes: -1},
		}
		require.Error(t, s.WriteFacts(ctx, "run-2", bad))
		n, err := s.CountFacts(ctx, "run-2")
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestElectionLake_SQLDB_FileStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2024, 10, 6, 18, 0, 0, 0, time.UTC)

	id, err := s.RegisterFile(ctx, "data/bweb_1t_SP_061020241800/a.csv", at)
	require.NoError(t, err)

	rec := loader.FileStatusRecord{FileID: id, Status: loader.StatusProcessed, Lines: 120, UpdatedAt: at.Add(time.Minute)}
	require.NoError(t, s.UpdateFileStatus(ctx, rec))
	require.NoError(t, s.UpdateFileStatus(ctx, rec))

	got, err := s.FileStatus(ctx, "data/bweb_1t_SP_061020241800/a.csv")
	require.NoError(t, err)
	require.Equal(t, id, got.FileID)
	require.Equal(t, loader.StatusProcessed, got.Status)
	require.Equal(t, int64(120), got.Lines)
	require.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	again, err := s.RegisterFile(ctx, "data/bweb_1t_SP_061020241800/a.csv", at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, id, again)
	got, err = s.FileStatus(ctx, "data/bweb_1t_SP_061020241800/a.csv")
	require.NoError(t, err)
	require.Equal(t, loader.StatusProcessing, got.Status)
	require.Zero(t, got.Lines)

	require.Error(t, s.UpdateFileStatus(ctx, loader.FileStatusRecord{FileID: 404, Status: loader.StatusError}))
}
