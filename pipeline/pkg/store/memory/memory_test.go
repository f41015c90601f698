package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
)

func TestElectionLake_Memory_Dimensions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	key := dimension.NewNaturalKey("11")

	_, err := s.Lookup(ctx, dimension.OfficeSchema, key)
	require.ErrorIs(t, err, dimension.ErrNotFound)

	require.NoError(t, s.Insert(ctx, dimension.OfficeSchema, key, []any{"Prefeito"}))
	require.ErrorIs(t, s.Insert(ctx, dimension.OfficeSchema, key, []any{"Prefeito"}), dimension.ErrConflict)

	id, err := s.Lookup(ctx, dimension.OfficeSchema, key)
	require.NoError(t, err)
	require.Equal(t, dimension.ID(1), id)

	err = s.Insert(ctx, dimension.OfficeSchema, dimension.NewNaturalKey("12"), nil)
	require.ErrorContains(t, err, "attribute values")

	require.Equal(t, 2, s.Counts().Lookups[dimension.TypeOffice])
	require.Equal(t, 2, s.Counts().Inserts[dimension.TypeOffice])
}

func TestElectionLake_Memory_Facts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	facts := []loader.Fact{{ElectionID: 1, MunicipalityID: 2, OfficeID: 3, CandidateID: 4, TotalVotes: 12}}

	require.NoError(t, s.WriteFacts(ctx, "run-a", facts))
	require.NoError(t, s.WriteFacts(ctx, "run-b", facts))
	got := s.Facts()
	require.Len(t, got, 2)
	require.Equal(t, "run-a", got[0].RunID)
	require.Equal(t, int64(12), got[1].TotalVotes)

	boom := errors.New("disk full")
	s.SetHooks(Hooks{WriteFacts: func(string, []loader.Fact) error { return boom }})
	require.ErrorIs(t, s.WriteFacts(ctx, "run-c", facts), boom)
	require.Len(t, s.Facts(), 2)
}

func TestElectionLake_Memory_FileStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := s.RegisterFile(ctx, "/data/a.csv", at)
	require.NoError(t, err)
	require.NoError(t, s.UpdateFileStatus(ctx, loader.FileStatusRecord{FileID: id, Status: loader.StatusError, Lines: 10, UpdatedAt: at}))

	again, err := s.RegisterFile(ctx, "/data/a.csv", at.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, id, again)

	rec, ok := s.File("/data/a.csv")
	require.True(t, ok)
	require.Equal(t, loader.StatusProcessing, rec.Status)
	require.Equal(t, int64(0), rec.Lines)
	require.Equal(t, at, rec.RegisteredAt)

	require.Error(t, s.UpdateFileStatus(ctx, loader.FileStatusRecord{FileID: 99}))
}
