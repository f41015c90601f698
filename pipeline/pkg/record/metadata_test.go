package record

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestElectionLake_Record_FileMetadata_Election(t *testing.T) {
	t.Parallel()

	t.Run("metadata wins", func(t *testing.T) {
		t.Parallel()
		m := FileMetadata{Year: 2022, Round: 2, StateCode: "SP"}
		info, err := m.Election(Row{ElectionCode: "545", ElectionYear: "2018", Round: "1", GeneratedAt: "31/10/2022 10:00:00"})
		require.NoError(t, err)
		require.Equal(t, 2022, info.Year)
		require.Equal(t, 2, info.Round)
		require.Equal(t, "545", info.Code)
		require.Equal(t, DefaultElectionType, info.Type)
		require.NotNil(t, info.BallotDate)
		require.Equal(t, time.Date(2022, 10, 31, 0, 0, 0, 0, time.UTC), *info.BallotDate)
	})

	t.Run("falls back to row columns", func(t *testing.T) {
		t.Parallel()
		info, err := FileMetadata{}.Election(Row{
			ElectionCode: "544", ElectionYear: "2022", Round: "1", ElectionType: "2",
			BallotDate: "02/10/2022", ElectionDescription: "Eleição Geral Federal 2022",
		})
		require.NoError(t, err)
		require.Equal(t, 2022, info.Year)
		require.Equal(t, 1, info.Round)
		require.Equal(t, 2, info.Type)
		require.Equal(t, time.Date(2022, 10, 2, 0, 0, 0, 0, time.UTC), *info.BallotDate)
		require.Equal(t, "Eleição Geral Federal 2022", info.Description)
	})

	t.Run("year from generation date", func(t *testing.T) {
		t.Parallel()
		info, err := FileMetadata{Round: 1}.Election(Row{ElectionCode: "544", GeneratedAt: "03/10/2022"})
		require.NoError(t, err)
		require.Equal(t, 2022, info.Year)
	})

	t.Run("incomplete key", func(t *testing.T) {
		t.Parallel()
		_, err := FileMetadata{Year: 2022}.Election(Row{ElectionCode: "544"})
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrIncompleteElectionKey))
	})
}

func TestElectionLake_Record_FileMetadata_StateCodeFor(t *testing.T) {
	t.Parallel()

	m := FileMetadata{StateCode: "RJ"}
	require.Equal(t, "SP", m.StateCodeFor(Row{StateCode: "SP"}))
	require.Equal(t, "RJ", m.StateCodeFor(Row{}))
}
