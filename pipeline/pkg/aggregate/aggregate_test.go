package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/electionlake/pipeline/pkg/record"
)

func row(line int, muni, office, ballot string, votes int64) record.Row {
	return record.Row{
		Line:             line,
		ElectionCode:     "426",
		StateCode:        "SP",
		MunicipalityCode: muni,
		OfficeCode:       office,
		BallotNumber:     ballot,
		CandidateName:    "CANDIDATO " + ballot,
		PartyNumber:      "10",
		Votes:            votes,
	}
}

func TestElectionLake_Aggregate(t *testing.T) {
	t.Parallel()

	t.Run("sums rows of the same grain", func(t *testing.T) {
		t.Parallel()
		res := Aggregate([]record.Row{
			row(2, "001", "11", "10", 5),
			row(3, "001", "11", "10", 7),
		})
		require.Len(t, res.Totals, 1)
		require.Equal(t, int64(12), res.Totals[0].Votes)
		require.Equal(t, 2, res.Totals[0].Rows)
		require.Equal(t, 2, res.Totals[0].FirstLine)
		require.Zero(t, res.AttributeConflicts)
	})

	t.Run("distinct grains never merge", func(t *testing.T) {
		t.Parallel()
		other := row(5, "001", "11", "10", 3)
		other.StateCode = "RJ"
		res := Aggregate([]record.Row{
			row(2, "001", "11", "10", 1),
			row(3, "002", "11", "10", 2),
			row(4, "001", "13", "10", 4),
			other,
			row(6, "001", "11", "20", 8),
		})
		require.Len(t, res.Totals, 5)
		var sum int64
		for _, tot := range res.Totals {
			require.Equal(t, 1, tot.Rows)
			sum += tot.Votes
		}
		require.Equal(t, int64(18), sum)
	})

	t.Run("empty ballot number is its own grain", func(t *testing.T) {
		t.Parallel()
		res := Aggregate([]record.Row{
			row(2, "001", "11", "", 3),
			row(3, "001", "11", "", 4),
			row(4, "001", "11", "95", 1),
		})
		require.Len(t, res.Totals, 2)
		require.Equal(t, "", res.Totals[0].BallotNumber)
		require.Equal(t, int64(7), res.Totals[0].Votes)
	})

	t.Run("first row wins and conflicts are counted", func(t *testing.T) {
		t.Parallel()
		a := row(2, "001", "11", "10", 1)
		b := row(3, "001", "11", "10", 1)
		b.CandidateName = "OUTRO NOME"
		c := row(4, "001", "11", "10", 1)
		c.PartyNumber = "99"
		res := Aggregate([]record.Row{a, b, c})
		require.Len(t, res.Totals, 1)
		require.Equal(t, "CANDIDATO 10", res.Totals[0].CandidateName)
		require.Equal(t, "10", res.Totals[0].PartyNumber)
		require.Equal(t, 2, res.Totals[0].Conflicts)
		require.Equal(t, 1, res.AttributeConflicts)
	})

	t.Run("order of first appearance", func(t *testing.T) {
		t.Parallel()
		res := Aggregate([]record.Row{
			row(2, "003", "11", "10", 1),
			row(3, "001", "11", "10", 1),
			row(4, "003", "11", "10", 1),
			row(5, "002", "11", "10", 1),
		})
		require.Equal(t, []string{"003", "001", "002"}, []string{
			res.Totals[0].MunicipalityCode, res.Totals[1].MunicipalityCode, res.Totals[2].MunicipalityCode,
		})
	})

	t.Run("no rows", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, Aggregate(nil).Totals)
	})
}
