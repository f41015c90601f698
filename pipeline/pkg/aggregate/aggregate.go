// Package aggregate collapses the rows of one election partition into one
// total per fact grain.
package aggregate

import "github.com/malbeclabs/electionlake/pipeline/pkg/record"

// Grain identifies a fact row before dimension resolution. The state is part
// of the grain because municipality codes are only unique within a state.
type Grain struct {
	StateCode        string
	MunicipalityCode string
	OfficeCode       string
	BallotNumber     string
}

// Total is the summed votes of a grain with the attributes needed to create
// its dimension rows, taken from the first row of the grain.
type Total struct {
	Grain

	Votes int64
	Rows  int

	MunicipalityName  string
	OfficeDescription string
	PartyNumber       string
	PartyAbbreviation string
	PartyName         string
	CandidateName     string

	// FirstLine is the source line of the representative row.
	FirstLine int
	// Conflicts counts later rows whose attributes differ from the
	// representative.
	Conflicts int
}

type Result struct {
	// Totals are in order of first appearance.
	Totals []Total
	// AttributeConflicts is the number of grains with at least one
	// conflicting row.
	AttributeConflicts int
}

// Aggregate sums votes per grain. Rows are expected to belong to a single
// election and to carry their state code.
func Aggregate(rows []record.Row) Result {
	index := make(map[Grain]int, len(rows))
	var res Result

	for _, row := range rows {
		g := Grain{
			StateCode:        row.StateCode,
			MunicipalityCode: row.MunicipalityCode,
			OfficeCode:       row.OfficeCode,
			BallotNumber:     row.BallotNumber,
		}
		i, ok := index[g]
		if !ok {
			index[g] = len(res.Totals)
			res.Totals = append(res.Totals, Total{
				Grain:             g,
				Votes:             row.Votes,
				Rows:              1,
				MunicipalityName:  row.MunicipalityName,
				OfficeDescription: row.OfficeDescription,
				PartyNumber:       row.PartyNumber,
				PartyAbbreviation: row.PartyAbbreviation,
				PartyName:         row.PartyName,
				CandidateName:     row.CandidateName,
				FirstLine:         row.Line,
			})
			continue
		}

		t := &res.Totals[i]
		t.Votes += row.Votes
		t.Rows++
		if t.differs(row) {
			if t.Conflicts == 0 {
				res.AttributeConflicts++
			}
			t.Conflicts++
		}
	}
	return res
}

func (t *Total) differs(row record.Row) bool {
	return t.MunicipalityName != row.MunicipalityName ||
		t.OfficeDescription != row.OfficeDescription ||
		t.PartyNumber != row.PartyNumber ||
		t.PartyAbbreviation != row.PartyAbbreviation ||
		t.PartyName != row.PartyName ||
		t.CandidateName != row.CandidateName
}
