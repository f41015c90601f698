package record

import (
	"strconv"
	"strings"
)

// Row is one cleaned, type-checked line of an extract.
type Row struct {
	Line int

	ElectionCode        string
	ElectionDescription string
	ElectionYear        string
	ElectionType        string
	Round               string
	BallotDate          string
	GeneratedAt         string

	StateCode         string
	MunicipalityCode  string
	MunicipalityName  string
	OfficeCode        string
	OfficeDescription string
	PartyNumber       string
	PartyAbbreviation string
	PartyName         string
	BallotNumber      string
	CandidateName     string

	Votes int64
}

// RawRow is an extracted line before cleaning and validation.
type RawRow struct {
	Line   int
	Fields map[string]string
	// Err is set by the extractor when the line could not be split into the
	// header's columns.
	Err error
}

// RawChunk is a batch of consecutive extracted lines.
type RawChunk struct {
	Index int
	Rows  []RawRow
}

// Chunk is a RawChunk after ingress validation. Lines counts every raw line,
// including the malformed ones.
type Chunk struct {
	Index     int
	Lines     int
	Rows      []Row
	Malformed []*MalformedRowError
}

// NewChunk cleans and validates every raw row once. Rows that fail
// validation are collected in Malformed and excluded from Rows.
func NewChunk(raw *RawChunk) *Chunk {
	c := &Chunk{
		Index: raw.Index,
		Lines: len(raw.Rows),
		Rows:  make([]Row, 0, len(raw.Rows)),
	}
	for _, rr := range raw.Rows {
		if rr.Err != nil {
			c.Malformed = append(c.Malformed, &MalformedRowError{Line: rr.Line, Err: rr.Err})
			continue
		}
		row, err := Parse(rr.Line, rr.Fields)
		if err != nil {
			c.Malformed = append(c.Malformed, err)
			continue
		}
		c.Rows = append(c.Rows, row)
	}
	return c
}

// Parse builds a Row from raw column values. The vote count must be a
// non-negative integer and the ballot number must be empty or an integer.
func Parse(line int, fields map[string]string) (Row, *MalformedRowError) {
	get := func(col string) string { return Clean(fields[col]) }

	row := Row{
		Line:                line,
		ElectionCode:        get(ColElectionCode),
		ElectionDescription: get(ColElectionDescription),
		ElectionYear:        get(ColElectionYear),
		ElectionType:        get(ColElectionType),
		Round:               get(ColRound),
		BallotDate:          get(ColBallotDate),
		GeneratedAt:         get(ColGeneratedAt),
		StateCode:           strings.ToUpper(get(ColStateCode)),
		MunicipalityCode:    get(ColMunicipalityCode),
		MunicipalityName:    get(ColMunicipalityName),
		OfficeCode:          get(ColOfficeCode),
		OfficeDescription:   get(ColOfficeDescription),
		PartyNumber:         get(ColPartyNumber),
		PartyAbbreviation:   get(ColPartyAbbreviation),
		PartyName:           get(ColPartyName),
		BallotNumber:        get(ColBallotNumber),
		CandidateName:       get(ColCandidateName),
	}

	if row.ElectionCode == "" {
		return Row{}, &MalformedRowError{Line: line, Column: ColElectionCode, Err: ErrMissingValue}
	}

	rawVotes := get(ColVotes)
	votes, err := strconv.ParseInt(rawVotes, 10, 64)
	if err != nil {
		return Row{}, &MalformedRowError{Line: line, Column: ColVotes, Value: rawVotes, Err: ErrNotInteger}
	}
	if votes < 0 {
		return Row{}, &MalformedRowError{Line: line, Column: ColVotes, Value: rawVotes, Err: ErrNegative}
	}
	row.Votes = votes

	if row.BallotNumber != "" && !isInteger(row.BallotNumber) {
		return Row{}, &MalformedRowError{Line: line, Column: ColBallotNumber, Value: row.BallotNumber, Err: ErrNotInteger}
	}

	return row, nil
}

// isInteger accepts an optional leading minus; TSE uses negative ballot
// numbers for some special votes.
func isInteger(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
