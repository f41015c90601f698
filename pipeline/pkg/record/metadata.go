package record

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultElectionType is used when the extract carries no CD_TIPO_ELEICAO.
const DefaultElectionType = 1

var ErrIncompleteElectionKey = errors.New("election year or round could not be determined")

// FileMetadata is what the directory name of an extract tells us about it.
// Zero values mean "unknown".
type FileMetadata struct {
	Round       int
	StateCode   string
	GeneratedAt time.Time
	Year        int
}

// ElectionInfo carries an election's natural key and creation attributes.
type ElectionInfo struct {
	Year        int
	Round       int
	Code        string
	Type        int
	BallotDate  *time.Time
	Description string
}

// Election derives the election of row, trusting the file metadata first and
// falling back to the in-row columns and the generation date.
func (m FileMetadata) Election(row Row) (ElectionInfo, error) {
	info := ElectionInfo{
		Year:        m.Year,
		Round:       m.Round,
		Code:        row.ElectionCode,
		Type:        DefaultElectionType,
		Description: row.ElectionDescription,
	}

	generatedAt, genErr := parseDate(row.GeneratedAt)

	if info.Year == 0 {
		if y, err := strconv.Atoi(row.ElectionYear); err == nil && y > 0 {
			info.Year = y
		} else if genErr == nil {
			info.Year = generatedAt.Year()
		} else if !m.GeneratedAt.IsZero() {
			info.Year = m.GeneratedAt.Year()
		}
	}
	if info.Round == 0 {
		if r, err := strconv.Atoi(row.Round); err == nil && r > 0 {
			info.Round = r
		}
	}
	if t, err := strconv.Atoi(row.ElectionType); err == nil && t > 0 {
		info.Type = t
	}

	if d, err := parseDate(row.BallotDate); err == nil {
		info.BallotDate = &d
	} else if genErr == nil {
		info.BallotDate = &generatedAt
	}

	if info.Year == 0 || info.Round == 0 || info.Code == "" {
		return info, fmt.Errorf("election %q: %w", info.Code, ErrIncompleteElectionKey)
	}
	return info, nil
}

// StateCodeFor returns the row's state, or the file's when the row has none.
func (m FileMetadata) StateCodeFor(row Row) string {
	if row.StateCode != "" {
		return row.StateCode
	}
	return m.StateCode
}

// parseDate accepts "02/01/2006" optionally followed by a time of day, the
// formats used by DT_GERACAO and DT_PLEITO.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrMissingValue
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateTimeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC), nil
}
