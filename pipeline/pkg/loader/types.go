package loader

import (
	"context"
	"time"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
)

// Fact is one consolidated vote row: the total for a grain of election,
// municipality, office and candidate.
type Fact struct {
	ElectionID     dimension.ID
	MunicipalityID dimension.ID
	OfficeID       dimension.ID
	CandidateID    dimension.ID
	TotalVotes     int64
}

// FactWriter appends facts tagged with the run that produced them. A write
// either persists every fact or returns an error.
type FactWriter interface {
	WriteFacts(ctx context.Context, runID string, facts []Fact) error
}

type FileID int64

type FileStatus string

const (
	StatusProcessing FileStatus = "PROCESSING"
	StatusProcessed  FileStatus = "PROCESSED"
	StatusError      FileStatus = "ERROR"
)

func (s FileStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}

type FileStatusRecord struct {
	FileID    FileID
	Status    FileStatus
	Lines     int64
	UpdatedAt time.Time
}

// StatusStore keeps one bookkeeping record per source file path.
type StatusStore interface {
	// RegisterFile creates or resets the record for path to PROCESSING and
	// returns its identifier. Registering a path twice returns the same id.
	RegisterFile(ctx context.Context, path string, at time.Time) (FileID, error)
	// UpdateFileStatus overwrites the status and line count of a record.
	UpdateFileStatus(ctx context.Context, rec FileStatusRecord) error
}
