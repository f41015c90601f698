package runner

import (
	"time"

	"github.com/malbeclabs/electionlake/pipeline/pkg/consolidate"
	"github.com/malbeclabs/electionlake/pipeline/pkg/loader"
)

type FileReport struct {
	Path   string
	FileID loader.FileID
	Status loader.FileStatus
	// Lines counts the lines of loaded chunks, malformed lines included.
	Lines            int64
	Chunks           int
	FactsLoaded      int
	MalformedRows    int
	FailedPartitions int
	DroppedGrains    int
	Err              error

	StartedAt  time.Time
	FinishedAt time.Time
}

func (f *FileReport) add(cr *consolidate.ChunkReport) {
	f.Chunks++
	f.Lines += int64(cr.Lines)
	f.FactsLoaded += cr.FactsLoaded
	f.MalformedRows += cr.MalformedRows
	f.FailedPartitions += cr.FailedPartitions()
	f.DroppedGrains += cr.DroppedGrains()
}

type RunReport struct {
	RunID      string
	Files      []FileReport
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *RunReport) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

func (r *RunReport) Lines() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Lines
	}
	return n
}

func (r *RunReport) FactsLoaded() int {
	n := 0
	for _, f := range r.Files {
		n += f.FactsLoaded
	}
	return n
}
