package consolidate

import (
	"fmt"

	"github.com/malbeclabs/electionlake/pipeline/pkg/dimension"
)

// PartitionReport describes one election partition of a chunk.
type PartitionReport struct {
	ElectionCode string
	ElectionID   dimension.ID
	Rows         int
	Grains       int
	Facts        int
	// DroppedGrains lack a municipality, office or candidate identifier.
	DroppedGrains      int
	AttributeConflicts int
	// ElectionKeyConflicts counts rows whose year or round differs from the
	// first row of the partition.
	ElectionKeyConflicts int
	// Err is set when the partition was abandoned, usually with a
	// *dimension.ResolutionError.
	Err error
}

func (p PartitionReport) Failed() bool {
	return p.Err != nil
}

// ChunkReport describes the outcome of one chunk.
type ChunkReport struct {
	Index         int
	State         State
	Lines         int
	MalformedRows int
	Partitions    []PartitionReport
	FactsLoaded   int
	Err           error
}

func (r *ChunkReport) FailedPartitions() int {
	n := 0
	for _, p := range r.Partitions {
		if p.Failed() {
			n++
		}
	}
	return n
}

func (r *ChunkReport) DroppedGrains() int {
	n := 0
	for _, p := range r.Partitions {
		n += p.DroppedGrains
	}
	return n
}

func (r *ChunkReport) transition(to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("invalid chunk transition from %s to %s", r.State, to)
	}
	r.State = to
	return nil
}
