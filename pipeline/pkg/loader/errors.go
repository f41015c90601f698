package loader

import "fmt"

// BulkLoadError reports a fact write that failed. No fact of the write may
// be assumed persisted.
type BulkLoadError struct {
	Rows int
	Err  error
}

func (e *BulkLoadError) Error() string {
	return fmt.Sprintf("failed to bulk load %d facts: %v", e.Rows, e.Err)
}

func (e *BulkLoadError) Unwrap() error {
	return e.Err
}
