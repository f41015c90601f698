package record

import (
	"errors"
	"fmt"
)

var (
	ErrMissingValue = errors.New("missing value")
	ErrNotInteger   = errors.New("not an integer")
	ErrNegative     = errors.New("negative value")
)

// MalformedRowError reports a line that could not be coerced to a Row.
// Such lines are skipped and counted, never fatal.
type MalformedRowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *MalformedRowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("malformed row at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed row at line %d: column %s value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}
