package dimension

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Store.Lookup when no row has the key.
	ErrNotFound = errors.New("dimension row not found")
	// ErrConflict is returned by Store.Insert when the key already exists.
	ErrConflict = errors.New("dimension row already exists")

	ErrEmptyKey      = errors.New("empty natural key")
	ErrUnknownType   = errors.New("unknown dimension type")
	ErrMissingParent = errors.New("missing parent identifier")
	ErrKeyArity      = errors.New("natural key arity does not match schema")
)

// ResolutionError reports a natural key that could not be resolved or
// created after the allowed retry.
type ResolutionError struct {
	Type Type
	Key  NaturalKey
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s %s: %v", e.Type, e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
