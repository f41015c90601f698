package dimension

import "context"

// Store is the persistence contract for dimension tables. Implementations
// enforce the schema key columns as a unique constraint.
type Store interface {
	// Lookup returns the identifier of the row with the natural key, or
	// ErrNotFound.
	Lookup(ctx context.Context, schema Schema, key NaturalKey) (ID, error)
	// Insert creates a row from the key and attribute values, ordered as
	// schema.KeyColumns then schema.AttributeColumns. It returns ErrConflict
	// when a row with the key already exists.
	Insert(ctx context.Context, schema Schema, key NaturalKey, attrs []any) error
}
