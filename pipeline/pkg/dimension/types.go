// Package dimension resolves natural keys of the election star schema to
// storage surrogate identifiers, creating missing rows exactly once per key
// and caching the result for the lifetime of a pipeline run.
package dimension

import "strconv"

// Type tags a dimension table.
type Type string

const (
	TypeElection     Type = "election"
	TypeState        Type = "state"
	TypeMunicipality Type = "municipality"
	TypeOffice       Type = "office"
	TypeParty        Type = "party"
	TypeCandidate    Type = "candidate"
)

// Types lists every dimension in parent-first resolution order.
var Types = []Type{TypeElection, TypeState, TypeMunicipality, TypeOffice, TypeParty, TypeCandidate}

// ID is a storage-assigned surrogate identifier.
type ID int64

// None means "no identifier": an optional reference resolved to nothing.
// Storage identifiers start at 1.
const None ID = 0

func (id ID) Valid() bool {
	return id > 0
}

func (id ID) String() string {
	if id == None {
		return "none"
	}
	return strconv.FormatInt(int64(id), 10)
}

// DBValue converts values bound to SQL parameters: IDs become int64, None
// becomes NULL, anything else is returned unchanged.
func DBValue(v any) any {
	switch x := v.(type) {
	case ID:
		if x == None {
			return nil
		}
		return int64(x)
	default:
		return v
	}
}

// DBValues applies DBValue to every element.
func DBValues(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = DBValue(v)
	}
	return out
}
