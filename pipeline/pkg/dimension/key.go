package dimension

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NaturalKey is the business identity of a dimension row. Values keep their
// Go types for binding to SQL parameters; Encode normalizes every component
// to its trimmed string form, so "10" and int64(10) are the same key.
type NaturalKey struct {
	Values []any
}

// NewNaturalKey trims string components and widens integers to int64.
func NewNaturalKey(values ...any) NaturalKey {
	norm := make([]any, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case string:
			norm[i] = strings.TrimSpace(x)
		case int:
			norm[i] = int64(x)
		case int32:
			norm[i] = int64(x)
		default:
			norm[i] = v
		}
	}
	return NaturalKey{Values: norm}
}

// Encode returns a deterministic, collision-free string for the key.
// Each component is written as length:payload so ("1", "23") and
// ("12", "3") never encode alike.
func (k NaturalKey) Encode() string {
	var b strings.Builder
	for _, v := range k.Values {
		s := componentString(v)
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}

// Strings returns the components in their normalized string form.
func (k NaturalKey) Strings() []string {
	out := make([]string, len(k.Values))
	for i, v := range k.Values {
		out[i] = componentString(v)
	}
	return out
}

// IsEmpty reports whether every component is empty.
func (k NaturalKey) IsEmpty() bool {
	for _, v := range k.Values {
		if componentString(v) != "" {
			return false
		}
	}
	return true
}

func (k NaturalKey) String() string {
	return "(" + strings.Join(k.Strings(), ", ") + ")"
}

func componentString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case ID:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", x))
	}
}
