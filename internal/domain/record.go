package domain

import (
	"fmt"
	"strconv"
)

// Record is a single sObject row. Field values keep whatever JSON type the
// client sent; bulk CSV ingestion always produces strings.
type Record map[string]any

// ID returns the record's Id field, or "" if unset.
func (r Record) ID() string {
	return Stringify(r["Id"])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stringify renders a field value the way the platform compares and prints it.
// Numbers drop a trailing ".0", booleans render as "true"/"false", nil as "".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
