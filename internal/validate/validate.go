// Package validate checks record fields against an object schema the way the
// platform does on insert and update, accumulating every violation rather
// than stopping at the first.
package validate

import (
	"fmt"

	"github.com/johnwards/notforce/internal/domain"
)

// Platform error codes raised by validation.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeInvalidFieldForWrite = "INVALID_FIELD_FOR_INSERT_UPDATE"
	CodeRestrictedPicklist   = "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST"
	CodeStringTooLong        = "STRING_TOO_LONG"
)

// Mode selects which write path's rules apply.
type Mode int

const (
	// Create enforces required fields and createable flags.
	Create Mode = iota
	// Update skips required-field checks and enforces updateable flags.
	Update
)

// Violation is one failed check.
type Violation struct {
	Message string
	Code    string
	Fields  []string
}

// Record checks fields against the schema. Unknown fields pass silently and
// null values on non-required fields pass. The returned slice is empty when
// the record is valid.
func Record(schema *domain.ObjectSchema, fields domain.Record, mode Mode) []Violation {
	var violations []Violation

	if mode == Create {
		for _, name := range schema.RequiredFields() {
			v, ok := fields[name]
			if !ok || v == nil || v == "" {
				violations = append(violations, Violation{
					Message: fmt.Sprintf("Required fields are missing: [%s]", name),
					Code:    CodeRequiredFieldMissing,
					Fields:  []string{name},
				})
			}
		}
	}

	for name, value := range fields {
		def := schema.FieldByName(name)
		if def == nil {
			continue
		}
		if value == nil && !def.Required {
			continue
		}

		writable := def.Createable
		if mode == Update {
			writable = def.Updateable
		}
		if !writable {
			violations = append(violations, Violation{
				Message: fmt.Sprintf("Unable to create/update fields: %s. Please check the security settings of this field.", name),
				Code:    CodeInvalidFieldForWrite,
				Fields:  []string{name},
			})
			continue
		}

		str := domain.Stringify(value)

		// A blank value counts as a bad picklist entry; only null is exempt.
		if len(def.PicklistValues) > 0 && value != nil && !contains(def.PicklistValues, str) {
			violations = append(violations, Violation{
				Message: fmt.Sprintf("%s: bad value for restricted picklist field: %s", name, str),
				Code:    CodeRestrictedPicklist,
				Fields:  []string{name},
			})
		}

		if def.Length > 0 && len(str) > def.Length {
			violations = append(violations, Violation{
				Message: fmt.Sprintf("%s: data value too large: %s (max length=%d)", name, truncate(str, 50), def.Length),
				Code:    CodeStringTooLong,
				Fields:  []string{name},
			})
		}
	}

	return violations
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// truncate cuts the value for the STRING_TOO_LONG message. The ellipsis is
// appended even when the value fits within n characters.
func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return s + "..."
}
