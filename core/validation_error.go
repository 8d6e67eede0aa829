package core

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError collects per-field validation messages. It reuses
// url.Values for its string-slice semantics.
type ValidationError url.Values

func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}

	var parts []string
	for field, messages := range e {
		if len(messages) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", field, messages[0]))
		}
	}
	return "validation error: " + strings.Join(parts, ", ")
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

// Add appends an error message for a field.
func (e ValidationError) Add(field, message string) {
	url.Values(e).Add(field, message)
}

// Has reports whether a field has any errors.
func (e ValidationError) Has(field string) bool {
	return len(e[field]) > 0
}

// IsEmpty reports whether no field has errors.
func (e ValidationError) IsEmpty() bool {
	return len(e) == 0
}
