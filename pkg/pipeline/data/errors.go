package data

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaMismatch is returned when a value does not conform to its schema
	ErrSchemaMismatch = errors.New("value does not match schema")
	// ErrDuplicateField is returned when a struct schema would declare the same field name twice
	ErrDuplicateField = errors.New("duplicate field name")
	// ErrSchemaBuilder is returned for invalid schema construction
	ErrSchemaBuilder = errors.New("invalid schema definition")
)

// FieldError ties a data error to the field(s) it concerns.
type FieldError struct {
	// Field is the field name the error is about
	Field string
	// Others lists additional source field names involved, eg the fields that collided on Field
	Others []string
	Err    error
}

func (e *FieldError) Error() string {
	if len(e.Others) > 0 {
		return fmt.Sprintf("field %q (from %s): %v", e.Field, strings.Join(quoteAll(e.Others), ", "), e.Err)
	}
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return quoted
}
