package data

import (
	"fmt"
	"reflect"
	"strings"
)

// Struct is a value conforming to a struct Schema.
// Values are addressed by field name and stored in declaration order.
type Struct struct {
	schema *Schema
	values []any
}

// NewStruct creates an empty Struct for schema, which must be a struct schema.
func NewStruct(schema *Schema) (*Struct, error) {
	if schema == nil || schema.typ != TypeStruct {
		return nil, fmt.Errorf("%w: struct values require a struct schema", ErrSchemaMismatch)
	}
	return &Struct{schema: schema, values: make([]any, len(schema.fields))}, nil
}

// MustNewStruct is like NewStruct but panics on error.
func MustNewStruct(schema *Schema) *Struct {
	s, err := NewStruct(schema)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Struct) Schema() *Schema {
	return s.schema
}

// Get returns the value of the named field, falling back to the field's default when unset.
func (s *Struct) Get(name string) (any, error) {
	field, ok := s.schema.Field(name)
	if !ok {
		return nil, &FieldError{Field: name, Err: fmt.Errorf("%w: not a field of %s", ErrSchemaMismatch, s.schema)}
	}
	if v := s.values[field.index]; v != nil {
		return v, nil
	}
	return field.schema.defaultValue, nil
}

// Put sets the named field after validating v against the field schema.
func (s *Struct) Put(name string, v any) error {
	field, ok := s.schema.Field(name)
	if !ok {
		return &FieldError{Field: name, Err: fmt.Errorf("%w: not a field of %s", ErrSchemaMismatch, s.schema)}
	}
	if err := Validate(field.schema, v); err != nil {
		return &FieldError{Field: name, Err: err}
	}
	s.values[field.index] = v
	return nil
}

// Set is a chaining variant of Put for building fixtures; it panics on invalid input.
func (s *Struct) Set(name string, v any) *Struct {
	if err := s.Put(name, v); err != nil {
		panic(err)
	}
	return s
}

// Validate checks that every required field without a default has a value.
func (s *Struct) Validate() error {
	for _, field := range s.schema.fields {
		v := s.values[field.index]
		if v == nil {
			v = field.schema.defaultValue
		}
		if err := Validate(field.schema, v); err != nil {
			return &FieldError{Field: field.name, Err: err}
		}
	}
	return nil
}

// Equal reports whether both structs have equal schemas and field values.
func (s *Struct) Equal(o *Struct) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.schema.Equal(o.schema) && reflect.DeepEqual(s.values, o.values)
}

func (s *Struct) String() string {
	var b strings.Builder
	b.WriteString("Struct{")
	for i, field := range s.schema.fields {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", field.name, s.values[i])
	}
	b.WriteByte('}')
	return b.String()
}
