package data

import (
	"fmt"
	"maps"
	"reflect"
)

// Field is a named member of a struct Schema
type Field struct {
	name   string
	index  int
	schema *Schema
}

func (f Field) Name() string { return f.name }
func (f Field) Index() int { return f.index }
func (f Field) Schema() *Schema { return f.schema }

// Schema describes the shape of a key or value.
// A Schema is immutable once built; use SchemaBuilder to create one.
type Schema struct {
	typ          Type
	name         string
	doc          string
	version      int
	defaultValue any
	parameters   map[string]string
	optional     bool
	fields       []Field
	fieldIndex   map[string]int
	keySchema    *Schema
	valueSchema  *Schema
}

// Predefined primitive schemas
var (
	Int8Schema    = &Schema{typ: TypeInt8}
	Int16Schema   = &Schema{typ: TypeInt16}
	Int32Schema   = &Schema{typ: TypeInt32}
	Int64Schema   = &Schema{typ: TypeInt64}
	Float32Schema = &Schema{typ: TypeFloat32}
	Float64Schema = &Schema{typ: TypeFloat64}
	BooleanSchema = &Schema{typ: TypeBoolean}
	StringSchema  = &Schema{typ: TypeString}
	BytesSchema   = &Schema{typ: TypeBytes}

	OptionalInt8Schema    = &Schema{typ: TypeInt8, optional: true}
	OptionalInt16Schema   = &Schema{typ: TypeInt16, optional: true}
	OptionalInt32Schema   = &Schema{typ: TypeInt32, optional: true}
	OptionalInt64Schema   = &Schema{typ: TypeInt64, optional: true}
	OptionalFloat32Schema = &Schema{typ: TypeFloat32, optional: true}
	OptionalFloat64Schema = &Schema{typ: TypeFloat64, optional: true}
	OptionalBooleanSchema = &Schema{typ: TypeBoolean, optional: true}
	OptionalStringSchema  = &Schema{typ: TypeString, optional: true}
	OptionalBytesSchema   = &Schema{typ: TypeBytes, optional: true}
)

func (s *Schema) Type() Type { return s.typ }
func (s *Schema) Name() string { return s.name }
func (s *Schema) Doc() string { return s.doc }
func (s *Schema) Version() int { return s.version }
func (s *Schema) DefaultValue() any { return s.defaultValue }
func (s *Schema) IsOptional() bool { return s.optional }
func (s *Schema) KeySchema() *Schema {
	return s.keySchema
}
func (s *Schema) ValueSchema() *Schema {
	return s.valueSchema
}

// Parameters returns a copy of the schema parameters, or nil if there are none.
func (s *Schema) Parameters() map[string]string {
	if len(s.parameters) == 0 {
		return nil
	}
	return maps.Clone(s.parameters)
}

// Fields returns the struct fields in declaration order. It is nil for non-struct schemas.
func (s *Schema) Fields() []Field {
	if len(s.fields) == 0 {
		return nil
	}
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// Field looks up a struct field by name
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Equal reports whether two schemas describe the same shape and metadata.
func (s *Schema) Equal(o *Schema) bool {
	return s.equal(o, false)
}

// sameShape is Equal ignoring the top-level default value. A struct default is
// itself a value of the schema, so it cannot take part in its own comparison.
func (s *Schema) sameShape(o *Schema) bool {
	return s.equal(o, true)
}

func (s *Schema) equal(o *Schema, ignoreDefault bool) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.typ != o.typ || s.name != o.name || s.doc != o.doc ||
		s.version != o.version || s.optional != o.optional {
		return false
	}
	if len(s.parameters) != len(o.parameters) || !maps.Equal(s.parameters, o.parameters) {
		return false
	}
	if !ignoreDefault && !reflect.DeepEqual(s.defaultValue, o.defaultValue) {
		return false
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i].name != o.fields[i].name || !s.fields[i].schema.Equal(o.fields[i].schema) {
			return false
		}
	}
	return s.keySchema.Equal(o.keySchema) && s.valueSchema.Equal(o.valueSchema)
}

func (s *Schema) String() string {
	if s.name != "" {
		return fmt.Sprintf("Schema{%s:%s}", s.name, s.typ)
	}
	return fmt.Sprintf("Schema{%s}", s.typ)
}

// SchemaBuilder assembles a Schema. Errors are reported by Build.
type SchemaBuilder struct {
	schema     Schema
	hasDefault bool
	err        error
}

// NewSchemaBuilder starts a schema of the given type
func NewSchemaBuilder(t Type) *SchemaBuilder {
	return &SchemaBuilder{schema: Schema{typ: t}}
}

// StructBuilder starts a struct schema
func StructBuilder() *SchemaBuilder {
	return NewSchemaBuilder(TypeStruct)
}

// ArrayBuilder starts an array schema with the given element schema
func ArrayBuilder(valueSchema *Schema) *SchemaBuilder {
	b := NewSchemaBuilder(TypeArray)
	b.schema.valueSchema = valueSchema
	return b
}

// MapBuilder starts a map schema with the given key and value schemas
func MapBuilder(keySchema, valueSchema *Schema) *SchemaBuilder {
	b := NewSchemaBuilder(TypeMap)
	b.schema.keySchema = keySchema
	b.schema.valueSchema = valueSchema
	return b
}

func (b *SchemaBuilder) Name(name string) *SchemaBuilder {
	b.schema.name = name
	return b
}

func (b *SchemaBuilder) Doc(doc string) *SchemaBuilder {
	b.schema.doc = doc
	return b
}

func (b *SchemaBuilder) Version(version int) *SchemaBuilder {
	b.schema.version = version
	return b
}

func (b *SchemaBuilder) Optional() *SchemaBuilder {
	b.schema.optional = true
	return b
}

// DefaultValue sets the default value; it is validated against the schema in Build.
func (b *SchemaBuilder) DefaultValue(v any) *SchemaBuilder {
	b.schema.defaultValue = v
	b.hasDefault = v != nil
	return b
}

func (b *SchemaBuilder) Parameter(key, value string) *SchemaBuilder {
	if b.schema.parameters == nil {
		b.schema.parameters = make(map[string]string)
	}
	b.schema.parameters[key] = value
	return b
}

func (b *SchemaBuilder) Parameters(params map[string]string) *SchemaBuilder {
	for k, v := range params {
		b.Parameter(k, v)
	}
	return b
}

// Field appends a struct field. The field schema is kept by reference.
func (b *SchemaBuilder) Field(name string, schema *Schema) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if b.schema.typ != TypeStruct {
		b.err = fmt.Errorf("%w: cannot add field %q to %s schema", ErrSchemaBuilder, name, b.schema.typ)
		return b
	}
	if name == "" {
		b.err = fmt.Errorf("%w: field name cannot be empty", ErrSchemaBuilder)
		return b
	}
	if schema == nil {
		b.err = fmt.Errorf("%w: field %q has no schema", ErrSchemaBuilder, name)
		return b
	}
	if b.schema.fieldIndex == nil {
		b.schema.fieldIndex = make(map[string]int)
	}
	if _, exists := b.schema.fieldIndex[name]; exists {
		b.err = &FieldError{Field: name, Err: ErrDuplicateField}
		return b
	}
	b.schema.fieldIndex[name] = len(b.schema.fields)
	b.schema.fields = append(b.schema.fields, Field{name: name, index: len(b.schema.fields), schema: schema})
	return b
}

// Build returns the finished schema
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	switch b.schema.typ {
	case TypeArray:
		if b.schema.valueSchema == nil {
			return nil, fmt.Errorf("%w: array schema requires an element schema", ErrSchemaBuilder)
		}
	case TypeMap:
		if b.schema.keySchema == nil || b.schema.valueSchema == nil {
			return nil, fmt.Errorf("%w: map schema requires key and value schemas", ErrSchemaBuilder)
		}
	}
	if _, ok := typeNames[b.schema.typ]; !ok {
		return nil, fmt.Errorf("%w: unknown type %s", ErrSchemaBuilder, b.schema.typ)
	}

	s := b.schema
	s.fields = append([]Field(nil), b.schema.fields...)
	s.fieldIndex = maps.Clone(b.schema.fieldIndex)
	s.parameters = maps.Clone(b.schema.parameters)
	if b.hasDefault {
		if err := Validate(&s, s.defaultValue); err != nil {
			return nil, fmt.Errorf("invalid default value: %w", err)
		}
	}
	return &s, nil
}

// MustBuild is like Build but panics on error. Intended for static schemas.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
