package data

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaBuilder(t *testing.T) {
	schema, err := StructBuilder().
		Name("com.example.User").
		Doc("a user").
		Version(2).
		Parameter("source", "users").
		Optional().
		Field("id", Int64Schema).
		Field("name", OptionalStringSchema).
		Build()
	require.NoError(t, err)

	assert.Equal(t, TypeStruct, schema.Type())
	assert.Equal(t, "com.example.User", schema.Name())
	assert.Equal(t, "a user", schema.Doc())
	assert.Equal(t, 2, schema.Version())
	assert.True(t, schema.IsOptional())
	assert.Equal(t, map[string]string{"source": "users"}, schema.Parameters())

	fields := schema.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "id", fields[0].Name())
	assert.Equal(t, 0, fields[0].Index())
	assert.Same(t, Int64Schema, fields[0].Schema())
	assert.Equal(t, "name", fields[1].Name())

	f, ok := schema.Field("name")
	require.True(t, ok)
	assert.Equal(t, 1, f.Index())
	_, ok = schema.Field("missing")
	assert.False(t, ok)
}

func TestSchemaBuilderErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *SchemaBuilder
		wantErr error
	}{
		{
			name:    "duplicate field",
			builder: StructBuilder().Field("a", Int32Schema).Field("a", StringSchema),
			wantErr: ErrDuplicateField,
		},
		{
			name:    "field on primitive",
			builder: NewSchemaBuilder(TypeString).Field("a", Int32Schema),
			wantErr: ErrSchemaBuilder,
		},
		{
			name:    "nil field schema",
			builder: StructBuilder().Field("a", nil),
			wantErr: ErrSchemaBuilder,
		},
		{
			name:    "array without element schema",
			builder: ArrayBuilder(nil),
			wantErr: ErrSchemaBuilder,
		},
		{
			name:    "default of wrong type",
			builder: NewSchemaBuilder(TypeInt32).DefaultValue("nope"),
			wantErr: ErrSchemaMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestDuplicateFieldErrorNamesField(t *testing.T) {
	_, err := StructBuilder().Field("a", Int32Schema).Field("a", Int32Schema).Build()
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "a", fieldErr.Field)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestSchemaParametersAreCopied(t *testing.T) {
	schema := StructBuilder().Parameter("k", "v").Field("a", Int32Schema).MustBuild()
	params := schema.Parameters()
	params["k"] = "changed"
	assert.Equal(t, "v", schema.Parameters()["k"])

	empty := StructBuilder().Field("a", Int32Schema).MustBuild()
	assert.Nil(t, empty.Parameters())
}

func TestSchemaEqual(t *testing.T) {
	a := StructBuilder().Name("n").Field("x", Int32Schema).MustBuild()
	b := StructBuilder().Name("n").Field("x", Int32Schema).MustBuild()
	c := StructBuilder().Name("n").Field("y", Int32Schema).MustBuild()

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
	assert.True(t, (*Schema)(nil).Equal(nil))
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("struct")
	require.NoError(t, err)
	assert.Equal(t, TypeStruct, typ)
	assert.Equal(t, "int64", TypeInt64.String())
	assert.True(t, TypeBytes.IsPrimitive())
	assert.False(t, TypeMap.IsPrimitive())

	_, err = ParseType("decimal")
	assert.Error(t, err)
}
