package converter

import (
	"errors"
	"testing"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderSchema(t *testing.T) *data.Schema {
	t.Helper()
	schema, err := data.StructBuilder().
		Name("order").
		Version(2).
		Parameter("source", "shop").
		Field("order_id", data.Int32Schema).
		Field("total", data.Float64Schema).
		Field("note", data.OptionalStringSchema).
		Field("raw", data.OptionalBytesSchema).
		Field("tags", data.ArrayBuilder(data.StringSchema).MustBuild()).
		Field("attrs", data.MapBuilder(data.StringSchema, data.Int64Schema).MustBuild()).
		Build()
	require.NoError(t, err)
	return schema
}

func TestJSONConverterSchemaless(t *testing.T) {
	c := NewJSONConverter(false)

	sv, err := c.ToData([]byte(`{"b":1,"a":{"y":2.5,"x":"s"},"c":[true,null]}`))
	require.NoError(t, err)
	assert.Nil(t, sv.Schema)

	m, ok := sv.Value.(*data.Map)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
	b, _ := m.Get("b")
	assert.Equal(t, int64(1), b)

	out, err := c.FromData(nil, sv.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":{"y":2.5,"x":"s"},"c":[true,null]}`, string(out))
	assert.Equal(t, `{"b":1,"a":{"y":2.5,"x":"s"},"c":[true,null]}`, string(out), "key order is kept")
}

func TestJSONConverterTombstone(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		c := NewJSONConverter(enabled)
		out, err := c.FromData(nil, nil)
		require.NoError(t, err)
		assert.Nil(t, out)

		sv, err := c.ToData(nil)
		require.NoError(t, err)
		assert.Equal(t, data.Null, sv)
	}
}

func TestJSONConverterEnvelopeRoundTrip(t *testing.T) {
	schema := orderSchema(t)
	value := data.MustNewStruct(schema).
		Set("order_id", int32(42)).
		Set("total", 9.5).
		Set("raw", []byte("hi")).
		Set("tags", []any{"new"}).
		Set("attrs", data.MapOf("qty", int64(3)))

	c := NewJSONConverter(true)
	out, err := c.FromData(schema, value)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"payload":{"order_id":42,"total":9.5,"note":null,"raw":"aGk=","tags":["new"],"attrs":{"qty":3}}`)

	sv, err := c.ToData(out)
	require.NoError(t, err)
	assert.True(t, schema.Equal(sv.Schema), "got schema %s", sv.Schema)

	st, ok := sv.Value.(*data.Struct)
	require.True(t, ok)
	id, err := st.Get("order_id")
	require.NoError(t, err)
	assert.Equal(t, int32(42), id)
	raw, err := st.Get("raw")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), raw)
	assert.Equal(t, map[string]string{"source": "shop"}, sv.Schema.Parameters())
}

func TestJSONConverterNonStringMapKeys(t *testing.T) {
	schema := data.StructBuilder().
		Field("counts", data.MapBuilder(data.Int32Schema, data.StringSchema).MustBuild()).
		MustBuild()
	value := data.MustNewStruct(schema).Set("counts", map[any]any{int32(1): "one"})

	c := NewJSONConverter(true)
	out, err := c.FromData(schema, value)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"payload":{"counts":[[1,"one"]]}`)

	sv, err := c.ToData(out)
	require.NoError(t, err)
	counts, err := sv.Value.(*data.Struct).Get("counts")
	require.NoError(t, err)
	assert.Equal(t, map[any]any{int32(1): "one"}, counts)
}

func TestJSONConverterStructDefault(t *testing.T) {
	inner := data.StructBuilder().Field("a", data.Int64Schema).MustBuild()
	def := data.MustNewStruct(inner).Set("a", int64(1))
	schema := data.StructBuilder().
		Field("a", data.Int64Schema).
		DefaultValue(def).
		MustBuild()

	sj, err := schemaToJSON(schema)
	require.NoError(t, err)
	decoded, err := schemaFromJSON(sj)
	require.NoError(t, err)
	assert.True(t, schema.Equal(decoded))
}

func TestJSONConverterErrors(t *testing.T) {
	c := NewJSONConverter(true)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "not an envelope", input: `{"a":1}`, want: ErrInvalidEnvelope},
		{name: "extra envelope key", input: `{"schema":null,"payload":1,"x":2}`, want: ErrInvalidEnvelope},
		{name: "bad schema type", input: `{"schema":{"type":"decimal"},"payload":1}`, want: ErrInvalidEnvelope},
		{name: "payload mismatch", input: `{"schema":{"type":"int8"},"payload":"x"}`, want: data.ErrSchemaMismatch},
		{name: "int out of range", input: `{"schema":{"type":"int8"},"payload":300}`, want: data.ErrSchemaMismatch},
		{name: "required null", input: `{"schema":{"type":"string"},"payload":null}`, want: data.ErrSchemaMismatch},
		{
			name:  "bytes map key",
			input: `{"schema":{"type":"map","keys":{"type":"bytes"},"values":{"type":"int32"}},"payload":[["AAE=",1]]}`,
			want:  data.ErrSchemaMismatch,
		},
		{
			name:  "array map key",
			input: `{"schema":{"type":"map","keys":{"type":"array","values":{"type":"int32"}},"values":{"type":"int32"}},"payload":[[[1],1]]}`,
			want:  data.ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = c.ToData([]byte(tt.input)) })
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := c.ToData([]byte(`{"a":1} {}`))
	assert.Error(t, err)
}

func TestJSONConverterSchemalessEnvelope(t *testing.T) {
	c := NewJSONConverter(true)
	out, err := c.FromData(nil, data.MapOf("x", int64(1)))
	require.NoError(t, err)
	assert.Equal(t, `{"schema":null,"payload":{"x":1}}`, string(out))

	sv, err := c.ToData(out)
	require.NoError(t, err)
	assert.Nil(t, sv.Schema)
	assert.True(t, data.MapOf("x", int64(1)).Equal(sv.Value.(*data.Map)))
}
