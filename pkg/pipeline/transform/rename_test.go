package transform

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/edgeflare/smt/internal/testutil"
	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRuleApply(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		replacement string
		input       string
		want        string
	}{
		{"prefix all", `^(.*)$`, `prefix_$1`, "id", "prefix_id"},
		{"strip version suffix", `_v[0-9]+$`, ``, "count_v2", "count"},
		{"no match", `foo`, `bar`, "baz", "baz"},
		{"replace all matches", `a`, `o`, "banana", "bonono"},
		{"named group", `^(?P<head>[a-z]+)_id$`, `${head}Id`, "user_id", "userId"},
		{"literal dollar", `^cost$`, `cost_$$`, "cost", "cost_$"},
		{"braced group before letters", `^(\w+)$`, `${1}x`, "ab", "abx"},
		{"unbraced group before suffix", `^(.*)$`, `$1_new`, "id", "id_new"},
		{"unbraced group before letters", `^(a)(b)$`, `$2x$1`, "ab", "bxa"},
		{"digits past the group count are literal", `^(a)$`, `$10`, "a", "a0"},
		{"two digit group", `^(a)(b)(c)(d)(e)(f)(g)(h)(i)(j)$`, `$10$1`, "abcdefghij", "ja"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewRule(tt.pattern, tt.replacement)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Apply(tt.input))
		})
	}
}

func TestNewRuleRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		replacement string
	}{
		{"empty pattern", ``, `x`},
		{"bad pattern", `(`, `x`},
		{"dangling dollar", `a`, `x$`},
		{"unterminated brace", `(a)`, `${1`},
		{"empty reference", `a`, `${}`},
		{"group out of range", `(a)`, `$2`},
		{"unbraced group out of range", `(a)`, `$2abc`},
		{"unknown unbraced name", `(a)`, `$abc`},
		{"unknown named group", `(?P<x>a)`, `${y}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRule(tt.pattern, tt.replacement)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}

	assert.Panics(t, func() { MustRule(`(`, ``) })
}

func userSchema(t *testing.T) *data.Schema {
	t.Helper()
	schema, err := data.StructBuilder().
		Name("com.example.User").
		Doc("a user").
		Version(3).
		Parameter("connect.name", "user").
		Optional().
		Field("id", data.Int64Schema).
		Field("name", data.StringSchema).
		Field("email", data.OptionalStringSchema).
		Build()
	require.NoError(t, err)
	return schema
}

func userValue(t *testing.T, schema *data.Schema) *data.Struct {
	t.Helper()
	return data.MustNewStruct(schema).
		Set("id", int64(1)).
		Set("name", "a").
		Set("email", "a@example.com")
}

func fieldNames(schema *data.Schema) []string {
	var names []string
	for _, f := range schema.Fields() {
		names = append(names, f.Name())
	}
	return names
}

func TestRenameStructPrefixesAllFields(t *testing.T) {
	schema := data.StructBuilder().
		Field("id", data.Int32Schema).
		Field("name", data.StringSchema).
		MustBuild()
	value := data.MustNewStruct(schema).Set("id", int32(1)).Set("name", "a")

	engine := NewEngine(MustRule(`^(.*)$`, `prefix_$1`), nil)
	out, err := engine.Rename(data.SchemaAndValue{Schema: schema, Value: value})
	require.NoError(t, err)

	assert.Equal(t, []string{"prefix_id", "prefix_name"}, fieldNames(out.Schema))
	st := out.Value.(*data.Struct)
	id, err := st.Get("prefix_id")
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)
	name, err := st.Get("prefix_name")
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestRenameStructPreservesMetadata(t *testing.T) {
	schema := userSchema(t)
	engine := NewEngine(MustRule(`^e`, `E`), nil)

	outSchema, outValue, err := engine.RenameStruct(schema, userValue(t, schema))
	require.NoError(t, err)

	assert.Equal(t, schema.Name(), outSchema.Name())
	assert.Equal(t, schema.Doc(), outSchema.Doc())
	assert.Equal(t, schema.Version(), outSchema.Version())
	assert.Equal(t, schema.Parameters(), outSchema.Parameters())
	assert.Equal(t, schema.IsOptional(), outSchema.IsOptional())
	assert.Equal(t, []string{"id", "name", "Email"}, fieldNames(outSchema))

	// sub-schemas are carried by reference
	for i, f := range outSchema.Fields() {
		assert.Same(t, schema.Fields()[i].Schema(), f.Schema())
	}

	email, err := outValue.Get("Email")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)
	assert.NoError(t, outValue.Validate())
}

func TestRenameStructWithoutParameters(t *testing.T) {
	schema := data.StructBuilder().Field("a", data.Int8Schema).MustBuild()
	out, _, err := NewEngine(MustRule(`a`, `b`), nil).RenameStruct(schema, data.MustNewStruct(schema).Set("a", int8(1)))
	require.NoError(t, err)
	assert.Nil(t, out.Parameters())
	assert.False(t, out.IsOptional())
	assert.Nil(t, out.DefaultValue())
}

func TestRenameStructMovesDefault(t *testing.T) {
	plain := data.StructBuilder().
		Field("old_a", data.Int64Schema).
		Field("b", data.StringSchema).
		MustBuild()
	def := data.MustNewStruct(plain).Set("old_a", int64(5)).Set("b", "d")
	schema := data.StructBuilder().
		Field("old_a", data.Int64Schema).
		Field("b", data.StringSchema).
		DefaultValue(def).
		MustBuild()

	engine := NewEngine(MustRule(`^old_`, ``), nil)
	outSchema, _, err := engine.RenameStruct(schema, data.MustNewStruct(schema).Set("old_a", int64(1)).Set("b", "x"))
	require.NoError(t, err)

	outDef, ok := outSchema.DefaultValue().(*data.Struct)
	require.True(t, ok)
	a, err := outDef.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), a)
}

func TestRenameStructNoMatchIsIdentity(t *testing.T) {
	schema := userSchema(t)
	value := userValue(t, schema)

	outSchema, outValue, err := NewEngine(MustRule(`foo`, `bar`), nil).RenameStruct(schema, value)
	require.NoError(t, err)
	assert.True(t, schema.Equal(outSchema))
	assert.True(t, value.Equal(outValue))
	assert.NotSame(t, value, outValue, "a new struct is always returned")
}

func TestRenameStructDoesNotModifyInput(t *testing.T) {
	schema := userSchema(t)
	value := userValue(t, schema)
	before := value.String()

	_, _, err := NewEngine(MustRule(`.+`, `x_$0`), nil).RenameStruct(schema, value)
	require.NoError(t, err)
	assert.Equal(t, before, value.String())
	assert.Equal(t, []string{"id", "name", "email"}, fieldNames(schema))
}

func TestRenameStructCollision(t *testing.T) {
	schema := data.StructBuilder().
		Field("a", data.Int32Schema).
		Field("b", data.Int32Schema).
		MustBuild()
	value := data.MustNewStruct(schema).Set("a", int32(1)).Set("b", int32(2))

	_, err := NewEngine(MustRule(`^a$|^b$`, `x`), nil).Rename(data.SchemaAndValue{Schema: schema, Value: value})
	require.Error(t, err)
	assert.True(t, errors.Is(err, data.ErrDuplicateField))

	var fieldErr *data.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "x", fieldErr.Field)
	assert.Equal(t, []string{"a", "b"}, fieldErr.Others)
}

func TestRenameStructSchemaMismatch(t *testing.T) {
	schema := data.StructBuilder().
		Field("id", data.Int32Schema).
		Field("name", data.StringSchema).
		MustBuild()
	engine := NewEngine(MustRule(`^`, `p_`), nil)

	t.Run("required field unset", func(t *testing.T) {
		value := data.MustNewStruct(schema).Set("id", int32(1))

		_, _, err := engine.RenameStruct(schema, value)
		require.Error(t, err)
		assert.True(t, errors.Is(err, data.ErrSchemaMismatch), "got %v", err)

		var fieldErr *data.FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "name", fieldErr.Field)
		assert.Contains(t, err.Error(), `field "name"`)
		assert.Contains(t, err.Error(), `renamed to "p_name"`)
	})

	t.Run("value schema lacks a declared field", func(t *testing.T) {
		other := data.StructBuilder().Field("id", data.Int32Schema).MustBuild()
		value := data.MustNewStruct(other).Set("id", int32(1))

		_, _, err := engine.RenameStruct(schema, value)
		require.Error(t, err)
		assert.True(t, errors.Is(err, data.ErrSchemaMismatch), "got %v", err)

		var fieldErr *data.FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "name", fieldErr.Field)
	})

	t.Run("through Rename", func(t *testing.T) {
		value := data.MustNewStruct(schema).Set("name", "a")

		_, err := engine.Rename(data.SchemaAndValue{Schema: schema, Value: value})
		assert.True(t, errors.Is(err, data.ErrSchemaMismatch), "got %v", err)
		assert.Contains(t, err.Error(), `field "id"`)
	})
}

func TestRenameMapFromFixture(t *testing.T) {
	v, err := testutil.LoadJSON("order.json")
	require.NoError(t, err)
	in, ok := v.(*data.Map)
	require.True(t, ok, "got %T", v)

	out := NewEngine(MustRule(`_v[0-9]+$`, ``), nil).RenameMap(in)

	assert.Equal(t, []string{"order_id", "customer", "total", "status", "items"}, out.Keys())
	id, _ := out.Get("order_id")
	assert.Equal(t, int64(1001), id)

	// nested fields keep their names
	customer, _ := out.Get("customer")
	assert.Equal(t, []string{"id_v2", "name"}, customer.(*data.Map).Keys())
	assert.Equal(t, []string{"order_id_v2", "customer", "total_v3", "status", "items_v2"}, in.Keys())
}

func TestRenameMap(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		replacement string
		input       *data.Map
		want        *data.Map
	}{
		{
			name:        "strip version suffix",
			pattern:     `_v[0-9]+$`,
			replacement: ``,
			input:       data.MapOf("count_v2", int64(5), "label", "x"),
			want:        data.MapOf("count", int64(5), "label", "x"),
		},
		{
			name:        "last write wins",
			pattern:     `^a$|^b$`,
			replacement: `x`,
			input:       data.MapOf("a", int64(1), "b", int64(2)),
			want:        data.MapOf("x", int64(2)),
		},
		{
			name:        "order kept",
			pattern:     `^`,
			replacement: `_`,
			input:       data.MapOf("z", 1, "a", 2, "m", 3),
			want:        data.MapOf("_z", 1, "_a", 2, "_m", 3),
		},
		{
			name:        "empty mapping",
			pattern:     `a`,
			replacement: `b`,
			input:       data.NewMap(0),
			want:        data.NewMap(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(MustRule(tt.pattern, tt.replacement), nil)
			out, err := engine.Rename(data.SchemaAndValue{Value: tt.input})
			require.NoError(t, err)
			assert.Nil(t, out.Schema)

			got := out.Value.(*data.Map)
			assert.Equal(t, tt.want.Keys(), got.Keys())
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestRenameMapDoesNotModifyInput(t *testing.T) {
	in := data.MapOf("a", 1, "b", 2)
	out := NewEngine(MustRule(`a`, `c`), nil).RenameMap(in)
	assert.Equal(t, []string{"a", "b"}, in.Keys())
	assert.Equal(t, []string{"c", "b"}, out.Keys())
}

func TestRenameGoMapUsesSortedKeys(t *testing.T) {
	out, err := NewEngine(MustRule(`^`, `p_`), nil).Rename(data.SchemaAndValue{Value: map[string]any{"b": 2, "a": 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p_a", "p_b"}, out.Value.(*data.Map).Keys())
}

func TestRenameDispatch(t *testing.T) {
	engine := NewEngine(MustRule(`a`, `b`), nil)
	structSchema := data.StructBuilder().Field("a", data.Int32Schema).MustBuild()

	t.Run("nil value passes through", func(t *testing.T) {
		in := data.SchemaAndValue{Schema: data.OptionalStringSchema}
		out, err := engine.Rename(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	tests := []struct {
		name string
		in   data.SchemaAndValue
		want error
	}{
		{"primitive schema", data.SchemaAndValue{Schema: data.StringSchema, Value: "x"}, ErrUnsupportedInput},
		{"schemaless primitive", data.SchemaAndValue{Value: int64(1)}, ErrUnsupportedInput},
		{"schemaless slice", data.SchemaAndValue{Value: []any{1}}, ErrUnsupportedInput},
		{"struct schema with mapping", data.SchemaAndValue{Schema: structSchema, Value: data.MapOf("a", 1)}, data.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Rename(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRenameTracesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := NewEngine(MustRule(`^id$`, `key`), zap.New(core))

	schema := data.StructBuilder().Field("id", data.Int64Schema).MustBuild()
	_, _, err := engine.RenameStruct(schema, data.MustNewStruct(schema).Set("id", int64(1)))
	require.NoError(t, err)

	mapped := logs.FilterMessage("mapping field").All()
	require.Len(t, mapped, 1)
	assert.Equal(t, "id", mapped[0].ContextMap()["from"])
	assert.Equal(t, "key", mapped[0].ContextMap()["to"])
	assert.Equal(t, 1, logs.FilterMessage("processing field").Len())
}

func TestRenameCountsRenamedFields(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_renamed_fields_total"})
	engine := NewEngine(MustRule(`^a`, `z`), nil)
	engine.Renamed = counter

	engine.RenameMap(data.MapOf("a1", 1, "a2", 2, "b", 3))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(counter))
}

func TestRenameConcurrent(t *testing.T) {
	schema := userSchema(t)
	engine := NewEngine(MustRule(`^(\w)`, `f_$1`), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value := data.MustNewStruct(schema).Set("id", int64(i)).Set("name", fmt.Sprint(i))
			_, out, err := engine.RenameStruct(schema, value)
			if err != nil {
				errs <- err
				return
			}
			if id, _ := out.Get("f_id"); id != int64(i) {
				errs <- fmt.Errorf("got id %v, want %d", id, i)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
