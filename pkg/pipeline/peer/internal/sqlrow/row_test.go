package sqlrow

import (
	"errors"
	"testing"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRecordStruct(t *testing.T) {
	inner := data.StructBuilder().Field("city", data.StringSchema).MustBuild()
	schema := data.StructBuilder().
		Field("id", data.Int64Schema).
		Field("note", data.OptionalStringSchema).
		Field("address", inner).
		MustBuild()
	value := data.MustNewStruct(schema).
		Set("id", int64(1)).
		Set("address", data.MustNewStruct(inner).Set("city", "Oslo"))

	r := record.NewBuilder("users").WithValue(schema, value).Build()
	row, err := FromRecord(&r, "")
	require.NoError(t, err)

	assert.Equal(t, "users", row.Table)
	assert.Equal(t, []string{"id", "note", "address"}, row.Columns)
	assert.Equal(t, []any{int64(1), nil, `{"city":"Oslo"}`}, row.Values)
}

func TestFromRecordMap(t *testing.T) {
	r := record.NewBuilder("metrics").
		WithValue(nil, data.MapOf("name", "cpu", "tags", []any{"a", "b"})).
		Build()
	row, err := FromRecord(&r, "samples")
	require.NoError(t, err)

	assert.Equal(t, "samples", row.Table)
	assert.Equal(t, []string{"name", "tags"}, row.Columns)
	assert.Equal(t, []any{"cpu", `["a","b"]`}, row.Values)
}

func TestFromRecordErrors(t *testing.T) {
	tombstone := record.NewBuilder("users").Build()
	_, err := FromRecord(&tombstone, "")
	assert.True(t, errors.Is(err, ErrNotARow))

	empty := record.NewBuilder("users").WithValue(nil, data.NewMap(0)).Build()
	_, err = FromRecord(&empty, "")
	assert.True(t, errors.Is(err, ErrNotARow))

	badTable := record.NewBuilder("public.users").WithValue(nil, data.MapOf("a", 1)).Build()
	_, err = FromRecord(&badTable, "")
	assert.Error(t, err)

	badColumn := record.NewBuilder("users").WithValue(nil, data.MapOf("a; drop", 1)).Build()
	_, err = FromRecord(&badColumn, "")
	assert.Error(t, err)
}
