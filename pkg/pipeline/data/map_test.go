package data

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInsertionOrder(t *testing.T) {
	m := NewMap(3)
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("m", 3)
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	m.Set("z", 9)
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys(), "overwrite keeps position")
	v, ok := m.Get("z")
	require.True(t, ok)
	assert.Equal(t, 9, v)

	m.Delete("a")
	assert.Equal(t, []string{"z", "m"}, m.Keys())
	assert.Equal(t, 2, m.Len())

	var keys []string
	for k := range m.All() {
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"z", "m"}, keys)
}

func TestFromGoMapSortsKeys(t *testing.T) {
	m := FromGoMap(map[string]any{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
	assert.Equal(t, map[string]any{"b": 1, "a": 2, "c": 3}, m.ToMap())
}

func TestMapJSONRoundTripKeepsOrder(t *testing.T) {
	in := `{"zeta":1,"alpha":{"y":2.5,"x":"s"},"list":[1,{"b":true,"a":null}]}`

	var m Map
	require.NoError(t, json.Unmarshal([]byte(in), &m))
	assert.Equal(t, []string{"zeta", "alpha", "list"}, m.Keys())

	zeta, _ := m.Get("zeta")
	assert.Equal(t, int64(1), zeta)

	alpha, _ := m.Get("alpha")
	require.IsType(t, &Map{}, alpha)
	assert.Equal(t, []string{"y", "x"}, alpha.(*Map).Keys())

	out, err := json.Marshal(&m)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, in, string(out))
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	var m Map
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
}

func TestMapEqual(t *testing.T) {
	a := MapOf("a", 1, "b", MapOf("c", 2))
	b := MapOf("a", 1, "b", MapOf("c", 2))
	c := MapOf("b", MapOf("c", 2), "a", 1)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "order matters")
	assert.True(t, (*Map)(nil).Equal(NewMap(0)))
}
