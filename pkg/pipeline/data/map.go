package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"sort"
)

// Map is a string-keyed mapping that remembers insertion order.
// It is the schemaless counterpart of Struct.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty Map sized for n entries
func NewMap(n int) *Map {
	return &Map{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// MapOf builds a Map from alternating key, value arguments. It panics on a non-string key.
func MapOf(kv ...any) *Map {
	m := NewMap(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("MapOf: key %v is not a string", kv[i]))
		}
		m.Set(k, kv[i+1])
	}
	return m
}

// FromGoMap copies a Go map into a Map. Keys are inserted in sorted order
// since Go maps carry no order of their own.
func FromGoMap(src map[string]any) *Map {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := NewMap(len(src))
	for _, k := range keys {
		m.Set(k, src[k])
	}
	return m
}

// Set stores v under k. Overwriting an existing key keeps its original position.
func (m *Map) Set(k string, v any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, exists := m.values[k]; !exists {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m *Map) Get(k string) (any, bool) {
	v, ok := m.values[k]
	return v, ok
}

func (m *Map) Delete(k string) {
	if _, exists := m.values[k]; !exists {
		return
	}
	delete(m.values, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order
func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

// All iterates entries in insertion order
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// ToMap returns the entries as a plain Go map. Order is lost.
func (m *Map) ToMap() map[string]any {
	out := make(map[string]any, m.Len())
	for k, v := range m.All() {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same entries in the same order.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	for i, k := range m.keys {
		if o.keys[i] != k || !reflect.DeepEqual(m.values[k], o.values[k]) {
			return false
		}
	}
	return true
}

func (m *Map) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, m.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the map as a JSON object preserving key order
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. Nested objects become *Map.
func (m *Map) UnmarshalJSON(b []byte) error {
	v, err := DecodeJSON(b)
	if err != nil {
		return err
	}
	decoded, ok := v.(*Map)
	if !ok {
		return fmt.Errorf("cannot unmarshal %T into Map", v)
	}
	*m = *decoded
	return nil
}
