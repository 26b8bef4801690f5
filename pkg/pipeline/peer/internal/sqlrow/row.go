// Package sqlrow turns record values into table rows for the SQL sinks.
package sqlrow

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
)

var (
	// ErrNotARow is returned for values without top-level fields, eg tombstones or scalars
	ErrNotARow = errors.New("value has no top-level fields")

	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Row is one table row built from a record value, columns in field order.
type Row struct {
	Table   string
	Columns []string
	Values  []any
}

// FromRecord builds a row from the value of r. table defaults to the record topic.
// Nested structs, maps and arrays are stored as JSON text.
func FromRecord(r *record.Record, table string) (*Row, error) {
	if table == "" {
		table = r.Topic
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	row := &Row{Table: table}
	add := func(name string, v any) error {
		if !identifier.MatchString(name) {
			return fmt.Errorf("invalid column name %q", name)
		}
		cv, err := columnValue(v)
		if err != nil {
			return &data.FieldError{Field: name, Err: err}
		}
		row.Columns = append(row.Columns, name)
		row.Values = append(row.Values, cv)
		return nil
	}

	switch v := r.Value.(type) {
	case *data.Struct:
		for _, f := range v.Schema().Fields() {
			fv, err := v.Get(f.Name())
			if err != nil {
				return nil, err
			}
			if err := add(f.Name(), fv); err != nil {
				return nil, err
			}
		}
	case *data.Map:
		for k, fv := range v.All() {
			if err := add(k, fv); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: record on topic %s has a %T value", ErrNotARow, r.Topic, r.Value)
	}
	if len(row.Columns) == 0 {
		return nil, fmt.Errorf("%w: record on topic %s has an empty value", ErrNotARow, r.Topic)
	}
	return row, nil
}

func columnValue(v any) (any, error) {
	switch v.(type) {
	case *data.Struct, *data.Map, []any, map[any]any:
		b, err := json.Marshal(plain(v))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

// plain converts structs into ordered maps so they marshal with field names
func plain(v any) any {
	switch t := v.(type) {
	case *data.Struct:
		m := data.NewMap(len(t.Schema().Fields()))
		for _, f := range t.Schema().Fields() {
			fv, _ := t.Get(f.Name())
			m.Set(f.Name(), plain(fv))
		}
		return m
	case *data.Map:
		m := data.NewMap(t.Len())
		for k, fv := range t.All() {
			m.Set(k, plain(fv))
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	case map[any]any:
		pairs := make([]any, 0, len(t))
		for k, item := range t {
			pairs = append(pairs, []any{plain(k), plain(item)})
		}
		return pairs
	default:
		return v
	}
}
