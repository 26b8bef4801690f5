// Package converter serializes record keys and values to and from bytes.
//
// The JSON converter writes either bare JSON or, with schemas enabled, an
// envelope carrying the schema next to the payload:
//
//	{"schema": {"type": "struct", "fields": [...]}, "payload": {...}}
package converter

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/edgeflare/smt/pkg/pipeline/data"
)

const (
	envelopeSchema  = "schema"
	envelopePayload = "payload"
)

var ErrInvalidEnvelope = errors.New("invalid schema envelope")

// Converter turns a schema and value into bytes and back
type Converter interface {
	FromData(schema *data.Schema, value any) ([]byte, error)
	ToData(b []byte) (data.SchemaAndValue, error)
}

// JSONConverter converts between JSON and record data
type JSONConverter struct {
	// SchemasEnable wraps values in a schema/payload envelope
	SchemasEnable bool `json:"schemasEnable"`
}

func NewJSONConverter(schemasEnable bool) *JSONConverter {
	return &JSONConverter{SchemasEnable: schemasEnable}
}

// FromData encodes value. A nil value without schema encodes to nil (a tombstone).
func (c *JSONConverter) FromData(schema *data.Schema, value any) ([]byte, error) {
	if schema == nil && value == nil {
		return nil, nil
	}
	v, err := c.toJSONValue(schema, value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// ToData decodes b. Empty input decodes to the null value.
func (c *JSONConverter) ToData(b []byte) (data.SchemaAndValue, error) {
	if len(b) == 0 {
		return data.Null, nil
	}
	v, err := data.DecodeJSON(b)
	if err != nil {
		return data.Null, fmt.Errorf("decode JSON: %w", err)
	}
	return c.fromJSONValue(v)
}

// toJSONValue returns the JSON-ready form of value, wrapped in an envelope if enabled
func (c *JSONConverter) toJSONValue(schema *data.Schema, value any) (any, error) {
	var payload any = value
	if schema != nil {
		encoded, err := encodeValue(schema, value)
		if err != nil {
			return nil, err
		}
		payload = encoded
	}

	if !c.SchemasEnable {
		return payload, nil
	}

	envelope := data.NewMap(2)
	if schema != nil {
		sj, err := schemaToJSON(schema)
		if err != nil {
			return nil, err
		}
		envelope.Set(envelopeSchema, sj)
	} else {
		envelope.Set(envelopeSchema, nil)
	}
	envelope.Set(envelopePayload, payload)
	return envelope, nil
}

// fromJSONValue is the inverse of toJSONValue for values produced by data.DecodeJSON
func (c *JSONConverter) fromJSONValue(v any) (data.SchemaAndValue, error) {
	if !c.SchemasEnable {
		return data.SchemaAndValue{Value: v}, nil
	}
	return fromEnvelope(v)
}

func fromEnvelope(v any) (data.SchemaAndValue, error) {
	if v == nil {
		return data.Null, nil
	}
	envelope, ok := v.(*data.Map)
	if !ok || envelope.Len() != 2 {
		return data.Null, fmt.Errorf("%w: expected an object with exactly %q and %q", ErrInvalidEnvelope, envelopeSchema, envelopePayload)
	}
	rawSchema, hasSchema := envelope.Get(envelopeSchema)
	payload, hasPayload := envelope.Get(envelopePayload)
	if !hasSchema || !hasPayload {
		return data.Null, fmt.Errorf("%w: expected an object with exactly %q and %q", ErrInvalidEnvelope, envelopeSchema, envelopePayload)
	}

	if rawSchema == nil {
		return data.SchemaAndValue{Value: payload}, nil
	}
	schema, err := schemaFromJSON(rawSchema)
	if err != nil {
		return data.Null, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	value, err := decodeValue(schema, payload)
	if err != nil {
		return data.Null, err
	}
	return data.SchemaAndValue{Schema: schema, Value: value}, nil
}

// encodeValue converts a value of schema into JSON-ready values
func encodeValue(schema *data.Schema, value any) (any, error) {
	if value == nil {
		value = schema.DefaultValue()
	}
	if err := data.Validate(schema, value); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	switch schema.Type() {
	case data.TypeBytes:
		return base64.StdEncoding.EncodeToString(value.([]byte)), nil
	case data.TypeArray:
		items := value.([]any)
		out := make([]any, len(items))
		for i, item := range items {
			encoded, err := encodeValue(schema.ValueSchema(), item)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case data.TypeMap:
		return encodeMap(schema, value)
	case data.TypeStruct:
		st := value.(*data.Struct)
		out := data.NewMap(len(schema.Fields()))
		for _, f := range schema.Fields() {
			fv, err := st.Get(f.Name())
			if err != nil {
				return nil, err
			}
			encoded, err := encodeValue(f.Schema(), fv)
			if err != nil {
				return nil, &data.FieldError{Field: f.Name(), Err: err}
			}
			out.Set(f.Name(), encoded)
		}
		return out, nil
	default:
		return value, nil
	}
}

// encodeMap writes string-keyed maps as objects and other maps as [key, value] pairs
func encodeMap(schema *data.Schema, value any) (any, error) {
	var entries *data.Map
	switch m := value.(type) {
	case *data.Map:
		entries = m
	case map[string]any:
		entries = data.FromGoMap(m)
	case map[any]any:
		pairs := make([]any, 0, len(m))
		for k, v := range m {
			ek, err := encodeValue(schema.KeySchema(), k)
			if err != nil {
				return nil, err
			}
			ev, err := encodeValue(schema.ValueSchema(), v)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, []any{ek, ev})
		}
		return pairs, nil
	}

	out := data.NewMap(entries.Len())
	for k, v := range entries.All() {
		ev, err := encodeValue(schema.ValueSchema(), v)
		if err != nil {
			return nil, err
		}
		out.Set(k, ev)
	}
	return out, nil
}

// decodeValue converts a schemaless JSON value into a value of schema
func decodeValue(schema *data.Schema, v any) (any, error) {
	if v == nil {
		if def := schema.DefaultValue(); def != nil {
			return def, nil
		}
		if schema.IsOptional() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: null for required %s", data.ErrSchemaMismatch, schema.Type())
	}

	mismatch := func() error {
		return fmt.Errorf("%w: JSON %T is not a valid %s", data.ErrSchemaMismatch, v, schema.Type())
	}

	switch schema.Type() {
	case data.TypeInt8:
		return intOf(v, math.MinInt8, math.MaxInt8, func(n int64) any { return int8(n) }, mismatch)
	case data.TypeInt16:
		return intOf(v, math.MinInt16, math.MaxInt16, func(n int64) any { return int16(n) }, mismatch)
	case data.TypeInt32:
		return intOf(v, math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) }, mismatch)
	case data.TypeInt64:
		return intOf(v, math.MinInt64, math.MaxInt64, func(n int64) any { return n }, mismatch)
	case data.TypeFloat32, data.TypeFloat64:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int64:
			f = float64(n)
		default:
			return nil, mismatch()
		}
		if schema.Type() == data.TypeFloat32 {
			return float32(f), nil
		}
		return f, nil
	case data.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, mismatch()
	case data.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, mismatch()
	case data.TypeBytes:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 bytes: %w", data.ErrSchemaMismatch, err)
		}
		return b, nil
	case data.TypeArray:
		items, ok := v.([]any)
		if !ok {
			return nil, mismatch()
		}
		out := make([]any, len(items))
		for i, item := range items {
			decoded, err := decodeValue(schema.ValueSchema(), item)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", i, err)
			}
			out[i] = decoded
		}
		return out, nil
	case data.TypeMap:
		return decodeMap(schema, v, mismatch)
	case data.TypeStruct:
		obj, ok := v.(*data.Map)
		if !ok {
			return nil, mismatch()
		}
		st, err := data.NewStruct(schema)
		if err != nil {
			return nil, err
		}
		for _, f := range schema.Fields() {
			raw, _ := obj.Get(f.Name())
			decoded, err := decodeValue(f.Schema(), raw)
			if err != nil {
				return nil, &data.FieldError{Field: f.Name(), Err: err}
			}
			if err := st.Put(f.Name(), decoded); err != nil {
				return nil, err
			}
		}
		return st, nil
	}
	return nil, mismatch()
}

func decodeMap(schema *data.Schema, v any, mismatch func() error) (any, error) {
	switch m := v.(type) {
	case *data.Map:
		if schema.KeySchema().Type() != data.TypeString {
			return nil, mismatch()
		}
		out := data.NewMap(m.Len())
		for k, raw := range m.All() {
			decoded, err := decodeValue(schema.ValueSchema(), raw)
			if err != nil {
				return nil, fmt.Errorf("map value for key %s: %w", k, err)
			}
			out.Set(k, decoded)
		}
		return out, nil
	case []any:
		out := make(map[any]any, len(m))
		for i, entry := range m {
			pair, ok := entry.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: map entry %d is not a [key, value] pair", data.ErrSchemaMismatch, i)
			}
			k, err := decodeValue(schema.KeySchema(), pair[0])
			if err != nil {
				return nil, err
			}
			if t := reflect.TypeOf(k); t != nil && !t.Comparable() {
				return nil, fmt.Errorf("%w: map entry %d has a %s key, which cannot be used as a map key", data.ErrSchemaMismatch, i, schema.KeySchema().Type())
			}
			val, err := decodeValue(schema.ValueSchema(), pair[1])
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	}
	return nil, mismatch()
}

func intOf(v any, lo, hi int64, conv func(int64) any, mismatch func() error) (any, error) {
	n, ok := v.(int64)
	if !ok {
		return nil, mismatch()
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("%w: %d out of range", data.ErrSchemaMismatch, n)
	}
	return conv(n), nil
}

var _ Converter = (*JSONConverter)(nil)
