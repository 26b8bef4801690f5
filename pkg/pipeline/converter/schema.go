package converter

import (
	"fmt"

	"github.com/edgeflare/smt/pkg/pipeline/data"
)

const (
	keyType       = "type"
	keyName       = "name"
	keyDoc        = "doc"
	keyVersion    = "version"
	keyOptional   = "optional"
	keyDefault    = "default"
	keyParameters = "parameters"
	keyFields     = "fields"
	keyField      = "field"
	keyKeys       = "keys"
	keyValues     = "values"
)

// schemaToJSON describes schema as an ordered JSON object
func schemaToJSON(schema *data.Schema) (*data.Map, error) {
	m := data.NewMap(8)
	m.Set(keyType, schema.Type().String())
	m.Set(keyOptional, schema.IsOptional())
	if schema.Name() != "" {
		m.Set(keyName, schema.Name())
	}
	if schema.Doc() != "" {
		m.Set(keyDoc, schema.Doc())
	}
	if schema.Version() != 0 {
		m.Set(keyVersion, schema.Version())
	}
	if params := schema.Parameters(); len(params) > 0 {
		m.Set(keyParameters, data.FromGoMap(toAny(params)))
	}

	switch schema.Type() {
	case data.TypeStruct:
		fields := make([]any, 0, len(schema.Fields()))
		for _, f := range schema.Fields() {
			fm, err := schemaToJSON(f.Schema())
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name(), err)
			}
			withName := data.NewMap(fm.Len() + 1)
			withName.Set(keyField, f.Name())
			for k, v := range fm.All() {
				withName.Set(k, v)
			}
			fields = append(fields, withName)
		}
		m.Set(keyFields, fields)
	case data.TypeArray:
		values, err := schemaToJSON(schema.ValueSchema())
		if err != nil {
			return nil, err
		}
		m.Set(keyValues, values)
	case data.TypeMap:
		keys, err := schemaToJSON(schema.KeySchema())
		if err != nil {
			return nil, err
		}
		values, err := schemaToJSON(schema.ValueSchema())
		if err != nil {
			return nil, err
		}
		m.Set(keyKeys, keys)
		m.Set(keyValues, values)
	}

	if def := schema.DefaultValue(); def != nil {
		encoded, err := encodeValue(schema, def)
		if err != nil {
			return nil, fmt.Errorf("default value: %w", err)
		}
		m.Set(keyDefault, encoded)
	}
	return m, nil
}

// schemaFromJSON builds a schema from its decoded JSON description
func schemaFromJSON(v any) (*data.Schema, error) {
	m, ok := v.(*data.Map)
	if !ok {
		return nil, fmt.Errorf("schema must be a JSON object, got %T", v)
	}

	typeName, _ := m.Get(keyType)
	s, ok := typeName.(string)
	if !ok {
		return nil, fmt.Errorf("schema is missing %q", keyType)
	}
	t, err := data.ParseType(s)
	if err != nil {
		return nil, err
	}

	var b *data.SchemaBuilder
	switch t {
	case data.TypeArray:
		values, err := subSchema(m, keyValues)
		if err != nil {
			return nil, err
		}
		b = data.ArrayBuilder(values)
	case data.TypeMap:
		keys, err := subSchema(m, keyKeys)
		if err != nil {
			return nil, err
		}
		values, err := subSchema(m, keyValues)
		if err != nil {
			return nil, err
		}
		b = data.MapBuilder(keys, values)
	default:
		b = data.NewSchemaBuilder(t)
	}

	if name, ok := m.Get(keyName); ok {
		if s, ok := name.(string); ok {
			b.Name(s)
		}
	}
	if doc, ok := m.Get(keyDoc); ok {
		if s, ok := doc.(string); ok {
			b.Doc(s)
		}
	}
	if version, ok := m.Get(keyVersion); ok {
		if n, ok := version.(int64); ok {
			b.Version(int(n))
		}
	}
	if optional, ok := m.Get(keyOptional); ok && optional == true {
		b.Optional()
	}
	if params, ok := m.Get(keyParameters); ok {
		pm, ok := params.(*data.Map)
		if !ok {
			return nil, fmt.Errorf("%q must be an object", keyParameters)
		}
		for k, v := range pm.All() {
			b.Parameter(k, fmt.Sprint(v))
		}
	}

	if t == data.TypeStruct {
		rawFields, _ := m.Get(keyFields)
		fields, ok := rawFields.([]any)
		if rawFields != nil && !ok {
			return nil, fmt.Errorf("%q must be an array", keyFields)
		}
		for i, rf := range fields {
			fm, ok := rf.(*data.Map)
			if !ok {
				return nil, fmt.Errorf("field %d must be an object", i)
			}
			name, _ := fm.Get(keyField)
			fieldName, ok := name.(string)
			if !ok {
				return nil, fmt.Errorf("field %d is missing %q", i, keyField)
			}
			fs, err := schemaFromJSON(fm)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fieldName, err)
			}
			b.Field(fieldName, fs)
		}
	}

	if def, ok := m.Get(keyDefault); ok && def != nil {
		// decode against the schema without its default first
		base, err := b.Build()
		if err != nil {
			return nil, err
		}
		dv, err := decodeValue(base, def)
		if err != nil {
			return nil, fmt.Errorf("default value: %w", err)
		}
		b.DefaultValue(dv)
	}

	return b.Build()
}

func subSchema(m *data.Map, key string) (*data.Schema, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, fmt.Errorf("schema is missing %q", key)
	}
	return schemaFromJSON(v)
}

func toAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
