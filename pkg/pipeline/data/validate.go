package data

import "fmt"

// Validate checks that value conforms to schema.
func Validate(schema *Schema, value any) error {
	if schema == nil {
		return fmt.Errorf("%w: no schema", ErrSchemaMismatch)
	}
	if value == nil {
		if schema.optional {
			return nil
		}
		return fmt.Errorf("%w: null value for required %s schema", ErrSchemaMismatch, schema.typ)
	}

	ok := false
	switch schema.typ {
	case TypeInt8:
		_, ok = value.(int8)
	case TypeInt16:
		_, ok = value.(int16)
	case TypeInt32:
		_, ok = value.(int32)
	case TypeInt64:
		_, ok = value.(int64)
	case TypeFloat32:
		_, ok = value.(float32)
	case TypeFloat64:
		_, ok = value.(float64)
	case TypeBoolean:
		_, ok = value.(bool)
	case TypeString:
		_, ok = value.(string)
	case TypeBytes:
		_, ok = value.([]byte)
	case TypeArray:
		return validateArray(schema, value)
	case TypeMap:
		return validateMap(schema, value)
	case TypeStruct:
		s, isStruct := value.(*Struct)
		if !isStruct {
			break
		}
		if !s.schema.sameShape(schema) {
			return fmt.Errorf("%w: struct schema %s does not match %s", ErrSchemaMismatch, s.schema, schema)
		}
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %T is not a valid %s value", ErrSchemaMismatch, value, schema.typ)
	}
	return nil
}

func validateArray(schema *Schema, value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%w: %T is not a valid array value", ErrSchemaMismatch, value)
	}
	for i, item := range items {
		if err := Validate(schema.valueSchema, item); err != nil {
			return fmt.Errorf("array element %d: %w", i, err)
		}
	}
	return nil
}

func validateMap(schema *Schema, value any) error {
	check := func(k, v any) error {
		if err := Validate(schema.keySchema, k); err != nil {
			return fmt.Errorf("map key %v: %w", k, err)
		}
		if err := Validate(schema.valueSchema, v); err != nil {
			return fmt.Errorf("map value for key %v: %w", k, err)
		}
		return nil
	}

	switch m := value.(type) {
	case *Map:
		for k, v := range m.All() {
			if err := check(k, v); err != nil {
				return err
			}
		}
	case map[string]any:
		for k, v := range m {
			if err := check(k, v); err != nil {
				return err
			}
		}
	case map[any]any:
		for k, v := range m {
			if err := check(k, v); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %T is not a valid map value", ErrSchemaMismatch, value)
	}
	return nil
}
