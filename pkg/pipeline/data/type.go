package data

import "fmt"

// Type is the logical type described by a Schema
type Type int

const (
	TypeInt8 Type = iota + 1
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBoolean
	TypeString
	TypeBytes
	TypeArray
	TypeMap
	TypeStruct
)

var typeNames = map[Type]string{
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeBoolean: "boolean",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeArray:   "array",
	TypeMap:     "map",
	TypeStruct:  "struct",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsPrimitive reports whether values of t carry no nested schema
func (t Type) IsPrimitive() bool {
	return t >= TypeInt8 && t <= TypeBytes
}

// ParseType returns the Type named by s
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown schema type: %s", s)
}
