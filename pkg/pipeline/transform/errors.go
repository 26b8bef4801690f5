package transform

import "errors"

var (
	// ErrInvalidConfig is returned when a transformation cannot be set up from its configuration
	ErrInvalidConfig = errors.New("invalid transformation configuration")
	// ErrUnsupportedInput is returned for a key or value the transformation cannot handle,
	// ie neither a struct with a struct schema nor a schemaless mapping
	ErrUnsupportedInput = errors.New("unsupported input")
)
