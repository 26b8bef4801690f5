package transform

import (
	"fmt"
	"slices"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

const TypeExtract = "extract"

// ExtractConfig holds the configuration for the extract transformation
type ExtractConfig struct {
	Fields []string `json:"fields"`
	Target Target   `json:"target,omitempty"`
}

// Validate validates the ExtractConfig
func (c *ExtractConfig) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidConfig)
	}
	return nil
}

// Type returns the type of the transformation
func (c *ExtractConfig) Type() string {
	return TypeExtract
}

// Extract creates a Func that keeps only the specified top-level fields of the
// configured record side. Fields keep their input order; unknown fields are skipped.
func Extract(config *ExtractConfig, logger *zap.Logger) (Func, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	target := config.Target
	fields := slices.Clone(config.Fields)

	return func(r *record.Record) (*record.Record, error) {
		if r == nil {
			return nil, nil
		}
		extracted, err := extractFields(logger, target.Pair(r), fields)
		if err != nil {
			return nil, fmt.Errorf("extract %s fields of record on topic %s: %w", target, r.Topic, err)
		}
		return target.Replace(r, extracted), nil
	}, nil
}

func extractFields(logger *zap.Logger, sv data.SchemaAndValue, fields []string) (data.SchemaAndValue, error) {
	if sv.Value == nil {
		return sv, nil
	}

	if sv.Schema != nil {
		st, ok := sv.Value.(*data.Struct)
		if sv.Schema.Type() != data.TypeStruct || !ok {
			return data.Null, fmt.Errorf("%w: %T with schema %s", ErrUnsupportedInput, sv.Value, sv.Schema)
		}
		builder := structBuilderFor(sv.Schema)
		var mappings []fieldMapping
		for _, f := range sv.Schema.Fields() {
			if slices.Contains(fields, f.Name()) {
				builder.Field(f.Name(), f.Schema())
				mappings = append(mappings, fieldMapping{from: f.Name(), to: f.Name()})
			}
		}
		schema, err := builder.Build()
		if err != nil {
			return data.Null, err
		}
		value, err := copyStruct(logger, st, schema, mappings)
		if err != nil {
			return data.Null, err
		}
		return data.SchemaAndValue{Schema: schema, Value: value}, nil
	}

	var in *data.Map
	switch v := sv.Value.(type) {
	case *data.Map:
		in = v
	case map[string]any:
		in = data.FromGoMap(v)
	default:
		return data.Null, fmt.Errorf("%w: schemaless value of type %T, want a mapping", ErrUnsupportedInput, sv.Value)
	}

	out := data.NewMap(len(fields))
	for k, v := range in.All() {
		if slices.Contains(fields, k) {
			out.Set(k, v)
		}
	}
	return data.SchemaAndValue{Value: out}, nil
}
