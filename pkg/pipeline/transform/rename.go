package transform

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Rule is a compiled find/replace-all rule for field names.
// The replacement uses regexp.Expand syntax: ${1}, ${name} and $$ for a literal dollar.
// An unbraced $ followed by digits refers to the longest group number the pattern
// defines, so with one group $1_new is group 1 then "_new" and $10 is group 1 then "0".
type Rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// NewRule compiles pattern and checks that replacement only references groups the pattern defines.
func NewRule(pattern, replacement string) (Rule, error) {
	if pattern == "" {
		return Rule{}, fmt.Errorf("%w: pattern is required", ErrInvalidConfig)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: invalid pattern %q: %w", ErrInvalidConfig, pattern, err)
	}
	tmpl := braceGroupNumbers(re, replacement)
	if err := checkTemplate(re, tmpl); err != nil {
		return Rule{}, fmt.Errorf("%w: invalid replacement %q: %w", ErrInvalidConfig, replacement, err)
	}
	return Rule{pattern: re, replacement: tmpl}, nil
}

// MustRule is like NewRule but panics on error
func MustRule(pattern, replacement string) Rule {
	r, err := NewRule(pattern, replacement)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rule) Pattern() *regexp.Regexp { return r.pattern }
func (r Rule) Replacement() string { return r.replacement }

// Apply renames name. Names the pattern does not match are returned unchanged.
func (r Rule) Apply(name string) string {
	if r.pattern == nil || !r.pattern.MatchString(name) {
		return name
	}
	return r.pattern.ReplaceAllString(name, r.replacement)
}

// braceGroupNumbers rewrites unbraced $<digits> references to ${<digits>}. The first
// digit is always part of the reference; each following digit is taken while the
// number stays within the pattern's group count.
func braceGroupNumbers(re *regexp.Regexp, tmpl string) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}

	var b strings.Builder
	groups := re.NumSubexp()
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}
		next := tmpl[i+1]
		if next == '$' {
			b.WriteString("$$")
			i++
			continue
		}
		if !isDigit(next) {
			b.WriteByte(c)
			continue
		}

		n := int(next - '0')
		j := i + 2
		for j < len(tmpl) && isDigit(tmpl[j]) {
			m := n*10 + int(tmpl[j]-'0')
			if m > groups {
				break
			}
			n = m
			j++
		}
		fmt.Fprintf(&b, "${%d}", n)
		i = j - 1
	}
	return b.String()
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// checkTemplate rejects references that regexp.Expand would silently expand to nothing.
func checkTemplate(re *regexp.Regexp, tmpl string) error {
	names := make(map[string]bool)
	for _, n := range re.SubexpNames() {
		if n != "" {
			names[n] = true
		}
	}

	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '$' {
			continue
		}
		i++
		if i >= len(tmpl) {
			return fmt.Errorf("dangling $ at end of template (use $$ for a literal $)")
		}
		if tmpl[i] == '$' {
			continue
		}

		var ref string
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return fmt.Errorf("unterminated ${ at offset %d", i-1)
			}
			ref = tmpl[i+1 : i+end]
			i += end
		} else {
			j := i
			for j < len(tmpl) && isNameByte(tmpl[j]) {
				j++
			}
			ref = tmpl[i:j]
			i = j - 1
		}

		if ref == "" {
			return fmt.Errorf("empty group reference (use $$ for a literal $)")
		}
		if n, err := strconv.Atoi(ref); err == nil {
			if n > re.NumSubexp() {
				return fmt.Errorf("group $%d does not exist, pattern has %d group(s)", n, re.NumSubexp())
			}
			continue
		}
		if !names[ref] {
			return fmt.Errorf("group %q does not exist", ref)
		}
	}
	return nil
}

func isNameByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Namer maps a field name to its new name
type Namer interface {
	Apply(name string) string
}

// Engine renames the top-level fields of a struct or a schemaless mapping.
// It holds no per-record state and is safe for concurrent use as long as its Namer is.
type Engine struct {
	Namer  Namer
	Logger *zap.Logger
	// Renamed, if set, is incremented once per field whose name changed
	Renamed prometheus.Counter
}

// NewEngine returns an Engine renaming fields with namer. A nil logger disables tracing.
func NewEngine(namer Namer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Namer: namer, Logger: logger}
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

type fieldMapping struct {
	from, to string
}

// Rename dispatches on the shape of sv: a struct schema renames the struct,
// no schema with a mapping value renames the mapping. A nil value passes through.
func (e *Engine) Rename(sv data.SchemaAndValue) (data.SchemaAndValue, error) {
	if sv.Value == nil {
		return sv, nil
	}

	if sv.Schema != nil {
		if sv.Schema.Type() != data.TypeStruct {
			return data.Null, fmt.Errorf("%w: schema of type %s, want struct", ErrUnsupportedInput, sv.Schema.Type())
		}
		st, ok := sv.Value.(*data.Struct)
		if !ok {
			return data.Null, fmt.Errorf("%w: %T given for struct schema %s", data.ErrSchemaMismatch, sv.Value, sv.Schema)
		}
		schema, value, err := e.RenameStruct(sv.Schema, st)
		if err != nil {
			return data.Null, err
		}
		return data.SchemaAndValue{Schema: schema, Value: value}, nil
	}

	switch v := sv.Value.(type) {
	case *data.Map:
		return data.SchemaAndValue{Value: e.RenameMap(v)}, nil
	case map[string]any:
		return data.SchemaAndValue{Value: e.RenameMap(data.FromGoMap(v))}, nil
	default:
		return data.Null, fmt.Errorf("%w: schemaless value of type %T, want a mapping", ErrUnsupportedInput, sv.Value)
	}
}

// RenameStruct derives a schema with renamed fields from schema and moves the
// values of value into it. Neither input is modified.
func (e *Engine) RenameStruct(schema *data.Schema, value *data.Struct) (*data.Schema, *data.Struct, error) {
	if schema == nil || schema.Type() != data.TypeStruct {
		return nil, nil, fmt.Errorf("%w: struct schema required", ErrUnsupportedInput)
	}
	if value == nil {
		return nil, nil, fmt.Errorf("%w: nil struct for schema %s", data.ErrSchemaMismatch, schema)
	}

	builder := structBuilderFor(schema)
	fields := schema.Fields()
	mappings := make([]fieldMapping, 0, len(fields))
	sources := make(map[string]string, len(fields))
	renamed := 0

	for _, field := range fields {
		e.log().Debug("processing field", zap.String("field", field.Name()))
		to := e.Namer.Apply(field.Name())
		e.log().Debug("mapping field", zap.String("from", field.Name()), zap.String("to", to))

		if prev, exists := sources[to]; exists {
			return nil, nil, &data.FieldError{
				Field:  to,
				Others: []string{prev, field.Name()},
				Err:    data.ErrDuplicateField,
			}
		}
		sources[to] = field.Name()
		if to != field.Name() {
			renamed++
		}

		mappings = append(mappings, fieldMapping{from: field.Name(), to: to})
		builder.Field(to, field.Schema())
	}

	outSchema, err := builder.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build renamed schema: %w", err)
	}

	if def, ok := schema.DefaultValue().(*data.Struct); ok {
		// a struct default belongs to the old field names; move it too
		projected, err := copyStruct(e.log(), def, outSchema, mappings)
		if err != nil {
			return nil, nil, fmt.Errorf("rename default value: %w", err)
		}
		withDefault := structBuilderFor(schema)
		for _, f := range outSchema.Fields() {
			withDefault.Field(f.Name(), f.Schema())
		}
		outSchema, err = withDefault.DefaultValue(projected).Build()
		if err != nil {
			return nil, nil, fmt.Errorf("build renamed schema: %w", err)
		}
	}

	outValue, err := copyStruct(e.log(), value, outSchema, mappings)
	if err != nil {
		return nil, nil, err
	}

	if e.Renamed != nil {
		e.Renamed.Add(float64(renamed))
	}
	return outSchema, outValue, nil
}

// RenameMap returns a new mapping with renamed keys in the input order.
// When two keys rename to the same name the later value wins.
func (e *Engine) RenameMap(in *data.Map) *data.Map {
	out := data.NewMap(in.Len())
	renamed := 0
	for k, v := range in.All() {
		e.log().Debug("processing field", zap.String("field", k))
		to := e.Namer.Apply(k)
		if to != k {
			renamed++
		}
		out.Set(to, v)
	}
	if e.Renamed != nil {
		e.Renamed.Add(float64(renamed))
	}
	return out
}

// structBuilderFor starts a struct schema carrying the name, doc, version,
// parameters and optionality of schema. Defaults are handled by the caller.
func structBuilderFor(schema *data.Schema) *data.SchemaBuilder {
	b := data.StructBuilder().
		Name(schema.Name()).
		Doc(schema.Doc()).
		Version(schema.Version())
	if params := schema.Parameters(); len(params) > 0 {
		b.Parameters(params)
	}
	if schema.IsOptional() {
		b.Optional()
	}
	return b
}

// fieldMappingError reports err against the input field name, keeping the renamed name for context
func fieldMappingError(m fieldMapping, err error) error {
	var fieldErr *data.FieldError
	if errors.As(err, &fieldErr) {
		err = fieldErr.Err
	}
	if m.to != m.from {
		err = fmt.Errorf("renamed to %q: %w", m.to, err)
	}
	return &data.FieldError{Field: m.from, Err: err}
}

func copyStruct(logger *zap.Logger, in *data.Struct, schema *data.Schema, mappings []fieldMapping) (*data.Struct, error) {
	out, err := data.NewStruct(schema)
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		logger.Debug("copying field", zap.String("from", m.from), zap.String("to", m.to))
		v, err := in.Get(m.from)
		if err != nil {
			return nil, fieldMappingError(m, err)
		}
		if err := out.Put(m.to, v); err != nil {
			return nil, fieldMappingError(m, err)
		}
	}
	return out, nil
}
