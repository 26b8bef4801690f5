package transform

import (
	"fmt"
	"sync"

	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Func is the signature for all transformation functions.
// Returning a nil record without error drops the record.
type Func func(*record.Record) (*record.Record, error)

// Transformation represents a single transformation step (like Kafka SMT)
type Transformation struct {
	Config map[string]any `mapstructure:"config"`
	Type   string         `mapstructure:"type"`
}

// Config is the interface that all transformations must implement
type Config interface {
	// Validate validates the configuration
	Validate() error
	// Type returns the transformation type
	Type() string
}

// Factory builds a Func from its configuration. Configuration problems are
// reported here, once, rather than on every record.
type Factory func(config Config, logger *zap.Logger) (Func, error)

type entry struct {
	newConfig func() Config
	factory   Factory
}

// Registry is a collection of transformation functions
type Registry struct {
	transforms sync.Map // map[string]entry
}

// Register adds a transformation to the registry. newConfig returns an empty
// config that transformation settings are decoded into.
func (r *Registry) Register(name string, newConfig func() Config, factory Factory) {
	r.transforms.Store(name, entry{newConfig: newConfig, factory: factory})
}

// Get returns a transformation factory from the registry
func (r *Registry) Get(name string) (Factory, error) {
	e, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.factory, nil
}

func (r *Registry) lookup(name string) (entry, error) {
	if value, ok := r.transforms.Load(name); ok {
		return value.(entry), nil
	}
	return entry{}, fmt.Errorf("transformation %s not found", name)
}

// NewRegistry creates a new transformation registry
func NewRegistry() *Registry {
	return &Registry{
		transforms: sync.Map{},
	}
}

type Manager struct {
	registry *Registry
	logger   *zap.Logger
}

type Option func(*Manager)

// WithLogger sets the logger handed to transformations
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// RegisterBuiltins registers all built-in transformations
func (m *Manager) RegisterBuiltins() {
	m.registry.Register(TypePatternRename,
		func() Config { return &PatternRenameConfig{} },
		func(config Config, logger *zap.Logger) (Func, error) {
			cfg, ok := config.(*PatternRenameConfig)
			if !ok {
				return nil, fmt.Errorf("%w: invalid config type %T for %s transformation", ErrInvalidConfig, config, TypePatternRename)
			}
			return PatternRename(cfg, logger)
		})

	m.registry.Register(TypeExtract,
		func() Config { return &ExtractConfig{} },
		func(config Config, logger *zap.Logger) (Func, error) {
			cfg, ok := config.(*ExtractConfig)
			if !ok {
				return nil, fmt.Errorf("%w: invalid config type %T for %s transformation", ErrInvalidConfig, config, TypeExtract)
			}
			return Extract(cfg, logger)
		})

	m.registry.Register(TypeFilter,
		func() Config { return &FilterConfig{} },
		func(config Config, _ *zap.Logger) (Func, error) {
			cfg, ok := config.(*FilterConfig)
			if !ok {
				return nil, fmt.Errorf("%w: invalid config type %T for %s transformation", ErrInvalidConfig, config, TypeFilter)
			}
			return Filter(cfg)
		})

	m.registry.Register(TypeReplace,
		func() Config { return &ReplaceConfig{} },
		func(config Config, logger *zap.Logger) (Func, error) {
			cfg, ok := config.(*ReplaceConfig)
			if !ok {
				return nil, fmt.Errorf("%w: invalid config type %T for %s transformation", ErrInvalidConfig, config, TypeReplace)
			}
			return Replace(cfg, logger)
		})
}

// Build creates the Func for a single transformation
func (m *Manager) Build(t Transformation) (Func, error) {
	e, err := m.registry.lookup(t.Type)
	if err != nil {
		return nil, fmt.Errorf("error getting transformation %s: %w", t.Type, err)
	}

	config, err := t.decode(e.newConfig())
	if err != nil {
		return nil, fmt.Errorf("error converting config for %s: %w", t.Type, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", t.Type, err)
	}

	fn, err := e.factory(config, m.logger.With(zap.String("transform", t.Type)))
	if err != nil {
		return nil, fmt.Errorf("error creating transformation %s: %w", t.Type, err)
	}
	return fn, nil
}

// Chain creates a transformation chain from a list of configs
func (m *Manager) Chain(configs []Transformation) (Func, error) {
	var transforms []Func

	for _, cfg := range configs {
		transform, err := m.Build(cfg)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, transform)
	}

	// Return a function that chains all transformations
	return func(r *record.Record) (*record.Record, error) {
		current := r
		var err error
		for _, t := range transforms {
			current, err = t(current)
			if err != nil {
				return nil, err
			}
			if current == nil {
				return nil, nil // Stop processing if any transformation returns nil
			}
		}
		return current, nil
	}, nil
}

// decode converts the raw config map into target
func (t *Transformation) decode(target Config) (Config, error) {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused: true,
		TagName:     "json",
		Result:      target,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(t.Config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return target, nil
}
