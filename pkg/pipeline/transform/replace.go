package transform

import (
	"fmt"

	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

const TypeReplace = "replace"

// ReplaceConfig holds the configuration for the replace transformation
type ReplaceConfig struct {
	// Topic replacements
	Topics map[string]string `json:"topics,omitempty"`

	// Field replacements, exact top-level names
	Fields map[string]string `json:"fields,omitempty"`

	// Regex replacements
	Regex []RegexReplacement `json:"regex,omitempty"`

	// Target is the record side whose fields are replaced
	Target Target `json:"target,omitempty"`
}

// RegexReplacement defines a regex-based replacement rule
type RegexReplacement struct {
	Type    string `json:"type"`    // "topic" or "field"
	Pattern string `json:"pattern"` // Regex pattern to match
	Replace string `json:"replace"` // Replacement string (can use regex groups)
}

// Validate validates the ReplaceConfig
func (c *ReplaceConfig) Validate() error {
	// Ensure at least one replacement type is configured
	if len(c.Topics) == 0 &&
		len(c.Fields) == 0 &&
		len(c.Regex) == 0 {
		return fmt.Errorf("%w: at least one replacement configuration is required", ErrInvalidConfig)
	}

	// Validate regex patterns
	for _, regex := range c.Regex {
		if !isValidReplacementType(regex.Type) {
			return fmt.Errorf("%w: invalid replacement type: %s", ErrInvalidConfig, regex.Type)
		}
		if _, err := NewRule(regex.Pattern, regex.Replace); err != nil {
			return err
		}
	}

	return nil
}

func isValidReplacementType(t string) bool {
	return t == "topic" || t == "field"
}

// Type returns the type of the transformation
func (c *ReplaceConfig) Type() string {
	return TypeReplace
}

// NameMapping renames exact names and leaves all others unchanged
type NameMapping map[string]string

func (m NameMapping) Apply(name string) string {
	if to, ok := m[name]; ok {
		return to
	}
	return name
}

// Namers applies each Namer in turn
type Namers []Namer

func (n Namers) Apply(name string) string {
	for _, namer := range n {
		name = namer.Apply(name)
	}
	return name
}

// Replace creates a Func that performs the configured replacements
func Replace(config *ReplaceConfig, logger *zap.Logger) (Func, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var topicNamers, fieldNamers Namers
	if len(config.Topics) > 0 {
		topicNamers = append(topicNamers, NameMapping(config.Topics))
	}
	if len(config.Fields) > 0 {
		fieldNamers = append(fieldNamers, NameMapping(config.Fields))
	}
	for _, regex := range config.Regex {
		rule := MustRule(regex.Pattern, regex.Replace)
		switch regex.Type {
		case "topic":
			topicNamers = append(topicNamers, rule)
		case "field":
			fieldNamers = append(fieldNamers, rule)
		}
	}

	target := config.Target
	var engine *Engine
	if len(fieldNamers) > 0 {
		engine = NewEngine(fieldNamers, logger)
	}

	return func(r *record.Record) (*record.Record, error) {
		if r == nil {
			return nil, nil
		}
		current := r

		if engine != nil {
			renamed, err := engine.Rename(target.Pair(current))
			if err != nil {
				return nil, fmt.Errorf("replace %s fields of record on topic %s: %w", target, r.Topic, err)
			}
			current = target.Replace(current, renamed)
		}

		if len(topicNamers) > 0 {
			if topic := topicNamers.Apply(current.Topic); topic != current.Topic {
				current = current.WithTopic(topic)
			}
		}

		return current, nil
	}, nil
}

var (
	_ Namer = Rule{}
	_ Namer = NameMapping(nil)
	_ Namer = Namers(nil)
)
