package transform

import (
	"fmt"

	"github.com/edgeflare/smt/pkg/metrics"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

const TypePatternRename = "patternRename"

// PatternRenameConfig holds the configuration for the patternRename transformation
type PatternRenameConfig struct {
	// Pattern is matched against each top-level field name
	Pattern string `json:"pattern"`
	// Replacement replaces every match; $1 / ${name} refer to pattern groups
	Replacement string `json:"replacement"`
	// Target is the record side to rename, key or value (default)
	Target Target `json:"target,omitempty"`
}

// Validate validates the PatternRenameConfig
func (c *PatternRenameConfig) Validate() error {
	_, err := NewRule(c.Pattern, c.Replacement)
	return err
}

// Type returns the type of the transformation
func (c *PatternRenameConfig) Type() string {
	return TypePatternRename
}

// PatternRename creates a Func that renames the top-level fields of the
// configured record side. The rest of the record passes through untouched.
func PatternRename(config *PatternRenameConfig, logger *zap.Logger) (Func, error) {
	rule, err := NewRule(config.Pattern, config.Replacement)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	target := config.Target
	engine := NewEngine(rule, logger.With(zap.Stringer("target", target)))
	engine.Renamed = metrics.RenamedFields.WithLabelValues(target.String())

	return func(r *record.Record) (*record.Record, error) {
		if r == nil {
			return nil, nil
		}
		renamed, err := engine.Rename(target.Pair(r))
		if err != nil {
			return nil, fmt.Errorf("rename %s fields of record on topic %s: %w", target, r.Topic, err)
		}
		return target.Replace(r, renamed), nil
	}, nil
}

// PatternRenameKey renames fields in the record key
func PatternRenameKey(pattern, replacement string, logger *zap.Logger) (Func, error) {
	return PatternRename(&PatternRenameConfig{Pattern: pattern, Replacement: replacement, Target: TargetKey}, logger)
}

// PatternRenameValue renames fields in the record value
func PatternRenameValue(pattern, replacement string, logger *zap.Logger) (Func, error) {
	return PatternRename(&PatternRenameConfig{Pattern: pattern, Replacement: replacement, Target: TargetValue}, logger)
}
