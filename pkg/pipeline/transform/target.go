package transform

import (
	"fmt"
	"strings"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
)

// Target selects the side of a record a transformation reads from and writes back to
type Target int

const (
	TargetValue Target = iota
	TargetKey
)

// ParseTarget parses "key" or "value"
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "value", "":
		return TargetValue, nil
	case "key":
		return TargetKey, nil
	default:
		return 0, fmt.Errorf("%w: unknown target %q (want key or value)", ErrInvalidConfig, s)
	}
}

func (t Target) String() string {
	if t == TargetKey {
		return "key"
	}
	return "value"
}

// UnmarshalText lets Target be decoded from configuration strings
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Pair returns the targeted side of r
func (t Target) Pair(r *record.Record) data.SchemaAndValue {
	if t == TargetKey {
		return r.KeyPair()
	}
	return r.ValuePair()
}

// Replace returns a copy of r with the targeted side set to sv
func (t Target) Replace(r *record.Record, sv data.SchemaAndValue) *record.Record {
	if t == TargetKey {
		return r.WithKey(sv)
	}
	return r.WithValue(sv)
}
