package transform

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/edgeflare/smt/pkg/pipeline/record"
)

const TypeFilter = "filter"

// FilterConfig selects records by topic. Records that are not selected are dropped.
type FilterConfig struct {
	TopicPattern  string   `json:"topicPattern,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	ExcludeTopics []string `json:"excludeTopics,omitempty"`
}

func (c *FilterConfig) Validate() error {
	if len(c.Topics) == 0 && len(c.ExcludeTopics) == 0 && c.TopicPattern == "" {
		return fmt.Errorf("%w: at least one filter criteria required", ErrInvalidConfig)
	}

	if c.TopicPattern != "" {
		if _, err := regexp.Compile(c.TopicPattern); err != nil {
			return fmt.Errorf("%w: invalid topic pattern: %w", ErrInvalidConfig, err)
		}
	}

	for _, t := range append(append([]string{}, c.Topics...), c.ExcludeTopics...) {
		if _, err := path.Match(t, ""); err != nil {
			return fmt.Errorf("%w: invalid topic glob %q: %w", ErrInvalidConfig, t, err)
		}
	}

	return nil
}

func (c *FilterConfig) Type() string {
	return TypeFilter
}

// Filter creates a Func that drops records whose topic is excluded, not
// included, or not matching the topic pattern.
func Filter(config *FilterConfig) (Func, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var topicRegex *regexp.Regexp
	if config.TopicPattern != "" {
		topicRegex = regexp.MustCompile(config.TopicPattern)
	}

	return func(r *record.Record) (*record.Record, error) {
		if r == nil {
			return nil, nil
		}
		if r.Topic == "" {
			return nil, fmt.Errorf("invalid record: missing topic")
		}

		// Filter by excluded topics
		for _, ref := range config.ExcludeTopics {
			if matchesTopic(r.Topic, ref) {
				return nil, nil
			}
		}

		// Filter by included topics
		if len(config.Topics) > 0 {
			included := false
			for _, ref := range config.Topics {
				if matchesTopic(r.Topic, ref) {
					included = true
					break
				}
			}
			if !included {
				return nil, nil
			}
		}

		if topicRegex != nil && !topicRegex.MatchString(r.Topic) {
			return nil, nil
		}

		return r, nil
	}, nil
}

// matchesTopic checks a topic against an exact name or a glob
func matchesTopic(topic, ref string) bool {
	if !strings.ContainsAny(ref, "*?[") {
		return topic == ref
	}
	matched, _ := path.Match(ref, topic)
	return matched
}
