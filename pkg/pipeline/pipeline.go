package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/edgeflare/smt/pkg/pipeline/transform"
)

// Source is a pipeline input with its transformations.
type Source struct {
	// Name must match one of configured peers
	Name string `mapstructure:"name"`
	// Source transformations are applied (in the order specified) as soon as a record is received before any processing.
	Transformations []transform.Transformation `mapstructure:"transformations"`
}

// Sink is a pipeline output with its transformations.
type Sink struct {
	// Name must match one of configured peers
	Name string `mapstructure:"name"`
	// Sink-specific transformations are applied after source transformations, pipeline transformations and before sending to specific sink
	Transformations []transform.Transformation `mapstructure:"transformations"`
}

// Pipeline configures a complete data processing pipeline.
type Pipeline struct {
	Name    string   `mapstructure:"name"`
	Sources []Source `mapstructure:"sources"`
	// Pipeline transformations are applied after source transformations and before sink transformations.
	// These are applied to all records flowing through a pipeline from its all sources to all sinks
	Transformations []transform.Transformation `mapstructure:"transformations"`
	Sinks           []Sink                     `mapstructure:"sinks"`
}

type Config struct {
	Peers     []Peer     `mapstructure:"peers"`
	Pipelines []Pipeline `mapstructure:"pipelines"`
}

func (c *Config) GetPeer(peerName string) *Peer {
	for _, peer := range c.Peers {
		if peer.Name == peerName {
			return &peer
		}
	}
	return nil
}

func (c *Config) GetPipeline(pipelineName string) *Pipeline {
	for _, pipeline := range c.Pipelines {
		if pipeline.Name == pipelineName {
			return &pipeline
		}
	}
	return nil
}

// Chains holds the transformation chains of a pipeline, built once before any record flows.
type Chains struct {
	Sources  map[string]transform.Func
	Pipeline transform.Func
	Sinks    map[string]transform.Func
}

// Compile builds every transformation chain of pl. Configuration errors, such as
// an invalid rename pattern, are reported here and keep the pipeline from starting.
func (m *Manager) Compile(pl Pipeline) (*Chains, error) {
	chains := &Chains{
		Sources: make(map[string]transform.Func, len(pl.Sources)),
		Sinks:   make(map[string]transform.Func, len(pl.Sinks)),
	}

	for _, source := range pl.Sources {
		fn, err := m.transforms.Chain(source.Transformations)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s source %s: %w", pl.Name, source.Name, err)
		}
		chains.Sources[source.Name] = fn
	}

	fn, err := m.transforms.Chain(pl.Transformations)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", pl.Name, err)
	}
	chains.Pipeline = fn

	for _, sink := range pl.Sinks {
		fn, err := m.transforms.Chain(sink.Transformations)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s sink %s: %w", pl.Name, sink.Name, err)
		}
		chains.Sinks[sink.Name] = fn
	}
	return chains, nil
}

// SetupSinks starts one goroutine per sink of pl that applies the sink
// transformations and publishes to the sink peer.
func SetupSinks(
	ctx context.Context,
	m *Manager,
	wg *sync.WaitGroup,
	pl Pipeline,
	chains *Chains,
	sinkChannels map[string]chan record.Record,
) error {
	for _, sink := range pl.Sinks {
		sinkPeer, err := m.GetPeer(sink.Name)
		if err != nil {
			return fmt.Errorf("sink peer %s not found: %w", sink.Name, err)
		}
		if sinkPeer.Connector().Type() == ConnectorTypeSub {
			return fmt.Errorf("peer %s cannot be used as sink: %w", sink.Name, ErrConnectorTypeMismatch)
		}

		ch := sinkChannels[sink.Name]
		wg.Add(1)
		go m.processSinkRecords(ctx, wg, pl, sink, chains.Sinks[sink.Name], sinkPeer, ch)
	}
	return nil
}
