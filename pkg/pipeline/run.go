package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgeflare/smt/pkg/pipeline/record"
)

// sinkBufferSize is the capacity of each sink channel
const sinkBufferSize = 100

// Start compiles and starts every pipeline of config. Peers must already be
// connected with Init. Goroutines stop when ctx is done.
func (m *Manager) Start(ctx context.Context, wg *sync.WaitGroup, config *Config) error {
	for _, pl := range config.Pipelines {
		if err := m.setupPipeline(ctx, wg, pl); err != nil {
			return fmt.Errorf("failed to setup pipeline %s: %w", pl.Name, err)
		}
	}
	return nil
}

// setupPipeline handles the setup of a single pipeline
func (m *Manager) setupPipeline(ctx context.Context, wg *sync.WaitGroup, pl Pipeline) error {
	chains, err := m.Compile(pl)
	if err != nil {
		return err
	}

	// Create channels for each sink that will be shared across all sources
	sinkChannels := make(map[string]chan record.Record)
	for _, sink := range pl.Sinks {
		sinkChannels[sink.Name] = make(chan record.Record, sinkBufferSize)
	}

	// Setup each source independently
	for _, source := range pl.Sources {
		if err := m.setupSource(ctx, wg, pl, chains, source, sinkChannels); err != nil {
			return fmt.Errorf("failed to setup source %s: %w", source.Name, err)
		}
	}

	// Setup sinks to process records from all sources
	return SetupSinks(ctx, m, wg, pl, chains, sinkChannels)
}

// setupSource configures and starts a single source within a pipeline
func (m *Manager) setupSource(
	ctx context.Context,
	wg *sync.WaitGroup,
	pl Pipeline,
	chains *Chains,
	source Source,
	sinkChannels map[string]chan record.Record,
) error {
	peer, err := m.GetPeer(source.Name)
	if err != nil {
		return err
	}
	if peer.Connector().Type() == ConnectorTypePub {
		return fmt.Errorf("peer %s cannot be used as source: %w", source.Name, ErrConnectorTypeMismatch)
	}

	// Check if this is the first subscription before adding the new one
	isFirst := m.IsFirstSubscription(source.Name)

	m.AddSubscription(source.Name, SourceSubscription{
		Pipeline:     pl,
		Chains:       chains,
		SinkChannels: sinkChannels,
	})

	// Only set up the source connection for the first subscription
	if isFirst {
		records, err := peer.Connector().Sub(peer.Args...)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", source.Name, err)
		}

		// Start source record processing with fan-out
		wg.Add(1)
		go m.ProcessSourceRecords(ctx, wg, source.Name, records)
	}
	return nil
}
