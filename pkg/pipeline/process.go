package pipeline

import (
	"context"
	"sync"

	"github.com/edgeflare/smt/pkg/metrics"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/edgeflare/smt/pkg/pipeline/transform"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func (m *Manager) distributeToSinks(
	pl Pipeline,
	source Source,
	r record.Record,
	sinkChannels map[string]chan record.Record,
) {
	for _, sink := range pl.Sinks {
		if ch, ok := sinkChannels[sink.Name]; ok {
			select {
			case ch <- r:
				metrics.ProcessedRecords.WithLabelValues(
					pl.Name,
					source.Name,
					sink.Name,
				).Inc()
			default:
				m.logger.Warn("Sink channel is full, dropping record",
					zap.String("pipeline", pl.Name),
					zap.String("sink", sink.Name),
					zap.String("topic", r.Topic))
			}
		}
	}
}

func applyTransformations(r *record.Record, fn transform.Func) (*record.Record, error) {
	if fn == nil {
		return r, nil
	}
	return fn(r)
}

// processSinkRecords handles records from multiple sources
func (m *Manager) processSinkRecords(
	ctx context.Context,
	wg *sync.WaitGroup,
	pl Pipeline,
	sink Sink,
	chain transform.Func,
	peer *Peer,
	ch <-chan record.Record,
) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return
			}

			// Apply sink-specific transformations
			transformed, err := applyTransformations(&r, chain)
			if err != nil {
				metrics.TransformationErrors.WithLabelValues(
					"sink",
					pl.Name,
					"multiple",
					sink.Name,
				).Inc()
				m.logger.Error("Sink transformation error",
					zap.String("pipeline", pl.Name),
					zap.String("sink", sink.Name),
					zap.String("topic", r.Topic),
					zap.Error(err))
				continue
			}
			if transformed == nil {
				continue
			}

			// Publish the transformed record
			if err := peer.Connector().Pub(*transformed, peer.Args...); err != nil {
				metrics.PublishErrors.WithLabelValues(sink.Name).Inc()
				m.logger.Error("Publish error",
					zap.String("sink", peer.Name),
					zap.String("topic", transformed.Topic),
					zap.Error(err))
			}

		case <-ctx.Done():
			return
		}
	}
}

// ProcessRecord runs the source and pipeline transformations of pl on r and
// hands the result to every sink channel of the pipeline.
func (m *Manager) ProcessRecord(
	pl Pipeline,
	chains *Chains,
	source Source,
	r record.Record,
	sinkChannels map[string]chan record.Record,
) {
	timer := prometheus.NewTimer(metrics.RecordProcessingDuration.WithLabelValues(
		pl.Name,
		source.Name,
		"",
	))
	defer timer.ObserveDuration()

	transformed := m.applyRecordTransformations(r, chains, source, pl)
	if transformed == nil {
		return
	}

	m.distributeToSinks(pl, source, *transformed, sinkChannels)
}

// applyRecordTransformations applies source then pipeline transformations to a record
func (m *Manager) applyRecordTransformations(
	r record.Record,
	chains *Chains,
	source Source,
	pl Pipeline,
) *record.Record {
	// Source transformations
	transformed, err := applyTransformations(&r, chains.Sources[source.Name])
	if err != nil {
		metrics.TransformationErrors.WithLabelValues(
			"source",
			pl.Name,
			source.Name,
			"",
		).Inc()
		m.logger.Error("Source transformation error",
			zap.String("pipeline", pl.Name),
			zap.String("source", source.Name),
			zap.String("topic", r.Topic),
			zap.Error(err))
		return nil
	}
	if transformed == nil {
		return nil
	}

	// Pipeline transformations
	transformed, err = applyTransformations(transformed, chains.Pipeline)
	if err != nil {
		metrics.TransformationErrors.WithLabelValues(
			"pipeline",
			pl.Name,
			source.Name,
			"",
		).Inc()
		m.logger.Error("Pipeline transformation error",
			zap.String("pipeline", pl.Name),
			zap.String("source", source.Name),
			zap.String("topic", r.Topic),
			zap.Error(err))
		return nil
	}

	return transformed
}

// ProcessSourceRecords fans records of one source out to every pipeline subscribed to it
// until records is closed or ctx is done.
func (m *Manager) ProcessSourceRecords(
	ctx context.Context,
	wg *sync.WaitGroup,
	sourceName string,
	records <-chan record.Record,
) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-records:
			if !ok {
				return
			}

			for _, sub := range m.GetSubscriptions(sourceName) {
				var matchingSource *Source
				for i := range sub.Pipeline.Sources {
					if sub.Pipeline.Sources[i].Name == sourceName {
						matchingSource = &sub.Pipeline.Sources[i]
						break
					}
				}
				if matchingSource == nil {
					m.logger.Warn("Source not found in pipeline",
						zap.String("source", sourceName),
						zap.String("pipeline", sub.Pipeline.Name))
					continue
				}

				m.ProcessRecord(sub.Pipeline, sub.Chains, *matchingSource, r, sub.SinkChannels)
			}

		case <-ctx.Done():
			return
		}
	}
}
