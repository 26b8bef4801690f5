// Package pipeline moves records between `Peer`s (ie data source/destination)
// and applies transformations to them on the way.
//
// Supported peer types include Kafka and NATS JetStream, plus a debug sink
// that logs records.
//
// It defines a `Connector` interface that all `Peer` types must implement.
// Each pipeline has sources, sinks and three levels of transformations
// (source, pipeline and sink), compiled once when the pipeline starts.
package pipeline
