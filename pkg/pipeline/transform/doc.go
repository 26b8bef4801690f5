// Package transform provides single message transformations applied to records as they flow through a pipeline.
// It's inspired by Kafka Connect's [Single Message Transformations (SMTs)](https://docs.confluent.io/platform/current/connect/transforms/overview.html).
//
// The central transformation is patternRename, which renames the top-level fields of a record's key or value
// with a regular expression:
//
//	transformations:
//	- type: patternRename
//	  config:
//	    pattern: "_v[0-9]+$"
//	    replacement: ""
//	    target: value
//
// Transformations are built once from configuration and then applied to every record.
package transform
