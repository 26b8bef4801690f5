// Package kafka provides a Kafka peer that consumes and produces records.
//
// Message Format:
//   - Key: JSON encoded record key, or no key for a nil key
//   - Value: JSON encoded record value, or no value (tombstone) for a nil value
//   - Headers: record headers, unchanged
//   - Timestamp: record timestamp
//
// With schemasEnable, keys and values are wrapped in a schema/payload envelope
// so struct records keep their schema across the wire.
//
// Partitioning Strategy:
//   - Default: Hash partitioning based on the key
//   - preservePartition: records keep the partition they were consumed from
//
// Authentication: SASL/SCRAM (sha256, sha512) or plain, optionally over TLS.
package kafka
