// Package nats provides a NATS JetStream peer that consumes and produces records.
//
// NATS subject (aka topic) patterns:
//   - Case-sensitive, dot-separated, no spaces
//   - Valid chars: alphanumeric, `-` or `_`
//   - Max length: 255 bytes
//
// A record on topic `users` is published to `<subjectPrefix>.users`. Consumed
// messages get the subject without the prefix as their topic.
//
// Message Format:
//   - Data: JSON encoded record value
//   - Header Smt-Key: JSON encoded record key
//   - Header Smt-Partition: record partition, if any
//   - Header Smt-Timestamp: record timestamp in RFC 3339 format, if any
//   - Other headers: record headers, unchanged
package nats
