package record

import (
	"slices"
	"time"

	"github.com/edgeflare/smt/pkg/pipeline/data"
)

// Header is a record header. Keys may repeat.
type Header struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Record is a keyed message flowing through a pipeline.
// Key and Value are either schemaless (nil schema, usually *data.Map) or
// carry a schema (eg *data.Struct with a struct schema).
type Record struct {
	Topic string
	// Partition is nil when the record has not been assigned one
	Partition   *int32
	KeySchema   *data.Schema
	Key         any
	ValueSchema *data.Schema
	Value       any
	// Timestamp is the zero time when unknown
	Timestamp time.Time
	Headers   []Header
}

// KeyPair returns the key side of the record
func (r *Record) KeyPair() data.SchemaAndValue {
	return data.SchemaAndValue{Schema: r.KeySchema, Value: r.Key}
}

// ValuePair returns the value side of the record
func (r *Record) ValuePair() data.SchemaAndValue {
	return data.SchemaAndValue{Schema: r.ValueSchema, Value: r.Value}
}

// WithKey returns a copy of the record with the key side replaced.
// Topic, partition, timestamp, headers and the value side are unchanged.
func (r *Record) WithKey(key data.SchemaAndValue) *Record {
	out := r.clone()
	out.KeySchema = key.Schema
	out.Key = key.Value
	return out
}

// WithValue returns a copy of the record with the value side replaced.
// Topic, partition, timestamp, headers and the key side are unchanged.
func (r *Record) WithValue(value data.SchemaAndValue) *Record {
	out := r.clone()
	out.ValueSchema = value.Schema
	out.Value = value.Value
	return out
}

// WithTopic returns a copy of the record routed to topic
func (r *Record) WithTopic(topic string) *Record {
	out := r.clone()
	out.Topic = topic
	return out
}

// Header returns the last value of the header with the given key
func (r *Record) Header(key string) ([]byte, bool) {
	for i := len(r.Headers) - 1; i >= 0; i-- {
		if r.Headers[i].Key == key {
			return r.Headers[i].Value, true
		}
	}
	return nil, false
}

func (r *Record) clone() *Record {
	out := *r
	if r.Partition != nil {
		p := *r.Partition
		out.Partition = &p
	}
	out.Headers = slices.Clone(r.Headers)
	return &out
}

// Builder helps construct records
type Builder struct {
	record Record
}

func NewBuilder(topic string) *Builder {
	return &Builder{record: Record{Topic: topic}}
}

func (b *Builder) WithPartition(partition int32) *Builder {
	b.record.Partition = &partition
	return b
}

func (b *Builder) WithKey(schema *data.Schema, key any) *Builder {
	b.record.KeySchema = schema
	b.record.Key = key
	return b
}

func (b *Builder) WithValue(schema *data.Schema, value any) *Builder {
	b.record.ValueSchema = schema
	b.record.Value = value
	return b
}

func (b *Builder) WithTimestamp(ts time.Time) *Builder {
	b.record.Timestamp = ts
	return b
}

func (b *Builder) WithHeader(key string, value []byte) *Builder {
	b.record.Headers = append(b.record.Headers, Header{Key: key, Value: value})
	return b
}

func (b *Builder) Build() Record {
	return b.record
}
