package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/record"
)

// codec converts between records and Kafka messages
type codec struct {
	key   converter.Converter
	value converter.Converter
}

func newCodec(schemasEnable bool) codec {
	return codec{
		key:   converter.NewJSONConverter(schemasEnable),
		value: converter.NewJSONConverter(schemasEnable),
	}
}

// toProducerMessage encodes r. The partition is only set when preservePartition
// is true, which requires the manual partitioner.
func (c codec) toProducerMessage(r record.Record, preservePartition bool) (*sarama.ProducerMessage, error) {
	msg := &sarama.ProducerMessage{
		Topic:     r.Topic,
		Timestamp: r.Timestamp,
	}

	key, err := c.key.FromData(r.KeySchema, r.Key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	value, err := c.value.FromData(r.ValueSchema, r.Value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	if value != nil {
		msg.Value = sarama.ByteEncoder(value)
	}

	if preservePartition {
		if r.Partition == nil {
			return nil, fmt.Errorf("record on topic %s has no partition to preserve", r.Topic)
		}
		msg.Partition = *r.Partition
	}

	for _, h := range r.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(h.Key), Value: h.Value})
	}
	return msg, nil
}

// toRecord decodes a consumed message
func (c codec) toRecord(msg *sarama.ConsumerMessage) (record.Record, error) {
	key, err := c.key.ToData(msg.Key)
	if err != nil {
		return record.Record{}, fmt.Errorf("decode key: %w", err)
	}
	value, err := c.value.ToData(msg.Value)
	if err != nil {
		return record.Record{}, fmt.Errorf("decode value: %w", err)
	}

	b := record.NewBuilder(msg.Topic).
		WithPartition(msg.Partition).
		WithKey(key.Schema, key.Value).
		WithValue(value.Schema, value.Value).
		WithTimestamp(msg.Timestamp)
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		b.WithHeader(string(h.Key), h.Value)
	}
	return b.Build(), nil
}
