package nats

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/nats-io/nats.go"
)

const (
	headerKey       = "Smt-Key"
	headerPartition = "Smt-Partition"
	headerTimestamp = "Smt-Timestamp"
)

// codec converts between records and NATS messages
type codec struct {
	prefix string
	key    converter.Converter
	value  converter.Converter
}

func newCodec(prefix string, schemasEnable bool) codec {
	return codec{
		prefix: prefix,
		key:    converter.NewJSONConverter(schemasEnable),
		value:  converter.NewJSONConverter(schemasEnable),
	}
}

func (c codec) toMsg(r record.Record) (*nats.Msg, error) {
	if r.Topic == "" {
		return nil, fmt.Errorf("record has no topic")
	}
	msg := nats.NewMsg(c.prefix + "." + r.Topic)

	value, err := c.value.FromData(r.ValueSchema, r.Value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	msg.Data = value

	for _, h := range r.Headers {
		msg.Header.Add(h.Key, string(h.Value))
	}

	key, err := c.key.FromData(r.KeySchema, r.Key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	if key != nil {
		msg.Header.Set(headerKey, string(key))
	}
	if r.Partition != nil {
		msg.Header.Set(headerPartition, strconv.FormatInt(int64(*r.Partition), 10))
	}
	if !r.Timestamp.IsZero() {
		msg.Header.Set(headerTimestamp, r.Timestamp.Format(time.RFC3339Nano))
	}
	return msg, nil
}

func (c codec) toRecord(msg *nats.Msg) (record.Record, error) {
	topic := strings.TrimPrefix(msg.Subject, c.prefix+".")
	b := record.NewBuilder(topic)

	var key []byte
	for _, name := range slices.Sorted(maps.Keys(msg.Header)) {
		switch name {
		case headerKey:
			key = []byte(msg.Header.Get(headerKey))
		case headerPartition:
			p, err := strconv.ParseInt(msg.Header.Get(headerPartition), 10, 32)
			if err != nil {
				return record.Record{}, fmt.Errorf("invalid partition header: %w", err)
			}
			b.WithPartition(int32(p))
		case headerTimestamp:
			ts, err := time.Parse(time.RFC3339Nano, msg.Header.Get(headerTimestamp))
			if err != nil {
				return record.Record{}, fmt.Errorf("invalid timestamp header: %w", err)
			}
			b.WithTimestamp(ts)
		default:
			for _, v := range msg.Header[name] {
				b.WithHeader(name, []byte(v))
			}
		}
	}

	k, err := c.key.ToData(key)
	if err != nil {
		return record.Record{}, fmt.Errorf("decode key: %w", err)
	}
	v, err := c.value.ToData(msg.Data)
	if err != nil {
		return record.Record{}, fmt.Errorf("decode value: %w", err)
	}
	b.WithKey(k.Schema, k.Value).WithValue(v.Schema, v.Value)
	return b.Build(), nil
}
