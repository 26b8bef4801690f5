package converter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
)

// RecordConverter encodes whole records as single JSON objects, one per line:
//
//	{"topic":"users","partition":0,"timestamp":"2024-05-01T12:00:00Z","headers":[{"key":"k","value":"v"}],"key":...,"value":...}
//
// key and value are written the way Key and Value encode them. A header value
// that is valid UTF-8 is written as a string; any other value is written
// base64 encoded under "base64" instead of "value":
//
//	{"key":"trace","base64":"/wA="}
type RecordConverter struct {
	Key   *JSONConverter
	Value *JSONConverter
}

func NewRecordConverter(schemasEnable bool) *RecordConverter {
	return &RecordConverter{
		Key:   NewJSONConverter(schemasEnable),
		Value: NewJSONConverter(schemasEnable),
	}
}

// Encode writes r as one JSON object without a trailing newline
func (c *RecordConverter) Encode(r *record.Record) ([]byte, error) {
	out := data.NewMap(6)
	out.Set("topic", r.Topic)
	if r.Partition != nil {
		out.Set("partition", *r.Partition)
	}
	if !r.Timestamp.IsZero() {
		out.Set("timestamp", r.Timestamp.Format(time.RFC3339Nano))
	}
	if len(r.Headers) > 0 {
		headers := make([]any, 0, len(r.Headers))
		for _, h := range r.Headers {
			headers = append(headers, encodeHeader(h))
		}
		out.Set("headers", headers)
	}

	key, err := c.Key.toJSONValue(r.KeySchema, r.Key)
	if err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	out.Set("key", key)

	value, err := c.Value.toJSONValue(r.ValueSchema, r.Value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	out.Set("value", value)

	return json.Marshal(out)
}

// Decode reads one record written by Encode
func (c *RecordConverter) Decode(b []byte) (*record.Record, error) {
	v, err := data.DecodeJSON(b)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	obj, ok := v.(*data.Map)
	if !ok {
		return nil, fmt.Errorf("decode record: expected a JSON object, got %T", v)
	}

	r := &record.Record{}
	topic, _ := obj.Get("topic")
	if r.Topic, ok = topic.(string); !ok || r.Topic == "" {
		return nil, fmt.Errorf("decode record: missing topic")
	}

	if p, ok := obj.Get("partition"); ok && p != nil {
		n, isInt := p.(int64)
		if !isInt || n < 0 || n > 1<<31-1 {
			return nil, fmt.Errorf("decode record: invalid partition %v", p)
		}
		partition := int32(n)
		r.Partition = &partition
	}

	if ts, ok := obj.Get("timestamp"); ok && ts != nil {
		switch t := ts.(type) {
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("decode record: invalid timestamp: %w", err)
			}
			r.Timestamp = parsed
		case int64:
			r.Timestamp = time.UnixMilli(t).UTC()
		default:
			return nil, fmt.Errorf("decode record: invalid timestamp %v", ts)
		}
	}

	if hs, ok := obj.Get("headers"); ok && hs != nil {
		items, isList := hs.([]any)
		if !isList {
			return nil, fmt.Errorf("decode record: headers must be an array")
		}
		for i, item := range items {
			h, isObj := item.(*data.Map)
			if !isObj {
				return nil, fmt.Errorf("decode record: header %d must be an object", i)
			}
			header, err := decodeHeader(h)
			if err != nil {
				return nil, fmt.Errorf("decode record: header %d: %w", i, err)
			}
			r.Headers = append(r.Headers, header)
		}
	}

	rawKey, _ := obj.Get("key")
	key, err := c.Key.fromJSONValue(rawKey)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	r.KeySchema, r.Key = key.Schema, key.Value

	rawValue, _ := obj.Get("value")
	value, err := c.Value.fromJSONValue(rawValue)
	if err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	r.ValueSchema, r.Value = value.Schema, value.Value

	return r, nil
}

func encodeHeader(h record.Header) *data.Map {
	if utf8.Valid(h.Value) {
		return data.MapOf("key", h.Key, "value", string(h.Value))
	}
	return data.MapOf("key", h.Key, "base64", base64.StdEncoding.EncodeToString(h.Value))
}

func decodeHeader(h *data.Map) (record.Header, error) {
	hk, _ := h.Get("key")
	key, _ := hk.(string)

	if raw, ok := h.Get("base64"); ok {
		s, isString := raw.(string)
		if !isString {
			return record.Header{}, fmt.Errorf("base64 value must be a string")
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return record.Header{}, fmt.Errorf("invalid base64 value: %w", err)
		}
		return record.Header{Key: key, Value: b}, nil
	}

	hv, _ := h.Get("value")
	switch v := hv.(type) {
	case nil:
		return record.Header{Key: key}, nil
	case string:
		return record.Header{Key: key, Value: []byte(v)}, nil
	default:
		return record.Header{}, fmt.Errorf("value must be a string, got %T", hv)
	}
}
