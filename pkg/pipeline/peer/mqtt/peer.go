package mqtt

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

var errClientNotInitialized = errors.New("MQTT client not initialized")

// PeerMQTT implements the source and sink functionality for MQTT
type PeerMQTT struct {
	*Client
	Config Config
	codec  codec
}

type Config struct {
	Servers       []string `json:"servers"`
	TopicPrefix   string   `json:"topicPrefix"`
	QoS           byte     `json:"qos,omitempty"`
	SchemasEnable bool     `json:"schemasEnable,omitempty"`
	ClientOptions `json:"clientOptions"`
}

func (p *PeerMQTT) Connect(config json.RawMessage, _ ...any) error {
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &p.Config); err != nil {
			return fmt.Errorf("failed to unmarshal MQTT config: %w", err)
		}
	}
	p.Config.TopicPrefix = strings.Trim(cmp.Or(p.Config.TopicPrefix, "smt"), "/")
	p.codec = codec{prefix: p.Config.TopicPrefix, records: converter.NewRecordConverter(p.Config.SchemasEnable)}

	mqttOpts, err := toPahoOptions(p.Config.Servers, &p.Config.ClientOptions)
	if err != nil {
		return err
	}

	p.Client = NewClient(mqttOpts, zap.L().Named(pipeline.ConnectorMQTT))
	if err := p.Client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

// Pub publishes r to <topicPrefix>/<topic>
func (p *PeerMQTT) Pub(r record.Record, _ ...any) error {
	if p.Client == nil {
		return errClientNotInitialized
	}
	topic, payload, err := p.codec.encode(&r)
	if err != nil {
		return err
	}
	return p.Client.Publish(topic, p.Config.QoS, false, payload)
}

// Sub subscribes to <topicPrefix>/#. Messages that do not decode are logged and skipped.
func (p *PeerMQTT) Sub(_ ...any) (<-chan record.Record, error) {
	if p.Client == nil {
		return nil, errClientNotInitialized
	}

	records := make(chan record.Record, 100)
	err := p.Client.Subscribe(p.codec.prefix+"/#", p.Config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		r, err := p.codec.decode(msg.Topic(), msg.Payload())
		if err != nil {
			p.logger.Warn("invalid record", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}

		select {
		case records <- *r:
		default:
			p.logger.Warn("record channel full, dropping message", zap.String("topic", msg.Topic()))
		}
	})
	if err != nil {
		close(records)
		return nil, fmt.Errorf("mqtt subscribe failed: %w", err)
	}

	return records, nil
}

func (p *PeerMQTT) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePubSub
}

func (p *PeerMQTT) Disconnect() error {
	if p.Client != nil {
		p.Client.Disconnect()
	}
	return nil
}

// codec maps records to MQTT topics and payloads
type codec struct {
	prefix  string
	records *converter.RecordConverter
}

func (c codec) encode(r *record.Record) (string, []byte, error) {
	payload, err := c.records.Encode(r)
	if err != nil {
		return "", nil, fmt.Errorf("encode record: %w", err)
	}
	return c.prefix + "/" + r.Topic, payload, nil
}

func (c codec) decode(topic string, payload []byte) (*record.Record, error) {
	suffix := strings.TrimPrefix(strings.TrimPrefix(topic, "/"), c.prefix+"/")
	if suffix == "" || suffix == topic {
		return nil, fmt.Errorf("topic %s is outside prefix %s", topic, c.prefix)
	}

	// fill in the topic before decoding so documents may omit it
	v, err := data.DecodeJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	obj, ok := v.(*data.Map)
	if !ok {
		return nil, fmt.Errorf("decode record: expected a JSON object, got %T", v)
	}
	if t, _ := obj.Get("topic"); t == nil || t == "" {
		obj.Set("topic", suffix)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return c.records.Decode(b)
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorMQTT, func() pipeline.Connector { return &PeerMQTT{} })
}
