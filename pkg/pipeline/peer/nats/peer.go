package nats

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// PeerNATS implements the source and sink for NATS
type PeerNATS struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	stream  string
	subject string
	codec   codec
	logger  *zap.Logger
	done    chan struct{}
	Config  Config
}

var (
	errConnNotInitialized = errors.New("NATS connection not initialized")
)

// Config represents NATS configuration
// maybe take nats.Options as Config?
type Config struct {
	Servers       []string `json:"servers"`
	Stream        string   `json:"stream"`
	SubjectPrefix string   `json:"subjectPrefix"`
	// SchemasEnable wraps keys and values in a schema/payload JSON envelope
	SchemasEnable bool     `json:"schemasEnable,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	TLS           struct {
		Enabled  bool   `json:"enabled"`
		CertFile string `json:"certFile,omitempty"`
		KeyFile  string `json:"keyFile,omitempty"`
		CAFile   string `json:"caFile,omitempty"`
	} `json:"tls,omitempty"`
}

// Connect establishes a connection to the NATS server
func (p *PeerNATS) Connect(config json.RawMessage, _ ...any) error {
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &p.Config); err != nil {
			return fmt.Errorf("unmarshal NATS config: %w", err)
		}
	}
	p.logger = zap.L().Named(pipeline.ConnectorNATS)

	// Set defaults
	if len(p.Config.Servers) == 0 {
		p.Config.Servers = []string{nats.DefaultURL}
	}
	p.Config.SubjectPrefix = cmp.Or(p.Config.SubjectPrefix, "smt")
	p.Config.Stream = cmp.Or(p.Config.Stream, fmt.Sprintf("%s-stream", p.Config.SubjectPrefix))

	p.subject = fmt.Sprintf("%s.>", p.Config.SubjectPrefix)
	p.codec = newCodec(p.Config.SubjectPrefix, p.Config.SchemasEnable)
	p.done = make(chan struct{})
	opts := defaultOptions(p.Config)

	// Connect to first available server
	var err error
	for _, server := range p.Config.Servers {
		p.nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("connect to NATS server: %w", err)
	}

	if p.js, err = p.nc.JetStream(); err != nil {
		p.nc.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}

	if err := p.ensureStream(); err != nil {
		p.nc.Close()
		return fmt.Errorf("ensure stream: %w", err)
	}

	p.stream = p.Config.Stream
	return nil
}

// Pub publishes a record to <subjectPrefix>.<topic>
func (p *PeerNATS) Pub(r record.Record, _ ...any) error {
	if p.js == nil {
		return errConnNotInitialized
	}

	msg, err := p.codec.toMsg(r)
	if err != nil {
		return err
	}

	if _, err = p.js.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

// Sub subscribes to records from NATS
func (p *PeerNATS) Sub(_ ...any) (<-chan record.Record, error) {
	if p.js == nil {
		return nil, errConnNotInitialized
	}

	records := make(chan record.Record, 100)
	consumer := fmt.Sprintf("%s-consumer", p.Config.SubjectPrefix)

	_, err := p.js.AddConsumer(p.stream, &nats.ConsumerConfig{
		Durable:       consumer,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    3,
		AckWait:       time.Minute,
		FilterSubject: p.subject,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	sub, err := p.js.PullSubscribe(p.subject, consumer)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	go p.processMessages(sub, records)
	return records, nil
}

// processMessages handles subscription message processing
func (p *PeerNATS) processMessages(sub *nats.Subscription, records chan<- record.Record) {
	defer close(records)
	defer sub.Unsubscribe()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(time.Second))
		if err != nil {
			if !errors.Is(err, nats.ErrTimeout) {
				p.logger.Error("fetch messages", zap.Error(err))
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return
			}
			continue
		}

		for _, msg := range msgs {
			r, err := p.codec.toRecord(msg)
			if err != nil {
				p.logger.Error("decode message", zap.String("subject", msg.Subject), zap.Error(err))
				msg.Term()
				continue
			}

			select {
			case records <- r:
				msg.Ack()
			default:
				msg.Nak() // Channel full, retry later
			}
		}
	}
}

// Type returns the connector type
func (p *PeerNATS) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePubSub
}

// Disconnect closes the NATS connection
func (p *PeerNATS) Disconnect() error {
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// ensureStream creates or updates the stream
func (p *PeerNATS) ensureStream() error {
	config := &nats.StreamConfig{
		Name:     p.Config.Stream,
		Subjects: []string{p.subject},
		Storage:  nats.FileStorage,
		Replicas: 1,
	}

	stream, err := p.js.StreamInfo(p.Config.Stream)
	if err == nil {
		if !streamConfigEqual(stream.Config, *config) {
			if _, err = p.js.UpdateStream(config); err != nil {
				return fmt.Errorf("update stream: %w", err)
			}
			p.logger.Info("Updated stream", zap.String("stream", p.Config.Stream))
		}
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("get stream info: %w", err)
	}

	if _, err := p.js.AddStream(config); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	p.logger.Info("Created stream", zap.String("stream", p.Config.Stream))
	return nil
}

// streamConfigEqual checks if two nats.StreamConfig are equivalent
func streamConfigEqual(a, b nats.StreamConfig) bool {
	if a.Name != b.Name || a.Storage != b.Storage || a.Replicas != b.Replicas {
		return false
	}

	if len(a.Subjects) != len(b.Subjects) {
		return false
	}

	for i := range a.Subjects {
		if a.Subjects[i] != b.Subjects[i] {
			return false
		}
	}
	return true
}

func defaultOptions(c Config) []nats.Option {
	opts := []nats.Option{
		nats.Timeout(5 * time.Second),
		nats.PingInterval(10 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}

	if c.Username != "" && c.Password != "" {
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}

	if c.TLS.Enabled {
		var tlsOpt nats.Option
		if c.TLS.CAFile != "" {
			tlsOpt = nats.RootCAs(c.TLS.CAFile)
		} else if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
			tlsOpt = nats.ClientCert(c.TLS.CertFile, c.TLS.KeyFile)
		}
		if tlsOpt != nil {
			opts = append(opts, tlsOpt)
		}
	}

	return opts
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorNATS, func() pipeline.Connector { return &PeerNATS{} })
}
