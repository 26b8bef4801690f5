package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Config represents Kafka-specific configuration
type Config struct {
	Brokers  []string `json:"brokers"`
	Version  string   `json:"version,omitempty"`
	ClientID string   `json:"clientId,omitempty"`
	SASL     *SASL    `json:"sasl,omitempty"`
	TLS      TLS      `json:"tls,omitempty"`

	// Topics are consumed when the peer is a source
	Topics []string `json:"topics,omitempty"`
	// InitialOffset is "newest" (default) or "oldest"
	InitialOffset string `json:"initialOffset,omitempty"`
	// PreservePartition publishes records to their own partition instead of hashing the key
	PreservePartition bool `json:"preservePartition,omitempty"`
	// SchemasEnable wraps keys and values in a schema/payload JSON envelope
	SchemasEnable bool `json:"schemasEnable,omitempty"`

	// CreateTopics are created on connect if missing, with the settings below
	CreateTopics []string `json:"createTopics,omitempty"`
	Partitions   int32    `json:"partitions,omitempty"`
	Replicas     int16    `json:"replicas,omitempty"`
	RetentionMS  int64    `json:"retentionMs,omitempty"`
}

// SASL represents SASL authentication configuration
type SASL struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Algorithm is sha256, sha512 or plain
	Algorithm string `json:"algorithm"`
	Enable    bool   `json:"enable"`
}

// TLS represents TLS configuration
type TLS struct {
	CertFile   string `json:"certFile,omitempty"`
	KeyFile    string `json:"keyFile,omitempty"`
	CAFile     string `json:"caFile,omitempty"`
	Enable     bool   `json:"enable,omitempty"`
	SkipVerify bool   `json:"skipVerify,omitempty"`
}

// SetDefaults fills in unset fields
func (c *Config) SetDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Version == "" {
		c.Version = "2.1.1"
	}
	if c.ClientID == "" {
		c.ClientID = "smt-" + uuid.NewString()
	}
	if c.InitialOffset == "" {
		c.InitialOffset = "newest"
	}
	if c.Partitions == 0 {
		c.Partitions = 1
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
	if c.RetentionMS == 0 {
		c.RetentionMS = 7 * 24 * 60 * 60 * 1000 // 7 days
	}
}

// ToSaramaConfig converts the Config to a sarama.Config
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	conf := sarama.NewConfig()

	// Set Kafka version
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("error parsing Kafka version: %w", err)
	}
	conf.Version = version

	// Configure SASL
	if c.SASL != nil && c.SASL.Enable {
		conf.Net.SASL.Enable = true
		conf.Net.SASL.User = c.SASL.Username
		conf.Net.SASL.Password = c.SASL.Password
		conf.Net.SASL.Handshake = true

		switch strings.ToLower(c.SASL.Algorithm) {
		case "sha512":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		case "sha256":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "plain", "":
			conf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			return nil, fmt.Errorf("invalid SASL algorithm: %s", c.SASL.Algorithm)
		}
	}

	// Configure TLS
	if c.TLS.Enable {
		tlsConfig, err := createTLSConfiguration(c.TLS)
		if err != nil {
			return nil, err
		}
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConfig
	}

	switch c.InitialOffset {
	case "oldest":
		conf.Consumer.Offsets.Initial = sarama.OffsetOldest
	case "newest", "":
		conf.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		return nil, fmt.Errorf("invalid initial offset: %s", c.InitialOffset)
	}
	conf.Consumer.Return.Errors = true

	// Configure producer
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Retry.Max = 5
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	if c.PreservePartition {
		conf.Producer.Partitioner = sarama.NewManualPartitioner
	}

	conf.ClientID = c.ClientID
	conf.Metadata.Full = true

	return conf, nil
}

func createTLSConfiguration(tlsCfg TLS) (*tls.Config, error) {
	t := &tls.Config{
		InsecureSkipVerify: tlsCfg.SkipVerify,
	}

	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		t.Certificates = []tls.Certificate{cert}
	}

	if tlsCfg.CAFile != "" {
		caCert, err := os.ReadFile(tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)
		t.RootCAs = caCertPool
	}

	return t, nil
}

// GetBrokers returns the list of Kafka brokers
func (c *Config) GetBrokers() []string {
	return c.Brokers
}
