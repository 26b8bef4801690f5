package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Client handles produce, consume and topic operations
type Client struct {
	config *Config
	logger *zap.Logger
}

// NewClient creates a new Client
func NewClient(config *Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		logger: logger,
	}
}

// newClusterAdmin creates a new sarama.ClusterAdmin
func (c *Client) newClusterAdmin() (sarama.ClusterAdmin, error) {
	saramaConfig, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	admin, err := sarama.NewClusterAdmin(c.config.GetBrokers(), saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster admin: %w", err)
	}

	return admin, nil
}

// CreateProducer creates a new SyncProducer
func (c *Client) CreateProducer() (sarama.SyncProducer, error) {
	conf, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	producer, err := sarama.NewSyncProducer(c.config.GetBrokers(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	return producer, nil
}

// CreateConsumer creates a new Consumer
func (c *Client) CreateConsumer() (sarama.Consumer, error) {
	conf, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	consumer, err := sarama.NewConsumer(c.config.GetBrokers(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return consumer, nil
}

// EnsureTopics creates the configured CreateTopics that do not exist yet
func (c *Client) EnsureTopics() error {
	if len(c.config.CreateTopics) == 0 {
		return nil
	}

	admin, err := c.newClusterAdmin()
	if err != nil {
		return err
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	retention := fmt.Sprintf("%d", c.config.RetentionMS)
	for _, topic := range c.config.CreateTopics {
		if _, exists := topics[topic]; exists {
			continue
		}
		detail := &sarama.TopicDetail{
			NumPartitions:     c.config.Partitions,
			ReplicationFactor: c.config.Replicas,
			ConfigEntries: map[string]*string{
				"retention.ms": &retention,
			},
		}
		if err := admin.CreateTopic(topic, detail, false); err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}
		c.logger.Info("Topic created", zap.String("topic", topic))
	}
	return nil
}
