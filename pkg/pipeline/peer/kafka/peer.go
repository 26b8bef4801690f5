package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

var errProducerNotInitialized = errors.New("Kafka producer not initialized")

// PeerKafka implements the source and sink for Kafka
type PeerKafka struct {
	producer sarama.SyncProducer
	consumer sarama.Consumer
	config   *Config
	client   *Client
	codec    codec
	logger   *zap.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

func (p *PeerKafka) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal Kafka config: %w", err)
		}
	}
	cfg.SetDefaults()

	p.config = &cfg
	p.logger = zap.L().Named(pipeline.ConnectorKafka)
	p.client = NewClient(p.config, p.logger)
	p.codec = newCodec(cfg.SchemasEnable)
	p.done = make(chan struct{})

	producer, err := p.client.CreateProducer()
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	p.producer = producer

	if err := p.client.EnsureTopics(); err != nil {
		producer.Close()
		return fmt.Errorf("failed to ensure topics: %w", err)
	}

	return nil
}

// Pub publishes a record to the record's topic
func (p *PeerKafka) Pub(r record.Record, args ...any) error {
	if p.producer == nil {
		return errProducerNotInitialized
	}

	msg, err := p.codec.toProducerMessage(r, p.config.PreservePartition)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published message",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Sub consumes every partition of the configured topics
func (p *PeerKafka) Sub(args ...any) (<-chan record.Record, error) {
	if p.config == nil {
		return nil, errProducerNotInitialized
	}
	if len(p.config.Topics) == 0 {
		return nil, fmt.Errorf("no topics configured to consume")
	}

	consumer, err := p.client.CreateConsumer()
	if err != nil {
		return nil, err
	}
	p.consumer = consumer

	saramaConfig, err := p.config.ToSaramaConfig()
	if err != nil {
		return nil, err
	}

	records := make(chan record.Record, 100)
	var partitionConsumers []sarama.PartitionConsumer
	for _, topic := range p.config.Topics {
		partitions, err := consumer.Partitions(topic)
		if err != nil {
			closeAll(partitionConsumers)
			return nil, fmt.Errorf("failed to list partitions of %s: %w", topic, err)
		}
		for _, partition := range partitions {
			pc, err := consumer.ConsumePartition(topic, partition, saramaConfig.Consumer.Offsets.Initial)
			if err != nil {
				closeAll(partitionConsumers)
				return nil, fmt.Errorf("failed to consume %s/%d: %w", topic, partition, err)
			}
			partitionConsumers = append(partitionConsumers, pc)
		}
	}

	for _, pc := range partitionConsumers {
		p.wg.Add(1)
		go p.consumePartition(pc, records)
	}

	go func() {
		p.wg.Wait()
		close(records)
	}()

	return records, nil
}

func (p *PeerKafka) consumePartition(pc sarama.PartitionConsumer, records chan<- record.Record) {
	defer p.wg.Done()
	defer pc.AsyncClose()

	for {
		select {
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			r, err := p.codec.toRecord(msg)
			if err != nil {
				p.logger.Error("Failed to decode message",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
			select {
			case records <- r:
			case <-p.done:
				return
			}
		case err, ok := <-pc.Errors():
			if ok {
				p.logger.Error("Consumer error", zap.Error(err))
			}
		case <-p.done:
			return
		}
	}
}

func closeAll(pcs []sarama.PartitionConsumer) {
	for _, pc := range pcs {
		pc.AsyncClose()
	}
}

func (p *PeerKafka) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePubSub
}

func (p *PeerKafka) Disconnect() error {
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
	p.wg.Wait()

	var errs []error
	if p.consumer != nil {
		errs = append(errs, p.consumer.Close())
	}
	if p.producer != nil {
		errs = append(errs, p.producer.Close())
	}
	return errors.Join(errs...)
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorKafka, func() pipeline.Connector { return &PeerKafka{} })
}
