package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCodecRoundTrip(t *testing.T) {
	schema := data.StructBuilder().
		Field("id", data.Int64Schema).
		Field("name", data.OptionalStringSchema).
		MustBuild()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	in := record.NewBuilder("users").
		WithPartition(4).
		WithKey(nil, data.MapOf("id", int64(1))).
		WithValue(schema, data.MustNewStruct(schema).Set("id", int64(1)).Set("name", "ann")).
		WithTimestamp(ts).
		WithHeader("source", []byte("pg")).
		Build()

	c := newCodec(true)
	msg, err := c.toProducerMessage(in, true)
	require.NoError(t, err)
	assert.Equal(t, int32(4), msg.Partition)
	assert.Equal(t, "users", msg.Topic)
	require.Len(t, msg.Headers, 1)

	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"schema":null,"payload":{"id":1}}`, string(key))

	value, err := msg.Value.Encode()
	require.NoError(t, err)

	out, err := c.toRecord(&sarama.ConsumerMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Key:       key,
		Value:     value,
		Timestamp: ts,
		Headers:   []*sarama.RecordHeader{{Key: []byte("source"), Value: []byte("pg")}},
	})
	require.NoError(t, err)

	assert.Equal(t, in.Topic, out.Topic)
	assert.Equal(t, *in.Partition, *out.Partition)
	assert.Equal(t, in.Timestamp, out.Timestamp)
	assert.Equal(t, in.Headers, out.Headers)
	assert.True(t, schema.Equal(out.ValueSchema))
	assert.True(t, in.Value.(*data.Struct).Equal(out.Value.(*data.Struct)))
}

func TestCodecTombstone(t *testing.T) {
	c := newCodec(false)
	msg, err := c.toProducerMessage(record.NewBuilder("users").WithKey(nil, "k").Build(), false)
	require.NoError(t, err)
	assert.Nil(t, msg.Value)

	out, err := c.toRecord(&sarama.ConsumerMessage{Topic: "users", Key: []byte(`"k"`)})
	require.NoError(t, err)
	assert.Equal(t, "k", out.Key)
	assert.Nil(t, out.Value)
}

func TestCodecPreservePartitionNeedsPartition(t *testing.T) {
	_, err := newCodec(false).toProducerMessage(record.NewBuilder("users").Build(), true)
	assert.Error(t, err)
}

func TestPubSendsMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "orders", msg.Topic)
		return nil
	})

	p := &PeerKafka{
		producer: producer,
		config:   &Config{},
		codec:    newCodec(false),
		logger:   zap.NewNop(),
	}
	r := record.NewBuilder("orders").WithValue(nil, data.MapOf("new", int64(9))).Build()
	require.NoError(t, p.Pub(r))
	require.NoError(t, producer.Close())
}

func TestPubWithoutConnect(t *testing.T) {
	p := &PeerKafka{}
	assert.ErrorIs(t, p.Pub(record.Record{Topic: "x"}), errProducerNotInitialized)
}

func TestToSaramaConfig(t *testing.T) {
	cfg := &Config{
		SASL:              &SASL{Enable: true, Username: "u", Password: "p", Algorithm: "sha512"},
		PreservePartition: true,
		InitialOffset:     "oldest",
	}
	cfg.SetDefaults()
	assert.Contains(t, cfg.ClientID, "smt-")

	conf, err := cfg.ToSaramaConfig()
	require.NoError(t, err)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), conf.Net.SASL.Mechanism)
	assert.NotNil(t, conf.Net.SASL.SCRAMClientGeneratorFunc())
	assert.Equal(t, sarama.OffsetOldest, conf.Consumer.Offsets.Initial)
	require.NoError(t, conf.Validate())

	cfg.SASL.Algorithm = "md5"
	_, err = cfg.ToSaramaConfig()
	assert.Error(t, err)
}
