package pipeline

// Peer is a record source/destination with an associated connector (ie Kafka, NATS).
type Peer struct {
	Name          string `mapstructure:"name"`
	ConnectorName string `mapstructure:"connector"`
	// Config contains the connection config of underlying library
	// eg brokers and SASL settings for github.com/IBM/sarama
	Config map[string]any `mapstructure:"config"`
	// Extra arguments for Connect, Pub, Sub methods
	Args []any `mapstructure:"-"`

	connector Connector
}

// Connector returns the connector instance of the peer. It is nil until the
// peer has been added to a Manager.
func (p *Peer) Connector() Connector {
	return p.connector
}
