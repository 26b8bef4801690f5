package pipeline

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/edgeflare/smt/pkg/pipeline/record"
)

type ConnectorType int

const (
	ConnectorTypeUnknown ConnectorType = iota
	ConnectorTypePub                   // Sink / consumer-only
	ConnectorTypeSub                   // Source / producer-only
	ConnectorTypePubSub                // Source and sink
)

var (
	ErrConnectorTypeMismatch = errors.New("connector type mismatch")
	ErrPeerNotFound          = errors.New("peer not found")
)

// A Connector represents a data pipeline component.
type Connector interface {
	// Connect initializes the connector with the provided configuration.
	// The config parameter is a raw JSON message containing connector-specific settings.
	// Additional arguments can be passed via the args parameter.
	Connect(config json.RawMessage, args ...any) error

	// Pub sends the given record to the connector's destination.
	// It returns an error if the publish operation fails.
	Pub(r record.Record, args ...any) error

	// Sub provides a channel for consuming records.
	Sub(args ...any) (<-chan record.Record, error)

	// Type returns the type of the connector (SUB, PUB, or PUBSUB)
	Type() ConnectorType

	Disconnect() error
}

// Predefined connectors
const (
	ConnectorClickHouse = "clickhouse"
	ConnectorDebug      = "debug"
	ConnectorKafka      = "kafka"
	ConnectorMQTT       = "mqtt"
	ConnectorNATS       = "nats"
	ConnectorPostgres   = "postgres"
)

var (
	connectors   = make(map[string]func() Connector)
	connectorsMu sync.RWMutex
)

// RegisterConnector adds a new connector to the registry.
// The name parameter is used as a key to identify the connector type.
// newConnector is called once per peer so peers sharing a connector do not share state.
func RegisterConnector(name string, newConnector func() Connector) {
	connectorsMu.Lock()
	defer connectorsMu.Unlock()
	connectors[name] = newConnector
}

func lookupConnector(name string) (func() Connector, bool) {
	connectorsMu.RLock()
	defer connectorsMu.RUnlock()
	newConnector, ok := connectors[name]
	return newConnector, ok
}

// Connectors returns the names of all registered connectors
func Connectors() []string {
	connectorsMu.RLock()
	defer connectorsMu.RUnlock()
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	return names
}
