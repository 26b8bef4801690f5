package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/edgeflare/smt/pkg/pipeline/transform"
	"go.uber.org/zap"
)

type SourceSubscription struct {
	Pipeline     Pipeline
	Chains       *Chains
	SinkChannels map[string]chan record.Record
}

// Manager handles connectors and peers for data pipeline operations.
type Manager struct {
	peers         map[string]*Peer
	subscriptions map[string][]SourceSubscription
	mu            sync.RWMutex
	transforms    *transform.Manager
	logger        *zap.Logger
	// connectRetries is the number of Connect retries after the first attempt
	connectRetries uint64
	connectBackoff time.Duration
}

type Option func(*Manager)

// WithLogger sets the logger of the manager and of the transformations it builds
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithConnectRetry sets how often and how soon a failed peer connection is retried
func WithConnectRetry(retries uint64, initialInterval time.Duration) Option {
	return func(m *Manager) {
		m.connectRetries = retries
		m.connectBackoff = initialInterval
	}
}

// NewManager returns a new Manager instance with the default connectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		peers:          map[string]*Peer{},
		subscriptions:  map[string][]SourceSubscription{},
		connectRetries: 3,
		connectBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger, _ = zap.NewProduction()
	}

	m.transforms = transform.NewManager(transform.WithLogger(m.logger))
	m.transforms.RegisterBuiltins()
	return m
}

// Transforms returns the transformation manager used to compile pipelines
func (m *Manager) Transforms() *transform.Manager {
	return m.transforms
}

// AddPeer creates a new Peer with its own connector instance
func (m *Manager) AddPeer(connector string, name string) (*Peer, error) {
	newConnector, exists := lookupConnector(connector)
	if !exists {
		return nil, fmt.Errorf("connector %s not found", connector)
	}

	peer := &Peer{ConnectorName: connector, Name: name, connector: newConnector()}
	m.mu.Lock()
	m.peers[name] = peer
	m.mu.Unlock()
	return peer, nil
}

func (m *Manager) Peers() []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	peers := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, *p)
	}
	return peers
}

func (m *Manager) GetPeer(name string) (*Peer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if peer, exists := m.peers[name]; exists {
		return peer, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, name)
}

// AddSubscription adds a new subscription for a source
func (m *Manager) AddSubscription(sourceName string, sub SourceSubscription) {
	m.mu.Lock()
	m.subscriptions[sourceName] = append(m.subscriptions[sourceName], sub)
	m.mu.Unlock()
}

// GetSubscriptions returns all subscriptions for a source
func (m *Manager) GetSubscriptions(sourceName string) []SourceSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscriptions[sourceName]
}

// IsFirstSubscription checks if this is the first subscription for a source
func (m *Manager) IsFirstSubscription(sourceName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions[sourceName]) == 0
}

// Init initializes all peers from configuration
func (m *Manager) Init(config *Config) error {
	m.logger.Info("Initializing pipeline manager", zap.Int("peerCount", len(config.Peers)))
	for _, p := range config.Peers {
		m.logger.Debug("Adding peer",
			zap.String("name", p.Name),
			zap.String("connector", p.ConnectorName))

		peer, err := m.AddPeer(p.ConnectorName, p.Name)
		if err != nil {
			m.logger.Error("Failed to add peer",
				zap.String("name", p.Name),
				zap.String("connector", p.ConnectorName),
				zap.Error(err))
			return fmt.Errorf("failed to add peer %s: %w", p.Name, err)
		}

		// Store the config in the peer
		peer.Config = p.Config
		peer.Args = p.Args
		configJSON, err := json.Marshal(peer.Config)
		if err != nil {
			m.logger.Error("Failed to marshal config for peer",
				zap.String("name", peer.Name),
				zap.Error(err))
			return fmt.Errorf("failed to marshal config for peer %s: %w", peer.Name, err)
		}

		m.logger.Debug("Connecting peer",
			zap.String("name", peer.Name),
			zap.String("connector", p.ConnectorName))

		if err := m.connect(peer, configJSON); err != nil {
			m.logger.Error("Failed to initialize connector after retries",
				zap.String("name", peer.Name),
				zap.Error(err))
			return fmt.Errorf("failed to initialize connector %s: %w", peer.Name, err)
		}

		m.logger.Info("Successfully connected peer",
			zap.String("name", peer.Name),
			zap.String("connector", p.ConnectorName))
	}

	m.logger.Info("Successfully initialized all peers", zap.Int("totalPeers", len(m.peers)))
	return nil
}

// connect calls Connect on the peer's connector, retrying with exponential backoff
func (m *Manager) connect(peer *Peer, configJSON []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.connectBackoff
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(
		func() error {
			return peer.Connector().Connect(json.RawMessage(configJSON), peer.Args...)
		},
		backoff.WithMaxRetries(b, m.connectRetries),
		func(err error, delay time.Duration) {
			m.logger.Warn("Retrying connection",
				zap.String("name", peer.Name),
				zap.Duration("delay", delay),
				zap.Error(err))
		},
	)
}

// Close disconnects all peers
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, peer := range m.peers {
		if err := peer.Connector().Disconnect(); err != nil {
			m.logger.Error("Failed to disconnect peer", zap.String("name", peer.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("disconnect %s: %w", peer.Name, err))
		}
	}
	return errors.Join(errs...)
}
