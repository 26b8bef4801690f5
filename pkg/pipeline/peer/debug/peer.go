package debug

import (
	"encoding/json"
	"fmt"

	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

// Config of the debug peer
type Config struct {
	// SchemasEnable logs keys and values with their schema envelope
	SchemasEnable bool `json:"schemasEnable,omitempty"`
}

// PeerDebug is a debug peer that logs records through zap
type PeerDebug struct {
	logger    *zap.Logger
	converter *converter.RecordConverter
}

func (p *PeerDebug) Pub(r record.Record, _ ...any) error {
	if p.converter == nil {
		return fmt.Errorf("%s peer not connected", pipeline.ConnectorDebug)
	}
	b, err := p.converter.Encode(&r)
	if err != nil {
		return err
	}
	p.logger.Info("record", zap.String("topic", r.Topic), zap.ByteString("record", b))
	return nil
}

func (p *PeerDebug) Connect(config json.RawMessage, _ ...any) error {
	var cfg Config
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("unmarshal debug config: %w", err)
		}
	}
	if p.logger == nil {
		p.logger = zap.L().Named(pipeline.ConnectorDebug)
	}
	p.converter = converter.NewRecordConverter(cfg.SchemasEnable)
	return nil
}

func (p *PeerDebug) Sub(_ ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerDebug) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerDebug) Disconnect() error {
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorDebug, func() pipeline.Connector { return &PeerDebug{} })
}
