// Package clickhouse is a sink that inserts record values as rows into ClickHouse.
// Each top-level field of the value becomes a column, so a rename transformation
// upstream is how field names are aligned with the table.
package clickhouse

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/edgeflare/smt/pkg/pipeline/peer/internal/sqlrow"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"go.uber.org/zap"
)

type PeerClickHouse struct {
	conn   driver.Conn
	config Config
	logger *zap.Logger
}

type Config struct {
	clickhouse.Options
	// Table receives all records; empty uses the record topic
	Table string `json:"table,omitempty"`
}

func (p *PeerClickHouse) Connect(config json.RawMessage, _ ...any) error {
	if len(config) > 0 && string(config) != "null" {
		if err := json.Unmarshal(config, &p.config); err != nil {
			return fmt.Errorf("failed to parse ClickHouse config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if len(p.config.Addr) == 0 {
		p.config.Addr = []string{cmp.Or(os.Getenv("SMT_CLICKHOUSE_ADDR"), "localhost:9000")}
	}
	p.config.Auth.Database = cmp.Or(p.config.Auth.Database, os.Getenv("SMT_CLICKHOUSE_AUTH_DATABASE"), "default")
	p.config.Auth.Username = cmp.Or(p.config.Auth.Username, os.Getenv("SMT_CLICKHOUSE_AUTH_USERNAME"), "default")
	p.config.Auth.Password = cmp.Or(p.config.Auth.Password, os.Getenv("SMT_CLICKHOUSE_AUTH_PASSWORD"))
	p.logger = zap.L().Named(pipeline.ConnectorClickHouse)

	conn, err := clickhouse.Open(&p.config.Options)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	p.conn = conn
	return nil
}

func (p *PeerClickHouse) Pub(r record.Record, _ ...any) error {
	if p.conn == nil {
		return fmt.Errorf("%s peer not connected", pipeline.ConnectorClickHouse)
	}

	row, err := sqlrow.FromRecord(&r, p.config.Table)
	if err != nil {
		return err
	}

	if err := p.conn.Exec(context.Background(), insertSQL(p.config.Auth.Database, row), row.Values...); err != nil {
		return fmt.Errorf("failed to insert into ClickHouse table %s: %w", row.Table, err)
	}

	p.logger.Debug("Inserted record", zap.String("table", row.Table), zap.String("topic", r.Topic))
	return nil
}

func (p *PeerClickHouse) Sub(_ ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerClickHouse) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerClickHouse) Disconnect() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// insertSQL builds the INSERT statement for row. Names are validated identifiers.
func insertSQL(database string, row *sqlrow.Row) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(row.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO `%s`.`%s` (`%s`) VALUES (%s)",
		database, row.Table, strings.Join(row.Columns, "`, `"), placeholders)
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorClickHouse, func() pipeline.Connector { return &PeerClickHouse{} })
}
