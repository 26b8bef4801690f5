// Package pg is a sink that inserts record values as rows into PostgreSQL.
package pg

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/edgeflare/smt/pkg/pipeline/peer/internal/sqlrow"
	"github.com/edgeflare/smt/pkg/pipeline/record"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var errNotConnected = errors.New("not connected")

type PeerPG struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *zap.Logger
}

type Config struct {
	ConnString string `json:"connString"`
	// Schema of the target tables, public by default
	Schema string `json:"schema,omitempty"`
	// Table receives all records; empty uses the record topic
	Table string `json:"table,omitempty"`
	// ConflictColumns turns inserts into INSERT ... ON CONFLICT DO UPDATE upserts
	ConflictColumns []string `json:"conflictColumns,omitempty"`
}

func (p *PeerPG) Connect(config json.RawMessage, _ ...any) error {
	if err := json.Unmarshal(config, &p.cfg); err != nil {
		return fmt.Errorf("config parse: %w", err)
	}
	p.cfg.Schema = cmp.Or(p.cfg.Schema, "public")
	p.logger = zap.L().Named(pipeline.ConnectorPostgres)

	poolConfig, err := pgxpool.ParseConfig(p.cfg.ConnString)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	ctx := context.Background()
	if p.pool, err = pgxpool.NewWithConfig(ctx, poolConfig); err != nil {
		return err
	}

	if err = p.pool.Ping(ctx); err != nil {
		p.pool.Close()
		p.pool = nil
		return fmt.Errorf("error connecting to database: %w", err)
	}
	return nil
}

func (p *PeerPG) Sub(_ ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerPG) Pub(r record.Record, _ ...any) error {
	if p.pool == nil {
		return errNotConnected
	}

	row, err := sqlrow.FromRecord(&r, p.cfg.Table)
	if err != nil {
		return err
	}

	query := insertSQL(p.cfg.Schema, row, p.cfg.ConflictColumns)
	if _, err := p.pool.Exec(context.Background(), query, row.Values...); err != nil {
		return fmt.Errorf("insert into %s.%s: %w", p.cfg.Schema, row.Table, err)
	}

	p.logger.Debug("Inserted record", zap.String("table", row.Table), zap.String("topic", r.Topic))
	return nil
}

func (p *PeerPG) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerPG) Disconnect() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// insertSQL builds a parameterized INSERT, or an upsert when conflict columns are given
func insertSQL(schema string, row *sqlrow.Row, conflict []string) string {
	columns := make([]string, len(row.Columns))
	placeholders := make([]string, len(row.Columns))
	for i, c := range row.Columns {
		columns[i] = pgx.Identifier{c}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{schema, row.Table}.Sanitize(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))

	if len(conflict) == 0 {
		return b.String()
	}

	keys := make([]string, len(conflict))
	for i, c := range conflict {
		keys[i] = pgx.Identifier{c}.Sanitize()
	}
	var updates []string
	for i, c := range row.Columns {
		if !slices.Contains(conflict, c) {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", columns[i], columns[i]))
		}
	}
	if len(updates) == 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(keys, ", "))
	} else {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(updates, ", "))
	}
	return b.String()
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorPostgres, func() pipeline.Connector { return &PeerPG{} })
}
