package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edgeflare/smt/pkg/pipeline/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
metrics:
  addr: ":9200"
pipeline:
  peers:
  - name: orders-kafka
    connector: kafka
    config:
      brokers: ["localhost:9092"]
      topics: ["orders"]
  - name: stdout
    connector: debug
  pipelines:
  - name: rename-orders
    sources:
    - name: orders-kafka
      transformations:
      - type: patternRename
        config:
          pattern: "^old_(.*)$"
          replacement: "${1}"
          target: value
    sinks:
    - name: stdout
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9200", cfg.Metrics.Addr)

	require.Len(t, cfg.Pipeline.Peers, 2)
	kafka := cfg.Pipeline.GetPeer("orders-kafka")
	require.NotNil(t, kafka)
	assert.Equal(t, "kafka", kafka.ConnectorName)
	assert.Equal(t, []any{"localhost:9092"}, kafka.Config["brokers"])

	pl := cfg.Pipeline.GetPipeline("rename-orders")
	require.NotNil(t, pl)
	require.Len(t, pl.Sources, 1)
	require.Len(t, pl.Sources[0].Transformations, 1)
	tr := pl.Sources[0].Transformations[0]
	assert.Equal(t, transform.TypePatternRename, tr.Type)
	assert.Equal(t, "${1}", tr.Config["replacement"])
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	t.Setenv("SMT_METRICS_ADDR", ":9300")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9300", cfg.Metrics.Addr)
}
