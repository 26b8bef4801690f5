package smt

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/smt/pkg/config"
	"github.com/edgeflare/smt/pkg/metrics"
	"github.com/edgeflare/smt/pkg/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Register built-in connectors
	_ "github.com/edgeflare/smt/pkg/pipeline/peer/clickhouse"
	_ "github.com/edgeflare/smt/pkg/pipeline/peer/debug"
	_ "github.com/edgeflare/smt/pkg/pipeline/peer/kafka"
	_ "github.com/edgeflare/smt/pkg/pipeline/peer/mqtt"
	_ "github.com/edgeflare/smt/pkg/pipeline/peer/nats"
	_ "github.com/edgeflare/smt/pkg/pipeline/peer/pg"
)

var (
	prometheusEnabled bool
	prometheusAddr    string
)

var pipelineCmd = &cobra.Command{
	Use:     "pipeline",
	Aliases: []string{"p"},
	Short:   "Run the configured pipelines",
	Long:    `Connect the configured peers and stream records from sources through transformations to sinks.`,
	RunE:    runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Enabled = prometheusEnabled
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = prometheusAddr
	}

	logger := zap.L()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	doneChan := make(chan struct{})

	var wg sync.WaitGroup

	if cfg.Metrics.Enabled {
		go metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr, Logger: logger})
	}

	m := pipeline.NewManager(pipeline.WithLogger(logger))
	defer func() {
		if err := m.Close(); err != nil {
			logger.Error("Failed to disconnect peers", zap.Error(err))
		}
	}()

	if err := m.Init(&cfg.Pipeline); err != nil {
		return fmt.Errorf("failed to initialize peers: %w", err)
	}

	if err := m.Start(ctx, &wg, &cfg.Pipeline); err != nil {
		return fmt.Errorf("failed to start pipeline processing: %w", err)
	}

	<-sigChan
	logger.Info("Received termination signal, shutting down gracefully...")
	cancel()

	// Wait for goroutines to complete
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	// Wait with timeout
	select {
	case <-doneChan:
		logger.Info("Shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("Shutdown timed out after 10 seconds")
	}

	return nil
}

func init() {
	defaults := config.DefaultMetricsConfig()
	pipelineCmd.Flags().BoolVar(&prometheusEnabled, "metrics", defaults.Enabled, "Enable Prometheus metrics server")
	pipelineCmd.Flags().StringVar(&prometheusAddr, "metrics-addr", defaults.Addr, "Prometheus metrics server address")
}
