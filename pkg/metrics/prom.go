// Package metrics holds the prometheus collectors of smt and serves them over HTTP.
package metrics

import (
	"cmp"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	TransformationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smt_transformation_errors_total",
			Help: "Total number of transformation errors by stage and pipeline",
		},
		[]string{"stage", "pipeline", "source", "sink"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smt_publish_errors_total",
			Help: "Total number of publish errors by sink",
		},
		[]string{"sink"},
	)

	ProcessedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smt_processed_records_total",
			Help: "Total number of records delivered by pipeline",
		},
		[]string{"pipeline", "source", "sink"},
	)

	RecordProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smt_record_processing_duration_seconds",
			Help:    "Duration of record processing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "source", "sink"},
	)

	RenamedFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smt_renamed_fields_total",
			Help: "Total number of fields whose name was changed by a rename transformation",
		},
		[]string{"target"},
	)
)

type PromServerOpts struct {
	Addr              string
	Path              string        // Path for metrics endpoint, defaults to "/metrics"
	ShutdownTimeout   time.Duration // Timeout for server shutdown, defaults to 5 seconds
	ReadHeaderTimeout time.Duration // Timeout for reading request headers, defaults to 3 seconds
	Logger            *zap.Logger   // Defaults to the global zap logger
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		Logger:            zap.L(),
	}
}

// StartPrometheusServer starts a Prometheus metrics server with the given options
// The server gracefully shutdown when the provided context is canceled
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, opts *PromServerOpts) {
	// merge with defaults
	effectiveOpts := defaultPrometheusServerOptions()
	if opts != nil {
		effectiveOpts.Addr = cmp.Or(opts.Addr, effectiveOpts.Addr)
		effectiveOpts.Path = cmp.Or(opts.Path, effectiveOpts.Path)
		effectiveOpts.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, effectiveOpts.ShutdownTimeout)
		effectiveOpts.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, effectiveOpts.ReadHeaderTimeout)
		if opts.Logger != nil {
			effectiveOpts.Logger = opts.Logger
		}
	}
	logger := effectiveOpts.Logger

	mux := http.NewServeMux()
	mux.Handle(effectiveOpts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effectiveOpts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effectiveOpts.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	// Increment wait group
	wg.Add(1)

	// Start server
	go func() {
		defer wg.Done()
		logger.Info("starting prometheus metrics server", zap.String("addr", effectiveOpts.Addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
		close(serverClosed)
	}()

	// Monitor context cancellation in a separate goroutine
	go func() {
		<-ctx.Done()

		// Create a timeout context for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), effectiveOpts.ShutdownTimeout)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down metrics server", zap.Error(err))
		}

		// Wait for server to close or timeout
		select {
		case <-serverClosed:
			logger.Info("metrics server shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("metrics server shutdown timed out")
		}
	}()
}
