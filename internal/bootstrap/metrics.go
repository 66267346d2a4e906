package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nreinfusion/onehub-session/config"
	"github.com/nreinfusion/onehub-session/internal/observability/metrics"
)

// Metrics bundles the configured metrics sink with what its driver exposes.
type Metrics struct {
	Sink metrics.Sink
	// Handler serves the Prometheus registry; nil for other drivers.
	Handler http.Handler
	close   func() error
}

// Close releases the sink's resources.
func (m Metrics) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}

// BuildMetrics configures metrics emission. Disabled metrics, and a StatsD
// endpoint that cannot be dialled, yield a no-op sink.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	obsLogger := logger.With("component", "metrics")

	if !cfg.IsEnabled() {
		return Metrics{Sink: metrics.Nop{}}
	}

	switch cfg.Driver {
	case config.MetricsDriverPrometheus:
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		obsLogger.Info("prometheus metrics enabled", "path", cfg.PrometheusPath)
		return Metrics{
			Sink:    metrics.NewPrometheusSink(registry, cfg.Namespace, obsLogger),
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		}
	default:
		client, err := metrics.NewStatsdClient(metrics.StatsdConfig{
			Address: cfg.StatsdAddress,
			Prefix:  cfg.Namespace,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
			return Metrics{Sink: metrics.Nop{}}
		}
		obsLogger.Info("statsd metrics enabled", "address", cfg.StatsdAddress)
		return Metrics{Sink: client, close: client.Close}
	}
}
