package streamgroup

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/internal/metrics"
)

// NewSlogLogger adapts a slog.Logger to the Logger interface.
// A nil logger falls back to slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}

// NewPrometheusMetrics returns a MetricsCollector backed by Prometheus.
//
// Collectors are registered with reg on first use under the given namespace
// ("streamgroup" when empty).
//
// Example:
//
//	collector := streamgroup.NewPrometheusMetrics(prometheus.DefaultRegisterer, "orders")
//	client, _ := streamgroup.NewClient(cfg, nc, factory, streamgroup.WithMetrics(collector))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
