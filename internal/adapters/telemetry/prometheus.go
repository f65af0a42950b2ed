package telemetry

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusTelemetry implements Telemetry using Prometheus collectors registered on a
// private registry.
type PrometheusTelemetry struct {
	registry *prometheus.Registry

	queryDuration   *prometheus.HistogramVec
	queryTotal      *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
	connections     *prometheus.GaugeVec
	connectEvents   *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	boundParams     *prometheus.HistogramVec
}

// NewPrometheusTelemetry creates a new Prometheus telemetry adapter.
func NewPrometheusTelemetry(config *Config) *PrometheusTelemetry {
	namespace := "dbi"
	if config != nil && config.Namespace != "" {
		namespace = config.Namespace
	}

	p := &PrometheusTelemetry{registry: prometheus.NewRegistry()}

	p.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Duration of executed statements",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"dialect", "statement"},
	)

	p.queryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "total",
			Help:      "Total executed statements by status",
		},
		[]string{"dialect", "statement", "status"},
	)

	p.rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "rows_total",
			Help:      "Rows returned or affected by executed statements",
		},
		[]string{"dialect", "statement"},
	)

	p.errorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors by statement",
		},
		[]string{"dialect", "statement"},
	)

	p.connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "active",
			Help:      "Open connections after the last connection event",
		},
		[]string{"dialect"},
	)

	p.connectEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "events_total",
			Help:      "Connection events by type and outcome",
		},
		[]string{"dialect", "event", "success"},
	)

	p.compileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "duration_seconds",
			Help:      "Duration of statement compilation",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
		[]string{"dialect", "statement", "status"},
	)

	p.boundParams = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compile",
			Name:      "bound_parameters",
			Help:      "Number of bound parameters per compiled statement",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		},
		[]string{"dialect"},
	)

	p.registry.MustRegister(
		p.queryDuration,
		p.queryTotal,
		p.rowsTotal,
		p.errorTotal,
		p.connections,
		p.connectEvents,
		p.compileDuration,
		p.boundParams,
	)
	return p
}

// Registry returns the registry the collectors are registered on.
func (p *PrometheusTelemetry) Registry() *prometheus.Registry {
	return p.registry
}

// RecordQuery records a statement execution.
func (p *PrometheusTelemetry) RecordQuery(ctx context.Context, info QueryInfo) {
	p.queryDuration.WithLabelValues(info.Dialect, info.Statement).Observe(info.Duration.Seconds())
	p.queryTotal.WithLabelValues(info.Dialect, info.Statement, status(info.Success)).Inc()
	if info.RowsAffected > 0 {
		p.rowsTotal.WithLabelValues(info.Dialect, info.Statement).Add(float64(info.RowsAffected))
	}
}

// RecordError records an error.
func (p *PrometheusTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	p.errorTotal.WithLabelValues(info.Dialect, info.Statement).Inc()
}

// RecordConnection records a connection event.
func (p *PrometheusTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	p.connectEvents.WithLabelValues(info.Dialect, info.Event, strconv.FormatBool(info.Success)).Inc()
	p.connections.WithLabelValues(info.Dialect).Set(float64(info.ActiveConnections))
}

// RecordCompile records a statement compilation.
func (p *PrometheusTelemetry) RecordCompile(ctx context.Context, info CompileInfo) {
	p.compileDuration.WithLabelValues(info.Dialect, info.Statement, status(info.Success)).Observe(info.Duration.Seconds())
	if info.Success {
		p.boundParams.WithLabelValues(info.Dialect).Observe(float64(info.Bound))
	}
}

// Flush is a no-op; collectors are scraped from the registry.
func (p *PrometheusTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close closes the telemetry adapter.
func (p *PrometheusTelemetry) Close(ctx context.Context) error {
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Ensure PrometheusTelemetry implements Telemetry interface.
var _ Telemetry = (*PrometheusTelemetry)(nil)
