package hooks

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

var statementBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// MetricsHook collects Prometheus metrics for executed statements
type MetricsHook struct {
	statementDuration *prometheus.HistogramVec
	statementTotal    *prometheus.CounterVec
	statementErrors   *prometheus.CounterVec
}

// NewMetricsHook creates a new metrics hook and registers collectors
func NewMetricsHook(registry prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ormkit_statement_duration_seconds",
				Help:    "Duration of executed statements in seconds",
				Buckets: statementBuckets,
			},
			[]string{"operation"},
		),
		statementTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ormkit_statements_total",
				Help: "Total number of executed statements",
			},
			[]string{"operation"},
		),
		statementErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ormkit_statement_errors_total",
				Help: "Total number of statements rejected by the backend",
			},
			[]string{"operation"},
		),
	}

	var err error
	h.statementDuration, err = register(registry, h.statementDuration)
	if err != nil {
		return nil, err
	}
	h.statementTotal, err = register(registry, h.statementTotal)
	if err != nil {
		return nil, err
	}
	h.statementErrors, err = register(registry, h.statementErrors)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// BeforeQuery is called before a query is executed
func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery is called after a query is executed
func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime).Seconds()
	op := OperationType(event.Query)

	h.statementDuration.WithLabelValues(op).Observe(duration)
	h.statementTotal.WithLabelValues(op).Inc()

	if event.Err != nil {
		h.statementErrors.WithLabelValues(op).Inc()
	}
}

// register registers c, reusing an identical collector that is already registered
func register[C prometheus.Collector](registry prometheus.Registerer, c C) (C, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
