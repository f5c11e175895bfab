package hooks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics counts physical connections and transaction outcomes
type LifecycleMetrics struct {
	connections *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
}

// NewLifecycleMetrics creates lifecycle counters and registers them
func NewLifecycleMetrics(registry prometheus.Registerer) (*LifecycleMetrics, error) {
	m := &LifecycleMetrics{
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ormkit_connections_total",
				Help: "Physical connections opened and closed by lazy connections",
			},
			[]string{"event"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ormkit_transactions_total",
				Help: "Transactions finished, by outcome",
			},
			[]string{"outcome"},
		),
	}

	var err error
	if m.connections, err = register(registry, m.connections); err != nil {
		return nil, err
	}
	if m.outcomes, err = register(registry, m.outcomes); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LifecycleMetrics) ConnectionOpened(context.Context) {
	m.connections.WithLabelValues("open").Inc()
}

func (m *LifecycleMetrics) ConnectionClosed(context.Context) {
	m.connections.WithLabelValues("close").Inc()
}

func (m *LifecycleMetrics) Committed(context.Context) {
	m.outcomes.WithLabelValues("commit").Inc()
}

func (m *LifecycleMetrics) RolledBack(context.Context) {
	m.outcomes.WithLabelValues("rollback").Inc()
}
