package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

const namespace = "flowlike"

// Metrics holds the Prometheus collectors of the engine.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	nodes        *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	streamEvents *prometheus.CounterVec
	activeNodes  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs by status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"board_id"}),
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node executions by node kind and final state",
		}, []string{"node", "state"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"node"}),
		streamEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Total number of events streamed to callers by type",
		}, []string{"type"}),
		activeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_nodes",
			Help:      "Number of nodes currently executing",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector, for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.runDuration, m.nodes, m.nodeDuration, m.streamEvents, m.activeNodes}
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			m.activeNodes.Inc()
		},
		OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
			m.activeNodes.Dec()
			m.nodes.WithLabelValues(e.NodeName, e.State.String()).Inc()
			m.nodeDuration.WithLabelValues(e.NodeName).Observe(e.Duration.Seconds())
		},
		OnRunEnd: func(_ context.Context, meta *domain.LogMeta) {
			m.runs.WithLabelValues(string(meta.Status)).Inc()
			m.runDuration.WithLabelValues(meta.BoardID).Observe(meta.Duration().Seconds())
		},
		OnStream: func(_ context.Context, eventType string) {
			m.streamEvents.WithLabelValues(eventType).Inc()
		},
	}
}

// RunsTotal returns the finished-runs counter of a status.
func (m *Metrics) RunsTotal(status domain.RunStatus) prometheus.Counter {
	return m.runs.WithLabelValues(string(status))
}

// NodeExecutions returns the execution counter of a node kind in a final state.
func (m *Metrics) NodeExecutions(node string, state domain.NodeState) prometheus.Counter {
	return m.nodes.WithLabelValues(node, state.String())
}

// StreamEvents returns the counter of streamed events of a type.
func (m *Metrics) StreamEvents(eventType string) prometheus.Counter {
	return m.streamEvents.WithLabelValues(eventType)
}
