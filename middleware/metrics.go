package middleware

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsHooks holds the prometheus collectors backing NewMetricsHook,
// grounded on the teacher's internal/infrastructure/monitoring/metrics.go
// collector set, trimmed to what a single Hook function can observe from an
// Event (no direct access to the execution's internal state).
type MetricsHooks struct {
	NodesTotal       *prometheus.CounterVec
	NodeDurationSecs *prometheus.HistogramVec
	ExecutionsTotal  *prometheus.CounterVec
	NodeRetries      *prometheus.CounterVec
}

// NewMetricsHooks registers a fresh collector set on reg.
func NewMetricsHooks(reg prometheus.Registerer) *MetricsHooks {
	m := &MetricsHooks{
		NodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prana",
			Name:      "node_executions_total",
			Help:      "Node executions by node type and outcome.",
		}, []string{"node_type", "outcome"}),
		NodeDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prana",
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type"}),
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prana",
			Name:      "executions_total",
			Help:      "Workflow executions by terminal outcome.",
		}, []string{"workflow_id", "outcome"}),
		NodeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prana",
			Name:      "node_retries_total",
			Help:      "Node execution retry attempts by node type.",
		}, []string{"node_type"}),
	}
	reg.MustRegister(m.NodesTotal, m.NodeDurationSecs, m.ExecutionsTotal, m.NodeRetries)
	return m
}

// Hook returns the Hook function driving these collectors from engine events.
func (m *MetricsHooks) Hook() Hook {
	return func(_ context.Context, ev Event) {
		switch ev.Kind {
		case EventNodeCompleted:
			m.NodesTotal.WithLabelValues(ev.NodeType, "completed").Inc()
			m.NodeDurationSecs.WithLabelValues(ev.NodeType).Observe(float64(ev.DurationMs) / 1000)
			if ev.RetryCount > 0 {
				m.NodeRetries.WithLabelValues(ev.NodeType).Add(float64(ev.RetryCount))
			}
		case EventNodeFailed:
			m.NodesTotal.WithLabelValues(ev.NodeType, "failed").Inc()
			m.NodeDurationSecs.WithLabelValues(ev.NodeType).Observe(float64(ev.DurationMs) / 1000)
		case EventNodeSuspended:
			m.NodesTotal.WithLabelValues(ev.NodeType, "suspended").Inc()
		case EventExecutionCompleted:
			m.ExecutionsTotal.WithLabelValues(ev.WorkflowID, "completed").Inc()
		case EventExecutionFailed:
			m.ExecutionsTotal.WithLabelValues(ev.WorkflowID, "failed").Inc()
		case EventExecutionSuspended:
			m.ExecutionsTotal.WithLabelValues(ev.WorkflowID, "suspended").Inc()
		}
	}
}
