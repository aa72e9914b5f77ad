package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the optional Prometheus instrumentation for a Runner
// (SPEC_FULL.md section B: "optional execution metrics... read-only
// ambient concern, no Non-goal excludes it"). A nil *Metrics disables
// instrumentation entirely; Runner never requires one.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	nodeExecutions *prometheus.CounterVec
}

// NewMetrics registers the runner's collectors against reg and returns
// a Metrics ready to pass to Runner.WithMetrics. Grounded on the
// teacher's pkg/observability/metrics.go CounterVec/HistogramVec
// construction pattern, reduced to three signals: per-run outcome,
// per-node duration and per-node execution count.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentmap_runs_total",
			Help: "Completed graph runs by final success policy outcome.",
		}, []string{"success"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentmap_node_duration_seconds",
			Help:    "Per-node execution duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node", "success"}),
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentmap_node_executions_total",
			Help: "Per-node execution count by outcome.",
		}, []string{"node", "success"}),
	}
	reg.MustRegister(m.runsTotal, m.nodeDuration, m.nodeExecutions)
	return m
}

func (m *Metrics) observeNode(exec NodeExecution) {
	if m == nil {
		return
	}
	success := boolLabel(exec.Success)
	m.nodeDuration.WithLabelValues(exec.NodeName, success).Observe(exec.Duration().Seconds())
	m.nodeExecutions.WithLabelValues(exec.NodeName, success).Inc()
}

func (m *Metrics) observeRun(success bool) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
