package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobsProcessed      *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	Executions         *prometheus.CounterVec
	ExecutionLatency   *prometheus.HistogramVec
	BroadcastDelivered prometheus.Counter
	BroadcastDropped   prometheus.Counter
	Subscribers        prometheus.Gauge
	RelayErrors        *prometheus.CounterVec
}

// NewMetrics registers the instruments on a private registry so several
// instances can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Journal entries processed by outcome.",
		}, []string{"outcome"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the queue.",
		}),
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_executions_total",
			Help:      "Skill executions by skill and status.",
		}, []string{"skill", "status"}),
		ExecutionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "skill_execution_seconds",
			Help:      "Skill execution latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"skill"}),
		BroadcastDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_delivered_total",
			Help:      "Notifications handed to live subscribers.",
		}),
		BroadcastDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Notifications dropped because a subscriber buffer was full.",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribers",
			Help:      "Connected SSE and WebSocket subscribers.",
		}),
		RelayErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_errors_total",
			Help:      "Outbound relay delivery failures by relay.",
		}, []string{"relay"}),
	}
}

func (m *Metrics) ObserveExecution(skillID, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(skillID, status).Inc()
	m.ExecutionLatency.WithLabelValues(skillID).Observe(elapsed.Seconds())
}

func (m *Metrics) JobDone(outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) Broadcast(delivered, dropped int) {
	if m == nil {
		return
	}
	m.BroadcastDelivered.Add(float64(delivered))
	m.BroadcastDropped.Add(float64(dropped))
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) RelayFailed(relay string) {
	if m == nil {
		return
	}
	m.RelayErrors.WithLabelValues(relay).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
