package notification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "knock"

// Outcome labels for invocation metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomePanic   = "panic"
)

// Metrics holds the Prometheus collectors updated by a Notifier. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	invocations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

// NewMetrics creates the notifier collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invocations_total",
			Help:      "Wrapped invocations by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock duration of wrapped invocations.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Lifecycle notification send attempts by event and status.",
		}, []string{"event", "status"}),
	}
	reg.MustRegister(m.invocations, m.duration, m.notifications)
	return m
}

func (m *Metrics) observeInvocation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) observeNotification(event Event, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(event), status).Inc()
}
