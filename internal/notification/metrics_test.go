package notification

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeInvocation(outcomeSuccess, 2*time.Second)
	m.observeInvocation(outcomeFailure, time.Second)
	m.observeNotification(EventStart, "sent")
	m.observeNotification(EventStart, "sent")
	m.observeNotification(EventFailure, "failed")

	assert.InDelta(t, 1, testutil.ToFloat64(m.invocations.WithLabelValues(outcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.invocations.WithLabelValues(outcomeFailure)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.notifications.WithLabelValues("start", "sent")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.notifications.WithLabelValues("failure", "failed")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeInvocation(outcomePanic, time.Second)
		m.observeNotification(EventSuccess, "sent")
	})
}
