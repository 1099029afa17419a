package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveDelivery("email", "sent", 120*time.Millisecond)
	m.ObserveDelivery("email", "sent", 80*time.Millisecond)
	m.ObserveDelivery("sms", "failed", time.Second)
	m.IncRateLimited("chat_push")
	m.ObserveMessage("notifications-queue", "acked")
	m.AddSwept(3)
	m.AddSwept(0)

	families, err := reg.Gather()
	require.NoError(t, err)
	series := map[string]int{}
	for _, f := range families {
		series[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2, series["notifier_deliveries_total"])
	assert.Equal(t, 2, series["notifier_delivery_duration_seconds"])
	assert.Equal(t, 1, series["notifier_rate_limited_total"])
	assert.Equal(t, 1, series["notifier_queue_messages_total"])
	assert.Equal(t, 1, series["notifier_sweeper_republished_total"])
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveDelivery("email", "sent", time.Second)
		m.IncRateLimited("email")
		m.ObserveMessage("q", "acked")
		m.AddSwept(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	m.IncRateLimited("sms")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `notifier_rate_limited_total{channel="sms"} 1`)
}
