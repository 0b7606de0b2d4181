package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/metrics"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.DeliveryRecorded("web", "delivered")
	m.DeliveryRecorded("web", "delivered")
	m.ChannelOutcome("push", "failed")
	m.RouteCompleted("success", 20*time.Millisecond)
	m.ConnectionOpened("sse")
	m.ConnectionOpened("sse")
	m.ConnectionClosed("sse")
	m.QueueDepth(7)
	m.StreamDelivery("delivered")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"pulse_delivery_records_total",
		"pulse_route_duration_seconds",
		"pulse_channel_attempts_total",
		"pulse_active_connections",
		"pulse_dispatch_queue_depth",
		"pulse_stream_deliveries_total",
	} {
		assert.True(t, names[want], want)
	}

	count, err := testutil.GatherAndCount(reg, "pulse_delivery_records_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one labelled series")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.DeliveryRecorded("web", "sent")
		m.RouteCompleted("failed", time.Second)
		m.ChannelOutcome("sms", "skipped")
		m.ConnectionOpened("websocket")
		m.ConnectionClosed("websocket")
		m.QueueDepth(1)
		m.StreamDelivery("failed")
	})
}
