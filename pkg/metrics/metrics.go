package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the delivery engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	deliveries      *prometheus.CounterVec
	routeDuration   *prometheus.HistogramVec
	channelOutcomes *prometheus.CounterVec
	connections     *prometheus.GaugeVec
	queueDepth      prometheus.Gauge
	streamOutcomes  *prometheus.CounterVec
}

// New registers the collectors with reg. Use prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_delivery_records_total",
			Help: "Delivery records written, by channel and status.",
		}, []string{"channel", "status"}),
		routeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_route_duration_seconds",
			Help:    "Time spent routing one notification across its channels.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		channelOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_channel_attempts_total",
			Help: "Per-channel routing outcomes (successful, failed, skipped).",
		}, []string{"channel", "outcome"}),
		connections: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulse_active_connections",
			Help: "Live streaming connections by transport type.",
		}, []string{"type"}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_dispatch_queue_depth",
			Help: "Notifications waiting for a dispatch worker.",
		}),
		streamOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_stream_deliveries_total",
			Help: "Per-connection stream delivery outcomes.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) DeliveryRecorded(channel, status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, status).Inc()
}

// RouteCompleted labels the outcome "success" when at least one channel delivered.
func (m *Metrics) RouteCompleted(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.routeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ChannelOutcome(channel, outcome string) {
	if m == nil {
		return
	}
	m.channelOutcomes.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) ConnectionOpened(connType string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(connType).Inc()
}

func (m *Metrics) ConnectionClosed(connType string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(connType).Dec()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) StreamDelivery(outcome string) {
	if m == nil {
		return
	}
	m.streamOutcomes.WithLabelValues(outcome).Inc()
}
