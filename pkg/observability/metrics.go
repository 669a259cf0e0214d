package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tracker metrics
	blockEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpulse_events_emitted_total",
			Help: "Total number of events emitted by block trackers",
		},
		[]string{"block", "type"},
	)

	sessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpulse_sessions_finished_total",
			Help: "Total number of sessions reaching a terminal state",
		},
		[]string{"block", "outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blockpulse_active_sessions",
			Help: "Number of sessions currently active",
		},
	)

	// Persistence metrics
	persistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpulse_persist_failures_total",
			Help: "Total number of failed session snapshot writes",
		},
		[]string{"block"},
	)

	// Channel metrics
	sendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpulse_send_failures_total",
			Help: "Total number of failed or dropped bus deliveries",
		},
		[]string{"block"},
	)

	listenerPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpulse_listener_panics_total",
			Help: "Total number of recovered listener sink panics",
		},
		[]string{"block"},
	)

	// Collector metrics
	collectorMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpulse_collector_messages_total",
			Help: "Total number of messages received by the collector",
		},
		[]string{"type"},
	)

	collectorLagSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockpulse_collector_lag_seconds",
			Help:    "Delay between message creation and collector receipt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			blockEventsTotal,
			sessionsFinishedTotal,
			activeSessions,
			persistFailuresTotal,
			sendFailuresTotal,
			listenerPanicsTotal,
			collectorMessagesTotal,
			collectorLagSeconds,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordBlockEvent records an event emitted by a tracker
func RecordBlockEvent(block, msgType string) {
	blockEventsTotal.WithLabelValues(block, msgType).Inc()
}

// RecordSessionStarted records the start of a tracking session
func RecordSessionStarted() {
	activeSessions.Inc()
}

// RecordSessionFinished records a terminal session transition
func RecordSessionFinished(block, outcome string) {
	sessionsFinishedTotal.WithLabelValues(block, outcome).Inc()
	activeSessions.Dec()
}

// RecordPersistFailure records a failed session snapshot write
func RecordPersistFailure(block string) {
	persistFailuresTotal.WithLabelValues(block).Inc()
}

// RecordSendFailure records a failed or dropped bus delivery
func RecordSendFailure(block string) {
	sendFailuresTotal.WithLabelValues(block).Inc()
}

// RecordListenerPanic records a recovered listener sink panic
func RecordListenerPanic(block string) {
	listenerPanicsTotal.WithLabelValues(block).Inc()
}

// RecordCollectorMessage records receipt of a message by the collector
func RecordCollectorMessage(msgType string, lag time.Duration) {
	collectorMessagesTotal.WithLabelValues(msgType).Inc()
	if lag >= 0 {
		collectorLagSeconds.WithLabelValues(msgType).Observe(lag.Seconds())
	}
}
