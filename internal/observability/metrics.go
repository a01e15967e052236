package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	runnersActive prometheus.Gauge
	runsInFlight  prometheus.Gauge
	turnTotal     *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec

	enqueueTotal   *prometheus.CounterVec
	pendingDropped *prometheus.CounterVec
	pendingMerged  *prometheus.CounterVec
	stopTotal      *prometheus.CounterVec
	flushedTotal   *prometheus.CounterVec

	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram

	ingressTotal *prometheus.CounterVec
	eventsTotal  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			runnersActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "session_runners_active",
					Help: "Current number of registered session runners.",
				},
			),
			runsInFlight: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "turns_in_flight",
					Help: "Current number of in-flight agent turns.",
				},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turns_total",
					Help: "Total agent turns by channel and status.",
				},
				[]string{"channel", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "turn_duration_seconds",
					Help:    "Agent turn duration in seconds by channel.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"channel"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turn_enqueue_total",
					Help: "Total inbound messages accepted by the coordinator, by channel and disposition.",
				},
				[]string{"channel", "disposition"},
			),
			pendingDropped: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pending_dropped_total",
					Help: "Pending entries dropped by cap overflow or one-at-a-time replacement.",
				},
				[]string{"channel", "reason"},
			),
			pendingMerged: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pending_merged_total",
					Help: "Pending entries delivered through merged continuation turns.",
				},
				[]string{"channel", "kind"},
			),
			stopTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stop_requests_total",
					Help: "Total stop requests by channel.",
				},
				[]string{"channel"},
			),
			flushedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pending_flushed_total",
					Help: "Pending entries flushed into history on stop.",
				},
				[]string{"channel"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessions_active",
					Help: "Current in-memory session count.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session history load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session history save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			ingressTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ingress_messages_total",
					Help: "Total inbound messages by channel adapter and status.",
				},
				[]string{"channel", "status"},
			),
			eventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "runtime_events_total",
					Help: "Total runtime events emitted by type.",
				},
				[]string{"type"},
			),
		}

		prometheus.MustRegister(
			m.runnersActive,
			m.runsInFlight,
			m.turnTotal,
			m.turnDuration,
			m.enqueueTotal,
			m.pendingDropped,
			m.pendingMerged,
			m.stopTotal,
			m.flushedTotal,
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.ingressTotal,
			m.eventsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveRunners(count int) {
	getMetrics().runnersActive.Set(float64(count))
}

func SetRunsInFlight(count int) {
	getMetrics().runsInFlight.Set(float64(count))
}

func RecordTurn(channel string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.turnTotal.WithLabelValues(channel, status).Inc()
	m.turnDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordEnqueue counts an accepted inbound message. Disposition is one of
// "started", "queued" or "resumed".
func RecordEnqueue(channel, disposition string) {
	getMetrics().enqueueTotal.WithLabelValues(channel, disposition).Inc()
}

// RecordPendingDrop counts a silently discarded pending entry. Reason is
// "overflow" or "replaced".
func RecordPendingDrop(channel, reason string) {
	getMetrics().pendingDropped.WithLabelValues(channel, reason).Inc()
}

func RecordPendingMerge(channel, kind string, entries int) {
	getMetrics().pendingMerged.WithLabelValues(channel, kind).Add(float64(entries))
}

func RecordStopRequest(channel string) {
	getMetrics().stopTotal.WithLabelValues(channel).Inc()
}

func RecordFlush(channel string, entries int) {
	getMetrics().flushedTotal.WithLabelValues(channel).Add(float64(entries))
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

func RecordIngress(channel, status string) {
	getMetrics().ingressTotal.WithLabelValues(channel, status).Inc()
}

func RecordRuntimeEvent(eventType string) {
	getMetrics().eventsTotal.WithLabelValues(eventType).Inc()
}
