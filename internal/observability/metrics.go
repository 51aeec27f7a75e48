package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls    prometheus.Gauge
	CallEvents     *prometheus.CounterVec
	WSMessages     *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	TurnLatency    prometheus.Histogram

	turnWindow *turnWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of active follow-up calls.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle and engine events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "UI websocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "External provider errors by provider and code.",
		}, []string{"provider", "code"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Speech-stop to response-start latency in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000, 3500},
		}),
		turnWindow: newTurnWindow(256),
	}
}

// ObserveTurnLatency records one completed turn's latency in both the
// histogram and the rolling window behind the perf endpoint.
func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.TurnLatency.Observe(ms)
	m.turnWindow.Observe("speech_stop_to_response", ms)
}

// ObserveStage records an arbitrary turn stage duration into the rolling
// window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnWindow.Observe(stage, float64(d.Milliseconds()))
}

// ObserveIndicator counts a named turn indicator in the rolling window.
func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.turnWindow.ObserveIndicator(name)
}

// LatencySnapshot exposes the rolling-window stats for the perf endpoint.
func (m *Metrics) LatencySnapshot() TurnWindowSnapshot {
	if m == nil {
		return TurnWindowSnapshot{}
	}
	return m.turnWindow.Snapshot()
}

// ResetLatencyWindow clears the rolling window (perf endpoint support).
func (m *Metrics) ResetLatencyWindow() {
	if m == nil {
		return
	}
	m.turnWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
