package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by a worker.
type Metrics struct {
	registry      *prometheus.Registry
	live          prometheus.Gauge
	recording     prometheus.Gauge
	sessionsTotal *prometheus.CounterVec
	pushEvents    *prometheus.CounterVec
}

// NewMetrics creates and registers the worker collectors on a private registry.
func NewMetrics(streamer string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"streamer": streamer}

	live := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "twitchrec_live",
		Help:        "1 while the watched channel is considered live",
		ConstLabels: labels,
	})
	recording := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "twitchrec_recording",
		Help:        "1 while an ffmpeg capture is running",
		ConstLabels: labels,
	})
	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "twitchrec_sessions_total",
		Help:        "Capture sessions that have ended, by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})
	pushEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "twitchrec_push_events_total",
		Help:        "Push feed events received, by type",
		ConstLabels: labels,
	}, []string{"type"})

	registry.MustRegister(live, recording, sessionsTotal, pushEvents)

	return &Metrics{
		registry:      registry,
		live:          live,
		recording:     recording,
		sessionsTotal: sessionsTotal,
		pushEvents:    pushEvents,
	}
}

// SetLive sets the live gauge.
func (m *Metrics) SetLive(live bool) {
	if m == nil {
		return
	}
	m.live.Set(boolGauge(live))
}

// SetRecording sets the recording gauge.
func (m *Metrics) SetRecording(recording bool) {
	if m == nil {
		return
	}
	m.recording.Set(boolGauge(recording))
}

// IncSession counts a finished capture session.
func (m *Metrics) IncSession(outcome string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(outcome).Inc()
}

// IncPushEvent counts a push feed event.
func (m *Metrics) IncPushEvent(eventType string) {
	if m == nil {
		return
	}
	m.pushEvents.WithLabelValues(eventType).Inc()
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
