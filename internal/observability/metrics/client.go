package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/docqa-client/internal/core/domain"
)

type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	phaseTransitions *prometheus.CounterVec
	uploadTotal      *prometheus.CounterVec
	uploadDuration   *prometheus.HistogramVec
	pollTicksTotal   *prometheus.CounterVec
	chatTotal        *prometheus.CounterVec
	chatDuration     *prometheus.HistogramVec
	kbAvailable      prometheus.Gauge
	kbItems          prometheus.Gauge
	breakerOpen      *prometheus.GaugeVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	phaseTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingestion",
			Name:      "phase_transitions_total",
			Help:      "Total upload job transitions by target phase.",
		},
		[]string{"service", "phase"},
	)
	uploadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingestion",
			Name:      "uploads_total",
			Help:      "Total finished uploads by status.",
		},
		[]string{"service", "status"},
	)
	uploadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "ingestion",
			Name:      "upload_duration_seconds",
			Help:      "Upload duration in seconds by status.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"service", "status"},
	)
	pollTicksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingestion",
			Name:      "poll_ticks_total",
			Help:      "Total readiness poll ticks by status.",
		},
		[]string{"service", "status"},
	)
	chatTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "chat",
			Name:      "questions_total",
			Help:      "Total answered questions by status.",
		},
		[]string{"service", "status"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "chat",
			Name:      "question_duration_seconds",
			Help:      "Question round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	kbAvailable := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docqa",
			Subsystem:   "knowledge_base",
			Name:        "available",
			Help:        "1 when the knowledge base holds queryable content.",
			ConstLabels: constLabels,
		},
	)
	kbItems := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docqa",
			Subsystem:   "knowledge_base",
			Name:        "items",
			Help:        "Indexed chunk count reported by the last check.",
			ConstLabels: constLabels,
		},
	)
	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "docqa",
			Subsystem:   "backend",
			Name:        "circuit_open",
			Help:        "1 while the circuit breaker for an operation is open.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)
	requestTotal, requestDuration, requestInFlight := newRequestCollectors(constLabels)

	registry.MustRegister(
		phaseTransitions,
		uploadTotal,
		uploadDuration,
		pollTicksTotal,
		chatTotal,
		chatDuration,
		kbAvailable,
		kbItems,
		breakerOpen,
		requestTotal,
		requestDuration,
		requestInFlight,
	)

	return &ClientMetrics{
		registry:         registry,
		service:          service,
		phaseTransitions: phaseTransitions,
		uploadTotal:      uploadTotal,
		uploadDuration:   uploadDuration,
		pollTicksTotal:   pollTicksTotal,
		chatTotal:        chatTotal,
		chatDuration:     chatDuration,
		kbAvailable:      kbAvailable,
		kbItems:          kbItems,
		breakerOpen:      breakerOpen,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) ObservePhase(phase domain.Phase) {
	m.phaseTransitions.WithLabelValues(m.service, phase.String()).Inc()
}

func (m *ClientMetrics) ObserveUpload(duration float64, err error) {
	status := statusLabel(err)
	m.uploadTotal.WithLabelValues(m.service, status).Inc()
	m.uploadDuration.WithLabelValues(m.service, status).Observe(duration)
}

func (m *ClientMetrics) ObservePollTick(err error) {
	m.pollTicksTotal.WithLabelValues(m.service, statusLabel(err)).Inc()
}

func (m *ClientMetrics) ObserveChat(duration float64, err error) {
	status := statusLabel(err)
	m.chatTotal.WithLabelValues(m.service, status).Inc()
	m.chatDuration.WithLabelValues(m.service, status).Observe(duration)
}

func (m *ClientMetrics) SetKnowledgeBase(available bool, items int) {
	if available {
		m.kbAvailable.Set(1)
	} else {
		m.kbAvailable.Set(0)
	}
	m.kbItems.Set(float64(max(items, 0)))
}

// SetCircuitOpen matches resilience.Config.OnStateChange.
func (m *ClientMetrics) SetCircuitOpen(operation string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(operation).Set(v)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
