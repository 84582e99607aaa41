package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newRequestCollectors(constLabels prometheus.Labels) (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Gauge) {
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total backend HTTP requests issued.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docqa",
			Subsystem:   "backend",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight backend HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	return requestTotal, requestDuration, requestInFlight
}

// Transport instruments outbound backend requests. A nil next uses
// http.DefaultTransport.
func (m *ClientMetrics) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		path := normalizePath(r.URL.Path)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		resp, err := next.RoundTrip(r)
		status := "network_error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.requestTotal.WithLabelValues(m.service, r.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
		return resp, err
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return path
	default:
		return "other"
	}
}
