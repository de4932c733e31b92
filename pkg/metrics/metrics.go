// Package metrics exposes sampling and responder counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "envmon"

// Metrics holds the collectors of one process. Each instance owns its own
// registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	samples     prometheus.Counter
	fallbacks   *prometheus.CounterVec
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	historyLen  prometheus.Gauge
	requests    *prometheus.CounterVec
	writeErrors prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Number of sampling ticks.",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_fallbacks_total",
			Help:      "Readings replaced by a fallback value.",
		}, []string{"sensor", "reason"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Most recent temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Most recent soil humidity.",
		}),
		historyLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_samples",
			Help:      "Samples currently held in the history.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served, by route.",
		}, []string{"route"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_write_errors_total",
			Help:      "Responses that could not be fully written.",
		}),
	}

	m.registry.MustRegister(
		m.samples,
		m.fallbacks,
		m.temperature,
		m.humidity,
		m.historyLen,
		m.requests,
		m.writeErrors,
	)

	return m
}

// ObserveSample records one sampling tick.
func (m *Metrics) ObserveSample(temperature, humidity float64, historyLen int) {
	m.samples.Inc()
	m.temperature.Set(temperature)
	m.humidity.Set(humidity)
	m.historyLen.Set(float64(historyLen))
}

// ObserveFallback records a substituted reading.
func (m *Metrics) ObserveFallback(sensor, reason string) {
	m.fallbacks.WithLabelValues(sensor, reason).Inc()
}

// ObserveWriteError records a failed response write.
func (m *Metrics) ObserveWriteError() {
	m.writeErrors.Inc()
}

// CountRequests wraps h so every request increments the route counter.
func (m *Metrics) CountRequests(route string, h http.Handler) http.Handler {
	counter := m.requests.WithLabelValues(route)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.Inc()
		h.ServeHTTP(w, r)
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
