package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSample(t *testing.T) {
	m := New()

	m.ObserveSample(24.5, 50, 1)
	m.ObserveSample(24.6, 49.5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.samples))
	assert.Equal(t, 24.6, testutil.ToFloat64(m.temperature))
	assert.Equal(t, 49.5, testutil.ToFloat64(m.humidity))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.historyLen))
}

func TestObserveFallback(t *testing.T) {
	m := New()

	m.ObserveFallback("temperature", "out_of_range")
	m.ObserveFallback("temperature", "out_of_range")
	m.ObserveFallback("humidity", "read_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("temperature", "out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("humidity", "read_error")))
}

func TestCountRequests(t *testing.T) {
	m := New()

	called := 0
	h := m.CountRequests("data", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/datos", nil))
	}

	assert.Equal(t, 3, called)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("data")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requests.WithLabelValues("page")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveSample(21.3, 40, 1)
	m.ObserveWriteError()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "envmon_samples_total 1")
	assert.Contains(t, body, "envmon_temperature_celsius 21.3")
	assert.Contains(t, body, "envmon_response_write_errors_total 1")
}
