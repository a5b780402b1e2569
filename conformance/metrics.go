package conformance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts case outcomes and durations.
type Metrics struct {
	cases    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the runner's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wasm_jsapi_cases_total",
			Help: "Conformance cases run, by backend, suite and status.",
		}, []string{"backend", "suite", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wasm_jsapi_case_duration_seconds",
			Help:    "Conformance case run time.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"backend", "suite"}),
	}
}

func (m *Metrics) observe(backend string, res Result) {
	if m == nil {
		return
	}
	m.cases.WithLabelValues(backend, res.Suite, string(res.Status)).Inc()
	if res.Status != StatusSkip {
		m.duration.WithLabelValues(backend, res.Suite).Observe(res.Duration.Seconds())
	}
}
