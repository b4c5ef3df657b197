package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveLatency   *prometheus.HistogramVec
	lpFallbacks    prometheus.Counter
	flowFallbacks  prometheus.Counter
	violationGauge *prometheus.GaugeVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, prometheus.Counter, prometheus.Counter, *prometheus.GaugeVec) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_solve_seconds",
			Help:    "Duration of the dispatch and flow pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	lpf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_fallback_total",
			Help: "Number of LP dispatch failures resolved with merit order",
		},
	)
	ff := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_flow_fallback_total",
			Help: "Number of DC flow solves replaced by the proxy estimate",
		},
	)
	vio := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grid_violations",
			Help: "Violations found in the last dispatch pass",
		},
		[]string{"kind", "severity"},
	)
	return lat, lpf, ff, vio
}

func init() {
	solveLatency, lpFallbacks, flowFallbacks, violationGauge = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveLatency, lpFallbacks, flowFallbacks, violationGauge)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveLatency, lpFallbacks, flowFallbacks, violationGauge = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
