package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/trafficgrid/core/factory"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	eco "github.com/kilianp07/trafficgrid/core/metrics/eco"
	"github.com/kilianp07/trafficgrid/infra/kpi"
)

// defaultEmissionFactor is an average grid intensity in g/kWh.
const defaultEmissionFactor = 380

// init registers built-in metrics sinks.
func init() {
	coremetrics.MustRegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	coremetrics.MustRegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	coremetrics.MustRegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	coremetrics.MustRegisterMetricsSink("eco", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			SQLitePath     string  `json:"sqlite_path"`
			EmissionFactor float64 `json:"emission_factor"`
		}{EmissionFactor: defaultEmissionFactor}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store eco.Store = eco.NewMemoryStore()
		if c.SQLitePath != "" {
			s, err := kpi.NewSQLiteStore(c.SQLitePath)
			if err != nil {
				return nil, err
			}
			store = s
		}
		return NewEcoSink(store, c.EmissionFactor, prometheus.DefaultRegisterer)
	})
}
