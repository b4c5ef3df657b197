package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
)

// PromSink exposes the coupled system state as Prometheus metrics.
type PromSink struct {
	load       *prometheus.GaugeVec
	generation *prometheus.GaugeVec
	balance    prometheus.Gauge
	renewable  prometheus.Gauge
	lineMax    prometheus.Gauge
	vehicles   *prometheus.GaugeVec
	signals    *prometheus.GaugeVec
	energy     prometheus.Gauge
	violations *prometheus.CounterVec
	stations   *prometheus.GaugeVec
	sessions   *prometheus.CounterVec
	tick       prometheus.Histogram
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.load, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grid_load_mw",
		Help: "Electrical demand by origin",
	}, []string{"category"})); err != nil {
		return nil, err
	}
	if s.generation, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grid_generation_mw",
		Help: "Dispatched generation by source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.balance, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grid_balance_mw",
		Help: "Generation minus load",
	})); err != nil {
		return nil, err
	}
	if s.renewable, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grid_renewable_percent",
		Help: "Share of generation from solar",
	})); err != nil {
		return nil, err
	}
	if s.lineMax, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grid_line_utilization_max_percent",
		Help: "Highest line loading",
	})); err != nil {
		return nil, err
	}
	if s.vehicles, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traffic_vehicles",
		Help: "Vehicles in the monitored area by state",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if s.signals, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "traffic_signals",
		Help: "Traffic lights by displayed color",
	}, []string{"color"})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grid_energy_mwh",
		Help: "Cumulative energy served since run start",
	})); err != nil {
		return nil, err
	}
	if s.violations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grid_violation_events_total",
		Help: "Limit violations observed across ticks",
	}, []string{"kind", "severity"})); err != nil {
		return nil, err
	}
	if s.stations, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ev_station_utilization_percent",
		Help: "Occupied chargers per station",
	}, []string{"station_id"})); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ev_charging_sessions_total",
		Help: "Closed charging sessions",
	}, []string{"station_id"})); err != nil {
		return nil, err
	}
	if s.tick, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coupling_tick_seconds",
		Help:    "Wall time spent in one coupling tick",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordStatus updates the gauges from the tick status.
func (s *PromSink) RecordStatus(st coupling.Status) error {
	s.load.WithLabelValues("total").Set(st.LoadMW)
	s.load.WithLabelValues("base").Set(st.Breakdown.BaseMW)
	s.load.WithLabelValues("traffic_signals").Set(st.Breakdown.TrafficSignalsMW)
	s.load.WithLabelValues("street_lights").Set(st.Breakdown.StreetLightsMW)
	s.load.WithLabelValues("ev_charging").Set(st.Breakdown.EVChargingMW)
	s.generation.WithLabelValues("total").Set(st.GenerationMW)
	s.generation.WithLabelValues("solar").Set(st.SolarMW)
	s.generation.WithLabelValues("battery").Set(st.BatteryMW)
	s.balance.Set(st.BalanceMW)
	s.renewable.Set(st.RenewablePercent)
	s.lineMax.Set(st.MaxLineUtilization)
	s.energy.Set(st.EnergyMWh)
	s.vehicles.WithLabelValues("total").Set(float64(st.Vehicles.Total))
	s.vehicles.WithLabelValues("ev").Set(float64(st.Vehicles.EVs))
	s.vehicles.WithLabelValues("charging").Set(float64(st.Vehicles.Charging))
	s.vehicles.WithLabelValues("moving").Set(float64(st.Vehicles.Moving))
	s.vehicles.WithLabelValues("stopped").Set(float64(st.Vehicles.Stopped))
	s.signals.WithLabelValues("green").Set(float64(st.Signals.Green))
	s.signals.WithLabelValues("yellow").Set(float64(st.Signals.Yellow))
	s.signals.WithLabelValues("red").Set(float64(st.Signals.Red))
	s.signals.WithLabelValues("degraded").Set(float64(st.Signals.Degraded))
	return nil
}

// RecordViolations counts each violation by kind and severity.
func (s *PromSink) RecordViolations(ev coremetrics.ViolationEvent) error {
	for _, v := range ev.Violations {
		s.violations.WithLabelValues(v.Kind, string(v.Severity)).Inc()
	}
	return nil
}

// RecordStations sets the utilization gauge of every station.
func (s *PromSink) RecordStations(ev coremetrics.StationEvent) error {
	for _, st := range ev.Stations {
		s.stations.WithLabelValues(st.ID).Set(st.Utilization)
	}
	return nil
}

// RecordSessions counts closed sessions per station.
func (s *PromSink) RecordSessions(sessions []charging.Session) error {
	for _, ss := range sessions {
		s.sessions.WithLabelValues(ss.StationID).Inc()
	}
	return nil
}

// RecordTickDuration observes the pipeline latency.
func (s *PromSink) RecordTickDuration(d time.Duration) error {
	s.tick.Observe(d.Seconds())
	return nil
}
