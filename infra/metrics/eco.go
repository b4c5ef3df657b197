package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	eco "github.com/kilianp07/trafficgrid/core/metrics/eco"
)

// EcoSink turns closed charging sessions into daily station KPIs. The
// renewable share of each session is taken from the last recorded status.
type EcoSink struct {
	store  eco.Store
	factor float64

	mu        sync.Mutex
	renewable float64

	delivered *prometheus.GaugeVec
	share     *prometheus.GaugeVec
	co2       *prometheus.GaugeVec
}

// NewEcoSink creates a sink with Prometheus gauges registered on reg.
// factor is the grid emission factor in g/kWh.
func NewEcoSink(store eco.Store, factor float64, reg prometheus.Registerer) (*EcoSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &EcoSink{store: store, factor: factor}
	var err error
	if s.delivered, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_daily_energy_kwh",
		Help: "Daily charging energy delivered per station",
	}, []string{"station_id", "day"})); err != nil {
		return nil, err
	}
	if s.share, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_renewable_share",
		Help: "Daily renewable fraction of delivered energy",
	}, []string{"station_id", "day"})); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_co2_emitted_grams",
		Help: "Daily CO2 attributed to charging per station",
	}, []string{"station_id", "day"})); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the KPI store the sink writes to.
func (s *EcoSink) Store() eco.Store { return s.store }

// Factor returns the emission factor in g/kWh.
func (s *EcoSink) Factor() float64 { return s.factor }

// FindEcoSink returns the first EcoSink in sink, looking inside MultiSinks.
func FindEcoSink(sink coremetrics.MetricsSink) (*EcoSink, bool) {
	switch s := sink.(type) {
	case *EcoSink:
		return s, true
	case *coremetrics.MultiSink:
		for _, inner := range s.Sinks {
			if e, ok := FindEcoSink(inner); ok {
				return e, true
			}
		}
	}
	return nil, false
}

// RecordStatus remembers the renewable share of generation.
func (s *EcoSink) RecordStatus(st coupling.Status) error {
	s.mu.Lock()
	s.renewable = st.RenewablePercent / 100
	s.mu.Unlock()
	return nil
}

// RecordSessions adds the sessions to the store and refreshes the gauges.
func (s *EcoSink) RecordSessions(sessions []charging.Session) error {
	s.mu.Lock()
	share := s.renewable
	s.mu.Unlock()
	for _, ss := range sessions {
		rec := eco.Record{
			StationID:    ss.StationID,
			Date:         ss.End,
			DeliveredKWh: ss.EnergyKWh,
			RenewableKWh: ss.EnergyKWh * share,
			Sessions:     1,
		}
		if err := s.store.Add(rec); err != nil {
			return err
		}
		records, err := s.store.Query(ss.StationID, ss.End, ss.End)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		r := records[0]
		day := eco.Day(r.Date).Format("2006-01-02")
		s.delivered.WithLabelValues(ss.StationID, day).Set(r.DeliveredKWh)
		s.share.WithLabelValues(ss.StationID, day).Set(r.RenewableShare())
		s.co2.WithLabelValues(ss.StationID, day).Set(r.CO2Emitted(s.factor))
	}
	return nil
}
