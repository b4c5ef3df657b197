package coupling

import (
	"math"
	"sort"
	"time"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/dispatch"
	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/model"
	"github.com/kilianp07/trafficgrid/core/signal"
)

const topLines = 10

// LoadBreakdown splits demand by origin.
type LoadBreakdown struct {
	TrafficSignalsMW        float64 `json:"traffic_signals_mw"`
	StreetLightsMW          float64 `json:"street_lights_mw"`
	EVChargingMW            float64 `json:"ev_charging_mw"`
	BaseMW                  float64 `json:"base_mw"`
	TrafficInfrastructureMW float64 `json:"traffic_infrastructure_mw"`
}

// ViolationCounts tallies the findings of the violation check.
type ViolationCounts struct {
	Thermal  int `json:"thermal"`
	Voltage  int `json:"voltage"`
	Critical int `json:"critical"`
}

// VehicleCounts describes the vehicle population in the monitored area.
type VehicleCounts struct {
	Total    int `json:"total"`
	EVs      int `json:"evs"`
	Charging int `json:"charging"`
	Moving   int `json:"moving"`
	Stopped  int `json:"stopped"`
}

// LineUtilization is one entry of the line loading list.
type LineUtilization struct {
	ID          string  `json:"id"`
	FlowMW      float64 `json:"flow_mw"`
	Utilization float64 `json:"utilization"`
}

// Status is the aggregate view of one tick.
type Status struct {
	RunID string    `json:"run_id"`
	Tick  int64     `json:"tick"`
	Time  time.Time `json:"time"`

	GenerationMW     float64       `json:"generation_mw"`
	LoadMW           float64       `json:"load_mw"`
	BalanceMW        float64       `json:"balance_mw"`
	Breakdown        LoadBreakdown `json:"breakdown"`
	SolarMW          float64       `json:"solar_mw"`
	RenewablePercent float64       `json:"renewable_percent"`
	BatteryMW        float64       `json:"battery_mw"`

	PeakDemandMW float64 `json:"peak_demand_mw"`
	LoadFactor   float64 `json:"load_factor"`
	EnergyMWh    float64 `json:"energy_mwh"`
	Trend        Trend   `json:"trend"`

	Violations ViolationCounts    `json:"violations"`
	Vehicles   VehicleCounts      `json:"vehicles"`
	Signals    signal.ColorCounts `json:"signals"`

	MaxLineUtilization float64           `json:"max_line_utilization"`
	LineUtilization    []LineUtilization `json:"line_utilization"`
	DispatchMode       string            `json:"dispatch_mode"`
	FlowModel          string            `json:"flow_model"`
	DeliveredKWh       float64           `json:"delivered_kwh"`
}

// BusView is a bus with its estimated voltage.
type BusView struct {
	model.Bus
	VoltagePU float64 `json:"voltage_pu"`
}

// LineView is a line with its loading.
type LineView struct {
	model.Line
	Utilization float64 `json:"utilization"`
}

// StationStatus is a charging station with its live electrical output.
type StationStatus struct {
	charging.StationView
	PowerMW float64 `json:"power_mw"`
}

// SignalView is a traffic light with the bus feeding it.
type SignalView struct {
	signal.View
	Bus string `json:"bus,omitempty"`
}

// NetworkMetrics summarises the electrical state of the network.
type NetworkMetrics struct {
	TotalGenerationMW float64 `json:"total_generation_mw"`
	TotalLoadMW       float64 `json:"total_load_mw"`
	LossesMW          float64 `json:"losses_mw"`
	RenewableMW       float64 `json:"renewable_mw"`
	BatteryMW         float64 `json:"battery_mw"`
	Violations        int     `json:"violations"`
}

// NetworkSnapshot is the full inventory with live values. It is built fresh
// each tick and never modified after publication.
type NetworkSnapshot struct {
	Tick         int64               `json:"tick"`
	Time         time.Time           `json:"time"`
	Buses        []BusView           `json:"buses"`
	Lines        []LineView          `json:"lines"`
	Transformers []model.Transformer `json:"transformers"`
	Generators   []model.Generator   `json:"generators"`
	Stations     []StationStatus     `json:"stations"`
	Signals      []SignalView        `json:"signals"`
	LoadByType   map[string]float64  `json:"load_by_type"`
	Violations   dispatch.Violations `json:"violations"`
	Metrics      NetworkMetrics      `json:"metrics"`
}

func countVehicles(vehicles []model.Vehicle, res charging.Result) VehicleCounts {
	vc := VehicleCounts{Total: len(vehicles), EVs: res.TotalEVs, Charging: res.Charging}
	for _, v := range vehicles {
		if v.Moving() {
			vc.Moving++
		} else {
			vc.Stopped++
		}
	}
	return vc
}

func lineUtilization(lines []model.Line) []LineUtilization {
	out := make([]LineUtilization, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineUtilization{ID: l.ID, FlowMW: l.FlowMW, Utilization: l.Utilization()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > topLines {
		out = out[:topLines]
	}
	return out
}

func (o *Orchestrator) buildStatus(now time.Time, vehicles []model.Vehicle, res charging.Result, bd grid.Breakdown, dr dispatch.Result) Status {
	d := dr.Dispatch
	load := bd.TotalMW
	return Status{
		RunID:        o.sim.RunID,
		Tick:         o.sim.Tick,
		Time:         now,
		GenerationMW: d.GenerationMW,
		LoadMW:       load,
		BalanceMW:    d.BalanceMW,
		Breakdown: LoadBreakdown{
			TrafficSignalsMW:        bd.TrafficSignalMW,
			StreetLightsMW:          bd.StreetLightMW,
			EVChargingMW:            bd.EVChargingMW,
			BaseMW:                  load - bd.TrafficSignalMW - bd.StreetLightMW - bd.EVChargingMW,
			TrafficInfrastructureMW: bd.TrafficSignalMW + bd.StreetLightMW,
		},
		SolarMW:          d.SolarMW,
		RenewablePercent: d.SolarMW / math.Max(d.GenerationMW, 1) * 100,
		BatteryMW:        d.BatteryMW,
		PeakDemandMW:     o.sim.PeakMW,
		LoadFactor:       o.sim.LoadFactor(load),
		EnergyMWh:        o.sim.EnergyMWh,
		Trend:            o.sim.Trend(),
		Violations: ViolationCounts{
			Thermal:  len(dr.Violations.Thermal),
			Voltage:  len(dr.Violations.Voltage),
			Critical: dr.Violations.Critical(),
		},
		Vehicles:           countVehicles(vehicles, res),
		Signals:            o.signals.Counts(),
		MaxLineUtilization: dr.MaxLineUtilization,
		LineUtilization:    lineUtilization(o.topo.Lines),
		DispatchMode:       d.Mode,
		FlowModel:          dr.FlowModel,
		DeliveredKWh:       o.charging.DeliveredKWh(),
	}
}

func (o *Orchestrator) buildNetwork(now time.Time, dr dispatch.Result) *NetworkSnapshot {
	t := o.topo
	n := &NetworkSnapshot{
		Tick:         o.sim.Tick,
		Time:         now,
		Buses:        make([]BusView, 0, len(t.Buses)),
		Lines:        make([]LineView, 0, len(t.Lines)),
		Transformers: append([]model.Transformer(nil), t.Transformers...),
		Generators:   append([]model.Generator(nil), t.Generators...),
		LoadByType:   make(map[string]float64),
		Violations:   dr.Violations,
	}
	for _, b := range t.Buses {
		pu, ok := dr.Violations.Voltages[b.ID]
		if !ok {
			pu = 1
		}
		n.Buses = append(n.Buses, BusView{Bus: b, VoltagePU: pu})
	}
	for _, l := range t.Lines {
		n.Lines = append(n.Lines, LineView{Line: l, Utilization: l.Utilization()})
	}
	for cat, mw := range t.LoadByCategory() {
		n.LoadByType[cat.String()] = mw
	}
	for _, sv := range o.charging.Stations() {
		st := StationStatus{StationView: sv}
		if l, ok := t.Load(sv.ID); ok {
			st.PowerMW = l.CurrentMW
		}
		n.Stations = append(n.Stations, st)
	}
	for _, v := range o.signals.Views() {
		n.Signals = append(n.Signals, SignalView{View: v, Bus: o.lightBus[v.ID]})
	}
	d := dr.Dispatch
	n.Metrics = NetworkMetrics{
		TotalGenerationMW: d.GenerationMW,
		TotalLoadMW:       d.LoadMW,
		LossesMW:          d.GenerationMW - d.LoadMW,
		RenewableMW:       d.SolarMW,
		BatteryMW:         d.BatteryMW,
		Violations:        len(dr.Violations.Thermal) + len(dr.Violations.Voltage),
	}
	return n
}
