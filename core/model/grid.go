package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// VoltageClass identifies the voltage level of a bus or line.
type VoltageClass int

const (
	Transmission    VoltageClass = iota // 138 kV
	Subtransmission                     // 27 kV
	Primary                             // 13.8 kV
	Secondary                           // 4.16 kV
	Service                             // 0.48 kV
)

var voltageNames = map[VoltageClass]string{
	Transmission:    "138kV",
	Subtransmission: "27kV",
	Primary:         "13.8kV",
	Secondary:       "4.16kV",
	Service:         "0.48kV",
}

// String returns the nominal voltage label, e.g. "13.8kV".
func (c VoltageClass) String() string {
	if s, ok := voltageNames[c]; ok {
		return s
	}
	return "unknown"
}

// KV returns the nominal voltage in kilovolts.
func (c VoltageClass) KV() float64 {
	switch c {
	case Transmission:
		return 138
	case Subtransmission:
		return 27
	case Primary:
		return 13.8
	case Secondary:
		return 4.16
	case Service:
		return 0.48
	default:
		return 0
	}
}

// ParseVoltageClass accepts either a class name ("primary") or a voltage
// label ("13.8kV", "13.8").
func ParseVoltageClass(s string) (VoltageClass, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "transmission", "138kv", "138":
		return Transmission, nil
	case "subtransmission", "27kv", "27":
		return Subtransmission, nil
	case "primary", "13.8kv", "13.8":
		return Primary, nil
	case "secondary", "4.16kv", "4.16":
		return Secondary, nil
	case "service", "0.48kv", "0.48":
		return Service, nil
	}
	return 0, fmt.Errorf("unknown voltage class %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c VoltageClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *VoltageClass) UnmarshalText(b []byte) error {
	v, err := ParseVoltageClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Bus is a node of the electrical network. Buses are immutable once the
// topology has been built.
type Bus struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Position    orb.Point    `json:"position"`
	Class       VoltageClass `json:"voltage_class"`
	CapacityMVA float64      `json:"capacity_mva"`
	District    string       `json:"district,omitempty"`
}

// Line connects two buses. FlowMW is recomputed on every tick.
type Line struct {
	ID         string       `json:"id"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	Class      VoltageClass `json:"voltage_class"`
	CapacityMW float64      `json:"capacity_mw"`
	R          float64      `json:"r"`
	X          float64      `json:"x"`
	B          float64      `json:"b"`
	LengthKM   float64      `json:"length_km"`
	FlowMW     float64      `json:"flow_mw"`
}

// Utilization returns the loading of the line in percent of its rating.
// A line without rating reports 0.
func (l Line) Utilization() float64 {
	if l.CapacityMW <= 0 {
		return 0
	}
	u := l.FlowMW / l.CapacityMW * 100
	if u < 0 {
		return -u
	}
	return u
}

// Transformer couples a high-voltage and a low-voltage bus.
type Transformer struct {
	ID             string  `json:"id"`
	HighBus        string  `json:"high_bus"`
	LowBus         string  `json:"low_bus"`
	RatingMVA      float64 `json:"rating_mva"`
	Ratio          float64 `json:"ratio"`
	Tap            float64 `json:"tap"`
	LoadingPercent float64 `json:"loading_percent"`
}

// GeneratorType drives the dispatch stage a unit participates in.
type GeneratorType int

const (
	Thermal GeneratorType = iota
	Solar
	Battery
	Diesel
	FuelCell
)

// String returns a lowercase name of the generator type.
func (t GeneratorType) String() string {
	switch t {
	case Thermal:
		return "thermal"
	case Solar:
		return "solar"
	case Battery:
		return "battery"
	case Diesel:
		return "diesel"
	case FuelCell:
		return "fuel_cell"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t GeneratorType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *GeneratorType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "thermal", "gas", "steam", "gas_turbine", "combined_cycle":
		*t = Thermal
	case "solar", "pv":
		*t = Solar
	case "battery", "bess", "storage":
		*t = Battery
	case "diesel":
		*t = Diesel
	case "fuel_cell", "fuelcell":
		*t = FuelCell
	default:
		return fmt.Errorf("unknown generator type %q", string(b))
	}
	return nil
}

// Generator is a supply unit attached to a bus. The storage fields are only
// meaningful for Battery units.
type Generator struct {
	ID         string        `json:"id"`
	Bus        string        `json:"bus"`
	Type       GeneratorType `json:"type"`
	Technology string        `json:"technology,omitempty"`
	CapacityMW float64       `json:"capacity_mw"`
	MinMW      float64       `json:"min_mw"`
	CostPerMWh float64       `json:"cost_per_mwh"`
	MustRun    bool          `json:"must_run"`
	OutputMW   float64       `json:"output_mw"`

	EnergyMWh  float64 `json:"energy_mwh,omitempty"`
	Efficiency float64 `json:"efficiency,omitempty"`
	SOC        float64 `json:"soc,omitempty"`
}

// Renewable reports whether the unit is dispatched ahead of the merit order.
func (g Generator) Renewable() bool { return g.Type == Solar }

// Dispatchable reports whether the unit takes part in the merit order.
func (g Generator) Dispatchable() bool {
	return g.Type == Thermal || g.Type == Diesel || g.Type == FuelCell
}

// LoadCategory classifies a demand point.
type LoadCategory int

const (
	Commercial LoadCategory = iota
	Residential
	Retail
	DataCenter
	Hospital
	Transit
	TrafficControl
	Critical
	TrafficSignal
	StreetLight
	EVCharging
)

var categoryNames = []string{
	"commercial", "residential", "retail", "data_center", "hospital", "transit",
	"traffic_control", "critical", "traffic_signal", "street_light", "ev_charging",
}

// String returns the snake_case name of the category.
func (c LoadCategory) String() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Infrastructure reports whether the load is driven by traffic state rather
// than by a time-of-day profile.
func (c LoadCategory) Infrastructure() bool {
	return c == TrafficSignal || c == StreetLight || c == EVCharging
}

// MarshalText implements encoding.TextMarshaler.
func (c LoadCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *LoadCategory) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, n := range categoryNames {
		if n == s {
			*c = LoadCategory(i)
			return nil
		}
	}
	if s == "datacenter" {
		*c = DataCenter
		return nil
	}
	return fmt.Errorf("unknown load category %q", string(b))
}

// Load is a demand point. Infrastructure loads carry the extra attributes
// used by ApplyLoads.
type Load struct {
	ID          string       `json:"id"`
	Bus         string       `json:"bus"`
	Position    orb.Point    `json:"position"`
	Category    LoadCategory `json:"category"`
	BaseMW      float64      `json:"base_mw"`
	PowerFactor float64      `json:"power_factor"`
	Critical    bool         `json:"critical"`
	CurrentMW   float64      `json:"current_mw"`

	SignalHeads int    `json:"signal_heads,omitempty"`
	Adaptive    bool   `json:"adaptive,omitempty"`
	LED         bool   `json:"led,omitempty"`
	Dimmable    bool   `json:"dimmable,omitempty"`
	StationID   string `json:"station_id,omitempty"`
}
