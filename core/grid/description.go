package grid

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/trafficgrid/core/model"
)

//go:embed manhattan.yaml
var manhattanYAML []byte

// Description is the declarative input of the topology builder. Every
// generated entity (feeders, transformers, infrastructure loads) is derived
// from the rules it contains.
type Description struct {
	Name           string          `yaml:"name"`
	Seed           int64           `yaml:"seed"`
	Buses          []BusSpec       `yaml:"buses"`
	BusGrids       []BusGridSpec   `yaml:"bus_grids"`
	Feeds          FeedSpec        `yaml:"feeds"`
	FeederRules    []FeederRule    `yaml:"feeder_rules"`
	Lines          []LineSpec      `yaml:"lines"`
	Generators     []GeneratorSpec `yaml:"generators"`
	Loads          []LoadSpec      `yaml:"loads"`
	TrafficSignals SignalSpec      `yaml:"traffic_signals"`
	StreetLights   LightSpec       `yaml:"street_lights"`
	EVStations     EVSpec          `yaml:"ev_stations"`
}

// BusSpec declares a single bus. FeedsFrom names the upstream bus that
// supplies it through a line and a transformer.
type BusSpec struct {
	ID        string             `yaml:"id"`
	Name      string             `yaml:"name"`
	Class     model.VoltageClass `yaml:"class"`
	Lat       float64            `yaml:"lat"`
	Lon       float64            `yaml:"lon"`
	MVA       float64            `yaml:"mva"`
	FeedsFrom string             `yaml:"feeds_from"`
}

// Linspace yields Count evenly spaced values, both ends included.
type Linspace struct {
	From  float64 `yaml:"from"`
	To    float64 `yaml:"to"`
	Count int     `yaml:"count"`
}

// Values expands the range.
func (l Linspace) Values() []float64 {
	if l.Count <= 0 {
		return nil
	}
	if l.Count == 1 {
		return []float64{l.From}
	}
	out := make([]float64, l.Count)
	step := (l.To - l.From) / float64(l.Count-1)
	for i := range out {
		out[i] = l.From + float64(i)*step
	}
	return out
}

// Arange yields values From, From+Step, ... strictly below To.
type Arange struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
	Step float64 `yaml:"step"`
}

// Values expands the range.
func (a Arange) Values() []float64 {
	if a.Step <= 0 || a.To <= a.From {
		return nil
	}
	n := int(math.Ceil((a.To-a.From)/a.Step - 1e-9))
	out := make([]float64, n)
	for i := range out {
		out[i] = a.From + float64(i)*a.Step
	}
	return out
}

// BusGridSpec generates a lat × lon grid of buses named with Format.
type BusGridSpec struct {
	Format string             `yaml:"format"`
	Class  model.VoltageClass `yaml:"class"`
	MVA    float64            `yaml:"mva"`
	Lat    Linspace           `yaml:"lat"`
	Lon    Linspace           `yaml:"lon"`
}

// FeedSpec parameterises the line and transformer created for every bus
// with a FeedsFrom reference.
type FeedSpec struct {
	LineFormat        string  `yaml:"line_format"`
	TransformerFormat string  `yaml:"transformer_format"`
	CapacityMW        float64 `yaml:"capacity_mw"`
	R                 float64 `yaml:"r"`
	X                 float64 `yaml:"x"`
	B                 float64 `yaml:"b"`
	LengthKM          float64 `yaml:"length_km"`
}

// FeederRule connects every bus of class From to every bus of class To
// closer than MaxKM. Impedances scale with the haversine distance.
type FeederRule struct {
	LineFormat        string             `yaml:"line_format"`
	TransformerFormat string             `yaml:"transformer_format"`
	From              model.VoltageClass `yaml:"from"`
	To                model.VoltageClass `yaml:"to"`
	MaxKM             float64            `yaml:"max_km"`
	CapacityMW        float64            `yaml:"capacity_mw"`
	RPerKM            float64            `yaml:"r_per_km"`
	XPerKM            float64            `yaml:"x_per_km"`
	BPerKM            float64            `yaml:"b_per_km"`
	TransformerMVA    float64            `yaml:"transformer_mva"`
}

// LineSpec declares an explicit line. Its class is the class of From.
type LineSpec struct {
	ID         string  `yaml:"id"`
	From       string  `yaml:"from"`
	To         string  `yaml:"to"`
	CapacityMW float64 `yaml:"capacity_mw"`
	R          float64 `yaml:"r"`
	X          float64 `yaml:"x"`
	B          float64 `yaml:"b"`
	LengthKM   float64 `yaml:"length_km"`
}

type GeneratorSpec struct {
	ID         string              `yaml:"id"`
	Bus        string              `yaml:"bus"`
	Type       model.GeneratorType `yaml:"type"`
	Technology string              `yaml:"technology"`
	CapacityMW float64             `yaml:"capacity_mw"`
	MinMW      float64             `yaml:"min_mw"`
	CostPerMWh float64             `yaml:"cost_per_mwh"`
	MustRun    bool                `yaml:"must_run"`
	EnergyMWh  float64             `yaml:"energy_mwh"`
	Efficiency float64             `yaml:"efficiency"`
	SOC        float64             `yaml:"soc"`
}

type LoadSpec struct {
	ID          string             `yaml:"id"`
	Bus         string             `yaml:"bus"`
	Category    model.LoadCategory `yaml:"category"`
	BaseMW      float64            `yaml:"base_mw"`
	PowerFactor float64            `yaml:"power_factor"`
	Critical    bool               `yaml:"critical"`
}

// SignalSpec describes the electrical footprint of traffic signals.
type SignalSpec struct {
	BusClass      model.VoltageClass `yaml:"bus_class"`
	AdaptiveHeads int                `yaml:"adaptive_heads"`
	Grid          SignalGridSpec     `yaml:"grid"`
	Intersections IntersectionSpec   `yaml:"intersections"`
}

type SignalGridSpec struct {
	Format   string  `yaml:"format"`
	Lat      Arange  `yaml:"lat"`
	Lon      Arange  `yaml:"lon"`
	Heads    int     `yaml:"heads"`
	LEDEvery int     `yaml:"led_every"`
	LEDKW    float64 `yaml:"led_kw"`
	LegacyKW float64 `yaml:"legacy_kw"`
}

type IntersectionSpec struct {
	Format          string     `yaml:"format"`
	LEDKWPerHead    float64    `yaml:"led_kw_per_head"`
	LegacyKWPerHead float64    `yaml:"legacy_kw_per_head"`
	Sites           []SiteSpec `yaml:"sites"`
}

// SiteSpec is a named point with optional equipment counts.
type SiteSpec struct {
	Name     string  `yaml:"name"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	Heads    int     `yaml:"heads"`
	LED      bool    `yaml:"led"`
	Chargers int     `yaml:"chargers"`
}

type LightSpec struct {
	Format   string             `yaml:"format"`
	BusClass model.VoltageClass `yaml:"bus_class"`
	Segments int                `yaml:"segments"`
	LEDKW    float64            `yaml:"led_kw"`
	LegacyKW float64            `yaml:"legacy_kw"`
	Avenues  []AvenueSpec       `yaml:"avenues"`
}

type AvenueSpec struct {
	Name     string  `yaml:"name"`
	LatStart float64 `yaml:"lat_start"`
	LatEnd   float64 `yaml:"lat_end"`
	Lon      float64 `yaml:"lon"`
	PerKM    float64 `yaml:"per_km"`
}

type EVSpec struct {
	Hubs   HubSpec    `yaml:"hubs"`
	Level2 Level2Spec `yaml:"level2"`
}

type HubSpec struct {
	Format   string             `yaml:"format"`
	BusClass model.VoltageClass `yaml:"bus_class"`
	PowerKW  float64            `yaml:"power_kw"`
	Sites    []SiteSpec         `yaml:"sites"`
}

type Level2Spec struct {
	Format      string             `yaml:"format"`
	BusClass    model.VoltageClass `yaml:"bus_class"`
	PowerKW     float64            `yaml:"power_kw"`
	MinChargers int                `yaml:"min_chargers"`
	MaxChargers int                `yaml:"max_chargers"`
	Lat         Arange             `yaml:"lat"`
	Lon         Arange             `yaml:"lon"`
}

// ParseDescription decodes a YAML topology description.
func ParseDescription(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	return &d, nil
}

// DefaultDescription returns the embedded Manhattan description.
func DefaultDescription() *Description {
	d, err := ParseDescription(manhattanYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded topology: %v", err))
	}
	return d
}

// LoadDescription reads a description from path. An empty path selects the
// embedded Manhattan description.
func LoadDescription(path string) (*Description, error) {
	if path == "" {
		return DefaultDescription(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	return ParseDescription(data)
}
