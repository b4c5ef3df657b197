package grid

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/kilianp07/trafficgrid/core/model"
)

var (
	// ErrInvalidDescription is returned when a description cannot be built.
	ErrInvalidDescription = errors.New("invalid topology description")
	// ErrUnknownBus is returned when an entity references a missing bus.
	ErrUnknownBus = errors.New("unknown bus")
)

const earthRadiusKM = 6371.0

// Topology holds every electrical entity of the network. Buses are fixed
// after Build; the dynamic fields of lines, transformers, generators and
// loads are rewritten on every tick by the single tick goroutine.
type Topology struct {
	Name         string
	Buses        []model.Bus
	Lines        []model.Line
	Transformers []model.Transformer
	Generators   []model.Generator
	Loads        []model.Load
	Stations     []model.ChargingStation

	busIdx     map[string]int
	lineIdx    map[string]int
	genIdx     map[string]int
	loadIdx    map[string]int
	stationIdx map[string]int
}

func newTopology(name string) *Topology {
	return &Topology{
		Name:       name,
		busIdx:     make(map[string]int),
		lineIdx:    make(map[string]int),
		genIdx:     make(map[string]int),
		loadIdx:    make(map[string]int),
		stationIdx: make(map[string]int),
	}
}

// DistanceKM returns the haversine distance between two points in km.
func DistanceKM(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b) / orb.EarthRadius * earthRadiusKM
}

// Bus looks up a bus by id.
func (t *Topology) Bus(id string) (model.Bus, bool) {
	i, ok := t.busIdx[id]
	if !ok {
		return model.Bus{}, false
	}
	return t.Buses[i], true
}

// Line returns a pointer to the line so that flows can be updated in place.
func (t *Topology) Line(id string) (*model.Line, bool) {
	i, ok := t.lineIdx[id]
	if !ok {
		return nil, false
	}
	return &t.Lines[i], true
}

// Generator returns a pointer to the generator with the given id.
func (t *Topology) Generator(id string) (*model.Generator, bool) {
	i, ok := t.genIdx[id]
	if !ok {
		return nil, false
	}
	return &t.Generators[i], true
}

// Load returns a pointer to the load with the given id.
func (t *Topology) Load(id string) (*model.Load, bool) {
	i, ok := t.loadIdx[id]
	if !ok {
		return nil, false
	}
	return &t.Loads[i], true
}

// Station looks up a charging station by id.
func (t *Topology) Station(id string) (model.ChargingStation, bool) {
	i, ok := t.stationIdx[id]
	if !ok {
		return model.ChargingStation{}, false
	}
	return t.Stations[i], true
}

// NearestBus returns the closest bus of the given class by haversine
// distance.
func (t *Topology) NearestBus(p orb.Point, class model.VoltageClass) (model.Bus, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, b := range t.Buses {
		if b.Class != class {
			continue
		}
		if d := DistanceKM(p, b.Position); d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return model.Bus{}, false
	}
	return t.Buses[best], true
}

// BusesOfClass lists the buses of one voltage class in build order.
func (t *Topology) BusesOfClass(class model.VoltageClass) []model.Bus {
	var out []model.Bus
	for _, b := range t.Buses {
		if b.Class == class {
			out = append(out, b)
		}
	}
	return out
}

// TotalLoad sums the current demand of all loads in MW.
func (t *Topology) TotalLoad() float64 {
	var sum float64
	for _, l := range t.Loads {
		sum += l.CurrentMW
	}
	return sum
}

// LoadByCategory sums current demand per category.
func (t *Topology) LoadByCategory() map[model.LoadCategory]float64 {
	out := make(map[model.LoadCategory]float64)
	for _, l := range t.Loads {
		out[l.Category] += l.CurrentMW
	}
	return out
}

// Summary counts the entities of the topology.
type Summary struct {
	Name         string             `json:"name"`
	Buses        map[string]int     `json:"buses"`
	Lines        int                `json:"lines"`
	Transformers int                `json:"transformers"`
	Generators   int                `json:"generators"`
	CapacityMW   float64            `json:"capacity_mw"`
	Loads        map[string]int     `json:"loads"`
	Stations     int                `json:"stations"`
	Chargers     int                `json:"chargers"`
	EVCapacityMW float64            `json:"ev_capacity_mw"`
	BaseLoadMW   map[string]float64 `json:"base_load_mw"`
}

// Summarize reports entity counts for display.
func (t *Topology) Summarize() Summary {
	s := Summary{
		Name:         t.Name,
		Buses:        make(map[string]int),
		Lines:        len(t.Lines),
		Transformers: len(t.Transformers),
		Generators:   len(t.Generators),
		Loads:        make(map[string]int),
		Stations:     len(t.Stations),
		BaseLoadMW:   make(map[string]float64),
	}
	for _, b := range t.Buses {
		s.Buses[b.Class.String()]++
	}
	for _, g := range t.Generators {
		s.CapacityMW += g.CapacityMW
	}
	for _, l := range t.Loads {
		s.Loads[l.Category.String()]++
		s.BaseLoadMW[l.Category.String()] += l.BaseMW
	}
	for _, st := range t.Stations {
		s.Chargers += st.Chargers
		s.EVCapacityMW += st.CapacityMW
	}
	return s
}
