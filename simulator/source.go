package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/factory"
	"github.com/kilianp07/trafficgrid/core/model"
)

// ErrUnknownSignal is returned when a state is pushed to an intersection
// the generator does not know.
var ErrUnknownSignal = errors.New("simulator: unknown signal")

// Source is a seeded synthetic traffic generator on a Manhattan street
// grid. Each Snapshot call advances the simulation by one step. It honours
// signal states and routing requests.
type Source struct {
	cfg  Config
	grid *streetGrid

	mu       sync.Mutex
	rng      *rand.Rand
	step     int64
	nextID   int
	vehicles []*vehicle
	byID     map[string]*vehicle
	states   map[string]string
}

// NewSource builds the street grid and spawns the initial population.
func NewSource(cfg Config) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source{
		cfg:    cfg,
		grid:   newStreetGrid(cfg),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		byID:   make(map[string]*vehicle, cfg.Vehicles),
		states: make(map[string]string),
	}
	for i := 0; i < cfg.Vehicles; i++ {
		s.spawn()
	}
	return s, nil
}

// spawn places a new vehicle at a random point on a street or avenue.
func (s *Source) spawn() {
	s.nextID++
	v := &vehicle{
		id:     fmt.Sprintf("veh%06d", s.nextID),
		kind:   "passenger",
		cruise: s.cfg.MaxSpeed * (0.5 + 0.5*s.rng.Float64()),
	}
	if s.rng.Intn(10) == 0 {
		v.kind = "taxi"
	}
	dir := 1
	if s.rng.Intn(2) == 0 {
		dir = -1
	}
	b := s.cfg.Bounds
	if s.rng.Intn(2) == 0 {
		row := s.rng.Intn(s.grid.rows)
		v.pos = orb.Point{b.Min.Lon() + s.rng.Float64()*(b.Max.Lon()-b.Min.Lon()), s.grid.node(row, 0).Lat()}
		v.dc = dir
	} else {
		col := s.rng.Intn(s.grid.cols)
		v.pos = orb.Point{s.grid.node(0, col).Lon(), b.Min.Lat() + s.rng.Float64()*(b.Max.Lat()-b.Min.Lat())}
		v.dr = dir
	}
	v.speed = v.cruise
	s.vehicles = append(s.vehicles, v)
	s.byID[v.id] = v
}

// Signals returns the intersection inventory of the street grid.
func (s *Source) Signals(ctx context.Context) ([]model.SignalDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.SignalDescriptor(nil), s.grid.signals...), nil
}

// Snapshot advances the simulation by one step.
func (s *Source) Snapshot(ctx context.Context) (model.TrafficSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.TrafficSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.step++
	out := model.TrafficSnapshot{
		Time:     s.cfg.Start.Add(time.Duration(s.step) * s.cfg.Step),
		Vehicles: make([]model.Vehicle, len(s.vehicles)),
	}
	for i, v := range s.vehicles {
		out.Vehicles[i] = v.model()
	}
	return out, nil
}

func (s *Source) advance() {
	stepM := func(v *vehicle) float64 { return v.cruise * s.cfg.Step.Seconds() }
	kept := s.vehicles[:0]
	for _, v := range s.vehicles {
		switch {
		case v.target != nil && v.dwell > 0:
			v.speed = 0
			v.dwell--
			if v.dwell == 0 {
				v.target, v.station = nil, ""
			}
		case v.target != nil:
			if v.moveToward(stepM(v)) {
				v.dwell = s.cfg.DwellSteps
			}
		default:
			v.moveOnGrid(s.grid, s.states, stepM(v))
		}
		if !s.cfg.Bounds.Contains(v.pos) || (v.target == nil && s.rng.Float64()*100 < s.cfg.TurnoverPercent) {
			delete(s.byID, v.id)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(s.vehicles); i++ {
		s.vehicles[i] = nil
	}
	s.vehicles = kept
	for len(s.vehicles) < s.cfg.Vehicles {
		s.spawn()
	}
}

// SetSignalState records the state string shown at one intersection.
func (s *Source) SetSignalState(_ context.Context, id, state string) error {
	if _, ok := s.grid.ids[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSignal, id)
	}
	s.mu.Lock()
	s.states[id] = state
	s.mu.Unlock()
	return nil
}

// State returns the last state pushed to an intersection.
func (s *Source) State(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// RequestRoute sends a vehicle to a station. Vehicles that already left
// the area are ignored.
func (s *Source) RequestRoute(_ context.Context, vehicleID, stationID string, target orb.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[vehicleID]
	if !ok {
		return nil
	}
	t := target
	v.target, v.station, v.dwell = &t, stationID, 0
	return nil
}

var _ coupling.Router = (*Source)(nil)

func init() {
	coupling.Sources.MustRegister("synthetic", func(conf map[string]any) (coupling.TrafficSource, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		src, err := NewSource(cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}
