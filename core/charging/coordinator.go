package charging

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/kilianp07/trafficgrid/core/logger"
	"github.com/kilianp07/trafficgrid/core/model"
)

// RouteRequest asks the traffic simulator to send a vehicle to a station.
type RouteRequest struct {
	VehicleID string    `json:"vehicle_id"`
	StationID string    `json:"station_id"`
	Target    orb.Point `json:"target"`
}

// Session is a closed charging session.
type Session struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	StationID string    `json:"station_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	EnergyKWh float64   `json:"energy_kwh"`
}

// Result is the per-tick output of Process.
type Result struct {
	TotalEVs  int                 `json:"total_evs"`
	Charging  int                 `json:"charging"`
	Occupancy map[string][]string `json:"occupancy"`
	Routes    []RouteRequest      `json:"routes,omitempty"`
	Completed []Session           `json:"completed,omitempty"`
}

// Counts flattens the occupancy lists into occupant counts per station.
func (r Result) Counts() map[string]int {
	out := make(map[string]int, len(r.Occupancy))
	for id, occ := range r.Occupancy {
		out[id] = len(occ)
	}
	return out
}

// StationView is the live status of one station.
type StationView struct {
	model.ChargingStation
	Occupants    []string `json:"occupants"`
	Utilization  float64  `json:"utilization"`
	Status       string   `json:"status"`
	DeliveredKWh float64  `json:"delivered_kwh"`
}

type session struct {
	id      string
	station string
	start   time.Time
	energy  float64
}

// Coordinator owns EV battery state, station assignment and session
// metering. Process must only be called from the tick goroutine; the share
// and bias knobs may be changed concurrently.
type Coordinator struct {
	cfg      Config
	seed     int64
	rng      *rand.Rand
	log      logger.Logger
	stations []model.ChargingStation

	mu    sync.RWMutex
	share float64
	bias  float64

	classes   map[string]bool
	evs       map[string]*model.EVState
	sessions  map[string]*session
	occupancy map[string][]string
	delivered map[string]float64
}

// NewCoordinator builds a coordinator for the given stations. seed keys the
// EV classification hash and rng drives battery draws.
func NewCoordinator(cfg Config, stations []model.ChargingStation, seed int64, rng *rand.Rand, log logger.Logger) *Coordinator {
	cfg.SetDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}
	return &Coordinator{
		cfg:       cfg,
		seed:      seed,
		rng:       rng,
		log:       logger.OrNop(log),
		stations:  append([]model.ChargingStation(nil), stations...),
		share:     cfg.SharePercent,
		bias:      cfg.BiasPercent,
		classes:   make(map[string]bool),
		evs:       make(map[string]*model.EVState),
		sessions:  make(map[string]*session),
		occupancy: make(map[string][]string),
		delivered: make(map[string]float64),
	}
}

// SetSharePercent changes the share of newly observed vehicles classified
// as electric. Vehicles already seen keep their class.
func (c *Coordinator) SetSharePercent(v float64) {
	c.mu.Lock()
	c.share = clampPercent(v)
	c.mu.Unlock()
}

// SetBiasPercent changes the opportunistic charging bias.
func (c *Coordinator) SetBiasPercent(v float64) {
	c.mu.Lock()
	c.bias = clampPercent(v)
	c.mu.Unlock()
}

// Knobs returns the current share and bias percentages.
func (c *Coordinator) Knobs() (share, bias float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.share, c.bias
}

// hashBucket maps a vehicle id to [0,100) with a hash keyed by the seed.
func hashBucket(seed int64, id string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(id)
	return d.Sum64() % 100
}

// Classify reports whether the vehicle is electric. The answer is fixed the
// first time a vehicle is seen.
func (c *Coordinator) Classify(id string) bool {
	if ev, ok := c.classes[id]; ok {
		return ev
	}
	share, _ := c.Knobs()
	ev := float64(hashBucket(c.seed, id)) < share
	c.classes[id] = ev
	return ev
}

// CaptureRadius returns the distance in degrees within which a vehicle is
// considered at a station.
func (c *Coordinator) CaptureRadius() float64 {
	_, bias := c.Knobs()
	return c.cfg.BaseRadius + bias/100*c.cfg.ExtraRadius
}

// NeedsCharging decides whether the vehicle should look for a station. The
// opportunistic draw consumes one value of the run's rng.
func (c *Coordinator) NeedsCharging(ev *model.EVState, bias float64) bool {
	if ev.Battery < c.cfg.UrgentBelow {
		return true
	}
	return ev.Battery < c.cfg.OpportunityAt && c.rng.Float64() < bias/100
}

// Assign returns the nearest station with a free charger, or false when
// none lies within the sanity distance.
func (c *Coordinator) Assign(pos orb.Point) (model.ChargingStation, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, st := range c.stations {
		if len(c.occupancy[st.ID]) >= st.Chargers {
			continue
		}
		if d := planar.Distance(pos, st.Position); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist >= c.cfg.SanityDistance {
		return model.ChargingStation{}, false
	}
	return c.stations[best], true
}

func within(a, b orb.Point, r float64) bool {
	return math.Abs(a.Lat()-b.Lat()) < r && math.Abs(a.Lon()-b.Lon()) < r
}

// Process runs one tick of EV bookkeeping for the given snapshot.
func (c *Coordinator) Process(vehicles []model.Vehicle, now time.Time) Result {
	_, bias := c.Knobs()
	radius := c.CaptureRadius()
	c.occupancy = make(map[string][]string, len(c.stations))

	res := Result{Occupancy: c.occupancy}
	seen := make(map[string]struct{}, len(vehicles))
	charged := make(map[string]struct{})

	for _, v := range vehicles {
		seen[v.ID] = struct{}{}
		if !c.Classify(v.ID) {
			continue
		}
		res.TotalEVs++
		ev, ok := c.evs[v.ID]
		if !ok {
			ev = &model.EVState{
				VehicleID: v.ID,
				Battery:   c.cfg.InitialMin + c.rng.Float64()*(c.cfg.InitialMax-c.cfg.InitialMin),
			}
			c.evs[v.ID] = ev
		}
		if c.cfg.DrainPerTick > 0 && v.Moving() && !ev.Charging {
			ev.Battery = math.Max(0, ev.Battery-c.cfg.DrainPerTick)
		}

		if !ev.Charging && c.NeedsCharging(ev, bias) {
			if st, ok := c.Assign(v.Position); ok && st.ID != ev.AssignedStation {
				ev.AssignedStation = st.ID
				res.Routes = append(res.Routes, RouteRequest{VehicleID: v.ID, StationID: st.ID, Target: st.Position})
			}
		}

		if ev.Battery >= c.cfg.FullAt && !ev.Charging {
			continue
		}
		for _, st := range c.stations {
			if !within(v.Position, st.Position, radius) {
				continue
			}
			if len(c.occupancy[st.ID]) >= st.Chargers || v.Speed >= c.cfg.StopSpeed {
				continue
			}
			c.occupancy[st.ID] = append(c.occupancy[st.ID], v.ID)
			res.Charging++
			charged[v.ID] = struct{}{}
			c.charge(ev, st, now, &res)
			break
		}
	}

	for id, s := range c.sessions {
		if _, ok := charged[id]; !ok {
			res.Completed = append(res.Completed, c.closeSession(id, s, now))
		}
	}
	for id := range c.classes {
		if _, ok := seen[id]; !ok {
			delete(c.classes, id)
			delete(c.evs, id)
		}
	}
	sort.Slice(res.Completed, func(i, j int) bool { return res.Completed[i].VehicleID < res.Completed[j].VehicleID })
	return res
}

func (c *Coordinator) charge(ev *model.EVState, st model.ChargingStation, now time.Time, res *Result) {
	ev.Charging = true
	ev.Battery = math.Min(100, ev.Battery+c.cfg.ChargeStep)

	s, ok := c.sessions[ev.VehicleID]
	if ok && s.station != st.ID {
		res.Completed = append(res.Completed, c.closeSession(ev.VehicleID, s, now))
		ok = false
	}
	if !ok {
		s = &session{id: uuid.NewString(), station: st.ID, start: now}
		c.sessions[ev.VehicleID] = s
	}
	hours := now.Sub(s.start).Hours()
	s.energy = math.Min(st.PowerKW*hours, c.cfg.MaxSessionKWh)
	ev.SessionID = s.id
	ev.SessionStart = s.start
	ev.EnergyKWh = s.energy

	if ev.Battery >= c.cfg.FullAt {
		ev.Charging = false
		ev.AssignedStation = ""
		res.Completed = append(res.Completed, c.closeSession(ev.VehicleID, s, now))
	}
}

func (c *Coordinator) closeSession(vehicleID string, s *session, now time.Time) Session {
	delete(c.sessions, vehicleID)
	c.delivered[s.station] += s.energy
	if ev, ok := c.evs[vehicleID]; ok {
		ev.Charging = false
		ev.SessionID = ""
	}
	c.log.Debugw("charging session closed", map[string]any{
		"vehicle": vehicleID, "station": s.station, "energy_kwh": s.energy,
	})
	return Session{
		ID:        s.id,
		VehicleID: vehicleID,
		StationID: s.station,
		Start:     s.start,
		End:       now,
		EnergyKWh: s.energy,
	}
}

// Vehicle returns a copy of the state of an electric vehicle.
func (c *Coordinator) Vehicle(id string) (model.EVState, bool) {
	ev, ok := c.evs[id]
	if !ok {
		return model.EVState{}, false
	}
	return *ev, true
}

// Vehicles returns a copy of every EV state ordered by id.
func (c *Coordinator) Vehicles() []model.EVState {
	out := make([]model.EVState, 0, len(c.evs))
	for _, ev := range c.evs {
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// Stations returns the live status of every station in build order.
func (c *Coordinator) Stations() []StationView {
	out := make([]StationView, 0, len(c.stations))
	for _, st := range c.stations {
		occ := append([]string(nil), c.occupancy[st.ID]...)
		v := StationView{ChargingStation: st, Occupants: occ, Status: "available", DeliveredKWh: c.delivered[st.ID]}
		if st.Chargers > 0 {
			v.Utilization = float64(len(occ)) / float64(st.Chargers) * 100
		}
		if v.Utilization > 80 {
			v.Status = "busy"
		}
		out = append(out, v)
	}
	return out
}

// DeliveredKWh returns the energy delivered by all closed sessions.
func (c *Coordinator) DeliveredKWh() float64 {
	var sum float64
	for _, v := range c.delivered {
		sum += v
	}
	return sum
}
