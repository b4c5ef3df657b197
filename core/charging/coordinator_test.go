package charging

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/model"
)

var (
	hub   = model.ChargingStation{ID: "EV_DC_Hub", Position: orb.Point{-73.9855, 40.7580}, Chargers: 2, PowerKW: 50}
	curb  = model.ChargingStation{ID: "EV_L2_007", Position: orb.Point{-73.9700, 40.7400}, Chargers: 4, PowerKW: 7.2}
	start = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
)

func newAllEV(t *testing.T, stations ...model.ChargingStation) *Coordinator {
	t.Helper()
	c := NewCoordinator(Config{SharePercent: 100}, stations, 42, rand.New(rand.NewSource(1)), nil)
	return c
}

func parked(id string, p orb.Point) model.Vehicle {
	return model.Vehicle{ID: id, Position: p, Speed: 0}
}

func TestClassifyShareAndStability(t *testing.T) {
	c := NewCoordinator(Config{SharePercent: 30}, nil, 42, nil, nil)
	ids := make([]string, 1000)
	count := 0
	for i := range ids {
		ids[i] = fmt.Sprintf("veh_%d", i)
		if c.Classify(ids[i]) {
			count++
		}
	}
	assert.InDelta(t, 300, count, 60)

	c.SetSharePercent(90)
	again := 0
	for _, id := range ids {
		if c.Classify(id) {
			again++
		}
	}
	assert.Equal(t, count, again, "seen vehicles keep their class")

	other := NewCoordinator(Config{SharePercent: 30}, nil, 42, nil, nil)
	for _, id := range ids[:50] {
		assert.Equal(t, c.Classify(id), other.Classify(id), id)
	}
}

func TestKnobsAreClamped(t *testing.T) {
	c := NewCoordinator(Config{}, nil, 1, nil, nil)
	c.SetSharePercent(150)
	c.SetBiasPercent(-3)
	share, bias := c.Knobs()
	assert.Equal(t, 100.0, share)
	assert.Equal(t, 0.0, bias)
	assert.InDelta(t, 0.002, c.CaptureRadius(), 1e-12)
	c.SetBiasPercent(100)
	assert.InDelta(t, 0.008, c.CaptureRadius(), 1e-12)
}

func TestNeedsCharging(t *testing.T) {
	c := NewCoordinator(Config{}, nil, 1, nil, nil)
	assert.True(t, c.NeedsCharging(&model.EVState{Battery: 10}, 0))
	assert.False(t, c.NeedsCharging(&model.EVState{Battery: 40}, 0))
	assert.True(t, c.NeedsCharging(&model.EVState{Battery: 40}, 100))
	assert.False(t, c.NeedsCharging(&model.EVState{Battery: 60}, 100))
}

func TestAssignNearestFreeStation(t *testing.T) {
	c := newAllEV(t, hub, curb)
	st, ok := c.Assign(orb.Point{-73.9850, 40.7585})
	require.True(t, ok)
	assert.Equal(t, hub.ID, st.ID)

	c.occupancy[hub.ID] = []string{"a", "b"}
	_, ok = c.Assign(orb.Point{-73.9850, 40.7585})
	assert.False(t, ok, "curb station is beyond the sanity distance")

	_, ok = c.Assign(orb.Point{-73.90, 40.80})
	assert.False(t, ok)
}

func TestProcessCapsOccupancy(t *testing.T) {
	c := newAllEV(t, hub)
	var vs []model.Vehicle
	for i := 0; i < 5; i++ {
		vs = append(vs, parked(fmt.Sprintf("ev%d", i), hub.Position))
	}
	for tick := 0; tick < 20; tick++ {
		res := c.Process(vs, start.Add(time.Duration(tick)*time.Second))
		assert.Equal(t, 5, res.TotalEVs)
		assert.LessOrEqual(t, len(res.Occupancy[hub.ID]), hub.Chargers)
		for _, ev := range c.Vehicles() {
			assert.GreaterOrEqual(t, ev.Battery, 0.0)
			assert.LessOrEqual(t, ev.Battery, 100.0)
		}
	}
}

func TestProcessFastVehicleDoesNotCharge(t *testing.T) {
	c := newAllEV(t, hub)
	res := c.Process([]model.Vehicle{{ID: "ev", Position: hub.Position, Speed: 5}}, start)
	assert.Equal(t, 0, res.Charging)
	assert.Empty(t, res.Occupancy[hub.ID])
}

func TestChargingStopsAtFullWithinTick(t *testing.T) {
	c := newAllEV(t, hub)
	v := parked("ev", hub.Position)
	c.Process([]model.Vehicle{v}, start)
	c.evs["ev"].Battery = 94.6

	res := c.Process([]model.Vehicle{v}, start.Add(time.Second))
	ev, ok := c.Vehicle("ev")
	require.True(t, ok)
	assert.InDelta(t, 95.1, ev.Battery, 1e-9)
	assert.False(t, ev.Charging)
	assert.Empty(t, ev.AssignedStation)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, hub.ID, res.Completed[0].StationID)

	res = c.Process([]model.Vehicle{v}, start.Add(2*time.Second))
	assert.Equal(t, 0, res.Charging, "a full vehicle is not admitted again")
}

func TestSessionEnergyIsCapped(t *testing.T) {
	c := newAllEV(t, hub)
	v := parked("ev", hub.Position)
	c.Process([]model.Vehicle{v}, start)
	c.evs["ev"].Battery = 20

	c.Process([]model.Vehicle{v}, start.Add(time.Hour))
	ev, _ := c.Vehicle("ev")
	assert.InDelta(t, 50, ev.EnergyKWh, 1e-9)

	c.Process([]model.Vehicle{v}, start.Add(3*time.Hour))
	ev, _ = c.Vehicle("ev")
	assert.InDelta(t, 100, ev.EnergyKWh, 1e-9)
}

func TestDisappearedVehicleIsRemoved(t *testing.T) {
	c := newAllEV(t, hub)
	c.Process([]model.Vehicle{parked("ev", hub.Position)}, start)
	c.evs["ev"].Battery = 40
	c.Process([]model.Vehicle{parked("ev", hub.Position)}, start.Add(time.Hour))

	res := c.Process(nil, start.Add(2*time.Hour))
	_, ok := c.Vehicle("ev")
	assert.False(t, ok)
	require.Len(t, res.Completed, 1)
	assert.InDelta(t, 50, res.Completed[0].EnergyKWh, 1e-9)
	assert.InDelta(t, 50, c.DeliveredKWh(), 1e-9)
	assert.Equal(t, 0, res.TotalEVs)
}

func TestRouteRequestedOnce(t *testing.T) {
	c := newAllEV(t, hub)
	v := model.Vehicle{ID: "ev", Position: orb.Point{-73.9900, 40.7600}, Speed: 8}
	c.Process([]model.Vehicle{v}, start)
	c.evs["ev"].Battery = 10
	c.evs["ev"].AssignedStation = ""

	res := c.Process([]model.Vehicle{v}, start.Add(time.Second))
	require.Len(t, res.Routes, 1)
	assert.Equal(t, hub.ID, res.Routes[0].StationID)
	res = c.Process([]model.Vehicle{v}, start.Add(2*time.Second))
	assert.Empty(t, res.Routes)
}

func TestStationsView(t *testing.T) {
	c := newAllEV(t, hub)
	c.Process([]model.Vehicle{parked("a", hub.Position), parked("b", hub.Position)}, start)
	views := c.Stations()
	require.Len(t, views, 1)
	assert.Equal(t, 100.0, views[0].Utilization)
	assert.Equal(t, "busy", views[0].Status)
	assert.Len(t, views[0].Occupants, 2)
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	cfg.DrainPerTick = -1
	assert.Error(t, cfg.Validate())
}
