package coupling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/dispatch"
	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/model"
	"github.com/kilianp07/trafficgrid/core/signal"
)

var manhattan = orb.Bound{Min: orb.Point{-74.020, 40.700}, Max: orb.Point{-73.930, 40.800}}

func lane(lon, lat float64) orb.LineString {
	return orb.LineString{{lon - 0.0005, lat - 0.0005}, {lon, lat}}
}

func inventory() []model.SignalDescriptor {
	return []model.SignalDescriptor{
		{ID: "times_sq", Lanes: []orb.LineString{lane(-73.9855, 40.7580), lane(-73.9855, 40.7580), lane(-73.9855, 40.7580)}},
		{ID: "wall_st", Lanes: []orb.LineString{lane(-74.0090, 40.7080), lane(-74.0090, 40.7080)}},
		{ID: "no_lanes"},
		{ID: "jersey", Lanes: []orb.LineString{lane(-74.0500, 40.7200)}},
	}
}

func newTestOrchestrator(t *testing.T, src TrafficSource) *Orchestrator {
	t.Helper()
	topo, err := grid.Build(grid.DefaultDescription())
	require.NoError(t, err)
	sim := NewSimulationContext(7, NewSteppedClock(monday, time.Second))
	o, err := New(Config{Bounds: &manhattan}, sim, src, topo, nil, nil)
	require.NoError(t, err)
	return o
}

func initialized(t *testing.T) (*Orchestrator, *mockSource) {
	t.Helper()
	src := &mockSource{}
	src.On("Signals", mock.Anything).Return(inventory(), nil)
	src.On("SetSignalState", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	o := newTestOrchestrator(t, src)
	_, err := o.Initialize(context.Background())
	require.NoError(t, err)
	return o, src
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, nil, &mockSource{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestNew_InvalidDispatchConfig(t *testing.T) {
	topo, err := grid.Build(grid.DefaultDescription())
	require.NoError(t, err)
	sim := NewSimulationContext(1, nil)
	_, err = New(Config{Dispatch: dispatch.Config{Mode: "quantum"}}, sim, &mockSource{}, topo, nil, nil)
	assert.Error(t, err)
}

func TestTick_NotInitialized(t *testing.T) {
	o := newTestOrchestrator(t, &mockSource{})
	_, err := o.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitialize_PushesStatesAndMapsBuses(t *testing.T) {
	src := &mockSource{}
	src.On("Signals", mock.Anything).Return(inventory(), nil)
	src.On("SetSignalState", mock.Anything, "times_sq", "GGr").Return(nil).Once()
	src.On("SetSignalState", mock.Anything, "wall_st", mock.AnythingOfType("string")).Return(nil).Once()
	o := newTestOrchestrator(t, src)

	errs, err := o.Initialize(context.Background())
	require.NoError(t, err)
	src.AssertExpectations(t)

	require.Len(t, errs, 2)
	assert.Equal(t, ComponentSignal, errs[0].Component)
	assert.Equal(t, "no_lanes", errs[0].EntityID)
	assert.ErrorIs(t, errs[0], signal.ErrNoLanes)
	assert.ErrorIs(t, errs[1], signal.ErrOutOfBounds)

	assert.Equal(t, 2, o.Signals().Len())
	assert.Equal(t, "NET_4_Times_Square_Network", o.lightBus["times_sq"])
	assert.Equal(t, "NET_4_Financial_Network", o.lightBus["wall_st"])
}

func TestInitialize_PushFailureIsEntityError(t *testing.T) {
	src := &mockSource{}
	src.On("Signals", mock.Anything).Return(inventory()[:2], nil)
	src.On("SetSignalState", mock.Anything, "times_sq", mock.Anything).Return(errors.New("broken pipe"))
	src.On("SetSignalState", mock.Anything, "wall_st", mock.Anything).Return(nil)
	o := newTestOrchestrator(t, src)

	errs, err := o.Initialize(context.Background())
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "times_sq", errs[0].EntityID)
	assert.EqualError(t, errs[0], "signal times_sq: broken pipe")
}

func TestInitialize_InventoryFailure(t *testing.T) {
	src := &mockSource{}
	src.On("Signals", mock.Anything).Return(nil, errors.New("connection refused"))
	o := newTestOrchestrator(t, src)
	_, err := o.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrTrafficUnavailable)
	_, err = o.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTick_SnapshotFailure(t *testing.T) {
	o, src := initialized(t)
	cause := errors.New("simulator gone")
	src.On("Snapshot", mock.Anything).Return(nil, cause)

	_, err := o.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrafficUnavailable)
	assert.ErrorIs(t, err, cause)
	_, ok := o.Store().Latest()
	assert.False(t, ok)
}

func TestTick_Pipeline(t *testing.T) {
	o, src := initialized(t)
	src.On("Snapshot", mock.Anything).Return(model.TrafficSnapshot{
		Time: monday,
		Vehicles: []model.Vehicle{
			{ID: "v1", Position: orb.Point{-73.9850, 40.7570}, Speed: 8},
			{ID: "v2", Position: orb.Point{-73.9900, 40.7400}, Speed: 0},
			{ID: "v3", Position: orb.Point{-74.0600, 40.7400}, Speed: 5},
		},
	}, nil)

	rep, err := o.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.Tick)
	assert.Equal(t, monday.Add(time.Second), rep.Time)

	st := rep.Status
	assert.Equal(t, 2, st.Vehicles.Total)
	assert.Equal(t, 1, st.Vehicles.Moving)
	assert.Equal(t, 1, st.Vehicles.Stopped)
	assert.Greater(t, st.LoadMW, 0.0)
	assert.Greater(t, st.GenerationMW, 0.0)
	assert.InDelta(t, st.LoadMW,
		st.Breakdown.BaseMW+st.Breakdown.TrafficSignalsMW+st.Breakdown.StreetLightsMW+st.Breakdown.EVChargingMW, 1e-9)
	assert.InDelta(t, st.Breakdown.TrafficSignalsMW+st.Breakdown.StreetLightsMW, st.Breakdown.TrafficInfrastructureMW, 1e-9)
	assert.Equal(t, st.LoadMW, st.PeakDemandMW)
	assert.InDelta(t, 100, st.LoadFactor, 1e-9)
	assert.Equal(t, TrendStable, st.Trend)
	assert.LessOrEqual(t, len(st.LineUtilization), topLines)
	assert.Equal(t, 2, st.Signals.Green+st.Signals.Yellow+st.Signals.Red)

	pub, ok := o.Store().Latest()
	require.True(t, ok)
	assert.Equal(t, st, pub.Status)
	assert.Equal(t, rep.Tick, pub.Network.Tick)
	assert.Len(t, pub.Network.Buses, len(o.Topology().Buses))
	assert.Len(t, pub.Network.Signals, 2)
	assert.InDelta(t, pub.Network.Metrics.TotalGenerationMW-pub.Network.Metrics.TotalLoadMW, pub.Network.Metrics.LossesMW, 1e-9)
}

func TestTick_ZeroVehicles(t *testing.T) {
	o, src := initialized(t)
	src.On("Snapshot", mock.Anything).Return(model.TrafficSnapshot{}, nil)

	rep, err := o.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Status.Vehicles.Total)
	assert.Zero(t, rep.Status.Vehicles.EVs)
	assert.Zero(t, rep.Status.Breakdown.EVChargingMW)
	assert.Zero(t, rep.Status.Breakdown.StreetLightsMW, "street lights are off at noon")
	assert.Empty(t, rep.Charging.Routes)

	var want float64
	for _, l := range o.Topology().Loads {
		if l.Category != model.TrafficSignal {
			continue
		}
		f := 1 + 0.15*rep.Breakdown.YellowRatio
		if l.Adaptive {
			f *= 1.2
		}
		want += l.BaseMW * f
	}
	assert.InDelta(t, want, rep.Status.Breakdown.TrafficSignalsMW, 1e-9)
}

func TestRun_MaxTicks(t *testing.T) {
	o, src := initialized(t)
	src.On("Snapshot", mock.Anything).Return(model.TrafficSnapshot{}, nil)

	var seen []int64
	err := o.Run(context.Background(), 0, 3, func(r TickReport) { seen = append(seen, r.Tick) })
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, seen)
	src.AssertNumberOfCalls(t, "Snapshot", 3)
	assert.Len(t, o.Context().History(), 3)
}

func TestRun_StopsOnTrafficFailure(t *testing.T) {
	o, src := initialized(t)
	src.On("Snapshot", mock.Anything).Return(model.TrafficSnapshot{}, nil).Once()
	src.On("Snapshot", mock.Anything).Return(nil, errors.New("eof"))

	ticks := 0
	err := o.Run(context.Background(), 0, 0, func(TickReport) { ticks++ })
	assert.ErrorIs(t, err, ErrTrafficUnavailable)
	assert.Equal(t, 1, ticks)
}

func TestRun_CancelledContext(t *testing.T) {
	o, src := initialized(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, o.Run(ctx, 0, 0, nil))
	require.NoError(t, o.Run(ctx, time.Millisecond, 0, nil))
	src.AssertNotCalled(t, "Snapshot", mock.Anything)
}

func TestRun_Paced(t *testing.T) {
	o, src := initialized(t)
	src.On("Snapshot", mock.Anything).Return(model.TrafficSnapshot{}, nil)
	require.NoError(t, o.Run(context.Background(), time.Millisecond, 2, nil))
	assert.Equal(t, int64(2), o.Context().Tick)
}

func TestPushBack_DegradesAndRestores(t *testing.T) {
	o, src := initialized(t)
	low := dispatch.Violations{Voltage: []dispatch.Violation{
		{Kind: dispatch.KindUndervoltage, ElementID: "NET_4_Times_Square_Network", Severity: dispatch.Warning},
	}}

	degraded, restored, errs := o.pushBack(context.Background(), low)
	assert.Equal(t, []string{"times_sq"}, degraded)
	assert.Empty(t, restored)
	assert.Empty(t, errs)
	src.AssertCalled(t, "SetSignalState", mock.Anything, "times_sq", "yyy")
	v, _ := o.Signals().State("times_sq")
	assert.True(t, v.Degraded)

	degraded, _, _ = o.pushBack(context.Background(), low)
	assert.Empty(t, degraded, "already degraded lights are not pushed again")

	_, restored, _ = o.pushBack(context.Background(), dispatch.Violations{})
	assert.Equal(t, []string{"times_sq"}, restored)
	v, _ = o.Signals().State("times_sq")
	assert.False(t, v.Degraded)
	assert.NotEqual(t, "yyy", v.State)
}

func TestRoute_UsesRouter(t *testing.T) {
	src := &mockRoutingSource{}
	src.On("Signals", mock.Anything).Return([]model.SignalDescriptor(nil), nil)
	target := orb.Point{-73.98, 40.75}
	src.On("RequestRoute", mock.Anything, "ev1", "EV_DC_1", target).Return(nil)
	src.On("RequestRoute", mock.Anything, "ev2", "EV_DC_1", target).Return(errors.New("unknown vehicle"))
	o := newTestOrchestrator(t, src)
	require.NotNil(t, o.router)

	errs := o.route(context.Background(), []charging.RouteRequest{
		{VehicleID: "ev1", StationID: "EV_DC_1", Target: target},
		{VehicleID: "ev2", StationID: "EV_DC_1", Target: target},
	})
	require.Len(t, errs, 1)
	assert.Equal(t, ComponentCharging, errs[0].Component)
	assert.Equal(t, "ev2", errs[0].EntityID)
	src.AssertExpectations(t)
}

func TestEntityError_JSON(t *testing.T) {
	b, err := EntityError{Component: ComponentGrid, EntityID: "x", Err: grid.ErrUnknownBus}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"component":"grid","entity_id":"x","error":"unknown bus"}`, string(b))
}
