package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/dispatch"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	"github.com/kilianp07/trafficgrid/core/model"
	"github.com/kilianp07/trafficgrid/core/signal"
)

func sampleStatus(now time.Time) coupling.Status {
	return coupling.Status{
		RunID:              "run-1",
		Tick:               3,
		Time:               now,
		GenerationMW:       120,
		LoadMW:             118.5,
		BalanceMW:          1.5,
		Breakdown:          coupling.LoadBreakdown{TrafficSignalsMW: 0.2, StreetLightsMW: 1.1, EVChargingMW: 2.2, BaseMW: 115},
		SolarMW:            12,
		RenewablePercent:   10,
		BatteryMW:          -3,
		EnergyMWh:          40,
		MaxLineUtilization: 91.5,
		DispatchMode:       dispatch.ModeMerit,
		FlowModel:          "dc",
		Vehicles:           coupling.VehicleCounts{Total: 10, EVs: 4, Charging: 2, Moving: 6, Stopped: 4},
		Signals:            signal.ColorCounts{Green: 5, Yellow: 1, Red: 4},
		Violations:         coupling.ViolationCounts{Thermal: 1, Critical: 0},
	}
}

func TestPromSink_RecordStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordStatus(sampleStatus(time.Now())))

	assert.InDelta(t, 118.5, testutil.ToFloat64(sink.load.WithLabelValues("total")), 1e-9)
	assert.InDelta(t, 2.2, testutil.ToFloat64(sink.load.WithLabelValues("ev_charging")), 1e-9)
	assert.InDelta(t, 12.0, testutil.ToFloat64(sink.generation.WithLabelValues("solar")), 1e-9)
	assert.InDelta(t, 91.5, testutil.ToFloat64(sink.lineMax), 1e-9)
	assert.Equal(t, 4.0, testutil.ToFloat64(sink.signals.WithLabelValues("red")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.vehicles.WithLabelValues("charging")))

	expected := `
# HELP grid_renewable_percent Share of generation from solar
# TYPE grid_renewable_percent gauge
grid_renewable_percent 10
`
	if err := testutil.CollectAndCompare(sink.renewable, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPromSink_RecordTickFanOut(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	now := time.Now()

	st := model.ChargingStation{ID: "st1", Bus: "b1", Chargers: 4}
	rep := coupling.TickReport{
		Tick:     3,
		Time:     now,
		Duration: 20 * time.Millisecond,
		Status:   sampleStatus(now),
		Dispatch: dispatch.Result{Violations: dispatch.Violations{
			Thermal: []dispatch.Violation{{Kind: dispatch.KindLine, ElementID: "l1", Value: 95, Limit: 90, Severity: dispatch.Warning}},
			Voltage: []dispatch.Violation{{Kind: dispatch.KindUndervoltage, ElementID: "b2", Value: 0.88, Limit: 0.90, Severity: dispatch.Critical}},
		}},
		Charging: charging.Result{Completed: []charging.Session{{ID: "s1", StationID: "st1", VehicleID: "ev1", Start: now.Add(-time.Hour), End: now, EnergyKWh: 30}}},
		Network: &coupling.NetworkSnapshot{Stations: []coupling.StationStatus{{
			StationView: charging.StationView{ChargingStation: st, Occupants: []string{"ev2"}, Utilization: 25},
		}}},
	}
	require.NoError(t, coremetrics.RecordTick(sink, rep))

	expected := `
# HELP grid_violation_events_total Limit violations observed across ticks
# TYPE grid_violation_events_total counter
grid_violation_events_total{kind="line",severity="warning"} 1
grid_violation_events_total{kind="undervoltage",severity="critical"} 1
`
	if err := testutil.CollectAndCompare(sink.violations, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected violations: %v", err)
	}
	assert.Equal(t, 25.0, testutil.ToFloat64(sink.stations.WithLabelValues("st1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.sessions.WithLabelValues("st1")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.tick))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordStatus(sampleStatus(time.Now())))
	assert.Equal(t, 10.0, testutil.ToFloat64(first.renewable), "second sink should share collectors with the first")
}
