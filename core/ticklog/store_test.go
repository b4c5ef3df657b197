package ticklog

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/dispatch"
)

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func report(tick int64, station string) coupling.TickReport {
	now := base.Add(time.Duration(tick) * time.Second)
	rep := coupling.TickReport{
		RunID:    "run-1",
		Tick:     tick,
		Time:     now,
		Duration: 1500 * time.Microsecond,
		Status:   coupling.Status{RunID: "run-1", Tick: tick, Time: now, LoadMW: 100 + float64(tick)},
		Dispatch: dispatch.Result{Violations: dispatch.Violations{
			Thermal: []dispatch.Violation{{Kind: dispatch.KindLine, ElementID: "l1", Value: 95, Limit: 90, Severity: dispatch.Warning}},
		}},
	}
	if station != "" {
		rep.Charging.Completed = []charging.Session{{ID: "s", VehicleID: "ev", StationID: station, Start: now.Add(-time.Hour), End: now, EnergyKWh: 10}}
	}
	return rep
}

func TestFromReport(t *testing.T) {
	rep := report(4, "st1")
	rep.Errors = []coupling.EntityError{{Component: coupling.ComponentSignal, EntityID: "x", Err: errors.New("boom")}}

	rec := FromReport(rep)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, int64(4), rec.Tick)
	assert.InDelta(t, 1.5, rec.DurationMS, 1e-9)
	require.Len(t, rec.Violations, 1)
	require.Len(t, rec.Sessions, 1)
	require.Len(t, rec.Errors, 1)
	assert.Equal(t, Fault{Component: coupling.ComponentSignal, EntityID: "x", Error: "boom"}, rec.Errors[0])

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.Errors, back.Errors)
	assert.InDelta(t, 104, back.Status.LoadMW, 1e-9)
}

func TestQueryMatches(t *testing.T) {
	rec := FromReport(report(10, "st1"))
	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"before start", Query{Start: base.Add(11 * time.Second)}, false},
		{"after end", Query{End: base.Add(9 * time.Second)}, false},
		{"window", Query{Start: base, End: base.Add(time.Minute)}, true},
		{"other run", Query{RunID: "run-2"}, false},
		{"station hit", Query{StationID: "st1"}, true},
		{"station miss", Query{StationID: "st2"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.q.Matches(rec))
		})
	}
}
