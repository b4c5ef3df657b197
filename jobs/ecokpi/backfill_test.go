package ecokpi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	eco "github.com/kilianp07/trafficgrid/core/metrics/eco"
	"github.com/kilianp07/trafficgrid/core/ticklog"
)

func TestBackfill(t *testing.T) {
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	history := []ticklog.Record{
		{Status: coupling.Status{RenewablePercent: 50}, Sessions: []charging.Session{
			{StationID: "st1", End: day, EnergyKWh: 10},
			{StationID: "st2", End: day, EnergyKWh: 4},
		}},
		{Status: coupling.Status{RenewablePercent: 0}},
		{Status: coupling.Status{RenewablePercent: 0}, Sessions: []charging.Session{
			{StationID: "st1", End: day.Add(time.Hour), EnergyKWh: 10},
		}},
	}
	store := eco.NewMemoryStore()
	n, err := Backfill(store, history)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := store.Query("st1", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 20, recs[0].DeliveredKWh, 1e-9)
	assert.InDelta(t, 5, recs[0].RenewableKWh, 1e-9)
	assert.Equal(t, 2, recs[0].Sessions)
}

type failingStore struct{ eco.Store }

func (failingStore) Add(eco.Record) error { return errors.New("readonly") }

func TestBackfillStopsOnError(t *testing.T) {
	history := []ticklog.Record{{Sessions: []charging.Session{{StationID: "st1"}, {StationID: "st2"}}}}
	n, err := Backfill(failingStore{}, history)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}
