package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/charging"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"
	eco "github.com/kilianp07/trafficgrid/core/metrics/eco"
)

func TestEcoSink_RecordSessions(t *testing.T) {
	store := eco.NewMemoryStore()
	sink, err := NewEcoSink(store, 400, prometheus.NewRegistry())
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	st := sampleStatus(now)
	st.RenewablePercent = 25
	require.NoError(t, sink.RecordStatus(st))

	sessions := []charging.Session{
		{ID: "a", StationID: "st1", VehicleID: "ev1", Start: now.Add(-time.Hour), End: now, EnergyKWh: 20},
		{ID: "b", StationID: "st1", VehicleID: "ev2", Start: now.Add(-time.Hour), End: now, EnergyKWh: 20},
	}
	require.NoError(t, sink.RecordSessions(sessions))

	recs, err := store.Query("st1", now, now)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Sessions)
	assert.InDelta(t, 40, recs[0].DeliveredKWh, 1e-9)
	assert.InDelta(t, 10, recs[0].RenewableKWh, 1e-9)

	assert.InDelta(t, 40, testutil.ToFloat64(sink.delivered.WithLabelValues("st1", "2024-05-01")), 1e-9)
	assert.InDelta(t, 0.25, testutil.ToFloat64(sink.share.WithLabelValues("st1", "2024-05-01")), 1e-9)
	assert.InDelta(t, 30*400, testutil.ToFloat64(sink.co2.WithLabelValues("st1", "2024-05-01")), 1e-6)
}

func TestFindEcoSink(t *testing.T) {
	sink, err := NewEcoSink(eco.NewMemoryStore(), 380, prometheus.NewRegistry())
	require.NoError(t, err)

	found, ok := FindEcoSink(coremetrics.NewMultiSink(coremetrics.NopSink{}, sink))
	require.True(t, ok)
	assert.Same(t, sink, found)
	assert.Equal(t, 380.0, found.Factor())
	assert.NotNil(t, found.Store())

	_, ok = FindEcoSink(coremetrics.NopSink{})
	assert.False(t, ok)
}
