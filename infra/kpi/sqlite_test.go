package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/kilianp07/trafficgrid/core/metrics/eco"
)

func TestSQLiteStore_UpsertAndQuery(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kpi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	day := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.Add(core.Record{StationID: "EV_L2_002", Date: day, DeliveredKWh: 6, RenewableKWh: 2, Sessions: 1}))
	require.NoError(t, s.Add(core.Record{StationID: "EV_L2_002", Date: day.Add(5 * time.Hour), DeliveredKWh: 4, Sessions: 1}))
	require.NoError(t, s.Add(core.Record{StationID: "EV_L2_003", Date: day, DeliveredKWh: 1, Sessions: 1}))

	recs, err := s.Query("EV_L2_002", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.Day(day), recs[0].Date)
	assert.InDelta(t, 10, recs[0].DeliveredKWh, 1e-9)
	assert.InDelta(t, 2, recs[0].RenewableKWh, 1e-9)
	assert.Equal(t, 2, recs[0].Sessions)
}
