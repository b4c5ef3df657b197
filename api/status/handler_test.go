package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/model"
)

func published() *coupling.SnapshotStore {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store := &coupling.SnapshotStore{}
	store.Publish(&coupling.Published{
		Status: coupling.Status{RunID: "run-1", Tick: 7, Time: now, LoadMW: 420, GenerationMW: 410, BalanceMW: -10},
		Network: &coupling.NetworkSnapshot{
			Tick: 7,
			Time: now,
			Stations: []coupling.StationStatus{
				{StationView: charging.StationView{ChargingStation: model.ChargingStation{ID: "st1", Chargers: 4}, Utilization: 50, Status: "available"}, PowerMW: 0.3},
				{StationView: charging.StationView{ChargingStation: model.ChargingStation{ID: "st2", Chargers: 2}, Utilization: 100, Status: "full"}, PowerMW: 0.3},
			},
		},
	})
	return store
}

func serve(h http.Handler, method, url string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, url, nil))
	return rr
}

func TestHandlersBeforeFirstTick(t *testing.T) {
	store := &coupling.SnapshotStore{}
	for _, h := range []http.Handler{NewStatusHandler(store), NewNetworkHandler(store), NewStationHandler(store)} {
		rr := serve(h, http.MethodGet, "/api/stations/st1")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	rr := serve(NewStatusHandler(published()), http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var st coupling.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, int64(7), st.Tick)
	assert.InDelta(t, -10, st.BalanceMW, 1e-9)

	rr = serve(NewStatusHandler(published()), http.MethodPost, "/api/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestNetworkHandlerSections(t *testing.T) {
	h := NewNetworkHandler(published())

	rr := serve(h, http.MethodGet, "/api/network")
	require.Equal(t, http.StatusOK, rr.Code)
	var full map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &full))
	assert.Contains(t, full, "stations")
	assert.Contains(t, full, "metrics")

	rr = serve(h, http.MethodGet, "/api/network?section=stations")
	require.Equal(t, http.StatusOK, rr.Code)
	var stations []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stations))
	require.Len(t, stations, 2)
	assert.Equal(t, "st1", stations[0]["id"])

	rr = serve(h, http.MethodGet, "/api/network?section=weather")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStationHandler(t *testing.T) {
	h := NewStationHandler(published())

	rr := serve(h, http.MethodGet, "/api/stations/st2")
	require.Equal(t, http.StatusOK, rr.Code)
	var st map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "st2", st["id"])
	assert.Equal(t, "full", st["status"])

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/stations/nope").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/stations/").Code)
}
