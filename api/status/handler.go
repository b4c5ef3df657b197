// Package status serves the latest published tick over HTTP.
package status

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kilianp07/trafficgrid/core/coupling"
)

func latest(w http.ResponseWriter, r *http.Request, store *coupling.SnapshotStore) (*coupling.Published, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	p, ok := store.Latest()
	if !ok {
		http.Error(w, "no tick published yet", http.StatusServiceUnavailable)
		return nil, false
	}
	return p, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewStatusHandler exposes the aggregate status via GET /api/status.
func NewStatusHandler(store *coupling.SnapshotStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := latest(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, p.Status)
	})
}

// NewNetworkHandler exposes the network snapshot via GET /api/network.
// The optional section parameter narrows the answer to one inventory list.
func NewNetworkHandler(store *coupling.SnapshotStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := latest(w, r, store)
		if !ok {
			return
		}
		n := p.Network
		switch r.URL.Query().Get("section") {
		case "":
			writeJSON(w, n)
		case "buses":
			writeJSON(w, n.Buses)
		case "lines":
			writeJSON(w, n.Lines)
		case "generators":
			writeJSON(w, n.Generators)
		case "stations":
			writeJSON(w, n.Stations)
		case "signals":
			writeJSON(w, n.Signals)
		case "violations":
			writeJSON(w, n.Violations)
		default:
			http.Error(w, "unknown section", http.StatusBadRequest)
		}
	})
}

// NewStationHandler exposes one station via GET /api/stations/{id}.
func NewStationHandler(store *coupling.SnapshotStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/stations/"), "/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		p, ok := latest(w, r, store)
		if !ok {
			return
		}
		for _, st := range p.Network.Stations {
			if st.ID == id {
				writeJSON(w, st)
				return
			}
		}
		http.NotFound(w, r)
	})
}
