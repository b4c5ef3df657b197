package stations

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/trafficgrid/core/metrics/eco"
)

// NewKPIHandler exposes daily charging KPIs via GET /api/stations/{id}/kpis.
func NewKPIHandler(store eco.Store, factor float64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/stations/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "kpis" {
			http.NotFound(w, r)
			return
		}
		start, end, err := window(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		recs, err := store.Query(parts[0], start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type day struct {
			Date           string  `json:"date"`
			DeliveredKWh   float64 `json:"delivered_kwh"`
			RenewableShare float64 `json:"renewable_share"`
			CO2Emitted     float64 `json:"co2_emitted"`
			Sessions       int     `json:"sessions"`
		}
		out := make([]day, len(recs))
		for i, rec := range recs {
			out[i] = day{
				Date:           rec.Date.Format("2006-01-02"),
				DeliveredKWh:   rec.DeliveredKWh,
				RenewableShare: rec.RenewableShare(),
				CO2Emitted:     rec.CO2Emitted(factor),
				Sessions:       rec.Sessions,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func window(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	if s := q.Get("start"); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			return
		}
	}
	if s := q.Get("end"); s != "" {
		if end, err = time.Parse(time.RFC3339, s); err != nil {
			return
		}
	}
	if end.IsZero() {
		end = time.Now()
	}
	return start, end, nil
}
