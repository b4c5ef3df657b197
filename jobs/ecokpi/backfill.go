// Package ecokpi rebuilds station KPIs from recorded history.
package ecokpi

import (
	eco "github.com/kilianp07/trafficgrid/core/metrics/eco"
	"github.com/kilianp07/trafficgrid/core/ticklog"
)

// Backfill adds every charging session found in history to store. The
// renewable share of a session is the one reported in the status of the
// tick that closed it.
func Backfill(store eco.Store, history []ticklog.Record) (int, error) {
	n := 0
	for _, h := range history {
		share := h.Status.RenewablePercent / 100
		for _, s := range h.Sessions {
			rec := eco.Record{
				StationID:    s.StationID,
				Date:         eco.Day(s.End),
				DeliveredKWh: s.EnergyKWh,
				RenewableKWh: s.EnergyKWh * share,
				Sessions:     1,
			}
			if err := store.Add(rec); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
