// Package export renders tick history for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/trafficgrid/core/ticklog"
)

var header = []string{
	"run_id", "tick", "timestamp",
	"load_mw", "generation_mw", "balance_mw",
	"solar_mw", "battery_mw", "renewable_percent",
	"ev_charging_mw", "traffic_signals_mw", "street_lights_mw",
	"max_line_utilization", "violations_critical", "vehicles", "evs_charging",
}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []ticklog.Record) error {
	if recs == nil {
		recs = []ticklog.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteCSV writes one row per tick with the headline grid figures.
func WriteCSV(w io.Writer, recs []ticklog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		s := r.Status
		row := []string{
			r.RunID,
			strconv.FormatInt(r.Tick, 10),
			r.Timestamp.UTC().Format(time.RFC3339),
			ff(s.LoadMW), ff(s.GenerationMW), ff(s.BalanceMW),
			ff(s.SolarMW), ff(s.BatteryMW), ff(s.RenewablePercent),
			ff(s.Breakdown.EVChargingMW), ff(s.Breakdown.TrafficSignalsMW), ff(s.Breakdown.StreetLightsMW),
			ff(s.MaxLineUtilization),
			strconv.Itoa(s.Violations.Critical),
			strconv.Itoa(s.Vehicles.Total),
			strconv.Itoa(s.Vehicles.Charging),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSessionsCSV writes every completed charging session found in recs.
func WriteSessionsCSV(w io.Writer, recs []ticklog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"session_id", "station_id", "vehicle_id", "start", "end", "energy_kwh"}); err != nil {
		return err
	}
	for _, r := range recs {
		for _, s := range r.Sessions {
			row := []string{
				s.ID, s.StationID, s.VehicleID,
				s.Start.UTC().Format(time.RFC3339),
				s.End.UTC().Format(time.RFC3339),
				ff(s.EnergyKWh),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
