package eco

import "time"

// Record aggregates the charging energy delivered by one station over one
// day. RenewableKWh is the share of DeliveredKWh covered by renewable
// generation at the time each session closed.
type Record struct {
	StationID    string
	Date         time.Time
	DeliveredKWh float64
	RenewableKWh float64
	Sessions     int
}

// CO2Emitted returns the grams of CO2 attributable to the non-renewable
// part of the delivered energy, using factor in g/kWh.
func (r Record) CO2Emitted(factor float64) float64 {
	return (r.DeliveredKWh - r.RenewableKWh) * factor
}

// RenewableShare returns the renewable fraction of delivered energy.
func (r Record) RenewableShare() float64 {
	if r.DeliveredKWh == 0 {
		return 0
	}
	return r.RenewableKWh / r.DeliveredKWh
}
