package grid

import (
	"math"
	"strings"
	"time"

	"github.com/kilianp07/trafficgrid/core/model"
)

const (
	yellowSurcharge = 0.15
	adaptiveBoost   = 1.2
	evDiversity     = 0.85
	ledDimming      = 0.8
)

// LoadInputs is the traffic-derived state written into the topology once
// per tick.
type LoadInputs struct {
	VehicleCount int
	// SignalStates maps traffic light ids to their current state strings.
	SignalStates map[string]string
	// Occupancy maps station ids to the number of vehicles charging there.
	Occupancy map[string]int
	Time      time.Time
}

// Breakdown is the per-category demand after ApplyLoads.
type Breakdown struct {
	TotalMW         float64 `json:"total_mw"`
	TrafficSignalMW float64 `json:"traffic_signal_mw"`
	StreetLightMW   float64 `json:"street_light_mw"`
	EVChargingMW    float64 `json:"ev_charging_mw"`
	BaseMW          float64 `json:"base_mw"`
	YellowRatio     float64 `json:"yellow_ratio"`
	Dimming         float64 `json:"dimming"`
}

// YellowRatio returns the fraction of states showing a yellow aspect.
func YellowRatio(states map[string]string) float64 {
	if len(states) == 0 {
		return 0
	}
	n := 0
	for _, s := range states {
		if strings.ContainsAny(s, "yY") {
			n++
		}
	}
	return float64(n) / float64(len(states))
}

// ApplyLoads recomputes CurrentMW of every load. It is the only writer of
// load values and must be called from the tick goroutine.
func (t *Topology) ApplyLoads(in LoadInputs) Breakdown {
	yr := YellowRatio(in.SignalStates)
	signalFactor := 1 + yellowSurcharge*yr
	dim := DimmingFactor(in.Time, in.VehicleCount)

	b := Breakdown{YellowRatio: yr, Dimming: dim}
	for i := range t.Loads {
		l := &t.Loads[i]
		switch l.Category {
		case model.TrafficSignal:
			v := l.BaseMW * signalFactor
			if l.Adaptive {
				v *= adaptiveBoost
			}
			l.CurrentMW = v
			b.TrafficSignalMW += v
		case model.StreetLight:
			if l.Dimmable {
				l.CurrentMW = l.BaseMW * dim * ledDimming
			} else {
				l.CurrentMW = l.BaseMW * math.Min(1, dim)
			}
			b.StreetLightMW += l.CurrentMW
		case model.EVCharging:
			l.CurrentMW = t.stationLoad(l.StationID, in.Occupancy[l.StationID])
			b.EVChargingMW += l.CurrentMW
		default:
			l.CurrentMW = l.BaseMW * ProfileFactor(l.Category, in.Time)
			b.BaseMW += l.CurrentMW
		}
		b.TotalMW += l.CurrentMW
	}
	return b
}

func (t *Topology) stationLoad(id string, occupants int) float64 {
	st, ok := t.Station(id)
	if !ok || st.Chargers <= 0 || occupants <= 0 {
		return 0
	}
	return st.CapacityMW * float64(occupants) / float64(st.Chargers) * evDiversity
}
