package simulator

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/kilianp07/trafficgrid/core/model"
)

// arrival radius around a route target, in meters.
const arrivalMeters = 25

// vehicle is the kinematic state of one simulated car. It travels along a
// street (dc != 0) or an avenue (dr != 0) until it is routed to a target.
type vehicle struct {
	id      string
	kind    string
	pos     orb.Point
	dr, dc  int
	speed   float64
	cruise  float64
	target  *orb.Point
	station string
	dwell   int
}

func (v *vehicle) heading() float64 {
	switch {
	case v.target != nil:
		return geo.Bearing(v.pos, *v.target)
	case v.dr > 0:
		return 0
	case v.dc > 0:
		return 90
	case v.dr < 0:
		return 180
	default:
		return 270
	}
}

func (v *vehicle) model() model.Vehicle {
	return model.Vehicle{ID: v.id, Position: v.pos, Speed: v.speed, Heading: v.heading(), Type: v.kind}
}

// moveToward advances the vehicle straight to its target. It reports true
// once the vehicle has arrived.
func (v *vehicle) moveToward(stepM float64) bool {
	d := geo.Distance(v.pos, *v.target)
	if d <= arrivalMeters {
		v.speed = 0
		return true
	}
	v.speed = v.cruise
	f := math.Min(1, stepM/d)
	v.pos = orb.Point{
		v.pos.Lon() + (v.target.Lon()-v.pos.Lon())*f,
		v.pos.Lat() + (v.target.Lat()-v.pos.Lat())*f,
	}
	return false
}

// moveOnGrid advances along the current street or avenue. The vehicle halts
// short of an intersection whose state shows red.
func (v *vehicle) moveOnGrid(g *streetGrid, states map[string]string, stepM float64) {
	id, dist, ok := g.nextSignal(v.pos, v.dr, v.dc)
	travel := stepM
	if ok && dist <= stepM && model.ClassifyState(states[id]) == model.Red {
		travel = math.Max(0, dist-5)
	}
	v.speed = travel / (stepM / v.cruise)
	v.pos = orb.Point{
		v.pos.Lon() + float64(v.dc)*travel/g.lonM,
		v.pos.Lat() + float64(v.dr)*travel/metersPerDegLat,
	}
}
