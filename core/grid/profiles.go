package grid

import (
	"math"
	"time"

	"github.com/kilianp07/trafficgrid/core/model"
)

func weekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Saturday || d == time.Sunday
}

// ProfileFactor returns the multiplier applied to the base value of a load
// of the given category at time t. Profiles use the integer hour.
func ProfileFactor(c model.LoadCategory, t time.Time) float64 {
	h := t.Hour()
	switch c {
	case model.Commercial:
		return commercialFactor(h, weekend(t))
	case model.Residential:
		return residentialFactor(h, weekend(t))
	case model.Retail:
		if h >= 10 && h < 21 {
			return commercialFactor(h, weekend(t)) * 1.1
		}
		return 0.3
	case model.DataCenter:
		return 0.95
	case model.Hospital:
		if h >= 7 && h < 22 {
			return 0.85
		}
		return 0.7
	case model.Transit:
		if (h >= 7 && h < 10) || (h >= 17 && h < 20) {
			return 1.2
		}
		return 0.8
	default:
		return 1.0
	}
}

func commercialFactor(h int, weekendDay bool) float64 {
	if weekendDay {
		if h >= 10 && h < 18 {
			return 0.6
		}
		return 0.4
	}
	switch {
	case h >= 7 && h < 9:
		return 0.7
	case h >= 9 && h < 12:
		return 0.95
	case h >= 12 && h < 13:
		return 0.9
	case h >= 13 && h < 17:
		return 1.0
	case h >= 17 && h < 19:
		return 0.85
	case h >= 19 && h < 22:
		return 0.6
	default:
		return 0.4
	}
}

func residentialFactor(h int, weekendDay bool) float64 {
	if weekendDay {
		switch {
		case h >= 8 && h < 12:
			return 0.8
		case h >= 12 && h < 17:
			return 0.7
		case h >= 17 && h < 22:
			return 0.9
		default:
			return 0.5
		}
	}
	switch {
	case h >= 6 && h < 8:
		return 0.7
	case h >= 8 && h < 17:
		return 0.4
	case h >= 17 && h < 20:
		return 0.8
	case h >= 20 && h < 23:
		return 1.0
	default:
		return 0.5
	}
}

// FractionalHour returns the hour of day including minutes and seconds.
func FractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// DimmingFactor returns the street-light intensity for the time of day and
// traffic volume. Bands use the integer hour like ProfileFactor; the day
// band takes 18h and the night band takes 0-5h, so dusk is 19-20h.
// Values above 1 mean boosted output under heavy traffic.
func DimmingFactor(t time.Time, vehicles int) float64 {
	h := t.Hour()
	var f float64
	switch {
	case h >= 6 && h <= 18:
		f = 0
	case h > 18 && h <= 20:
		f = 0.7
	default:
		f = 1.0
	}
	switch {
	case vehicles < 100:
		f *= 0.7
	case vehicles > 500:
		f *= 1.1
	}
	return f
}

// SolarFactor returns the fraction of installed PV capacity available at t.
func SolarFactor(t time.Time) float64 {
	h := FractionalHour(t)
	if h < 6 || h > 18 {
		return 0
	}
	v := math.Sin((h-6)*math.Pi/12) * 0.85
	if v < 0 {
		return 0
	}
	return v
}
