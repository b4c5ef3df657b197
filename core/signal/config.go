package signal

import "fmt"

// Durations are the phase lengths of one pattern in ticks (seconds).
type Durations struct {
	Green  int `json:"green"`
	Yellow int `json:"yellow"`
	AllRed int `json:"all_red"`
}

// Cycle returns the number of ticks of a full six-phase cycle.
func (d Durations) Cycle() int { return 2 * (d.Green + d.Yellow + d.AllRed) }

func (d Durations) phase(p int) int {
	switch p % 3 {
	case 0:
		return d.Green
	case 1:
		return d.Yellow
	default:
		return d.AllRed
	}
}

// Config drives the signal controller.
type Config struct {
	Avenue Durations `json:"avenue"`
	Street Durations `json:"street"`
	// AvenueEvery marks every n-th signal, by discovery order, as an avenue.
	AvenueEvery int `json:"avenue_every"`
	// ReferenceLat anchors the latitude-derived avenue offset.
	ReferenceLat float64 `json:"reference_lat"`
	// StreetOffsetMax bounds the random street offset, exclusive.
	StreetOffsetMax int `json:"street_offset_max"`
	HistorySize     int `json:"history_size"`
}

// SetDefaults applies the Manhattan timings.
func (c *Config) SetDefaults() {
	if c.Avenue == (Durations{}) {
		c.Avenue = Durations{Green: 35, Yellow: 3, AllRed: 2}
	}
	if c.Street == (Durations{}) {
		c.Street = Durations{Green: 25, Yellow: 3, AllRed: 2}
	}
	if c.AvenueEvery <= 0 {
		c.AvenueEvery = 3
	}
	if c.ReferenceLat == 0 {
		c.ReferenceLat = 40.700
	}
	if c.StreetOffsetMax <= 0 {
		c.StreetOffsetMax = 30
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 10
	}
}

// Validate checks that every phase lasts at least one tick.
func (c Config) Validate() error {
	for name, d := range map[string]Durations{"avenue": c.Avenue, "street": c.Street} {
		if d.Green <= 0 || d.Yellow <= 0 || d.AllRed <= 0 {
			return fmt.Errorf("signals.%s: durations must be positive, got %+v", name, d)
		}
	}
	return nil
}
