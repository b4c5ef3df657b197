package simulator

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Config holds parameters of the synthetic traffic generator.
type Config struct {
	Seed            int64         `json:"seed"`
	Vehicles        int           `json:"vehicles"`
	Streets         int           `json:"streets"`
	Avenues         int           `json:"avenues"`
	LanesPerSignal  int           `json:"lanes_per_signal"`
	TurnoverPercent float64       `json:"turnover_percent"`
	MaxSpeed        float64       `json:"max_speed"`
	Step            time.Duration `json:"step"`
	DwellSteps      int           `json:"dwell_steps"`
	Bounds          orb.Bound     `json:"-"`
	Start           time.Time     `json:"start"`
}

// Manhattan is the default simulated area.
var Manhattan = orb.Bound{Min: orb.Point{-74.020, 40.700}, Max: orb.Point{-73.930, 40.800}}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Vehicles <= 0 {
		c.Vehicles = 300
	}
	if c.Streets <= 0 {
		c.Streets = 20
	}
	if c.Avenues <= 0 {
		c.Avenues = 6
	}
	if c.LanesPerSignal <= 0 {
		c.LanesPerSignal = 4
	}
	if c.TurnoverPercent == 0 {
		c.TurnoverPercent = 1
	}
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = 12
	}
	if c.Step <= 0 {
		c.Step = time.Second
	}
	if c.DwellSteps <= 0 {
		c.DwellSteps = 900
	}
	if c.Bounds.IsZero() {
		c.Bounds = Manhattan
	}
	if c.Start.IsZero() {
		c.Start = time.Now().UTC().Truncate(time.Second)
	}
}

// Validate checks the generator parameters.
func (c Config) Validate() error {
	if c.TurnoverPercent < 0 || c.TurnoverPercent > 100 {
		return fmt.Errorf("simulator: turnover_percent %.1f outside [0,100]", c.TurnoverPercent)
	}
	if c.Bounds.Max.Lon() <= c.Bounds.Min.Lon() || c.Bounds.Max.Lat() <= c.Bounds.Min.Lat() {
		return fmt.Errorf("simulator: empty bounds")
	}
	return nil
}
