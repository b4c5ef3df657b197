package charging

import "fmt"

// Config holds the EV behaviour knobs. Radii and distances are in degrees.
type Config struct {
	SharePercent   float64 `json:"share_percent"`
	BiasPercent    float64 `json:"bias_percent"`
	BaseRadius     float64 `json:"base_radius"`
	ExtraRadius    float64 `json:"extra_radius"`
	SanityDistance float64 `json:"sanity_distance"`
	StopSpeed      float64 `json:"stop_speed"`
	ChargeStep     float64 `json:"charge_step"`
	FullAt         float64 `json:"full_at"`
	UrgentBelow    float64 `json:"urgent_below"`
	OpportunityAt  float64 `json:"opportunity_below"`
	MaxSessionKWh  float64 `json:"max_session_kwh"`
	DrainPerTick   float64 `json:"drain_per_tick"`
	InitialMin     float64 `json:"initial_min"`
	InitialMax     float64 `json:"initial_max"`
}

// SetDefaults fills unset fields. Share and bias keep an explicit zero only
// when set through the runtime knobs.
func (c *Config) SetDefaults() {
	if c.SharePercent == 0 {
		c.SharePercent = 30
	}
	if c.BiasPercent == 0 {
		c.BiasPercent = 30
	}
	if c.BaseRadius == 0 {
		c.BaseRadius = 0.002
	}
	if c.ExtraRadius == 0 {
		c.ExtraRadius = 0.006
	}
	if c.SanityDistance == 0 {
		c.SanityDistance = 0.01
	}
	if c.StopSpeed == 0 {
		c.StopSpeed = 2.0
	}
	if c.ChargeStep == 0 {
		c.ChargeStep = 0.5
	}
	if c.FullAt == 0 {
		c.FullAt = 95
	}
	if c.UrgentBelow == 0 {
		c.UrgentBelow = 30
	}
	if c.OpportunityAt == 0 {
		c.OpportunityAt = 50
	}
	if c.MaxSessionKWh == 0 {
		c.MaxSessionKWh = 100
	}
	if c.InitialMin == 0 && c.InitialMax == 0 {
		c.InitialMin, c.InitialMax = 20, 80
	}
	c.SharePercent = clampPercent(c.SharePercent)
	c.BiasPercent = clampPercent(c.BiasPercent)
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	if c.InitialMax < c.InitialMin {
		return fmt.Errorf("charging: initial_max %.1f below initial_min %.1f", c.InitialMax, c.InitialMin)
	}
	if c.FullAt <= 0 || c.FullAt > 100 {
		return fmt.Errorf("charging: full_at must be in (0,100], got %.1f", c.FullAt)
	}
	if c.DrainPerTick < 0 {
		return fmt.Errorf("charging: drain_per_tick must not be negative")
	}
	return nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
