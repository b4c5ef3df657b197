package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// SimulationConfig drives the tick loop.
type SimulationConfig struct {
	// RunID tags every status and log record. Empty generates one.
	RunID string `json:"run_id"`
	Seed  int64  `json:"seed"`
	// TickIntervalMS paces ticks in wall time. Zero runs back to back.
	TickIntervalMS int `json:"tick_interval_ms"`
	// MaxTicks stops the run after this many ticks. Zero runs until cancelled.
	MaxTicks int `json:"max_ticks"`
	// StartTime switches to a simulated clock starting at this RFC 3339
	// instant. Empty follows wall time.
	StartTime   string        `json:"start_time"`
	StepSeconds float64       `json:"step_seconds"`
	Bounds      *BoundsConfig `json:"bounds"`
}

// BoundsConfig is a latitude/longitude box.
type BoundsConfig struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// SetDefaults applies default values.
func (c *SimulationConfig) SetDefaults() {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.StepSeconds <= 0 {
		c.StepSeconds = 1
	}
}

// Validate checks the clock and area settings.
func (c SimulationConfig) Validate() error {
	if c.MaxTicks < 0 || c.TickIntervalMS < 0 {
		return fmt.Errorf("max_ticks and tick_interval_ms must not be negative")
	}
	if c.StartTime != "" {
		if _, err := time.Parse(time.RFC3339, c.StartTime); err != nil {
			return fmt.Errorf("start_time: %w", err)
		}
	}
	if b := c.Bounds; b != nil && (b.MaxLat <= b.MinLat || b.MaxLon <= b.MinLon) {
		return fmt.Errorf("bounds: max must exceed min")
	}
	return nil
}

// TickInterval returns the wall-time pacing between ticks.
func (c SimulationConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// Step returns the simulated time covered by one tick.
func (c SimulationConfig) Step() time.Duration {
	return time.Duration(c.StepSeconds * float64(time.Second))
}

// Start returns the simulated start time, or false for wall time.
func (c SimulationConfig) Start() (time.Time, bool) {
	if c.StartTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, c.StartTime)
	return t, err == nil
}

// Bound returns the monitored area, or nil when unrestricted.
func (c SimulationConfig) Bound() *orb.Bound {
	if c.Bounds == nil {
		return nil
	}
	return &orb.Bound{
		Min: orb.Point{c.Bounds.MinLon, c.Bounds.MinLat},
		Max: orb.Point{c.Bounds.MaxLon, c.Bounds.MaxLat},
	}
}
