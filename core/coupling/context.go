package coupling

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const historySize = 100

// Trend is the direction of recent demand.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// SimulationContext is the state of one run. It is created at run start,
// mutated only by the orchestrator and discarded with it.
type SimulationContext struct {
	RunID   string
	Seed    int64
	Rand    *rand.Rand
	Clock   Clock
	Started time.Time

	Tick      int64
	PeakMW    float64
	EnergyMWh float64

	history []float64
}

// NewSimulationContext starts a run. A nil clock follows wall time.
func NewSimulationContext(seed int64, clock Clock) *SimulationContext {
	if clock == nil {
		clock = NewWallClock(time.Second)
	}
	return &SimulationContext{
		RunID:   uuid.NewString(),
		Seed:    seed,
		Rand:    rand.New(rand.NewSource(seed)),
		Clock:   clock,
		Started: clock.Now(),
	}
}

// record adds one tick of demand to the aggregates.
func (c *SimulationContext) record(loadMW float64, elapsed time.Duration) {
	c.history = append(c.history, loadMW)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	if loadMW > c.PeakMW {
		c.PeakMW = loadMW
	}
	c.EnergyMWh += loadMW * elapsed.Hours()
}

// History returns a copy of the recent demand values, oldest first.
func (c *SimulationContext) History() []float64 {
	return append([]float64(nil), c.history...)
}

// LoadFactor is the current load relative to the peak seen so far.
func (c *SimulationContext) LoadFactor(loadMW float64) float64 {
	if c.PeakMW <= 0 {
		return 0
	}
	return loadMW / c.PeakMW * 100
}

// Trend compares the mean of the last five samples with the five before.
func (c *SimulationContext) Trend() Trend {
	n := len(c.history)
	if n < 10 {
		return TrendStable
	}
	recent := mean(c.history[n-5:])
	older := mean(c.history[n-10 : n-5])
	switch {
	case recent > older*1.05:
		return TrendIncreasing
	case recent < older*0.95:
		return TrendDecreasing
	}
	return TrendStable
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
