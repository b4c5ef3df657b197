package coupling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func TestSteppedClock(t *testing.T) {
	c := NewSteppedClock(monday, 15*time.Minute)
	assert.Equal(t, monday, c.Now())
	now, elapsed := c.Advance()
	assert.Equal(t, monday.Add(15*time.Minute), now)
	assert.Equal(t, 15*time.Minute, elapsed)
	assert.Equal(t, now, c.Now())
}

func TestWallClock_FirstTickUsesFallback(t *testing.T) {
	c := NewWallClock(2 * time.Second)
	ticks := []time.Time{monday, monday.Add(500 * time.Millisecond)}
	c.now = func() time.Time {
		n := ticks[0]
		ticks = ticks[1:]
		return n
	}
	_, e1 := c.Advance()
	_, e2 := c.Advance()
	assert.Equal(t, 2*time.Second, e1)
	assert.Equal(t, 500*time.Millisecond, e2)
}

func TestSimulationContext_Aggregates(t *testing.T) {
	sc := NewSimulationContext(42, NewSteppedClock(monday, time.Second))
	require.NotEmpty(t, sc.RunID)
	assert.Equal(t, monday, sc.Started)

	sc.record(100, time.Hour)
	sc.record(200, 30*time.Minute)
	sc.record(50, 0)
	assert.Equal(t, 200.0, sc.PeakMW)
	assert.InDelta(t, 200, sc.EnergyMWh, 1e-9)
	assert.InDelta(t, 25, sc.LoadFactor(50), 1e-9)
	assert.Equal(t, []float64{100, 200, 50}, sc.History())
}

func TestSimulationContext_LoadFactorWithoutPeak(t *testing.T) {
	sc := NewSimulationContext(1, nil)
	assert.Equal(t, 0.0, sc.LoadFactor(10))
}

func TestSimulationContext_HistoryBounded(t *testing.T) {
	sc := NewSimulationContext(1, NewSteppedClock(monday, time.Second))
	for i := 0; i < 150; i++ {
		sc.record(float64(i), time.Second)
	}
	h := sc.History()
	require.Len(t, h, historySize)
	assert.Equal(t, 50.0, h[0])
	assert.Equal(t, 149.0, h[len(h)-1])
}

func TestSimulationContext_Trend(t *testing.T) {
	cases := []struct {
		name   string
		older  float64
		recent float64
		n      int
		want   Trend
	}{
		{"too short", 100, 200, 4, TrendStable},
		{"increasing", 100, 106, 5, TrendIncreasing},
		{"decreasing", 100, 94, 5, TrendDecreasing},
		{"within band", 100, 104, 5, TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := NewSimulationContext(1, NewSteppedClock(monday, time.Second))
			for i := 0; i < tc.n; i++ {
				sc.record(tc.older, time.Second)
			}
			for i := 0; i < tc.n; i++ {
				sc.record(tc.recent, time.Second)
			}
			assert.Equal(t, tc.want, sc.Trend())
		})
	}
}

func TestSnapshotStore(t *testing.T) {
	var s SnapshotStore
	_, ok := s.Latest()
	assert.False(t, ok)
	p := &Published{Status: Status{Tick: 3}}
	s.Publish(p)
	got, ok := s.Latest()
	require.True(t, ok)
	assert.Same(t, p, got)
}
