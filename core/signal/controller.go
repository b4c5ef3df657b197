package signal

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/core/logger"
	"github.com/kilianp07/trafficgrid/core/model"
)

const phaseCount = 6

var (
	// ErrNoLanes is reported for a signal without any controlled lane shape.
	ErrNoLanes = errors.New("signal has no controlled lanes")
	// ErrOutOfBounds is reported for a signal outside the configured area.
	ErrOutOfBounds = errors.New("signal outside bounds")
	// ErrUnknownLight is returned for operations on an unregistered light.
	ErrUnknownLight = errors.New("unknown traffic light")
)

// Light is the phase state machine of one intersection.
type Light struct {
	ID        string
	Position  orb.Point
	Pattern   model.Pattern
	Phase     int
	Timer     int
	Durations Durations
	Heads     int
	State     string
	Degraded  bool

	history []string
}

// StateChange is a state string to push back to the traffic simulator.
type StateChange struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// View is the read model of a light.
type View struct {
	ID       string        `json:"id"`
	Position orb.Point     `json:"position"`
	Color    model.Color   `json:"color"`
	Pattern  model.Pattern `json:"pattern"`
	State    string        `json:"state"`
	Phase    int           `json:"phase"`
	Degraded bool          `json:"degraded"`
}

// ColorCounts tallies lights per dominant color.
type ColorCounts struct {
	Green    int `json:"green"`
	Yellow   int `json:"yellow"`
	Red      int `json:"red"`
	Degraded int `json:"degraded"`
}

// InitError describes a signal rejected during Initialize.
type InitError struct {
	ID  string
	Err error
}

func (e InitError) Error() string { return fmt.Sprintf("signal %s: %v", e.ID, e.Err) }
func (e InitError) Unwrap() error { return e.Err }

// Controller owns every traffic light. It is not safe for concurrent use;
// the tick goroutine is its only caller.
type Controller struct {
	cfg    Config
	rng    *rand.Rand
	bounds *orb.Bound
	log    logger.Logger

	lights []*Light
	byID   map[string]*Light
}

// NewController creates a controller. rng must be the run's seeded source
// so that street offsets are reproducible.
func NewController(cfg Config, rng *rand.Rand, log logger.Logger) *Controller {
	cfg.SetDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Controller{cfg: cfg, rng: rng, log: logger.OrNop(log), byID: make(map[string]*Light)}
}

// SetBounds restricts Initialize to signals inside b.
func (c *Controller) SetBounds(b orb.Bound) { c.bounds = &b }

// Initialize registers the signal inventory and returns the initial state
// of every accepted light. Rejected signals are reported, never fatal.
func (c *Controller) Initialize(inventory []model.SignalDescriptor) ([]StateChange, []InitError) {
	var rejected []InitError
	type candidate struct {
		desc model.SignalDescriptor
		pos  orb.Point
	}
	var kept []candidate
	for _, d := range inventory {
		if len(d.Lanes) == 0 || len(d.Lanes[0]) == 0 {
			rejected = append(rejected, InitError{ID: d.ID, Err: ErrNoLanes})
			continue
		}
		first := d.Lanes[0]
		pos := first[len(first)-1]
		if c.bounds != nil && !c.bounds.Contains(pos) {
			rejected = append(rejected, InitError{ID: d.ID, Err: ErrOutOfBounds})
			continue
		}
		kept = append(kept, candidate{desc: d, pos: pos})
	}

	changes := make([]StateChange, 0, len(kept))
	for i, k := range kept {
		if _, dup := c.byID[k.desc.ID]; dup {
			rejected = append(rejected, InitError{ID: k.desc.ID, Err: errors.New("duplicate signal id")})
			continue
		}
		l := &Light{ID: k.desc.ID, Position: k.pos, Heads: len(k.desc.Lanes)}
		if i%c.cfg.AvenueEvery == 0 {
			l.Pattern = model.Avenue
			l.Durations = c.cfg.Avenue
			l.Timer = int((k.pos.Lat()-c.cfg.ReferenceLat)*1000) % 60
			if l.Timer < 0 {
				l.Timer += 60
			}
		} else {
			l.Pattern = model.Street
			l.Durations = c.cfg.Street
			l.Timer = c.rng.Intn(c.cfg.StreetOffsetMax)
		}
		l.State = GenerateState(l.Pattern, 0, l.Heads)
		c.lights = append(c.lights, l)
		c.byID[l.ID] = l
		changes = append(changes, StateChange{ID: l.ID, State: l.State})
	}
	c.log.Infof("initialized %d traffic lights, %d rejected", len(c.lights), len(rejected))
	return changes, rejected
}

// Advance moves every light forward by one tick and returns the lights
// whose state string changed.
func (c *Controller) Advance() []StateChange {
	var changes []StateChange
	for _, l := range c.lights {
		l.Timer++
		if l.Timer < l.Durations.phase(l.Phase) {
			continue
		}
		l.Phase = (l.Phase + 1) % phaseCount
		l.Timer = 0
		next := GenerateState(l.Pattern, l.Phase, l.Heads)
		c.remember(l, next)
		if l.Degraded {
			continue
		}
		if next != l.State {
			changes = append(changes, StateChange{ID: l.ID, State: next})
		}
		l.State = next
	}
	return changes
}

func (c *Controller) remember(l *Light, state string) {
	l.history = append(l.history, state)
	if n := len(l.history) - c.cfg.HistorySize; n > 0 {
		l.history = append(l.history[:0], l.history[n:]...)
	}
}

// Degrade forces an all-yellow state on the light. The phase machine keeps
// running underneath.
func (c *Controller) Degrade(id string) (StateChange, error) {
	l, ok := c.byID[id]
	if !ok {
		return StateChange{}, fmt.Errorf("%w: %s", ErrUnknownLight, id)
	}
	l.Degraded = true
	n := l.Heads
	if n <= 0 {
		n = 4
	}
	l.State = strings.Repeat("y", n)
	return StateChange{ID: id, State: l.State}, nil
}

// Restore returns a degraded light to its current phase state.
func (c *Controller) Restore(id string) (StateChange, error) {
	l, ok := c.byID[id]
	if !ok {
		return StateChange{}, fmt.Errorf("%w: %s", ErrUnknownLight, id)
	}
	l.Degraded = false
	l.State = GenerateState(l.Pattern, l.Phase, l.Heads)
	return StateChange{ID: id, State: l.State}, nil
}

// State returns the read model of one light.
func (c *Controller) State(id string) (View, bool) {
	l, ok := c.byID[id]
	if !ok {
		return View{}, false
	}
	return l.view(), true
}

func (l *Light) view() View {
	return View{
		ID:       l.ID,
		Position: l.Position,
		Color:    model.ClassifyState(l.State),
		Pattern:  l.Pattern,
		State:    l.State,
		Phase:    l.Phase,
		Degraded: l.Degraded,
	}
}

// Views returns the read model of every light ordered by id.
func (c *Controller) Views() []View {
	out := make([]View, 0, len(c.lights))
	for _, l := range c.lights {
		out = append(out, l.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// States returns a copy of the current state strings keyed by light id.
func (c *Controller) States() map[string]string {
	out := make(map[string]string, len(c.lights))
	for _, l := range c.lights {
		out[l.ID] = l.State
	}
	return out
}

// History returns the most recent phase states of a light, oldest first.
func (c *Controller) History(id string) []string {
	l, ok := c.byID[id]
	if !ok {
		return nil
	}
	return append([]string(nil), l.history...)
}

// Counts tallies the lights by dominant color.
func (c *Controller) Counts() ColorCounts {
	var cc ColorCounts
	for _, l := range c.lights {
		switch model.ClassifyState(l.State) {
		case model.Green:
			cc.Green++
		case model.Yellow:
			cc.Yellow++
		default:
			cc.Red++
		}
		if l.Degraded {
			cc.Degraded++
		}
	}
	return cc
}

// Len returns the number of registered lights.
func (c *Controller) Len() int { return len(c.lights) }

// GenerateState builds the per-lane state string of a pattern and phase
// for n signal heads. A non-positive n yields the all-red fallback.
func GenerateState(p model.Pattern, phase, n int) string {
	if n <= 0 {
		return "rrrr"
	}
	var s string
	if p == model.Avenue {
		s = avenueState(phase, n)
	} else {
		h := n / 2
		switch phase {
		case 0:
			s = strings.Repeat("G", h) + strings.Repeat("r", n-h)
		case 1:
			s = strings.Repeat("y", h) + strings.Repeat("r", n-h)
		case 3:
			s = strings.Repeat("r", h) + strings.Repeat("G", n-h)
		case 4:
			s = strings.Repeat("r", h) + strings.Repeat("y", n-h)
		default:
			s = strings.Repeat("r", n)
		}
	}
	return fit(s, n)
}

func avenueState(phase, n int) string {
	if n <= 2 {
		switch phase {
		case 0, 3:
			return "GG"
		case 1, 4:
			return "yy"
		default:
			return strings.Repeat("r", n)
		}
	}
	switch phase {
	case 0:
		return "GG" + strings.Repeat("r", n-2)
	case 1:
		return "yy" + strings.Repeat("r", n-2)
	case 3:
		return "rr" + strings.Repeat("G", n-2)
	case 4:
		return "rr" + strings.Repeat("y", n-2)
	default:
		return strings.Repeat("r", n)
	}
}

// fit truncates or right-pads s with red to exactly n characters.
func fit(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	if len(s) < n {
		return s + strings.Repeat("r", n-len(s))
	}
	return s
}
