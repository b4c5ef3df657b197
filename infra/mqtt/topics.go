package mqtt

import "strings"

// DefaultPrefix is the root of every topic used by the service.
const DefaultPrefix = "trafficgrid"

// Topics derives the topic names under one prefix.
type Topics struct{ Prefix string }

func (t Topics) join(parts ...string) string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		p = DefaultPrefix
	}
	return p + "/" + strings.Join(parts, "/")
}

// Snapshot carries the vehicle population published by the simulator.
func (t Topics) Snapshot() string { return t.join("traffic", "snapshot") }

// Signals carries the retained signal inventory.
func (t Topics) Signals() string { return t.join("traffic", "signals") }

// SignalState is where the state string of one light is pushed.
func (t Topics) SignalState(id string) string { return t.join("traffic", "signals", id, "state") }

// Route is where station routing requests for one vehicle are published.
func (t Topics) Route(vehicleID string) string { return t.join("traffic", "routes", vehicleID) }

// Status carries the retained grid status.
func (t Topics) Status() string { return t.join("grid", "status") }

// Violations carries the limit violations of the latest tick.
func (t Topics) Violations() string { return t.join("grid", "violations") }

// SignalStates matches the state topic of every light.
func (t Topics) SignalStates() string { return t.join("traffic", "signals", "+", "state") }

// Routes matches the route topic of every vehicle.
func (t Topics) Routes() string { return t.join("traffic", "routes", "+") }

// Segment returns the path element at index i counted from the end of
// topic, or "" when the topic is too short.
func Segment(topic string, i int) string {
	parts := strings.Split(topic, "/")
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[len(parts)-1-i]
}
