package model

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Vehicle is one entry of a traffic snapshot. Position uses orb's
// (lon, lat) order.
type Vehicle struct {
	ID       string    `json:"id"`
	Position orb.Point `json:"position"`
	Speed    float64   `json:"speed"`
	Heading  float64   `json:"heading"`
	Type     string    `json:"type,omitempty"`
}

// Moving reports whether the vehicle is faster than the stop threshold.
func (v Vehicle) Moving() bool { return v.Speed > 0.1 }

// SignalDescriptor describes a controlled intersection as seen by the
// traffic simulator.
type SignalDescriptor struct {
	ID    string           `json:"id"`
	Lanes []orb.LineString `json:"lanes"`
}

// TrafficSnapshot is the vehicle population at a simulation instant.
type TrafficSnapshot struct {
	Time     time.Time `json:"time"`
	Vehicles []Vehicle `json:"vehicles"`
}

// Pattern selects the phase plan of a traffic light.
type Pattern int

const (
	Street Pattern = iota
	Avenue
)

func (p Pattern) String() string {
	if p == Avenue {
		return "avenue"
	}
	return "street"
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Color is the dominant aspect of a signal state string.
type Color int

const (
	Red Color = iota
	Yellow
	Green
)

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	default:
		return "red"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ClassifyState reduces a per-lane state string to a single color. Green
// takes precedence over yellow which takes precedence over red.
func ClassifyState(state string) Color {
	if strings.ContainsAny(state, "Gg") {
		return Green
	}
	if strings.ContainsAny(state, "yY") {
		return Yellow
	}
	return Red
}
