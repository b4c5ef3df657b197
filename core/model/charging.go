package model

import (
	"time"

	"github.com/paulmach/orb"
)

// StationKind distinguishes DC fast-charging hubs from level-2 curbside posts.
type StationKind int

const (
	Level2 StationKind = iota
	DCFast
)

func (k StationKind) String() string {
	if k == DCFast {
		return "dc_fast"
	}
	return "level2"
}

// MarshalText implements encoding.TextMarshaler.
func (k StationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ChargingStation is a group of chargers attached to a bus. Chargers is the
// hard cap on simultaneous sessions.
type ChargingStation struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Bus        string      `json:"bus"`
	Position   orb.Point   `json:"position"`
	Kind       StationKind `json:"kind"`
	Chargers   int         `json:"chargers"`
	PowerKW    float64     `json:"power_kw"`
	CapacityMW float64     `json:"capacity_mw"`
}

// EVState tracks the battery and session of one electric vehicle. It lives
// exactly as long as the vehicle is present in the traffic snapshot.
type EVState struct {
	VehicleID       string    `json:"vehicle_id"`
	Battery         float64   `json:"battery"`
	Charging        bool      `json:"charging"`
	AssignedStation string    `json:"assigned_station,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	SessionStart    time.Time `json:"session_start,omitempty"`
	EnergyKWh       float64   `json:"energy_kwh"`
}
