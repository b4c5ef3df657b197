package coupling

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTrafficUnavailable is returned when the traffic source cannot
	// deliver a snapshot or its signal inventory. It stops the tick driver.
	ErrTrafficUnavailable = errors.New("traffic source unavailable")
	// ErrNotInitialized is returned by Tick before Initialize succeeded.
	ErrNotInitialized = errors.New("orchestrator not initialized")
)

// Pipeline components reported in EntityError.
const (
	ComponentSignal   = "signal"
	ComponentCharging = "charging"
	ComponentGrid     = "grid"
	ComponentTraffic  = "traffic"
)

// EntityError is a fault confined to one entity. The entity is skipped for
// the tick and the error is reported, never propagated.
type EntityError struct {
	Component string
	EntityID  string
	Err       error
}

func (e EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Component, e.EntityID, e.Err)
}

func (e EntityError) Unwrap() error { return e.Err }

func (e EntityError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Component string `json:"component"`
		EntityID  string `json:"entity_id"`
		Error     string `json:"error"`
	}{e.Component, e.EntityID, msg})
}
