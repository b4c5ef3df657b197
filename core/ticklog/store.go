package ticklog

import (
	"context"
	"time"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/dispatch"
)

// Record is the persisted form of one tick.
type Record struct {
	RunID      string               `json:"run_id" bson:"run_id"`
	Tick       int64                `json:"tick" bson:"tick"`
	Timestamp  time.Time            `json:"timestamp" bson:"timestamp"`
	DurationMS float64              `json:"duration_ms" bson:"duration_ms"`
	Status     coupling.Status      `json:"status" bson:"status"`
	Violations []dispatch.Violation `json:"violations,omitempty" bson:"violations,omitempty"`
	Sessions   []charging.Session   `json:"sessions,omitempty" bson:"sessions,omitempty"`
	Errors     []Fault              `json:"errors,omitempty" bson:"errors,omitempty"`
}

// Fault is a flattened coupling.EntityError.
type Fault struct {
	Component string `json:"component" bson:"component"`
	EntityID  string `json:"entity_id" bson:"entity_id"`
	Error     string `json:"error" bson:"error"`
}

// FromReport converts a tick report into a Record.
func FromReport(rep coupling.TickReport) Record {
	rec := Record{
		RunID:      rep.RunID,
		Tick:       rep.Tick,
		Timestamp:  rep.Time,
		DurationMS: float64(rep.Duration) / float64(time.Millisecond),
		Status:     rep.Status,
		Sessions:   rep.Charging.Completed,
	}
	rec.Violations = append(rec.Violations, rep.Dispatch.Violations.Thermal...)
	rec.Violations = append(rec.Violations, rep.Dispatch.Violations.Voltage...)
	for _, e := range rep.Errors {
		f := Fault{Component: e.Component, EntityID: e.EntityID}
		if e.Err != nil {
			f.Error = e.Err.Error()
		}
		rec.Errors = append(rec.Errors, f)
	}
	return rec
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start     time.Time
	End       time.Time
	RunID     string
	StationID string
}

// Matches reports whether r satisfies q.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.StationID != "" {
		for _, s := range r.Sessions {
			if s.StationID == q.StationID {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
