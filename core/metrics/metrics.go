package metrics

import (
	"time"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/dispatch"
)

// MetricsSink records the aggregate status of every tick.
type MetricsSink interface {
	RecordStatus(s coupling.Status) error
}

// ViolationEvent carries the limit violations found during one tick.
type ViolationEvent struct {
	Tick       int64
	Time       time.Time
	Violations []dispatch.Violation
}

// ViolationRecorder records grid limit violations.
type ViolationRecorder interface {
	RecordViolations(ev ViolationEvent) error
}

// StationEvent is the state of every charging station at one tick.
type StationEvent struct {
	Tick     int64
	Time     time.Time
	Stations []coupling.StationStatus
}

// StationRecorder records charging station load.
type StationRecorder interface {
	RecordStations(ev StationEvent) error
}

// SessionRecorder records closed charging sessions.
type SessionRecorder interface {
	RecordSessions(sessions []charging.Session) error
}

// TickLatencyRecorder records how long the pipeline took.
type TickLatencyRecorder interface {
	RecordTickDuration(d time.Duration) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordStatus(coupling.Status) error      { return nil }
func (NopSink) RecordViolations(ViolationEvent) error   { return nil }
func (NopSink) RecordStations(StationEvent) error       { return nil }
func (NopSink) RecordSessions([]charging.Session) error { return nil }
func (NopSink) RecordTickDuration(time.Duration) error  { return nil }

// RecordTick fans a tick report out to every recorder the sink implements.
// The first error is returned after all recorders ran.
func RecordTick(sink MetricsSink, rep coupling.TickReport) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(sink.RecordStatus(rep.Status))
	if r, ok := sink.(ViolationRecorder); ok {
		v := append(append([]dispatch.Violation(nil), rep.Dispatch.Violations.Thermal...), rep.Dispatch.Violations.Voltage...)
		if len(v) > 0 {
			keep(r.RecordViolations(ViolationEvent{Tick: rep.Tick, Time: rep.Time, Violations: v}))
		}
	}
	if r, ok := sink.(StationRecorder); ok && rep.Network != nil {
		keep(r.RecordStations(StationEvent{Tick: rep.Tick, Time: rep.Time, Stations: rep.Network.Stations}))
	}
	if r, ok := sink.(SessionRecorder); ok && len(rep.Charging.Completed) > 0 {
		keep(r.RecordSessions(rep.Charging.Completed))
	}
	if r, ok := sink.(TickLatencyRecorder); ok {
		keep(r.RecordTickDuration(rep.Duration))
	}
	return first
}
