package metrics

import (
	"time"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/coupling"
)

// MultiSink fans records out to several sinks. Optional recorders are only
// forwarded to the sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordStatus forwards the status to all sinks, returning the first error encountered.
func (m *MultiSink) RecordStatus(s coupling.Status) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordStatus(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordViolations forwards violation events.
func (m *MultiSink) RecordViolations(ev ViolationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ViolationRecorder); ok {
			if err := rec.RecordViolations(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStations forwards station load.
func (m *MultiSink) RecordStations(ev StationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StationRecorder); ok {
			if err := rec.RecordStations(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSessions forwards closed charging sessions.
func (m *MultiSink) RecordSessions(sessions []charging.Session) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SessionRecorder); ok {
			if err := rec.RecordSessions(sessions); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTickDuration forwards pipeline latency when supported by the sink.
func (m *MultiSink) RecordTickDuration(d time.Duration) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TickLatencyRecorder); ok {
			if err := rec.RecordTickDuration(d); err != nil {
				return err
			}
		}
	}
	return nil
}
