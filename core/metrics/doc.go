// Package metrics defines the sinks that record the per-tick state of the
// coupled traffic and power system. Every sink records the aggregate
// Status; sinks may additionally implement the optional recorder
// interfaces for violations, station load, charging sessions and tick
// latency. RecordTick fans a TickReport out to whatever a sink supports.
// The factory helpers return a MultiSink automatically when multiple sinks
// are configured.
package metrics
