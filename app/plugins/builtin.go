// Package plugins links the built-in traffic sources and metrics sinks.
// Importing it registers their factories with the core registries.
package plugins

import (
	"github.com/kilianp07/trafficgrid/core/coupling"
	coremetrics "github.com/kilianp07/trafficgrid/core/metrics"

	_ "github.com/kilianp07/trafficgrid/infra/metrics"
	_ "github.com/kilianp07/trafficgrid/infra/mqtt"
	_ "github.com/kilianp07/trafficgrid/simulator"
)

// TrafficSources lists the selectable traffic source types.
func TrafficSources() []string { return coupling.Sources.Names() }

// MetricsSinks lists the selectable metrics sink types.
func MetricsSinks() []string { return coremetrics.SinkNames() }
