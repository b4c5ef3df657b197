package coupling

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/kilianp07/trafficgrid/core/factory"
	"github.com/kilianp07/trafficgrid/core/model"
)

// TrafficSource is the boundary to the traffic micro-simulator.
type TrafficSource interface {
	// Signals returns the inventory of controlled intersections.
	Signals(ctx context.Context) ([]model.SignalDescriptor, error)
	// Snapshot blocks until the next vehicle population is available. It
	// applies no timeout of its own; callers bound it through ctx.
	Snapshot(ctx context.Context) (model.TrafficSnapshot, error)
	// SetSignalState pushes a state string to one intersection.
	SetSignalState(ctx context.Context, id, state string) error
}

// Router is implemented by sources that can send vehicles to a charging
// station.
type Router interface {
	RequestRoute(ctx context.Context, vehicleID, stationID string, target orb.Point) error
}

// Sources holds the traffic source implementations selectable from
// configuration. Implementations register themselves in init.
var Sources = factory.NewRegistry[TrafficSource]()
