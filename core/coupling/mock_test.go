package coupling

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/mock"

	"github.com/kilianp07/trafficgrid/core/model"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) Signals(ctx context.Context) ([]model.SignalDescriptor, error) {
	args := m.Called(ctx)
	descs, _ := args.Get(0).([]model.SignalDescriptor)
	return descs, args.Error(1)
}

func (m *mockSource) Snapshot(ctx context.Context) (model.TrafficSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(model.TrafficSnapshot)
	return snap, args.Error(1)
}

func (m *mockSource) SetSignalState(ctx context.Context, id, state string) error {
	return m.Called(ctx, id, state).Error(0)
}

type mockRoutingSource struct{ mockSource }

func (m *mockRoutingSource) RequestRoute(ctx context.Context, vehicleID, stationID string, target orb.Point) error {
	return m.Called(ctx, vehicleID, stationID, target).Error(0)
}
