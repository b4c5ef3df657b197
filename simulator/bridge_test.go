package simulator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/model"
	infmqtt "github.com/kilianp07/trafficgrid/infra/mqtt"
)

type loopConn struct {
	mu       sync.Mutex
	handlers map[string]infmqtt.Handler
	out      map[string][]byte
	retained map[string]bool
}

func newLoopConn() *loopConn {
	return &loopConn{handlers: map[string]infmqtt.Handler{}, out: map[string][]byte{}, retained: map[string]bool{}}
}

func (l *loopConn) Publish(topic, _ string, retained bool, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out[topic] = payload
	l.retained[topic] = retained
	return nil
}

func (l *loopConn) Subscribe(topic, _ string, h infmqtt.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[topic] = h
	return nil
}

func TestBridge(t *testing.T) {
	src := newTestSource(t, Config{Seed: 2, Vehicles: 5, Streets: 2, Avenues: 2})
	conn := newLoopConn()
	br := NewBridge(src, conn, "sim", nil)
	ctx := context.Background()
	require.NoError(t, br.Start(ctx))

	var inv []model.SignalDescriptor
	require.NoError(t, json.Unmarshal(conn.out["sim/traffic/signals"], &inv))
	assert.Len(t, inv, 4)
	assert.True(t, conn.retained["sim/traffic/signals"])

	conn.handlers["sim/traffic/signals/+/state"]("sim/traffic/signals/J01_01/state", []byte("GGrr"))
	st, ok := src.State("J01_01")
	require.True(t, ok)
	assert.Equal(t, "GGrr", st)

	require.NoError(t, br.Step(ctx))
	var snap model.TrafficSnapshot
	require.NoError(t, json.Unmarshal(conn.out["sim/traffic/snapshot"], &snap))
	require.Len(t, snap.Vehicles, 5)

	id := snap.Vehicles[0].ID
	conn.handlers["sim/traffic/routes/+"]("sim/traffic/routes/"+id, []byte(`{"vehicle_id":"`+id+`","station_id":"st","target":[-73.98,40.75]}`))
	src.mu.Lock()
	routed := src.byID[id].target != nil
	src.mu.Unlock()
	assert.True(t, routed)
}
