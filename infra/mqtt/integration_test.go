//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/trafficgrid/core/model"
)

// TestIntegration round-trips a snapshot and a state push through a real
// Mosquitto broker.
func TestIntegration(t *testing.T) {
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "1883")
	require.NoError(t, err)
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	var engine, sim *PahoClient
	for i := 0; i < 5; i++ {
		if engine, err = NewPahoClient(Config{Broker: broker, ClientID: "engine"}); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err)
	defer engine.Disconnect()
	sim, err = NewPahoClient(Config{Broker: broker, ClientID: "sim"})
	require.NoError(t, err)
	defer sim.Disconnect()

	src, err := NewTrafficSource(engine, "it", nil)
	require.NoError(t, err)

	states := make(chan string, 1)
	require.NoError(t, sim.Subscribe("it/traffic/signals/a/state", "", func(_ string, p []byte) { states <- string(p) }))

	data, _ := json.Marshal(model.TrafficSnapshot{Time: time.Now().UTC(), Vehicles: []model.Vehicle{{ID: "v1"}}})
	require.NoError(t, sim.Publish("it/traffic/snapshot", "", false, data))

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	snap, err := src.Snapshot(wctx)
	require.NoError(t, err)
	require.Len(t, snap.Vehicles, 1)

	require.NoError(t, src.SetSignalState(ctx, "a", "GrG"))
	select {
	case s := <-states:
		require.Equal(t, "GrG", s)
	case <-time.After(5 * time.Second):
		t.Fatal("state not received")
	}
}
