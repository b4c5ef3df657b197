//go:build integration

package ticklog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMongoStore_Integration(t *testing.T) {
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	connectCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	store, err := NewMongoStore(connectCtx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "trafficgrid_test")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Append(ctx, FromReport(report(1, "st1"))))
	require.NoError(t, store.Append(ctx, FromReport(report(2, ""))))

	out, err := store.Query(ctx, Query{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].Tick)

	out, err = store.Query(ctx, Query{StationID: "st1"})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	st, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Tick)

	_, err = store.Latest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoStatus)
}
