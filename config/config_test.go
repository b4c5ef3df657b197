package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/ticklog"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `simulation:
  run_id: "run-7"
  seed: 7
  tick_interval_ms: 250
  max_ticks: 100
  start_time: "2024-05-01T08:00:00Z"
  step_seconds: 2
  bounds:
    min_lat: 40.70
    min_lon: -74.02
    max_lat: 40.80
    max_lon: -73.93
signals:
  avenue:
    green: 40
    yellow: 4
    all_red: 2
charging:
  share_percent: 45
dispatch:
  mode: "lp"
  flow: "dc"
traffic:
  type: "synthetic"
  conf:
    vehicles: 50
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "grid"
metrics:
  sinks:
    - type: "prometheus"
  prometheus_addr: ":9100"
tick_log:
  backend: "sqlite"
http:
  addr: ":8081"
  token: "secret"
sentry:
  environment: "test"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"run_id", cfg.Simulation.RunID, "run-7"},
		{"seed", cfg.Simulation.Seed, int64(7)},
		{"tick_interval", cfg.Simulation.TickInterval(), 250 * time.Millisecond},
		{"max_ticks", cfg.Simulation.MaxTicks, 100},
		{"step", cfg.Simulation.Step(), 2 * time.Second},
		{"avenue_green", cfg.Signals.Avenue.Green, 40},
		{"street_green", cfg.Signals.Street.Green, 25},
		{"share", cfg.Charging.SharePercent, 45.0},
		{"dispatch_mode", cfg.Dispatch.Mode, "lp"},
		{"flow", cfg.Dispatch.Flow, "dc"},
		{"traffic", cfg.Traffic.Type, "synthetic"},
		{"mqtt_client", cfg.MQTT.ClientID, "grid"},
		{"mqtt_prefix", cfg.MQTT.TopicPrefix, "trafficgrid"},
		{"sink", cfg.Metrics.Sinks[0].Type, "prometheus"},
		{"prom_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"tick_log", cfg.TickLog.Backend, ticklog.BackendSQLite},
		{"tick_log_path", cfg.TickLog.Path, "ticks.db"},
		{"http_addr", cfg.HTTP.Addr, ":8081"},
		{"http_token", cfg.HTTP.Token, "secret"},
		{"sentry_env", cfg.Sentry.Environment, "test"},
		{"tracing_service", cfg.Tracing.ServiceName, "trafficgrid"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}

	start, ok := cfg.Simulation.Start()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), start.UTC())
	b := cfg.Simulation.Bound()
	require.NotNil(t, b)
	assert.InDelta(t, -74.02, b.Min.Lon(), 1e-9)
	assert.InDelta(t, 40.80, b.Max.Lat(), 1e-9)
}

func TestLoadEnvOverride(t *testing.T) {
	path := write(t, "config.json", `{"dispatch": {"mode": "merit"}, "http": {"addr": ":8080"}}`)
	t.Setenv("K_DISPATCH__MODE", "lp")
	t.Setenv("K_HTTP__ADDR", "-")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lp", cfg.Dispatch.Mode)
	assert.False(t, cfg.HTTP.Enabled())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(write(t, "empty.yaml", "{}\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Simulation.RunID)
	assert.Equal(t, "synthetic", cfg.Traffic.Type)
	assert.Equal(t, "", cfg.MQTT.ClientID, "mqtt stays untouched without a broker")
	assert.Equal(t, ticklog.BackendNone, cfg.TickLog.Backend)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.True(t, cfg.HTTP.Enabled())
	_, ok := cfg.Simulation.Start()
	assert.False(t, ok)
	assert.Nil(t, cfg.Simulation.Bound())

	desc, err := cfg.Grid.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, desc.Buses)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"format.toml": "",
		"mode.yaml":   "dispatch:\n  mode: greedy\n",
		"start.yaml":  "simulation:\n  start_time: tomorrow\n",
		"bounds.yaml": "simulation:\n  bounds:\n    min_lat: 41\n    max_lat: 40\n",
		"log.yaml":    "tick_log:\n  backend: mongo\n",
		"mqtt.yaml":   "mqtt:\n  broker: tcp://x:1883\n  auth_method: kerberos\n",
	}
	for name, data := range cases {
		_, err := Load(write(t, name, data))
		assert.Error(t, err, name)
	}
}
