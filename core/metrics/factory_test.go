package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trafficgrid/core/factory"
	metrics "github.com/kilianp07/trafficgrid/core/metrics"
	_ "github.com/kilianp07/trafficgrid/infra/metrics"
)

func TestNewMetricsSink(t *testing.T) {
	cases := []struct {
		name  string
		cfgs  []factory.ModuleConfig
		check func(t *testing.T, s metrics.MetricsSink)
	}{
		{
			name: "empty defaults to nop",
			check: func(t *testing.T, s metrics.MetricsSink) {
				assert.IsType(t, metrics.NopSink{}, s)
			},
		},
		{
			name: "single sink is returned unwrapped",
			cfgs: []factory.ModuleConfig{{Type: "nop"}},
			check: func(t *testing.T, s metrics.MetricsSink) {
				_, multi := s.(*metrics.MultiSink)
				assert.False(t, multi)
			},
		},
		{
			name: "several sinks fan out",
			cfgs: []factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}, {Type: "nop"}},
			check: func(t *testing.T, s metrics.MetricsSink) {
				m, ok := s.(*metrics.MultiSink)
				require.True(t, ok, "got %T", s)
				assert.Len(t, m.Sinks, 3)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := metrics.NewMetricsSink(tc.cfgs)
			require.NoError(t, err)
			require.NotNil(t, s)
			tc.check(t, s)
		})
	}
}

func TestNewMetricsSinkUnknownType(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "statsd"}})
	assert.Error(t, err)
}

func TestSinkNamesIncludesBuiltins(t *testing.T) {
	names := metrics.SinkNames()
	for _, n := range []string{"nop", "prometheus", "influx", "eco"} {
		assert.Contains(t, names, n)
	}
}
