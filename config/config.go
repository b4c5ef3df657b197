package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/trafficgrid/core/charging"
	"github.com/kilianp07/trafficgrid/core/dispatch"
	"github.com/kilianp07/trafficgrid/core/factory"
	"github.com/kilianp07/trafficgrid/core/metrics"
	"github.com/kilianp07/trafficgrid/core/signal"
	"github.com/kilianp07/trafficgrid/core/ticklog"
	"github.com/kilianp07/trafficgrid/infra/monitoring"
	"github.com/kilianp07/trafficgrid/infra/mqtt"
	"github.com/kilianp07/trafficgrid/infra/tracing"
)

type Config struct {
	Simulation SimulationConfig     `json:"simulation"`
	Signals    signal.Config        `json:"signals"`
	Charging   charging.Config      `json:"charging"`
	Grid       GridConfig           `json:"grid"`
	Dispatch   dispatch.Config      `json:"dispatch"`
	Traffic    factory.ModuleConfig `json:"traffic"`
	// MQTT configures the status publisher. An empty broker disables it.
	MQTT    mqtt.Config       `json:"mqtt"`
	Metrics metrics.Config    `json:"metrics"`
	TickLog ticklog.Config    `json:"tick_log"`
	HTTP    HTTPConfig        `json:"http"`
	Tracing tracing.Config    `json:"tracing"`
	Sentry  monitoring.Config `json:"sentry"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides, then
// defaults and validation. K_DISPATCH__MODE=lp sets dispatch.mode.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration running the synthetic source with every
// optional output disabled.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Signals.SetDefaults()
	c.Charging.SetDefaults()
	c.Dispatch.SetDefaults()
	if c.Traffic.Type == "" {
		c.Traffic.Type = "synthetic"
	}
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
	c.Metrics.SetDefaults()
	c.TickLog.SetDefaults()
	c.HTTP.SetDefaults()
	c.Tracing.SetDefaults()
}

// Validate checks every section and reports the first error.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"simulation", c.Simulation.Validate},
		{"signals", c.Signals.Validate},
		{"charging", c.Charging.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"metrics", c.Metrics.Validate},
		{"tick_log", c.TickLog.Validate},
		{"tracing", c.Tracing.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("config %s: %w", chk.name, err)
		}
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("config mqtt: %w", err)
		}
	}
	return nil
}
