package app

import (
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/trafficgrid/config"
	"github.com/kilianp07/trafficgrid/core/coupling"
	"github.com/kilianp07/trafficgrid/core/factory"
	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/infra/logger"

	_ "github.com/kilianp07/trafficgrid/app/plugins"
)

// Engine is an orchestrator together with the traffic source it drives.
type Engine struct {
	Orchestrator *coupling.Orchestrator
	Source       coupling.TrafficSource
}

// Close releases the traffic source when it holds a connection.
func (e *Engine) Close() error {
	if c, ok := e.Source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewSource creates the configured traffic source. The synthetic generator
// inherits the seed, step and start time of the simulation section unless
// its own settings override them.
func NewSource(cfg *config.Config) (coupling.TrafficSource, error) {
	conf := make(map[string]any, len(cfg.Traffic.Conf)+3)
	for k, v := range cfg.Traffic.Conf {
		conf[k] = v
	}
	if cfg.Traffic.Type == "synthetic" {
		setDefault(conf, "seed", cfg.Simulation.Seed)
		setDefault(conf, "step", cfg.Simulation.Step().String())
		if start, ok := cfg.Simulation.Start(); ok {
			setDefault(conf, "start", start.Format(time.RFC3339))
		}
	}
	src, err := coupling.Sources.Create(factory.ModuleConfig{Type: cfg.Traffic.Type, Conf: conf})
	if err != nil {
		return nil, fmt.Errorf("traffic source: %w", err)
	}
	return src, nil
}

func setDefault(m map[string]any, k string, v any) {
	if _, ok := m[k]; !ok {
		m[k] = v
	}
}

// NewClock returns a simulated clock when a start time is configured and
// a wall clock otherwise.
func NewClock(cfg config.SimulationConfig) coupling.Clock {
	if start, ok := cfg.Start(); ok {
		return coupling.NewSteppedClock(start, cfg.Step())
	}
	return coupling.NewWallClock(cfg.Step())
}

// NewEngine builds the topology, the traffic source and the orchestrator of
// one run. The orchestrator is not initialized.
func NewEngine(cfg *config.Config) (*Engine, error) {
	desc, err := cfg.Grid.Load()
	if err != nil {
		return nil, fmt.Errorf("grid description: %w", err)
	}
	topo, err := grid.Build(desc)
	if err != nil {
		return nil, fmt.Errorf("grid topology: %w", err)
	}
	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	sim := coupling.NewSimulationContext(cfg.Simulation.Seed, NewClock(cfg.Simulation))
	if cfg.Simulation.RunID != "" {
		sim.RunID = cfg.Simulation.RunID
	}
	orch, err := coupling.New(coupling.Config{
		Signals:  cfg.Signals,
		Charging: cfg.Charging,
		Dispatch: cfg.Dispatch,
		Bounds:   cfg.Simulation.Bound(),
	}, sim, src, topo, nil, logger.New("coupling"))
	if err != nil {
		e := &Engine{Source: src}
		_ = e.Close()
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return &Engine{Orchestrator: orch, Source: src}, nil
}
