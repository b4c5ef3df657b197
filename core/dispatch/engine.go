package dispatch

import (
	"time"

	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/logger"
)

// Engine runs dispatch, flow estimation, violation checks and storage
// integration over a topology. It holds no per-tick state.
type Engine struct {
	cfg Config
	log logger.Logger
}

// Result is the outcome of one Run.
type Result struct {
	Dispatch           DispatchResult `json:"dispatch"`
	FlowModel          string         `json:"flow_model"`
	Violations         Violations     `json:"violations"`
	MaxLineUtilization float64        `json:"max_line_utilization"`
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config, log logger.Logger) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, log: logger.OrNop(log)}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run chains dispatch, flows, violations and the SOC update for the loads
// currently set on topo.
func (e *Engine) Run(topo *grid.Topology, t time.Time) Result {
	start := time.Now()
	load := topo.TotalLoad()

	res := Result{Dispatch: e.Dispatch(topo, load, t)}
	res.FlowModel = e.EstimateLineFlows(topo, load)
	res.Violations = e.CheckViolations(topo)
	for _, l := range topo.Lines {
		if u := l.Utilization(); u > res.MaxLineUtilization {
			res.MaxLineUtilization = u
		}
	}
	e.UpdateBatterySOC(topo, e.cfg.DTHours)

	solveLatency.WithLabelValues(res.Dispatch.Mode).Observe(time.Since(start).Seconds())
	e.log.Debugw("dispatch pass", map[string]any{
		"load_mw":    load,
		"balance_mw": res.Dispatch.BalanceMW,
		"thermal":    len(res.Violations.Thermal),
		"voltage":    len(res.Violations.Voltage),
	})
	return res
}
