package dispatch

import (
	"math"

	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/model"
)

// nextSOC integrates one battery over dt hours. Positive output discharges.
func nextSOC(g model.Generator, dt float64) float64 {
	if g.EnergyMWh <= 0 {
		return g.SOC
	}
	eff := g.Efficiency
	if eff <= 0 {
		eff = 1
	}
	soc := g.SOC
	switch {
	case g.OutputMW > 0:
		soc -= g.OutputMW * dt / eff / g.EnergyMWh
	case g.OutputMW < 0:
		soc += math.Abs(g.OutputMW) * dt * eff / g.EnergyMWh
	}
	return math.Max(0, math.Min(1, soc))
}

// UpdateBatterySOC advances the state of charge of every battery. A
// non-positive dt uses the configured interval.
func (e *Engine) UpdateBatterySOC(topo *grid.Topology, dtHours float64) {
	if dtHours <= 0 {
		dtHours = e.cfg.DTHours
	}
	for i := range topo.Generators {
		g := &topo.Generators[i]
		if g.Type == model.Battery {
			g.SOC = nextSOC(*g, dtHours)
		}
	}
}
