package dispatch

import (
	"math"
	"sort"
	"time"

	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/model"
)

// DispatchResult summarises one economic dispatch.
type DispatchResult struct {
	Mode             string  `json:"mode"`
	LoadMW           float64 `json:"load_mw"`
	GenerationMW     float64 `json:"generation_mw"`
	SolarMW          float64 `json:"solar_mw"`
	ThermalMW        float64 `json:"thermal_mw"`
	BatteryMW        float64 `json:"battery_mw"`
	BalanceMW        float64 `json:"balance_mw"`
	RenewablePercent float64 `json:"renewable_percent"`
}

// meritOrder returns the indices of dispatchable units sorted by ascending
// marginal cost. Ties are broken by id so the order is stable across runs.
func meritOrder(gens []model.Generator) []int {
	var idx []int
	for i, g := range gens {
		if g.Dispatchable() {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ga, gb := gens[idx[a]], gens[idx[b]]
		if ga.CostPerMWh != gb.CostPerMWh {
			return ga.CostPerMWh < gb.CostPerMWh
		}
		return ga.ID < gb.ID
	})
	return idx
}

func batteryOrder(gens []model.Generator) []int {
	var idx []int
	for i, g := range gens {
		if g.Type == model.Battery {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool { return gens[idx[a]].ID < gens[idx[b]].ID })
	return idx
}

// Dispatch assigns generator outputs for the given demand. Solar is taken
// first, then dispatchable units in merit order, then storage. The
// residual is reported in BalanceMW and never treated as an error.
func (e *Engine) Dispatch(topo *grid.Topology, load float64, t time.Time) DispatchResult {
	gens := topo.Generators
	res := DispatchResult{Mode: ModeMerit, LoadMW: load}
	remaining := load

	solar := grid.SolarFactor(t)
	for i := range gens {
		g := &gens[i]
		switch g.Type {
		case model.Solar:
			g.OutputMW = g.CapacityMW * solar
			remaining -= g.OutputMW
			res.SolarMW += g.OutputMW
		default:
			g.OutputMW = 0
		}
	}

	order := meritOrder(gens)
	for _, i := range order {
		g := &gens[i]
		switch {
		case remaining > 0:
			g.OutputMW = math.Min(g.CapacityMW, math.Max(g.MinMW, remaining))
		case g.MustRun:
			g.OutputMW = g.MinMW
		default:
			g.OutputMW = 0
		}
		remaining -= g.OutputMW
	}

	if e.cfg.Mode == ModeLP {
		if rem, err := e.redispatchLP(gens, order, load-res.SolarMW); err != nil {
			lpFallbacks.Inc()
			e.log.Warnf("LP dispatch failed, keeping merit order: %v", err)
			res.Mode = ModeMerit
		} else {
			remaining = rem
			res.Mode = ModeLP
		}
	}

	for _, i := range order {
		res.ThermalMW += gens[i].OutputMW
	}

	for _, i := range batteryOrder(gens) {
		g := &gens[i]
		switch {
		case remaining > 0 && g.SOC > e.cfg.DischargeFloor:
			g.OutputMW = math.Min(g.CapacityMW, math.Min(remaining, g.SOC*g.EnergyMWh))
		case remaining < -e.cfg.SurplusThresholdMW && g.SOC < e.cfg.ChargeCeiling:
			g.OutputMW = -math.Min(g.CapacityMW, math.Min(-remaining, (1-g.SOC)*g.EnergyMWh))
		default:
			g.OutputMW = 0
		}
		remaining -= g.OutputMW
		res.BatteryMW += g.OutputMW
	}

	res.GenerationMW = res.SolarMW + res.ThermalMW + res.BatteryMW
	res.BalanceMW = res.GenerationMW - load
	res.RenewablePercent = res.SolarMW / math.Max(res.GenerationMW, 1) * 100
	return res
}
