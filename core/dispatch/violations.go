package dispatch

import (
	"math"
	"sort"

	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/model"
)

// Severity grades a violation.
type Severity string

const (
	Warning  Severity = "warning"
	Critical Severity = "critical"
)

// Violation kinds.
const (
	KindLine         = "line"
	KindTransformer  = "transformer"
	KindUndervoltage = "undervoltage"
)

// Violation is a limit exceeded by one network element.
type Violation struct {
	Kind      string   `json:"kind"`
	ElementID string   `json:"element_id"`
	Value     float64  `json:"value"`
	Limit     float64  `json:"limit"`
	Severity  Severity `json:"severity"`
}

// Violations groups the findings of one CheckViolations call.
type Violations struct {
	Thermal  []Violation        `json:"thermal"`
	Voltage  []Violation        `json:"voltage"`
	Voltages map[string]float64 `json:"-"`
}

// Critical counts critical findings of every kind.
func (v Violations) Critical() int {
	n := 0
	for _, x := range v.Thermal {
		if x.Severity == Critical {
			n++
		}
	}
	for _, x := range v.Voltage {
		if x.Severity == Critical {
			n++
		}
	}
	return n
}

// Undervoltage lists the buses below the voltage limit, sorted by id.
func (v Violations) Undervoltage() []string {
	out := make([]string, 0, len(v.Voltage))
	for _, x := range v.Voltage {
		out = append(out, x.ElementID)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) thermal(kind, id string, util float64) (Violation, bool) {
	switch {
	case util > e.cfg.CriticalPercent:
		return Violation{Kind: kind, ElementID: id, Value: util, Limit: e.cfg.CriticalPercent, Severity: Critical}, true
	case util > e.cfg.WarningPercent:
		return Violation{Kind: kind, ElementID: id, Value: util, Limit: e.cfg.WarningPercent, Severity: Warning}, true
	}
	return Violation{}, false
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// CheckViolations flags overloaded lines and transformers and estimates bus
// voltages from line loading. Transformer loading is derived from the flow
// of the line joining its two buses.
func (e *Engine) CheckViolations(topo *grid.Topology) Violations {
	var out Violations

	lineByPair := make(map[string]int, len(topo.Lines))
	for i, l := range topo.Lines {
		if v, ok := e.thermal(KindLine, l.ID, l.Utilization()); ok {
			out.Thermal = append(out.Thermal, v)
		}
		k := pairKey(l.From, l.To)
		if _, dup := lineByPair[k]; !dup {
			lineByPair[k] = i
		}
	}

	for i := range topo.Transformers {
		x := &topo.Transformers[i]
		x.LoadingPercent = 0
		if li, ok := lineByPair[pairKey(x.HighBus, x.LowBus)]; ok && x.RatingMVA > 0 {
			x.LoadingPercent = math.Abs(topo.Lines[li].FlowMW) / x.RatingMVA * 100
		}
		if v, ok := e.thermal(KindTransformer, x.ID, x.LoadingPercent); ok {
			out.Thermal = append(out.Thermal, v)
		}
	}

	out.Voltages = e.voltages(topo)
	critical := e.cfg.MinVoltagePU - 0.05
	for _, b := range topo.Buses {
		pu := out.Voltages[b.ID]
		switch {
		case pu < critical:
			out.Voltage = append(out.Voltage, Violation{Kind: KindUndervoltage, ElementID: b.ID, Value: pu, Limit: critical, Severity: Critical})
		case pu < e.cfg.MinVoltagePU:
			out.Voltage = append(out.Voltage, Violation{Kind: KindUndervoltage, ElementID: b.ID, Value: pu, Limit: e.cfg.MinVoltagePU, Severity: Warning})
		}
	}

	violationGauge.Reset()
	for _, v := range append(append([]Violation(nil), out.Thermal...), out.Voltage...) {
		violationGauge.WithLabelValues(v.Kind, string(v.Severity)).Inc()
	}
	return out
}

// voltages walks the network from the transmission level down. A bus fed by
// several lines takes the lowest estimate; a bus with no feeder stays at
// nominal.
func (e *Engine) voltages(topo *grid.Topology) map[string]float64 {
	pu := make(map[string]float64, len(topo.Buses))
	class := make(map[string]model.VoltageClass, len(topo.Buses))
	for _, b := range topo.Buses {
		class[b.ID] = b.Class
		if b.Class == model.Transmission {
			pu[b.ID] = 1.0
		}
	}
	for c := model.Subtransmission; c <= model.Service; c++ {
		for _, l := range topo.Lines {
			from, to := l.From, l.To
			if class[from] > class[to] {
				from, to = to, from
			}
			if class[to] != c || class[from] >= c {
				continue
			}
			vFrom, ok := pu[from]
			if !ok {
				vFrom = 1.0
			}
			v := vFrom - l.Utilization()/100*e.cfg.DropAtRatedPU
			if cur, ok := pu[to]; !ok || v < cur {
				pu[to] = v
			}
		}
		for _, b := range topo.Buses {
			if b.Class == c {
				if _, ok := pu[b.ID]; !ok {
					pu[b.ID] = 1.0
				}
			}
		}
	}
	return pu
}
