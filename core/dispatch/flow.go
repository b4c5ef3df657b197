package dispatch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/trafficgrid/core/grid"
	"github.com/kilianp07/trafficgrid/core/model"
)

// ErrNoSlack is returned by the DC flow when no slack bus can be chosen.
var ErrNoSlack = errors.New("no slack bus")

// proxyFlow is a coarse estimate: flow grows with total system load and
// line rating and is capped at a fraction of the rating per voltage class.
// It is not a solved power flow.
func proxyFlow(l model.Line, totalLoad float64) float64 {
	base := totalLoad * 0.001 * l.CapacityMW
	var mult, limit float64
	switch l.Class {
	case model.Transmission:
		mult, limit = 1.5, 0.8
	case model.Subtransmission:
		mult, limit = 1.2, 0.7
	case model.Primary:
		mult, limit = 1.0, 0.6
	default:
		mult, limit = 0.8, 0.5
	}
	return math.Min(base*mult, l.CapacityMW*limit)
}

// EstimateLineFlows writes a flow into every line. With the DC model a
// failed solve falls back to the proxy estimate.
func (e *Engine) EstimateLineFlows(topo *grid.Topology, totalLoad float64) string {
	if e.cfg.Flow == FlowDC {
		err := e.dcFlow(topo)
		if err == nil {
			return FlowDC
		}
		flowFallbacks.Inc()
		e.log.Warnf("DC flow failed, using proxy: %v", err)
	}
	for i := range topo.Lines {
		topo.Lines[i].FlowMW = proxyFlow(topo.Lines[i], totalLoad)
	}
	return FlowProxy
}

func (e *Engine) slackBus(topo *grid.Topology) (string, error) {
	if e.cfg.SlackBus != "" {
		if _, ok := topo.Bus(e.cfg.SlackBus); !ok {
			return "", fmt.Errorf("%w: %s", grid.ErrUnknownBus, e.cfg.SlackBus)
		}
		return e.cfg.SlackBus, nil
	}
	best := ""
	var bestCap float64
	for _, g := range topo.Generators {
		if g.Dispatchable() && g.CapacityMW > bestCap {
			best, bestCap = g.Bus, g.CapacityMW
		}
	}
	if best == "" {
		return "", ErrNoSlack
	}
	return best, nil
}

// dcFlow solves the linearised DC power flow B'θ = P on the connected
// component of the slack bus. Lines outside it carry no flow.
func (e *Engine) dcFlow(topo *grid.Topology) error {
	slack, err := e.slackBus(topo)
	if err != nil {
		return err
	}

	adj := make(map[string][]int)
	for i, l := range topo.Lines {
		if l.X <= 0 {
			continue
		}
		adj[l.From] = append(adj[l.From], i)
		adj[l.To] = append(adj[l.To], i)
	}
	index := map[string]int{slack: 0}
	queue := []string{slack}
	for len(queue) > 0 {
		bus := queue[0]
		queue = queue[1:]
		for _, li := range adj[bus] {
			l := topo.Lines[li]
			next := l.To
			if next == bus {
				next = l.From
			}
			if _, seen := index[next]; !seen {
				index[next] = len(index)
				queue = append(queue, next)
			}
		}
	}
	n := len(index) - 1
	if n == 0 {
		return fmt.Errorf("slack bus %s is isolated", slack)
	}

	p := make([]float64, len(index))
	for _, g := range topo.Generators {
		if k, ok := index[g.Bus]; ok {
			p[k] += g.OutputMW / e.cfg.BaseMVA
		}
	}
	for _, l := range topo.Loads {
		if k, ok := index[l.Bus]; ok {
			p[k] -= l.CurrentMW / e.cfg.BaseMVA
		}
	}

	b := mat.NewDense(n, n, nil)
	for _, l := range topo.Lines {
		i, okI := index[l.From]
		j, okJ := index[l.To]
		if !okI || !okJ || l.X <= 0 {
			continue
		}
		y := 1 / l.X
		if i > 0 {
			b.Set(i-1, i-1, b.At(i-1, i-1)+y)
		}
		if j > 0 {
			b.Set(j-1, j-1, b.At(j-1, j-1)+y)
		}
		if i > 0 && j > 0 {
			b.Set(i-1, j-1, b.At(i-1, j-1)-y)
			b.Set(j-1, i-1, b.At(j-1, i-1)-y)
		}
	}
	rhs := mat.NewVecDense(n, p[1:])
	var theta mat.VecDense
	if err := theta.SolveVec(b, rhs); err != nil {
		return fmt.Errorf("solve B matrix: %w", err)
	}

	angle := func(k int) float64 {
		if k == 0 {
			return 0
		}
		return theta.AtVec(k - 1)
	}
	for li := range topo.Lines {
		l := &topo.Lines[li]
		i, okI := index[l.From]
		j, okJ := index[l.To]
		if !okI || !okJ || l.X <= 0 {
			l.FlowMW = 0
			continue
		}
		l.FlowMW = (angle(i) - angle(j)) / l.X * e.cfg.BaseMVA
	}
	return nil
}
