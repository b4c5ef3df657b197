package dispatch

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/trafficgrid/core/model"
)

// ErrInfeasible indicates the LP had no feasible solution meeting the target.
var ErrInfeasible = errors.New("lp infeasible")

// solveLP minimises the total cost of committed units subject to their
// bounds and an exact demand target.
func solveLP(costs, mins, caps []float64, target float64) ([]float64, error) {
	n := len(costs)
	c := append([]float64(nil), costs...)

	g := mat.NewDense(2*n, n, nil)
	h := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		g.Set(i, i, 1)
		h[i] = caps[i]
		g.Set(n+i, i, -1)
		h[n+i] = -mins[i]
	}

	A := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		A.Set(0, i, 1)
	}
	b := []float64{target}

	cStd, AStd, bStd := lp.Convert(c, g, h, A, b)
	_, sol, err := lp.Simplex(cStd, AStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, err
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, nil
}

// lpSolve points to the function used to solve the LP. It can be overridden in
// tests to simulate solver failures.
var lpSolve = solveLP

// redispatchLP re-optimises the units committed by the merit order so that
// they meet demand exactly at minimum cost. It returns the demand left for
// storage. On error the merit-order outputs are left untouched.
func (e *Engine) redispatchLP(gens []model.Generator, order []int, demand float64) (float64, error) {
	var committed []int
	var sumMin, sumCap float64
	for _, i := range order {
		if gens[i].OutputMW > 0 {
			committed = append(committed, i)
			sumMin += gens[i].MinMW
			sumCap += gens[i].CapacityMW
		}
	}
	if len(committed) == 0 {
		return demand, nil
	}
	target := math.Min(math.Max(demand, sumMin), sumCap)

	costs := make([]float64, len(committed))
	mins := make([]float64, len(committed))
	caps := make([]float64, len(committed))
	for k, i := range committed {
		costs[k] = gens[i].CostPerMWh
		mins[k] = gens[i].MinMW
		caps[k] = gens[i].CapacityMW
	}
	x, err := lpSolve(costs, mins, caps, target)
	if err != nil {
		return 0, err
	}
	if len(x) != len(committed) {
		return 0, fmt.Errorf("%w: %d values for %d units", ErrInfeasible, len(x), len(committed))
	}
	var sum float64
	for k := range committed {
		sum += math.Min(caps[k], math.Max(mins[k], x[k]))
	}
	if math.Abs(sum-target) > 1e-3 {
		return 0, ErrInfeasible
	}
	for k, i := range committed {
		gens[i].OutputMW = math.Min(caps[k], math.Max(mins[k], x[k]))
	}
	remaining := demand
	for _, i := range order {
		remaining -= gens[i].OutputMW
	}
	return remaining, nil
}
