// README: Min-cost maximum-coverage assignment solved as a linear program.
package matching

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"resortdispatch/internal/types"
)

const integralTol = 1e-6

// lpSolve points to the simplex call. It can be overridden in tests to
// simulate solver failures.
var lpSolve = func(c []float64, a mat.Matrix, b []float64, basic []int) ([]float64, error) {
	_, x, err := lp.Simplex(c, a, b, 1e-7, basic)
	return x, err
}

// solveOptimal picks the candidate subset that covers the most requests and,
// among those, has the lowest total cost. Every worker and request appears in
// at most one chosen candidate. ok is false when the solver fails or the
// relaxation is fractional, in which case the caller stays greedy.
//
// Standard form: one column per candidate plus one slack per row, each row
// "sum of candidates touching this worker/request + slack = 1". The all-slack
// basis is feasible, so the solve skips phase one.
func solveOptimal(cands []Candidate) ([]Candidate, bool) {
	if len(cands) == 0 {
		return nil, true
	}

	rows := make(map[types.ID]int)
	rowOf := func(kind byte, id types.ID) int {
		key := types.ID(string(kind) + ":" + string(id))
		if r, ok := rows[key]; ok {
			return r
		}
		rows[key] = len(rows)
		return rows[key]
	}
	for _, c := range cands {
		rowOf('w', c.Worker.ID)
		for _, r := range c.Group.Requests {
			rowOf('r', r.ID)
		}
	}

	n, m := len(cands), len(rows)
	maxAbs := 0.0
	for _, c := range cands {
		maxAbs = math.Max(maxAbs, math.Abs(c.Cost))
	}
	scale := maxAbs + 1
	// Covering one more request always outweighs any cost difference.
	coverWeight := float64(2*n + 1)

	obj := make([]float64, n+m)
	a := mat.NewDense(m, n+m, nil)
	for j, c := range cands {
		obj[j] = c.Cost/scale - coverWeight*float64(c.Group.Size())
		a.Set(rowOf('w', c.Worker.ID), j, 1)
		for _, r := range c.Group.Requests {
			a.Set(rowOf('r', r.ID), j, 1)
		}
	}
	b := make([]float64, m)
	basic := make([]int, m)
	for i := 0; i < m; i++ {
		a.Set(i, n+i, 1)
		b[i] = 1
		basic[i] = n + i
	}

	x, err := lpSolve(obj, a, b, basic)
	if err != nil || len(x) < n {
		return nil, false
	}

	var chosen []Candidate
	for j := 0; j < n; j++ {
		switch {
		case math.Abs(x[j]) < integralTol:
		case math.Abs(x[j]-1) < integralTol:
			chosen = append(chosen, cands[j])
		default:
			return nil, false
		}
	}
	if !conflictFree(chosen) {
		return nil, false
	}
	sortCandidates(chosen)
	return chosen, true
}

func conflictFree(cands []Candidate) bool {
	workers := make(map[types.ID]bool)
	reqs := make(map[types.ID]bool)
	for _, c := range cands {
		if workers[c.Worker.ID] {
			return false
		}
		workers[c.Worker.ID] = true
		for _, r := range c.Group.Requests {
			if reqs[r.ID] {
				return false
			}
			reqs[r.ID] = true
		}
	}
	return true
}
