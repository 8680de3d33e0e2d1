package solver

import (
	"context"
	"math"

	"github.com/kilianp07/bessopt/core/milp"
)

type bbNode struct {
	lo, hi []float64
	basis  basis
	obj    float64
	x      []float64
	depth  int
}

type bbResult struct {
	status milp.Status
	x      []float64
	nodes  int
}

// branchAndBound dives depth first over the binaries. Both children of a node
// are solved from the parent's basis and the better one is explored next;
// nodes whose relaxation cannot beat the incumbent are pruned.
func (s *Solver) branchAndBound(ctx context.Context, p *milp.Problem) bbResult {
	if ctx.Err() != nil {
		return bbResult{status: milp.Cancelled}
	}
	pre := presolve(p, s.cfg.Tolerance)
	if pre.infeasible {
		return bbResult{status: milp.Infeasible}
	}
	n := pre.lp.n
	lp := newSimplex(pre.lp, s.cfg.Tolerance)
	s.log.Debugf("presolved to %d columns and %d rows (from %d and %d)", n, pre.lp.m, p.NumVariables(), p.NumConstraints())

	var (
		incumbent []float64
		best      = math.Inf(1)
		nodes     int
		cancelled bool
		exhausted bool
		abnormal  bool

		parentSnap, downSnap snapshot
	)
	solveNode := func(lo, hi []float64, depth int) (*bbNode, lpStatus) {
		nodes++
		lp.applyBounds(lo, hi)
		st := s.lpSolve(ctx, lp)
		if st != lpOptimal {
			return nil, st
		}
		return &bbNode{lo: lo, hi: hi, basis: lp.basis(), obj: lp.objective(), x: lp.primal(), depth: depth}, st
	}
	limitReached := func() bool { return s.cfg.MaxNodes > 0 && nodes >= s.cfg.MaxNodes }
	gap := func() float64 { return s.cfg.MIPGap * math.Max(1, math.Abs(best)) }

	root, st := solveNode(clone(pre.lp.lo[:n]), clone(pre.lp.hi[:n]), 0)
	switch st {
	case lpCancelled:
		return bbResult{status: milp.Cancelled, nodes: nodes}
	case lpInfeasible:
		return bbResult{status: milp.Infeasible, nodes: nodes}
	case lpUnbounded:
		return bbResult{status: milp.Unbounded, nodes: nodes}
	case lpAbnormal:
		s.log.Warnf("root relaxation failed after %d simplex iterations", lp.iters)
		return bbResult{status: milp.Abnormal, nodes: nodes}
	}

	stack := []*bbNode{root}
	current := root
search:
	for len(stack) > 0 {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if incumbent != nil && nd.obj >= best-gap() {
			continue
		}

		j := s.mostFractional(nd.x, pre.binaries)
		if j < 0 {
			x, obj := nd.x, nd.obj
			if !exactBinaries(x, pre.binaries) {
				// Re-solve with the binaries pinned so the continuous part is
				// consistent with the rounded values.
				if current != nd {
					lp.load(nd.basis, nd.lo, nd.hi)
				}
				lo, hi := clone(nd.lo), clone(nd.hi)
				for _, b := range pre.binaries {
					lo[b], hi[b] = math.Round(x[b]), math.Round(x[b])
				}
				pinned, st := solveNode(lo, hi, nd.depth)
				current = pinned
				switch {
				case st == lpCancelled:
					cancelled = true
					break search
				case pinned == nil:
					s.log.Debugf("rounded node at depth %d dropped: status %d", nd.depth, st)
					continue
				}
				x, obj = pinned.x, pinned.obj
			}
			if obj < best {
				incumbent = clone(x)
				for _, b := range pre.binaries {
					incumbent[b] = math.Round(incumbent[b])
				}
				best = obj
				s.log.Debugf("incumbent %.6f at node %d", best, nodes)
			}
			continue
		}

		if limitReached() {
			exhausted = true
			break
		}
		if current != nd {
			lp.load(nd.basis, nd.lo, nd.hi)
		}
		lp.saveTo(&parentSnap)

		child := func(val float64) (*bbNode, lpStatus) {
			lo, hi := clone(nd.lo), clone(nd.hi)
			lo[j], hi[j] = val, val
			kid, st := solveNode(lo, hi, nd.depth+1)
			if st == lpAbnormal {
				s.log.Warnf("relaxation failed at depth %d after %d simplex iterations", nd.depth+1, lp.iters)
				abnormal = true
			}
			return kid, st
		}

		down, st := child(0)
		if st == lpCancelled {
			cancelled = true
			break
		}
		if st == lpUnbounded {
			return bbResult{status: milp.Unbounded, nodes: nodes}
		}
		if down != nil {
			lp.saveTo(&downSnap)
		}
		if limitReached() {
			exhausted = true
			break
		}
		lp.restore(parentSnap)
		up, st := child(1)
		if st == lpCancelled {
			cancelled = true
			break
		}
		if st == lpUnbounded {
			return bbResult{status: milp.Unbounded, nodes: nodes}
		}

		switch {
		case down != nil && up != nil && down.obj < up.obj:
			stack = append(stack, up, down)
			lp.restore(downSnap)
			current = down
		case down != nil && up != nil:
			stack = append(stack, down, up)
			current = up
		case down != nil:
			stack = append(stack, down)
			lp.restore(downSnap)
			current = down
		case up != nil:
			stack = append(stack, up)
			current = up
		default:
			current = nil
		}
	}

	res := bbResult{nodes: nodes}
	switch {
	case incumbent != nil && !cancelled && !exhausted && !abnormal:
		res.status = milp.Optimal
	case incumbent != nil:
		if abnormal {
			s.log.Warnf("optimality not proven: a relaxation failed during the search")
		}
		res.status = milp.Feasible
	case cancelled:
		res.status = milp.Cancelled
	case exhausted:
		res.status = milp.NotSolved
	case abnormal:
		res.status = milp.Abnormal
	default:
		res.status = milp.Infeasible
	}
	if incumbent != nil {
		res.x = pre.postsolve(incumbent)
	}
	return res
}

// mostFractional returns the binary whose relaxed value is furthest from an
// integer, or -1 when all binaries are integral within tolerance.
func (s *Solver) mostFractional(x []float64, binaries []int) int {
	idx, dist := -1, s.cfg.IntegralityTolerance
	for _, j := range binaries {
		f := x[j] - math.Floor(x[j])
		if d := math.Min(f, 1-f); d > dist {
			idx, dist = j, d
		}
	}
	return idx
}

func exactBinaries(x []float64, binaries []int) bool {
	for _, j := range binaries {
		if x[j] != math.Round(x[j]) {
			return false
		}
	}
	return true
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
