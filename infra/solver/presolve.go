package solver

import (
	"math"
	"sort"
	"strconv"

	"github.com/kilianp07/bessopt/core/milp"
)

// maxElimFill limits free-variable substitution to columns appearing in few
// rows so the reduced matrix stays sparse.
const maxElimFill = 8

// presolved is the reduced program handed to the simplex method together with
// what is needed to map its solution back to the original variables.
type presolved struct {
	lp         *lpData
	orig       int
	keep       []int // reduced column -> original variable
	binaries   []int // reduced columns that are binary
	fixed      map[int]float64
	elims      []elimination
	infeasible bool
}

// elimination records x[v] = (rhs - Σ terms) / coef for a free variable that
// was substituted out through an equality row.
type elimination struct {
	v     int
	coef  float64
	rhs   float64
	terms []milp.Term
}

type psRow struct {
	coefs  map[int]float64
	lo, hi float64
	alive  bool
}

type psState struct {
	tol        float64
	lb, ub     []float64
	binary     []bool
	removed    []bool
	cost       []float64
	rows       []*psRow
	colRows    []map[int]struct{}
	fixed      map[int]float64
	elims      []elimination
	infeasible bool
}

// presolve turns singleton rows into bounds, substitutes fixed variables,
// eliminates free variables through equality rows and merges rows with the
// same coefficients. Binaries keep their column so branching only changes
// bounds.
func presolve(p *milp.Problem, tol float64) *presolved {
	vars := p.Variables()
	n := len(vars)
	st := &psState{
		tol:     tol,
		lb:      make([]float64, n),
		ub:      make([]float64, n),
		binary:  make([]bool, n),
		removed: make([]bool, n),
		cost:    make([]float64, n),
		colRows: make([]map[int]struct{}, n),
		fixed:   make(map[int]float64),
	}
	for j, v := range vars {
		st.lb[j], st.ub[j] = v.Lower, v.Upper
		st.colRows[j] = make(map[int]struct{})
		if v.Kind == milp.Binary {
			st.binary[j] = true
			st.lb[j] = math.Ceil(math.Max(st.lb[j], 0) - tol)
			st.ub[j] = math.Floor(math.Min(st.ub[j], 1) + tol)
			if st.lb[j] > st.ub[j] {
				st.infeasible = true
			}
		}
	}

	obj, sense := p.Objective()
	sign := 1.0
	if sense == milp.Maximize {
		sign = -1
	}
	for _, t := range obj.Terms {
		st.cost[t.Var] += sign * t.Coef
	}

	for _, c := range p.Constraints() {
		coefs := make(map[int]float64, len(c.Expr.Terms))
		for _, t := range c.Expr.Terms {
			coefs[int(t.Var)] += t.Coef
		}
		for k, v := range coefs {
			if v == 0 {
				delete(coefs, k)
			}
		}
		rhs := c.RHS - c.Expr.Constant
		lo, hi := math.Inf(-1), math.Inf(1)
		switch c.Op {
		case milp.LE:
			hi = rhs
		case milp.GE:
			lo = rhs
		case milp.EQ:
			lo, hi = rhs, rhs
		}
		st.addRow(coefs, lo, hi)
	}

	st.reduce()
	if !st.infeasible {
		st.mergeDuplicates()
	}
	if st.infeasible {
		return &presolved{orig: n, infeasible: true}
	}
	return st.build(n)
}

func (st *psState) addRow(coefs map[int]float64, lo, hi float64) {
	if math.IsInf(lo, -1) && math.IsInf(hi, 1) {
		return
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		st.infeasible = true
		return
	}
	i := len(st.rows)
	st.rows = append(st.rows, &psRow{coefs: coefs, lo: lo, hi: hi, alive: true})
	for j := range coefs {
		st.colRows[j][i] = struct{}{}
	}
}

func (st *psState) kill(i int) {
	r := st.rows[i]
	r.alive = false
	for j := range r.coefs {
		delete(st.colRows[j], i)
	}
}

func (st *psState) reduce() {
	for changed := true; changed && !st.infeasible; {
		changed = false
		for i, r := range st.rows {
			if !r.alive || st.infeasible {
				continue
			}
			switch len(r.coefs) {
			case 0:
				if r.lo > st.tol || r.hi < -st.tol {
					st.infeasible = true
				}
				st.kill(i)
				changed = true
			case 1:
				for j, a := range r.coefs {
					lo, hi := r.lo/a, r.hi/a
					if a < 0 {
						lo, hi = hi, lo
					}
					st.tighten(j, lo, hi)
				}
				st.kill(i)
				changed = true
			}
		}
		for j := range st.lb {
			if !st.removed[j] && !st.infeasible && st.lb[j] == st.ub[j] {
				st.fix(j, st.lb[j])
				changed = true
			}
		}
		if !changed && !st.infeasible {
			changed = st.eliminateFree()
		}
	}
}

func (st *psState) tighten(j int, lo, hi float64) {
	if st.binary[j] {
		lo = math.Ceil(lo - st.tol)
		hi = math.Floor(hi + st.tol)
	}
	if lo > st.lb[j] {
		st.lb[j] = lo
	}
	if hi < st.ub[j] {
		st.ub[j] = hi
	}
	if st.lb[j] > st.ub[j] {
		if st.binary[j] || st.lb[j]-st.ub[j] > st.tol*math.Max(1, math.Abs(st.lb[j])) {
			st.infeasible = true
			return
		}
		st.ub[j] = st.lb[j]
	}
}

func (st *psState) fix(j int, v float64) {
	if math.IsInf(v, 0) {
		st.infeasible = true
		return
	}
	st.removed[j] = true
	st.fixed[j] = v
	for i := range st.colRows[j] {
		r := st.rows[i]
		a := r.coefs[j]
		delete(r.coefs, j)
		r.lo -= a * v
		r.hi -= a * v
	}
	st.colRows[j] = nil
}

// eliminateFree substitutes one free continuous variable out of an equality
// row. It reports whether a substitution took place.
func (st *psState) eliminateFree() bool {
	for i, r := range st.rows {
		if !r.alive || r.lo != r.hi {
			continue
		}
		var maxAbs float64
		for _, a := range r.coefs {
			maxAbs = math.Max(maxAbs, math.Abs(a))
		}
		best, bestCount := -1, 0
		for j, a := range r.coefs {
			if st.binary[j] || !math.IsInf(st.lb[j], -1) || !math.IsInf(st.ub[j], 1) {
				continue
			}
			if math.Abs(a) < 0.01*maxAbs {
				continue
			}
			cnt := len(st.colRows[j])
			if cnt > maxElimFill {
				continue
			}
			if best < 0 || cnt < bestCount || (cnt == bestCount && j < best) {
				best, bestCount = j, cnt
			}
		}
		if best >= 0 {
			st.substitute(i, best)
			return true
		}
	}
	return false
}

func (st *psState) substitute(i, j int) {
	r := st.rows[i]
	a := r.coefs[j]
	rhs := r.lo

	others := make([]milp.Term, 0, len(r.coefs)-1)
	for k, v := range r.coefs {
		if k != j {
			others = append(others, milp.Term{Var: milp.Var(k), Coef: v})
		}
	}
	sort.Slice(others, func(x, y int) bool { return others[x].Var < others[y].Var })
	st.elims = append(st.elims, elimination{v: j, coef: a, rhs: rhs, terms: others})

	if c := st.cost[j]; c != 0 {
		for _, t := range others {
			st.cost[t.Var] -= c * t.Coef / a
		}
		st.cost[j] = 0
	}

	for i2 := range st.colRows[j] {
		if i2 == i {
			continue
		}
		r2 := st.rows[i2]
		f := r2.coefs[j] / a
		delete(r2.coefs, j)
		for _, t := range others {
			k := int(t.Var)
			nv := r2.coefs[k] - f*t.Coef
			if math.Abs(nv) < 1e-13 {
				delete(r2.coefs, k)
				delete(st.colRows[k], i2)
				continue
			}
			r2.coefs[k] = nv
			st.colRows[k][i2] = struct{}{}
		}
		r2.lo -= f * rhs
		r2.hi -= f * rhs
	}
	st.kill(i)
	st.removed[j] = true
	st.colRows[j] = nil
}

// mergeDuplicates intersects the ranges of rows with identical coefficients.
func (st *psState) mergeDuplicates() {
	seen := make(map[string]int)
	for i, r := range st.rows {
		if !r.alive {
			continue
		}
		key := rowKey(r.coefs)
		k, ok := seen[key]
		if !ok {
			seen[key] = i
			continue
		}
		dst := st.rows[k]
		dst.lo = math.Max(dst.lo, r.lo)
		dst.hi = math.Min(dst.hi, r.hi)
		if dst.lo > dst.hi {
			if dst.lo-dst.hi > st.tol*math.Max(1, math.Abs(dst.lo)) {
				st.infeasible = true
				return
			}
			dst.hi = dst.lo
		}
		st.kill(i)
	}
}

func rowKey(coefs map[int]float64) string {
	keys := make([]int, 0, len(coefs))
	for k := range coefs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	buf := make([]byte, 0, 24*len(keys))
	for _, k := range keys {
		buf = strconv.AppendInt(buf, int64(k), 10)
		buf = append(buf, ':')
		buf = strconv.AppendFloat(buf, coefs[k], 'g', -1, 64)
		buf = append(buf, ';')
	}
	return string(buf)
}

func (st *psState) build(orig int) *presolved {
	out := &presolved{orig: orig, fixed: st.fixed, elims: st.elims}
	col := make([]int, orig)
	for j := 0; j < orig; j++ {
		col[j] = -1
		if st.removed[j] {
			continue
		}
		col[j] = len(out.keep)
		if st.binary[j] {
			out.binaries = append(out.binaries, len(out.keep))
		}
		out.keep = append(out.keep, j)
	}
	n := len(out.keep)
	var rows []*psRow
	for _, r := range st.rows {
		if r.alive {
			rows = append(rows, r)
		}
	}
	m := len(rows)

	lp := &lpData{
		m:    m,
		n:    n,
		cols: make([]sparseCol, n+m),
		cost: make([]float64, n+m),
		lo:   make([]float64, n+m),
		hi:   make([]float64, n+m),
	}
	for c, j := range out.keep {
		lp.cost[c] = st.cost[j]
		lp.lo[c], lp.hi[c] = st.lb[j], st.ub[j]
	}
	for i, r := range rows {
		for j, v := range r.coefs {
			c := col[j]
			lp.cols[c].idx = append(lp.cols[c].idx, i)
			lp.cols[c].val = append(lp.cols[c].val, v)
		}
		lp.cols[n+i] = sparseCol{idx: []int{i}, val: []float64{-1}}
		lp.lo[n+i], lp.hi[n+i] = r.lo, r.hi
	}
	out.lp = lp
	return out
}

// postsolve maps a reduced assignment back to the original variables.
func (ps *presolved) postsolve(xr []float64) []float64 {
	x := make([]float64, ps.orig)
	for c, j := range ps.keep {
		x[j] = xr[c]
	}
	for j, v := range ps.fixed {
		x[j] = v
	}
	for e := len(ps.elims) - 1; e >= 0; e-- {
		el := ps.elims[e]
		s := el.rhs
		for _, t := range el.terms {
			s -= t.Coef * x[t.Var]
		}
		x[el.v] = s / el.coef
	}
	return x
}
