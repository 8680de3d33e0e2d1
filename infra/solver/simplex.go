package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpAbnormal
	lpCancelled
)

// ctxCheckEvery is the number of simplex iterations between context checks.
const ctxCheckEvery = 8

// degenerateLimit is the number of consecutive zero-length steps after which
// pricing switches to the smallest-index rule.
const degenerateLimit = 50

var errSingularBasis = errors.New("singular basis")

// sparseCol is one column of [A -I].
type sparseCol struct {
	idx []int
	val []float64
}

// lpData is a linear program in computational form: A·x - s = 0 where the
// structural variables x (columns 0..n-1) and the row activities s (columns
// n..n+m-1) carry bounds.
type lpData struct {
	m, n   int
	cols   []sparseCol
	cost   []float64
	lo, hi []float64
}

// simplex is a bounded-variable revised primal simplex method keeping an
// explicit basis inverse. Phase one minimizes the sum of bound violations of
// the basic variables, so it can start from any basis.
type simplex struct {
	lp     *lpData
	lo, hi []float64
	x      []float64
	head   []int
	pos    []int
	binv   []float64

	updates       int
	refactorEvery int
	iters         int

	ftol, dtol, ptol float64

	y, alpha, cb []float64
}

// basis is a restartable simplex state without its factorization.
type basis struct {
	head []int
	x    []float64
}

// snapshot is a basis plus its inverse and bounds, restorable in O(m²).
type snapshot struct {
	basis
	lo, hi  []float64
	binv    []float64
	updates int
}

func newSimplex(lp *lpData, tol float64) *simplex {
	m, nt := lp.m, lp.n+lp.m
	s := &simplex{
		lp:            lp,
		lo:            append([]float64(nil), lp.lo...),
		hi:            append([]float64(nil), lp.hi...),
		x:             make([]float64, nt),
		head:          make([]int, m),
		pos:           make([]int, nt),
		binv:          make([]float64, m*m),
		refactorEvery: 100 + m/2,
		ftol:          tol,
		dtol:          tol,
		ptol:          tol,
		y:             make([]float64, m),
		alpha:         make([]float64, m),
		cb:            make([]float64, m),
	}
	s.slackBasis()
	return s
}

// slackBasis makes every row activity basic, so the basis is -I.
func (s *simplex) slackBasis() {
	m, n := s.lp.m, s.lp.n
	for j := range s.pos {
		s.pos[j] = -1
	}
	for i := range s.binv {
		s.binv[i] = 0
	}
	for i := 0; i < m; i++ {
		s.head[i] = n + i
		s.pos[n+i] = i
		s.binv[i*m+i] = -1
	}
	s.updates = 0
	for j := 0; j < n; j++ {
		s.place(j)
	}
	s.computeBasics()
}

// place moves nonbasic variable j onto a bound.
func (s *simplex) place(j int) {
	lo, hi, v := s.lo[j], s.hi[j], s.x[j]
	switch {
	case lo == hi:
		v = lo
	case v <= lo:
		v = lo
	case v >= hi:
		v = hi
	case !math.IsInf(lo, -1) && !math.IsInf(hi, 1):
		if v-lo <= hi-v {
			v = lo
		} else {
			v = hi
		}
	case !math.IsInf(lo, -1):
		v = lo
	case !math.IsInf(hi, 1):
		v = hi
	}
	s.x[j] = v
}

// computeBasics solves B·x_B = -N·x_N with the current inverse.
func (s *simplex) computeBasics() {
	m := s.lp.m
	if m == 0 {
		return
	}
	r := make([]float64, m)
	for j, col := range s.lp.cols {
		if s.pos[j] >= 0 || s.x[j] == 0 {
			continue
		}
		for k, i := range col.idx {
			r[i] += col.val[k] * s.x[j]
		}
	}
	for i := 0; i < m; i++ {
		s.x[s.head[i]] = -floats.Dot(s.binv[i*m:(i+1)*m], r)
	}
}

// refactor recomputes the basis inverse from scratch.
func (s *simplex) refactor() error {
	m := s.lp.m
	s.updates = 0
	if m == 0 {
		return nil
	}
	b := mat.NewDense(m, m, nil)
	for p, j := range s.head {
		col := s.lp.cols[j]
		for k, i := range col.idx {
			b.Set(i, p, col.val[k])
		}
	}
	inv := mat.NewDense(m, m, s.binv)
	if err := inv.Inverse(b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) && math.IsInf(float64(cond), 1) {
			return errSingularBasis
		}
	}
	copy(s.binv, inv.RawMatrix().Data)
	s.computeBasics()
	return nil
}

// applyBounds sets the structural bounds and moves nonbasic variables onto
// them.
func (s *simplex) applyBounds(lo, hi []float64) {
	copy(s.lo, lo)
	copy(s.hi, hi)
	for j := range lo {
		if s.pos[j] < 0 {
			s.place(j)
		}
	}
	s.computeBasics()
}

func (s *simplex) basis() basis {
	return basis{head: append([]int(nil), s.head...), x: append([]float64(nil), s.x...)}
}

// load restores a basis under the given structural bounds. A singular basis
// falls back to the slack basis.
func (s *simplex) load(b basis, lo, hi []float64) {
	copy(s.head, b.head)
	copy(s.x, b.x)
	for j := range s.pos {
		s.pos[j] = -1
	}
	for p, j := range s.head {
		s.pos[j] = p
	}
	copy(s.lo, lo)
	copy(s.hi, hi)
	for j := range s.x {
		if s.pos[j] < 0 {
			s.place(j)
		}
	}
	if err := s.refactor(); err != nil {
		s.slackBasis()
	}
}

// saveTo copies the current state into sn, reusing its buffers.
func (s *simplex) saveTo(sn *snapshot) {
	sn.head = append(sn.head[:0], s.head...)
	sn.x = append(sn.x[:0], s.x...)
	sn.lo = append(sn.lo[:0], s.lo...)
	sn.hi = append(sn.hi[:0], s.hi...)
	sn.binv = append(sn.binv[:0], s.binv...)
	sn.updates = s.updates
}

func (s *simplex) restore(sn snapshot) {
	copy(s.head, sn.head)
	copy(s.x, sn.x)
	copy(s.lo, sn.lo)
	copy(s.hi, sn.hi)
	copy(s.binv, sn.binv)
	s.updates = sn.updates
	for j := range s.pos {
		s.pos[j] = -1
	}
	for p, j := range s.head {
		s.pos[j] = p
	}
}

// primal returns the structural part of the current assignment.
func (s *simplex) primal() []float64 {
	return append([]float64(nil), s.x[:s.lp.n]...)
}

func (s *simplex) objective() float64 {
	var obj float64
	for j := 0; j < s.lp.n; j++ {
		obj += s.lp.cost[j] * s.x[j]
	}
	return obj
}

// solve runs phase one and phase two from the current basis.
func (s *simplex) solve(ctx context.Context) lpStatus {
	nt := s.lp.n + s.lp.m
	maxIter := 20*nt + 1000
	degenerate := 0
	bland := false
	for it := 0; ; it++ {
		if it%ctxCheckEvery == 0 && ctx.Err() != nil {
			return lpCancelled
		}
		if it > maxIter {
			return lpAbnormal
		}
		if s.updates >= s.refactorEvery {
			if err := s.refactor(); err != nil {
				return lpAbnormal
			}
		}

		phase1 := s.phaseCosts()
		s.duals()
		q, dir := s.price(phase1, bland)
		if q < 0 {
			// Confirm on a fresh factorization before concluding.
			if s.updates > 0 {
				if err := s.refactor(); err != nil {
					return lpAbnormal
				}
				continue
			}
			if phase1 {
				return lpInfeasible
			}
			return lpOptimal
		}

		s.column(q)
		p, t, leaveAt, ok := s.ratio(q, dir, phase1, bland)
		if !ok {
			if s.updates > 0 {
				if err := s.refactor(); err != nil {
					return lpAbnormal
				}
				continue
			}
			if phase1 {
				return lpAbnormal
			}
			return lpUnbounded
		}
		s.step(q, dir, t, p, leaveAt)
		s.iters++

		if t <= s.ftol {
			degenerate++
			if degenerate > degenerateLimit {
				bland = true
			}
		} else {
			degenerate = 0
			bland = false
		}
	}
}

// phaseCosts fills the basic cost vector. When a basic variable violates a
// bound the phase-one costs are used and true is returned.
func (s *simplex) phaseCosts() bool {
	infeasible := false
	for i, j := range s.head {
		v := s.x[j]
		switch {
		case v < s.lo[j]-s.ftol:
			s.cb[i] = -1
			infeasible = true
		case v > s.hi[j]+s.ftol:
			s.cb[i] = 1
			infeasible = true
		default:
			s.cb[i] = 0
		}
	}
	if !infeasible {
		for i, j := range s.head {
			s.cb[i] = s.lp.cost[j]
		}
	}
	return infeasible
}

// duals computes yᵀ = c_Bᵀ·B⁻¹.
func (s *simplex) duals() {
	m := s.lp.m
	for i := range s.y {
		s.y[i] = 0
	}
	for i, c := range s.cb {
		if c != 0 {
			floats.AddScaled(s.y, c, s.binv[i*m:(i+1)*m])
		}
	}
}

// price picks the entering variable and its direction of movement, or -1
// when no reduced cost improves the objective.
func (s *simplex) price(phase1, bland bool) (int, int) {
	best, q, dir := 0.0, -1, 0
	for j, col := range s.lp.cols {
		if s.pos[j] >= 0 || s.lo[j] == s.hi[j] {
			continue
		}
		d := 0.0
		if !phase1 {
			d = s.lp.cost[j]
		}
		for k, i := range col.idx {
			d -= s.y[i] * col.val[k]
		}
		var score float64
		var dj int
		switch {
		case d < -s.dtol && s.x[j] < s.hi[j]:
			score, dj = -d, 1
		case d > s.dtol && s.x[j] > s.lo[j]:
			score, dj = d, -1
		default:
			continue
		}
		if bland {
			return j, dj
		}
		if score > best {
			best, q, dir = score, j, dj
		}
	}
	return q, dir
}

// column computes alpha = B⁻¹·a_q.
func (s *simplex) column(q int) {
	m := s.lp.m
	for i := range s.alpha {
		s.alpha[i] = 0
	}
	col := s.lp.cols[q]
	for k, r := range col.idx {
		v := col.val[k]
		for i := 0; i < m; i++ {
			s.alpha[i] += s.binv[i*m+r] * v
		}
	}
}

// blocking returns the distance a basic variable may travel at rate d before
// it reaches a bound, and that bound. In phase one an infeasible variable
// moving towards its violated bound stops there; moving away it never blocks.
func (s *simplex) blocking(j int, d float64, phase1 bool) (dist, bound float64, ok bool) {
	v := s.x[j]
	if d < 0 {
		switch {
		case phase1 && v > s.hi[j]+s.ftol:
			return v - s.hi[j], s.hi[j], true
		case v >= s.lo[j]-s.ftol && !math.IsInf(s.lo[j], -1):
			return v - s.lo[j], s.lo[j], true
		}
		return 0, 0, false
	}
	switch {
	case phase1 && v < s.lo[j]-s.ftol:
		return s.lo[j] - v, s.lo[j], true
	case v <= s.hi[j]+s.ftol && !math.IsInf(s.hi[j], 1):
		return s.hi[j] - v, s.hi[j], true
	}
	return 0, 0, false
}

// ratio runs a two-pass Harris ratio test. p is -1 when the entering
// variable moves to its opposite bound instead of entering the basis.
func (s *simplex) ratio(q, dir int, phase1, bland bool) (p int, t, leaveAt float64, ok bool) {
	sign := float64(dir)
	tmax := math.Inf(1)
	for i, j := range s.head {
		a := s.alpha[i]
		if math.Abs(a) <= s.ptol {
			continue
		}
		d := -sign * a
		dist, _, blocks := s.blocking(j, d, phase1)
		if !blocks {
			continue
		}
		if r := (dist + s.ftol) / math.Abs(d); r < tmax {
			tmax = r
		}
	}

	tflip := math.Inf(1)
	if !math.IsInf(s.lo[q], -1) && !math.IsInf(s.hi[q], 1) {
		tflip = s.hi[q] - s.lo[q]
	}
	if math.IsInf(tmax, 1) && math.IsInf(tflip, 1) {
		return -1, 0, 0, false
	}

	p = -1
	var bestA float64
	if !math.IsInf(tmax, 1) {
		for i, j := range s.head {
			a := s.alpha[i]
			if math.Abs(a) <= s.ptol {
				continue
			}
			d := -sign * a
			dist, bound, blocks := s.blocking(j, d, phase1)
			if !blocks {
				continue
			}
			r := dist / math.Abs(d)
			if r > tmax {
				continue
			}
			better := math.Abs(a) > bestA
			if bland {
				better = p < 0 || j < s.head[p]
			}
			if better {
				p, bestA, t, leaveAt = i, math.Abs(a), r, bound
			}
		}
		if t < 0 {
			t = 0
		}
	}
	if p >= 0 && t < tflip {
		return p, t, leaveAt, true
	}
	if math.IsInf(tflip, 1) {
		return -1, 0, 0, false
	}
	return -1, tflip, 0, true
}

// step moves along the edge and, when p >= 0, pivots q into position p.
func (s *simplex) step(q, dir int, t float64, p int, leaveAt float64) {
	m := s.lp.m
	sd := float64(dir) * t
	if sd != 0 {
		s.x[q] += sd
		for i, j := range s.head {
			if s.alpha[i] != 0 {
				s.x[j] -= s.alpha[i] * sd
			}
		}
	}
	if p < 0 {
		if dir > 0 {
			s.x[q] = s.hi[q]
		} else {
			s.x[q] = s.lo[q]
		}
		return
	}

	leave := s.head[p]
	s.x[leave] = leaveAt
	rowP := s.binv[p*m : (p+1)*m]
	floats.Scale(1/s.alpha[p], rowP)
	for i := 0; i < m; i++ {
		if i == p || s.alpha[i] == 0 {
			continue
		}
		floats.AddScaled(s.binv[i*m:(i+1)*m], -s.alpha[i], rowP)
	}
	s.head[p] = q
	s.pos[q] = p
	s.pos[leave] = -1
	s.updates++
}
