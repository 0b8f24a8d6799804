package bnb

import (
	"math"

	"github.com/pkg/errors"

	"github.com/splitplan/splitplan/scheduler/milp"
)

// row is a model constraint with merged terms.
type row struct {
	name  string
	vars  []int
	coefs []float64
	sense milp.Sense
	rhs   float64
}

// problem is a model rewritten for minimization.
type problem struct {
	model    *milp.Model
	sign     float64
	cost     []float64
	constant float64
	integral []bool
	rows     []row
}

func newProblem(model *milp.Model) (*problem, error) {
	n := model.NumVars()
	p := &problem{
		model:    model,
		sign:     1,
		cost:     make([]float64, n),
		integral: make([]bool, n),
		rows:     make([]row, 0, len(model.Constraints)),
	}
	if model.Direction == milp.Maximize {
		p.sign = -1
	}
	for k, v := range model.Vars {
		if math.IsInf(v.Lower, -1) || math.IsNaN(v.Lower) {
			return nil, errors.Errorf("variable %s needs a finite lower bound", v.Name)
		}
		p.integral[k] = v.Type.IsIntegral()
	}
	for _, t := range model.Objective.Terms {
		if int(t.Var) >= n {
			return nil, errors.Errorf("objective references unknown variable %d", t.Var)
		}
		p.cost[t.Var] += p.sign * t.Coef
	}
	p.constant = p.sign * model.Objective.Constant

	for _, c := range model.Constraints {
		r := row{name: c.Name, sense: c.Sense, rhs: c.RHS}
		pos := make(map[int]int, len(c.Expr.Terms))
		for _, t := range c.Expr.Terms {
			if int(t.Var) >= n {
				return nil, errors.Errorf("constraint %s references unknown variable %d", c.Name, t.Var)
			}
			if k, ok := pos[int(t.Var)]; ok {
				r.coefs[k] += t.Coef
				continue
			}
			pos[int(t.Var)] = len(r.vars)
			r.vars = append(r.vars, int(t.Var))
			r.coefs = append(r.coefs, t.Coef)
		}
		// Drop terms that cancelled out.
		w := 0
		for t := range r.vars {
			if r.coefs[t] != 0 {
				r.vars[w], r.coefs[w] = r.vars[t], r.coefs[t]
				w++
			}
		}
		r.vars, r.coefs = r.vars[:w], r.coefs[:w]
		p.rows = append(p.rows, r)
	}
	return p, nil
}

// objective evaluates the minimization objective.
func (p *problem) objective(x []float64) float64 {
	sum := p.constant
	for k, c := range p.cost {
		sum += c * x[k]
	}
	return sum
}

// reduced is what presolve leaves for the LP: tightened bounds and the rows
// that still have at least two free variables.
type reduced struct {
	lo, hi []float64
	active []int
}

func (r *reduced) fixed(k int) bool {
	return r.hi[k]-r.lo[k] <= fixTol
}

const (
	fixTol  = 1e-9
	feasTol = 1e-6
)

// presolve tightens the node bounds until no single-variable row is left.
// It reports false when the node is infeasible.
func (p *problem) presolve(lo, hi []float64, intTol float64) (*reduced, bool, error) {
	r := &reduced{lo: append([]float64(nil), lo...), hi: append([]float64(nil), hi...)}
	for k := range r.lo {
		if !p.tighten(r, k, r.lo[k], r.hi[k], intTol) {
			return nil, false, nil
		}
	}

	consumed := make([]bool, len(p.rows))
	for changed := true; changed; {
		changed = false
		for ri := range p.rows {
			if consumed[ri] {
				continue
			}
			rw := &p.rows[ri]
			fixedSum, free, last := 0.0, 0, -1
			for t, v := range rw.vars {
				if r.fixed(v) {
					fixedSum += rw.coefs[t] * r.lo[v]
					continue
				}
				free++
				last = t
			}
			switch free {
			case 0:
				if !satisfied(fixedSum, rw.sense, rw.rhs) {
					return nil, false, nil
				}
				consumed[ri] = true
			case 1:
				a, v := rw.coefs[last], rw.vars[last]
				b := (rw.rhs - fixedSum) / a
				nlo, nhi := r.lo[v], r.hi[v]
				switch {
				case rw.sense == milp.Equal:
					nlo, nhi = math.Max(nlo, b), math.Min(nhi, b)
				case (rw.sense == milp.LessEqual) == (a > 0):
					nhi = math.Min(nhi, b)
				default:
					nlo = math.Max(nlo, b)
				}
				if !p.tighten(r, v, nlo, nhi, intTol) {
					return nil, false, nil
				}
				consumed[ri] = true
				changed = true
			}
		}
	}

	inRow := make([]bool, len(r.lo))
	for ri := range p.rows {
		if consumed[ri] {
			continue
		}
		r.active = append(r.active, ri)
		for _, v := range p.rows[ri].vars {
			inRow[v] = true
		}
	}
	// Variables outside every remaining row sit at the bound the objective prefers.
	for k := range r.lo {
		if inRow[k] || r.fixed(k) {
			continue
		}
		if p.cost[k] >= 0 {
			r.hi[k] = r.lo[k]
			continue
		}
		if math.IsInf(r.hi[k], 1) {
			return nil, false, errors.Errorf("model %s is unbounded in %s", p.model.Name, p.model.Vars[k].Name)
		}
		r.lo[k] = r.hi[k]
	}
	return r, true, nil
}

// tighten installs new bounds for k, rounding integral bounds inward.
func (p *problem) tighten(r *reduced, k int, lo, hi, intTol float64) bool {
	if p.integral[k] {
		lo = math.Ceil(lo - intTol)
		hi = math.Floor(hi + intTol)
	}
	if lo > hi+feasTol {
		return false
	}
	if hi < lo {
		hi = lo
	}
	r.lo[k], r.hi[k] = lo, hi
	return true
}

func satisfied(lhs float64, sense milp.Sense, rhs float64) bool {
	switch sense {
	case milp.LessEqual:
		return lhs <= rhs+feasTol
	case milp.GreaterEqual:
		return lhs >= rhs-feasTol
	default:
		return math.Abs(lhs-rhs) <= feasTol
	}
}

// impliedUpper reports whether an active row already caps variable v at its
// upper bound, so no separate bound row is needed. That holds for a row whose
// free coefficients all share one sign and that reads as a <= in that sign.
func (p *problem) impliedUpper(r *reduced, ri, v int) bool {
	rw := &p.rows[ri]
	dir := 0.0
	for t, u := range rw.vars {
		if r.fixed(u) {
			continue
		}
		s := math.Copysign(1, rw.coefs[t])
		if dir == 0 {
			dir = s
		} else if dir != s {
			return false
		}
	}
	switch {
	case rw.sense == milp.Equal:
	case rw.sense == milp.LessEqual && dir > 0:
	case rw.sense == milp.GreaterEqual && dir < 0:
	default:
		return false
	}
	// In dir * row <= dir * rhs every free term is non-negative once shifted
	// by its lower bound, so each one is at most the shifted right side.
	rest := dir * rw.rhs
	av := 0.0
	for t, u := range rw.vars {
		rest -= dir * rw.coefs[t] * r.lo[u]
		if u == v {
			av = dir * rw.coefs[t]
		}
	}
	if av <= 0 {
		return false
	}
	return rest/av <= r.hi[v]-r.lo[v]+fixTol
}
