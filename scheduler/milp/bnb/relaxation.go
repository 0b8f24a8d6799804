package bnb

import (
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/milp"
)

// relaxation is the LP optimum of one search node.
type relaxation struct {
	x   []float64
	obj float64

	// False when the simplex stopped on a numeric failure, so obj is only an
	// estimate and not a valid bound.
	exact bool

	// False when presolve fixed every variable.
	usedLP bool
}

type entry struct {
	col  int
	coef float64
}

// stdRow is one row of the standard form: entries + slack*s = b.
type stdRow struct {
	entries []entry
	slack   float64
	b       float64
}

// standardForm is min c'x, Ax = b, x >= 0 over the node's free variables
// (shifted by their lower bounds) followed by one column per slack.
type standardForm struct {
	rows    []stdRow
	nFree   int
	nStruct int
	cost    []float64
}

// relax presolves the node and solves what is left as an LP. A nil
// relaxation means the node is infeasible.
func (s *Solver) relax(p *problem, lo, hi []float64) (*relaxation, error) {
	red, ok, err := p.presolve(lo, hi, s.config.IntegralityTol)
	if err != nil || !ok {
		return nil, err
	}

	x := append([]float64(nil), red.lo...)
	cols := make([]int, 0, len(x))
	for k := range x {
		if !red.fixed(k) {
			cols = append(cols, k)
		}
	}
	if len(cols) == 0 {
		return &relaxation{x: x, obj: p.objective(x), exact: true}, nil
	}

	sf := p.standardForm(red, cols)
	xs, feasible, exact, err := s.solveStandardForm(sf)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", p.model.Name)
	}
	if !feasible {
		return nil, nil
	}
	for c, k := range cols {
		v := red.lo[k] + math.Max(0, xs[c])
		x[k] = math.Min(v, red.hi[k])
	}
	return &relaxation{x: x, obj: p.objective(x), exact: exact, usedLP: true}, nil
}

func (p *problem) standardForm(red *reduced, cols []int) *standardForm {
	colOf := make(map[int]int, len(cols))
	for c, k := range cols {
		colOf[k] = c
	}
	sf := &standardForm{nFree: len(cols)}
	nSlack := 0

	capped := make([]bool, len(cols))
	for _, ri := range red.active {
		rw := &p.rows[ri]
		sr := stdRow{b: rw.rhs}
		for t, v := range rw.vars {
			sr.b -= rw.coefs[t] * red.lo[v]
			if c, ok := colOf[v]; ok {
				sr.entries = append(sr.entries, entry{c, rw.coefs[t]})
			}
		}
		switch rw.sense {
		case milp.LessEqual:
			sr.slack = 1
		case milp.GreaterEqual:
			sr.slack = -1
		}
		if sr.slack != 0 {
			nSlack++
		}
		sf.rows = append(sf.rows, sr)
		for c, k := range cols {
			if !capped[c] && p.impliedUpper(red, ri, k) {
				capped[c] = true
			}
		}
	}
	for c, k := range cols {
		if capped[c] || math.IsInf(red.hi[k], 1) {
			continue
		}
		sf.rows = append(sf.rows, stdRow{entries: []entry{{c, 1}}, slack: 1, b: red.hi[k] - red.lo[k]})
		nSlack++
	}

	sf.nStruct = sf.nFree + nSlack
	sf.cost = make([]float64, sf.nStruct)
	for c, k := range cols {
		sf.cost[c] = p.cost[k]
	}
	// Rows read entries + slack = b with b >= 0 from here on.
	for i := range sf.rows {
		if sf.rows[i].b < 0 {
			sr := &sf.rows[i]
			sr.b, sr.slack = -sr.b, -sr.slack
			for e := range sr.entries {
				sr.entries[e].coef = -sr.entries[e].coef
			}
		}
	}
	return sf
}

// solveStandardForm runs a Big-M simplex from an all slack/artificial basis,
// which is feasible by construction. If artificials stay positive the
// problem is handed to gonum's own phase I before it is declared infeasible.
func (s *Solver) solveStandardForm(sf *standardForm) (x []float64, feasible, exact bool, err error) {
	m := len(sf.rows)
	basic := make([]int, m)
	nArt := 0
	slackCol := sf.nFree
	for i, r := range sf.rows {
		basic[i] = -1
		if r.slack != 0 {
			if r.slack > 0 {
				basic[i] = slackCol
			}
			slackCol++
		}
		if basic[i] < 0 {
			nArt++
		}
	}

	n := sf.nStruct + nArt
	a := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	slackCol, artCol := sf.nFree, sf.nStruct
	for i, r := range sf.rows {
		b[i] = r.b
		for _, e := range r.entries {
			a.Set(i, e.col, a.At(i, e.col)+e.coef)
		}
		if r.slack != 0 {
			a.Set(i, slackCol, r.slack)
			slackCol++
		}
		if basic[i] < 0 {
			a.Set(i, artCol, 1)
			basic[i] = artCol
			artCol++
		}
	}

	scale := 1.0
	for _, c := range sf.cost {
		scale = math.Max(scale, math.Abs(c))
	}
	bigM := s.config.BigM * scale
	c := make([]float64, n)
	copy(c, sf.cost)
	for k := sf.nStruct; k < n; k++ {
		c[k] = bigM
	}

	s.stat.Counter(stats.SolverLPCounter).Inc(1)
	_, x, err = lp.Simplex(c, a, b, s.config.SimplexTol*scale, basic)
	switch {
	case err == lp.ErrUnbounded:
		return nil, false, false, errors.New("LP relaxation is unbounded")
	case err != nil && x == nil:
		s.stat.Counter(stats.SolverLPFailureCounter).Inc(1)
		log.Debugf("big-M simplex failed without a point: %v", err)
		return s.phaseOne(sf, a, b)
	case err != nil:
		s.stat.Counter(stats.SolverLPFailureCounter).Inc(1)
		log.Debugf("big-M simplex stopped early: %v", err)
	}
	exact = err == nil

	art, bmax := 0.0, 1.0
	for k := sf.nStruct; k < n; k++ {
		art += x[k]
	}
	for _, v := range b {
		bmax = math.Max(bmax, v)
	}
	if art > feasTol*bmax {
		return s.phaseOne(sf, a, b)
	}
	return x[:sf.nFree], true, exact, nil
}

// phaseOne solves the standard form without artificial columns and lets
// gonum search for the initial basis.
func (s *Solver) phaseOne(sf *standardForm, a *mat.Dense, b []float64) (x []float64, feasible, exact bool, err error) {
	m := len(sf.rows)
	if m > sf.nStruct {
		// More equalities than columns: the artificial run is all we have.
		s.stat.Counter(stats.SolverLPFailureCounter).Inc(1)
		return nil, false, false, nil
	}
	sub := a.Slice(0, m, 0, sf.nStruct)
	s.stat.Counter(stats.SolverLPCounter).Inc(1)
	_, x, err = lp.Simplex(sf.cost, sub, b, s.config.SimplexTol, nil)
	switch {
	case err == nil:
		return x[:sf.nFree], true, true, nil
	case err == lp.ErrInfeasible:
		return nil, false, true, nil
	case err == lp.ErrUnbounded:
		return nil, false, false, errors.New("LP relaxation is unbounded")
	case x != nil:
		s.stat.Counter(stats.SolverLPFailureCounter).Inc(1)
		return x[:sf.nFree], true, false, nil
	}
	s.stat.Counter(stats.SolverLPFailureCounter).Inc(1)
	log.Debugf("phase one simplex failed: %v", err)
	return nil, false, false, nil
}
