package admm

import (
	"fmt"

	"github.com/splitplan/splitplan/scheduler/domain"
	"github.com/splitplan/splitplan/scheduler/milp"
)

// assignmentVars indexes the variables of the assignment problem.
type assignmentVars struct {
	y    [][]milp.VarID // [job][node]
	f    []milp.VarID
	w    milp.VarID
	comp []milp.VarID
	s    [][][]milp.VarID // [node][job][slot]
}

// formulateAssignment builds subproblem 1: choose the serving node, finish
// slots and makespan with the occupancy x frozen. With finishCuts each job
// must finish after the last slot x gives it.
func formulateAssignment(p *domain.Params, horizon int, d *Duals, x *TimeslotSnapshot, finishCuts bool) (*milp.Model, *assignmentVars) {
	k, h := p.NumJobs(), p.NumNodes()
	m := milp.NewModel("assignment")
	v := &assignmentVars{
		y:    make([][]milp.VarID, k),
		f:    make([]milp.VarID, k),
		comp: make([]milp.VarID, k),
		s:    make([][][]milp.VarID, h),
	}

	compUB := float64(p.CompletionUpperBound())
	for i := 0; i < k; i++ {
		v.y[i] = make([]milp.VarID, h)
		for j := 0; j < h; j++ {
			v.y[i][j] = m.AddVar(fmt.Sprintf("y[%d,%d]", i, j), milp.Binary, 0, 1)
		}
		v.f[i] = m.AddVar(fmt.Sprintf("f[%d]", i), milp.Integer, float64(p.EarliestFinish(i)), float64(horizon))
	}
	v.w = m.AddVar("w", milp.Integer, float64(p.MakespanLowerBound()), compUB)
	for i := 0; i < k; i++ {
		v.comp[i] = m.AddVar(fmt.Sprintf("comp[%d]", i), milp.Integer, 0, compUB)
	}
	for j := 0; j < h; j++ {
		v.s[j] = make([][]milp.VarID, k)
		for i := 0; i < k; i++ {
			v.s[j][i] = make([]milp.VarID, horizon)
			for t := 0; t < horizon; t++ {
				v.s[j][i][t] = m.AddVar(fmt.Sprintf("s[%d,%d,%d]", j, i, t), milp.Binary, 0, 1)
			}
		}
	}

	for i := 0; i < k; i++ {
		e := &milp.Expr{}
		for j := 0; j < h; j++ {
			e.Add(v.y[i][j], 1)
		}
		m.AddConstraint(fmt.Sprintf("assign[%d]", i), e, milp.Equal, 1)
	}
	demand := float64(p.Demand())
	for j := 0; j < h; j++ {
		e := &milp.Expr{}
		for i := 0; i < k; i++ {
			e.Add(v.y[i][j], demand)
		}
		m.AddConstraint(fmt.Sprintf("memory[%d]", j), e, milp.LessEqual, float64(p.MemoryCapacity[j]))
	}
	for i := 0; i < k; i++ {
		e := (&milp.Expr{}).Add(v.comp[i], 1).Add(v.f[i], -1)
		for j := 0; j < h; j++ {
			e.Add(v.y[i][j], -float64(p.TransBack[i][j]))
		}
		m.AddConstraint(fmt.Sprintf("completion[%d]", i), e, milp.Equal, float64(p.ProcLocal[i]))
		m.AddConstraint(fmt.Sprintf("makespan[%d]", i),
			(&milp.Expr{}).Add(v.w, 1).Add(v.comp[i], -1), milp.GreaterEqual, 0)
	}
	if finishCuts {
		for i := 0; i < k; i++ {
			if last := lastOccupiedSlot(x, i); last >= 0 {
				m.AddConstraint(fmt.Sprintf("finish_cut[%d]", i),
					(&milp.Expr{}).Add(v.f[i], 1), milp.GreaterEqual, float64(last+1))
			}
		}
	}

	m.SetObjective(lagrangian(k, h, horizon, d, operands{
		w: func(e *milp.Expr, coef float64) { e.Add(v.w, coef) },
		y: varMatrix(v.y),
		f: varVector(v.f),
		s: varTensor(v.s),
		x: frozenTensor(x.X),
	}), milp.Minimize)
	return m, v
}

// lastOccupiedSlot returns the latest slot any node gives job i in x, or -1.
func lastOccupiedSlot(x *TimeslotSnapshot, i int) int {
	last := -1
	for j := range x.X {
		for t, v := range x.X[j][i] {
			if domain.Binarize(v) == 1 && t > last {
				last = t
			}
		}
	}
	return last
}

// snapshot copies the solution into freshly allocated arrays.
func (v *assignmentVars) snapshot(res *milp.Result) *AssignmentSnapshot {
	k, h := len(v.y), len(v.s)
	t := 0
	if h > 0 && k > 0 {
		t = len(v.s[0][0])
	}
	a := newAssignmentSnapshot(k, h, t)
	for i := 0; i < k; i++ {
		for j := 0; j < h; j++ {
			a.Y[i][j] = res.Value(v.y[i][j])
		}
		a.F[i] = res.Value(v.f[i])
		a.Comp[i] = res.Value(v.comp[i])
	}
	a.W = res.Value(v.w)
	for j := 0; j < h; j++ {
		for i := 0; i < k; i++ {
			for slot := 0; slot < t; slot++ {
				a.S[j][i][slot] = res.Value(v.s[j][i][slot])
			}
		}
	}
	return a
}
