package admm

import (
	"fmt"

	"github.com/splitplan/splitplan/scheduler/domain"
	"github.com/splitplan/splitplan/scheduler/milp"
)

type timeslotVars struct {
	x [][][]milp.VarID // [node][job][slot]
}

// formulateTimeslot builds subproblem 2: pick each node's slots with the
// assignment problem's values frozen. With deadlines no job runs past its
// frozen finish.
func formulateTimeslot(p *domain.Params, horizon int, d *Duals, a *AssignmentSnapshot, deadlines bool) (*milp.Model, *timeslotVars) {
	k, h := p.NumJobs(), p.NumNodes()
	m := milp.NewModel("timeslot")
	v := &timeslotVars{x: make([][][]milp.VarID, h)}
	for j := 0; j < h; j++ {
		v.x[j] = make([][]milp.VarID, k)
		for i := 0; i < k; i++ {
			v.x[j][i] = make([]milp.VarID, horizon)
			for t := 0; t < horizon; t++ {
				v.x[j][i][t] = m.AddVar(fmt.Sprintf("x[%d,%d,%d]", j, i, t), milp.Binary, 0, 1)
			}
		}
	}

	for j := 0; j < h; j++ {
		for i := 0; i < k; i++ {
			finish := horizon
			if deadlines {
				finish = domain.RoundInt(a.F[i])
			}
			for t := 0; t < horizon; t++ {
				switch {
				case t < p.ReleaseDate[i][j]:
					m.AddConstraint(fmt.Sprintf("release[%d,%d,%d]", j, i, t),
						(&milp.Expr{}).Add(v.x[j][i][t], 1), milp.Equal, 0)
				case t+1 > finish:
					m.AddConstraint(fmt.Sprintf("deadline[%d,%d,%d]", j, i, t),
						(&milp.Expr{}).Add(v.x[j][i][t], 1), milp.Equal, 0)
				}
			}
		}
	}
	for j := 0; j < h; j++ {
		for t := 0; t < horizon; t++ {
			e := &milp.Expr{}
			for i := 0; i < k; i++ {
				e.Add(v.x[j][i][t], 1)
			}
			m.AddConstraint(fmt.Sprintf("slot[%d,%d]", j, t), e, milp.LessEqual, 1)
		}
	}
	for i := 0; i < k; i++ {
		e := &milp.Expr{}
		for j := 0; j < h; j++ {
			share := 1 / float64(p.Proc[i][j])
			for t := 0; t < horizon; t++ {
				e.Add(v.x[j][i][t], share)
			}
		}
		m.AddConstraint(fmt.Sprintf("processing[%d]", i), e, milp.Equal, 1)
	}

	m.SetObjective(lagrangian(k, h, horizon, d, operands{
		w: frozenScalar(a.W),
		y: frozenMatrix(a.Y),
		f: frozenVector(a.F),
		s: frozenTensor(a.S),
		x: varTensor(v.x),
	}), milp.Minimize)
	return m, v
}

func (v *timeslotVars) snapshot(res *milp.Result) *TimeslotSnapshot {
	h := len(v.x)
	k, t := 0, 0
	if h > 0 {
		k = len(v.x[0])
		if k > 0 {
			t = len(v.x[0][0])
		}
	}
	x := newTimeslotSnapshot(k, h, t)
	for j := 0; j < h; j++ {
		for i := 0; i < k; i++ {
			for slot := 0; slot < t; slot++ {
				x.X[j][i][slot] = res.Value(v.x[j][i][slot])
			}
		}
	}
	return x
}
