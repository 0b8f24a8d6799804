package admm

import (
	"github.com/splitplan/splitplan/scheduler/milp"
)

// operands places each symbol of the augmented Lagrangian into an
// expression: either as a term on a decision variable or, for frozen
// values, folded into the constant.
type operands struct {
	w func(e *milp.Expr, coef float64)
	y func(e *milp.Expr, i, j int, coef float64)
	f func(e *milp.Expr, i int, coef float64)
	s func(e *milp.Expr, j, i, t int, coef float64)
	x func(e *milp.Expr, j, i, t int, coef float64)
}

// lagrangian builds
//
//	w + sum_ij [ sum_t ( mu*(f - s + (t+1)x) - lambda*x ) - lambda*T*y ]
//	  + rho/2 * sum_ij ( T*y - sum_t x )
//	  + rho/2 * sum_ijt ( f - s + (t+1)x )
//
// with the penalty terms kept linear and collected per symbol.
func lagrangian(k, h, horizon int, d *Duals, ops operands) *milp.Expr {
	e := &milp.Expr{}
	half := d.Rho / 2
	T := float64(horizon)

	ops.w(e, 1)
	for i := 0; i < k; i++ {
		for j := 0; j < h; j++ {
			lam := d.Lambda[i][j]
			for t := 0; t < horizon; t++ {
				mu := d.Mu[j][t][i] + half
				ops.f(e, i, mu)
				ops.s(e, j, i, t, -mu)
				ops.x(e, j, i, t, mu*float64(t+1)-lam-half)
			}
			ops.y(e, i, j, (half-lam)*T)
		}
	}
	return e
}

func frozenScalar(v float64) func(*milp.Expr, float64) {
	return func(e *milp.Expr, coef float64) { e.AddConstant(coef * v) }
}

func frozenMatrix(v [][]float64) func(*milp.Expr, int, int, float64) {
	return func(e *milp.Expr, a, b int, coef float64) { e.AddConstant(coef * v[a][b]) }
}

func frozenVector(v []float64) func(*milp.Expr, int, float64) {
	return func(e *milp.Expr, a int, coef float64) { e.AddConstant(coef * v[a]) }
}

func frozenTensor(v [][][]float64) func(*milp.Expr, int, int, int, float64) {
	return func(e *milp.Expr, j, i, t int, coef float64) { e.AddConstant(coef * v[j][i][t]) }
}

func varMatrix(v [][]milp.VarID) func(*milp.Expr, int, int, float64) {
	return func(e *milp.Expr, a, b int, coef float64) { e.Add(v[a][b], coef) }
}

func varVector(v []milp.VarID) func(*milp.Expr, int, float64) {
	return func(e *milp.Expr, a int, coef float64) { e.Add(v[a], coef) }
}

func varTensor(v [][][]milp.VarID) func(*milp.Expr, int, int, int, float64) {
	return func(e *milp.Expr, j, i, t int, coef float64) { e.Add(v[j][i][t], coef) }
}
