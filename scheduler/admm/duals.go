package admm

import (
	"math"
)

// Duals holds the Lagrange multipliers of the two coupling constraints. The
// coordinator owns one instance per run and only mutates it between rounds.
type Duals struct {
	// Lambda[job][node] prices sum_t x[j,i,t] = T * y[i,j].
	Lambda [][]float64

	// Mu[node][slot][job] prices f[i] - s[j,i,t] + (t+1) * x[j,i,t] = 0.
	Mu [][][]float64

	Rho float64

	// Step sizes 1/sqrt(step+2). They are reported but the update itself
	// steps by Rho.
	Alpha, Beta float64
	Step        int
}

// NewDuals starts every multiplier at 1.
func NewDuals(k, h, t int, rho float64) *Duals {
	d := &Duals{
		Lambda: newMatrix(k, h),
		Mu:     newTensor(h, t, k),
		Rho:    rho,
	}
	for i := range d.Lambda {
		for j := range d.Lambda[i] {
			d.Lambda[i][j] = 1
		}
	}
	for j := range d.Mu {
		for t := range d.Mu[j] {
			for i := range d.Mu[j][t] {
				d.Mu[j][t][i] = 1
			}
		}
	}
	d.Alpha, d.Beta = stepSize(0), stepSize(0)
	return d
}

func stepSize(step int) float64 {
	return 1 / math.Sqrt(float64(step)+2)
}

// Update takes one dual ascent step on the frozen round values and returns
// the primal residual, the sum of the absolute consensus residuals.
func (d *Duals) Update(horizon int, a *AssignmentSnapshot, x *TimeslotSnapshot) float64 {
	residual := 0.0
	for i := range d.Lambda {
		for j := range d.Lambda[i] {
			r := -a.Y[i][j] * float64(horizon)
			for t := 0; t < horizon; t++ {
				r += x.X[j][i][t]
			}
			d.Lambda[i][j] += d.Rho * r
			residual += math.Abs(r)
		}
	}
	for j := range d.Mu {
		for t := range d.Mu[j] {
			for i := range d.Mu[j][t] {
				r := a.F[i] - a.S[j][i][t] + x.X[j][i][t]*float64(t+1)
				d.Mu[j][t][i] += d.Rho * r
				residual += math.Abs(r)
			}
		}
	}
	d.Alpha, d.Beta = stepSize(d.Step), stepSize(d.Step)
	d.Step++
	return residual
}
