package milp

//go:generate mockgen -source=solver.go -package=milp -destination=solver_mock.go

import (
	"context"
	"fmt"
)

// Status of a finished solve.
type Status int

const (
	// Proven optimal within the engine's integrality tolerance.
	Optimal Status = iota

	// Feasible and within the requested relative gap, or the best point
	// found before a search limit. Accepted as a success.
	Suboptimal

	// No integral point satisfies the model.
	Infeasible
)

func (s Status) String() string {
	asString := [3]string{"Optimal", "Suboptimal", "Infeasible"}
	return asString[s]
}

// MarshalText renders the status by name in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HasSolution reports whether Values are meaningful.
func (s Status) HasSolution() bool {
	return s == Optimal || s == Suboptimal
}

// Result of one solve. Values is indexed by VarID.
type Result struct {
	Status    Status
	Values    []float64
	Objective float64

	// Best proven bound on the objective, equal to Objective when Optimal.
	Bound float64

	// Branch and bound nodes explored, 0 for engines that don't report it.
	Nodes int
}

// Value returns the solution value of v.
func (r *Result) Value(v VarID) float64 {
	return r.Values[v]
}

func (r *Result) String() string {
	return fmt.Sprintf("status:%s, objective:%g, bound:%g, nodes:%d", r.Status, r.Objective, r.Bound, r.Nodes)
}

// Solver solves a model to the given relative optimality gap. An infeasible
// model is reported through Result.Status, not as an error. Errors are
// reserved for engine failures and cancellation.
type Solver interface {
	Solve(ctx context.Context, model *Model, tolerance float64) (*Result, error)
}
