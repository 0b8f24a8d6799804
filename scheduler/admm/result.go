package admm

import (
	"fmt"

	"github.com/splitplan/splitplan/scheduler/domain"
	"github.com/splitplan/splitplan/scheduler/milp"
)

// Round is the trace entry of one ADMM round.
type Round struct {
	Index int `json:"index"`

	// Raw w of the assignment problem and the smallest seen so far.
	Makespan     float64 `json:"makespan"`
	BestMakespan float64 `json:"best_makespan"`

	Violations int            `json:"violations"`
	ByCheck    map[string]int `json:"violations_by_check,omitempty"`

	AssignmentStatus    milp.Status `json:"assignment_status"`
	AssignmentObjective float64     `json:"assignment_objective"`
	TimeslotStatus      milp.Status `json:"timeslot_status"`
	TimeslotObjective   float64     `json:"timeslot_objective"`
	TimeslotTolerance   float64     `json:"timeslot_tolerance"`

	Alpha          float64 `json:"alpha"`
	Beta           float64 `json:"beta"`
	PrimalResidual float64 `json:"primal_residual"`

	Schedule *domain.Schedule `json:"schedule"`
}

func (r *Round) String() string {
	return fmt.Sprintf("round:%d, makespan:%g, best:%g, violations:%d, residual:%g",
		r.Index, r.Makespan, r.BestMakespan, r.Violations, r.PrimalResidual)
}

// Result is the trace of a run. It never picks a winner: Final is the last
// round's schedule whatever its violations.
type Result struct {
	RunID   string           `json:"run_id"`
	Horizon int              `json:"horizon"`
	Rounds  []*Round         `json:"rounds"`
	Final   *domain.Schedule `json:"final"`
}

func (r *Result) Makespans() []float64 {
	out := make([]float64, len(r.Rounds))
	for k, rd := range r.Rounds {
		out[k] = rd.Makespan
	}
	return out
}

func (r *Result) BestMakespans() []float64 {
	out := make([]float64, len(r.Rounds))
	for k, rd := range r.Rounds {
		out[k] = rd.BestMakespan
	}
	return out
}

func (r *Result) Violations() []int {
	out := make([]int, len(r.Rounds))
	for k, rd := range r.Rounds {
		out[k] = rd.Violations
	}
	return out
}

// Objectives returns the assignment and time slot objective traces.
func (r *Result) Objectives() (assignment, timeslot []float64) {
	assignment = make([]float64, len(r.Rounds))
	timeslot = make([]float64, len(r.Rounds))
	for k, rd := range r.Rounds {
		assignment[k], timeslot[k] = rd.AssignmentObjective, rd.TimeslotObjective
	}
	return assignment, timeslot
}
