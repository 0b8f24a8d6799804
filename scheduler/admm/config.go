package admm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Config controls one planner run.
type Config struct {
	// Number of ADMM rounds. The loop always runs this many unless
	// ConvergenceGap stops it earlier.
	Rounds int `json:"rounds"`

	// Augmented Lagrangian penalty, used as the dual step.
	Rho float64 `json:"rho"`

	// Relative gap handed to the solver for the time slot problem in the
	// first CoarseRounds rounds, then FineGap.
	CoarseGap    float64 `json:"coarse_gap"`
	FineGap      float64 `json:"fine_gap"`
	CoarseRounds int     `json:"coarse_rounds"`

	// Relative gap for the assignment problem in every round.
	AssignmentGap float64 `json:"assignment_gap"`

	// Couples the frozen finish slots and occupancy across the two
	// subproblems and seeds round 0 with a list schedule.
	FinishCoupling bool `json:"finish_coupling"`

	// Stop once a round has no violations and its makespan moved by at most
	// this much. Zero disables the check.
	ConvergenceGap float64 `json:"convergence_gap"`
}

func DefaultConfig() Config {
	return Config{
		Rounds:         5,
		Rho:            3,
		CoarseGap:      0.05,
		FineGap:        1e-4,
		CoarseRounds:   3,
		AssignmentGap:  1e-4,
		FinishCoupling: true,
	}
}

// TimeslotTolerance returns the solver gap for the time slot problem of round.
func (c Config) TimeslotTolerance(round int) float64 {
	if round < c.CoarseRounds {
		return c.CoarseGap
	}
	return c.FineGap
}

func (c Config) Validate() error {
	switch {
	case c.Rounds < 1:
		return errors.Errorf("rounds must be at least 1, was %d", c.Rounds)
	case c.Rho <= 0:
		return errors.Errorf("rho must be positive, was %g", c.Rho)
	case c.CoarseGap < 0 || c.FineGap < 0 || c.AssignmentGap < 0:
		return errors.New("solver gaps can't be negative")
	case c.FineGap > c.CoarseGap:
		return errors.Errorf("fine gap %g is looser than coarse gap %g", c.FineGap, c.CoarseGap)
	case c.CoarseRounds < 0:
		return errors.Errorf("coarse rounds can't be negative, was %d", c.CoarseRounds)
	case c.CoarseRounds > 0 && c.CoarseRounds < c.Rounds && c.FineGap >= c.CoarseGap:
		return errors.Errorf("fine gap %g must be tighter than coarse gap %g once round %d switches to it",
			c.FineGap, c.CoarseGap, c.CoarseRounds)
	case c.ConvergenceGap < 0:
		return errors.Errorf("convergence gap can't be negative, was %g", c.ConvergenceGap)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("rounds:%d, rho:%g, gaps:%g/%g after %d, assignmentGap:%g, coupling:%t, convergence:%g",
		c.Rounds, c.Rho, c.CoarseGap, c.FineGap, c.CoarseRounds, c.AssignmentGap, c.FinishCoupling, c.ConvergenceGap)
}
