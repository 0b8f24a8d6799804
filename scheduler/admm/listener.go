package admm

import (
	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"github.com/splitplan/splitplan/scheduler/milp"
)

// State of the coordinator's round loop.
type State int

const (
	Init State = iota
	SolveAssignment
	SolveTimeslot
	DualUpdate
	Audit
	Done
)

func (s State) String() string {
	asString := [6]string{"Init", "SolveAssignment", "SolveTimeslot", "DualUpdate", "Audit", "Done"}
	return asString[s]
}

// Listener observes a run. Calls happen on the coordinator's goroutine, in
// loop order.
type Listener interface {
	Transition(round int, state State)
	AssignmentSolved(round int, res *milp.Result, a *AssignmentSnapshot)
	TimeslotSolved(round int, res *milp.Result, x *TimeslotSnapshot)
	RoundFinished(r *Round)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) Transition(int, State)                                   {}
func (NopListener) AssignmentSolved(int, *milp.Result, *AssignmentSnapshot) {}
func (NopListener) TimeslotSolved(int, *milp.Result, *TimeslotSnapshot)     {}
func (NopListener) RoundFinished(*Round)                                    {}

// loggingListener traces the run, dumping snapshots at trace level.
type loggingListener struct {
	runID string
}

func (l *loggingListener) Transition(round int, state State) {
	log.WithFields(log.Fields{
		"runID": l.runID,
		"round": round,
		"state": state,
	}).Debug("planner transition")
}

func (l *loggingListener) AssignmentSolved(round int, res *milp.Result, a *AssignmentSnapshot) {
	log.WithFields(log.Fields{
		"runID":      l.runID,
		"round":      round,
		"subproblem": "assignment",
		"status":     res.Status,
		"objective":  res.Objective,
		"makespan":   a.W,
	}).Debug("subproblem solved")
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("assignment snapshot:\n%s", spew.Sdump(a.Y, a.F, a.Comp))
	}
}

func (l *loggingListener) TimeslotSolved(round int, res *milp.Result, x *TimeslotSnapshot) {
	log.WithFields(log.Fields{
		"runID":      l.runID,
		"round":      round,
		"subproblem": "timeslot",
		"status":     res.Status,
		"objective":  res.Objective,
	}).Debug("subproblem solved")
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("occupancy snapshot:\n%s", spew.Sdump(x.X))
	}
}

func (l *loggingListener) RoundFinished(r *Round) {
	log.WithFields(log.Fields{
		"runID":      l.runID,
		"round":      r.Index,
		"makespan":   r.Makespan,
		"best":       r.BestMakespan,
		"violations": r.Violations,
		"residual":   r.PrimalResidual,
	}).Info("round finished")
}
