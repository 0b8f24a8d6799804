// Package admm plans split execution jobs by alternating between an
// assignment problem (which node serves which job, finish slots, makespan)
// and a time slot problem (which slots each node spends on each job),
// coupled through Lagrange multipliers updated after every round.
package admm

import (
	"context"
	"math"
	"os"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/splitplan/splitplan/common/log/hooks"
	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/audit"
	"github.com/splitplan/splitplan/scheduler/domain"
	"github.com/splitplan/splitplan/scheduler/milp"
)

// ErrInfeasibleSubproblem aborts a run when the solver proves either
// subproblem has no feasible point.
var ErrInfeasibleSubproblem = errors.New("subproblem is infeasible")

func init() {
	if loglevel := os.Getenv("PLANNER_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	} else {
		// keep test output short
		log.SetLevel(log.ErrorLevel)
	}
}

// Coordinator runs the ADMM loop for one set of parameters. It owns the
// duals and the frozen snapshots; nothing is shared between runs.
type Coordinator struct {
	params   *domain.Params
	solver   milp.Solver
	config   Config
	stat     stats.StatsReceiver
	auditor  *audit.Auditor
	listener Listener
	runID    string
}

// NewCoordinator validates the parameters and configuration. A nil stat
// records nothing.
func NewCoordinator(params *domain.Params, solver milp.Solver, config Config, stat stats.StatsReceiver) (*Coordinator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid planner config")
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	runID := generateRunID()
	return &Coordinator{
		params:   params,
		solver:   solver,
		config:   config,
		stat:     stat,
		auditor:  audit.NewAuditor(params),
		listener: &loggingListener{runID: runID},
		runID:    runID,
	}, nil
}

func generateRunID() string {
	id, err := uuid.NewV4()
	for err != nil {
		id, err = uuid.NewV4()
	}
	return id.String()
}

// SetListener replaces the default logging listener.
func (c *Coordinator) SetListener(l Listener) {
	c.listener = l
}

func (c *Coordinator) RunID() string {
	return c.runID
}

// Run executes the configured rounds. On failure it returns the rounds
// completed so far along with the error.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	result, err := c.run(ctx)
	if err != nil {
		c.stat.Counter(stats.PlannerRunErrCounter).Inc(1)
		log.WithFields(log.Fields{
			"runID":  c.runID,
			"rounds": len(result.Rounds),
			"err":    err,
		}).Error("planner run aborted")
		return result, err
	}
	c.stat.Counter(stats.PlannerRunOkCounter).Inc(1)
	return result, nil
}

func (c *Coordinator) run(ctx context.Context) (*Result, error) {
	p := c.params
	k, h, horizon := p.NumJobs(), p.NumNodes(), p.Horizon()
	result := &Result{RunID: c.runID, Horizon: horizon}

	c.listener.Transition(0, Init)
	log.WithFields(log.Fields{
		"runID":  c.runID,
		"params": p,
		"config": c.config,
	}).Info("starting planner run")

	duals := NewDuals(k, h, horizon, c.config.Rho)
	x := newTimeslotSnapshot(k, h, horizon)
	if c.config.FinishCoupling {
		x = seedOccupancy(p, horizon)
	}
	best := math.Inf(1)

	for round := 0; round < c.config.Rounds; round++ {
		c.listener.Transition(round, SolveAssignment)
		m1, v1 := formulateAssignment(p, horizon, duals, x, c.config.FinishCoupling)
		res1, err := c.solve(ctx, round, m1, c.config.AssignmentGap, stats.PlannerAssignmentSolveLatency_ms)
		if err != nil {
			return result, err
		}
		a := v1.snapshot(res1)
		c.listener.AssignmentSolved(round, res1, a)

		c.listener.Transition(round, SolveTimeslot)
		tolerance := c.config.TimeslotTolerance(round)
		m2, v2 := formulateTimeslot(p, horizon, duals, a, c.config.FinishCoupling)
		res2, err := c.solve(ctx, round, m2, tolerance, stats.PlannerTimeslotSolveLatency_ms)
		if err != nil {
			return result, err
		}
		next := v2.snapshot(res2)
		c.listener.TimeslotSolved(round, res2, next)

		c.listener.Transition(round, DualUpdate)
		residual := duals.Update(horizon, a, next)

		c.listener.Transition(round, Audit)
		schedule := roundSchedule(a, next)
		report, err := c.auditor.Audit(schedule)
		if err != nil {
			return result, errors.Wrapf(err, "round %d: auditing schedule", round)
		}

		best = math.Min(best, a.W)
		rd := &Round{
			Index:               round,
			Makespan:            a.W,
			BestMakespan:        best,
			Violations:          report.Count(),
			ByCheck:             report.ByCheck(),
			AssignmentStatus:    res1.Status,
			AssignmentObjective: res1.Objective,
			TimeslotStatus:      res2.Status,
			TimeslotObjective:   res2.Objective,
			TimeslotTolerance:   tolerance,
			Alpha:               duals.Alpha,
			Beta:                duals.Beta,
			PrimalResidual:      residual,
			Schedule:            schedule,
		}
		result.Rounds = append(result.Rounds, rd)
		result.Final = schedule
		c.record(rd)
		c.listener.RoundFinished(rd)

		x = next
		if c.converged(result.Rounds) {
			log.WithFields(log.Fields{
				"runID": c.runID,
				"round": round,
			}).Info("planner converged early")
			break
		}
	}

	c.listener.Transition(len(result.Rounds), Done)
	return result, nil
}

// solve hands a model to the solver. Infeasible is fatal, Suboptimal is
// accepted.
func (c *Coordinator) solve(ctx context.Context, round int, m *milp.Model, tolerance float64, latency string) (*milp.Result, error) {
	timer := c.stat.Latency(latency).Time()
	res, err := c.solver.Solve(ctx, m, tolerance)
	timer.Stop()
	if err != nil {
		return nil, errors.Wrapf(err, "round %d: solving %s", round, m)
	}
	switch res.Status {
	case milp.Infeasible:
		c.stat.Counter(stats.PlannerInfeasibleCounter).Inc(1)
		return nil, errors.Wrapf(ErrInfeasibleSubproblem, "round %d: %s", round, m.Name)
	case milp.Suboptimal:
		c.stat.Counter(stats.PlannerSuboptimalCounter).Inc(1)
	}
	if len(res.Values) != m.NumVars() {
		return nil, errors.Errorf("round %d: solver returned %d values for %s", round, len(res.Values), m)
	}
	return res, nil
}

func (c *Coordinator) record(rd *Round) {
	c.stat.Counter(stats.PlannerRoundCounter).Inc(1)
	c.stat.GaugeFloat(stats.PlannerMakespanGauge).Update(rd.Makespan)
	c.stat.GaugeFloat(stats.PlannerBestMakespanGauge).Update(rd.BestMakespan)
	c.stat.Gauge(stats.PlannerViolationsGauge).Update(int64(rd.Violations))
	c.stat.GaugeFloat(stats.PlannerPrimalResidualGauge).Update(rd.PrimalResidual)
}

// converged reports whether the last round is violation free and moved the
// makespan by at most ConvergenceGap. Always false when the gap is zero.
func (c *Coordinator) converged(rounds []*Round) bool {
	if c.config.ConvergenceGap <= 0 || len(rounds) < 2 {
		return false
	}
	last, prev := rounds[len(rounds)-1], rounds[len(rounds)-2]
	return last.Violations == 0 && math.Abs(last.Makespan-prev.Makespan) <= c.config.ConvergenceGap
}
