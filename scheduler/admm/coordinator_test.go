package admm

import (
	"context"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/audit"
	"github.com/splitplan/splitplan/scheduler/domain"
	"github.com/splitplan/splitplan/scheduler/milp"
	"github.com/splitplan/splitplan/scheduler/milp/bnb"
)

func newTestStats() (stats.StatsReceiver, stats.StatsRegistry) {
	reg := stats.NewFinagleStatsRegistry()
	stat, _ := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg }, 0)
	return stat, reg
}

// zeros answers any model with an all-zero point.
func zeros(status milp.Status) func(context.Context, *milp.Model, float64) (*milp.Result, error) {
	return func(_ context.Context, m *milp.Model, _ float64) (*milp.Result, error) {
		return &milp.Result{Status: status, Values: make([]float64, m.NumVars())}, nil
	}
}

// recordingListener keeps the transitions it sees.
type recordingListener struct {
	NopListener
	states []State
	rounds []*Round
}

func (l *recordingListener) Transition(_ int, s State) { l.states = append(l.states, s) }
func (l *recordingListener) RoundFinished(r *Round)   { l.rounds = append(l.rounds, r) }

func TestNewCoordinatorValidates(t *testing.T) {
	p := twoJobParams()
	p.Proc[0][0] = 0
	_, err := NewCoordinator(p, nil, DefaultConfig(), nil)
	assert.Equal(t, domain.ErrInvalidParams, errors.Cause(err))

	c := DefaultConfig()
	c.Rounds = 0
	_, err = NewCoordinator(twoJobParams(), nil, c, nil)
	assert.Error(t, err)

	coord, err := NewCoordinator(twoJobParams(), nil, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, coord.RunID())
}

func TestInfeasibleAssignmentIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any(), 1e-4).
		Return(&milp.Result{Status: milp.Infeasible}, nil).Times(1)

	stat, reg := newTestStats()
	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), stat)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	assert.Equal(t, ErrInfeasibleSubproblem, errors.Cause(err))
	require.NotNil(t, res)
	assert.Empty(t, res.Rounds)
	assert.Nil(t, res.Final)

	stats.VerifyStats("infeasible", reg, t, map[string]stats.Rule{
		stats.PlannerInfeasibleCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.PlannerRunErrCounter:     {Checker: stats.Int64EqTest, Value: 1},
		stats.PlannerRunOkCounter:      {Checker: stats.DoesNotExistTest},
		stats.PlannerRoundCounter:      {Checker: stats.DoesNotExistTest},
	})
}

func TestInfeasibleTimeslotKeepsCompletedRounds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)
	gomock.InOrder(
		solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(zeros(milp.Optimal)).Times(5),
		solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).Return(&milp.Result{Status: milp.Infeasible}, nil),
	)

	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), nil)
	require.NoError(t, err)
	coord.SetListener(NopListener{})

	res, err := coord.Run(context.Background())
	assert.Equal(t, ErrInfeasibleSubproblem, errors.Cause(err))
	assert.Contains(t, err.Error(), "round 2")
	assert.Len(t, res.Rounds, 2)
	assert.Equal(t, res.Rounds[1].Schedule, res.Final)
}

func TestSuboptimalIsAccepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(zeros(milp.Suboptimal)).Times(10)

	stat, reg := newTestStats()
	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), stat)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rounds, 5)
	for _, r := range res.Rounds {
		assert.Equal(t, milp.Suboptimal, r.AssignmentStatus)
		assert.Equal(t, milp.Suboptimal, r.TimeslotStatus)
		// Nothing is assigned, so every job is flagged.
		assert.Equal(t, 2, r.ByCheck["SingleAssignment"])
	}

	stats.VerifyStats("suboptimal", reg, t, map[string]stats.Rule{
		stats.PlannerSuboptimalCounter: {Checker: stats.Int64EqTest, Value: 10},
		stats.PlannerRoundCounter:      {Checker: stats.Int64EqTest, Value: 5},
		stats.PlannerRunOkCounter:      {Checker: stats.Int64EqTest, Value: 1},
		stats.PlannerInfeasibleCounter: {Checker: stats.DoesNotExistTest},
	})
}

func TestTolerancePerRound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)

	tolerances := map[string][]float64{}
	solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, m *milp.Model, tolerance float64) (*milp.Result, error) {
			tolerances[m.Name] = append(tolerances[m.Name], tolerance)
			return zeros(milp.Optimal)(ctx, m, tolerance)
		}).Times(10)

	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), nil)
	require.NoError(t, err)
	res, err := coord.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{1e-4, 1e-4, 1e-4, 1e-4, 1e-4}, tolerances["assignment"])
	assert.Equal(t, []float64{0.05, 0.05, 0.05, 1e-4, 1e-4}, tolerances["timeslot"])
	for k, r := range res.Rounds {
		assert.Equal(t, tolerances["timeslot"][k], r.TimeslotTolerance)
	}
}

func TestSolverErrorsAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)
	gomock.InOrder(
		solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(zeros(milp.Optimal)),
		solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, bnb.ErrNodeLimit),
	)

	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), nil)
	require.NoError(t, err)
	res, err := coord.Run(context.Background())
	assert.Equal(t, bnb.ErrNodeLimit, errors.Cause(err))
	assert.Empty(t, res.Rounds)
}

func TestShortSolutionIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&milp.Result{Status: milp.Optimal, Values: []float64{1}}, nil)

	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = coord.Run(context.Background())
	assert.Error(t, err)
	assert.NotEqual(t, ErrInfeasibleSubproblem, errors.Cause(err))
}

func TestTransitions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	solver := milp.NewMockSolver(ctrl)
	solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(zeros(milp.Optimal)).Times(4)

	config := DefaultConfig()
	config.Rounds = 2
	coord, err := NewCoordinator(twoJobParams(), solver, config, nil)
	require.NoError(t, err)
	l := &recordingListener{}
	coord.SetListener(l)

	_, err = coord.Run(context.Background())
	require.NoError(t, err)
	round := []State{SolveAssignment, SolveTimeslot, DualUpdate, Audit}
	want := append([]State{Init}, round...)
	want = append(want, round...)
	want = append(want, Done)
	assert.Equal(t, want, l.states)
	assert.Len(t, l.rounds, 2)
}

func TestEndToEndSharedNode(t *testing.T) {
	stat, reg := newTestStats()
	solver := bnb.NewSolver(bnb.DefaultConfig(), stat.Scope("solver"))
	coord, err := NewCoordinator(twoJobParams(), solver, DefaultConfig(), stat)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Horizon)
	assert.Equal(t, []float64{5, 5, 5, 5, 5}, res.Makespans())
	assert.Equal(t, []int{0, 0, 0, 0, 0}, res.Violations())
	best := res.BestMakespans()
	for k := 1; k < len(best); k++ {
		assert.LessOrEqual(t, best[k], best[k-1])
	}
	for _, r := range res.Rounds {
		assert.True(t, r.AssignmentStatus.HasSolution())
		assert.True(t, r.TimeslotStatus.HasSolution())
	}

	final := res.Final
	assert.Equal(t, [][]int{{1}, {1}}, final.Assignment)
	assert.Equal(t, []int{5, 2}, final.Finish)
	assert.Equal(t, [][]int{{1, 1, 0, 0, 0, -1}}, final.Timeline())
	assert.Equal(t, 5, final.RealizedMakespan(twoJobParams()))

	assignment, timeslot := res.Objectives()
	assert.Len(t, assignment, 5)
	assert.Len(t, timeslot, 5)

	stats.VerifyStats("e2e", reg, t, map[string]stats.Rule{
		stats.PlannerRoundCounter:        {Checker: stats.Int64EqTest, Value: 5},
		stats.PlannerViolationsGauge:     {Checker: stats.Int64EqTest, Value: 0},
		stats.PlannerBestMakespanGauge:   {Checker: stats.FloatEqTest, Value: 5.0},
		stats.PlannerPrimalResidualGauge: {Checker: stats.FloatGTTest, Value: 0.0},
		"solver/" + stats.SolverSolveCounter: {Checker: stats.Int64EqTest, Value: 10},
	})
}

func TestEndToEndSingleJob(t *testing.T) {
	p := &domain.Params{
		ReleaseDate:    [][]int{{0}},
		Proc:           [][]int{{2}},
		ProcLocal:      []int{0},
		TransBack:      [][]int{{0}},
		MemoryCapacity: []int{1},
	}
	coord, err := NewCoordinator(p, bnb.NewSolver(bnb.DefaultConfig(), nil), DefaultConfig(), nil)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, res.Violations())
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, res.Makespans())
	assert.Equal(t, [][]int{{0, 0}}, res.Final.Timeline())
}

func TestEarlyConvergence(t *testing.T) {
	config := DefaultConfig()
	config.ConvergenceGap = 0.5
	coord, err := NewCoordinator(twoJobParams(), bnb.NewSolver(bnb.DefaultConfig(), nil), config, nil)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rounds, 2)
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coord, err := NewCoordinator(twoJobParams(), bnb.NewSolver(bnb.DefaultConfig(), nil), DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = coord.Run(ctx)
	assert.Equal(t, context.Canceled, errors.Cause(err))
}

// Three jobs on two nodes with different release dates and durations.
func threeJobsTwoNodes() *domain.Params {
	return &domain.Params{
		ReleaseDate:    [][]int{{0, 1}, {1, 0}, {0, 0}},
		Proc:           [][]int{{2, 1}, {1, 2}, {2, 2}},
		ProcLocal:      []int{0, 1, 0},
		TransBack:      [][]int{{0, 1}, {1, 0}, {0, 0}},
		MemoryCapacity: []int{2, 2},
	}
}

// rowsWithPrefix counts the constraints of m whose name starts with prefix.
func rowsWithPrefix(m *milp.Model, prefix string) int {
	n := 0
	for _, c := range m.Constraints {
		if strings.HasPrefix(c.Name, prefix) {
			n++
		}
	}
	return n
}

// Checks that hold for every round because the subproblems enforce them
// as hard rows: one node per job, memory per assignment, release dates
// and single occupancy.
func assertHardRowsHold(t *testing.T, p *domain.Params, res *Result) {
	auditor := audit.NewAuditor(p)
	for _, r := range res.Rounds {
		for i, row := range r.Schedule.Assignment {
			sum := 0
			for _, v := range row {
				sum += v
			}
			assert.Equal(t, 1, sum, "round %d job %d", r.Index, i)
		}
		assert.Zero(t, r.ByCheck["SingleAssignment"], "round %d", r.Index)
		assert.Zero(t, r.ByCheck["MemoryByAssignment"], "round %d", r.Index)
		assert.Zero(t, r.ByCheck["ReleaseDate"], "round %d", r.Index)
		assert.Zero(t, r.ByCheck["DoubleBooking"], "round %d", r.Index)

		report, err := auditor.Audit(r.Schedule)
		require.NoError(t, err)
		assert.Equal(t, r.Violations, report.Count(), "round %d", r.Index)
		assert.Equal(t, r.ByCheck, report.ByCheck(), "round %d", r.Index)
	}
}

func TestEndToEndTwoNodes(t *testing.T) {
	p := threeJobsTwoNodes()
	coord, err := NewCoordinator(p, bnb.NewSolver(bnb.DefaultConfig(), nil), DefaultConfig(), nil)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rounds, 5)
	assert.Equal(t, 7, res.Horizon)
	assertHardRowsHold(t, p, res)
	for _, r := range res.Rounds {
		// Deadline rows keep every slot inside the frozen finish.
		assert.Zero(t, r.ByCheck["FinishConsistency"], "round %d", r.Index)
		assert.GreaterOrEqual(t, r.Makespan, float64(p.MakespanLowerBound())-1e-6)
	}
	best := res.BestMakespans()
	for k := 1; k < len(best); k++ {
		assert.LessOrEqual(t, best[k], best[k-1])
	}
	require.Len(t, res.Final.Occupancy, 2)
}

func TestEndToEndUncoupled(t *testing.T) {
	p := threeJobsTwoNodes()
	config := DefaultConfig()
	config.FinishCoupling = false
	coord, err := NewCoordinator(p, bnb.NewSolver(bnb.DefaultConfig(), nil), config, nil)
	require.NoError(t, err)

	res, err := coord.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Rounds, 5)
	assertHardRowsHold(t, p, res)
}

// Without coupling round 0 starts from an all-zero occupancy and neither
// subproblem gets finish cuts or deadline rows. With coupling the seed
// yields a cut per job right away.
func TestFinishCouplingRows(t *testing.T) {
	for _, coupled := range []bool{false, true} {
		ctrl := gomock.NewController(t)
		solver := milp.NewMockSolver(ctrl)

		var models []*milp.Model
		solver.EXPECT().Solve(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, m *milp.Model, tolerance float64) (*milp.Result, error) {
				models = append(models, m)
				return zeros(milp.Optimal)(ctx, m, tolerance)
			}).Times(4)

		config := DefaultConfig()
		config.Rounds = 2
		config.FinishCoupling = coupled
		coord, err := NewCoordinator(twoJobParams(), solver, config, nil)
		require.NoError(t, err)
		_, err = coord.Run(context.Background())
		require.NoError(t, err)
		ctrl.Finish()

		require.Len(t, models, 4)
		assert.Equal(t, "assignment", models[0].Name)
		if coupled {
			assert.Equal(t, 2, rowsWithPrefix(models[0], "finish_cut"))
			continue
		}
		for _, m := range models {
			assert.Zero(t, rowsWithPrefix(m, "finish_cut"), m.Name)
			assert.Zero(t, rowsWithPrefix(m, "deadline"), m.Name)
		}
	}
}
