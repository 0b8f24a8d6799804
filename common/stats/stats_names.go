package stats

/*
This file defines all the metrics being collected. As new metrics are added please follow this pattern.
*/

const (
	/************************* ADMM coordinator metrics **************************/
	/*
		the number of ADMM rounds completed
	*/
	PlannerRoundCounter = "roundCounter"

	/*
		the number of complete planner runs (every round finished)
	*/
	PlannerRunOkCounter = "runOkCounter"

	/*
		the number of planner runs aborted by an infeasible subproblem or a solver error
	*/
	PlannerRunErrCounter = "runErrCounter"

	/*
		time spent solving the assignment subproblem (subproblem 1) in a round
	*/
	PlannerAssignmentSolveLatency_ms = "assignmentSolveLatency_ms"

	/*
		time spent solving the time slot subproblem (subproblem 2) in a round
	*/
	PlannerTimeslotSolveLatency_ms = "timeslotSolveLatency_ms"

	/*
		makespan w reported by the latest assignment subproblem
	*/
	PlannerMakespanGauge = "makespanGauge"

	/*
		smallest makespan seen so far in the run
	*/
	PlannerBestMakespanGauge = "bestMakespanGauge"

	/*
		number of constraint violations the auditor found in the latest round
	*/
	PlannerViolationsGauge = "violationsGauge"

	/*
		sum of absolute consensus residuals used in the latest dual update
	*/
	PlannerPrimalResidualGauge = "primalResidualGauge"

	/*
		number of subproblems the solver reported as infeasible
	*/
	PlannerInfeasibleCounter = "infeasibleCounter"

	/*
		number of subproblems accepted with a suboptimal (gap bounded) status
	*/
	PlannerSuboptimalCounter = "suboptimalCounter"

	/************************* Branch and bound engine metrics **************************/
	/*
		number of models handed to the engine
	*/
	SolverSolveCounter = "solveCounter"

	/*
		number of branch and bound nodes explored
	*/
	SolverNodeCounter = "nodeCounter"

	/*
		number of LP relaxations solved with the simplex method
	*/
	SolverLPCounter = "lpCounter"

	/*
		number of LP relaxations where the simplex method failed numerically
	*/
	SolverLPFailureCounter = "lpFailureCounter"

	/*
		number of models fully decided by presolve without an LP
	*/
	SolverPresolvedCounter = "presolvedCounter"

	/*
		number of searches stopped by the node limit
	*/
	SolverNodeLimitCounter = "nodeLimitCounter"

	/*
		wall time of a complete branch and bound search
	*/
	SolverSearchLatency_ms = "searchLatency_ms"
)
