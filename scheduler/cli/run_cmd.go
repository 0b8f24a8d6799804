package cli

/**
implements the command line entry for planning a parameter set
*/

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/splitplan/splitplan/scheduler/admm"
	"github.com/splitplan/splitplan/scheduler/domain"

	exiterrors "github.com/splitplan/splitplan/common/errors"
)

type runCmd struct {
	params paramsFlags
	rounds int
}

func (c *runCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "run",
		Short: "Run the ADMM planner and print the round trace as JSON",
	}
	c.params.register(r)
	r.Flags().IntVar(&c.rounds, "rounds", 0, "Override the configured number of rounds")
	return r
}

// runReport is the round trace plus views derived from the final schedule.
type runReport struct {
	*admm.Result
	Timeline         [][]int `json:"timeline,omitempty"`
	Completions      []int   `json:"completions,omitempty"`
	RealizedMakespan int     `json:"realized_makespan"`
}

func newRunReport(p *domain.Params, res *admm.Result) *runReport {
	r := &runReport{Result: res, RealizedMakespan: -1}
	if res.Final != nil {
		r.Timeline = res.Final.Timeline()
		r.Completions = res.Final.Completions(p)
		r.RealizedMakespan = res.Final.RealizedMakespan(p)
	}
	return r
}

func (c *runCmd) Run(cl *PlannerCLI, cmd *cobra.Command, args []string) error {
	p, err := c.params.load()
	if err != nil {
		return err
	}
	config, err := cl.Configs.Planner.CreatePlannerConfig()
	if err != nil {
		return exiterrors.NewError(err, exiterrors.ConfigFailureExitCode)
	}
	if c.rounds > 0 {
		config.Rounds = c.rounds
		if err := config.Validate(); err != nil {
			return exiterrors.NewError(err, exiterrors.InvalidParamsExitCode)
		}
	}
	solver, err := cl.Configs.Solver.CreateSolver(cl.Stat.Scope("solver"))
	if err != nil {
		return exiterrors.NewError(err, exiterrors.ConfigFailureExitCode)
	}
	coord, err := admm.NewCoordinator(p, solver, config, cl.Stat.Scope("planner"))
	if err != nil {
		return exitCodeFor(err, exiterrors.ConfigFailureExitCode)
	}

	log.Infof("planning %s with %s", p, config)
	res, runErr := coord.Run(context.Background())
	if res != nil && len(res.Rounds) > 0 {
		if err := writeJSON(cl, newRunReport(p, res)); err != nil {
			return err
		}
	}
	if runErr != nil {
		return exitCodeFor(runErr, exiterrors.SolverFailureExitCode)
	}
	return nil
}

func writeJSON(cl *PlannerCLI, v interface{}) error {
	asJson, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exiterrors.NewError(err, exiterrors.GenericFailureExitCode)
	}
	if _, err := cl.Out.Write(append(asJson, '\n')); err != nil {
		return exiterrors.NewError(err, exiterrors.GenericFailureExitCode)
	}
	return nil
}
