// Package cli is the splitplan command line: plan a parameter set with the
// ADMM coordinator or audit an existing schedule.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/admm"
	"github.com/splitplan/splitplan/scheduler/config"
	"github.com/splitplan/splitplan/scheduler/domain"
	"github.com/splitplan/splitplan/scheduler/loader"

	exiterrors "github.com/splitplan/splitplan/common/errors"
)

// PlannerCLI holds the state shared by every subcommand.
type PlannerCLI struct {
	RootCmd    *cobra.Command
	ConfigFlag string
	LogLevel   string
	PrintStats bool

	// Reports go here, logs go to stderr.
	Out io.Writer

	Configs *config.JSONConfigs
	Stat    stats.StatsReceiver
	cancel  func()
}

// Cmd is one subcommand.
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *PlannerCLI, cmd *cobra.Command, args []string) error
}

func NewPlannerCLI() *PlannerCLI {
	c := &PlannerCLI{Out: os.Stdout}
	c.RootCmd = &cobra.Command{
		Use:                "splitplan",
		Short:              "splitplan plans split execution jobs on a set of nodes",
		PersistentPreRunE:  c.Init,
		PersistentPostRunE: c.Close,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}
	c.RootCmd.PersistentFlags().StringVar(&c.ConfigFlag, "config", "default",
		"Planner config (either a name like local.exact or JSON text)")
	c.RootCmd.PersistentFlags().StringVar(&c.LogLevel, "log_level", "info",
		"Log everything at this level and above (error|info|debug|trace)")
	c.RootCmd.PersistentFlags().BoolVar(&c.PrintStats, "stats", false, "Print the stats registry to stderr when done")

	c.addCmd(&runCmd{})
	c.addCmd(&auditCmd{})
	return c
}

// Exec runs the command line. The returned error carries an exit code.
func (c *PlannerCLI) Exec() error {
	return c.RootCmd.Execute()
}

// Can only be called from cobra command run or hook
func (c *PlannerCLI) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return exiterrors.NewError(err, exiterrors.InvalidParamsExitCode)
	}
	log.SetLevel(level)

	c.Configs, err = config.GetPlannerConfigs(c.ConfigFlag)
	if err != nil {
		return exiterrors.NewError(err, exiterrors.ConfigFailureExitCode)
	}
	log.Debugf("planner configs: %s", c.Configs)
	c.Stat, c.cancel, err = c.Configs.Stats.CreateStatsReceiver()
	if err != nil {
		return exiterrors.NewError(err, exiterrors.ConfigFailureExitCode)
	}
	return nil
}

// Needs cobra parameters for use from rootCmd
func (c *PlannerCLI) Close(cmd *cobra.Command, args []string) error {
	if c.PrintStats && c.Stat != nil {
		fmt.Fprintf(os.Stderr, "%s\n", c.Stat.Render(true))
	}
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *PlannerCLI) addCmd(cmd Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.Run(c, innerCmd, args)
	}
	c.RootCmd.AddCommand(cobraCmd)
}

// paramsFlags selects where parameters come from: one JSON file or a pair
// of CSV tables.
type paramsFlags struct {
	paramsPath   string
	jobsCSV      string
	nodesCSV     string
	memoryDemand int
}

func (f *paramsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.paramsPath, "params", "", "JSON parameter file")
	cmd.Flags().StringVar(&f.jobsCSV, "jobs_csv", "", "CSV jobs table: job,node,release,proc,proc_local,trans_back")
	cmd.Flags().StringVar(&f.nodesCSV, "nodes_csv", "", "CSV nodes table: node,memory_capacity")
	cmd.Flags().IntVar(&f.memoryDemand, "memory_demand", 1, "Memory units one job takes on its node, used with the CSV tables")
}

func (f *paramsFlags) loader() (loader.Loader, error) {
	switch {
	case f.paramsPath != "" && (f.jobsCSV != "" || f.nodesCSV != ""):
		return nil, errors.New("use either --params or --jobs_csv/--nodes_csv, not both")
	case f.paramsPath != "":
		return &loader.JSONFileLoader{Path: f.paramsPath}, nil
	case f.jobsCSV != "" && f.nodesCSV != "":
		return &loader.CSVFileLoader{JobsPath: f.jobsCSV, NodesPath: f.nodesCSV, MemoryDemand: f.memoryDemand}, nil
	}
	return nil, errors.New("parameters are required: --params, or both --jobs_csv and --nodes_csv")
}

func (f *paramsFlags) load() (*domain.Params, error) {
	l, err := f.loader()
	if err != nil {
		return nil, exiterrors.NewError(err, exiterrors.InvalidParamsExitCode)
	}
	p, err := l.Load()
	if err != nil {
		return nil, exitCodeFor(err, exiterrors.LoadFailureExitCode)
	}
	return p, nil
}

// exitCodeFor attaches the exit code matching the cause of err, or fallback.
func exitCodeFor(err error, fallback exiterrors.ExitCode) error {
	switch errors.Cause(err) {
	case domain.ErrInvalidParams:
		return exiterrors.NewError(err, exiterrors.InvalidParamsExitCode)
	case admm.ErrInfeasibleSubproblem:
		return exiterrors.NewError(err, exiterrors.InfeasibleExitCode)
	}
	return exiterrors.NewError(err, fallback)
}
