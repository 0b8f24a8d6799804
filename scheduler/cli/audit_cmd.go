package cli

/**
implements the command line entry for auditing a schedule
*/

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/splitplan/splitplan/scheduler/audit"
	"github.com/splitplan/splitplan/scheduler/loader"

	exiterrors "github.com/splitplan/splitplan/common/errors"
)

type auditCmd struct {
	params       paramsFlags
	schedulePath string
}

func (c *auditCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "audit",
		Short: "Count the constraint violations of a schedule JSON file",
	}
	c.params.register(r)
	r.Flags().StringVar(&c.schedulePath, "schedule", "", "Schedule JSON file, for example the final schedule of a run report")
	return r
}

type auditReport struct {
	Count            int               `json:"count"`
	ByCheck          map[string]int    `json:"by_check"`
	Violations       []audit.Violation `json:"violations"`
	Timeline         [][]int           `json:"timeline"`
	Completions      []int             `json:"completions"`
	RealizedMakespan int               `json:"realized_makespan"`
}

func (c *auditCmd) Run(cl *PlannerCLI, cmd *cobra.Command, args []string) error {
	if c.schedulePath == "" {
		return exiterrors.NewError(errors.New("--schedule is required"), exiterrors.InvalidParamsExitCode)
	}
	p, err := c.params.load()
	if err != nil {
		return err
	}
	f, err := os.Open(c.schedulePath)
	if err != nil {
		return exiterrors.NewError(errors.Wrapf(err, "opening schedule %s", c.schedulePath), exiterrors.LoadFailureExitCode)
	}
	defer f.Close()
	s, err := loader.ReadSchedule(f)
	if err != nil {
		return exiterrors.NewError(err, exiterrors.LoadFailureExitCode)
	}

	report, err := audit.NewAuditor(p).Audit(s)
	if err != nil {
		return exitCodeFor(err, exiterrors.InvalidParamsExitCode)
	}
	log.Infof("schedule %s has %d violations: %v", c.schedulePath, report.Count(), report.ByCheck())
	return writeJSON(cl, &auditReport{
		Count:            report.Count(),
		ByCheck:          report.ByCheck(),
		Violations:       report.Violations,
		Timeline:         s.Timeline(),
		Completions:      s.Completions(p),
		RealizedMakespan: s.RealizedMakespan(p),
	})
}
