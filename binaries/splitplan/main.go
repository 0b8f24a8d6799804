package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/splitplan/splitplan/common/log/hooks"
	"github.com/splitplan/splitplan/scheduler/cli"

	exiterrors "github.com/splitplan/splitplan/common/errors"
)

// Planner binary for split execution jobs.
//	Supported commands: (see "-h" for all options)
//		run --params [file] | --jobs_csv [file] --nodes_csv [file]
//		audit --params [file] --schedule [file]
//	Global flags:
//		--config [<named config or JSON text>]
//		--log_level [<error|info|debug|trace> level and above should be logged]
//		--stats [print the stats registry when done]
//
// The exit code is 64 for invalid parameters, 66 when they can't be loaded,
// 70 for an infeasible subproblem, 71 for other solver failures and 78 for
// a bad config.

func main() {
	log.AddHook(hooks.NewContextHook())

	if err := cli.NewPlannerCLI().Exec(); err != nil {
		log.Errorf("Error running splitplan: %v", err)
		os.Exit(int(exiterrors.GetExitCode(err)))
	}
}
