package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

func Test_GeneratedParamsAreValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("generated params validate", prop.ForAll(
		func(p *Params) bool {
			return p.Validate() == nil
		},
		GopterGenParams(6, 3),
	))

	properties.Property("every job fits in the horizon", prop.ForAll(
		func(p *Params) bool {
			for i := 0; i < p.NumJobs(); i++ {
				if p.EarliestFinish(i) > p.Horizon() {
					return false
				}
			}
			return p.MakespanLowerBound() <= p.CompletionUpperBound()
		},
		GopterGenParams(6, 3),
	))

	properties.TestingRun(t)
}
