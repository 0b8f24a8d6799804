package domain

import (
	"math/rand"

	"github.com/leanovate/gopter"
)

// GenRandomParams builds valid parameters for k jobs on h nodes with small
// durations. Every node can host every job, so memory never binds.
func GenRandomParams(k, h int, rng *rand.Rand) *Params {
	p := &Params{
		ReleaseDate:    make([][]int, k),
		Proc:           make([][]int, k),
		ProcLocal:      make([]int, k),
		TransBack:      make([][]int, k),
		MemoryCapacity: make([]int, h),
		MemoryDemand:   1,
	}
	for i := 0; i < k; i++ {
		p.ReleaseDate[i] = make([]int, h)
		p.Proc[i] = make([]int, h)
		p.TransBack[i] = make([]int, h)
		p.ProcLocal[i] = rng.Intn(3)
		for j := 0; j < h; j++ {
			p.ReleaseDate[i][j] = rng.Intn(3)
			p.Proc[i][j] = 1 + rng.Intn(3)
			p.TransBack[i][j] = rng.Intn(3)
		}
	}
	for j := range p.MemoryCapacity {
		p.MemoryCapacity[j] = k
	}
	return p
}

// GopterGenParams generates parameters with 1..maxJobs jobs and 1..maxNodes nodes.
func GopterGenParams(maxJobs, maxNodes int) gopter.Gen {
	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		k := 1 + genParams.Rng.Intn(maxJobs)
		h := 1 + genParams.Rng.Intn(maxNodes)
		return gopter.NewGenResult(GenRandomParams(k, h, genParams.Rng), gopter.NoShrinker)
	}
}

// GenRandomSchedule fills a schedule for p with independent coin flips. The
// result is almost never feasible, which is what auditing tests want.
func GenRandomSchedule(p *Params, rng *rand.Rand) *Schedule {
	k, h, t := p.NumJobs(), p.NumNodes(), p.Horizon()
	s := NewSchedule(k, h, t)
	for i := 0; i < k; i++ {
		for j := 0; j < h; j++ {
			s.Assignment[i][j] = rng.Intn(2)
			for slot := 0; slot < t; slot++ {
				s.Occupancy[j][i][slot] = rng.Intn(2)
			}
		}
		s.Finish[i] = rng.Intn(t + 1)
	}
	s.Makespan = rng.Intn(p.CompletionUpperBound() + 1)
	return s
}
