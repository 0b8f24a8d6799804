package admm

import (
	"sort"

	"github.com/splitplan/splitplan/scheduler/domain"
)

// seedOccupancy builds a greedy list schedule: jobs in order of earliest
// possible finish, each run contiguously on the node where it finishes
// first among nodes that still have memory for it. It satisfies every
// constraint of the time slot problem and ends within the horizon.
func seedOccupancy(p *domain.Params, horizon int) *TimeslotSnapshot {
	k, h := p.NumJobs(), p.NumNodes()
	x := newTimeslotSnapshot(k, h, horizon)

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.EarliestFinish(order[a]) < p.EarliestFinish(order[b])
	})

	free := make([]int, h)
	used := make([]int, h)
	demand := p.Demand()
	for _, i := range order {
		node, start := pickNode(p, i, free, used, demand, true)
		if node < 0 {
			node, start = pickNode(p, i, free, used, demand, false)
		}
		for t := start; t < start+p.Proc[i][node]; t++ {
			x.X[node][i][t] = 1
		}
		free[node] = start + p.Proc[i][node]
		used[node] += demand
	}
	return x
}

func pickNode(p *domain.Params, i int, free, used []int, demand int, checkMemory bool) (node, start int) {
	node, best := -1, 0
	for j := range free {
		if checkMemory && used[j]+demand > p.MemoryCapacity[j] {
			continue
		}
		s := free[j]
		if r := p.ReleaseDate[i][j]; r > s {
			s = r
		}
		if finish := s + p.Proc[i][j]; node < 0 || finish < best {
			node, start, best = j, s, finish
		}
	}
	return node, start
}
