// Package domain provides the planning inputs (jobs, nodes and their
// durations) and the schedule representation shared by the optimizer, the
// auditor and the loaders.
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidParams is the cause of every validation failure.
var ErrInvalidParams = errors.New("invalid planning parameters")

// Params are the immutable inputs of one planning run for K jobs on H nodes.
// Per job and node tables are indexed [job][node].
type Params struct {
	// Slot at which the job's input data is available on each node.
	ReleaseDate [][]int `json:"release_date"`

	// Number of slots the job occupies on each node.
	Proc [][]int `json:"proc"`

	// Slots the job needs locally after its remote part finishes.
	ProcLocal []int `json:"proc_local"`

	// Slots needed to ship results back from each node.
	TransBack [][]int `json:"trans_back"`

	// Number of job slots each node can host.
	MemoryCapacity []int `json:"memory_capacity"`

	// Memory units one job consumes on the node serving it. Zero means 1.
	MemoryDemand int `json:"memory_demand,omitempty"`
}

// NumJobs returns K.
func (p *Params) NumJobs() int {
	return len(p.Proc)
}

// NumNodes returns H.
func (p *Params) NumNodes() int {
	return len(p.MemoryCapacity)
}

// Demand returns the per job memory demand, defaulting to 1.
func (p *Params) Demand() int {
	if p.MemoryDemand <= 0 {
		return 1
	}
	return p.MemoryDemand
}

func (p *Params) String() string {
	return fmt.Sprintf("jobs:%d, nodes:%d, horizon:%d, demand:%d, capacity:%v",
		p.NumJobs(), p.NumNodes(), p.Horizon(), p.Demand(), p.MemoryCapacity)
}

// Validate checks shapes and signs, returning an error caused by ErrInvalidParams.
func (p *Params) Validate() error {
	k, h := p.NumJobs(), p.NumNodes()
	if k == 0 {
		return errors.Wrap(ErrInvalidParams, "at least one job is required")
	}
	if h == 0 {
		return errors.Wrap(ErrInvalidParams, "at least one node is required")
	}
	if len(p.ReleaseDate) != k || len(p.TransBack) != k || len(p.ProcLocal) != k {
		return errors.Wrapf(ErrInvalidParams,
			"job tables disagree on job count: release=%d, proc=%d, proc_local=%d, trans_back=%d",
			len(p.ReleaseDate), k, len(p.ProcLocal), len(p.TransBack))
	}
	if p.MemoryDemand < 0 {
		return errors.Wrapf(ErrInvalidParams, "memory demand %d is negative", p.MemoryDemand)
	}
	for j, c := range p.MemoryCapacity {
		if c < 0 {
			return errors.Wrapf(ErrInvalidParams, "node %d: memory capacity %d is negative", j, c)
		}
	}
	for i := 0; i < k; i++ {
		if len(p.ReleaseDate[i]) != h || len(p.Proc[i]) != h || len(p.TransBack[i]) != h {
			return errors.Wrapf(ErrInvalidParams, "job %d: expected %d node entries", i, h)
		}
		if p.ProcLocal[i] < 0 {
			return errors.Wrapf(ErrInvalidParams, "job %d: local duration %d is negative", i, p.ProcLocal[i])
		}
		for j := 0; j < h; j++ {
			if p.ReleaseDate[i][j] < 0 || p.TransBack[i][j] < 0 {
				return errors.Wrapf(ErrInvalidParams, "job %d node %d: negative release or transfer", i, j)
			}
			// A zero duration would make the per job processing row divide by zero.
			if p.Proc[i][j] <= 0 {
				return errors.Wrapf(ErrInvalidParams, "job %d node %d: processing duration must be positive, was %d",
					i, j, p.Proc[i][j])
			}
		}
	}
	return nil
}

// Horizon returns T = max release date + K * max processing duration.
func (p *Params) Horizon() int {
	return maxOf(p.ReleaseDate) + p.NumJobs()*maxOf(p.Proc)
}

// MaxTransBack returns the largest transfer-back duration.
func (p *Params) MaxTransBack() int {
	return maxOf(p.TransBack)
}

// MaxProcLocal returns the largest local duration.
func (p *Params) MaxProcLocal() int {
	m := 0
	for _, v := range p.ProcLocal {
		if v > m {
			m = v
		}
	}
	return m
}

// EarliestFinish returns the first slot job i could finish on any node,
// min over j of release[i][j] + proc[i][j].
func (p *Params) EarliestFinish(i int) int {
	best := -1
	for j := range p.Proc[i] {
		if f := p.ReleaseDate[i][j] + p.Proc[i][j]; best < 0 || f < best {
			best = f
		}
	}
	return best
}

// MinTransBack returns the cheapest transfer back for job i.
func (p *Params) MinTransBack(i int) int {
	best := -1
	for _, v := range p.TransBack[i] {
		if best < 0 || v < best {
			best = v
		}
	}
	return best
}

// CompletionUpperBound bounds comp[i] and w: T + max transfer + max local.
func (p *Params) CompletionUpperBound() int {
	return p.Horizon() + p.MaxTransBack() + p.MaxProcLocal()
}

// MakespanLowerBound is max over jobs of earliest finish + cheapest transfer + local.
func (p *Params) MakespanLowerBound() int {
	lb := 0
	for i := 0; i < p.NumJobs(); i++ {
		if v := p.EarliestFinish(i) + p.MinTransBack(i) + p.ProcLocal[i]; v > lb {
			lb = v
		}
	}
	return lb
}

func maxOf(table [][]int) int {
	m := 0
	for _, row := range table {
		for _, v := range row {
			if v > m {
				m = v
			}
		}
	}
	return m
}
