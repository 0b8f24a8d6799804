package domain

import (
	"math"
)

// Schedule is a rounded plan: which node serves each job and which slots
// each node spends on each job.
type Schedule struct {
	// Assignment[job][node] is 1 when the node serves the job.
	Assignment [][]int `json:"assignment"`

	// Occupancy[node][job][slot] is 1 when the node works on the job in that slot.
	Occupancy [][][]int `json:"occupancy"`

	// Finish[job] is the finish slot reported by the assignment problem.
	Finish []int `json:"finish"`

	// Makespan is the rounded w of the assignment problem.
	Makespan int `json:"makespan"`
}

// NewSchedule returns an all-zero schedule for k jobs, h nodes and t slots.
func NewSchedule(k, h, t int) *Schedule {
	s := &Schedule{
		Assignment: make([][]int, k),
		Occupancy:  make([][][]int, h),
		Finish:     make([]int, k),
	}
	for i := range s.Assignment {
		s.Assignment[i] = make([]int, h)
	}
	for j := range s.Occupancy {
		s.Occupancy[j] = make([][]int, k)
		for i := range s.Occupancy[j] {
			s.Occupancy[j][i] = make([]int, t)
		}
	}
	return s
}

// Binarize thresholds a relaxed 0/1 value at 0.5.
func Binarize(v float64) int {
	if v >= 0.5 {
		return 1
	}
	return 0
}

// RoundInt rounds a solver value to the nearest integer.
func RoundInt(v float64) int {
	return int(math.Round(v))
}

func (s *Schedule) NumJobs() int  { return len(s.Assignment) }
func (s *Schedule) NumNodes() int { return len(s.Occupancy) }

// NumSlots returns T, or 0 for an empty schedule.
func (s *Schedule) NumSlots() int {
	if len(s.Occupancy) == 0 || len(s.Occupancy[0]) == 0 {
		return 0
	}
	return len(s.Occupancy[0][0])
}

// AssignedNode returns the first node serving job i, or -1.
func (s *Schedule) AssignedNode(i int) int {
	for j, v := range s.Assignment[i] {
		if v == 1 {
			return j
		}
	}
	return -1
}

// SlotsOn counts the slots node j spends on job i.
func (s *Schedule) SlotsOn(j, i int) int {
	n := 0
	for _, v := range s.Occupancy[j][i] {
		n += v
	}
	return n
}

// LastSlot returns the node and slot of job i's latest occupied slot, or
// (-1, -1) when the job never runs. Ties go to the lower node index.
func (s *Schedule) LastSlot(i int) (node, slot int) {
	node, slot = -1, -1
	for j := range s.Occupancy {
		for t, v := range s.Occupancy[j][i] {
			if v == 1 && t > slot {
				node, slot = j, t
			}
		}
	}
	return node, slot
}

// Timeline returns, per node and slot, the job running there or -1. When
// several jobs share a slot the lowest job index is reported.
func (s *Schedule) Timeline() [][]int {
	tl := make([][]int, s.NumNodes())
	for j := range tl {
		tl[j] = make([]int, s.NumSlots())
		for t := range tl[j] {
			tl[j][t] = -1
			for i := range s.Occupancy[j] {
				if s.Occupancy[j][i][t] == 1 {
					tl[j][t] = i
					break
				}
			}
		}
	}
	return tl
}

// Completions derives each job's completion slot from the occupancy: the
// slot after its last occupied slot, plus local work and the transfer back
// from the node that ran it. Jobs that never run report -1.
func (s *Schedule) Completions(p *Params) []int {
	out := make([]int, s.NumJobs())
	for i := range out {
		node, slot := s.LastSlot(i)
		if node < 0 {
			out[i] = -1
			continue
		}
		out[i] = slot + 1 + p.ProcLocal[i] + p.TransBack[i][node]
	}
	return out
}

// RealizedMakespan is the max of Completions, or -1 when some job never runs.
func (s *Schedule) RealizedMakespan(p *Params) int {
	m := 0
	for _, c := range s.Completions(p) {
		if c < 0 {
			return -1
		}
		if c > m {
			m = c
		}
	}
	return m
}
