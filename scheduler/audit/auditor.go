// Package audit re-checks a rounded schedule against the planning
// constraints. It only counts violations and never changes the schedule.
package audit

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/splitplan/splitplan/scheduler/domain"
)

// Check names one audited constraint family.
type Check int

const (
	// A job occupies a slot at or after its reported finish.
	FinishConsistency Check = iota

	// The serving node spends fewer slots on the job than it needs.
	AssignedOccupancy

	// The serving node works on the job before its data is released.
	ReleaseDate

	// The job is served by zero or several nodes.
	SingleAssignment

	// The jobs assigned to a node exceed its memory.
	MemoryByAssignment

	// The jobs whose last slot runs on a node exceed its memory.
	MemoryByReservation

	// The job's slot count doesn't match its duration on exactly one node.
	ProcessingCount

	// A node works on several jobs in the same slot.
	DoubleBooking

	numChecks
)

func (c Check) String() string {
	asString := [numChecks]string{
		"FinishConsistency",
		"AssignedOccupancy",
		"ReleaseDate",
		"SingleAssignment",
		"MemoryByAssignment",
		"MemoryByReservation",
		"ProcessingCount",
		"DoubleBooking",
	}
	return asString[c]
}

func (c Check) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Check) UnmarshalText(text []byte) error {
	for k := Check(0); k < numChecks; k++ {
		if k.String() == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown check %q", text)
}

// Violation locates one failed check. Fields that don't apply are -1.
type Violation struct {
	Check Check `json:"check"`
	Job   int   `json:"job"`
	Node  int   `json:"node"`
	Slot  int   `json:"slot"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s(job:%d, node:%d, slot:%d)", v.Check, v.Job, v.Node, v.Slot)
}

// Report lists every violation found in one schedule.
type Report struct {
	Violations []Violation `json:"violations"`
}

// Count is the number of violations.
func (r *Report) Count() int {
	return len(r.Violations)
}

// ByCheck counts violations per check name, omitting checks that passed.
func (r *Report) ByCheck() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.Check.String()]++
	}
	return out
}

func (r *Report) add(c Check, job, node, slot int) {
	r.Violations = append(r.Violations, Violation{c, job, node, slot})
}

// Auditor checks schedules for one set of parameters.
type Auditor struct {
	params *domain.Params
}

func NewAuditor(params *domain.Params) *Auditor {
	return &Auditor{params: params}
}

// Audit runs every check. It is a pure function of its inputs, so auditing
// the same schedule twice yields the same report.
func (a *Auditor) Audit(s *domain.Schedule) (*Report, error) {
	if err := a.checkShape(s); err != nil {
		return nil, err
	}
	r := &Report{}
	a.finishConsistency(s, r)
	a.assignedOccupancy(s, r)
	a.releaseDate(s, r)
	a.singleAssignment(s, r)
	a.memory(s, r)
	a.processingCount(s, r)
	a.doubleBooking(s, r)
	return r, nil
}

func (a *Auditor) checkShape(s *domain.Schedule) error {
	k, h := a.params.NumJobs(), a.params.NumNodes()
	if s.NumJobs() != k || s.NumNodes() != h || len(s.Finish) != k {
		return errors.Wrapf(domain.ErrInvalidParams,
			"schedule has %d jobs, %d nodes and %d finish slots, expected %d jobs and %d nodes",
			s.NumJobs(), s.NumNodes(), len(s.Finish), k, h)
	}
	t := s.NumSlots()
	for i := 0; i < k; i++ {
		if len(s.Assignment[i]) != h {
			return errors.Wrapf(domain.ErrInvalidParams, "assignment row %d has %d nodes", i, len(s.Assignment[i]))
		}
	}
	for j := 0; j < h; j++ {
		if len(s.Occupancy[j]) != k {
			return errors.Wrapf(domain.ErrInvalidParams, "occupancy of node %d has %d jobs", j, len(s.Occupancy[j]))
		}
		for i := 0; i < k; i++ {
			if len(s.Occupancy[j][i]) != t {
				return errors.Wrapf(domain.ErrInvalidParams, "occupancy of node %d job %d has %d slots, expected %d",
					j, i, len(s.Occupancy[j][i]), t)
			}
		}
	}
	return nil
}

// f[i] >= (t+1) * x[j,i,t], one violation per occupied cell.
func (a *Auditor) finishConsistency(s *domain.Schedule, r *Report) {
	for j := range s.Occupancy {
		for i := range s.Occupancy[j] {
			for t, v := range s.Occupancy[j][i] {
				if v == 1 && s.Finish[i] < t+1 {
					r.add(FinishConsistency, i, j, t)
				}
			}
		}
	}
}

// sum_t x[j,i,t] >= y[i,j] * proc[i,j].
func (a *Auditor) assignedOccupancy(s *domain.Schedule, r *Report) {
	for j := range s.Occupancy {
		for i := range s.Occupancy[j] {
			if s.SlotsOn(j, i) < s.Assignment[i][j]*a.params.Proc[i][j] {
				r.add(AssignedOccupancy, i, j, -1)
			}
		}
	}
}

// No work on the serving node before the release date, one violation per cell.
func (a *Auditor) releaseDate(s *domain.Schedule, r *Report) {
	for i := range s.Assignment {
		j := s.AssignedNode(i)
		if j < 0 {
			continue
		}
		release := a.params.ReleaseDate[i][j]
		for t := 0; t < release && t < s.NumSlots(); t++ {
			if s.Occupancy[j][i][t] == 1 {
				r.add(ReleaseDate, i, j, t)
			}
		}
	}
}

func (a *Auditor) singleAssignment(s *domain.Schedule, r *Report) {
	for i, row := range s.Assignment {
		n := 0
		for _, v := range row {
			n += v
		}
		if n != 1 {
			r.add(SingleAssignment, i, -1, -1)
		}
	}
}

// Memory is checked twice: against the assignment and against the node that
// actually holds each job's last slot. The two disagree when the time slot
// problem runs a job away from its assigned node.
func (a *Auditor) memory(s *domain.Schedule, r *Report) {
	h := s.NumNodes()
	demand := a.params.Demand()
	assigned := make([]int, h)
	reserved := make([]int, h)
	for i := range s.Assignment {
		for j, v := range s.Assignment[i] {
			assigned[j] += v
		}
		if node, _ := s.LastSlot(i); node >= 0 {
			reserved[node]++
		}
	}
	for j := 0; j < h; j++ {
		if assigned[j]*demand > a.params.MemoryCapacity[j] {
			r.add(MemoryByAssignment, -1, j, -1)
		}
		if reserved[j]*demand > a.params.MemoryCapacity[j] {
			r.add(MemoryByReservation, -1, j, -1)
		}
	}
}

// Each job runs for exactly its duration on exactly one node. Partial counts
// are reported per node, a job with no full node or several full nodes once.
func (a *Auditor) processingCount(s *domain.Schedule, r *Report) {
	for i := range s.Assignment {
		full := 0
		for j := range s.Occupancy {
			n := s.SlotsOn(j, i)
			switch {
			case n == 0:
			case n == a.params.Proc[i][j]:
				full++
			default:
				r.add(ProcessingCount, i, j, -1)
			}
		}
		if full != 1 {
			r.add(ProcessingCount, i, -1, -1)
		}
	}
}

func (a *Auditor) doubleBooking(s *domain.Schedule, r *Report) {
	for j := range s.Occupancy {
		for t := 0; t < s.NumSlots(); t++ {
			n := 0
			for i := range s.Occupancy[j] {
				n += s.Occupancy[j][i][t]
			}
			if n > 1 {
				r.add(DoubleBooking, -1, j, t)
			}
		}
	}
}
