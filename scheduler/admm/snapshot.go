package admm

import (
	"github.com/splitplan/splitplan/scheduler/domain"
)

// AssignmentSnapshot freezes the assignment problem's solution for the time
// slot problem. Values are the raw solver values.
type AssignmentSnapshot struct {
	Y    [][]float64   // [job][node]
	F    []float64     // [job]
	W    float64       //
	Comp []float64     // [job]
	S    [][][]float64 // [node][job][slot]
}

// TimeslotSnapshot freezes the occupancy for the next assignment problem.
type TimeslotSnapshot struct {
	X [][][]float64 // [node][job][slot]
}

func newAssignmentSnapshot(k, h, t int) *AssignmentSnapshot {
	a := &AssignmentSnapshot{
		Y:    newMatrix(k, h),
		F:    make([]float64, k),
		Comp: make([]float64, k),
		S:    newTensor(h, k, t),
	}
	return a
}

func newTimeslotSnapshot(k, h, t int) *TimeslotSnapshot {
	return &TimeslotSnapshot{X: newTensor(h, k, t)}
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for r := range m {
		m[r] = make([]float64, cols)
	}
	return m
}

func newTensor(h, k, t int) [][][]float64 {
	x := make([][][]float64, h)
	for j := range x {
		x[j] = newMatrix(k, t)
	}
	return x
}

// roundSchedule thresholds the frozen values into the schedule the auditor
// and the report see.
func roundSchedule(a *AssignmentSnapshot, x *TimeslotSnapshot) *domain.Schedule {
	k, h := len(a.Y), len(x.X)
	t := 0
	if h > 0 && k > 0 {
		t = len(x.X[0][0])
	}
	s := domain.NewSchedule(k, h, t)
	for i := 0; i < k; i++ {
		for j := 0; j < h; j++ {
			s.Assignment[i][j] = domain.Binarize(a.Y[i][j])
		}
		s.Finish[i] = domain.RoundInt(a.F[i])
	}
	for j := 0; j < h; j++ {
		for i := 0; i < k; i++ {
			for slot := 0; slot < t; slot++ {
				s.Occupancy[j][i][slot] = domain.Binarize(x.X[j][i][slot])
			}
		}
	}
	s.Makespan = domain.RoundInt(a.W)
	return s
}
