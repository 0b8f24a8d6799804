package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func twoJobsOneNode() *Params {
	return &Params{
		ReleaseDate:    [][]int{{0}, {0}},
		Proc:           [][]int{{3}, {2}},
		ProcLocal:      []int{0, 0},
		TransBack:      [][]int{{0}, {0}},
		MemoryCapacity: []int{2},
	}
}

func TestHorizon(t *testing.T) {
	p := twoJobsOneNode()
	assert.Equal(t, 6, p.Horizon())

	p.ReleaseDate[1][0] = 4
	assert.Equal(t, 10, p.Horizon())
}

func TestBounds(t *testing.T) {
	p := &Params{
		ReleaseDate:    [][]int{{1, 0}, {2, 5}},
		Proc:           [][]int{{3, 5}, {2, 1}},
		ProcLocal:      []int{1, 2},
		TransBack:      [][]int{{2, 1}, {0, 3}},
		MemoryCapacity: []int{1, 1},
	}
	assert.NoError(t, p.Validate())
	assert.Equal(t, 4, p.EarliestFinish(0))
	assert.Equal(t, 4, p.EarliestFinish(1))
	assert.Equal(t, 1, p.MinTransBack(0))
	// job 0: 4 + 1 + 1, job 1: 4 + 0 + 2
	assert.Equal(t, 6, p.MakespanLowerBound())
	// T = 5 + 2*5 = 15, plus max transfer 3 and max local 2
	assert.Equal(t, 15, p.Horizon())
	assert.Equal(t, 20, p.CompletionUpperBound())
	assert.Equal(t, 1, p.Demand())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"no jobs", func(p *Params) { p.Proc = nil }},
		{"no nodes", func(p *Params) { p.MemoryCapacity = nil }},
		{"short release table", func(p *Params) { p.ReleaseDate = p.ReleaseDate[:1] }},
		{"short node row", func(p *Params) { p.Proc[1] = []int{} }},
		{"zero duration", func(p *Params) { p.Proc[0][0] = 0 }},
		{"negative release", func(p *Params) { p.ReleaseDate[0][0] = -1 }},
		{"negative local", func(p *Params) { p.ProcLocal[1] = -2 }},
		{"negative capacity", func(p *Params) { p.MemoryCapacity[0] = -1 }},
		{"negative demand", func(p *Params) { p.MemoryDemand = -1 }},
	}
	assert.NoError(t, twoJobsOneNode().Validate())
	for _, test := range tests {
		p := twoJobsOneNode()
		test.mutate(p)
		err := p.Validate()
		if assert.Error(t, err, test.name) {
			assert.Equal(t, ErrInvalidParams, errors.Cause(err), test.name)
		}
	}
}

func TestScheduleQueries(t *testing.T) {
	p := twoJobsOneNode()
	s := NewSchedule(2, 1, 6)
	s.Assignment[0][0], s.Assignment[1][0] = 1, 1
	for _, slot := range []int{0, 1, 2} {
		s.Occupancy[0][0][slot] = 1
	}
	for _, slot := range []int{3, 4} {
		s.Occupancy[0][1][slot] = 1
	}

	assert.Equal(t, 6, s.NumSlots())
	assert.Equal(t, 0, s.AssignedNode(1))
	assert.Equal(t, 2, s.SlotsOn(0, 1))
	node, slot := s.LastSlot(1)
	assert.Equal(t, 0, node)
	assert.Equal(t, 4, slot)
	assert.Equal(t, [][]int{{0, 0, 0, 1, 1, -1}}, s.Timeline())
	assert.Equal(t, []int{3, 5}, s.Completions(p))
	assert.Equal(t, 5, s.RealizedMakespan(p))

	s.Occupancy[0][1][3], s.Occupancy[0][1][4] = 0, 0
	assert.Equal(t, -1, s.RealizedMakespan(p))
	assert.Equal(t, -1, NewSchedule(1, 2, 3).AssignedNode(0))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1, Binarize(0.5))
	assert.Equal(t, 1, Binarize(0.9999))
	assert.Equal(t, 0, Binarize(0.4999))
	assert.Equal(t, 0, Binarize(-1e-9))
	assert.Equal(t, 5, RoundInt(4.9999999))
	assert.Equal(t, 3, RoundInt(3.0000001))
}
