// Package bnb is a small branch and bound MILP engine. Nodes are presolved,
// relaxed to an LP solved with gonum's simplex and explored best-bound first.
// It is meant for the instance sizes the planner handles in tests and demos;
// larger instances should plug a commercial engine into milp.Solver.
package bnb

import (
	"container/heap"
	"context"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/splitplan/splitplan/common/stats"
	"github.com/splitplan/splitplan/scheduler/milp"
)

// ErrNodeLimit is returned when the node limit is reached before any
// integral point is found.
var ErrNodeLimit = errors.New("branch and bound node limit reached without a feasible point")

// Config tunes the search.
type Config struct {
	// Nodes explored before the search stops with its incumbent.
	MaxNodes int

	// Distance from an integer below which a value counts as integral.
	IntegralityTol float64

	// Reduced cost tolerance handed to the simplex, scaled by the largest
	// objective coefficient.
	SimplexTol float64

	// Artificial column cost, scaled by the largest objective coefficient.
	BigM float64
}

func DefaultConfig() Config {
	return Config{
		MaxNodes:       20000,
		IntegralityTol: 1e-6,
		SimplexTol:     1e-10,
		BigM:           1e4,
	}
}

// Solver implements milp.Solver.
type Solver struct {
	config Config
	stat   stats.StatsReceiver
}

// NewSolver fills zero config fields from DefaultConfig.
func NewSolver(config Config, stat stats.StatsReceiver) *Solver {
	def := DefaultConfig()
	if config.MaxNodes <= 0 {
		config.MaxNodes = def.MaxNodes
	}
	if config.IntegralityTol <= 0 {
		config.IntegralityTol = def.IntegralityTol
	}
	if config.SimplexTol <= 0 {
		config.SimplexTol = def.SimplexTol
	}
	if config.BigM <= 0 {
		config.BigM = def.BigM
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Solver{config: config, stat: stat}
}

// Solve searches until the relative gap between the incumbent and the best
// open bound is within tolerance, the tree is exhausted, or MaxNodes.
func (s *Solver) Solve(ctx context.Context, model *milp.Model, tolerance float64) (*milp.Result, error) {
	defer s.stat.Latency(stats.SolverSearchLatency_ms).Time().Stop()
	s.stat.Counter(stats.SolverSolveCounter).Inc(1)

	p, err := newProblem(model)
	if err != nil {
		return nil, err
	}
	n := model.NumVars()
	root := &node{lo: make([]float64, n), hi: make([]float64, n), bound: math.Inf(-1)}
	for k, v := range model.Vars {
		root.lo[k], root.hi[k] = v.Lower, v.Upper
	}

	var incumbent []float64
	incObj := math.Inf(1)
	exact := true
	stopped := false
	explored := 0
	queue := &nodeQueue{}
	heap.Push(queue, root)

	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if explored >= s.config.MaxNodes {
			s.stat.Counter(stats.SolverNodeLimitCounter).Inc(1)
			stopped = true
			break
		}
		nd := heap.Pop(queue).(*node)
		if incumbent != nil && !s.improves(nd.bound, incObj) {
			continue
		}
		explored++
		s.stat.Counter(stats.SolverNodeCounter).Inc(1)

		relax, err := s.relax(p, nd.lo, nd.hi)
		if err != nil {
			return nil, err
		}
		if relax == nil {
			continue
		}
		if explored == 1 && !relax.usedLP {
			s.stat.Counter(stats.SolverPresolvedCounter).Inc(1)
		}
		exact = exact && relax.exact
		if incumbent != nil && !s.improves(relax.obj, incObj) {
			continue
		}

		k := s.mostFractional(p, relax.x)
		if k < 0 {
			point := s.snap(p, relax.x)
			if err := model.Check(point, feasTol); err != nil {
				// Integral within tolerance but not after rounding, keep searching around it.
				log.Debugf("rejecting rounded point: %v", err)
				exact = false
				continue
			}
			if obj := p.objective(point); obj < incObj {
				incumbent, incObj = point, obj
			}
		} else {
			v := relax.x[k]
			down := nd.child(relax.obj)
			down.hi[k] = math.Floor(v)
			up := nd.child(relax.obj)
			up.lo[k] = math.Ceil(v)
			heap.Push(queue, down)
			heap.Push(queue, up)
		}

		if incumbent != nil && queue.Len() > 0 && gap(incObj, (*queue)[0].bound) <= tolerance {
			stopped = true
			break
		}
	}

	if incumbent == nil {
		if stopped {
			return nil, errors.Wrapf(ErrNodeLimit, "model %s after %d nodes", model.Name, explored)
		}
		log.WithFields(log.Fields{
			"model": model.Name,
			"nodes": explored,
		}).Debug("model is infeasible")
		return &milp.Result{Status: milp.Infeasible, Nodes: explored}, nil
	}

	bound := incObj
	for _, nd := range *queue {
		if s.improves(nd.bound, incObj) {
			bound = math.Min(bound, nd.bound)
		}
	}
	status := milp.Optimal
	if !exact || gap(incObj, bound) > s.config.IntegralityTol {
		status = milp.Suboptimal
	}
	res := &milp.Result{
		Status:    status,
		Values:    incumbent,
		Objective: p.sign * incObj,
		Bound:     p.sign * bound,
		Nodes:     explored,
	}
	log.WithFields(log.Fields{
		"model":     model.Name,
		"status":    res.Status,
		"objective": res.Objective,
		"bound":     res.Bound,
		"nodes":     explored,
		"stopped":   stopped,
	}).Debug("branch and bound finished")
	return res, nil
}

// improves reports whether a node bounded by bound could beat obj.
func (s *Solver) improves(bound, obj float64) bool {
	return bound < obj-s.config.IntegralityTol*math.Max(1, math.Abs(obj))
}

// mostFractional returns the integral variable farthest from an integer, or -1.
func (s *Solver) mostFractional(p *problem, x []float64) int {
	best, bestDist := -1, s.config.IntegralityTol
	for k, v := range x {
		if !p.integral[k] {
			continue
		}
		if d := math.Abs(v - math.Round(v)); d > bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func (s *Solver) snap(p *problem, x []float64) []float64 {
	out := make([]float64, len(x))
	for k, v := range x {
		if p.integral[k] {
			v = math.Round(v)
		}
		out[k] = v
	}
	return out
}

// gap is the relative distance between the incumbent and the best bound.
func gap(incumbent, bound float64) float64 {
	if math.IsInf(bound, -1) {
		return math.Inf(1)
	}
	return math.Max(0, incumbent-bound) / math.Max(math.Abs(incumbent), 1e-10)
}

type node struct {
	lo, hi []float64

	// LP objective of the parent, a lower bound for the subtree.
	bound float64
	depth int
}

func (nd *node) child(bound float64) *node {
	return &node{
		lo:    append([]float64(nil), nd.lo...),
		hi:    append([]float64(nil), nd.hi...),
		bound: bound,
		depth: nd.depth + 1,
	}
}

// nodeQueue is a min-heap on bound, deeper nodes first on ties.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound < q[j].bound
	}
	return q[i].depth > q[j].depth
}
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(*node)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	nd := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return nd
}

// Make sure Solver satisfies the engine interface.
var _ milp.Solver = (*Solver)(nil)
