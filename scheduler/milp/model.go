// Package milp describes mixed integer linear programs and the narrow
// interface used to hand them to a solving engine.
package milp

import (
	"fmt"
	"math"
)

// VarType is the domain of a decision variable.
type VarType int

const (
	Continuous VarType = iota
	Integer
	Binary
)

func (t VarType) String() string {
	asString := [3]string{"Continuous", "Integer", "Binary"}
	return asString[t]
}

// IsIntegral reports whether values must be whole numbers.
func (t VarType) IsIntegral() bool {
	return t != Continuous
}

// VarID indexes Model.Vars.
type VarID int

// Var is a bounded decision variable. Bounds may be infinite.
type Var struct {
	Name  string
	Type  VarType
	Lower float64
	Upper float64
}

// Term is coef * var.
type Term struct {
	Var  VarID
	Coef float64
}

// Expr is a linear expression. Adding the same variable twice merges the
// coefficients. The zero value is an empty expression.
type Expr struct {
	Terms    []Term
	Constant float64
	index    map[VarID]int
}

// Add adds coef * v and returns the expression for chaining.
func (e *Expr) Add(v VarID, coef float64) *Expr {
	if coef == 0 {
		return e
	}
	if e.index == nil {
		e.index = make(map[VarID]int, len(e.Terms))
		for k, t := range e.Terms {
			e.index[t.Var] = k
		}
	}
	if k, ok := e.index[v]; ok {
		e.Terms[k].Coef += coef
		return e
	}
	e.index[v] = len(e.Terms)
	e.Terms = append(e.Terms, Term{v, coef})
	return e
}

// AddConstant adds c to the constant part.
func (e *Expr) AddConstant(c float64) *Expr {
	e.Constant += c
	return e
}

// Coef returns the merged coefficient of v.
func (e Expr) Coef(v VarID) float64 {
	c := 0.0
	for _, t := range e.Terms {
		if t.Var == v {
			c += t.Coef
		}
	}
	return c
}

// Eval returns the expression value at the given point.
func (e Expr) Eval(values []float64) float64 {
	sum := e.Constant
	for _, t := range e.Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Sense is the relation of a constraint's left side to its right side.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	asString := [3]string{"<=", ">=", "=="}
	return asString[s]
}

// Constraint is Expr <sense> RHS with the constant folded into RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Satisfied checks the constraint at the given point within tol.
func (c *Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Expr.Eval(values)
	switch c.Sense {
	case LessEqual:
		return lhs <= c.RHS+tol
	case GreaterEqual:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Direction of optimization.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

// Model bundles variables, constraints, an objective and a direction.
type Model struct {
	Name        string
	Vars        []Var
	Constraints []Constraint
	Objective   Expr
	Direction   Direction
}

func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVar declares a variable. Binary variables always get [0, 1] bounds.
func (m *Model) AddVar(name string, typ VarType, lower, upper float64) VarID {
	if typ == Binary {
		lower, upper = 0, 1
	}
	m.Vars = append(m.Vars, Var{Name: name, Type: typ, Lower: lower, Upper: upper})
	return VarID(len(m.Vars) - 1)
}

// AddConstraint adds lhs <sense> rhs. The constant of lhs moves to the right.
func (m *Model) AddConstraint(name string, lhs *Expr, sense Sense, rhs float64) {
	c := Constraint{Name: name, Sense: sense, RHS: rhs - lhs.Constant}
	c.Expr.Terms = make([]Term, 0, len(lhs.Terms))
	for _, t := range lhs.Terms {
		if t.Coef != 0 {
			c.Expr.Terms = append(c.Expr.Terms, t)
		}
	}
	m.Constraints = append(m.Constraints, c)
}

func (m *Model) SetObjective(e *Expr, dir Direction) {
	m.Objective = *e
	m.Direction = dir
}

func (m *Model) NumVars() int {
	return len(m.Vars)
}

// Check returns an error naming the first bound or constraint the point
// violates, or nil.
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.Vars) {
		return fmt.Errorf("model %s: expected %d values, got %d", m.Name, len(m.Vars), len(values))
	}
	for k, v := range m.Vars {
		x := values[k]
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("model %s: %s=%g outside [%g, %g]", m.Name, v.Name, x, v.Lower, v.Upper)
		}
		if v.Type.IsIntegral() && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("model %s: %s=%g is not integral", m.Name, v.Name, x)
		}
	}
	for k := range m.Constraints {
		c := &m.Constraints[k]
		if !c.Satisfied(values, tol) {
			return fmt.Errorf("model %s: constraint %s violated: %g %s %g",
				m.Name, c.Name, c.Expr.Eval(values), c.Sense, c.RHS)
		}
	}
	return nil
}

func (m *Model) String() string {
	return fmt.Sprintf("model:%s, vars:%d, constraints:%d", m.Name, len(m.Vars), len(m.Constraints))
}
