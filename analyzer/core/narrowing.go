package core

import (
	"maps"
	"slices"
	"strings"
)

// Constraint narrows the vertex of one variable inside a branch
type Constraint interface {
	String() string
	// Narrow returns a vertex forwarding only the types of vtx that satisfy the constraint
	Narrow(env *GlobalEnv, changes *ChangeSet, vtx BasicVertex) BasicVertex
	Negate() Constraint
}

var (
	_ Constraint = (*IsAConstraint)(nil)
	_ Constraint = (*NilConstraint)(nil)
	_ Constraint = (*TruthyConstraint)(nil)
	_ Constraint = (*AndConstraint)(nil)
	_ Constraint = (*OrConstraint)(nil)
)

// IsAConstraint is `x.is_a?(C)`
type IsAConstraint struct {
	Read    *ConstRead
	Negated bool
}

func (c *IsAConstraint) String() string {
	if c.Negated {
		return "!is_a?(" + c.Read.String() + ")"
	}
	return "is_a?(" + c.Read.String() + ")"
}

func (c *IsAConstraint) Narrow(env *GlobalEnv, changes *ChangeSet, vtx BasicVertex) BasicVertex {
	return changes.AddIsAFilter(env, vtx, c.Read, c.Negated)
}

func (c *IsAConstraint) Negate() Constraint {
	return &IsAConstraint{Read: c.Read, Negated: !c.Negated}
}

// NilConstraint is `x.nil?`
type NilConstraint struct {
	Negated bool
}

func (c *NilConstraint) String() string {
	if c.Negated {
		return "!nil?"
	}
	return "nil?"
}

func (c *NilConstraint) Narrow(env *GlobalEnv, changes *ChangeSet, vtx BasicVertex) BasicVertex {
	return changes.AddNilFilter(env, vtx, !c.Negated, false)
}

func (c *NilConstraint) Negate() Constraint { return &NilConstraint{Negated: !c.Negated} }

// TruthyConstraint is a bare `x` used as a condition
type TruthyConstraint struct {
	Negated bool
}

func (c *TruthyConstraint) String() string {
	if c.Negated {
		return "falsy"
	}
	return "truthy"
}

func (c *TruthyConstraint) Narrow(env *GlobalEnv, changes *ChangeSet, vtx BasicVertex) BasicVertex {
	return changes.AddNilFilter(env, vtx, c.Negated, true)
}

func (c *TruthyConstraint) Negate() Constraint { return &TruthyConstraint{Negated: !c.Negated} }

// AndConstraint holds when both sides hold, so the sides narrow one after the other
type AndConstraint struct {
	Left, Right Constraint
}

func (c *AndConstraint) String() string { return "(" + c.Left.String() + " && " + c.Right.String() + ")" }

func (c *AndConstraint) Narrow(env *GlobalEnv, changes *ChangeSet, vtx BasicVertex) BasicVertex {
	return c.Right.Narrow(env, changes, c.Left.Narrow(env, changes, vtx))
}

func (c *AndConstraint) Negate() Constraint {
	return &OrConstraint{Left: c.Left.Negate(), Right: c.Right.Negate()}
}

// OrConstraint holds when either side holds, so it unions both narrowings
type OrConstraint struct {
	Left, Right Constraint
}

func (c *OrConstraint) String() string { return "(" + c.Left.String() + " || " + c.Right.String() + ")" }

type orConstraintKey struct {
	c   *OrConstraint
	vtx BasicVertex
}

func (c *OrConstraint) Narrow(env *GlobalEnv, changes *ChangeSet, vtx BasicVertex) BasicVertex {
	union := changes.NewVertex(env, orConstraintKey{c, vtx})
	changes.AddEdge(c.Left.Narrow(env, changes, vtx), union)
	changes.AddEdge(c.Right.Narrow(env, changes, vtx), union)
	return union
}

func (c *OrConstraint) Negate() Constraint {
	return &AndConstraint{Left: c.Left.Negate(), Right: c.Right.Negate()}
}

// Narrowing maps variable names to the constraint a branch puts on them
type Narrowing map[string]Constraint

// And constrains every variable by both narrowings
func (n Narrowing) And(o Narrowing) Narrowing {
	out := maps.Clone(n)
	if out == nil {
		out = Narrowing{}
	}
	for name, c := range o {
		if prev, ok := out[name]; ok {
			out[name] = &AndConstraint{Left: prev, Right: c}
		} else {
			out[name] = c
		}
	}
	return out
}

// Or keeps the variables constrained by both narrowings; one side alone says
// nothing about the other branch
func (n Narrowing) Or(o Narrowing) Narrowing {
	out := Narrowing{}
	for name, c := range n {
		if other, ok := o[name]; ok {
			out[name] = &OrConstraint{Left: c, Right: other}
		}
	}
	return out
}

func (n Narrowing) String() string {
	parts := make([]string, 0, len(n))
	for _, name := range slices.Sorted(maps.Keys(n)) {
		parts = append(parts, name+": "+n[name].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Cond is what a condition tells about variables in the branch taken when it
// holds and in the one taken when it does not
type Cond struct {
	Then Narrowing
	Else Narrowing
}

// CondOn is the condition that constrains one variable
func CondOn(name string, c Constraint) Cond {
	return Cond{Then: Narrowing{name: c}, Else: Narrowing{name: c.Negate()}}
}

func (c Cond) Not() Cond {
	return Cond{Then: c.Else, Else: c.Then}
}

// CondAnd is `a && b`: both hold in then, either fails in else
func CondAnd(a, b Cond) Cond {
	return Cond{Then: a.Then.And(b.Then), Else: a.Else.Or(b.Else)}
}

// CondOr is `a || b`: either holds in then, both fail in else
func CondOr(a, b Cond) Cond {
	return Cond{Then: a.Then.Or(b.Then), Else: a.Else.And(b.Else)}
}
