package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
)

var (
	_ Node = (*IfNode)(nil)
	_ Node = (*AndNode)(nil)
	_ Node = (*OrNode)(nil)
	_ Node = (*NotNode)(nil)
	_ Node = (*MAsgnNode)(nil)

	_ conditional = (*AndNode)(nil)
	_ conditional = (*OrNode)(nil)
	_ conditional = (*NotNode)(nil)
)

func (n *IfNode) Describe() string {
	if n.Unless {
		return "unless"
	}
	return "if"
}
func (n *AndNode) Describe() string   { return "and" }
func (n *OrNode) Describe() string    { return "or" }
func (n *NotNode) Describe() string   { return "not" }
func (n *MAsgnNode) Describe() string { return "multiple assignment" }

// conditional is implemented by nodes that narrow variables when used as a condition
type conditional interface {
	cond(env *core.GlobalEnv) core.Cond
}

// condOf is what n tells about variables as a condition, nothing for most nodes
func condOf(env *core.GlobalEnv, n Node) core.Cond {
	if c, ok := n.(conditional); ok {
		return c.cond(env)
	}
	return core.Cond{}
}

type branchKey struct{}

// IfNode is `if`, `unless` and the ternary operator. Each branch sees the
// variables of the condition narrowed; after the node a variable is the union
// of what the branches left in it.
type IfNode struct {
	Base
	Cond Node
	Then *Statements
	Else *Statements
	// Unless swaps the branches the condition narrows
	Unless bool
}

func (n *IfNode) Children() []Node {
	children := []Node{n.Cond}
	if n.Then != nil {
		children = append(children, n.Then)
	}
	if n.Else != nil {
		children = append(children, n.Else)
	}
	return children
}

func (n *IfNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	n.Cond.Install(env, lenv)
	c := condOf(env, n.Cond)
	if n.Unless {
		c = c.Not()
	}

	ret := cs.NewVertex(env, branchKey{})
	branch := func(body *Statements, narrowing core.Narrowing) *LocalEnv {
		benv := lenv.fork()
		benv.narrow(env, cs, narrowing)
		if body == nil {
			cs.AddEdge(cs.NewSource(env, env.NilType()), ret)
			return benv
		}
		cs.AddEdge(body.Install(env, benv), ret)
		return benv
	}
	thenEnv := branch(n.Then, c.Then)
	elseEnv := branch(n.Else, c.Else)
	lenv.merge(env, cs, thenEnv, elseEnv)
	return n.commit(env, ret)
}

// AndNode is `a && b`: the value is the falsy part of a or the value of b
type AndNode struct {
	Base
	Left, Right Node
}

func (n *AndNode) Children() []Node { return []Node{n.Left, n.Right} }

func (n *AndNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	left := n.Left.Install(env, lenv)
	c := condOf(env, n.Left)

	skipped := lenv.fork()
	skipped.narrow(env, cs, c.Else)
	taken := lenv.fork()
	taken.narrow(env, cs, c.Then)
	right := n.Right.Install(env, taken)
	lenv.merge(env, cs, skipped, taken)

	ret := cs.NewVertex(env, branchKey{})
	cs.AddEdge(cs.AddNilFilter(env, left, true, true), ret)
	cs.AddEdge(right, ret)
	return n.commit(env, ret)
}

func (n *AndNode) cond(env *core.GlobalEnv) core.Cond {
	return core.CondAnd(condOf(env, n.Left), condOf(env, n.Right))
}

// OrNode is `a || b`: the value is the truthy part of a or the value of b
type OrNode struct {
	Base
	Left, Right Node
}

func (n *OrNode) Children() []Node { return []Node{n.Left, n.Right} }

func (n *OrNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	left := n.Left.Install(env, lenv)
	c := condOf(env, n.Left)

	skipped := lenv.fork()
	skipped.narrow(env, cs, c.Then)
	taken := lenv.fork()
	taken.narrow(env, cs, c.Else)
	right := n.Right.Install(env, taken)
	lenv.merge(env, cs, skipped, taken)

	ret := cs.NewVertex(env, branchKey{})
	cs.AddEdge(cs.AddNilFilter(env, left, false, true), ret)
	cs.AddEdge(right, ret)
	return n.commit(env, ret)
}

func (n *OrNode) cond(env *core.GlobalEnv) core.Cond {
	return core.CondOr(condOf(env, n.Left), condOf(env, n.Right))
}

// NotNode is `!x` and `not x`
type NotNode struct {
	Base
	Value Node
}

func (n *NotNode) Children() []Node { return []Node{n.Value} }

func (n *NotNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	n.Value.Install(env, lenv)
	return n.commit(env, cs.NewSource(env, env.TrueType(), env.FalseType()))
}

func (n *NotNode) cond(env *core.GlobalEnv) core.Cond {
	return condOf(env, n.Value).Not()
}

type masgnKey struct{ index int }

// MAsgnNode is `a, b, *c = value`
type MAsgnNode struct {
	Base
	Targets []string
	// Rest is the name after `*`, empty when there is none
	Rest  string
	Value Node
}

func (n *MAsgnNode) Children() []Node { return []Node{n.Value} }

func (n *MAsgnNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	rhs := n.Value.Install(env, lenv)
	lhs := make([]*core.Vertex, len(n.Targets))
	for i, name := range n.Targets {
		lhs[i] = cs.NewVertex(env, masgnKey{i})
		lenv.Set(name, lhs[i])
	}
	var rest *core.Vertex
	if n.Rest != "" {
		rest = cs.NewVertex(env, masgnKey{-1})
		lenv.Set(n.Rest, cs.NewSource(env, env.ArrayOf(rest)))
	}
	cs.AddMAsgnBox(env, rhs, lhs, rest)
	return n.commit(env, rhs)
}
