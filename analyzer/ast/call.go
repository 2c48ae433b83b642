package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/ir"
)

var (
	_ Node = (*CallNode)(nil)
	_ Node = (*SplatNode)(nil)

	_ core.MidRanger = (*CallNode)(nil)
	_ conditional    = (*CallNode)(nil)
)

func (n *CallNode) Describe() string  { return "method call" }
func (n *SplatNode) Describe() string { return "splat" }

// CallNode is a method call, on an explicit receiver or on implicit self
type CallNode struct {
	Base
	// Recv is nil for a call on implicit self
	Recv Node
	Name string
	// MidRange is the range of the method name
	MidRange ir.Range
	// Args are the positional arguments, *SplatNode for `*x`
	Args []Node
	// Keywords holds `k: v` and `**h` arguments
	Keywords  *HashNode
	BlockPass Node
	Block     *BlockNode

	box *core.MethodCallBox
}

func (n *CallNode) Children() []Node {
	children := nodes(n.Recv)
	children = append(children, n.Args...)
	if n.Keywords != nil {
		children = append(children, n.Keywords)
	}
	if n.BlockPass != nil {
		children = append(children, n.BlockPass)
	}
	if n.Block != nil {
		children = append(children, n.Block)
	}
	return children
}

func (n *CallNode) MidCodeRange() ir.Range {
	if n.MidRange == ir.NoRange {
		return n.Range
	}
	return n.MidRange
}

// Box is the call box of the last install
func (n *CallNode) Box() *core.MethodCallBox { return n.box }

func (n *CallNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	var recv core.BasicVertex
	if n.Recv != nil {
		recv = n.Recv.Install(env, lenv)
	} else {
		recv = cs.NewSource(env, lenv.SelfType(env))
	}

	args := &core.ActualArgs{}
	for _, arg := range n.Args {
		_, splat := arg.(*SplatNode)
		args.Positionals = append(args.Positionals, arg.Install(env, lenv))
		args.SplatFlags = append(args.SplatFlags, splat)
		args.Nodes = append(args.Nodes, arg)
	}
	if n.Keywords != nil {
		args.Keywords = n.Keywords.Install(env, lenv)
	}
	switch {
	case n.BlockPass != nil:
		args.Block = n.BlockPass.Install(env, lenv)
	case n.Block != nil:
		args.Block = n.Block.Install(env, lenv)
	}

	subclasses := n.Recv == nil && env.Options.SubclassDispatch
	n.box = cs.AddMethodCallBox(env, recv, n.Name, args, subclasses)
	return n.commit(env, n.box.Ret())
}

// cond narrows on `x.is_a?(C)`, `x.nil?` and `!x`
func (n *CallNode) cond(env *core.GlobalEnv) core.Cond {
	if n.Name == "!" && n.Recv != nil && len(n.Args) == 0 {
		return condOf(env, n.Recv).Not()
	}
	local, ok := n.Recv.(*LocalRead)
	if !ok {
		return core.Cond{}
	}
	switch n.Name {
	case "is_a?", "kind_of?", "instance_of?":
		if len(n.Args) != 1 {
			return core.Cond{}
		}
		if c, ok := n.Args[0].(*ConstNode); ok && c.Read() != nil {
			return core.CondOn(local.Name, &core.IsAConstraint{Read: c.Read()})
		}
	case "nil?":
		if len(n.Args) == 0 {
			return core.CondOn(local.Name, &core.NilConstraint{})
		}
	}
	return core.Cond{}
}

// SplatNode is `*x` in an argument list or an array literal
type SplatNode struct {
	Base
	Value Node
}

func (n *SplatNode) Children() []Node { return []Node{n.Value} }

func (n *SplatNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	n.begin(n)
	return n.commit(env, n.Value.Install(env, lenv))
}
