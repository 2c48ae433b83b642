package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
)

var (
	_ Node = (*LocalRead)(nil)
	_ Node = (*LocalWrite)(nil)
	_ Node = (*VarRead)(nil)
	_ Node = (*VarWrite)(nil)
	_ Node = (*ConstNode)(nil)
	_ Node = (*ConstWrite)(nil)

	_ definer = (*VarWrite)(nil)
	_ definer = (*ConstNode)(nil)
	_ definer = (*ConstWrite)(nil)

	_ conditional = (*LocalRead)(nil)
)

func (n *LocalRead) Describe() string  { return "local variable" }
func (n *LocalWrite) Describe() string { return "local variable assignment" }
func (n *VarRead) Describe() string    { return n.Kind.String() }
func (n *VarWrite) Describe() string   { return n.Kind.String() + " assignment" }
func (n *ConstNode) Describe() string  { return "constant" }
func (n *ConstWrite) Describe() string { return "constant assignment" }

func (n *LocalRead) Children() []Node  { return nil }
func (n *LocalWrite) Children() []Node { return []Node{n.Value} }
func (n *VarRead) Children() []Node    { return nil }
func (n *VarWrite) Children() []Node   { return []Node{n.Value} }
func (n *ConstWrite) Children() []Node { return []Node{n.Value} }
func (n *ConstNode) Children() []Node {
	if n.Scope == nil {
		return nil
	}
	return []Node{n.Scope}
}

type LocalRead struct {
	Base
	Name string
}

type unboundKey struct{}

func (n *LocalRead) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	vtx, ok := lenv.Get(n.Name)
	if !ok {
		vtx = cs.NewVertex(env, unboundKey{})
	}
	return n.commit(env, vtx)
}

func (n *LocalRead) cond(*core.GlobalEnv) core.Cond {
	return core.CondOn(n.Name, &core.TruthyConstraint{})
}

type LocalWrite struct {
	Base
	Name  string
	Value Node
}

func (n *LocalWrite) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	n.begin(n)
	vtx := n.Value.Install(env, lenv)
	lenv.Set(n.Name, vtx)
	return n.commit(env, vtx)
}

type VarKind int

const (
	InstanceVar VarKind = iota
	ClassVar
	GlobalVar
)

func (k VarKind) String() string {
	switch k {
	case ClassVar:
		return "class variable"
	case GlobalVar:
		return "global variable"
	}
	return "instance variable"
}

// VarRead reads an instance, class or global variable
type VarRead struct {
	Base
	Kind VarKind
	Name string
}

func (n *VarRead) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	var ret core.BasicVertex
	switch n.Kind {
	case InstanceVar:
		ret = cs.AddIVarReadBox(env, lenv.Mod, lenv.Singleton, n.Name).Ret()
	case ClassVar:
		ret = cs.AddCVarReadBox(env, lenv.Mod, n.Name).Ret()
	default:
		ret = cs.AddGVarReadBox(env, n.Name).Ret()
	}
	return n.commit(env, ret)
}

func variableEntity(env *core.GlobalEnv, scope *Scope, kind VarKind, name string) *core.ValueEntity {
	switch kind {
	case InstanceVar:
		return scope.Module(env).IVar(env, scope.Singleton, name)
	case ClassVar:
		return scope.Module(env).CVar(env, name)
	}
	return env.GVar(name)
}

// VarWrite defines the variable it writes on the module of its scope
type VarWrite struct {
	Base
	Kind  VarKind
	Name  string
	Value Node

	entity *core.ValueEntity
}

func (n *VarWrite) Entity() *core.ValueEntity { return n.entity }

func (n *VarWrite) define(env *core.GlobalEnv, scope *Scope) {
	n.entity = variableEntity(env, scope, n.Kind, n.Name)
	n.entity.AddDef(env, n)
}

func (n *VarWrite) undefine(env *core.GlobalEnv) {
	n.entity.RemoveDef(env, n)
	n.entity = nil
}

func (n *VarWrite) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	vtx := n.Value.Install(env, lenv)
	cs.AddEdge(vtx, n.entity.Vertex())
	return n.commit(env, vtx)
}

// ConstNode reads a constant: lexically (`A`), inside another constant (`A::B`)
// or from the top level (`::A`)
type ConstNode struct {
	Base
	Name string
	// Scope is the `A` of `A::B`
	Scope    *ConstNode
	Toplevel bool

	read *core.ConstRead
}

// Read is the static read created at Define time
func (n *ConstNode) Read() *core.ConstRead { return n.read }

// Path is the written constant path, like [A B] for `A::B`
func (n *ConstNode) Path() []string {
	if n.Scope == nil {
		return []string{n.Name}
	}
	return append(n.Scope.Path(), n.Name)
}

func (n *ConstNode) define(env *core.GlobalEnv, scope *Scope) {
	switch {
	case n.Scope != nil:
		n.read = core.NewScopedConstRead(env, n, n.Name, n.Scope.read)
	case n.Toplevel:
		n.read = core.NewToplevelConstRead(env, n, n.Name)
	default:
		n.read = core.NewConstRead(env, n, n.Name, scope.CRef)
	}
}

func (n *ConstNode) undefine(env *core.GlobalEnv) {
	n.read.Destroy(env)
	n.read = nil
}

func (n *ConstNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	if n.Scope != nil {
		n.Scope.Install(env, lenv)
	}
	return n.commit(env, cs.AddConstReadBox(env, n.read).Ret())
}

// ConstWrite defines a constant in the module of its scope
type ConstWrite struct {
	Base
	Name  string
	Value Node

	entity *core.ValueEntity
}

func (n *ConstWrite) Entity() *core.ValueEntity { return n.entity }

func (n *ConstWrite) define(env *core.GlobalEnv, scope *Scope) {
	n.entity = scope.Module(env).Const(env, n.Name)
	n.entity.AddDef(env, n)
}

func (n *ConstWrite) undefine(env *core.GlobalEnv) {
	n.entity.RemoveDef(env, n)
	n.entity = nil
}

func (n *ConstWrite) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	vtx := n.Value.Install(env, lenv)
	cs.AddEdge(vtx, n.entity.Vertex())
	return n.commit(env, vtx)
}
