package ast

import (
	"slices"

	"github.com/cottand/typeflow/analyzer/core"
)

var (
	_ Node = (*ModuleDef)(nil)
	_ Node = (*IncludeNode)(nil)
	_ Node = (*AliasNode)(nil)

	_ core.ModuleOrigin  = (*ModuleDef)(nil)
	_ core.IncludeOrigin = (*IncludeNode)(nil)
)

func (n *ModuleDef) Describe() string {
	if n.Class {
		return "class definition"
	}
	return "module definition"
}
func (n *IncludeNode) Describe() string {
	if n.Prepend {
		return "prepend"
	}
	return "include"
}
func (n *AliasNode) Describe() string { return "alias" }

// ModuleDef is a `class` or `module` body
type ModuleDef struct {
	Base
	Class bool
	// Name is the written path, like [A B] for `class A::B`, relative to the enclosing scope
	Name       []string
	Superclass *ConstNode
	Body       *Statements

	inner *Scope
	mod   *core.ModuleEntity
}

func (n *ModuleDef) Children() []Node {
	children := make([]Node, 0, 2)
	if n.Superclass != nil {
		children = append(children, n.Superclass)
	}
	return append(children, n.Body)
}

func (n *ModuleDef) IsClass() bool { return n.Class }
func (n *ModuleDef) SuperclassRead() *core.ConstRead {
	if n.Superclass == nil {
		return nil
	}
	return n.Superclass.Read()
}
func (n *ModuleDef) SelfTypeReads() []*core.ConstRead { return nil }
func (n *ModuleDef) TypeParams() []string             { return nil }

// Module is the entity the definition was registered on
func (n *ModuleDef) Module() *core.ModuleEntity { return n.mod }

func (n *ModuleDef) scopeOf(_ *core.GlobalEnv, scope *Scope, child Node) *Scope {
	if child != Node(n.Body) {
		return scope
	}
	cpath := slices.Concat(scope.CRef.Cpath, n.Name)
	n.inner = &Scope{CRef: scope.CRef.Extend(cpath, false), Singleton: true}
	return n.inner
}

func (n *ModuleDef) define(env *core.GlobalEnv, _ *Scope) {
	n.mod = n.inner.Module(env)
	n.mod.AddDef(env, n)
}

func (n *ModuleDef) undefine(env *core.GlobalEnv) {
	n.mod.RemoveDef(env, n)
	n.mod = nil
}

func (n *ModuleDef) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	if n.Superclass != nil {
		n.Superclass.Install(env, lenv)
		cs.AddSuperclassCheckBox(env, n.mod, n)
	}
	ret := n.Body.Install(env, lenv.body(n.inner.CRef, n.mod, true, nil))
	return n.commit(env, ret)
}

// IncludeNode is `include M` or `prepend M` in a module body
type IncludeNode struct {
	Base
	Prepend bool
	Modules []*ConstNode

	mod *core.ModuleEntity
}

func (n *IncludeNode) Children() []Node {
	children := make([]Node, len(n.Modules))
	for i, m := range n.Modules {
		children[i] = m
	}
	return children
}

func (n *IncludeNode) IsPrepend() bool { return n.Prepend }
func (n *IncludeNode) IncludedReads() []*core.ConstRead {
	reads := make([]*core.ConstRead, len(n.Modules))
	for i, m := range n.Modules {
		reads[i] = m.Read()
	}
	return reads
}

func (n *IncludeNode) define(env *core.GlobalEnv, scope *Scope) {
	n.mod = scope.Module(env)
	n.mod.AddInclude(env, n)
}

func (n *IncludeNode) undefine(env *core.GlobalEnv) {
	n.mod.RemoveInclude(env, n)
	n.mod = nil
}

func (n *IncludeNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	for _, m := range n.Modules {
		m.Install(env, lenv)
	}
	return n.commit(env, cs.NewSource(env, lenv.SelfType(env)))
}

// AliasNode is `alias new old` on the methods of the enclosing module, or with
// Singleton on its singleton methods
type AliasNode struct {
	Base
	New       string
	Old       string
	Singleton bool
}

func (n *AliasNode) Children() []Node { return nil }

func (n *AliasNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	cs.AddMethodAliasBox(env, lenv.Mod, n.Singleton, n.New, n.Old)
	return n.commit(env, cs.NewSource(env, env.NilType()))
}
