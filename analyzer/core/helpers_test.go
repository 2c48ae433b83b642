package core

import (
	"testing"

	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	name string
	line int
}

func (n *fakeNode) CodeRange() ir.Range {
	return ir.Range{PosStart: ir.Position{Line: n.line}, PosEnd: ir.Position{Line: n.line, Column: 1}}
}
func (n *fakeNode) SourceFile() string { return "test.rb" }
func (n *fakeNode) String() string     { return n.name }

var lastLine = 0

func newNode(name string) *fakeNode {
	lastLine++
	return &fakeNode{name: name, line: lastLine}
}

type fakeOrigin struct {
	*fakeNode
	class     bool
	super     *ConstRead
	selfTypes []*ConstRead
	params    []string
}

func (o *fakeOrigin) IsClass() bool               { return o.class }
func (o *fakeOrigin) SuperclassRead() *ConstRead  { return o.super }
func (o *fakeOrigin) SelfTypeReads() []*ConstRead { return o.selfTypes }
func (o *fakeOrigin) TypeParams() []string        { return o.params }

type fakeInclude struct {
	*fakeNode
	reads   []*ConstRead
	prepend bool
}

func (i *fakeInclude) IncludedReads() []*ConstRead { return i.reads }
func (i *fakeInclude) IsPrepend() bool             { return i.prepend }

type intNode struct {
	*fakeNode
	value int
}

func (n *intNode) IntValue() int { return n.value }

type symNode struct {
	*fakeNode
	value string
}

func (n *symNode) SymbolValue() string { return n.value }

// declareClass registers a class declaration at cpath; super is read from the toplevel
func declareClass(env *GlobalEnv, cpath []string, super string, params ...string) (*ModuleEntity, *fakeOrigin) {
	origin := &fakeOrigin{fakeNode: newNode("class"), class: true, params: params}
	if super != "" {
		origin.super = NewConstRead(env, origin, super, ToplevelCRef())
	}
	mod := env.ResolveCpath(cpath)
	mod.AddDecl(env, origin)
	return mod, origin
}

func declareModule(env *GlobalEnv, cpath []string) (*ModuleEntity, *fakeOrigin) {
	origin := &fakeOrigin{fakeNode: newNode("module")}
	mod := env.ResolveCpath(cpath)
	mod.AddDecl(env, origin)
	return mod, origin
}

func include(env *GlobalEnv, mod *ModuleEntity, name string) *fakeInclude {
	inc := &fakeInclude{fakeNode: newNode("include")}
	inc.reads = []*ConstRead{NewConstRead(env, inc, name, ToplevelCRef())}
	mod.AddInclude(env, inc)
	return inc
}

// newTestEnv is an environment with the core classes declared
func newTestEnv(t *testing.T) *GlobalEnv {
	t.Helper()
	env := NewGlobalEnv(DefaultOptions())
	declareClass(env, []string{"BasicObject"}, "")
	declareClass(env, nil, "BasicObject")
	declareClass(env, []string{"Module"}, "Object")
	declareClass(env, []string{"Class"}, "Module")
	for _, name := range []string{"NilClass", "TrueClass", "FalseClass", "Integer", "Float", "String", "Symbol", "Proc"} {
		declareClass(env, []string{name}, "Object")
	}
	declareClass(env, []string{"Array"}, "Object", "Elem")
	declareClass(env, []string{"Hash"}, "Object", "K", "V")
	settle(t, env)
	return env
}

func settle(t *testing.T, env *GlobalEnv) {
	t.Helper()
	env.RunAll()
	require.False(t, env.Pending())
}

// install runs f against a fresh node change set and installs what it produced
func install(env *GlobalEnv, f func(cs *ChangeSet)) *ChangeSet {
	cs := NewChangeSet(newNode("install"), nil)
	f(cs)
	cs.Reinstall(env)
	return cs
}

// uninstall retracts everything cs installed
func uninstall(env *GlobalEnv, cs *ChangeSet) {
	cs.Reinstall(env)
}

func instanceSig(env *GlobalEnv, name string, args ...SigType) *SigInstance {
	return &SigInstance{Read: NewConstRead(env, newNode(name), name, ToplevelCRef()), Args: args}
}

func declareMethod(env *GlobalEnv, mod *ModuleEntity, singleton bool, mid string, overloads ...*MethodType) *ChangeSet {
	return install(env, func(cs *ChangeSet) {
		cs.AddMethodDeclBox(env, mod, singleton, mid, overloads)
	})
}

// defineMethod defines `def mid(params...) = <param retFrom>` and returns its box
func defineMethod(env *GlobalEnv, mod *ModuleEntity, mid string, params int, retFrom int) (*MethodDefBox, *ChangeSet) {
	var box *MethodDefBox
	cs := install(env, func(cs *ChangeSet) {
		formals := &FormalArgs{}
		for range params {
			formals.Req = append(formals.Req, NewVertex(env, cs.Node()))
		}
		ret := NewVertex(env, cs.Node())
		if retFrom >= 0 {
			cs.AddEdge(formals.Req[retFrom], ret)
		}
		box = cs.AddMethodDefBox(env, mod, false, mid, formals, ret)
	})
	return box, cs
}

func call(env *GlobalEnv, recv BasicVertex, mid string, args ...BasicVertex) (*MethodCallBox, *ChangeSet) {
	var box *MethodCallBox
	cs := install(env, func(cs *ChangeSet) {
		box = cs.AddMethodCallBox(env, recv, mid, &ActualArgs{Positionals: args}, false)
	})
	return box, cs
}

func source(env *GlobalEnv, types ...Type) *Source {
	return NewSource(env, nil, types...)
}

func diagnostics(cs *ChangeSet) []diag.Diagnostic {
	var diags []diag.Diagnostic
	cs.EachDiagnostic(func(d diag.Diagnostic) {
		diags = append(diags, d)
	})
	return diags
}

func diagnosticMessages(cs *ChangeSet) []string {
	var msgs []string
	for _, d := range diagnostics(cs) {
		msgs = append(msgs, d.Error())
	}
	return msgs
}
