// Package ast is the node tree the engine consumes. Nodes are produced by the
// loader; installing a node wires its part of the dataflow graph into a
// core.GlobalEnv, uninstalling it retracts exactly that part.
//
// The lifecycle of a tree is:
//
//	Define:    register what exists statically (modules, constants, includes, static reads)
//	Install:   create boxes and edges, returning the vertex of the node's value
//	Uninstall: retract everything Install created
//	Undefine:  retract everything Define registered
package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/cottand/typeflow/internal/log"
)

var logger = log.DefaultLogger.With("section", "ast")

// Node is a node of a source or signature tree
type Node interface {
	core.Node
	// Describe is what to call this node in messages
	Describe() string
	// Children are the direct sub-nodes, in source order
	Children() []Node
	// Install wires the node into env and returns the vertex of its value
	Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex
	// Ret is the vertex the last Install returned, nil when not installed
	Ret() core.BasicVertex
	// Changes is the change set of the last Install, nil when not installed
	Changes() *core.ChangeSet
	base() *Base
}

// definer is implemented by nodes that register something at Define time
type definer interface {
	define(env *core.GlobalEnv, scope *Scope)
	undefine(env *core.GlobalEnv)
}

// scoper is implemented by nodes that open a new scope for some of their children
type scoper interface {
	scopeOf(env *core.GlobalEnv, scope *Scope, child Node) *Scope
}

// Base is embedded in every node
type Base struct {
	ir.Range
	File string

	changes *core.ChangeSet
	ret     core.BasicVertex
}

func (b *Base) CodeRange() ir.Range      { return b.Range }
func (b *Base) SourceFile() string       { return b.File }
func (b *Base) Ret() core.BasicVertex    { return b.ret }
func (b *Base) Changes() *core.ChangeSet { return b.changes }
func (b *Base) Location() ir.Location    { return ir.Location{File: b.File, Range: b.Range} }
func (b *Base) base() *Base              { return b }

// begin starts the install of the node self. Installing again reuses the change
// set, so only the difference to the previous install is applied.
func (b *Base) begin(self core.Node) *core.ChangeSet {
	if b.changes == nil {
		b.changes = core.NewChangeSet(self, nil)
	}
	return b.changes
}

// commit installs what the node recorded and remembers its value
func (b *Base) commit(env *core.GlobalEnv, ret core.BasicVertex) core.BasicVertex {
	b.changes.Reinstall(env)
	b.ret = ret
	return ret
}

// Scope is the static context a node is defined in
type Scope struct {
	CRef *core.CRef
	// Singleton is set inside `def self.x` bodies
	Singleton bool
}

// ToplevelScope is the scope of a file's top level
func ToplevelScope() *Scope {
	return &Scope{CRef: core.ToplevelCRef()}
}

func (s *Scope) Module(env *core.GlobalEnv) *core.ModuleEntity {
	return env.ResolveCpath(s.CRef.Cpath)
}

// Define registers n and its descendants
func Define(env *core.GlobalEnv, scope *Scope, n Node) {
	sc, scoped := n.(scoper)
	for _, child := range n.Children() {
		childScope := scope
		if scoped {
			childScope = sc.scopeOf(env, scope, child)
		}
		Define(env, childScope, child)
	}
	if d, ok := n.(definer); ok {
		d.define(env, scope)
	}
}

// Undefine retracts what Define registered, parents before children
func Undefine(env *core.GlobalEnv, n Node) {
	if d, ok := n.(definer); ok {
		d.undefine(env)
	}
	for _, child := range n.Children() {
		Undefine(env, child)
	}
}

// Uninstall retracts what Install created, children before parents
func Uninstall(env *core.GlobalEnv, n Node) {
	for _, child := range n.Children() {
		Uninstall(env, child)
	}
	b := n.base()
	if b.changes == nil {
		return
	}
	b.changes.Reinstall(env)
	b.changes = nil
	b.ret = nil
}

// Walk visits n and its descendants depth first; returning false skips the children
func Walk(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, f)
	}
}

// NodeAt is the innermost node of root whose range contains pos
func NodeAt(root Node, pos ir.Position) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if !n.CodeRange().Contains(pos) {
			return false
		}
		found = n
		return true
	})
	return found
}

// nodes collects the non-nil nodes among ns
func nodes(ns ...Node) []Node {
	out := make([]Node, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func installAll(env *core.GlobalEnv, lenv *LocalEnv, ns []Node) []core.BasicVertex {
	vtxs := make([]core.BasicVertex, len(ns))
	for i, n := range ns {
		vtxs[i] = n.Install(env, lenv)
	}
	return vtxs
}
