package ast

import (
	"maps"
	"slices"

	"github.com/cottand/typeflow/analyzer/core"
)

// methodFrame is what `return` and `yield` refer to inside a method body
type methodFrame struct {
	ret   *core.Vertex
	block *core.Vertex
}

// LocalEnv is the flow-sensitive environment of local variables during install.
// A write binds the name to the vertex of the written value, so later reads see
// only what was assigned last on the current path.
type LocalEnv struct {
	CRef      *core.CRef
	Mod       *core.ModuleEntity
	Singleton bool

	frame *methodFrame
	vars  map[string]core.BasicVertex
	// outer is the environment a block body was created in
	outer *LocalEnv
	// narrowed maps the variables a branch condition narrowed to their vertex before narrowing
	narrowed map[string]narrowing
}

type narrowing struct {
	from, to core.BasicVertex
}

// NewToplevelEnv is the environment of a file's top level, where self is an Object
func NewToplevelEnv(env *core.GlobalEnv) *LocalEnv {
	return &LocalEnv{CRef: core.ToplevelCRef(), Mod: env.Root(), vars: map[string]core.BasicVertex{}}
}

// SelfType is the type of self in this environment
func (l *LocalEnv) SelfType(env *core.GlobalEnv) core.Type {
	if l.Singleton {
		return env.SingletonOf(l.Mod)
	}
	return env.InstanceOf(l.Mod)
}

func (l *LocalEnv) Get(name string) (core.BasicVertex, bool) {
	for e := l; e != nil; e = e.outer {
		if vtx, ok := e.vars[name]; ok {
			return vtx, true
		}
	}
	return nil, false
}

// Set binds name on the current path. Inside a block body the binding stays
// local to the block, even when it shadows a variable of the enclosing method.
func (l *LocalEnv) Set(name string, vtx core.BasicVertex) {
	l.vars[name] = vtx
}

// Names lists the variables visible in l, sorted
func (l *LocalEnv) Names() []string {
	seen := map[string]bool{}
	for e := l; e != nil; e = e.outer {
		for name := range e.vars {
			seen[name] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// body is a fresh environment for a class or method body
func (l *LocalEnv) body(cref *core.CRef, mod *core.ModuleEntity, singleton bool, frame *methodFrame) *LocalEnv {
	return &LocalEnv{CRef: cref, Mod: mod, Singleton: singleton, frame: frame, vars: map[string]core.BasicVertex{}}
}

// block is the environment of a block body, which sees the variables of l
func (l *LocalEnv) block() *LocalEnv {
	return &LocalEnv{CRef: l.CRef, Mod: l.Mod, Singleton: l.Singleton, frame: l.frame, vars: map[string]core.BasicVertex{}, outer: l}
}

// fork copies l for one branch of a conditional
func (l *LocalEnv) fork() *LocalEnv {
	forked := *l
	forked.vars = maps.Clone(l.vars)
	forked.narrowed = nil
	return &forked
}

type mergeKey struct {
	name string
}

// merge rebinds in l every variable that the branches left bound to different
// vertices to the union of the branches. A variable bound in one branch only is
// nil on the other path.
func (l *LocalEnv) merge(env *core.GlobalEnv, cs *core.ChangeSet, branches ...*LocalEnv) {
	names := map[string]bool{}
	for _, b := range branches {
		for name := range b.vars {
			names[name] = true
		}
	}
	for _, name := range slices.Sorted(maps.Keys(names)) {
		var vtxs []core.BasicVertex
		same := true
		for _, b := range branches {
			vtx, ok := b.unnarrowed(name)
			if !ok {
				vtx = cs.NewSource(env, env.NilType())
			}
			if len(vtxs) > 0 && vtxs[0] != vtx {
				same = false
			}
			vtxs = append(vtxs, vtx)
		}
		if same {
			l.vars[name] = vtxs[0]
			continue
		}
		union := cs.NewVertex(env, mergeKey{name})
		for _, vtx := range vtxs {
			cs.AddEdge(vtx, union)
		}
		l.vars[name] = union
	}
}

// narrow rebinds the variables n constrains to their filtered vertices
func (l *LocalEnv) narrow(env *core.GlobalEnv, cs *core.ChangeSet, n core.Narrowing) {
	for _, name := range slices.Sorted(maps.Keys(n)) {
		vtx, ok := l.Get(name)
		if !ok {
			continue
		}
		narrowed := n[name].Narrow(env, cs, vtx)
		l.vars[name] = narrowed
		if l.narrowed == nil {
			l.narrowed = map[string]narrowing{}
		}
		l.narrowed[name] = narrowing{from: vtx, to: narrowed}
	}
}

// unnarrowed is the binding of name, undoing a narrowing the branch never wrote over
func (l *LocalEnv) unnarrowed(name string) (core.BasicVertex, bool) {
	vtx, ok := l.Get(name)
	if nw, was := l.narrowed[name]; ok && was && nw.to == vtx {
		return nw.from, true
	}
	return vtx, ok
}
