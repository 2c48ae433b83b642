package core

import (
	"fmt"
	"log/slog"
)

var (
	_ BasicVertex     = (*IsAFilter)(nil)
	_ Listener        = (*IsAFilter)(nil)
	_ subclassChecker = (*IsAFilter)(nil)
	_ Destroyable     = (*IsAFilter)(nil)
	_ BasicVertex     = (*NilFilter)(nil)
	_ Listener        = (*NilFilter)(nil)
	_ Destroyable     = (*NilFilter)(nil)
)

// IsAFilter forwards the types of its input that are (or, negated, are not) an
// instance of the class the read names. It recomputes everything it forwards
// when the input, the read or the hierarchy below the class changes.
type IsAFilter struct {
	vertexCore
	input   BasicVertex
	read    *ConstRead
	negate  bool
	watched *ModuleEntity
}

func newIsAFilter(env *GlobalEnv, node Node, input BasicVertex, read *ConstRead, negate bool) *IsAFilter {
	f := &IsAFilter{vertexCore: newVertexCore(env, node), input: input, read: read, negate: negate}
	read.addFollower(f)
	input.AddEdge(env, f)
	f.recompute(env)
	return f
}

func (f *IsAFilter) AddEdge(env *GlobalEnv, next Listener)    { f.addEdge(env, f, next) }
func (f *IsAFilter) RemoveEdge(env *GlobalEnv, next Listener) { f.removeEdge(env, f, next) }
func (f *IsAFilter) Show() string                             { return showVertex(f, newShowState()) }
func (f *IsAFilter) LogValue() slog.Value                     { return slog.StringValue(f.String()) }

func (f *IsAFilter) String() string {
	op := "is_a?"
	if f.negate {
		op = "!is_a?"
	}
	return fmt.Sprintf("IsAFilter#%d<%s %v>", f.id, op, f.read)
}

func (f *IsAFilter) OnTypeAdded(env *GlobalEnv, _ Upstream, _ []Type)   { f.recompute(env) }
func (f *IsAFilter) OnTypeRemoved(env *GlobalEnv, _ Upstream, _ []Type) { f.recompute(env) }
func (f *IsAFilter) onStaticReadChanged(env *GlobalEnv, _ *ConstRead)   { f.recompute(env) }
func (f *IsAFilter) runSubclassCheck(env *GlobalEnv)                    { f.recompute(env) }

func (f *IsAFilter) watch(mod *ModuleEntity) {
	if f.watched == mod {
		return
	}
	if f.watched != nil {
		f.watched.removeSubclassCheck(f)
	}
	f.watched = mod
	if mod != nil {
		mod.addSubclassCheck(f)
	}
}

// recompute forwards the diff between what passes the test now and what
// passed it before. An unresolved class lets everything through.
func (f *IsAFilter) recompute(env *GlobalEnv) {
	mod := f.read.Module()
	f.watch(mod)
	want := newTypeSet()
	for _, t := range f.input.Types() {
		if mod == nil || env.isA(t, mod) != f.negate {
			want.add(t)
		}
	}
	var added, removed []Type
	for _, t := range f.Types() {
		if !want.contains(t) {
			removed = append(removed, t)
			f.types.remove(t)
		}
	}
	for _, t := range f.input.Types() {
		if want.contains(t) && !f.HasType(t) {
			added = append(added, t)
			f.types.add(t)
		}
	}
	if len(removed) > 0 {
		f.propagateRemoved(env, f, removed)
	}
	if len(added) > 0 {
		f.propagateAdded(env, f, added)
	}
}

func (f *IsAFilter) Destroy(env *GlobalEnv) {
	f.watch(nil)
	f.read.removeFollower(f)
	f.input.RemoveEdge(env, f)
}

// NilFilter forwards the nil types of its input, or everything but nil.
// With dropFalse the non-nil side also drops false, which narrows on truthiness.
type NilFilter struct {
	vertexCore
	input     BasicVertex
	wantNil   bool
	dropFalse bool
}

func newNilFilter(env *GlobalEnv, node Node, input BasicVertex, wantNil, dropFalse bool) *NilFilter {
	f := &NilFilter{vertexCore: newVertexCore(env, node), input: input, wantNil: wantNil, dropFalse: dropFalse}
	input.AddEdge(env, f)
	return f
}

func (f *NilFilter) AddEdge(env *GlobalEnv, next Listener)    { f.addEdge(env, f, next) }
func (f *NilFilter) RemoveEdge(env *GlobalEnv, next Listener) { f.removeEdge(env, f, next) }
func (f *NilFilter) Show() string                             { return showVertex(f, newShowState()) }
func (f *NilFilter) LogValue() slog.Value                     { return slog.StringValue(f.String()) }

func (f *NilFilter) String() string {
	return fmt.Sprintf("NilFilter#%d<nil=%t>", f.id, f.wantNil)
}

func (f *NilFilter) passes(env *GlobalEnv, t Type) bool {
	if f.wantNil {
		return env.isNil(t) || f.dropFalse && env.isFalse(t)
	}
	return !env.isNil(t) && !(f.dropFalse && env.isFalse(t))
}

func (f *NilFilter) OnTypeAdded(env *GlobalEnv, _ Upstream, types []Type) {
	var added []Type
	for _, t := range types {
		if !f.passes(env, t) {
			continue
		}
		if _, isNew := f.types.add(t); isNew {
			added = append(added, t)
		}
	}
	if len(added) > 0 {
		f.propagateAdded(env, f, added)
	}
}

func (f *NilFilter) OnTypeRemoved(env *GlobalEnv, _ Upstream, types []Type) {
	var removed []Type
	for _, t := range types {
		if f.types.remove(t) {
			removed = append(removed, t)
		}
	}
	if len(removed) > 0 {
		f.propagateRemoved(env, f, removed)
	}
}

func (f *NilFilter) Destroy(env *GlobalEnv) {
	f.input.RemoveEdge(env, f)
}

type isAFilterKey struct {
	input  BasicVertex
	read   *ConstRead
	negate bool
}

// AddIsAFilter owns an is_a? filter on input for this run
func (c *ChangeSet) AddIsAFilter(env *GlobalEnv, input BasicVertex, read *ConstRead, negate bool) *IsAFilter {
	return c.own(isAFilterKey{input, read, negate}, func() Destroyable {
		return newIsAFilter(env, c.node, input, read, negate)
	}).(*IsAFilter)
}

type nilFilterKey struct {
	input     BasicVertex
	wantNil   bool
	dropFalse bool
}

// AddNilFilter owns a nil filter on input for this run
func (c *ChangeSet) AddNilFilter(env *GlobalEnv, input BasicVertex, wantNil, dropFalse bool) *NilFilter {
	return c.own(nilFilterKey{input, wantNil, dropFalse}, func() Destroyable {
		return newNilFilter(env, c.node, input, wantNil, dropFalse)
	}).(*NilFilter)
}
