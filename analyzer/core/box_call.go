package core

import (
	"strconv"
	"strings"

	"github.com/cottand/typeflow/analyzer/diag"
)

// ActualArgs are the arguments at a call site
type ActualArgs struct {
	Positionals []BasicVertex
	// SplatFlags marks the positionals that were spread with *
	SplatFlags []bool
	// Nodes are the argument nodes, for builtins that look at literals. May be shorter than Positionals.
	Nodes []Node
	// Keywords holds records (or hashes) of the keyword arguments, nil when there are none
	Keywords BasicVertex
	// Block holds the procs passed as block, nil when there is none
	Block BasicVertex
}

// Vertices lists every vertex the arguments carry
func (a *ActualArgs) Vertices() []BasicVertex {
	vtxs := append([]BasicVertex{}, a.Positionals...)
	if a.Keywords != nil {
		vtxs = append(vtxs, a.Keywords)
	}
	if a.Block != nil {
		vtxs = append(vtxs, a.Block)
	}
	return vtxs
}

func (a *ActualArgs) hasSplat() bool {
	for _, splat := range a.SplatFlags {
		if splat {
			return true
		}
	}
	return false
}

func (a *ActualArgs) isSplat(i int) bool {
	return i < len(a.SplatFlags) && a.SplatFlags[i]
}

// key identifies the arguments by the identity of their vertices
func (a *ActualArgs) key() string {
	if a == nil {
		return ""
	}
	var sb strings.Builder
	for i, vtx := range a.Positionals {
		if a.isSplat(i) {
			sb.WriteByte('*')
		}
		sb.WriteString(strconv.Itoa(vtx.ID()))
		sb.WriteByte(',')
	}
	if a.Keywords != nil {
		sb.WriteString("k" + strconv.Itoa(a.Keywords.ID()))
	}
	if a.Block != nil {
		sb.WriteString("&" + strconv.Itoa(a.Block.ID()))
	}
	return sb.String()
}

// restArgs are the vertices that end up in a rest parameter spanning
// positionals [start, end): splatted arrays contribute their elements
func (a *ActualArgs) restArgs(env *GlobalEnv, changes *ChangeSet, start, end int) []BasicVertex {
	var vtxs []BasicVertex
	for i := start; i < end; i++ {
		if a.isSplat(i) {
			vtxs = append(vtxs, changes.AddSplatBox(env, a.Positionals[i]).Ret())
		} else {
			vtxs = append(vtxs, a.Positionals[i])
		}
	}
	return vtxs
}

// MethodCallBox resolves a method call for every type of its receiver and wires
// the arguments and the return of whatever it resolved to
type MethodCallBox struct {
	boxBase
	recv       BasicVertex
	mid        string
	args       *ActualArgs
	ret        *Vertex
	subclasses bool
	// resolved holds the method entities that provided the last run's result
	resolved []*MethodEntity
}

func newMethodCallBox(env *GlobalEnv, node Node, recv BasicVertex, mid string, args *ActualArgs, subclasses bool) *MethodCallBox {
	if args == nil {
		args = &ActualArgs{}
	}
	b := &MethodCallBox{recv: recv, mid: mid, args: args, subclasses: subclasses}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	recv.AddEdge(env, b)
	for _, vtx := range args.Vertices() {
		vtx.AddEdge(env, b)
	}
	env.AddRun(b)
	return b
}

func (b *MethodCallBox) Ret() BasicVertex  { return b.ret }
func (b *MethodCallBox) Mid() string       { return b.mid }
func (b *MethodCallBox) Recv() BasicVertex { return b.recv }

// Resolved lists the method entities the last run resolved the call to
func (b *MethodCallBox) Resolved() []*MethodEntity { return b.resolved }

func (b *MethodCallBox) unsubscribe(env *GlobalEnv) {
	b.recv.RemoveEdge(env, b)
	for _, vtx := range b.args.Vertices() {
		vtx.RemoveEdge(env, b)
	}
}

func (b *MethodCallBox) run0(env *GlobalEnv, changes *ChangeSet) {
	b.resolved = nil
	undefined := 0
	for _, t := range b.recv.Types() {
		if b.resolve(env, changes, t) {
			continue
		}
		undefined++
		if undefined <= env.Options.DiagnosticLimit {
			changes.AddDiagnostic(diag.NewUndefinedMethod{
				Range:    midRange(b.node),
				Receiver: t.Base(env).String(),
				Method:   b.mid,
			})
		}
	}
	if undefined > env.Options.DiagnosticLimit {
		changes.AddDiagnostic(diag.NewOmitted{Range: midRange(b.node), Count: undefined - env.Options.DiagnosticLimit})
	}
	if b.subclasses {
		b.dispatchSubclasses(env, changes)
	}
}

// resolve wires the call for one receiver type and reports whether a method was found
func (b *MethodCallBox) resolve(env *GlobalEnv, changes *ChangeSet, t Type) bool {
	if _, ok := t.(*Bot); ok {
		return true
	}
	base := t.Base(env)
	if base == nil {
		return true
	}
	mod, singleton, ok := moduleOf(base)
	if !ok {
		return true
	}
	return b.lookup(env, changes, t, mod, singleton, b.mid, 0)
}

func (b *MethodCallBox) lookup(env *GlobalEnv, changes *ChangeSet, t Type, mod *ModuleEntity, singleton bool, mid string, aliasDepth int) bool {
	found := false
	env.eachAncestor(mod, singleton, func(m *ModuleEntity, s bool) bool {
		me := m.Method(s, mid)
		changes.AddDependedMethodEntity(me)
		if !me.Exist() {
			return true
		}
		found = b.callEntity(env, changes, t, me, aliasDepth)
		return !found
	})
	return found
}

// callEntity applies the first applicable of: builtin, declarations, definitions, aliases
func (b *MethodCallBox) callEntity(env *GlobalEnv, changes *ChangeSet, t Type, me *MethodEntity, aliasDepth int) bool {
	if me.builtin != nil && me.builtin(env, changes, b.node, t, b.args, b.ret) {
		b.resolved = append(b.resolved, me)
		return true
	}
	if me.decls.Len() > 0 {
		b.resolved = append(b.resolved, me)
		subst := newSubst(env, changes, t)
		matched := false
		for decl := range me.decls.Items() {
			if resolveOverloads(env, changes, b.node, decl.overloads, subst, b.args, b.ret) {
				matched = true
			}
		}
		if !matched {
			changes.AddDiagnostic(diag.NewFailedOverloads{Range: midRange(b.node), Method: me.mid})
		}
		return true
	}
	if me.defs.Len() > 0 {
		accepted := false
		for def := range me.defs.Items() {
			if def.Call(env, changes, b.node, b.args, b.ret) {
				accepted = true
			}
		}
		if accepted {
			b.resolved = append(b.resolved, me)
		}
		return true
	}
	for alias := range me.aliases.Items() {
		if aliasDepth >= env.Options.AliasDepthLimit {
			return false
		}
		b.resolved = append(b.resolved, me)
		return b.lookup(env, changes, t, me.owner, me.singleton, alias.oldMid, aliasDepth+1)
	}
	return false
}

// dispatchSubclasses also calls the redefinitions of the method in every class
// below the receiver's, registering interest in the set of subclasses
func (b *MethodCallBox) dispatchSubclasses(env *GlobalEnv, changes *ChangeSet) {
	for _, t := range b.recv.Types() {
		base := t.Base(env)
		if base == nil {
			continue
		}
		mod, singleton, ok := moduleOf(base)
		if !ok {
			continue
		}
		changes.AddDependedSuperclass(mod)
		visited := map[*ModuleEntity]bool{mod: true}
		var walk func(m *ModuleEntity)
		walk = func(m *ModuleEntity) {
			for sub := range m.subclasses.Items() {
				if visited[sub] {
					continue
				}
				visited[sub] = true
				changes.AddDependedSuperclass(sub)
				me := sub.Method(singleton, b.mid)
				changes.AddDependedMethodEntity(me)
				accepted := false
				for def := range me.defs.Items() {
					if def.Call(env, changes, b.node, b.args, b.ret) {
						accepted = true
					}
				}
				if accepted {
					b.resolved = append(b.resolved, me)
				}
				walk(sub)
			}
		}
		walk(mod)
	}
}

type callBoxKey struct {
	node       Node
	recv       BasicVertex
	mid        string
	args       string
	subclasses bool
}

// AddMethodCallBox owns a call of mid on recv for this run
func (c *ChangeSet) AddMethodCallBox(env *GlobalEnv, recv BasicVertex, mid string, args *ActualArgs, subclasses bool) *MethodCallBox {
	key := callBoxKey{node: c.node, recv: recv, mid: mid, args: args.key(), subclasses: subclasses}
	return c.own(key, func() Destroyable {
		return newMethodCallBox(env, c.node, recv, mid, args, subclasses)
	}).(*MethodCallBox)
}

type splatBoxKey struct{ input BasicVertex }

func (c *ChangeSet) AddSplatBox(env *GlobalEnv, input BasicVertex) *SplatBox {
	return c.own(splatBoxKey{input}, func() Destroyable {
		return newSplatBox(env, c.node, input)
	}).(*SplatBox)
}

type hashSplatBoxKey struct {
	input BasicVertex
	key   string
}

func (c *ChangeSet) AddHashSplatBox(env *GlobalEnv, input BasicVertex, key string) *HashSplatBox {
	return c.own(hashSplatBoxKey{input, key}, func() Destroyable {
		return newHashSplatBox(env, c.node, input, key)
	}).(*HashSplatBox)
}

type constReadBoxKey struct{ read *ConstRead }

func (c *ChangeSet) AddConstReadBox(env *GlobalEnv, read *ConstRead) *ConstReadBox {
	return c.own(constReadBoxKey{read}, func() Destroyable {
		return newConstReadBox(env, c.node, read)
	}).(*ConstReadBox)
}

type ivarReadBoxKey struct {
	mod       *ModuleEntity
	singleton bool
	name      string
}

func (c *ChangeSet) AddIVarReadBox(env *GlobalEnv, mod *ModuleEntity, singleton bool, name string) *IVarReadBox {
	return c.own(ivarReadBoxKey{mod, singleton, name}, func() Destroyable {
		return newIVarReadBox(env, c.node, mod, singleton, name)
	}).(*IVarReadBox)
}

type cvarReadBoxKey struct {
	mod  *ModuleEntity
	name string
}

func (c *ChangeSet) AddCVarReadBox(env *GlobalEnv, mod *ModuleEntity, name string) *CVarReadBox {
	return c.own(cvarReadBoxKey{mod, name}, func() Destroyable {
		return newCVarReadBox(env, c.node, mod, name)
	}).(*CVarReadBox)
}

type gvarReadBoxKey struct{ name string }

func (c *ChangeSet) AddGVarReadBox(env *GlobalEnv, name string) *GVarReadBox {
	return c.own(gvarReadBoxKey{name}, func() Destroyable {
		return newGVarReadBox(env, c.node, name)
	}).(*GVarReadBox)
}

type masgnBoxKey struct {
	rhs BasicVertex
	lhs string
}

func (c *ChangeSet) AddMAsgnBox(env *GlobalEnv, rhs BasicVertex, lhs []*Vertex, rest *Vertex) *MAsgnBox {
	key := masgnBoxKey{rhs, vertexIDs(lhs)}
	if rest != nil {
		key.lhs += "*" + strconv.Itoa(rest.ID())
	}
	return c.own(key, func() Destroyable {
		return newMAsgnBox(env, c.node, rhs, lhs, rest)
	}).(*MAsgnBox)
}

type superclassCheckBoxKey struct {
	mod    *ModuleEntity
	origin ModuleOrigin
}

func (c *ChangeSet) AddSuperclassCheckBox(env *GlobalEnv, mod *ModuleEntity, origin ModuleOrigin) *SuperclassCheckBox {
	return c.own(superclassCheckBoxKey{mod, origin}, func() Destroyable {
		return newSuperclassCheckBox(env, c.node, mod, origin)
	}).(*SuperclassCheckBox)
}
