package core

import (
	"fmt"
	"log/slog"

	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/cottand/typeflow/internal/log"
)

var boxLogger = log.DefaultLogger.With("section", "box")

// Box is one re-evaluatable unit of analysis attached to a program construct.
//
// The set of boxes is closed: the unexported methods keep other packages from
// adding kinds. Every box owns a ChangeSet holding what its last run produced.
type Box interface {
	Listener
	Destroyable
	staticReadFollower
	subclassChecker
	ID() int
	Node() Node
	Run(env *GlobalEnv)
	Destroyed() bool
	Changes() *ChangeSet
	// Ret is the vertex the box writes its result into, nil for boxes without one
	Ret() BasicVertex

	run0(env *GlobalEnv, changes *ChangeSet)
	unsubscribe(env *GlobalEnv)
}

var (
	_ Box = (*MethodCallBox)(nil)
	_ Box = (*ConstReadBox)(nil)
	_ Box = (*IVarReadBox)(nil)
	_ Box = (*CVarReadBox)(nil)
	_ Box = (*GVarReadBox)(nil)
	_ Box = (*MethodDefBox)(nil)
	_ Box = (*MethodDeclBox)(nil)
	_ Box = (*MethodAliasBox)(nil)
	_ Box = (*MAsgnBox)(nil)
	_ Box = (*SplatBox)(nil)
	_ Box = (*HashSplatBox)(nil)
	_ Box = (*SuperclassCheckBox)(nil)
	_ Box = (*CheckReturnBox)(nil)
	_ Box = (*TypeDeclBox)(nil)
)

type boxBase struct {
	id        int
	node      Node
	changes   *ChangeSet
	destroyed bool
	self      Box
}

func (b *boxBase) init(env *GlobalEnv, node Node, self Box) {
	b.id = env.newID()
	b.node = node
	b.self = self
	b.changes = NewChangeSet(node, self)
}

func (b *boxBase) ID() int                { return b.id }
func (b *boxBase) Node() Node             { return b.node }
func (b *boxBase) Destroyed() bool        { return b.destroyed }
func (b *boxBase) Changes() *ChangeSet    { return b.changes }
func (b *boxBase) Ret() BasicVertex       { return nil }
func (b *boxBase) unsubscribe(*GlobalEnv) {}

func (b *boxBase) Run(env *GlobalEnv) {
	if b.destroyed {
		return
	}
	boxLogger.Debug("running box", "box", b.self)
	b.self.run0(env, b.changes)
	b.changes.Reinstall(env)
}

// Destroy retracts everything the box installed and stops listening to its inputs
func (b *boxBase) Destroy(env *GlobalEnv) {
	if b.destroyed {
		invariant("box %d destroyed twice", b.id)
	}
	b.destroyed = true
	b.self.unsubscribe(env)
	b.changes.Reinstall(env)
}

func (b *boxBase) OnTypeAdded(env *GlobalEnv, _ Upstream, _ []Type)   { env.AddRun(b.self) }
func (b *boxBase) OnTypeRemoved(env *GlobalEnv, _ Upstream, _ []Type) { env.AddRun(b.self) }
func (b *boxBase) onStaticReadChanged(env *GlobalEnv, _ *ConstRead)   { env.AddRun(b.self) }
func (b *boxBase) runSubclassCheck(env *GlobalEnv)                    { env.AddRun(b.self) }

func (b *boxBase) String() string {
	return fmt.Sprintf("%T#%d@%v", b.self, b.id, codeRange(b.node))
}

func (b *boxBase) LogValue() slog.Value {
	return slog.StringValue(b.String())
}

// ConstReadBox writes the value of a constant into Ret
type ConstReadBox struct {
	boxBase
	read *ConstRead
	ret  *Vertex
}

func newConstReadBox(env *GlobalEnv, node Node, read *ConstRead) *ConstReadBox {
	b := &ConstReadBox{read: read}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	read.addFollower(b)
	env.AddRun(b)
	return b
}

func (b *ConstReadBox) Ret() BasicVertex { return b.ret }

func (b *ConstReadBox) run0(env *GlobalEnv, changes *ChangeSet) {
	switch {
	case b.read.Module() != nil:
		changes.AddEdge(changes.NewSource(env, env.SingletonOf(b.read.Module())), b.ret)
	case b.read.Value() != nil:
		changes.AddEdge(b.read.Value().Vertex(), b.ret)
	case b.read.Resolved():
		changes.AddDiagnostic(diag.NewUninitializedConstant{Range: codeRange(b.node), Name: b.read.Name()})
	}
}

func (b *ConstReadBox) unsubscribe(*GlobalEnv) {
	b.read.removeFollower(b)
}

// IVarReadBox looks an instance variable up through the ancestors of the module it is read in
type IVarReadBox struct {
	boxBase
	mod       *ModuleEntity
	singleton bool
	name      string
	ret       *Vertex
}

func newIVarReadBox(env *GlobalEnv, node Node, mod *ModuleEntity, singleton bool, name string) *IVarReadBox {
	b := &IVarReadBox{mod: mod, singleton: singleton, name: name}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	env.AddRun(b)
	return b
}

func (b *IVarReadBox) Ret() BasicVertex { return b.ret }

func (b *IVarReadBox) run0(env *GlobalEnv, changes *ChangeSet) {
	for mod := range env.superclassChain(b.mod) {
		ve := mod.IVar(env, b.singleton, b.name)
		changes.AddDependedValueEntity(ve)
		if ve.Exist() {
			changes.AddEdge(ve.Vertex(), b.ret)
			return
		}
	}
}

// CVarReadBox looks a class variable up through the ancestors of the module it is read in
type CVarReadBox struct {
	boxBase
	mod  *ModuleEntity
	name string
	ret  *Vertex
}

func newCVarReadBox(env *GlobalEnv, node Node, mod *ModuleEntity, name string) *CVarReadBox {
	b := &CVarReadBox{mod: mod, name: name}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	env.AddRun(b)
	return b
}

func (b *CVarReadBox) Ret() BasicVertex { return b.ret }

func (b *CVarReadBox) run0(env *GlobalEnv, changes *ChangeSet) {
	found := false
	env.eachAncestor(b.mod, false, func(mod *ModuleEntity, _ bool) bool {
		ve := mod.CVar(env, b.name)
		changes.AddDependedValueEntity(ve)
		if ve.Exist() {
			changes.AddEdge(ve.Vertex(), b.ret)
			found = true
		}
		return !found
	})
}

type GVarReadBox struct {
	boxBase
	name string
	ret  *Vertex
}

func newGVarReadBox(env *GlobalEnv, node Node, name string) *GVarReadBox {
	b := &GVarReadBox{name: name}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	env.AddRun(b)
	return b
}

func (b *GVarReadBox) Ret() BasicVertex { return b.ret }

func (b *GVarReadBox) run0(env *GlobalEnv, changes *ChangeSet) {
	ve := env.GVar(b.name)
	changes.AddDependedValueEntity(ve)
	changes.AddEdge(ve.Vertex(), b.ret)
}

// MAsgnBox spreads the right hand side of a multiple assignment over its targets
type MAsgnBox struct {
	boxBase
	rhs  BasicVertex
	lhs  []*Vertex
	rest *Vertex
}

func newMAsgnBox(env *GlobalEnv, node Node, rhs BasicVertex, lhs []*Vertex, rest *Vertex) *MAsgnBox {
	b := &MAsgnBox{rhs: rhs, lhs: lhs, rest: rest}
	b.init(env, node, b)
	rhs.AddEdge(env, b)
	env.AddRun(b)
	return b
}

func (b *MAsgnBox) run0(env *GlobalEnv, changes *ChangeSet) {
	for _, t := range b.rhs.Types() {
		switch t := t.(type) {
		case *Tuple:
			for i, lhs := range b.lhs {
				if i < len(t.Elems) {
					changes.AddEdge(t.Elems[i], lhs)
				} else {
					changes.AddEdge(changes.NewSource(env, env.NilType()), lhs)
				}
			}
			if b.rest != nil {
				for _, elem := range t.Elems[min(len(b.lhs), len(t.Elems)):] {
					changes.AddEdge(elem, b.rest)
				}
			}
		case *Instance:
			if t.Mod == env.ModArray && len(t.Args) == 1 {
				for _, lhs := range b.lhs {
					changes.AddEdge(t.Args[0], lhs)
				}
				if b.rest != nil {
					changes.AddEdge(t.Args[0], b.rest)
				}
				continue
			}
			if len(b.lhs) > 0 {
				changes.AddEdge(changes.NewSource(env, t), b.lhs[0])
			}
		default:
			if len(b.lhs) > 0 {
				changes.AddEdge(changes.NewSource(env, t), b.lhs[0])
			}
		}
	}
}

func (b *MAsgnBox) unsubscribe(env *GlobalEnv) {
	b.rhs.RemoveEdge(env, b)
}

// SplatBox writes the elements of the arrays flowing into its input into Ret
type SplatBox struct {
	boxBase
	input BasicVertex
	ret   *Vertex
}

func newSplatBox(env *GlobalEnv, node Node, input BasicVertex) *SplatBox {
	b := &SplatBox{input: input}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	input.AddEdge(env, b)
	env.AddRun(b)
	return b
}

func (b *SplatBox) Ret() BasicVertex { return b.ret }

func (b *SplatBox) run0(env *GlobalEnv, changes *ChangeSet) {
	for _, t := range b.input.Types() {
		switch t := t.(type) {
		case *Tuple:
			for _, elem := range t.Elems {
				changes.AddEdge(elem, b.ret)
			}
		case *Instance:
			if t.Mod == env.ModArray && len(t.Args) == 1 {
				changes.AddEdge(t.Args[0], b.ret)
				continue
			}
			changes.AddEdge(changes.NewSource(env, t), b.ret)
		default:
			changes.AddEdge(changes.NewSource(env, t), b.ret)
		}
	}
}

func (b *SplatBox) unsubscribe(env *GlobalEnv) {
	b.input.RemoveEdge(env, b)
}

// HashSplatBox writes the values of the hashes flowing into its input into Ret.
// With a key, only the values of that record field are written.
type HashSplatBox struct {
	boxBase
	input BasicVertex
	key   string
	ret   *Vertex
}

func newHashSplatBox(env *GlobalEnv, node Node, input BasicVertex, key string) *HashSplatBox {
	b := &HashSplatBox{input: input, key: key}
	b.init(env, node, b)
	b.ret = NewVertex(env, node)
	input.AddEdge(env, b)
	env.AddRun(b)
	return b
}

func (b *HashSplatBox) Ret() BasicVertex { return b.ret }

func (b *HashSplatBox) run0(env *GlobalEnv, changes *ChangeSet) {
	for _, t := range b.input.Types() {
		switch t := t.(type) {
		case *Record:
			for _, field := range t.Fields {
				if b.key == "" || field.Name == b.key {
					changes.AddEdge(field.Vtx, b.ret)
				}
			}
		case *Instance:
			if t.Mod == env.ModHash && len(t.Args) == 2 {
				changes.AddEdge(t.Args[1], b.ret)
			}
		}
	}
}

func (b *HashSplatBox) unsubscribe(env *GlobalEnv) {
	b.input.RemoveEdge(env, b)
}

// SuperclassCheckBox reports a class whose superclass could not be resolved
type SuperclassCheckBox struct {
	boxBase
	mod    *ModuleEntity
	origin ModuleOrigin
}

func newSuperclassCheckBox(env *GlobalEnv, node Node, mod *ModuleEntity, origin ModuleOrigin) *SuperclassCheckBox {
	b := &SuperclassCheckBox{mod: mod, origin: origin}
	b.init(env, node, b)
	env.AddRun(b)
	return b
}

func (b *SuperclassCheckBox) run0(env *GlobalEnv, changes *ChangeSet) {
	changes.AddDependedSuperclass(b.mod)
	read := b.origin.SuperclassRead()
	if read == nil || !b.mod.SuperclassFailed() {
		return
	}
	changes.AddDiagnostic(diag.NewUnknownSuperclass{Range: codeRange(read.Node()), Class: b.mod.PathString()})
}
