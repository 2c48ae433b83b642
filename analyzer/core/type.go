package core

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"strings"
)

// Type is an immutable description of one possible runtime value.
//
// Two types are the same when they are structurally identical (see sameType).
// Hash buckets them. Types that carry vertices (type arguments, tuple elements,
// record fields) compare and hash the identity of those vertices, not their
// current contents.
type Type interface {
	fmt.Stringer
	Hash() uint64
	// Base is the type used for method lookup: an *Instance or a *Singleton.
	// It is nil for types without methods (Bot, Var).
	Base(env *GlobalEnv) Type
	show(s *showState) string
}

var (
	_ Type = (*Instance)(nil)
	_ Type = (*Singleton)(nil)
	_ Type = (*Tuple)(nil)
	_ Type = (*Record)(nil)
	_ Type = (*Proc)(nil)
	_ Type = (*Symbol)(nil)
	_ Type = (*Bot)(nil)
	_ Type = (*Var)(nil)

	_ slog.LogValuer = typeLogValuer{}
)

const (
	tagInstance byte = iota + 1
	tagSingleton
	tagTuple
	tagRecord
	tagProc
	tagSymbol
	tagBot
	tagVar
)

type typeHasher struct {
	buf []byte
}

func newTypeHasher(tag byte) *typeHasher {
	return &typeHasher{buf: []byte{tag}}
}

func (h *typeHasher) str(s string) *typeHasher {
	h.buf = binary.AppendUvarint(h.buf, uint64(len(s)))
	h.buf = append(h.buf, s...)
	return h
}

func (h *typeHasher) int(i int) *typeHasher {
	h.buf = binary.AppendVarint(h.buf, int64(i))
	return h
}

func (h *typeHasher) vertex(v BasicVertex) *typeHasher {
	if v == nil {
		return h.int(-1)
	}
	return h.int(v.ID())
}

func (h *typeHasher) vertices(vs []BasicVertex) *typeHasher {
	h.int(len(vs))
	for _, v := range vs {
		h.vertex(v)
	}
	return h
}

func (h *typeHasher) sum() uint64 {
	f := fnv.New64a()
	_, _ = f.Write(h.buf)
	return f.Sum64()
}

// Instance is an instance of a class, with one vertex per type parameter of the class
type Instance struct {
	Mod  *ModuleEntity
	Args []BasicVertex
	hash uint64
}

func NewInstance(mod *ModuleEntity, args ...BasicVertex) *Instance {
	h := newTypeHasher(tagInstance).str(mod.PathString())
	for _, arg := range args {
		h.vertex(arg)
	}
	return &Instance{Mod: mod, Args: args, hash: h.sum()}
}

func (t *Instance) Hash() uint64             { return t.hash }
func (t *Instance) Base(env *GlobalEnv) Type { return t }
func (t *Instance) String() string           { return t.show(newShowState()) }
func (t *Instance) show(s *showState) string {
	switch t.Mod.PathString() {
	case "NilClass":
		return "nil"
	case "TrueClass":
		return "true"
	case "FalseClass":
		return "false"
	}
	name := t.Mod.ShowPath()
	params := t.Mod.TypeParams()
	if len(params) == 0 && len(t.Args) == 0 {
		return name
	}
	args := make([]string, max(len(params), len(t.Args)))
	for i := range args {
		if i < len(t.Args) && t.Args[i] != nil {
			args[i] = showVertex(t.Args[i], s)
		} else {
			args[i] = "untyped"
		}
	}
	return name + "[" + strings.Join(args, ", ") + "]"
}

// Singleton is the class or module object itself
type Singleton struct {
	Mod  *ModuleEntity
	hash uint64
}

func NewSingleton(mod *ModuleEntity) *Singleton {
	return &Singleton{Mod: mod, hash: newTypeHasher(tagSingleton).str(mod.PathString()).sum()}
}

func (t *Singleton) Hash() uint64             { return t.hash }
func (t *Singleton) Base(env *GlobalEnv) Type { return t }
func (t *Singleton) String() string           { return t.show(newShowState()) }
func (t *Singleton) show(*showState) string   { return "singleton(" + t.Mod.ShowPath() + ")" }

// InstanceType is the type of instances of the singleton's module
func (t *Singleton) InstanceType(env *GlobalEnv) *Instance {
	return env.InstanceOf(t.Mod)
}

// Tuple is an array literal of known length. Base is the Array instance whose element
// vertex is the union of Elems.
type Tuple struct {
	Elems    []BasicVertex
	BaseType *Instance
	hash     uint64
}

func NewTuple(elems []BasicVertex, base *Instance) *Tuple {
	h := newTypeHasher(tagTuple)
	for _, elem := range elems {
		h.vertex(elem)
	}
	for _, arg := range base.Args {
		h.vertex(arg)
	}
	return &Tuple{Elems: elems, BaseType: base, hash: h.sum()}
}

func (t *Tuple) Hash() uint64             { return t.hash }
func (t *Tuple) Base(env *GlobalEnv) Type { return t.BaseType }
func (t *Tuple) String() string           { return t.show(newShowState()) }
func (t *Tuple) show(s *showState) string {
	elems := make([]string, len(t.Elems))
	for i, elem := range t.Elems {
		elems[i] = showVertex(elem, s)
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

type RecordField struct {
	Name string
	Vtx  BasicVertex
}

// Record is a hash literal whose keys are all symbols
type Record struct {
	Fields   []RecordField
	BaseType *Instance
	hash     uint64
}

func NewRecord(fields []RecordField, base *Instance) *Record {
	h := newTypeHasher(tagRecord)
	for _, field := range fields {
		h.str(field.Name).vertex(field.Vtx)
	}
	for _, arg := range base.Args {
		h.vertex(arg)
	}
	return &Record{Fields: fields, BaseType: base, hash: h.sum()}
}

func (t *Record) Hash() uint64             { return t.hash }
func (t *Record) Base(env *GlobalEnv) Type { return t.BaseType }
func (t *Record) String() string           { return t.show(newShowState()) }
func (t *Record) show(s *showState) string {
	if len(t.Fields) == 0 {
		return "{}"
	}
	fields := make([]string, len(t.Fields))
	for i, field := range t.Fields {
		fields[i] = field.Name + ": " + showVertex(field.Vtx, s)
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

// Field returns the vertex of the field called name
func (t *Record) Field(name string) (BasicVertex, bool) {
	for _, field := range t.Fields {
		if field.Name == name {
			return field.Vtx, true
		}
	}
	return nil, false
}

// Block is what a Proc carries: something that accepts arguments and produces a return
type Block interface {
	BlockID() int
	// AcceptArgs wires args into the block's parameters and the block's result into ret
	AcceptArgs(env *GlobalEnv, changes *ChangeSet, args []BasicVertex, ret BasicVertex)
	showBlock(s *showState) string
}

type Proc struct {
	Block Block
	hash  uint64
}

func NewProc(block Block) *Proc {
	return &Proc{Block: block, hash: newTypeHasher(tagProc).int(block.BlockID()).sum()}
}

func (t *Proc) Hash() uint64             { return t.hash }
func (t *Proc) Base(env *GlobalEnv) Type { return env.InstanceOf(env.ModProc) }
func (t *Proc) String() string           { return t.show(newShowState()) }
func (t *Proc) show(s *showState) string { return "^" + t.Block.showBlock(s) }

type Symbol struct {
	Name string
	hash uint64
}

func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name, hash: newTypeHasher(tagSymbol).str(name).sum()}
}

func (t *Symbol) Hash() uint64             { return t.hash }
func (t *Symbol) Base(env *GlobalEnv) Type { return env.InstanceOf(env.ModSymbol) }
func (t *Symbol) String() string           { return t.show(nil) }
func (t *Symbol) show(*showState) string   { return ":" + t.Name }

// Bot is the type of expressions that never produce a value
type Bot struct{}

var bot = &Bot{}
var botHash = newTypeHasher(tagBot).sum()

func BotType() *Bot { return bot }

func (t *Bot) Hash() uint64           { return botHash }
func (t *Bot) Base(*GlobalEnv) Type   { return nil }
func (t *Bot) String() string         { return "bot" }
func (t *Bot) show(*showState) string { return "bot" }

// Var is a type parameter that could not be substituted
type Var struct {
	Name string
	Vtx  BasicVertex
	hash uint64
}

func NewVar(name string, vtx BasicVertex) *Var {
	return &Var{Name: name, Vtx: vtx, hash: newTypeHasher(tagVar).str(name).vertex(vtx).sum()}
}

func (t *Var) Hash() uint64           { return t.hash }
func (t *Var) Base(*GlobalEnv) Type   { return nil }
func (t *Var) String() string         { return t.Name }
func (t *Var) show(*showState) string { return t.Name }

func sameVertices(a, b []BasicVertex) bool {
	return slices.EqualFunc(a, b, func(x, y BasicVertex) bool { return x == y })
}

// sameType reports whether a and b are structurally identical. Modules,
// vertices and blocks inside them compare by identity.
func sameType(a, b Type) bool {
	if a == b {
		return true
	}
	if a.Hash() != b.Hash() {
		return false
	}
	switch a := a.(type) {
	case *Instance:
		b, ok := b.(*Instance)
		return ok && a.Mod == b.Mod && sameVertices(a.Args, b.Args)
	case *Singleton:
		b, ok := b.(*Singleton)
		return ok && a.Mod == b.Mod
	case *Tuple:
		b, ok := b.(*Tuple)
		return ok && sameVertices(a.Elems, b.Elems) && sameType(a.BaseType, b.BaseType)
	case *Record:
		b, ok := b.(*Record)
		return ok && slices.Equal(a.Fields, b.Fields) && sameType(a.BaseType, b.BaseType)
	case *Proc:
		b, ok := b.(*Proc)
		return ok && a.Block.BlockID() == b.Block.BlockID()
	case *Symbol:
		b, ok := b.(*Symbol)
		return ok && a.Name == b.Name
	case *Bot:
		_, ok := b.(*Bot)
		return ok
	case *Var:
		b, ok := b.(*Var)
		return ok && a.Name == b.Name && a.Vtx == b.Vtx
	}
	return false
}

func sameTypes(a, b []Type) bool {
	return slices.EqualFunc(a, b, sameType)
}

// typeKey is a string that is equal for two types exactly when sameType holds
func typeKey(t Type) string {
	var h *typeHasher
	switch t := t.(type) {
	case *Instance:
		h = newTypeHasher(tagInstance).int(t.Mod.id).vertices(t.Args)
	case *Singleton:
		h = newTypeHasher(tagSingleton).int(t.Mod.id)
	case *Tuple:
		h = newTypeHasher(tagTuple).vertices(t.Elems).str(typeKey(t.BaseType))
	case *Record:
		h = newTypeHasher(tagRecord).int(len(t.Fields))
		for _, field := range t.Fields {
			h.str(field.Name).vertex(field.Vtx)
		}
		h.str(typeKey(t.BaseType))
	case *Proc:
		h = newTypeHasher(tagProc).int(t.Block.BlockID())
	case *Symbol:
		h = newTypeHasher(tagSymbol).str(t.Name)
	case *Bot:
		h = newTypeHasher(tagBot)
	case *Var:
		h = newTypeHasher(tagVar).str(t.Name).vertex(t.Vtx)
	default:
		invariant("no key for type %T", t)
	}
	return string(h.buf)
}

// moduleOf returns the module of an Instance or Singleton base type
func moduleOf(base Type) (mod *ModuleEntity, singleton bool, ok bool) {
	switch base := base.(type) {
	case *Instance:
		return base.Mod, false, true
	case *Singleton:
		return base.Mod, true, true
	}
	return nil, false, false
}

type typeLogValuer struct{ Type }

func (l typeLogValuer) LogValue() slog.Value { return slog.StringValue(l.Type.String()) }

func slogType(t Type) slog.LogValuer { return typeLogValuer{t} }
