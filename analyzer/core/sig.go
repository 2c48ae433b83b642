package core

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cottand/typeflow/util"
)

// SigType is a type written in a signature declaration. It is turned into
// vertices against a Subst, and matched against the types that reach a call.
type SigType interface {
	String() string
	// covariantVertex holds the values the signature type produces
	covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex
	// contravariantVertex accepts the values the signature type consumes. It is a
	// type parameter's vertex for a type parameter and a sink for anything else.
	contravariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) *Vertex
	// typecheck reports whether some type in vtx fits the signature type
	typecheck(m *matcher, vtx BasicVertex) bool
	matchType(m *matcher, t Type) bool
}

var (
	_ SigType = (*SigInstance)(nil)
	_ SigType = (*SigSingleton)(nil)
	_ SigType = (*SigInterface)(nil)
	_ SigType = (*SigTuple)(nil)
	_ SigType = (*SigRecord)(nil)
	_ SigType = (*SigUnion)(nil)
	_ SigType = (*SigOptional)(nil)
	_ SigType = (*SigVar)(nil)
	_ SigType = (*SigSelf)(nil)
	_ SigType = (*SigInstanceType)(nil)
	_ SigType = (*SigNil)(nil)
	_ SigType = (*SigBool)(nil)
	_ SigType = (*SigUntyped)(nil)
	_ SigType = (*SigVoid)(nil)
	_ SigType = (*SigBot)(nil)
	_ SigType = (*SigLiteral)(nil)
	_ SigType = (*SigProc)(nil)
)

// Subst maps the type parameters in scope to vertices. Inferable parameters
// belong to a generic method and are bound by the arguments of the call.
type Subst struct {
	self      Type
	vars      map[string]BasicVertex
	inferable map[string]*Vertex
}

// newSubst binds the type parameters of the receiver's class to its type arguments
func newSubst(env *GlobalEnv, changes *ChangeSet, recv Type) *Subst {
	s := &Subst{self: recv, vars: map[string]BasicVertex{}, inferable: map[string]*Vertex{}}
	if recv == nil {
		return s
	}
	if inst, ok := recv.Base(env).(*Instance); ok {
		for i, param := range inst.Mod.TypeParams() {
			if i < len(inst.Args) && inst.Args[i] != nil {
				s.vars[param] = inst.Args[i]
			} else {
				s.vars[param] = changes.NewVertex(env, sigVertexKey{role: "param:" + param, subst: inst.Mod.PathString()})
			}
		}
	}
	return s
}

// withTypeParams returns a copy of s where the type parameters of mt are fresh
// vertices, memoized per method type and call
func (s *Subst) withTypeParams(env *GlobalEnv, changes *ChangeSet, mt *MethodType, a *ActualArgs) *Subst {
	if len(mt.TypeParams) == 0 {
		return s
	}
	out := &Subst{self: s.self, vars: maps.Clone(s.vars), inferable: maps.Clone(s.inferable)}
	for _, param := range mt.TypeParams {
		vtx := changes.NewVertex(env, typeParamKey{mt: mt, param: param, subst: s.key(), args: a.key()})
		out.vars[param] = vtx
		out.inferable[param] = vtx
	}
	return out
}

// key identifies s by the identity of its vertices
func (s *Subst) key() string {
	var sb strings.Builder
	if s.self != nil {
		sb.WriteString(strconv.Quote(typeKey(s.self)))
	}
	for _, name := range slices.Sorted(maps.Keys(s.vars)) {
		sb.WriteString(";" + name + "=" + strconv.Itoa(s.vars[name].ID()))
	}
	return sb.String()
}

func (s *Subst) selfModule(env *GlobalEnv) (*ModuleEntity, bool, bool) {
	if s.self == nil {
		return nil, false, false
	}
	base := s.self.Base(env)
	if base == nil {
		return nil, false, false
	}
	return moduleOf(base)
}

type typeParamKey struct {
	mt    *MethodType
	param string
	subst string
	args  string
}

type sigVertexKey struct {
	sig   SigType
	subst string
	role  string
}

// matcher checks actual arguments against one overload. Edges that bind type
// parameters are collected and only installed when the whole overload matches.
type matcher struct {
	env     *GlobalEnv
	changes *ChangeSet
	subst   *Subst
	pending []edge
}

func newMatcher(env *GlobalEnv, changes *ChangeSet, subst *Subst) *matcher {
	return &matcher{env: env, changes: changes, subst: subst}
}

func (m *matcher) bind(src BasicVertex, dst *Vertex) {
	m.pending = append(m.pending, edge{src, dst})
}

func (m *matcher) commit() {
	for _, e := range m.pending {
		m.changes.AddEdge(e.src, e.dst)
	}
	m.pending = nil
}

// typecheckAny is the existential match shared by most signature types. An
// empty vertex matches anything.
func typecheckAny(m *matcher, sig SigType, vtx BasicVertex) bool {
	if vtx.Empty() {
		return true
	}
	for _, t := range vtx.Types() {
		if sig.matchType(m, t) {
			return true
		}
	}
	return false
}

func sinkVertex(env *GlobalEnv, changes *ChangeSet, sig SigType) *Vertex {
	return changes.NewVertex(env, sigVertexKey{sig: sig, role: "sink"})
}

func untypedVertex(env *GlobalEnv, changes *ChangeSet, sig SigType) *Vertex {
	return changes.NewVertex(env, sigVertexKey{sig: sig, role: "untyped"})
}

func unionVertex(env *GlobalEnv, changes *ChangeSet, sig SigType, subst *Subst, members []SigType) *Vertex {
	vtx := changes.NewVertex(env, sigVertexKey{sig: sig, subst: subst.key(), role: "union"})
	for _, member := range members {
		changes.AddEdge(member.covariantVertex(env, changes, subst), vtx)
	}
	return vtx
}

// SigInstance is an instance of a named class, like `Array[Integer]`
type SigInstance struct {
	Read *ConstRead
	Args []SigType
}

func (sig *SigInstance) String() string {
	if len(sig.Args) == 0 {
		return sig.Read.String()
	}
	return sig.Read.String() + "[" + joinSigs(sig.Args, ", ") + "]"
}

func (sig *SigInstance) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	changes.AddDependedStaticRead(sig.Read)
	mod := sig.Read.Module()
	if mod == nil {
		return untypedVertex(env, changes, sig)
	}
	args := make([]BasicVertex, len(sig.Args))
	for i, arg := range sig.Args {
		args[i] = arg.covariantVertex(env, changes, subst)
	}
	return changes.NewSource(env, NewInstance(mod, args...))
}

func (sig *SigInstance) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigInstance) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigInstance) matchType(m *matcher, t Type) bool {
	m.changes.AddDependedStaticRead(sig.Read)
	mod := sig.Read.Module()
	if mod == nil {
		return true
	}
	m.changes.AddDependedSuperclass(mod)
	if !m.env.isA(t, mod) {
		return false
	}
	inst, ok := t.Base(m.env).(*Instance)
	if !ok || inst.Mod != mod {
		return true
	}
	for i, arg := range sig.Args {
		if i < len(inst.Args) && inst.Args[i] != nil && !arg.typecheck(m, inst.Args[i]) {
			return false
		}
	}
	return true
}

// SigSingleton is the class object itself, like `singleton(String)`
type SigSingleton struct {
	Read *ConstRead
}

func (sig *SigSingleton) String() string { return "singleton(" + sig.Read.String() + ")" }

func (sig *SigSingleton) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	changes.AddDependedStaticRead(sig.Read)
	if mod := sig.Read.Module(); mod != nil {
		return changes.NewSource(env, env.SingletonOf(mod))
	}
	return untypedVertex(env, changes, sig)
}

func (sig *SigSingleton) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigSingleton) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigSingleton) matchType(m *matcher, t Type) bool {
	m.changes.AddDependedStaticRead(sig.Read)
	mod := sig.Read.Module()
	if mod == nil {
		return true
	}
	s, ok := t.(*Singleton)
	if !ok {
		return false
	}
	m.changes.AddDependedSuperclass(s.Mod)
	return m.env.IsSubclassOf(s.Mod, mod)
}

// SigInterface is a named interface: any type providing all of its methods matches
type SigInterface struct {
	Read *ConstRead
	Args []SigType
}

func (sig *SigInterface) String() string {
	if len(sig.Args) == 0 {
		return sig.Read.String()
	}
	return sig.Read.String() + "[" + joinSigs(sig.Args, ", ") + "]"
}

func (sig *SigInterface) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return untypedVertex(env, changes, sig)
}

func (sig *SigInterface) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigInterface) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigInterface) matchType(m *matcher, t Type) bool {
	m.changes.AddDependedStaticRead(sig.Read)
	iface := sig.Read.Module()
	if iface == nil {
		return true
	}
	base := t.Base(m.env)
	if base == nil {
		return true
	}
	mod, singleton, ok := moduleOf(base)
	if !ok {
		return true
	}
	for _, me := range iface.Methods(false) {
		if !m.env.respondsTo(m.changes, mod, singleton, me.Mid()) {
			return false
		}
	}
	return true
}

// SigTuple is an array of known length, like `[Integer, String]`
type SigTuple struct {
	Elems []SigType
}

func (sig *SigTuple) String() string { return "[" + joinSigs(sig.Elems, ", ") + "]" }

func (sig *SigTuple) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	elems := make([]BasicVertex, len(sig.Elems))
	for i, elem := range sig.Elems {
		elems[i] = elem.covariantVertex(env, changes, subst)
	}
	base := env.ArrayOf(unionVertex(env, changes, sig, subst, sig.Elems))
	return changes.NewSource(env, NewTuple(elems, base))
}

func (sig *SigTuple) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigTuple) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigTuple) matchType(m *matcher, t Type) bool {
	switch t := t.(type) {
	case *Tuple:
		if len(t.Elems) != len(sig.Elems) {
			return false
		}
		for i, elem := range sig.Elems {
			if !elem.typecheck(m, t.Elems[i]) {
				return false
			}
		}
		return true
	case *Instance:
		if t.Mod != m.env.ModArray {
			return false
		}
		if len(t.Args) == 0 || t.Args[0] == nil {
			return true
		}
		for _, elem := range sig.Elems {
			if !elem.typecheck(m, t.Args[0]) {
				return false
			}
		}
		return true
	}
	return false
}

type SigField struct {
	Name     string
	Type     SigType
	Optional bool
}

// SigRecord is a hash with known symbol keys, like `{ name: String, ?age: Integer }`
type SigRecord struct {
	Fields []SigField
}

func (sig *SigRecord) String() string {
	fields := make([]string, len(sig.Fields))
	for i, field := range sig.Fields {
		prefix := ""
		if field.Optional {
			prefix = "?"
		}
		fields[i] = prefix + field.Name + ": " + field.Type.String()
	}
	return "{ " + strings.Join(fields, ", ") + " }"
}

func (sig *SigRecord) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	fields := make([]RecordField, len(sig.Fields))
	types := make([]SigType, len(sig.Fields))
	for i, field := range sig.Fields {
		fields[i] = RecordField{Name: field.Name, Vtx: field.Type.covariantVertex(env, changes, subst)}
		types[i] = field.Type
	}
	keys := changes.NewSource(env, env.InstanceOf(env.ModSymbol))
	base := env.HashOf(keys, unionVertex(env, changes, sig, subst, types))
	return changes.NewSource(env, NewRecord(fields, base))
}

func (sig *SigRecord) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigRecord) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigRecord) matchType(m *matcher, t Type) bool {
	switch t := t.(type) {
	case *Record:
		for _, field := range sig.Fields {
			vtx, ok := t.Field(field.Name)
			if !ok {
				if field.Optional {
					continue
				}
				return false
			}
			if !field.Type.typecheck(m, vtx) {
				return false
			}
		}
		for _, field := range t.Fields {
			if !slices.ContainsFunc(sig.Fields, func(f SigField) bool { return f.Name == field.Name }) {
				return false
			}
		}
		return true
	case *Instance:
		return t.Mod == m.env.ModHash
	}
	return false
}

// SigUnion is `A | B`
type SigUnion struct {
	Types []SigType
}

func (sig *SigUnion) String() string { return joinSigs(sig.Types, " | ") }

func (sig *SigUnion) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	return unionVertex(env, changes, sig, subst, sig.Types)
}

func (sig *SigUnion) contravariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) *Vertex {
	for _, member := range sig.Types {
		if v, ok := member.(*SigVar); ok {
			return v.contravariantVertex(env, changes, subst)
		}
	}
	return sinkVertex(env, changes, sig)
}

func (sig *SigUnion) typecheck(m *matcher, vtx BasicVertex) bool {
	for _, member := range sig.Types {
		if member.typecheck(m, vtx) {
			return true
		}
	}
	return false
}

func (sig *SigUnion) matchType(m *matcher, t Type) bool {
	for _, member := range sig.Types {
		if member.matchType(m, t) {
			return true
		}
	}
	return false
}

// SigOptional is `T?`, T or nil
type SigOptional struct {
	Type SigType
}

func (sig *SigOptional) String() string { return sig.Type.String() + "?" }

func (sig *SigOptional) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	return unionVertex(env, changes, sig, subst, []SigType{sig.Type, &SigNil{}})
}

func (sig *SigOptional) contravariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) *Vertex {
	return sig.Type.contravariantVertex(env, changes, subst)
}

func (sig *SigOptional) typecheck(m *matcher, vtx BasicVertex) bool {
	if vtx.Empty() {
		return true
	}
	var rest []Type
	for _, t := range vtx.Types() {
		if !m.env.isNil(t) {
			rest = append(rest, t)
		}
	}
	if len(rest) == 0 {
		return true
	}
	return sig.Type.typecheck(m, m.changes.NewSource(m.env, rest...))
}

func (sig *SigOptional) matchType(m *matcher, t Type) bool {
	return m.env.isNil(t) || sig.Type.matchType(m, t)
}

// SigVar is a type parameter, of the receiver's class or of the method
type SigVar struct {
	Name string
}

func (sig *SigVar) String() string { return sig.Name }

func (sig *SigVar) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	if vtx, ok := subst.vars[sig.Name]; ok {
		return vtx
	}
	return untypedVertex(env, changes, sig)
}

func (sig *SigVar) contravariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) *Vertex {
	if vtx, ok := subst.inferable[sig.Name]; ok {
		return vtx
	}
	return sinkVertex(env, changes, sig)
}

func (sig *SigVar) typecheck(m *matcher, vtx BasicVertex) bool {
	if target, ok := m.subst.inferable[sig.Name]; ok {
		m.bind(vtx, target)
	}
	return true
}

func (sig *SigVar) matchType(m *matcher, t Type) bool {
	if target, ok := m.subst.inferable[sig.Name]; ok {
		m.bind(m.changes.NewSource(m.env, t), target)
	}
	return true
}

// SigSelf is `self`, the receiver's type
type SigSelf struct{}

func (sig *SigSelf) String() string { return "self" }

func (sig *SigSelf) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	if subst.self == nil {
		return untypedVertex(env, changes, sig)
	}
	return changes.NewSource(env, subst.self)
}

func (sig *SigSelf) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigSelf) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigSelf) matchType(m *matcher, t Type) bool {
	mod, singleton, ok := m.subst.selfModule(m.env)
	if !ok {
		return true
	}
	if singleton {
		s, ok := t.(*Singleton)
		return ok && m.env.IsSubclassOf(s.Mod, mod)
	}
	return m.env.isA(t, mod)
}

// SigInstanceType is `instance`, an instance of the receiver's class
type SigInstanceType struct{}

func (sig *SigInstanceType) String() string { return "instance" }

func (sig *SigInstanceType) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	mod, _, ok := subst.selfModule(env)
	if !ok {
		return untypedVertex(env, changes, sig)
	}
	return changes.NewSource(env, env.InstanceOf(mod))
}

func (sig *SigInstanceType) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigInstanceType) typecheck(m *matcher, vtx BasicVertex) bool {
	return typecheckAny(m, sig, vtx)
}

func (sig *SigInstanceType) matchType(m *matcher, t Type) bool {
	mod, _, ok := m.subst.selfModule(m.env)
	return !ok || m.env.isA(t, mod)
}

type SigNil struct{}

func (sig *SigNil) String() string { return "nil" }

func (sig *SigNil) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return changes.NewSource(env, env.NilType())
}

func (sig *SigNil) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigNil) typecheck(m *matcher, vtx BasicVertex) bool { return typecheckAny(m, sig, vtx) }
func (sig *SigNil) matchType(m *matcher, t Type) bool          { return m.env.isNil(t) }

type SigBool struct{}

func (sig *SigBool) String() string { return "bool" }

func (sig *SigBool) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return changes.NewSource(env, env.TrueType(), env.FalseType())
}

func (sig *SigBool) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigBool) typecheck(m *matcher, vtx BasicVertex) bool { return typecheckAny(m, sig, vtx) }

func (sig *SigBool) matchType(m *matcher, t Type) bool {
	inst, ok := t.(*Instance)
	return ok && (inst.Mod == m.env.ModTrueClass || inst.Mod == m.env.ModFalseClass)
}

// SigUntyped is `untyped`: it matches anything and produces nothing
type SigUntyped struct{}

func (sig *SigUntyped) String() string { return "untyped" }

func (sig *SigUntyped) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return untypedVertex(env, changes, sig)
}

func (sig *SigUntyped) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigUntyped) typecheck(*matcher, BasicVertex) bool { return true }
func (sig *SigUntyped) matchType(*matcher, Type) bool        { return true }

// SigVoid is `void`: it matches anything and produces an Object
type SigVoid struct{}

func (sig *SigVoid) String() string { return "void" }

func (sig *SigVoid) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return changes.NewSource(env, env.InstanceOf(env.ModObject))
}

func (sig *SigVoid) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigVoid) typecheck(*matcher, BasicVertex) bool { return true }
func (sig *SigVoid) matchType(*matcher, Type) bool        { return true }

// SigBot is `bot`, the type of what never returns
type SigBot struct{}

func (sig *SigBot) String() string { return "bot" }

func (sig *SigBot) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return changes.NewSource(env, BotType())
}

func (sig *SigBot) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigBot) typecheck(m *matcher, vtx BasicVertex) bool { return typecheckAny(m, sig, vtx) }

func (sig *SigBot) matchType(_ *matcher, t Type) bool {
	_, ok := t.(*Bot)
	return ok
}

type LiteralKind int

const (
	LiteralSymbol LiteralKind = iota
	LiteralInteger
	LiteralString
	LiteralTrue
	LiteralFalse
)

// SigLiteral is a literal type, like `:name` or `1`
type SigLiteral struct {
	Kind  LiteralKind
	Value string
}

func (sig *SigLiteral) String() string {
	switch sig.Kind {
	case LiteralSymbol:
		return ":" + sig.Value
	case LiteralString:
		return strconv.Quote(sig.Value)
	}
	return sig.Value
}

func (sig *SigLiteral) literalType(env *GlobalEnv) Type {
	switch sig.Kind {
	case LiteralSymbol:
		return NewSymbol(sig.Value)
	case LiteralInteger:
		return env.InstanceOf(env.ModInteger)
	case LiteralString:
		return env.InstanceOf(env.ModString)
	case LiteralTrue:
		return env.TrueType()
	}
	return env.FalseType()
}

func (sig *SigLiteral) covariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) BasicVertex {
	return changes.NewSource(env, sig.literalType(env))
}

func (sig *SigLiteral) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigLiteral) typecheck(m *matcher, vtx BasicVertex) bool { return typecheckAny(m, sig, vtx) }

func (sig *SigLiteral) matchType(m *matcher, t Type) bool {
	if sig.Kind == LiteralSymbol {
		if s, ok := t.(*Symbol); ok {
			return s.Name == sig.Value
		}
		inst, ok := t.(*Instance)
		return ok && inst.Mod == m.env.ModSymbol
	}
	return sameType(t, sig.literalType(m.env))
}

// SigProc is a proc or block type, like `^(Integer) -> String`
type SigProc struct {
	Params   []SigType
	Ret      SigType
	Optional bool
}

func (sig *SigProc) String() string {
	s := "(" + joinSigs(sig.Params, ", ") + ") -> " + sig.Ret.String()
	if sig.Optional {
		return "?{ " + s + " }"
	}
	return "^" + s
}

func (sig *SigProc) covariantVertex(env *GlobalEnv, changes *ChangeSet, subst *Subst) BasicVertex {
	key := sigVertexKey{sig: sig, subst: subst.key(), role: "block"}
	blk := changes.own(key, func() Destroyable {
		return &sigBlock{id: env.newID(), sig: sig, subst: subst}
	}).(*sigBlock)
	return changes.NewSource(env, NewProc(blk))
}

func (sig *SigProc) contravariantVertex(env *GlobalEnv, changes *ChangeSet, _ *Subst) *Vertex {
	return sinkVertex(env, changes, sig)
}

func (sig *SigProc) typecheck(m *matcher, vtx BasicVertex) bool { return typecheckAny(m, sig, vtx) }

func (sig *SigProc) matchType(m *matcher, t Type) bool {
	proc, ok := t.(*Proc)
	return ok && sig.matchBlock(m, proc.Block)
}

// matchBlock checks what a block returns against the declared return. The
// parameters of a block literal take whatever the declaration passes, so only
// declared procs are checked for arity.
func (sig *SigProc) matchBlock(m *matcher, blk Block) bool {
	switch blk := blk.(type) {
	case *SourceBlock:
		m.changes.AddDependedVertex(blk.Ret)
		return sig.Ret.typecheck(m, blk.Ret)
	case *sigBlock:
		if len(blk.sig.Params) != len(sig.Params) {
			return false
		}
		return sig.Ret.typecheck(m, blk.sig.Ret.covariantVertex(m.env, m.changes, blk.subst))
	}
	return true
}

// sigBlock is the block behind a proc that comes from a declaration: calling it
// produces its declared return
type sigBlock struct {
	id    int
	sig   *SigProc
	subst *Subst
}

func (blk *sigBlock) BlockID() int       { return blk.id }
func (blk *sigBlock) Destroy(*GlobalEnv) {}

func (blk *sigBlock) AcceptArgs(env *GlobalEnv, changes *ChangeSet, _ []BasicVertex, ret BasicVertex) {
	if l, ok := ret.(Listener); ok {
		changes.AddEdge(blk.sig.Ret.covariantVertex(env, changes, blk.subst), l)
	}
}

func (blk *sigBlock) showBlock(*showState) string {
	return "(" + joinSigs(blk.sig.Params, ", ") + ") -> " + blk.sig.Ret.String()
}

type SigKeyword struct {
	Name string
	Type SigType
}

// MethodType is one overload of a method declaration
type MethodType struct {
	Node         Node
	TypeParams   []string
	Req          []SigType
	Opt          []SigType
	Rest         SigType
	Post         []SigType
	ReqKeywords  []SigKeyword
	OptKeywords  []SigKeyword
	RestKeywords SigType
	Block        *SigProc
	Ret          SigType
}

func (mt *MethodType) String() string {
	var params []string
	for _, sig := range mt.Req {
		params = append(params, sig.String())
	}
	for _, sig := range mt.Opt {
		params = append(params, "?"+sig.String())
	}
	if mt.Rest != nil {
		params = append(params, "*"+mt.Rest.String())
	}
	for _, sig := range mt.Post {
		params = append(params, sig.String())
	}
	for _, kw := range mt.ReqKeywords {
		params = append(params, kw.Name+": "+kw.Type.String())
	}
	for _, kw := range mt.OptKeywords {
		params = append(params, "?"+kw.Name+": "+kw.Type.String())
	}
	if mt.RestKeywords != nil {
		params = append(params, "**"+mt.RestKeywords.String())
	}
	var sb strings.Builder
	if len(mt.TypeParams) > 0 {
		sb.WriteString("[" + strings.Join(mt.TypeParams, ", ") + "] ")
	}
	sb.WriteString("(" + strings.Join(params, ", ") + ")")
	if mt.Block != nil {
		block := "{ (" + joinSigs(mt.Block.Params, ", ") + ") -> " + mt.Block.Ret.String() + " }"
		if mt.Block.Optional {
			block = "?" + block
		}
		sb.WriteString(" " + block)
	}
	sb.WriteString(" -> " + mt.Ret.String())
	return sb.String()
}

func (mt *MethodType) keyword(name string) (SigType, bool) {
	for _, kw := range mt.ReqKeywords {
		if kw.Name == name {
			return kw.Type, true
		}
	}
	for _, kw := range mt.OptKeywords {
		if kw.Name == name {
			return kw.Type, true
		}
	}
	return nil, false
}

func (mt *MethodType) acceptsKeywords() bool {
	return len(mt.ReqKeywords) > 0 || len(mt.OptKeywords) > 0 || mt.RestKeywords != nil
}

// matchArgs checks arity and types of the positional and keyword arguments
func (mt *MethodType) matchArgs(m *matcher, a *ActualArgs) bool {
	if a.Keywords != nil && !mt.acceptsKeywords() {
		a = keywordsAsPositional(a)
	}
	nReq, nOpt, nPost := len(mt.Req), len(mt.Opt), len(mt.Post)
	n := len(a.Positionals)

	if a.hasSplat() {
		firstSplat, lastSplat, splats := -1, -1, 0
		for i := range a.Positionals {
			if a.isSplat(i) {
				if firstSplat < 0 {
					firstSplat = i
				}
				lastSplat = i
				splats++
			}
		}
		// every splat may be empty
		if mt.Rest == nil && n-splats > nReq+nOpt+nPost {
			return false
		}
		formals := append(append([]SigType{}, mt.Req...), mt.Opt...)
		for i := 0; i < firstSplat && i < len(formals); i++ {
			if !formals[i].typecheck(m, a.Positionals[i]) {
				return false
			}
		}
		for i, sig := range mt.Post {
			j := n - nPost + i
			if j > lastSplat && !sig.typecheck(m, a.Positionals[j]) {
				return false
			}
		}
	} else {
		lower := nReq + nPost
		if n < lower || mt.Rest == nil && n > lower+nOpt {
			return false
		}
		for i, sig := range mt.Req {
			if !sig.typecheck(m, a.Positionals[i]) {
				return false
			}
		}
		optCount := min(nOpt, n-lower)
		for i := 0; i < optCount; i++ {
			if !mt.Opt[i].typecheck(m, a.Positionals[nReq+i]) {
				return false
			}
		}
		for i := nReq + optCount; i < n-nPost; i++ {
			if !mt.Rest.typecheck(m, a.Positionals[i]) {
				return false
			}
		}
		for i, sig := range mt.Post {
			if !sig.typecheck(m, a.Positionals[n-nPost+i]) {
				return false
			}
		}
	}
	return mt.matchKeywords(m, a)
}

func (mt *MethodType) matchKeywords(m *matcher, a *ActualArgs) bool {
	if a.Keywords == nil {
		return len(mt.ReqKeywords) == 0
	}
	if a.Keywords.Empty() {
		return true
	}
	for _, t := range a.Keywords.Types() {
		if mt.matchKeywordType(m, t) {
			return true
		}
	}
	return false
}

func (mt *MethodType) matchKeywordType(m *matcher, t Type) bool {
	rec, ok := t.(*Record)
	if !ok {
		inst, ok := t.(*Instance)
		return ok && inst.Mod == m.env.ModHash
	}
	for _, kw := range mt.ReqKeywords {
		if _, ok := rec.Field(kw.Name); !ok {
			return false
		}
	}
	for _, field := range rec.Fields {
		sig, ok := mt.keyword(field.Name)
		if !ok {
			sig = mt.RestKeywords
		}
		if sig == nil || !sig.typecheck(m, field.Vtx) {
			return false
		}
	}
	return true
}

// matchBlock checks the passed block against the declared one. Values passed
// as block that are not procs are not checked.
func (mt *MethodType) matchBlock(m *matcher, a *ActualArgs) bool {
	if a.Block == nil {
		return mt.Block == nil || mt.Block.Optional
	}
	if mt.Block == nil {
		return false
	}
	if a.Block.Empty() {
		return true
	}
	for _, t := range a.Block.Types() {
		proc, ok := t.(*Proc)
		if !ok || mt.Block.matchBlock(m, proc.Block) {
			return true
		}
	}
	return false
}

// resolveOverloads wires every overload that matches the arguments and reports
// whether there was one. The returns of all matching overloads are unioned.
func resolveOverloads(env *GlobalEnv, changes *ChangeSet, node Node, overloads []*MethodType, subst *Subst, a *ActualArgs, ret BasicVertex) bool {
	retListener, _ := ret.(Listener)
	matched := false
	for _, mt := range overloads {
		s := subst.withTypeParams(env, changes, mt, a)
		m := newMatcher(env, changes, s)
		if !mt.matchArgs(m, a) || !mt.matchBlock(m, a) {
			continue
		}
		m.commit()
		matched = true
		if mt.Block != nil && a.Block != nil {
			params := make([]BasicVertex, len(mt.Block.Params))
			for i, param := range mt.Block.Params {
				params[i] = param.covariantVertex(env, changes, s)
			}
			blockRet := mt.Block.Ret.contravariantVertex(env, changes, s)
			for _, t := range a.Block.Types() {
				if proc, ok := t.(*Proc); ok {
					proc.Block.AcceptArgs(env, changes, params, blockRet)
				}
			}
		}
		if retListener != nil {
			changes.AddEdge(mt.Ret.covariantVertex(env, changes, s), retListener)
		}
	}
	logger.Debug("resolved overloads", "node", codeRange(node), "matched", matched)
	return matched
}

func joinSigs(sigs []SigType, sep string) string { return util.JoinString(sigs, sep) }
