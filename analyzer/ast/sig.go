package ast

import (
	"slices"

	"github.com/cottand/typeflow/analyzer/core"
)

var (
	_ Node = (*SigModuleDecl)(nil)
	_ Node = (*SigDef)(nil)
	_ Node = (*SigMethodType)(nil)
	_ Node = (*SigVarDecl)(nil)
	_ Node = (*SigConstDecl)(nil)

	_ core.ModuleOrigin = (*SigModuleDecl)(nil)

	_ scoper  = (*SigModuleDecl)(nil)
	_ definer = (*SigModuleDecl)(nil)
	_ definer = (*SigVarDecl)(nil)
	_ definer = (*SigConstDecl)(nil)
	_ definer = (*SigDef)(nil)
)

// ModuleKind tells classes, modules and interfaces apart in declarations
type ModuleKind int

const (
	KindClass ModuleKind = iota
	KindModule
	KindInterface
)

func (k ModuleKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindInterface:
		return "interface"
	}
	return "class"
}

func (n *SigModuleDecl) Describe() string { return n.Kind.String() + " declaration" }
func (n *SigDef) Describe() string        { return "method declaration" }
func (n *SigMethodType) Describe() string { return "method type" }
func (n *SigVarDecl) Describe() string    { return n.Kind.String() + " declaration" }
func (n *SigConstDecl) Describe() string  { return "constant declaration" }

// SigModuleDecl declares a class, module or interface and its members
type SigModuleDecl struct {
	Base
	Kind ModuleKind
	Name []string
	// Params are the type parameters, like [Elem] for `class Array[Elem]`
	Params     []string
	Superclass *ConstNode
	// SelfTypes are the `module M : T` constraints
	SelfTypes []*ConstNode
	Members   []Node

	inner *Scope
	mod   *core.ModuleEntity
}

func (n *SigModuleDecl) Children() []Node {
	children := make([]Node, 0, 1+len(n.SelfTypes)+len(n.Members))
	if n.Superclass != nil {
		children = append(children, n.Superclass)
	}
	for _, st := range n.SelfTypes {
		children = append(children, st)
	}
	return append(children, n.Members...)
}

func (n *SigModuleDecl) IsClass() bool        { return n.Kind == KindClass }
func (n *SigModuleDecl) TypeParams() []string { return n.Params }
func (n *SigModuleDecl) SuperclassRead() *core.ConstRead {
	if n.Superclass == nil {
		return nil
	}
	return n.Superclass.Read()
}
func (n *SigModuleDecl) SelfTypeReads() []*core.ConstRead {
	reads := make([]*core.ConstRead, len(n.SelfTypes))
	for i, st := range n.SelfTypes {
		reads[i] = st.Read()
	}
	return reads
}

// Module is the entity the declaration was registered on
func (n *SigModuleDecl) Module() *core.ModuleEntity { return n.mod }

func (n *SigModuleDecl) scopeOf(_ *core.GlobalEnv, scope *Scope, child Node) *Scope {
	if !slices.Contains(n.Members, child) {
		return scope
	}
	return n.innerScope(scope)
}

func (n *SigModuleDecl) innerScope(scope *Scope) *Scope {
	if n.inner == nil {
		cpath := slices.Concat(scope.CRef.Cpath, n.Name)
		n.inner = &Scope{CRef: scope.CRef.Extend(cpath, false)}
	}
	return n.inner
}

func (n *SigModuleDecl) define(env *core.GlobalEnv, scope *Scope) {
	n.mod = n.innerScope(scope).Module(env)
	n.mod.AddDecl(env, n)
}

func (n *SigModuleDecl) undefine(env *core.GlobalEnv) {
	n.mod.RemoveDecl(env, n)
	n.mod = nil
	n.inner = nil
}

func (n *SigModuleDecl) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	if n.Superclass != nil {
		cs.AddSuperclassCheckBox(env, n.mod, n)
	}
	body := lenv.body(n.inner.CRef, n.mod, false, nil)
	for _, m := range n.Members {
		m.Install(env, body)
	}
	return n.commit(env, nil)
}

// SigDef declares the overloads of a method
type SigDef struct {
	Base
	Name      string
	Singleton bool
	Overloads []*SigMethodType

	box *core.MethodDeclBox
}

func (n *SigDef) Children() []Node {
	children := make([]Node, len(n.Overloads))
	for i, o := range n.Overloads {
		children[i] = o
	}
	return children
}

// Box is the declaration box of the last install
func (n *SigDef) Box() *core.MethodDeclBox { return n.box }

func (n *SigDef) define(*core.GlobalEnv, *Scope) {}

func (n *SigDef) undefine(*core.GlobalEnv) {
	for _, o := range n.Overloads {
		o.built = nil
	}
}

func (n *SigDef) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	overloads := make([]*core.MethodType, len(n.Overloads))
	for i, o := range n.Overloads {
		overloads[i] = o.Build()
	}
	n.box = cs.AddMethodDeclBox(env, lenv.Mod, n.Singleton, n.Name, overloads)
	return n.commit(env, nil)
}

// SigKeyword is a keyword parameter of a method type
type SigKeyword struct {
	Name string
	Type SigTypeNode
}

// SigProcParam is the block of a method type
type SigProcParam struct {
	Params   []SigTypeNode
	Return   SigTypeNode
	Optional bool
}

// SigMethodType is one overload, like `[T] (Integer, ?String) { (T) -> void } -> T`
type SigMethodType struct {
	sigTypeBase
	TypeParams   []string
	Req          []SigTypeNode
	Opt          []SigTypeNode
	Rest         SigTypeNode
	Post         []SigTypeNode
	ReqKeywords  []SigKeyword
	OptKeywords  []SigKeyword
	RestKeywords SigTypeNode
	Block        *SigProcParam
	Return       SigTypeNode

	built *core.MethodType
}

func (n *SigMethodType) Children() []Node {
	var children []Node
	add := func(ts ...SigTypeNode) {
		for _, t := range ts {
			if t != nil {
				children = append(children, t)
			}
		}
	}
	add(n.Req...)
	add(n.Opt...)
	add(n.Rest)
	add(n.Post...)
	for _, kw := range n.ReqKeywords {
		add(kw.Type)
	}
	for _, kw := range n.OptKeywords {
		add(kw.Type)
	}
	add(n.RestKeywords)
	if n.Block != nil {
		add(n.Block.Params...)
		add(n.Block.Return)
	}
	add(n.Return)
	return children
}

// Build is the method type with the constant reads made at Define time. It is
// built once per definition so reinstalls keep their boxes.
func (n *SigMethodType) Build() *core.MethodType {
	if n.built != nil {
		return n.built
	}
	mt := &core.MethodType{
		Node:         n,
		TypeParams:   n.TypeParams,
		Req:          buildAll(n.Req),
		Opt:          buildAll(n.Opt),
		Rest:         buildOptional(n.Rest),
		Post:         buildAll(n.Post),
		ReqKeywords:  buildKeywords(n.ReqKeywords),
		OptKeywords:  buildKeywords(n.OptKeywords),
		RestKeywords: buildOptional(n.RestKeywords),
		Ret:          n.Return.Build(),
	}
	if n.Block != nil {
		mt.Block = &core.SigProc{Params: buildAll(n.Block.Params), Ret: n.Block.Return.Build(), Optional: n.Block.Optional}
	}
	n.built = mt
	return mt
}

func buildAll(ts []SigTypeNode) []core.SigType {
	sigs := make([]core.SigType, len(ts))
	for i, t := range ts {
		sigs[i] = t.Build()
	}
	return sigs
}

func buildOptional(t SigTypeNode) core.SigType {
	if t == nil {
		return nil
	}
	return t.Build()
}

func buildKeywords(kws []SigKeyword) []core.SigKeyword {
	sigs := make([]core.SigKeyword, len(kws))
	for i, kw := range kws {
		sigs[i] = core.SigKeyword{Name: kw.Name, Type: kw.Type.Build()}
	}
	return sigs
}

// SigVarDecl declares the type of an instance, class or global variable
type SigVarDecl struct {
	Base
	Kind VarKind
	Name string
	// Singleton is set for `self.@x: T`
	Singleton bool
	Type      SigTypeNode

	entity *core.ValueEntity
	self   core.Type
	sig    core.SigType
}

func (n *SigVarDecl) Children() []Node { return []Node{n.Type} }

func (n *SigVarDecl) Entity() *core.ValueEntity { return n.entity }

func (n *SigVarDecl) define(env *core.GlobalEnv, scope *Scope) {
	scope = &Scope{CRef: scope.CRef, Singleton: n.Singleton}
	n.entity = variableEntity(env, scope, n.Kind, n.Name)
	n.entity.AddDecl(env, n)
}

func (n *SigVarDecl) undefine(env *core.GlobalEnv) {
	n.entity.RemoveDecl(env, n)
	n.entity = nil
	n.self = nil
	n.sig = nil
}

func (n *SigVarDecl) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	if n.self == nil {
		n.self = lenv.SelfType(env)
		if n.Singleton {
			n.self = env.SingletonOf(lenv.Mod)
		}
	}
	if n.sig == nil {
		n.sig = n.Type.Build()
	}
	cs.AddTypeDeclBox(env, n.sig, n.self, n.entity.Vertex())
	return n.commit(env, nil)
}

// SigConstDecl declares the type of a constant
type SigConstDecl struct {
	Base
	Name string
	Type SigTypeNode

	entity *core.ValueEntity
	sig    core.SigType
}

func (n *SigConstDecl) Children() []Node { return []Node{n.Type} }

func (n *SigConstDecl) Entity() *core.ValueEntity { return n.entity }

func (n *SigConstDecl) define(env *core.GlobalEnv, scope *Scope) {
	n.entity = scope.Module(env).Const(env, n.Name)
	n.entity.AddDecl(env, n)
}

func (n *SigConstDecl) undefine(env *core.GlobalEnv) {
	n.entity.RemoveDecl(env, n)
	n.entity = nil
	n.sig = nil
}

func (n *SigConstDecl) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	if n.sig == nil {
		n.sig = n.Type.Build()
	}
	cs.AddTypeDeclBox(env, n.sig, nil, n.entity.Vertex())
	return n.commit(env, nil)
}
