package ast

import (
	"strings"

	"github.com/cottand/typeflow/analyzer/core"
)

// SigTypeNode is a type written in a signature
type SigTypeNode interface {
	Node
	// Build is the engine's form of the type, valid after Define
	Build() core.SigType
}

var (
	_ SigTypeNode = (*SigNamedType)(nil)
	_ SigTypeNode = (*SigTupleType)(nil)
	_ SigTypeNode = (*SigRecordType)(nil)
	_ SigTypeNode = (*SigUnionType)(nil)
	_ SigTypeNode = (*SigOptionalType)(nil)
	_ SigTypeNode = (*SigVarType)(nil)
	_ SigTypeNode = (*SigBaseType)(nil)
	_ SigTypeNode = (*SigLiteralType)(nil)
	_ SigTypeNode = (*SigProcType)(nil)
)

// sigTypeBase is embedded by signature type nodes, which have no value of their own
type sigTypeBase struct{ Base }

func (*sigTypeBase) Install(*core.GlobalEnv, *LocalEnv) core.BasicVertex { return nil }

func (n *SigNamedType) Describe() string    { return "type name" }
func (n *SigTupleType) Describe() string    { return "tuple type" }
func (n *SigRecordType) Describe() string   { return "record type" }
func (n *SigUnionType) Describe() string    { return "union type" }
func (n *SigOptionalType) Describe() string { return "optional type" }
func (n *SigVarType) Describe() string      { return "type variable" }
func (n *SigBaseType) Describe() string     { return n.Kind.String() }
func (n *SigLiteralType) Describe() string  { return "literal type" }
func (n *SigProcType) Describe() string     { return "proc type" }

func (n *SigVarType) Children() []Node     { return nil }
func (n *SigBaseType) Children() []Node    { return nil }
func (n *SigLiteralType) Children() []Node { return nil }
func (n *SigTupleType) Children() []Node   { return sigChildren(n.Elems) }
func (n *SigUnionType) Children() []Node   { return sigChildren(n.Types) }
func (n *SigOptionalType) Children() []Node {
	return []Node{n.Type}
}

func sigChildren(ts []SigTypeNode) []Node {
	children := make([]Node, len(ts))
	for i, t := range ts {
		children[i] = t
	}
	return children
}

// SigNamedType is a class instance, an interface (names starting with `_`) or,
// with Singleton, the class object itself
type SigNamedType struct {
	sigTypeBase
	Name      *ConstNode
	Args      []SigTypeNode
	Singleton bool
}

func (n *SigNamedType) Children() []Node {
	return append([]Node{n.Name}, sigChildren(n.Args)...)
}

func (n *SigNamedType) Build() core.SigType {
	read := n.Name.Read()
	switch {
	case n.Singleton:
		return &core.SigSingleton{Read: read}
	case strings.HasPrefix(n.Name.Name, "_"):
		return &core.SigInterface{Read: read, Args: buildAll(n.Args)}
	}
	return &core.SigInstance{Read: read, Args: buildAll(n.Args)}
}

type SigTupleType struct {
	sigTypeBase
	Elems []SigTypeNode
}

func (n *SigTupleType) Build() core.SigType {
	return &core.SigTuple{Elems: buildAll(n.Elems)}
}

type SigRecordField struct {
	Name     string
	Type     SigTypeNode
	Optional bool
}

type SigRecordType struct {
	sigTypeBase
	Fields []SigRecordField
}

func (n *SigRecordType) Children() []Node {
	children := make([]Node, len(n.Fields))
	for i, f := range n.Fields {
		children[i] = f.Type
	}
	return children
}

func (n *SigRecordType) Build() core.SigType {
	fields := make([]core.SigField, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = core.SigField{Name: f.Name, Type: f.Type.Build(), Optional: f.Optional}
	}
	return &core.SigRecord{Fields: fields}
}

type SigUnionType struct {
	sigTypeBase
	Types []SigTypeNode
}

func (n *SigUnionType) Build() core.SigType {
	return &core.SigUnion{Types: buildAll(n.Types)}
}

type SigOptionalType struct {
	sigTypeBase
	Type SigTypeNode
}

func (n *SigOptionalType) Build() core.SigType {
	return &core.SigOptional{Type: n.Type.Build()}
}

// SigVarType is a type parameter of the enclosing class or method
type SigVarType struct {
	sigTypeBase
	Name string
}

func (n *SigVarType) Build() core.SigType { return &core.SigVar{Name: n.Name} }

// BaseKind is a built-in type keyword
type BaseKind int

const (
	BaseSelf BaseKind = iota
	BaseInstance
	BaseNil
	BaseBool
	BaseUntyped
	BaseVoid
	BaseBot
)

var baseKindNames = [...]string{"self", "instance", "nil", "bool", "untyped", "void", "bot"}

func (k BaseKind) String() string { return baseKindNames[k] }

// ParseBaseKind recognizes the type keywords; `top` and `boolish` are read as untyped
func ParseBaseKind(name string) (BaseKind, bool) {
	switch name {
	case "top", "boolish":
		return BaseUntyped, true
	}
	for i, s := range baseKindNames {
		if s == name {
			return BaseKind(i), true
		}
	}
	return 0, false
}

type SigBaseType struct {
	sigTypeBase
	Kind BaseKind
}

func (n *SigBaseType) Build() core.SigType {
	switch n.Kind {
	case BaseSelf:
		return &core.SigSelf{}
	case BaseInstance:
		return &core.SigInstanceType{}
	case BaseNil:
		return &core.SigNil{}
	case BaseBool:
		return &core.SigBool{}
	case BaseVoid:
		return &core.SigVoid{}
	case BaseBot:
		return &core.SigBot{}
	}
	return &core.SigUntyped{}
}

// SigLiteralType is `:sym`, `1`, `"str"`, `true` or `false` as a type
type SigLiteralType struct {
	sigTypeBase
	Kind  core.LiteralKind
	Value string
}

func (n *SigLiteralType) Build() core.SigType {
	return &core.SigLiteral{Kind: n.Kind, Value: n.Value}
}

// SigProcType is `^(A, B) -> R`
type SigProcType struct {
	sigTypeBase
	Params []SigTypeNode
	Return SigTypeNode
}

func (n *SigProcType) Children() []Node {
	return append(sigChildren(n.Params), n.Return)
}

func (n *SigProcType) Build() core.SigType {
	return &core.SigProc{Params: buildAll(n.Params), Ret: n.Return.Build()}
}
