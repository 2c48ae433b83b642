package core

import (
	"github.com/cottand/typeflow/analyzer/ir"
)

// Node is the part of a syntax or signature node that the engine needs:
// a location to attach diagnostics and vertices to.
type Node interface {
	CodeRange() ir.Range
	SourceFile() string
}

// MidRanger is implemented by call-like nodes whose method name has its own range.
// Diagnostics about the method prefer that range.
type MidRanger interface {
	MidCodeRange() ir.Range
}

// ModuleOrigin is a class or module declaration/definition, as registered on a ModuleEntity
type ModuleOrigin interface {
	Node
	IsClass() bool
	// SuperclassRead is nil when the origin does not name a superclass
	SuperclassRead() *ConstRead
	// SelfTypeReads are only meaningful for module declarations
	SelfTypeReads() []*ConstRead
	TypeParams() []string
}

// IncludeOrigin is an include or prepend statement (or its signature counterpart)
type IncludeOrigin interface {
	Node
	IncludedReads() []*ConstRead
	IsPrepend() bool
}

// IntLiteral is implemented by nodes that denote a literal integer, used by builtins
// that index tuples.
type IntLiteral interface {
	IntValue() int
}

// SymbolLiteral is implemented by nodes that denote a literal symbol, used by builtins
// that index records.
type SymbolLiteral interface {
	SymbolValue() string
}

func midRange(n Node) ir.Range {
	if n == nil {
		return ir.NoRange
	}
	if m, ok := n.(MidRanger); ok {
		return m.MidCodeRange()
	}
	return n.CodeRange()
}

func codeRange(n Node) ir.Range {
	if n == nil {
		return ir.NoRange
	}
	return n.CodeRange()
}
