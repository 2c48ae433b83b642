package ast

import (
	"strconv"

	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/diag"
)

var (
	_ Node = (*IntegerLit)(nil)
	_ Node = (*FloatLit)(nil)
	_ Node = (*StringLit)(nil)
	_ Node = (*SymbolLit)(nil)
	_ Node = (*NilLit)(nil)
	_ Node = (*TrueLit)(nil)
	_ Node = (*FalseLit)(nil)
	_ Node = (*SelfNode)(nil)
	_ Node = (*Statements)(nil)
	_ Node = (*Unsupported)(nil)

	_ core.IntLiteral    = (*IntegerLit)(nil)
	_ core.SymbolLiteral = (*SymbolLit)(nil)
)

func (n *IntegerLit) Describe() string  { return "integer literal" }
func (n *FloatLit) Describe() string    { return "float literal" }
func (n *StringLit) Describe() string   { return "string literal" }
func (n *SymbolLit) Describe() string   { return "symbol literal" }
func (n *NilLit) Describe() string      { return "nil" }
func (n *TrueLit) Describe() string     { return "true" }
func (n *FalseLit) Describe() string    { return "false" }
func (n *SelfNode) Describe() string    { return "self" }
func (n *Statements) Describe() string  { return "statements" }
func (n *Unsupported) Describe() string { return n.What }

func (n *IntegerLit) Children() []Node  { return nil }
func (n *FloatLit) Children() []Node    { return nil }
func (n *StringLit) Children() []Node   { return nil }
func (n *SymbolLit) Children() []Node   { return nil }
func (n *NilLit) Children() []Node      { return nil }
func (n *TrueLit) Children() []Node     { return nil }
func (n *FalseLit) Children() []Node    { return nil }
func (n *SelfNode) Children() []Node    { return nil }
func (n *Statements) Children() []Node  { return n.Body }
func (n *Unsupported) Children() []Node { return n.Body }

type IntegerLit struct {
	Base
	Value int
}

func (n *IntegerLit) IntValue() int  { return n.Value }
func (n *IntegerLit) String() string { return strconv.Itoa(n.Value) }

func (n *IntegerLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, env.InstanceOf(env.ModInteger)))
}

type FloatLit struct {
	Base
	Value float64
}

func (n *FloatLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, env.InstanceOf(env.ModFloat)))
}

type StringLit struct {
	Base
	Value string
}

func (n *StringLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, env.InstanceOf(env.ModString)))
}

// SymbolLit keeps its name in the type, so records and literal signatures can use it
type SymbolLit struct {
	Base
	Name string
}

func (n *SymbolLit) SymbolValue() string { return n.Name }

func (n *SymbolLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, core.NewSymbol(n.Name)))
}

type NilLit struct{ Base }

func (n *NilLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, env.NilType()))
}

type TrueLit struct{ Base }

func (n *TrueLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, env.TrueType()))
}

type FalseLit struct{ Base }

func (n *FalseLit) Install(env *core.GlobalEnv, _ *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, env.FalseType()))
}

type SelfNode struct{ Base }

func (n *SelfNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	return n.commit(env, cs.NewSource(env, lenv.SelfType(env)))
}

// Statements evaluates to its last statement, or nil when empty
type Statements struct {
	Base
	Body []Node
}

func (n *Statements) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	var ret core.BasicVertex
	for _, stmt := range n.Body {
		ret = stmt.Install(env, lenv)
	}
	if ret == nil {
		ret = cs.NewSource(env, env.NilType())
	}
	return n.commit(env, ret)
}

type untypedKey struct{}

// Unsupported stands for a construct the engine does not model. Its
// sub-expressions are still analysed; its own value is untyped.
type Unsupported struct {
	Base
	What string
	Body []Node
}

func (n *Unsupported) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	installAll(env, lenv, n.Body)
	cs.AddDiagnostic(diag.NewUnsupportedConstruct{Range: n.Range, What: n.What})
	return n.commit(env, cs.NewVertex(env, untypedKey{}))
}
