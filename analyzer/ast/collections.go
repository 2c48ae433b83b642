package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
)

var (
	_ Node = (*ArrayNode)(nil)
	_ Node = (*HashNode)(nil)
)

func (n *ArrayNode) Describe() string { return "array literal" }
func (n *HashNode) Describe() string  { return "hash literal" }

type (
	elemKey  struct{}
	keyKey   struct{}
	valueKey struct{}
)

// ArrayNode is `[a, b, *c]`. Without splats it is a tuple of its elements.
type ArrayNode struct {
	Base
	Elems []Node
}

func (n *ArrayNode) Children() []Node { return n.Elems }

func (n *ArrayNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	elem := cs.NewVertex(env, elemKey{})
	vtxs := make([]core.BasicVertex, 0, len(n.Elems))
	splat := false
	for _, e := range n.Elems {
		vtx := e.Install(env, lenv)
		if _, ok := e.(*SplatNode); ok {
			splat = true
			cs.AddEdge(cs.AddSplatBox(env, vtx).Ret(), elem)
			continue
		}
		cs.AddEdge(vtx, elem)
		vtxs = append(vtxs, vtx)
	}
	if splat {
		return n.commit(env, cs.NewSource(env, env.ArrayOf(elem)))
	}
	return n.commit(env, cs.NewSource(env, core.NewTuple(vtxs, env.ArrayOf(elem))))
}

// HashEntry is `key => value`, `key: value`, or `**value` when Key is nil
type HashEntry struct {
	Key   Node
	Value Node
}

// HashNode is a hash literal or the keyword arguments of a call. With symbol
// keys only and no `**` it is a record of its fields.
type HashNode struct {
	Base
	Entries []HashEntry
}

func (n *HashNode) Children() []Node {
	children := make([]Node, 0, 2*len(n.Entries))
	for _, e := range n.Entries {
		children = append(children, nodes(e.Key, e.Value)...)
	}
	return children
}

func (n *HashNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	key := cs.NewVertex(env, keyKey{})
	value := cs.NewVertex(env, valueKey{})
	var fields []core.RecordField
	record := true
	for _, e := range n.Entries {
		if e.Key == nil {
			record = false
			splat := e.Value.Install(env, lenv)
			cs.AddEdge(cs.AddHashSplatBox(env, splat, "").Ret(), value)
			cs.AddEdge(cs.NewSource(env, env.InstanceOf(env.ModSymbol)), key)
			continue
		}
		k := e.Key.Install(env, lenv)
		v := e.Value.Install(env, lenv)
		cs.AddEdge(k, key)
		cs.AddEdge(v, value)
		if sym, ok := e.Key.(*SymbolLit); ok {
			fields = append(fields, core.RecordField{Name: sym.Name, Vtx: v})
		} else {
			record = false
		}
	}
	if !record {
		return n.commit(env, cs.NewSource(env, env.HashOf(key, value)))
	}
	symbols := cs.NewSource(env, env.InstanceOf(env.ModSymbol))
	return n.commit(env, cs.NewSource(env, core.NewRecord(fields, env.HashOf(symbols, value))))
}
