package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
)

var (
	_ Node = (*DefNode)(nil)
	_ Node = (*BlockNode)(nil)
	_ Node = (*YieldNode)(nil)
	_ Node = (*ReturnNode)(nil)

	_ scoper = (*DefNode)(nil)
)

func (n *DefNode) Describe() string    { return "method definition" }
func (n *BlockNode) Describe() string  { return "block" }
func (n *YieldNode) Describe() string  { return "yield" }
func (n *ReturnNode) Describe() string { return "return" }

// Param is an optional parameter and its default value
type Param struct {
	Name    string
	Default Node
}

// Params are the formal parameters of a method or a block
type Params struct {
	Req          []string
	Opt          []Param
	Rest         string
	Post         []string
	ReqKeywords  []string
	OptKeywords  []Param
	RestKeywords string
	Block        string
}

func (p *Params) defaults() []Node {
	var defaults []Node
	for _, opt := range p.Opt {
		defaults = append(defaults, opt.Default)
	}
	for _, opt := range p.OptKeywords {
		defaults = append(defaults, opt.Default)
	}
	return nodes(defaults...)
}

type paramKey struct{ name string }

type (
	retKey   struct{}
	blockKey struct{}
)

// DefNode is `def name(params) body` or, with Singleton, `def self.name`
type DefNode struct {
	Base
	Name      string
	Singleton bool
	Params    Params
	Body      *Statements

	box *core.MethodDefBox
}

func (n *DefNode) Children() []Node {
	return append(n.Params.defaults(), n.Body)
}

// Box is the definition box of the last install
func (n *DefNode) Box() *core.MethodDefBox { return n.box }

func (n *DefNode) scopeOf(_ *core.GlobalEnv, scope *Scope, _ Node) *Scope {
	return &Scope{CRef: scope.CRef, Singleton: n.Singleton}
}

func (n *DefNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	frame := &methodFrame{ret: cs.NewVertex(env, retKey{}), block: cs.NewVertex(env, blockKey{})}
	body := lenv.body(lenv.CRef, lenv.Mod, n.Singleton, frame)
	param := func(name string) *core.Vertex {
		vtx := cs.NewVertex(env, paramKey{name})
		body.Set(name, vtx)
		return vtx
	}

	p := &n.Params
	formals := &core.FormalArgs{Block: frame.block}
	for _, name := range p.Req {
		formals.Req = append(formals.Req, param(name))
	}
	for _, opt := range p.Opt {
		vtx := param(opt.Name)
		cs.AddEdge(opt.Default.Install(env, body), vtx)
		formals.Opt = append(formals.Opt, vtx)
	}
	if p.Rest != "" {
		elem := cs.NewVertex(env, paramKey{"*" + p.Rest})
		formals.Rest = elem
		body.Set(p.Rest, cs.NewSource(env, env.ArrayOf(elem)))
	}
	for _, name := range p.Post {
		formals.Post = append(formals.Post, param(name))
	}
	for _, name := range p.ReqKeywords {
		formals.ReqKeywords = append(formals.ReqKeywords, core.KeywordParam{Name: name, Vtx: param(name)})
	}
	for _, opt := range p.OptKeywords {
		vtx := param(opt.Name)
		cs.AddEdge(opt.Default.Install(env, body), vtx)
		formals.OptKeywords = append(formals.OptKeywords, core.KeywordParam{Name: opt.Name, Vtx: vtx})
	}
	if p.RestKeywords != "" {
		value := cs.NewVertex(env, paramKey{"**" + p.RestKeywords})
		formals.RestKeywords = value
		symbols := cs.NewSource(env, env.InstanceOf(env.ModSymbol))
		body.Set(p.RestKeywords, cs.NewSource(env, env.HashOf(symbols, value)))
	}
	if p.Block != "" {
		body.Set(p.Block, frame.block)
	}

	cs.AddEdge(n.Body.Install(env, body), frame.ret)
	n.box = cs.AddMethodDefBox(env, lenv.Mod, n.Singleton, n.Name, formals, frame.ret)
	logger.Debug("installed method definition", "mid", n.Name, "module", lenv.Mod.PathString())
	return n.commit(env, cs.NewSource(env, core.NewSymbol(n.Name)))
}

// BlockNode is a literal block passed to a call
type BlockNode struct {
	Base
	Params Params
	Body   *Statements
}

func (n *BlockNode) Children() []Node {
	return append(n.Params.defaults(), n.Body)
}

func (n *BlockNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	body := lenv.block()
	var params []*core.Vertex
	for _, name := range n.Params.Req {
		vtx := cs.NewVertex(env, paramKey{name})
		body.Set(name, vtx)
		params = append(params, vtx)
	}
	for _, opt := range n.Params.Opt {
		vtx := cs.NewVertex(env, paramKey{opt.Name})
		body.Set(opt.Name, vtx)
		cs.AddEdge(opt.Default.Install(env, body), vtx)
		params = append(params, vtx)
	}
	ret := cs.NewVertex(env, retKey{})
	cs.AddEdge(n.Body.Install(env, body), ret)
	blk := core.NewSourceBlock(env, n, params, ret)
	return n.commit(env, cs.NewSource(env, core.NewProc(blk)))
}

// YieldNode calls the block of the enclosing method
type YieldNode struct {
	Base
	Args []Node
}

func (n *YieldNode) Children() []Node { return n.Args }

func (n *YieldNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	args := installAll(env, lenv, n.Args)
	if lenv.frame == nil {
		return n.commit(env, cs.NewVertex(env, retKey{}))
	}
	box := cs.AddMethodCallBox(env, lenv.frame.block, "call", &core.ActualArgs{Positionals: args}, false)
	return n.commit(env, box.Ret())
}

// ReturnNode sends its value to the enclosing method's return and has no value itself
type ReturnNode struct {
	Base
	Value Node
}

func (n *ReturnNode) Children() []Node { return nodes(n.Value) }

func (n *ReturnNode) Install(env *core.GlobalEnv, lenv *LocalEnv) core.BasicVertex {
	cs := n.begin(n)
	var vtx core.BasicVertex
	if n.Value != nil {
		vtx = n.Value.Install(env, lenv)
	} else {
		vtx = cs.NewSource(env, env.NilType())
	}
	if lenv.frame != nil {
		cs.AddEdge(vtx, lenv.frame.ret)
	}
	return n.commit(env, cs.NewSource(env, core.BotType()))
}
