package core

import (
	"strconv"
	"strings"

	"github.com/cottand/typeflow/analyzer/diag"
)

type KeywordParam struct {
	Name string
	Vtx  *Vertex
}

// FormalArgs are the parameter vertices of a method definition.
// Rest holds the element type of the rest array and RestKeywords the value type
// of the keyword-rest hash.
type FormalArgs struct {
	Req          []*Vertex
	Opt          []*Vertex
	Rest         *Vertex
	Post         []*Vertex
	ReqKeywords  []KeywordParam
	OptKeywords  []KeywordParam
	RestKeywords *Vertex
	Block        *Vertex
}

func (f *FormalArgs) acceptsKeywords() bool {
	return len(f.ReqKeywords) > 0 || len(f.OptKeywords) > 0 || f.RestKeywords != nil
}

func (f *FormalArgs) keywords() []KeywordParam {
	return append(append([]KeywordParam{}, f.ReqKeywords...), f.OptKeywords...)
}

// keywordsAsPositional passes a keyword hash to a method without keyword
// parameters as its last positional argument
func keywordsAsPositional(a *ActualArgs) *ActualArgs {
	return &ActualArgs{
		Positionals: append(append([]BasicVertex{}, a.Positionals...), a.Keywords),
		SplatFlags:  append(append([]bool{}, a.SplatFlags...), false),
		Nodes:       a.Nodes,
		Block:       a.Block,
	}
}

// MethodDefBox is a method definition from source. Calls resolved to it bind
// their arguments to its formals and receive its return.
type MethodDefBox struct {
	boxBase
	mod       *ModuleEntity
	singleton bool
	mid       string
	formals   *FormalArgs
	ret       *Vertex
}

func newMethodDefBox(env *GlobalEnv, node Node, mod *ModuleEntity, singleton bool, mid string, formals *FormalArgs, ret *Vertex) *MethodDefBox {
	b := &MethodDefBox{mod: mod, singleton: singleton, mid: mid, formals: formals, ret: ret}
	b.init(env, node, b)
	mod.Method(singleton, mid).addDef(env, b)
	env.AddRun(b)
	return b
}

func (b *MethodDefBox) Ret() BasicVertex      { return b.ret }
func (b *MethodDefBox) Mid() string           { return b.mid }
func (b *MethodDefBox) Module() *ModuleEntity { return b.mod }
func (b *MethodDefBox) IsSingleton() bool     { return b.singleton }
func (b *MethodDefBox) Formals() *FormalArgs  { return b.formals }

func (b *MethodDefBox) selfType(env *GlobalEnv) Type {
	if b.singleton {
		return env.SingletonOf(b.mod)
	}
	return env.InstanceOf(b.mod)
}

// run0 feeds the declared parameter types of the method into the formals and
// checks the body's return against the declared one
func (b *MethodDefBox) run0(env *GlobalEnv, changes *ChangeSet) {
	me := b.mod.Method(b.singleton, b.mid)
	changes.AddDependedMethodEntity(me)
	if me.decls.Len() == 0 {
		return
	}
	subst := newSubst(env, changes, b.selfType(env))
	f := b.formals
	for decl := range me.decls.Items() {
		for _, mt := range decl.overloads {
			s := subst.withTypeParams(env, changes, mt, nil)
			for i, sig := range mt.Req {
				if i < len(f.Req) {
					changes.AddEdge(sig.covariantVertex(env, changes, s), f.Req[i])
				}
			}
			for i, sig := range mt.Opt {
				if i < len(f.Opt) {
					changes.AddEdge(sig.covariantVertex(env, changes, s), f.Opt[i])
				}
			}
			for i, sig := range mt.Post {
				if i < len(f.Post) {
					changes.AddEdge(sig.covariantVertex(env, changes, s), f.Post[i])
				}
			}
			if mt.Rest != nil && f.Rest != nil {
				changes.AddEdge(mt.Rest.covariantVertex(env, changes, s), f.Rest)
			}
			for _, kw := range f.keywords() {
				if sig, ok := mt.keyword(kw.Name); ok {
					changes.AddEdge(sig.covariantVertex(env, changes, s), kw.Vtx)
				}
			}
			if mt.RestKeywords != nil && f.RestKeywords != nil {
				changes.AddEdge(mt.RestKeywords.covariantVertex(env, changes, s), f.RestKeywords)
			}
			if mt.Block != nil && f.Block != nil {
				changes.AddEdge(mt.Block.covariantVertex(env, changes, s), f.Block)
			}
			if b.mid != "initialize" {
				changes.AddCheckReturnBox(env, b.ret, mt.Ret, s)
			}
		}
	}
}

func (b *MethodDefBox) unsubscribe(env *GlobalEnv) {
	b.mod.Method(b.singleton, b.mid).removeDef(env, b)
}

// Call binds args to the formals and the method's return to ret. It reports
// false, after recording a diagnostic, when the arity does not fit.
func (b *MethodDefBox) Call(env *GlobalEnv, changes *ChangeSet, callNode Node, a *ActualArgs, ret Listener) bool {
	if !b.passArguments(env, changes, callNode, a) {
		return false
	}
	changes.AddEdge(b.ret, ret)
	return true
}

func (b *MethodDefBox) passArguments(env *GlobalEnv, changes *ChangeSet, callNode Node, a *ActualArgs) bool {
	f := b.formals
	if a.Keywords != nil && !f.acceptsKeywords() {
		a = keywordsAsPositional(a)
	}
	nReq, nOpt, nPost := len(f.Req), len(f.Opt), len(f.Post)
	n := len(a.Positionals)

	if a.hasSplat() {
		firstSplat, lastSplat := -1, -1
		for i := range a.Positionals {
			if a.isSplat(i) {
				if firstSplat < 0 {
					firstSplat = i
				}
				lastSplat = i
			}
		}
		startRest := min(firstSplat, nReq+nOpt)
		endRest := max(lastSplat+1, n-nPost)
		restVtxs := a.restArgs(env, changes, startRest, endRest)
		bindFromRest := func(i int, fv *Vertex) {
			if i < startRest {
				changes.AddEdge(a.Positionals[i], fv)
				return
			}
			for _, rv := range restVtxs {
				changes.AddEdge(rv, fv)
			}
		}
		for i, fv := range f.Req {
			bindFromRest(i, fv)
		}
		for i, fv := range f.Opt {
			bindFromRest(nReq+i, fv)
		}
		for i, fv := range f.Post {
			j := n - nPost + i
			if j >= endRest {
				changes.AddEdge(a.Positionals[j], fv)
				continue
			}
			for _, rv := range restVtxs {
				changes.AddEdge(rv, fv)
			}
		}
		if f.Rest != nil {
			for _, rv := range restVtxs {
				changes.AddEdge(rv, f.Rest)
			}
		}
	} else {
		lower := nReq + nPost
		upper := lower + nOpt
		if n < lower || f.Rest == nil && n > upper {
			if f.Rest != nil {
				upper = -1
			}
			changes.AddDiagnostic(diag.NewWrongArguments{Range: codeRange(callNode), Actual: n, Lower: lower, Upper: upper})
			return false
		}
		for i, fv := range f.Req {
			changes.AddEdge(a.Positionals[i], fv)
		}
		optCount := min(nOpt, n-lower)
		for i := 0; i < optCount; i++ {
			changes.AddEdge(a.Positionals[nReq+i], f.Opt[i])
		}
		for i, fv := range f.Post {
			changes.AddEdge(a.Positionals[n-nPost+i], fv)
		}
		if f.Rest != nil {
			for i := nReq + optCount; i < n-nPost; i++ {
				changes.AddEdge(a.Positionals[i], f.Rest)
			}
		}
	}

	if a.Keywords != nil {
		for _, kw := range f.keywords() {
			changes.AddEdge(changes.AddHashSplatBox(env, a.Keywords, kw.Name).Ret(), kw.Vtx)
		}
		if f.RestKeywords != nil {
			changes.AddEdge(changes.AddHashSplatBox(env, a.Keywords, "").Ret(), f.RestKeywords)
		}
	}
	if f.Block != nil && a.Block != nil {
		changes.AddEdge(a.Block, f.Block)
	}
	return true
}

// Show renders the inferred signature, like `(Integer, ?String) -> Integer`
func (b *MethodDefBox) Show() string {
	s := newShowState()
	f := b.formals
	var params []string
	for _, v := range f.Req {
		params = append(params, showVertex(v, s))
	}
	for _, v := range f.Opt {
		params = append(params, "?"+showVertex(v, s))
	}
	if f.Rest != nil {
		params = append(params, "*"+showVertex(f.Rest, s))
	}
	for _, v := range f.Post {
		params = append(params, showVertex(v, s))
	}
	for _, kw := range f.ReqKeywords {
		params = append(params, kw.Name+": "+showVertex(kw.Vtx, s))
	}
	for _, kw := range f.OptKeywords {
		params = append(params, "?"+kw.Name+": "+showVertex(kw.Vtx, s))
	}
	if f.RestKeywords != nil {
		params = append(params, "**"+showVertex(f.RestKeywords, s))
	}
	var block string
	if f.Block != nil {
		var blocks []string
		for _, t := range f.Block.Types() {
			if proc, ok := t.(*Proc); ok {
				blocks = append(blocks, proc.Block.showBlock(s))
			}
		}
		if len(blocks) > 0 {
			block = " { " + strings.Join(blocks, " | ") + " }"
		}
	}
	ret := "void"
	if b.mid != "initialize" {
		ret = showVertex(b.ret, s)
	}
	return "(" + strings.Join(params, ", ") + ")" + block + " -> " + ret
}

// MethodDeclBox registers the declared overloads of a method for as long as it lives
type MethodDeclBox struct {
	boxBase
	mod       *ModuleEntity
	singleton bool
	mid       string
	overloads []*MethodType
}

func newMethodDeclBox(env *GlobalEnv, node Node, mod *ModuleEntity, singleton bool, mid string, overloads []*MethodType) *MethodDeclBox {
	b := &MethodDeclBox{mod: mod, singleton: singleton, mid: mid, overloads: overloads}
	b.init(env, node, b)
	mod.Method(singleton, mid).addDecl(env, b)
	env.AddRun(b)
	return b
}

func (b *MethodDeclBox) Overloads() []*MethodType { return b.overloads }
func (b *MethodDeclBox) Module() *ModuleEntity    { return b.mod }
func (b *MethodDeclBox) IsSingleton() bool        { return b.singleton }

func (b *MethodDeclBox) run0(*GlobalEnv, *ChangeSet) {}

func (b *MethodDeclBox) unsubscribe(env *GlobalEnv) {
	b.mod.Method(b.singleton, b.mid).removeDecl(env, b)
}

func (b *MethodDeclBox) Show() string {
	overloads := make([]string, len(b.overloads))
	for i, mt := range b.overloads {
		overloads[i] = mt.String()
	}
	return strings.Join(overloads, " | ")
}

// MethodAliasBox makes newMid resolve like oldMid
type MethodAliasBox struct {
	boxBase
	mod       *ModuleEntity
	singleton bool
	newMid    string
	oldMid    string
}

func newMethodAliasBox(env *GlobalEnv, node Node, mod *ModuleEntity, singleton bool, newMid, oldMid string) *MethodAliasBox {
	b := &MethodAliasBox{mod: mod, singleton: singleton, newMid: newMid, oldMid: oldMid}
	b.init(env, node, b)
	mod.Method(singleton, newMid).addAlias(env, b)
	env.AddRun(b)
	return b
}

func (b *MethodAliasBox) OldMid() string { return b.oldMid }

func (b *MethodAliasBox) run0(*GlobalEnv, *ChangeSet) {}

func (b *MethodAliasBox) unsubscribe(env *GlobalEnv) {
	b.mod.Method(b.singleton, b.newMid).removeAlias(env, b)
}

// CheckReturnBox reports a method body whose return does not fit its declaration
type CheckReturnBox struct {
	boxBase
	vtx   BasicVertex
	sig   SigType
	subst *Subst
}

func newCheckReturnBox(env *GlobalEnv, node Node, vtx BasicVertex, sig SigType, subst *Subst) *CheckReturnBox {
	b := &CheckReturnBox{vtx: vtx, sig: sig, subst: subst}
	b.init(env, node, b)
	vtx.AddEdge(env, b)
	env.AddRun(b)
	return b
}

func (b *CheckReturnBox) run0(env *GlobalEnv, changes *ChangeSet) {
	m := newMatcher(env, changes, b.subst)
	for _, t := range b.vtx.Types() {
		if !b.sig.matchType(m, t) {
			changes.AddDiagnostic(diag.NewReturnMismatch{
				Range:    codeRange(b.node),
				Expected: b.sig.String(),
				Actual:   showVertex(b.vtx, newShowState()),
			})
			return
		}
	}
}

func (b *CheckReturnBox) unsubscribe(env *GlobalEnv) {
	b.vtx.RemoveEdge(env, b)
}

// TypeDeclBox writes the types of a declared constant or variable into its vertex
type TypeDeclBox struct {
	boxBase
	sig    SigType
	self   Type
	target BasicVertex
}

func newTypeDeclBox(env *GlobalEnv, node Node, sig SigType, self Type, target *Vertex) *TypeDeclBox {
	b := &TypeDeclBox{sig: sig, self: self, target: target}
	b.init(env, node, b)
	env.AddRun(b)
	return b
}

func (b *TypeDeclBox) run0(env *GlobalEnv, changes *ChangeSet) {
	subst := newSubst(env, changes, b.self)
	if v, ok := b.target.(*Vertex); ok {
		changes.AddEdge(b.sig.covariantVertex(env, changes, subst), v)
	}
}

// SourceBlock is a block literal from source: its parameters and the vertex of
// what the block evaluates to
type SourceBlock struct {
	id     int
	node   Node
	Params []*Vertex
	Ret    *Vertex
}

var _ Block = (*SourceBlock)(nil)

func NewSourceBlock(env *GlobalEnv, node Node, params []*Vertex, ret *Vertex) *SourceBlock {
	return &SourceBlock{id: env.newID(), node: node, Params: params, Ret: ret}
}

func (blk *SourceBlock) BlockID() int { return blk.id }

// AcceptArgs binds args to the block parameters. A single argument yielded to a
// block with several parameters is destructured.
func (blk *SourceBlock) AcceptArgs(env *GlobalEnv, changes *ChangeSet, args []BasicVertex, ret BasicVertex) {
	if len(args) == 1 && len(blk.Params) > 1 {
		changes.AddMAsgnBox(env, args[0], blk.Params, nil)
	} else {
		for i, param := range blk.Params {
			if i < len(args) {
				changes.AddEdge(args[i], param)
			}
		}
	}
	if l, ok := ret.(Listener); ok {
		changes.AddEdge(blk.Ret, l)
	}
}

func (blk *SourceBlock) showBlock(s *showState) string {
	params := make([]string, len(blk.Params))
	for i, param := range blk.Params {
		params[i] = showVertex(param, s)
	}
	return "(" + strings.Join(params, ", ") + ") -> " + showVertex(blk.Ret, s)
}

type methodDefBoxKey struct {
	mod       *ModuleEntity
	singleton bool
	mid       string
}

func (c *ChangeSet) AddMethodDefBox(env *GlobalEnv, mod *ModuleEntity, singleton bool, mid string, formals *FormalArgs, ret *Vertex) *MethodDefBox {
	return c.own(methodDefBoxKey{mod, singleton, mid}, func() Destroyable {
		return newMethodDefBox(env, c.node, mod, singleton, mid, formals, ret)
	}).(*MethodDefBox)
}

type methodDeclBoxKey struct {
	mod       *ModuleEntity
	singleton bool
	mid       string
}

func (c *ChangeSet) AddMethodDeclBox(env *GlobalEnv, mod *ModuleEntity, singleton bool, mid string, overloads []*MethodType) *MethodDeclBox {
	return c.own(methodDeclBoxKey{mod, singleton, mid}, func() Destroyable {
		return newMethodDeclBox(env, c.node, mod, singleton, mid, overloads)
	}).(*MethodDeclBox)
}

type methodAliasBoxKey struct {
	mod       *ModuleEntity
	singleton bool
	newMid    string
	oldMid    string
}

func (c *ChangeSet) AddMethodAliasBox(env *GlobalEnv, mod *ModuleEntity, singleton bool, newMid, oldMid string) *MethodAliasBox {
	return c.own(methodAliasBoxKey{mod, singleton, newMid, oldMid}, func() Destroyable {
		return newMethodAliasBox(env, c.node, mod, singleton, newMid, oldMid)
	}).(*MethodAliasBox)
}

type checkReturnBoxKey struct {
	vtx BasicVertex
	sig SigType
}

func (c *ChangeSet) AddCheckReturnBox(env *GlobalEnv, vtx BasicVertex, sig SigType, subst *Subst) *CheckReturnBox {
	return c.own(checkReturnBoxKey{vtx, sig}, func() Destroyable {
		return newCheckReturnBox(env, c.node, vtx, sig, subst)
	}).(*CheckReturnBox)
}

type typeDeclBoxKey struct {
	sig    SigType
	target *Vertex
}

func (c *ChangeSet) AddTypeDeclBox(env *GlobalEnv, sig SigType, self Type, target *Vertex) *TypeDeclBox {
	return c.own(typeDeclBoxKey{sig, target}, func() Destroyable {
		return newTypeDeclBox(env, c.node, sig, self, target)
	}).(*TypeDeclBox)
}

func vertexIDs[V BasicVertex](vtxs []V) string {
	ids := make([]string, len(vtxs))
	for i, v := range vtxs {
		ids[i] = strconv.Itoa(v.ID())
	}
	return strings.Join(ids, ",")
}
