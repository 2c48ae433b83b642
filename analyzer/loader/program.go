package loader

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cottand/typeflow/analyzer/ast"
	"gopkg.in/yaml.v3"
)

// LoadProgram reads a program: a sequence of statements, each a scalar
// shorthand or a mapping keyed by its kind.
//
//	- asgn: x
//	  value: 1
//	- call: puts
//	  args: [x, "text", {sym: sym}]
//	- class: Foo
//	  superclass: Bar
//	  body:
//	    - def: initialize
//	      params: [n]
//	      body: [{asgn: "@n", value: n}]
//	    - def: n
//	      body: [{ivar: "@n"}]
//
// Quoted scalars are always strings. YAML reserves a leading @, so instance
// and class variable reads are written as {ivar: name} and {cvar: name}.
func LoadProgram(path string, data []byte) (*ast.Program, error) {
	l := &loader{file: path}
	root, err := l.document(data)
	if err != nil {
		return nil, err
	}
	body := l.statements(root)
	if err := l.err(); err != nil {
		return nil, err
	}
	logger.Debug("loaded program", "path", path, "statements", len(body.Body))
	return &ast.Program{Path: path, Body: body}, nil
}

func (l *loader) statements(n *yaml.Node) *ast.Statements {
	stmts := &ast.Statements{}
	if n == nil {
		return stmts
	}
	stmts.Base = l.base(n)
	for _, item := range seq(n) {
		if node := l.node(item); node != nil {
			stmts.Body = append(stmts.Body, node)
		}
	}
	return stmts
}

func (l *loader) nodes(n *yaml.Node) []ast.Node {
	var out []ast.Node
	for _, item := range seq(n) {
		if node := l.node(item); node != nil {
			out = append(out, node)
		}
	}
	return out
}

// optionalNode is the node under key, nil when the key is absent or null
func (l *loader) optionalNode(m *mapping, key string) ast.Node {
	v, ok := m.get(key)
	if !ok || v.Tag == "!!null" {
		return nil
	}
	return l.node(v)
}

func (l *loader) requiredNode(m *mapping, key string) ast.Node {
	v, ok := m.get(key)
	if !ok {
		l.fail(m.node, "missing %q", key)
		return &ast.NilLit{Base: l.base(m.node)}
	}
	return l.node(v)
}

func (l *loader) node(n *yaml.Node) ast.Node {
	switch n.Kind {
	case yaml.ScalarNode:
		return l.scalar(n)
	case yaml.MappingNode:
		return l.compound(n)
	case yaml.SequenceNode:
		return &ast.ArrayNode{Base: l.base(n), Elems: l.nodes(n)}
	}
	l.fail(n, "unexpected YAML node")
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if !(r == '_' || unicode.IsLetter(r) || i > 0 && unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// scalar reads the shorthands: literals, variables by sigil and constants
func (l *loader) scalar(n *yaml.Node) ast.Node {
	b := l.base(n)
	v := n.Value
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return &ast.StringLit{Base: b, Value: v}
	}
	switch n.Tag {
	case "!!int":
		i, err := strconv.Atoi(v)
		if err != nil {
			l.fail(n, "bad integer %q", v)
		}
		return &ast.IntegerLit{Base: b, Value: i}
	case "!!float":
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			l.fail(n, "bad float %q", v)
		}
		return &ast.FloatLit{Base: b, Value: f}
	case "!!bool":
		if v == "true" {
			return &ast.TrueLit{Base: b}
		}
		return &ast.FalseLit{Base: b}
	case "!!null":
		return &ast.NilLit{Base: b}
	}
	switch {
	case v == "nil":
		return &ast.NilLit{Base: b}
	case v == "self":
		return &ast.SelfNode{Base: b}
	case strings.HasPrefix(v, ":") && isIdent(strings.TrimRight(v[1:], "?!=")):
		return &ast.SymbolLit{Base: b, Name: v[1:]}
	case strings.HasPrefix(v, "$"):
		return &ast.VarRead{Base: b, Kind: ast.GlobalVar, Name: v}
	case isConstPath(v):
		return l.constPath(n, v)
	case isIdent(v):
		return &ast.LocalRead{Base: b, Name: v}
	}
	return &ast.StringLit{Base: b, Value: v}
}

func isConstPath(s string) bool {
	s = strings.TrimPrefix(s, "::")
	for _, seg := range strings.Split(s, "::") {
		if !isIdent(seg) || !unicode.IsUpper([]rune(seg)[0]) {
			return false
		}
	}
	return true
}

// constPath reads `A`, `A::B` or `::A`
func (l *loader) constPath(n *yaml.Node, path string) *ast.ConstNode {
	toplevel := strings.HasPrefix(path, "::")
	var c *ast.ConstNode
	for i, seg := range strings.Split(strings.TrimPrefix(path, "::"), "::") {
		c = &ast.ConstNode{Base: l.base(n), Name: seg, Scope: c, Toplevel: toplevel && i == 0}
	}
	return c
}

func (l *loader) constNode(n *yaml.Node) *ast.ConstNode {
	if n.Kind != yaml.ScalarNode || !isConstPath(n.Value) {
		l.fail(n, "expected a constant, found %q", n.Value)
		return &ast.ConstNode{Base: l.base(n), Name: n.Value}
	}
	return l.constPath(n, n.Value)
}

// kinds are the keys that name what a mapping is, in the order they are tried
var kinds = []string{
	"str", "int", "float", "sym", "ivar", "cvar",
	"asgn", "masgn",
	"class", "module", "def", "defs",
	"call", "yield", "return",
	"if", "unless", "and", "or", "not",
	"array", "hash", "splat",
	"include", "prepend", "alias",
	"unsupported",
}

func (l *loader) compound(n *yaml.Node) ast.Node {
	m := l.mapping(n)
	for _, kind := range kinds {
		v, ok := m.get(kind)
		if !ok {
			continue
		}
		return l.build(kind, m, v)
	}
	l.fail(n, "unknown node with keys %v", m.keys)
	return nil
}

func (l *loader) build(kind string, m *mapping, v *yaml.Node) ast.Node {
	b := l.base(m.node)
	switch kind {
	case "str":
		return &ast.StringLit{Base: b, Value: v.Value}
	case "sym":
		return &ast.SymbolLit{Base: b, Name: strings.TrimPrefix(v.Value, ":")}
	case "int", "float":
		return l.scalar(v)
	case "ivar":
		return &ast.VarRead{Base: b, Kind: ast.InstanceVar, Name: "@" + l.varName(v)}
	case "cvar":
		return &ast.VarRead{Base: b, Kind: ast.ClassVar, Name: "@@" + l.varName(v)}
	case "asgn":
		return l.assignment(m, v)
	case "masgn":
		return &ast.MAsgnNode{Base: b, Targets: scalars(l, v), Rest: m.str("rest"), Value: l.requiredNode(m, "value")}
	case "class", "module":
		def := &ast.ModuleDef{Base: b, Class: kind == "class", Name: strings.Split(v.Value, "::"), Body: l.body(m)}
		if s, ok := m.get("superclass"); ok {
			def.Superclass = l.constNode(s)
		}
		return def
	case "def", "defs":
		return &ast.DefNode{Base: b, Name: v.Value, Singleton: kind == "defs", Params: l.params(m), Body: l.body(m)}
	case "call":
		return l.call(m, v)
	case "yield":
		return &ast.YieldNode{Base: b, Args: l.nodes(v)}
	case "return":
		ret := &ast.ReturnNode{Base: b}
		if v.Tag != "!!null" {
			ret.Value = l.node(v)
		}
		return ret
	case "if", "unless":
		return &ast.IfNode{
			Base:   b,
			Cond:   l.node(v),
			Then:   l.branch(m, "then"),
			Else:   l.branch(m, "else"),
			Unless: kind == "unless",
		}
	case "and", "or":
		operands := l.nodes(v)
		if len(operands) != 2 {
			l.fail(v, "%s takes two operands", kind)
			return &ast.NilLit{Base: b}
		}
		if kind == "and" {
			return &ast.AndNode{Base: b, Left: operands[0], Right: operands[1]}
		}
		return &ast.OrNode{Base: b, Left: operands[0], Right: operands[1]}
	case "not":
		return &ast.NotNode{Base: b, Value: l.node(v)}
	case "array":
		return &ast.ArrayNode{Base: b, Elems: l.nodes(v)}
	case "hash":
		return l.hash(v)
	case "splat":
		return &ast.SplatNode{Base: b, Value: l.node(v)}
	case "include", "prepend":
		inc := &ast.IncludeNode{Base: b, Prepend: kind == "prepend"}
		for _, item := range seq(v) {
			inc.Modules = append(inc.Modules, l.constNode(item))
		}
		return inc
	case "alias":
		names := scalars(l, v)
		if len(names) != 2 {
			l.fail(v, "alias takes a new and an old name")
			return &ast.NilLit{Base: b}
		}
		return &ast.AliasNode{Base: b, New: names[0], Old: names[1]}
	case "unsupported":
		return &ast.Unsupported{Base: b, What: v.Value, Body: l.body(m).Body}
	}
	panic("unhandled node kind " + kind)
}

// varName is the name of an instance or class variable without its sigil
func (l *loader) varName(n *yaml.Node) string {
	name := strings.TrimLeft(n.Value, "@")
	if !isIdent(name) {
		l.fail(n, "bad variable name %q", n.Value)
	}
	return name
}

func (l *loader) body(m *mapping) *ast.Statements {
	v, ok := m.get("body")
	if !ok {
		return &ast.Statements{Base: l.base(m.node)}
	}
	return l.statements(v)
}

// branch is the statements of an if branch, nil when the branch is absent
func (l *loader) branch(m *mapping, key string) *ast.Statements {
	v, ok := m.get(key)
	if !ok {
		return nil
	}
	return l.statements(v)
}

// assignment picks the kind of variable from the sigil of its name
func (l *loader) assignment(m *mapping, target *yaml.Node) ast.Node {
	b := l.base(m.node)
	name := target.Value
	value := l.requiredNode(m, "value")
	switch {
	case strings.HasPrefix(name, "@@"):
		return &ast.VarWrite{Base: b, Kind: ast.ClassVar, Name: name, Value: value}
	case strings.HasPrefix(name, "@"):
		return &ast.VarWrite{Base: b, Kind: ast.InstanceVar, Name: name, Value: value}
	case strings.HasPrefix(name, "$"):
		return &ast.VarWrite{Base: b, Kind: ast.GlobalVar, Name: name, Value: value}
	case isConstPath(name) && !strings.Contains(name, "::"):
		return &ast.ConstWrite{Base: b, Name: name, Value: value}
	case isIdent(name):
		return &ast.LocalWrite{Base: b, Name: name, Value: value}
	}
	l.fail(target, "cannot assign to %q", name)
	return value
}

func (l *loader) call(m *mapping, name *yaml.Node) ast.Node {
	c := &ast.CallNode{
		Base:     l.base(m.node),
		Name:     name.Value,
		MidRange: rangeOf(name),
		Recv:     l.optionalNode(m, "recv"),
	}
	if args, ok := m.get("args"); ok {
		c.Args = l.nodes(args)
	}
	if kw, ok := m.get("kwargs"); ok {
		c.Keywords = l.hash(kw)
	}
	c.BlockPass = l.optionalNode(m, "block_pass")
	if blk, ok := m.get("block"); ok {
		bm := l.mapping(blk)
		c.Block = &ast.BlockNode{Base: l.base(blk), Params: l.params(bm), Body: l.body(bm)}
	}
	return c
}

// hash reads `{a: 1, "**": h}` as symbol keys, or a list of {key, value} and {splat} entries
func (l *loader) hash(n *yaml.Node) *ast.HashNode {
	h := &ast.HashNode{Base: l.base(n)}
	if n.Kind == yaml.MappingNode {
		m := l.mapping(n)
		for _, key := range m.keys {
			value := l.node(m.values[key])
			if key == "**" {
				h.Entries = append(h.Entries, ast.HashEntry{Value: value})
				continue
			}
			sym := &ast.SymbolLit{Base: l.base(m.keyAt[key]), Name: key}
			h.Entries = append(h.Entries, ast.HashEntry{Key: sym, Value: value})
		}
		return h
	}
	for _, item := range seq(n) {
		em := l.mapping(item)
		if s, ok := em.get("splat"); ok {
			h.Entries = append(h.Entries, ast.HashEntry{Value: l.node(s)})
			continue
		}
		h.Entries = append(h.Entries, ast.HashEntry{Key: l.requiredNode(em, "key"), Value: l.requiredNode(em, "value")})
	}
	return h
}

// params reads `params: [a, b]` or the full form
//
//	params: {req: [a], opt: {b: 1}, rest: r, post: [p], kwreq: [k], kwopt: {o: nil}, kwrest: kw, block: blk}
func (l *loader) params(m *mapping) ast.Params {
	v, ok := m.get("params")
	if !ok {
		return ast.Params{}
	}
	if v.Kind != yaml.MappingNode {
		return ast.Params{Req: scalars(l, v)}
	}
	pm := l.mapping(v)
	p := ast.Params{
		Rest:         pm.str("rest"),
		RestKeywords: pm.str("kwrest"),
		Block:        pm.str("block"),
	}
	if req, ok := pm.get("req"); ok {
		p.Req = scalars(l, req)
	}
	if post, ok := pm.get("post"); ok {
		p.Post = scalars(l, post)
	}
	if kw, ok := pm.get("kwreq"); ok {
		p.ReqKeywords = scalars(l, kw)
	}
	p.Opt = l.optionalParams(pm, "opt")
	p.OptKeywords = l.optionalParams(pm, "kwopt")
	return p
}

func (l *loader) optionalParams(pm *mapping, key string) []ast.Param {
	v, ok := pm.get(key)
	if !ok {
		return nil
	}
	if v.Kind != yaml.MappingNode {
		l.fail(v, "%s maps names to default values", key)
		return nil
	}
	om := l.mapping(v)
	params := make([]ast.Param, 0, len(om.keys))
	for _, name := range om.keys {
		params = append(params, ast.Param{Name: name, Default: l.node(om.values[name])})
	}
	return params
}
