package loader

import (
	"errors"
	"testing"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodTypeRoundTrip(t *testing.T) {
	tests := []struct {
		src  string
		vars []string
		want string
	}{
		{src: "(Integer) -> String"},
		{src: "(Integer count, ?String, *Symbol, Float) -> nil", want: "(Integer, ?String, *Symbol, Float) -> nil"},
		{src: "(name: String, ?age: Integer, **untyped) -> void"},
		{src: "[U] () { (Elem) -> U } -> Array[U]", vars: []string{"Elem"}},
		{src: "() ?{ () -> void } -> self"},
		{src: "() -> { name: String, ?age: Integer }"},
		{src: "(:a | 1 | \"s\" | true) -> [Integer, String?]"},
		{src: "(::Foo::Bar, singleton(Integer)) -> ^(Integer) -> bool"},
		{src: "(top, boolish) -> bot", want: "(untyped, untyped) -> bot"},
		{src: "(_Each[Integer]) -> instance"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			mt, err := ParseMethodType(tt.src, "test.sig.yaml", ir.NoRange, tt.vars)
			require.NoError(t, err)
			env := core.NewGlobalEnv(core.DefaultOptions())
			ast.Define(env, ast.ToplevelScope(), mt)

			want := tt.want
			if want == "" {
				want = tt.src
			}
			assert.Equal(t, want, mt.Build().String())
		})
	}
}

func TestMethodTypeErrors(t *testing.T) {
	for _, src := range []string{
		"Integer -> String",
		"(Integer -> String",
		"(Integer)",
		"(Integer) -> ",
		"(Integer) -> String extra",
		"() -> 'unterminated",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseMethodType(src, "test.sig.yaml", ir.NoRange, nil)
			assert.Error(t, err)
		})
	}
}

func TestParseHeader(t *testing.T) {
	name, params, err := parseHeader("Hash[out K, V]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hash"}, name)
	assert.Equal(t, []string{"K", "V"}, params)

	name, params, err = parseHeader("A::B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, name)
	assert.Empty(t, params)

	_, _, err = parseHeader("A[")
	assert.Error(t, err)
}

func TestLoadProgramShapes(t *testing.T) {
	prog, err := LoadProgram("main.yaml", []byte(`
- asgn: x
  value: 1
- asgn: "@y"
  value: 2.5
- asgn: LIMIT
  value: "ten"
- :sym
- nil
- self
- $stdout
- Foo::Bar
- x
- call: puts
  recv: $stdout
  args: [x, {splat: x}]
  kwargs: {sep: ",", "**": x}
  block:
    params: [line]
    body: [line]
- if: {call: "nil?", recv: x}
  then: [1]
- and: [x, x]
- masgn: [a, b]
  rest: c
  value: [1, 2, 3]
- unsupported: eval
  body: [x]
`))
	require.NoError(t, err)
	assert.Equal(t, "main.yaml", prog.Path)
	assert.False(t, prog.Signature)

	body := prog.Body.Body
	require.Len(t, body, 14)
	assert.IsType(t, &ast.LocalWrite{}, body[0])
	assert.IsType(t, &ast.VarWrite{}, body[1])
	assert.IsType(t, &ast.ConstWrite{}, body[2])
	assert.Equal(t, "sym", body[3].(*ast.SymbolLit).Name)
	assert.IsType(t, &ast.NilLit{}, body[4])
	assert.IsType(t, &ast.SelfNode{}, body[5])
	assert.Equal(t, ast.GlobalVar, body[6].(*ast.VarRead).Kind)
	assert.Equal(t, []string{"Foo", "Bar"}, body[7].(*ast.ConstNode).Path())
	assert.IsType(t, &ast.LocalRead{}, body[8])

	call := body[9].(*ast.CallNode)
	assert.Equal(t, "puts", call.Name)
	require.Len(t, call.Args, 2)
	assert.IsType(t, &ast.SplatNode{}, call.Args[1])
	require.Len(t, call.Keywords.Entries, 2)
	assert.Nil(t, call.Keywords.Entries[1].Key)
	require.NotNil(t, call.Block)
	assert.Equal(t, []string{"line"}, call.Block.Params.Req)
	assert.Equal(t, 14, call.MidCodeRange().Pos().Line)

	assert.IsType(t, &ast.IfNode{}, body[10])
	assert.IsType(t, &ast.AndNode{}, body[11])
	masgn := body[12].(*ast.MAsgnNode)
	assert.Equal(t, []string{"a", "b"}, masgn.Targets)
	assert.Equal(t, "c", masgn.Rest)
	assert.Equal(t, "eval", body[13].(*ast.Unsupported).What)
}

func TestLoadVariableReads(t *testing.T) {
	prog, err := LoadProgram("main.yaml", []byte(`
- ivar: "@x"
- ivar: x
- cvar: "@@count"
- "@x"
`))
	require.NoError(t, err)
	body := prog.Body.Body
	require.Len(t, body, 4)

	tests := []struct {
		kind ast.VarKind
		name string
	}{
		{ast.InstanceVar, "@x"},
		{ast.InstanceVar, "@x"},
		{ast.ClassVar, "@@count"},
	}
	for i, tt := range tests {
		read, ok := body[i].(*ast.VarRead)
		require.True(t, ok, "%T", body[i])
		assert.Equal(t, tt.kind, read.Kind)
		assert.Equal(t, tt.name, read.Name)
	}
	assert.Equal(t, "@x", body[3].(*ast.StringLit).Value, "quoted scalars are strings")
}

func TestLoadProgramParams(t *testing.T) {
	prog, err := LoadProgram("main.yaml", []byte(`
- def: f
  params:
    req: [a]
    opt: {b: 1}
    rest: r
    post: [p]
    kwreq: [k]
    kwopt: {o: nil}
    kwrest: kw
    block: blk
`))
	require.NoError(t, err)
	def := prog.Body.Body[0].(*ast.DefNode)
	p := def.Params
	assert.Equal(t, []string{"a"}, p.Req)
	require.Len(t, p.Opt, 1)
	assert.Equal(t, "b", p.Opt[0].Name)
	assert.Equal(t, "r", p.Rest)
	assert.Equal(t, []string{"p"}, p.Post)
	assert.Equal(t, []string{"k"}, p.ReqKeywords)
	require.Len(t, p.OptKeywords, 1)
	assert.IsType(t, &ast.NilLit{}, p.OptKeywords[0].Default)
	assert.Equal(t, "kw", p.RestKeywords)
	assert.Equal(t, "blk", p.Block)
}

func TestLoadProgramSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"not a list", "call: foo", 1},
		{"unknown node", "- what: 1", 1},
		{"missing value", "- 1\n- asgn: x", 2},
		{"bad alias", "- alias: [a]", 1},
		{"bad ivar", "- ivar: \"@1x\"", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProgram("bad.yaml", []byte(tt.src))
			require.Error(t, err)
			var syntax *SyntaxError
			require.True(t, errors.As(err, &syntax), "%v", err)
			assert.Equal(t, "bad.yaml", syntax.File)
			assert.Equal(t, tt.line, syntax.Pos.Line)
		})
	}
}

func TestLoadSignatures(t *testing.T) {
	prog, err := LoadSignatures("app.sig.yaml", []byte(`
- class: Stack[Elem]
  superclass: Object
  include: ["Enumerable[Elem]"]
  methods:
    push: "(Elem) -> self"
    pop:
      - "() -> Elem?"
      - "(Integer) -> Array[Elem]"
  singleton_methods:
    empty: "() -> Stack[untyped]"
  ivars:
    "@items": Array[Elem]
  consts:
    LIMIT: Integer
  aliases:
    peek: last
- const: VERSION
  type: String
- global: $debug
  type: bool
`))
	require.NoError(t, err)
	assert.True(t, prog.Signature)
	require.Len(t, prog.Body.Body, 3)

	decl := prog.Body.Body[0].(*ast.SigModuleDecl)
	assert.Equal(t, []string{"Stack"}, decl.Name)
	assert.Equal(t, []string{"Elem"}, decl.Params)
	assert.Equal(t, ast.KindClass, decl.Kind)
	require.NotNil(t, decl.Superclass)

	var defs []*ast.SigDef
	for _, m := range decl.Members {
		if d, ok := m.(*ast.SigDef); ok {
			defs = append(defs, d)
		}
	}
	require.Len(t, defs, 3)
	assert.Equal(t, "pop", defs[1].Name)
	assert.Len(t, defs[1].Overloads, 2)
	assert.True(t, defs[2].Singleton)

	assert.IsType(t, &ast.SigConstDecl{}, prog.Body.Body[1])
	assert.Equal(t, ast.GlobalVar, prog.Body.Body[2].(*ast.SigVarDecl).Kind)
}

func TestLoadSignatureErrors(t *testing.T) {
	for name, src := range map[string]string{
		"bad method type": "- class: A\n  methods:\n    f: \"(Integer\"",
		"ivar sigil":      "- class: A\n  ivars:\n    items: Integer",
		"unknown decl":    "- klass: A",
		"bad header":      "- class: \"a b\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSignatures("bad.sig.yaml", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestPreludeLoads(t *testing.T) {
	progs, err := Prelude()
	require.NoError(t, err)
	require.NotEmpty(t, progs)

	env := core.NewGlobalEnv(core.DefaultOptions())
	for _, p := range progs {
		assert.True(t, p.Signature)
		assert.True(t, IsSignatureFile(p.Path))
		p.Define(env)
	}
	env.DefineAll()
	for _, p := range progs {
		p.Install(env)
	}
	env.RunAll()

	integer, ok := env.LookupCpath([]string{"Integer"})
	require.True(t, ok)
	assert.Equal(t, "Numeric", integer.Superclass().PathString())
	assert.NotEmpty(t, integer.Method(false, "+").Decls())
}
