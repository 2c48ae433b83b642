package ast_test

import (
	"testing"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/cottand/typeflow/analyzer/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// analyze runs the prelude, the optional signatures and src to a fixed point
func analyze(t *testing.T, src string, sigs ...string) *ast.Program {
	t.Helper()
	env := core.NewGlobalEnv(core.DefaultOptions())
	progs, err := loader.Prelude()
	require.NoError(t, err)
	for _, s := range sigs {
		sig, err := loader.LoadSignatures("app.sig.yaml", []byte(s))
		require.NoError(t, err)
		progs = append(progs, sig)
	}
	prog, err := loader.LoadProgram("main.yaml", []byte(src))
	require.NoError(t, err)
	progs = append(progs, prog)

	for _, p := range progs {
		p.Define(env)
	}
	env.DefineAll()
	for _, p := range progs {
		p.Install(env)
	}
	env.RunAll()
	return prog
}

// typeAt renders the value of the i-th top-level statement, counting from the end when i < 0
func typeAt(prog *ast.Program, i int) string {
	body := prog.Body.Body
	if i < 0 {
		i += len(body)
	}
	return core.ShowTypes(body[i].Ret().Types())
}

func diagnostics(prog *ast.Program) []string {
	var out []string
	ast.Walk(prog.Root(), func(n ast.Node) bool {
		if cs := n.Changes(); cs != nil {
			cs.EachDiagnostic(func(d diag.Diagnostic) {
				out = append(out, d.Error())
			})
		}
		return true
	})
	return out
}

func TestLiterals(t *testing.T) {
	prog := analyze(t, `
- 1
- 2.5
- "text"
- :sym
- nil
- true
- [1, "s"]
- array: [1, {splat: [2.5]}]
- hash: {a: 1, b: "s"}
- hash: [{key: "k", value: 1}]
`)
	tests := []string{
		"Integer",
		"Float",
		"String",
		":sym",
		"nil",
		"true",
		"[Integer, String]",
		"Array[Float | Integer]",
		"{ a: Integer, b: String }",
		"Hash[String, Integer]",
	}
	for i, want := range tests {
		t.Run(want, func(t *testing.T) {
			assert.Equal(t, want, typeAt(prog, i))
		})
	}
}

func TestTupleAndRecordAccess(t *testing.T) {
	prog := analyze(t, `
- asgn: pair
  value: [1, "s"]
- asgn: rec
  value: {hash: {name: "n", age: 3}}
- call: "[]"
  recv: pair
  args: [1]
- call: "[]"
  recv: pair
  args: [5]
- call: "[]"
  recv: rec
  args: [{sym: age}]
- call: "[]"
  recv: rec
  args: [{sym: missing}]
`)
	assert.Equal(t, "String", typeAt(prog, 2))
	assert.Equal(t, "nil", typeAt(prog, 3))
	assert.Equal(t, "Integer", typeAt(prog, 4))
	assert.Equal(t, "nil", typeAt(prog, 5))
	assert.Empty(t, diagnostics(prog))
}

func TestNarrowing(t *testing.T) {
	tests := []struct {
		name string
		cond string
		want string
	}{
		{
			name: "truthiness",
			cond: `
- if: x
  then: [x]
  else: [0]`,
			want: "Integer | String",
		},
		{
			name: "unless nil",
			cond: `
- unless: {call: "nil?", recv: x}
  then: [x]`,
			want: "String?",
		},
		{
			name: "nil",
			cond: `
- if: {call: "nil?", recv: x}
  then: [x]
  else: [1]`,
			want: "Integer?",
		},
		{
			name: "negation",
			cond: `
- if: {not: x}
  then: [1]
  else: [x]`,
			want: "Integer | String",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := analyze(t, "- asgn: x\n  value: {call: gets}"+tt.cond+"\n- x\n")
			assert.Equal(t, tt.want, typeAt(prog, 1))
			assert.Equal(t, "String?", typeAt(prog, -1), "narrowing ends with the branch")
		})
	}
}

func TestIsANarrowing(t *testing.T) {
	prog := analyze(t, `
- asgn: x
  value: 1
- if: {call: gets}
  then: [{asgn: x, value: "s"}]
- x
- if: {call: "is_a?", recv: x, args: [String]}
  then: [x]
  else: [nil]
- if: {call: "is_a?", recv: x, args: [String]}
  then: [nil]
  else: [x]
`)
	assert.Equal(t, "Integer | String", typeAt(prog, 2))
	assert.Equal(t, "String?", typeAt(prog, 3))
	assert.Equal(t, "Integer?", typeAt(prog, 4))
}

func TestBranchAssignments(t *testing.T) {
	prog := analyze(t, `
- if: {call: gets}
  then: [{asgn: y, value: 1}]
- y
- if: {call: gets}
  then: [{asgn: z, value: 1}]
  else: [{asgn: z, value: "s"}]
- z
`)
	assert.Equal(t, "Integer?", typeAt(prog, 1), "a variable bound on one path is nil on the other")
	assert.Equal(t, "Integer | String", typeAt(prog, 3))
}

func TestAndOr(t *testing.T) {
	prog := analyze(t, `
- asgn: x
  value: {call: gets}
- or: [x, 1]
- and: [x, 1]
- and: [x, {call: upcase, recv: x}]
`)
	assert.Equal(t, "Integer | String", typeAt(prog, 1))
	assert.Equal(t, "Integer?", typeAt(prog, 2))
	assert.Equal(t, "String?", typeAt(prog, 3))
	assert.Empty(t, diagnostics(prog), "x is narrowed to String on the right of &&")
}

func TestMultipleAssignment(t *testing.T) {
	prog := analyze(t, `
- masgn: [a, b]
  rest: c
  value: [1, "s", {sym: sym}]
- a
- b
- c
- masgn: [d, e]
  value: {call: "[]", recv: Array, args: [1, 2]}
- d
- masgn: [f, g]
  value: 1
- g
`)
	assert.Equal(t, "Integer", typeAt(prog, 1))
	assert.Equal(t, "String", typeAt(prog, 2))
	assert.Equal(t, "Array[:sym]", typeAt(prog, 3))
	assert.Equal(t, "Integer", typeAt(prog, 5))
	assert.Equal(t, "untyped", typeAt(prog, 7), "a scalar only fills the first target")
}

func TestBlocks(t *testing.T) {
	prog := analyze(t, `
- def: twice
  body: [{yield: [1]}]
- call: twice
  block:
    params: [n]
    body: [{call: to_s, recv: n}]
- asgn: y
  value: 1
- call: each
  recv: [1, 2]
  block:
    params: [e]
    body: [{asgn: y, value: "s"}, y]
- y
- call: map
  recv: [1, 2]
  block:
    params: [e]
    body: [{call: to_s, recv: e}]
`)
	assert.Equal(t, "String", typeAt(prog, 1))
	assert.Equal(t, "Integer", typeAt(prog, 4), "block assignments stay in the block")
	assert.Equal(t, "Array[String]", typeAt(prog, 5))
	assert.Empty(t, diagnostics(prog))
}

func TestClassesAndInstanceVariables(t *testing.T) {
	prog := analyze(t, `
- class: Point
  body:
    - def: initialize
      params: [x]
      body: [{asgn: "@x", value: x}]
    - def: x
      body: [{ivar: "@x"}]
    - defs: origin
      body: [{call: new, args: [0]}]
- call: x
  recv: {call: new, recv: Point, args: [1]}
- call: origin
  recv: Point
- call: y
  recv: {call: origin, recv: Point}
`)
	assert.Equal(t, "Integer", typeAt(prog, 1))
	assert.Equal(t, "Point", typeAt(prog, 2))
	assert.Equal(t, []string{"undefined method: Point#y"}, diagnostics(prog))
}

func TestSignatureDeclarations(t *testing.T) {
	sigs := `
- class: Greeter
  methods:
    greet: ["(String) -> String", "(Integer) -> Symbol"]
  ivars:
    "@name": String
- const: MAX
  type: Integer
- global: $level
  type: Float
`
	prog := analyze(t, `
- asgn: g
  value: {call: new, recv: Greeter}
- call: greet
  recv: g
  args: ["x"]
- call: greet
  recv: g
  args: [1]
- MAX
- $level
- call: greet
  recv: g
  args: [2.5]
`, sigs)
	assert.Equal(t, "String", typeAt(prog, 1))
	assert.Equal(t, "Symbol", typeAt(prog, 2))
	assert.Equal(t, "Integer", typeAt(prog, 3))
	assert.Equal(t, "Float", typeAt(prog, 4))
	assert.Equal(t, []string{"failed to resolve overloads"}, diagnostics(prog))
}

func TestOverloadsByBlockReturn(t *testing.T) {
	sigs := `
- class: Converter
  methods:
    convert:
      - "() { (Integer) -> Integer } -> String"
      - "() { (Integer) -> String } -> Integer"
`
	prog := analyze(t, `
- asgn: c
  value: {call: new, recv: Converter}
- call: convert
  recv: c
  block:
    params: [n]
    body: [{call: to_s, recv: n}]
- call: convert
  recv: c
  block:
    params: [n]
    body: [n]
`, sigs)
	assert.Equal(t, "Integer", typeAt(prog, 1))
	assert.Equal(t, "String", typeAt(prog, 2))
	assert.Empty(t, diagnostics(prog))
}

func TestUnsupported(t *testing.T) {
	prog := analyze(t, `
- unsupported: eval
  body:
    - call: shout
      recv: 1
`)
	assert.Equal(t, "untyped", typeAt(prog, 0))
	assert.ElementsMatch(t, []string{
		"eval is not supported; treated as untyped",
		"undefined method: Integer#shout",
	}, diagnostics(prog))
}

func TestNodeAt(t *testing.T) {
	prog, err := loader.LoadProgram("main.yaml", []byte(`
- call: puts
  args: [value]
`))
	require.NoError(t, err)

	n := prog.NodeAt(ir.Position{Line: 3, Column: 10})
	require.NotNil(t, n)
	read, ok := n.(*ast.LocalRead)
	require.True(t, ok, "%T", n)
	assert.Equal(t, "value", read.Name)

	_, ok = prog.NodeAt(ir.Position{Line: 2, Column: 3}).(*ast.CallNode)
	assert.True(t, ok)
}
