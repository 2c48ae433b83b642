package core

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallBindsArgumentsToDefinition(t *testing.T) {
	env := newTestEnv(t)
	foo, _ := defineMethod(env, env.ModObject, "foo", 1, 0)
	arg := source(env, env.InstanceOf(env.ModInteger))
	self := source(env, env.InstanceOf(env.ModObject))
	box, cs := call(env, self, "foo", arg)
	settle(t, env)

	assert.Equal(t, "(Integer) -> Integer", foo.Show())
	assert.Equal(t, "Integer", box.Ret().Show())
	assert.Len(t, box.Resolved(), 1)
	assert.Empty(t, diagnostics(cs))

	// replacing the call retracts Integer everywhere
	uninstall(env, cs)
	box, _ = call(env, self, "foo", source(env, env.InstanceOf(env.ModString)))
	settle(t, env)
	assert.Equal(t, "(String) -> String", foo.Show())
	assert.Equal(t, "String", box.Ret().Show())
}

func TestCallWrongArity(t *testing.T) {
	env := newTestEnv(t)
	defineMethod(env, env.ModObject, "foo", 2, 0)
	self := source(env, env.InstanceOf(env.ModObject))
	box, cs := call(env, self, "foo", source(env, env.InstanceOf(env.ModInteger)))
	settle(t, env)

	assert.True(t, box.Ret().Empty())
	assert.Empty(t, box.Resolved(), "a definition that rejects the arguments does not resolve the call")
	assert.Equal(t, []string{"wrong number of arguments (1 for 2)"}, diagnosticMessages(cs))
}

func TestUndefinedMethodIsRateLimited(t *testing.T) {
	env := newTestEnv(t)
	var types []Type
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		mod, _ := declareClass(env, []string{name}, "")
		types = append(types, env.InstanceOf(mod))
	}
	settle(t, env)
	_, cs := call(env, source(env, types...), "nope")
	settle(t, env)

	msgs := diagnosticMessages(cs)
	require.Len(t, msgs, env.Options.DiagnosticLimit+1)
	assert.Equal(t, "undefined method: A#nope", msgs[0])
	assert.Equal(t, "... and 2 errors omitted", msgs[len(msgs)-1])
}

func TestCallRerunsWhenMethodAppears(t *testing.T) {
	env := newTestEnv(t)
	c, _ := declareClass(env, []string{"C"}, "")
	settle(t, env)
	box, cs := call(env, source(env, env.InstanceOf(c)), "foo", source(env, env.InstanceOf(env.ModInteger)))
	settle(t, env)
	assert.Len(t, diagnostics(cs), 1)

	_, def := defineMethod(env, c, "foo", 1, 0)
	settle(t, env)
	assert.Empty(t, diagnostics(cs))
	assert.Equal(t, "Integer", box.Ret().Show())

	uninstall(env, def)
	settle(t, env)
	assert.True(t, box.Ret().Empty())
	assert.Len(t, diagnostics(cs), 1)
}

func TestCallThroughIncludedModule(t *testing.T) {
	env := newTestEnv(t)
	m, _ := declareModule(env, []string{"M"})
	c, _ := declareClass(env, []string{"C"}, "")
	inc := include(env, c, "M")
	defineMethod(env, m, "foo", 1, 0)
	settle(t, env)

	box, cs := call(env, source(env, env.InstanceOf(c)), "foo", source(env, env.InstanceOf(env.ModInteger)))
	settle(t, env)
	assert.Equal(t, "Integer", box.Ret().Show())

	c.RemoveInclude(env, inc)
	settle(t, env)
	assert.True(t, box.Ret().Empty())
	assert.Equal(t, []string{"undefined method: C#foo"}, diagnosticMessages(cs))
}

func TestClassNewCallsInitialize(t *testing.T) {
	env := newTestEnv(t)
	c, _ := declareClass(env, []string{"C"}, "")
	initialize, _ := defineMethod(env, c, "initialize", 1, -1)
	settle(t, env)

	box, cs := call(env, source(env, env.SingletonOf(c)), "new", source(env, env.InstanceOf(env.ModInteger)))
	settle(t, env)
	assert.Equal(t, "C", box.Ret().Show())
	assert.Equal(t, "(Integer) -> void", initialize.Show())
	assert.Empty(t, diagnostics(cs))
}

func TestOverloadsUnionMatches(t *testing.T) {
	env := newTestEnv(t)
	declareMethod(env, env.ModObject, false, "foo",
		&MethodType{Req: []SigType{instanceSig(env, "Integer")}, Ret: instanceSig(env, "String")},
		&MethodType{Req: []SigType{instanceSig(env, "String")}, Ret: instanceSig(env, "Integer")},
	)
	settle(t, env)
	self := source(env, env.InstanceOf(env.ModObject))

	cases := []struct {
		name     string
		arg      []Type
		expected string
		failed   bool
	}{
		{"integer", []Type{env.InstanceOf(env.ModInteger)}, "String", false},
		{"string", []Type{env.InstanceOf(env.ModString)}, "Integer", false},
		{"union", []Type{env.InstanceOf(env.ModInteger), env.InstanceOf(env.ModString)}, "Integer | String", false},
		{"symbol", []Type{NewSymbol("a")}, "untyped", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			box, cs := call(env, self, "foo", source(env, c.arg...))
			settle(t, env)
			assert.Equal(t, c.expected, box.Ret().Show())
			if c.failed {
				assert.Equal(t, []string{"failed to resolve overloads"}, diagnosticMessages(cs))
			} else {
				assert.Empty(t, diagnostics(cs))
			}
		})
	}
}

func TestOverloadsMatchBlockReturn(t *testing.T) {
	env := newTestEnv(t)
	declareMethod(env, env.ModObject, false, "convert",
		&MethodType{
			Block: &SigProc{Params: []SigType{instanceSig(env, "Integer")}, Ret: instanceSig(env, "Integer")},
			Ret:   instanceSig(env, "String"),
		},
		&MethodType{
			Block: &SigProc{Params: []SigType{instanceSig(env, "Integer")}, Ret: instanceSig(env, "String")},
			Ret:   instanceSig(env, "Integer"),
		},
	)
	settle(t, env)

	var box *MethodCallBox
	var param, blockRet *Vertex
	cs := install(env, func(cs *ChangeSet) {
		param = NewVertex(env, cs.Node())
		blockRet = NewVertex(env, cs.Node())
		block := cs.NewSource(env, NewProc(NewSourceBlock(env, cs.Node(), []*Vertex{param}, blockRet)))
		box = cs.AddMethodCallBox(env, source(env, env.InstanceOf(env.ModObject)), "convert", &ActualArgs{Block: block}, false)
	})
	settle(t, env)
	assert.Equal(t, "Integer | String", box.Ret().Show(), "a block with no result yet fits every overload")
	assert.Equal(t, "Integer", param.Show())

	strs := source(env, env.InstanceOf(env.ModString))
	strs.AddEdge(env, blockRet)
	settle(t, env)
	assert.Equal(t, "Integer", box.Ret().Show())
	assert.Empty(t, diagnostics(cs))

	strs.RemoveEdge(env, blockRet)
	source(env, NewSymbol("s")).AddEdge(env, blockRet)
	settle(t, env)
	assert.True(t, box.Ret().Empty())
	assert.Equal(t, []string{"failed to resolve overloads"}, diagnosticMessages(cs))
}

func TestGenericMethodInfersFromBlock(t *testing.T) {
	env := newTestEnv(t)
	// Array[Elem]#map: [U] () { (Elem) -> U } -> Array[U]
	declareMethod(env, env.ModArray, false, "map", &MethodType{
		TypeParams: []string{"U"},
		Block:      &SigProc{Params: []SigType{&SigVar{Name: "Elem"}}, Ret: &SigVar{Name: "U"}},
		Ret:        instanceSig(env, "Array", &SigVar{Name: "U"}),
	})
	settle(t, env)

	recv := source(env, env.ArrayOf(source(env, env.InstanceOf(env.ModInteger))))
	var box *MethodCallBox
	var param *Vertex
	install(env, func(cs *ChangeSet) {
		param = NewVertex(env, cs.Node())
		blockRet := source(env, env.InstanceOf(env.ModString))
		ret := NewVertex(env, cs.Node())
		cs.AddEdge(blockRet, ret)
		block := cs.NewSource(env, NewProc(NewSourceBlock(env, cs.Node(), []*Vertex{param}, ret)))
		box = cs.AddMethodCallBox(env, recv, "map", &ActualArgs{Block: block}, false)
	})
	settle(t, env)

	assert.Equal(t, "Integer", param.Show())
	assert.Equal(t, "Array[String]", box.Ret().Show())
}

func TestAliasResolvesOldName(t *testing.T) {
	env := newTestEnv(t)
	defineMethod(env, env.ModObject, "foo", 1, 0)
	install(env, func(cs *ChangeSet) {
		cs.AddMethodAliasBox(env, env.ModObject, false, "bar", "foo")
	})
	settle(t, env)

	box, _ := call(env, source(env, env.InstanceOf(env.ModObject)), "bar", source(env, env.InstanceOf(env.ModInteger)))
	settle(t, env)
	assert.Equal(t, "Integer", box.Ret().Show())
}

func TestAliasChainIsBounded(t *testing.T) {
	env := newTestEnv(t)
	install(env, func(cs *ChangeSet) {
		cs.AddMethodAliasBox(env, env.ModObject, false, "a", "b")
		cs.AddMethodAliasBox(env, env.ModObject, false, "b", "a")
	})
	settle(t, env)

	box, cs := call(env, source(env, env.InstanceOf(env.ModObject)), "a")
	settle(t, env)
	assert.True(t, box.Ret().Empty())
	assert.Len(t, diagnostics(cs), 1)
}

func TestTupleBuiltins(t *testing.T) {
	env := newTestEnv(t)
	integer := source(env, env.InstanceOf(env.ModInteger))
	str := source(env, env.InstanceOf(env.ModString))
	elems := []BasicVertex{integer, str}
	union := NewVertex(env, nil)
	integer.AddEdge(env, union)
	str.AddEdge(env, union)
	tuple := source(env, NewTuple(elems, env.ArrayOf(union)))

	cases := []struct {
		index    int
		expected string
	}{
		{0, "Integer"},
		{1, "String"},
		{-1, "String"},
		{5, "nil"},
	}
	for _, c := range cases {
		t.Run(strconv.Itoa(c.index), func(t *testing.T) {
			var box *MethodCallBox
			install(env, func(cs *ChangeSet) {
				idx := &intNode{fakeNode: newNode("idx"), value: c.index}
				box = cs.AddMethodCallBox(env, tuple, "[]", &ActualArgs{
					Positionals: []BasicVertex{integer},
					Nodes:       []Node{idx},
				}, false)
			})
			settle(t, env)
			assert.Equal(t, c.expected, box.Ret().Show())
		})
	}
}

func TestRecordBuiltin(t *testing.T) {
	env := newTestEnv(t)
	name := source(env, env.InstanceOf(env.ModString))
	record := source(env, NewRecord([]RecordField{{Name: "name", Vtx: name}}, env.HashOf(source(env, env.InstanceOf(env.ModSymbol)), name)))

	var box *MethodCallBox
	install(env, func(cs *ChangeSet) {
		key := &symNode{fakeNode: newNode("key"), value: "name"}
		box = cs.AddMethodCallBox(env, record, "[]", &ActualArgs{
			Positionals: []BasicVertex{source(env, NewSymbol("name"))},
			Nodes:       []Node{key},
		}, false)
	})
	settle(t, env)
	assert.Equal(t, "String", box.Ret().Show())
}

func TestProcCall(t *testing.T) {
	env := newTestEnv(t)
	var box *MethodCallBox
	var param *Vertex
	install(env, func(cs *ChangeSet) {
		param = NewVertex(env, cs.Node())
		proc := cs.NewSource(env, NewProc(NewSourceBlock(env, cs.Node(), []*Vertex{param}, param)))
		box = cs.AddMethodCallBox(env, proc, "call", &ActualArgs{
			Positionals: []BasicVertex{source(env, env.InstanceOf(env.ModFloat))},
		}, false)
	})
	settle(t, env)
	assert.Equal(t, "Float", param.Show())
	assert.Equal(t, "Float", box.Ret().Show())
}

func TestDeclaredDefinitionChecksReturn(t *testing.T) {
	env := newTestEnv(t)
	declareMethod(env, env.ModObject, false, "foo", &MethodType{
		Req: []SigType{instanceSig(env, "Integer")},
		Ret: instanceSig(env, "String"),
	})
	foo, def := defineMethod(env, env.ModObject, "foo", 1, 0)
	settle(t, env)

	assert.Equal(t, "(Integer) -> Integer", foo.Show(), "the declared parameter flows into the formal")
	assert.Equal(t, []string{"expected: String; actual: Integer"}, diagnosticMessages(foo.Changes()))
	assert.Equal(t, diagnosticMessages(foo.Changes()), diagnosticMessages(def), "the owner reports the diagnostics of its boxes")
}

func TestSubclassDispatch(t *testing.T) {
	env := newTestEnv(t)
	base, _ := declareClass(env, []string{"Base"}, "")
	sub, _ := declareClass(env, []string{"Sub"}, "Base")
	defineMethod(env, base, "foo", 1, 0)
	settle(t, env)

	var box *MethodCallBox
	install(env, func(cs *ChangeSet) {
		box = cs.AddMethodCallBox(env, source(env, env.InstanceOf(base)), "foo", &ActualArgs{
			Positionals: []BasicVertex{source(env, env.InstanceOf(env.ModInteger))},
		}, true)
	})
	settle(t, env)
	assert.Equal(t, "Integer", box.Ret().Show())

	install(env, func(cs *ChangeSet) {
		formals := &FormalArgs{Req: []*Vertex{NewVertex(env, cs.Node())}}
		ret := NewVertex(env, cs.Node())
		cs.AddEdge(cs.NewSource(env, env.InstanceOf(env.ModString)), ret)
		cs.AddMethodDefBox(env, sub, false, "foo", formals, ret)
	})
	settle(t, env)
	assert.Equal(t, "Integer | String", box.Ret().Show(), "the redefinition in Sub is reached too")
}

func TestSplatArgumentsFillRest(t *testing.T) {
	env := newTestEnv(t)
	var foo *MethodDefBox
	install(env, func(cs *ChangeSet) {
		formals := &FormalArgs{
			Req:  []*Vertex{NewVertex(env, cs.Node())},
			Rest: NewVertex(env, cs.Node()),
		}
		foo = cs.AddMethodDefBox(env, env.ModObject, false, "foo", formals, NewVertex(env, cs.Node()))
	})
	settle(t, env)

	floats := source(env, env.ArrayOf(source(env, env.InstanceOf(env.ModFloat))))
	install(env, func(cs *ChangeSet) {
		cs.AddMethodCallBox(env, source(env, env.InstanceOf(env.ModObject)), "foo", &ActualArgs{
			Positionals: []BasicVertex{source(env, env.InstanceOf(env.ModInteger)), floats},
			SplatFlags:  []bool{false, true},
		}, false)
	})
	settle(t, env)
	assert.Equal(t, "(Integer, *Float) -> untyped", foo.Show())
}

func TestSplatsMayAllBeEmpty(t *testing.T) {
	env := newTestEnv(t)
	declareMethod(env, env.ModObject, false, "one", &MethodType{
		Req: []SigType{instanceSig(env, "Integer")},
		Ret: instanceSig(env, "String"),
	})
	settle(t, env)
	integer := source(env, env.InstanceOf(env.ModInteger))
	ints := source(env, env.ArrayOf(integer))

	cases := []struct {
		name     string
		args     []BasicVertex
		splats   []bool
		expected string
	}{
		{"only splats", []BasicVertex{ints, ints, ints}, []bool{true, true, true}, "String"},
		{"splat after the formals", []BasicVertex{integer, ints}, []bool{false, true}, "String"},
		{"too many plain arguments", []BasicVertex{integer, integer, ints}, []bool{false, false, true}, "untyped"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var box *MethodCallBox
			install(env, func(cs *ChangeSet) {
				box = cs.AddMethodCallBox(env, source(env, env.InstanceOf(env.ModObject)), "one", &ActualArgs{
					Positionals: c.args,
					SplatFlags:  c.splats,
				}, false)
			})
			settle(t, env)
			assert.Equal(t, c.expected, box.Ret().Show())
		})
	}
}

func TestKeywordArguments(t *testing.T) {
	env := newTestEnv(t)
	var foo *MethodDefBox
	install(env, func(cs *ChangeSet) {
		formals := &FormalArgs{
			ReqKeywords: []KeywordParam{{Name: "a", Vtx: NewVertex(env, cs.Node())}},
			OptKeywords: []KeywordParam{{Name: "b", Vtx: NewVertex(env, cs.Node())}},
		}
		foo = cs.AddMethodDefBox(env, env.ModObject, false, "foo", formals, NewVertex(env, cs.Node()))
	})
	settle(t, env)

	a := source(env, env.InstanceOf(env.ModInteger))
	kw := source(env, NewRecord([]RecordField{{Name: "a", Vtx: a}}, env.HashOf(source(env, env.InstanceOf(env.ModSymbol)), a)))
	install(env, func(cs *ChangeSet) {
		cs.AddMethodCallBox(env, source(env, env.InstanceOf(env.ModObject)), "foo", &ActualArgs{Keywords: kw}, false)
	})
	settle(t, env)
	assert.Equal(t, "(a: Integer, ?b: untyped) -> untyped", foo.Show())
}
