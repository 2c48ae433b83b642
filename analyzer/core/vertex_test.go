package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexRefCounting(t *testing.T) {
	env := newTestEnv(t)
	integer := env.InstanceOf(env.ModInteger)

	a := source(env, integer)
	b := source(env, integer, env.InstanceOf(env.ModString))
	v := NewVertex(env, nil)

	a.AddEdge(env, v)
	b.AddEdge(env, v)
	assert.Equal(t, "Integer | String", v.Show())
	assert.Len(t, v.Sources(integer), 2)

	b.RemoveEdge(env, v)
	assert.Equal(t, "Integer", v.Show(), "a still justifies Integer")

	a.RemoveEdge(env, v)
	assert.True(t, v.Empty())
	assert.Equal(t, "untyped", v.Show())
}

func TestVertexPropagatesDownstream(t *testing.T) {
	env := newTestEnv(t)
	src := source(env, env.InstanceOf(env.ModInteger))
	a, b, c := NewVertex(env, nil), NewVertex(env, nil), NewVertex(env, nil)

	a.AddEdge(env, b)
	b.AddEdge(env, c)
	src.AddEdge(env, a)
	assert.Equal(t, "Integer", c.Show())

	src.RemoveEdge(env, a)
	assert.True(t, c.Empty())
}

func TestVertexCycleTerminates(t *testing.T) {
	env := newTestEnv(t)
	src := source(env, env.InstanceOf(env.ModInteger))
	a, b := NewVertex(env, nil), NewVertex(env, nil)

	a.AddEdge(env, b)
	b.AddEdge(env, a)
	src.AddEdge(env, a)
	assert.Equal(t, "Integer", a.Show())
	assert.Equal(t, "Integer", b.Show())
}

func TestVertexDuplicateEdgeIsNoop(t *testing.T) {
	env := newTestEnv(t)
	src := source(env, env.InstanceOf(env.ModInteger))
	v := NewVertex(env, nil)

	src.AddEdge(env, v)
	src.AddEdge(env, v)
	assert.Len(t, src.Next(), 1)

	src.RemoveEdge(env, v)
	assert.True(t, v.Empty())
}

func TestVertexRemovingMissingEdgePanics(t *testing.T) {
	env := newTestEnv(t)
	src := source(env, env.InstanceOf(env.ModInteger))
	v := NewVertex(env, nil)

	defer func() {
		recovered := recover()
		require.NotNil(t, recovered)
		inv, ok := AsInvariantError(recovered)
		require.True(t, ok)
		assert.Contains(t, inv.Message, "does not exist")
	}()
	src.RemoveEdge(env, v)
}

func TestShowTypes(t *testing.T) {
	env := newTestEnv(t)
	integer := env.InstanceOf(env.ModInteger)
	str := env.InstanceOf(env.ModString)

	cases := []struct {
		name     string
		types    []Type
		expected string
	}{
		{"empty", nil, "untyped"},
		{"single", []Type{integer}, "Integer"},
		{"sorted union", []Type{str, integer}, "Integer | String"},
		{"optional", []Type{integer, env.NilType()}, "Integer?"},
		{"optional union", []Type{str, env.NilType(), integer}, "(Integer | String)?"},
		{"only nil", []Type{env.NilType()}, "nil"},
		{"bool", []Type{env.TrueType(), env.FalseType()}, "bool"},
		{"true", []Type{env.TrueType()}, "true"},
		{"bot", []Type{BotType()}, "bot"},
		{"bot absorbed", []Type{BotType(), integer}, "Integer"},
		{"singleton", []Type{env.SingletonOf(env.ModString)}, "singleton(String)"},
		{"symbol", []Type{NewSymbol("a")}, ":a"},
		{"array", []Type{env.ArrayOf(source(env, integer))}, "Array[Integer]"},
		{"hash of untyped", []Type{NewInstance(env.ModHash)}, "Hash[untyped, untyped]"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, ShowTypes(c.types))
		})
	}
}

func TestShowRecursiveVertex(t *testing.T) {
	env := newTestEnv(t)
	v := NewVertex(env, nil)
	source(env, env.ArrayOf(v)).AddEdge(env, v)
	assert.Equal(t, "Array[untyped]", v.Show())
}

func TestTypeHashIdentity(t *testing.T) {
	env := newTestEnv(t)
	elem := source(env, env.InstanceOf(env.ModInteger))

	assert.Equal(t, env.ArrayOf(elem).Hash(), NewInstance(env.ModArray, elem).Hash())
	assert.NotEqual(t, env.ArrayOf(elem).Hash(), env.ArrayOf(source(env, env.InstanceOf(env.ModInteger))).Hash(),
		"types hash the identity of their vertices")
	assert.NotEqual(t, env.InstanceOf(env.ModInteger).Hash(), env.SingletonOf(env.ModInteger).Hash())
	assert.Equal(t, NewSymbol("a").Hash(), NewSymbol("a").Hash())
}

func TestTypesWithCollidingHashesStayApart(t *testing.T) {
	env := newTestEnv(t)
	a := &Symbol{Name: "a", hash: 7}
	b := &Symbol{Name: "b", hash: 7}
	require.False(t, sameType(a, b))
	assert.NotEqual(t, typeKey(a), typeKey(b))

	v := NewVertex(env, nil)
	srcA, srcB := source(env, a), source(env, b)
	srcA.AddEdge(env, v)
	srcB.AddEdge(env, v)
	assert.Len(t, v.Types(), 2)
	assert.True(t, v.HasType(&Symbol{Name: "a", hash: 7}))

	srcA.RemoveEdge(env, v)
	assert.Equal(t, []Type{b}, v.Types())

	cs := NewChangeSet(newNode("sources"), nil)
	first := cs.NewSource(env, a)
	assert.NotSame(t, first, cs.NewSource(env, b))
	assert.Same(t, first, cs.NewSource(env, a))
}
