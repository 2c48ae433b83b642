package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readConst(env *GlobalEnv, read *ConstRead) (*ConstReadBox, *ChangeSet) {
	var box *ConstReadBox
	cs := install(env, func(cs *ChangeSet) {
		box = cs.AddConstReadBox(env, read)
	})
	return box, cs
}

func TestLexicalReadPrefersInnerScope(t *testing.T) {
	env := newTestEnv(t)
	outer, _ := declareClass(env, []string{"Bar"}, "")
	declareModule(env, []string{"Foo"})
	settle(t, env)

	cref := ToplevelCRef().Extend([]string{"Foo"}, false)
	read := NewConstRead(env, newNode("Bar"), "Bar", cref)
	box, _ := readConst(env, read)
	settle(t, env)
	assert.Equal(t, outer, read.Module())
	assert.Equal(t, "singleton(Bar)", box.Ret().Show())

	inner, origin := declareClass(env, []string{"Foo", "Bar"}, "")
	settle(t, env)
	assert.Equal(t, inner, read.Module(), "Foo::Bar shadows ::Bar")
	assert.Equal(t, "singleton(Foo::Bar)", box.Ret().Show())

	inner.RemoveDecl(env, origin)
	settle(t, env)
	assert.Equal(t, outer, read.Module())
}

func TestReadThroughSuperclass(t *testing.T) {
	env := newTestEnv(t)
	declareClass(env, []string{"Base"}, "")
	declareClass(env, []string{"Base", "Inner"}, "")
	declareClass(env, []string{"Sub"}, "Base")
	settle(t, env)

	cases := []struct {
		name string
		read func() *ConstRead
	}{
		{"lexical in subclass body", func() *ConstRead {
			return NewConstRead(env, newNode("Inner"), "Inner", ToplevelCRef().Extend([]string{"Sub"}, false))
		}},
		{"scoped on subclass", func() *ConstRead {
			base := NewConstRead(env, newNode("Sub"), "Sub", ToplevelCRef())
			return NewScopedConstRead(env, newNode("Sub::Inner"), "Inner", base)
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			read := c.read()
			settle(t, env)
			require.NotNil(t, read.Module())
			assert.Equal(t, "Base::Inner", read.Module().PathString())
		})
	}
}

func TestScopedReadFollowsBase(t *testing.T) {
	env := newTestEnv(t)
	declareModule(env, []string{"A"})
	settle(t, env)
	base := NewConstRead(env, newNode("A"), "A", ToplevelCRef())
	read := NewScopedConstRead(env, newNode("A::X"), "X", base)
	box, cs := readConst(env, read)
	settle(t, env)
	assert.True(t, read.Failed())
	assert.Equal(t, []string{"uninitialized constant X"}, diagnosticMessages(cs))

	x, _ := declareModule(env, []string{"A", "X"})
	settle(t, env)
	assert.Equal(t, x, read.Module())
	assert.Equal(t, "singleton(A::X)", box.Ret().Show())
	assert.Empty(t, diagnostics(cs))
	assert.Equal(t, "A::X", read.String())
}

func TestReadConstantValue(t *testing.T) {
	env := newTestEnv(t)
	ve := env.Root().Const(env, "LIMIT")
	read := NewConstRead(env, newNode("LIMIT"), "LIMIT", ToplevelCRef())
	box, _ := readConst(env, read)
	settle(t, env)
	assert.True(t, box.Ret().Empty())

	def := newNode("LIMIT = 1")
	ve.AddDef(env, def)
	source(env, env.InstanceOf(env.ModInteger)).AddEdge(env, ve.Vertex())
	settle(t, env)
	assert.Equal(t, ve, read.Value())
	assert.Equal(t, "Integer", box.Ret().Show())

	ve.RemoveDef(env, def)
	settle(t, env)
	assert.Nil(t, read.Value())
	assert.True(t, box.Ret().Empty())
}

func TestDestroyedReadUnregisters(t *testing.T) {
	env := newTestEnv(t)
	read := NewConstRead(env, newNode("Nope"), "Nope", ToplevelCRef())
	settle(t, env)
	assert.Contains(t, env.Root().allStaticReads(), read)

	read.Destroy(env)
	assert.NotContains(t, env.Root().allStaticReads(), read)
	assert.Panics(t, func() { read.Destroy(env) })
}
