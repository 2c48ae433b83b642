package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ancestorNames(env *GlobalEnv, mod *ModuleEntity, singleton bool) []string {
	var names []string
	env.eachAncestor(mod, singleton, func(m *ModuleEntity, s bool) bool {
		name := m.PathString()
		if s {
			name = "singleton(" + name + ")"
		}
		names = append(names, name)
		return true
	})
	return names
}

func TestSuperclassResolvedOutOfOrder(t *testing.T) {
	env := newTestEnv(t)
	a, _ := declareClass(env, []string{"A"}, "B")
	settle(t, env)
	assert.True(t, a.SuperclassFailed(), "B does not exist yet")

	b, _ := declareClass(env, []string{"B"}, "")
	settle(t, env)
	assert.False(t, a.SuperclassFailed())
	assert.Equal(t, b, a.Superclass())
	assert.Equal(t, []*ModuleEntity{a}, b.Subclasses())
	assert.True(t, env.IsSubclassOf(a, env.ModObject))
}

func TestCircularInheritance(t *testing.T) {
	env := newTestEnv(t)
	a, aOrigin := declareClass(env, []string{"A"}, "B")
	b, _ := declareClass(env, []string{"B"}, "A")
	var checks []*ChangeSet
	for _, pair := range []struct {
		mod    *ModuleEntity
		origin ModuleOrigin
	}{{a, aOrigin}, {b, b.Decls()[0]}} {
		checks = append(checks, install(env, func(cs *ChangeSet) {
			cs.AddSuperclassCheckBox(env, pair.mod, pair.origin)
		}))
	}
	settle(t, env)

	for _, mod := range []*ModuleEntity{a, b} {
		assert.Nil(t, mod.Superclass(), mod.PathString())
		assert.True(t, mod.SuperclassFailed(), mod.PathString())
	}
	for _, cs := range checks {
		assert.Equal(t, []string{"failed to identify its superclass"}, diagnosticMessages(cs))
	}

	// dropping A's superclass breaks the cycle
	a.RemoveDecl(env, aOrigin)
	a.AddDecl(env, &fakeOrigin{fakeNode: newNode("class A"), class: true})
	settle(t, env)
	assert.Equal(t, env.ModObject, a.Superclass())
	assert.Equal(t, a, b.Superclass())
	assert.Empty(t, diagnosticMessages(checks[1]))
}

func TestAncestorOrder(t *testing.T) {
	env := newTestEnv(t)
	declareModule(env, []string{"I1"})
	declareModule(env, []string{"I2"})
	declareModule(env, []string{"P"})
	c, _ := declareClass(env, []string{"C"}, "")
	include(env, c, "I1")
	include(env, c, "I2")
	prepend := &fakeInclude{fakeNode: newNode("prepend"), prepend: true}
	prepend.reads = []*ConstRead{NewConstRead(env, prepend, "P", ToplevelCRef())}
	c.AddInclude(env, prepend)
	settle(t, env)

	assert.Equal(t, []string{"P", "C", "I2", "I1", "Object", "BasicObject"}, ancestorNames(env, c, false))
	assert.Equal(t, []string{
		"singleton(C)", "singleton(Object)", "singleton(BasicObject)",
		"Class", "Module", "Object", "BasicObject",
	}, ancestorNames(env, c, true))
}

func TestIncludeRemovalUpdatesAncestors(t *testing.T) {
	env := newTestEnv(t)
	m, _ := declareModule(env, []string{"M"})
	c, _ := declareClass(env, []string{"C"}, "")
	inc := include(env, c, "M")
	settle(t, env)
	require.Contains(t, ancestorNames(env, c, false), "M")
	assert.True(t, m.includers.Contains(c))

	c.RemoveInclude(env, inc)
	settle(t, env)
	assert.NotContains(t, ancestorNames(env, c, false), "M")
	assert.False(t, m.includers.Contains(c))
}

func TestModuleExistence(t *testing.T) {
	env := newTestEnv(t)
	foo := env.ResolveCpath([]string{"Foo", "Bar"})
	assert.False(t, foo.Exist())
	assert.False(t, foo.Outer().Exist())
	assert.Equal(t, "Foo::Bar", foo.PathString())

	_, origin := declareClass(env, []string{"Foo", "Bar"}, "")
	assert.True(t, foo.Exist())
	foo.RemoveDecl(env, origin)
	assert.False(t, foo.Exist())

	looked, ok := env.LookupCpath([]string{"Object", "Foo", "Bar"})
	assert.True(t, ok)
	assert.Equal(t, foo, looked)
	_, ok = env.LookupCpath([]string{"Nope"})
	assert.False(t, ok)
}

func TestDuplicateOriginPanics(t *testing.T) {
	env := newTestEnv(t)
	c, origin := declareClass(env, []string{"C"}, "")
	assert.Panics(t, func() { c.AddDecl(env, origin) })
}

func TestMaxRunsBoundsDrain(t *testing.T) {
	env := newTestEnv(t)
	env.Options.MaxRuns = 1
	for range 3 {
		install(env, func(cs *ChangeSet) {
			cs.AddGVarReadBox(env, "$x")
		})
	}
	env.RunAll()
	assert.False(t, env.Pending(), "the queue is left drained")
}
