package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAFilter(t *testing.T) {
	env := newTestEnv(t)
	input := NewVertex(env, nil)
	source(env, env.InstanceOf(env.ModInteger), env.InstanceOf(env.ModString), env.NilType()).AddEdge(env, input)

	cases := []struct {
		name     string
		class    string
		negate   bool
		expected string
	}{
		{"keeps instances", "Integer", false, "Integer"},
		{"negated drops instances", "Integer", true, "String?"},
		{"superclass matches everything", "Object", false, "(Integer | String)?"},
		{"unknown class forwards everything", "Nope", false, "(Integer | String)?"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var out BasicVertex
			install(env, func(cs *ChangeSet) {
				read := NewConstRead(env, cs.Node(), c.class, ToplevelCRef())
				out = cs.AddIsAFilter(env, input, read, c.negate)
			})
			settle(t, env)
			assert.Equal(t, c.expected, out.Show())
		})
	}
}

func TestIsAFilterFollowsInput(t *testing.T) {
	env := newTestEnv(t)
	input := NewVertex(env, nil)
	var out BasicVertex
	install(env, func(cs *ChangeSet) {
		out = cs.AddIsAFilter(env, input, NewConstRead(env, cs.Node(), "String", ToplevelCRef()), false)
	})
	settle(t, env)
	assert.True(t, out.Empty())

	str := source(env, env.InstanceOf(env.ModString))
	str.AddEdge(env, input)
	assert.Equal(t, "String", out.Show())
	source(env, env.InstanceOf(env.ModFloat)).AddEdge(env, input)
	assert.Equal(t, "String", out.Show())

	str.RemoveEdge(env, input)
	assert.True(t, out.Empty())
}

func TestIsAFilterFollowsHierarchy(t *testing.T) {
	env := newTestEnv(t)
	base, _ := declareClass(env, []string{"Base"}, "")
	sub, subOrigin := declareClass(env, []string{"Sub"}, "")
	settle(t, env)

	input := source(env, env.InstanceOf(sub))
	var out BasicVertex
	install(env, func(cs *ChangeSet) {
		out = cs.AddIsAFilter(env, input, NewConstRead(env, cs.Node(), "Base", ToplevelCRef()), false)
	})
	settle(t, env)
	assert.True(t, out.Empty())

	// reopen Sub below Base
	sub.RemoveDecl(env, subOrigin)
	declareClass(env, []string{"Sub"}, "Base")
	settle(t, env)
	assert.Equal(t, base, sub.Superclass())
	assert.Equal(t, "Sub", out.Show())
}

func TestNilFilter(t *testing.T) {
	env := newTestEnv(t)
	input := source(env, env.InstanceOf(env.ModInteger), env.NilType(), env.FalseType())

	cases := []struct {
		name      string
		wantNil   bool
		dropFalse bool
		expected  string
	}{
		{"nil", true, false, "nil"},
		{"non-nil", false, false, "Integer | false"},
		{"falsy", true, true, "false?"},
		{"truthy", false, true, "Integer"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var out BasicVertex
			install(env, func(cs *ChangeSet) {
				out = cs.AddNilFilter(env, input, c.wantNil, c.dropFalse)
			})
			assert.Equal(t, c.expected, out.Show())
		})
	}
}

func TestFilterDestroyedWithChangeSet(t *testing.T) {
	env := newTestEnv(t)
	input := source(env, env.InstanceOf(env.ModInteger))
	cs := install(env, func(cs *ChangeSet) {
		cs.AddNilFilter(env, input, false, false)
	})
	assert.Len(t, input.Next(), 1)

	uninstall(env, cs)
	assert.Empty(t, input.Next())
}
