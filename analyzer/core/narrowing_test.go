package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCondCombinators(t *testing.T) {
	env := newTestEnv(t)
	read := NewConstRead(env, newNode("Integer"), "Integer", ToplevelCRef())
	isInt := CondOn("x", &IsAConstraint{Read: read})
	notNil := CondOn("y", &NilConstraint{Negated: true})

	cases := []struct {
		name         string
		cond         Cond
		expectedThen string
		expectedElse string
	}{
		{"single", isInt, "{x: is_a?(Integer)}", "{x: !is_a?(Integer)}"},
		{"not", isInt.Not(), "{x: !is_a?(Integer)}", "{x: is_a?(Integer)}"},
		{"and on two variables", CondAnd(isInt, notNil), "{x: is_a?(Integer), y: !nil?}", "{}"},
		{"or on two variables", CondOr(isInt, notNil), "{}", "{x: !is_a?(Integer), y: nil?}"},
		{
			"and on one variable",
			CondAnd(isInt, CondOn("x", &TruthyConstraint{})),
			"{x: (is_a?(Integer) && truthy)}",
			"{x: (!is_a?(Integer) || falsy)}",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expectedThen, c.cond.Then.String())
			assert.Equal(t, c.expectedElse, c.cond.Else.String())
		})
	}
}

func TestConstraintNarrow(t *testing.T) {
	env := newTestEnv(t)
	x := source(env, env.InstanceOf(env.ModInteger), env.InstanceOf(env.ModString), env.NilType(), env.FalseType())
	isInt := func() Constraint {
		return &IsAConstraint{Read: NewConstRead(env, newNode("Integer"), "Integer", ToplevelCRef())}
	}

	cases := []struct {
		name       string
		constraint Constraint
		expected   string
	}{
		{"is_a", isInt(), "Integer"},
		{"not is_a", isInt().Negate(), "(String | false)?"},
		{"nil", &NilConstraint{}, "nil"},
		{"truthy", &TruthyConstraint{}, "Integer | String"},
		{"falsy", &TruthyConstraint{Negated: true}, "false?"},
		{"and", &AndConstraint{Left: &TruthyConstraint{}, Right: isInt().Negate()}, "String"},
		{"or", &OrConstraint{Left: isInt(), Right: &NilConstraint{}}, "Integer?"},
		{"negated or", (&OrConstraint{Left: isInt(), Right: &NilConstraint{}}).Negate(), "String | false"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var out BasicVertex
			install(env, func(cs *ChangeSet) {
				out = c.constraint.Narrow(env, cs, x)
			})
			settle(t, env)
			assert.Equal(t, c.expected, out.Show())
		})
	}
}
