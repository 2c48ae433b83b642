package core

import (
	"testing"

	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReinstallIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	src := source(env, env.InstanceOf(env.ModInteger))
	dst := NewVertex(env, nil)
	cs := NewChangeSet(newNode("x"), nil)

	var first *SplatBox
	for i := range 3 {
		cs.AddEdge(src, dst)
		box := cs.AddSplatBox(env, dst)
		if i == 0 {
			first = box
		}
		assert.Same(t, first, box, "owned boxes survive re-runs")
		cs.Reinstall(env)
		assert.Len(t, src.Next(), 1)
		assert.Equal(t, "Integer", dst.Show())
	}
	assert.False(t, first.Destroyed())

	cs.Reinstall(env)
	assert.True(t, dst.Empty())
	assert.True(t, first.Destroyed())
}

func TestReinstallKeepsTypesJustifiedByBothRuns(t *testing.T) {
	env := newTestEnv(t)
	a := source(env, env.InstanceOf(env.ModInteger))
	b := source(env, env.InstanceOf(env.ModInteger))
	dst := NewVertex(env, nil)
	var removed []Type
	spy := &spyListener{onRemoved: func(types []Type) { removed = append(removed, types...) }}
	dst.AddEdge(env, spy)

	cs := NewChangeSet(newNode("x"), nil)
	cs.AddEdge(a, dst)
	cs.Reinstall(env)
	cs.AddEdge(b, dst)
	cs.Reinstall(env)

	assert.Equal(t, "Integer", dst.Show())
	assert.Empty(t, removed, "Integer never left dst")
}

func TestNodeChangeSetRejectsDependencies(t *testing.T) {
	env := newTestEnv(t)
	cs := NewChangeSet(newNode("x"), nil)
	cs.AddDependedMethodEntity(env.ModObject.Method(false, "foo"))

	defer func() {
		inv, ok := AsInvariantError(recover())
		require.True(t, ok)
		assert.Contains(t, inv.Message, "change set of a node")
	}()
	cs.Reinstall(env)
}

func TestDiagnosticsAreReplacedOnRerun(t *testing.T) {
	env := newTestEnv(t)
	cs := NewChangeSet(newNode("x"), nil)
	cs.AddDiagnostic(diag.NewUninitializedConstant{Name: "A"})
	cs.Reinstall(env)
	assert.Len(t, cs.Diagnostics(), 1)

	cs.Reinstall(env)
	assert.Empty(t, cs.Diagnostics())
}

type spyListener struct {
	onRemoved func([]Type)
}

func (s *spyListener) OnTypeAdded(*GlobalEnv, Upstream, []Type) {}
func (s *spyListener) OnTypeRemoved(_ *GlobalEnv, _ Upstream, types []Type) {
	s.onRemoved(types)
}
