package core

import (
	"iter"
	"slices"

	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/cottand/typeflow/util"
	"github.com/hashicorp/go-set/v3"
)

// Destroyable is something a ChangeSet can own and tear down: boxes and filters
type Destroyable interface {
	Destroy(env *GlobalEnv)
}

type cachedSource struct {
	types []Type
	src   *Source
}

type edge struct {
	src BasicVertex
	dst Listener
}

// ownedSet is an insertion-ordered map of keyed sub-boxes and filters
type ownedSet struct {
	keys  *util.OrderedSet[any]
	items map[any]Destroyable
}

func newOwnedSet() ownedSet {
	return ownedSet{keys: util.NewOrderedSet[any](), items: make(map[any]Destroyable)}
}

func (o ownedSet) get(key any) (Destroyable, bool) {
	d, ok := o.items[key]
	return d, ok
}

func (o ownedSet) put(key any, d Destroyable) {
	o.keys.Insert(key)
	o.items[key] = d
}

func (o ownedSet) clear() {
	o.keys.Clear()
	clear(o.items)
}

// ChangeSet records everything one run of a box (or one install of a node) produced:
// edges, owned sub-boxes and filters, diagnostics and dependency registrations.
//
// A run fills the "new" half; Reinstall then diffs it against what is currently
// installed, applies only the delta and makes the new half current.
type ChangeSet struct {
	node   Node
	target Box

	sources  map[uint64][]cachedSource
	vertices map[any]*Vertex

	edges, newEdges *util.OrderedSet[edge]
	owned, newOwned ownedSet

	diagnostics, newDiagnostics []diag.Diagnostic

	methodEntities, newMethodEntities *set.Set[*MethodEntity]
	valueEntities, newValueEntities   *set.Set[*ValueEntity]
	staticReads, newStaticReads       *set.Set[*ConstRead]
	superclasses, newSuperclasses     *set.Set[*ModuleEntity]
}

// NewChangeSet creates the change set of a node (target is nil) or of a box
func NewChangeSet(node Node, target Box) *ChangeSet {
	return &ChangeSet{
		node:              node,
		target:            target,
		sources:           make(map[uint64][]cachedSource),
		vertices:          make(map[any]*Vertex),
		edges:             util.NewOrderedSet[edge](),
		newEdges:          util.NewOrderedSet[edge](),
		owned:             newOwnedSet(),
		newOwned:          newOwnedSet(),
		methodEntities:    set.New[*MethodEntity](0),
		newMethodEntities: set.New[*MethodEntity](0),
		valueEntities:     set.New[*ValueEntity](0),
		newValueEntities:  set.New[*ValueEntity](0),
		staticReads:       set.New[*ConstRead](0),
		newStaticReads:    set.New[*ConstRead](0),
		superclasses:      set.New[*ModuleEntity](0),
		newSuperclasses:   set.New[*ModuleEntity](0),
	}
}

func (c *ChangeSet) Node() Node { return c.node }

// NewSource returns a Source holding types. The same types give back the same
// Source for the whole life of the change set, so edges from it survive re-runs.
func (c *ChangeSet) NewSource(env *GlobalEnv, types ...Type) *Source {
	h := newTypeHasher(0)
	for _, t := range types {
		h.int(int(t.Hash()))
	}
	key := h.sum()
	for _, cached := range c.sources[key] {
		if sameTypes(cached.types, types) {
			return cached.src
		}
	}
	s := NewSource(env, c.node, types...)
	c.sources[key] = append(c.sources[key], cachedSource{types: slices.Clone(types), src: s})
	return s
}

// NewVertex returns the vertex registered under key, creating it on first use
func (c *ChangeSet) NewVertex(env *GlobalEnv, key any) *Vertex {
	if v, ok := c.vertices[key]; ok {
		return v
	}
	v := NewVertex(env, c.node)
	c.vertices[key] = v
	return v
}

func (c *ChangeSet) AddEdge(src BasicVertex, dst Listener) {
	c.newEdges.Insert(edge{src: src, dst: dst})
}

func (c *ChangeSet) AddDiagnostic(d diag.Diagnostic) {
	c.newDiagnostics = append(c.newDiagnostics, d)
}

func (c *ChangeSet) AddDependedMethodEntity(me *MethodEntity) {
	c.newMethodEntities.Insert(me)
}

func (c *ChangeSet) AddDependedValueEntity(ve *ValueEntity) {
	c.newValueEntities.Insert(ve)
}

func (c *ChangeSet) AddDependedStaticRead(read *ConstRead) {
	c.newStaticReads.Insert(read)
}

// AddDependedSuperclass re-runs the target whenever the descendants of mod change
func (c *ChangeSet) AddDependedSuperclass(mod *ModuleEntity) {
	c.newSuperclasses.Insert(mod)
}

// AddDependedVertex re-runs the target whenever the types of vtx change
func (c *ChangeSet) AddDependedVertex(vtx BasicVertex) {
	if c.target == nil {
		invariant("vertex dependency registered on the change set of a node")
	}
	c.AddEdge(vtx, c.target)
}

// own keeps the sub-box or filter stored under key alive for this run, reusing
// the one from the previous run when there is one
func (c *ChangeSet) own(key any, create func() Destroyable) Destroyable {
	if d, ok := c.newOwned.get(key); ok {
		return d
	}
	d, ok := c.owned.get(key)
	if !ok {
		d = create()
	}
	c.newOwned.put(key, d)
	return d
}

// Boxes iterates over the currently installed sub-boxes
func (c *ChangeSet) Boxes() iter.Seq[Box] {
	return func(yield func(Box) bool) {
		for key := range c.owned.keys.Items() {
			if box, ok := c.owned.items[key].(Box); ok {
				if !yield(box) {
					return
				}
			}
		}
	}
}

// Diagnostics are the diagnostics of the last reinstall, excluding sub-boxes
func (c *ChangeSet) Diagnostics() []diag.Diagnostic {
	return c.diagnostics
}

// EachDiagnostic walks the diagnostics of this change set and of every sub-box
func (c *ChangeSet) EachDiagnostic(yield func(diag.Diagnostic)) {
	for _, d := range c.diagnostics {
		yield(d)
	}
	for box := range c.Boxes() {
		box.Changes().EachDiagnostic(yield)
	}
}

// Reinstall applies the difference between the new half and the installed half.
// New edges are added before stale ones are removed, so a type justified by both
// the old and new edge set never flickers out of a vertex.
func (c *ChangeSet) Reinstall(env *GlobalEnv) {
	for e := range c.newEdges.Items() {
		if !c.edges.Contains(e) {
			e.src.AddEdge(env, e.dst)
		}
	}
	for e := range c.edges.Items() {
		if !c.newEdges.Contains(e) {
			e.src.RemoveEdge(env, e.dst)
		}
	}
	c.edges, c.newEdges = c.newEdges, c.edges
	c.newEdges.Clear()

	for key := range c.owned.keys.Items() {
		if _, ok := c.newOwned.get(key); !ok {
			c.owned.items[key].Destroy(env)
		}
	}
	c.owned, c.newOwned = c.newOwned, c.owned
	c.newOwned.clear()

	c.diagnostics, c.newDiagnostics = c.newDiagnostics, nil

	if c.target == nil {
		if !c.newMethodEntities.Empty() || !c.newValueEntities.Empty() || !c.newStaticReads.Empty() || !c.newSuperclasses.Empty() {
			invariant("dependencies registered on the change set of a node")
		}
		return
	}
	reinstallDeps(c.methodEntities, c.newMethodEntities,
		func(me *MethodEntity) { me.addCallBox(c.target) },
		func(me *MethodEntity) { me.removeCallBox(c.target) })
	c.methodEntities, c.newMethodEntities = c.newMethodEntities, c.methodEntities
	c.newMethodEntities = set.New[*MethodEntity](0)

	reinstallDeps(c.valueEntities, c.newValueEntities,
		func(ve *ValueEntity) { ve.addReadBox(c.target) },
		func(ve *ValueEntity) { ve.removeReadBox(c.target) })
	c.valueEntities, c.newValueEntities = c.newValueEntities, c.valueEntities
	c.newValueEntities = set.New[*ValueEntity](0)

	reinstallDeps(c.staticReads, c.newStaticReads,
		func(read *ConstRead) { read.addFollower(c.target) },
		func(read *ConstRead) { read.removeFollower(c.target) })
	c.staticReads, c.newStaticReads = c.newStaticReads, c.staticReads
	c.newStaticReads = set.New[*ConstRead](0)

	reinstallDeps(c.superclasses, c.newSuperclasses,
		func(mod *ModuleEntity) { mod.addSubclassCheck(c.target) },
		func(mod *ModuleEntity) { mod.removeSubclassCheck(c.target) })
	c.superclasses, c.newSuperclasses = c.newSuperclasses, c.superclasses
	c.newSuperclasses = set.New[*ModuleEntity](0)
}

func reinstallDeps[A comparable](installed, fresh *set.Set[A], add, remove func(A)) {
	for item := range fresh.Items() {
		if !installed.Contains(item) {
			add(item)
		}
	}
	for item := range installed.Items() {
		if !fresh.Contains(item) {
			remove(item)
		}
	}
}
