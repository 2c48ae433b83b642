package core

import (
	"fmt"
	"log/slog"

	"github.com/cottand/typeflow/util"
	"github.com/hashicorp/go-set/v3"
)

// Upstream is anything that can contribute types to a Vertex:
// vertices, sources and filters.
type Upstream interface {
	ID() int
}

// Listener receives type notifications from the vertices it is connected to.
// Vertices, filters and boxes are listeners.
type Listener interface {
	OnTypeAdded(env *GlobalEnv, src Upstream, added []Type)
	OnTypeRemoved(env *GlobalEnv, src Upstream, removed []Type)
}

// BasicVertex is a node of the dataflow graph which carries a set of types
// and forwards changes to that set to its downstream listeners.
type BasicVertex interface {
	Upstream
	fmt.Stringer
	Types() []Type
	HasType(t Type) bool
	Empty() bool
	AddEdge(env *GlobalEnv, next Listener)
	RemoveEdge(env *GlobalEnv, next Listener)
	Origin() Node
	Show() string
}

var (
	_ BasicVertex = (*Vertex)(nil)
	_ BasicVertex = (*Source)(nil)
	_ Listener    = (*Vertex)(nil)
)

// vertexCore holds what Source and Vertex share
type vertexCore struct {
	id     int
	origin Node
	types  typeSet
	next   *util.OrderedSet[Listener]
}

func newVertexCore(env *GlobalEnv, origin Node) vertexCore {
	return vertexCore{
		id:     env.newID(),
		origin: origin,
		types:  newTypeSet(),
		next:   util.NewOrderedSet[Listener](),
	}
}

func (v *vertexCore) ID() int      { return v.id }
func (v *vertexCore) Origin() Node { return v.origin }
func (v *vertexCore) Empty() bool  { return v.types.len() == 0 }

func (v *vertexCore) Types() []Type       { return v.types.types() }
func (v *vertexCore) HasType(t Type) bool { return v.types.contains(t) }

// Next lists the downstream listeners, in the order the edges were added
func (v *vertexCore) Next() []Listener {
	return v.next.Slice()
}

func (v *vertexCore) addEdge(env *GlobalEnv, self Upstream, next Listener) {
	if !v.next.Insert(next) {
		return
	}
	if types := v.Types(); len(types) > 0 {
		next.OnTypeAdded(env, self, types)
	}
}

func (v *vertexCore) removeEdge(env *GlobalEnv, self Upstream, next Listener) {
	if !v.next.Remove(next) {
		invariant("removing an edge that does not exist: %d -> %v", v.id, next)
	}
	if types := v.Types(); len(types) > 0 {
		next.OnTypeRemoved(env, self, types)
	}
}

func (v *vertexCore) propagateAdded(env *GlobalEnv, self Upstream, added []Type) {
	for next := range v.next.Items() {
		next.OnTypeAdded(env, self, added)
	}
}

func (v *vertexCore) propagateRemoved(env *GlobalEnv, self Upstream, removed []Type) {
	for next := range v.next.Items() {
		next.OnTypeRemoved(env, self, removed)
	}
}

// Source is a vertex with a fixed set of types and no upstream.
// It is used for literals and for types constructed by boxes.
type Source struct {
	vertexCore
}

func NewSource(env *GlobalEnv, origin Node, types ...Type) *Source {
	s := &Source{vertexCore: newVertexCore(env, origin)}
	for _, t := range types {
		s.types.add(t)
	}
	return s
}

func (s *Source) AddEdge(env *GlobalEnv, next Listener)    { s.addEdge(env, s, next) }
func (s *Source) RemoveEdge(env *GlobalEnv, next Listener) { s.removeEdge(env, s, next) }
func (s *Source) Show() string                             { return showVertex(s, newShowState()) }
func (s *Source) String() string                           { return fmt.Sprintf("Source#%d<%s>", s.id, s.Show()) }
func (s *Source) LogValue() slog.Value                     { return slog.StringValue(s.String()) }

// Vertex is a mutable node which holds the union of what its upstreams contribute.
// A type stays in the vertex for as long as one upstream still contributes it.
type Vertex struct {
	vertexCore
}

func NewVertex(env *GlobalEnv, origin Node) *Vertex {
	return &Vertex{vertexCore: newVertexCore(env, origin)}
}

func (v *Vertex) AddEdge(env *GlobalEnv, next Listener)    { v.addEdge(env, v, next) }
func (v *Vertex) RemoveEdge(env *GlobalEnv, next Listener) { v.removeEdge(env, v, next) }
func (v *Vertex) Show() string                             { return showVertex(v, newShowState()) }
func (v *Vertex) String() string                           { return fmt.Sprintf("Vertex#%d<%s>", v.id, v.Show()) }
func (v *Vertex) LogValue() slog.Value                     { return slog.StringValue(v.String()) }

// Sources returns the upstreams currently justifying t
func (v *Vertex) Sources(t Type) []Upstream {
	entry, ok := v.types.get(t)
	if !ok {
		return nil
	}
	return entry.sources.Slice()
}

func (v *Vertex) OnTypeAdded(env *GlobalEnv, src Upstream, added []Type) {
	var newTypes []Type
	for _, t := range added {
		entry, isNew := v.types.add(t)
		if isNew {
			entry.sources = set.New[Upstream](1)
			newTypes = append(newTypes, t)
		}
		entry.sources.Insert(src)
	}
	if len(newTypes) > 0 {
		v.propagateAdded(env, v, newTypes)
	}
}

func (v *Vertex) OnTypeRemoved(env *GlobalEnv, src Upstream, removed []Type) {
	var goneTypes []Type
	for _, t := range removed {
		entry, ok := v.types.get(t)
		if !ok || !entry.sources.Remove(src) {
			invariant("vertex %d lost type %v from %d which never contributed it", v.id, t, src.ID())
		}
		if entry.sources.Empty() {
			v.types.remove(t)
			goneTypes = append(goneTypes, t)
		}
	}
	if len(goneTypes) > 0 {
		v.propagateRemoved(env, v, goneTypes)
	}
}
