package core

import (
	"github.com/cottand/typeflow/util"
)

type valueKind int

const (
	valueConst valueKind = iota
	valueIVar
	valueCVar
	valueGVar
)

// ValueEntity is the registry record of a constant or of an instance, class or
// global variable: a declared/defined marker plus the vertex of every value
// assigned or declared.
type ValueEntity struct {
	owner     *ModuleEntity
	name      string
	singleton bool
	kind      valueKind

	decls *util.OrderedSet[Node]
	defs  *util.OrderedSet[Node]
	vtx   *Vertex

	readBoxes *util.OrderedSet[Box]
}

func newValueEntity(env *GlobalEnv, owner *ModuleEntity, name string, singleton bool, kind valueKind) *ValueEntity {
	return &ValueEntity{
		owner:     owner,
		name:      name,
		singleton: singleton,
		kind:      kind,
		decls:     util.NewOrderedSet[Node](),
		defs:      util.NewOrderedSet[Node](),
		vtx:       NewVertex(env, nil),
		readBoxes: util.NewOrderedSet[Box](),
	}
}

func (ve *ValueEntity) Name() string         { return ve.name }
func (ve *ValueEntity) Owner() *ModuleEntity { return ve.owner }
func (ve *ValueEntity) Vertex() *Vertex      { return ve.vtx }
func (ve *ValueEntity) Decls() []Node        { return ve.decls.Slice() }
func (ve *ValueEntity) Defs() []Node         { return ve.defs.Slice() }
func (ve *ValueEntity) Exist() bool          { return ve.decls.Len() > 0 || ve.defs.Len() > 0 }

func (ve *ValueEntity) AddDecl(env *GlobalEnv, node Node) {
	ve.update(env, func() bool { return ve.decls.Insert(node) })
}

func (ve *ValueEntity) RemoveDecl(env *GlobalEnv, node Node) {
	ve.update(env, func() bool { return ve.decls.Remove(node) })
}

func (ve *ValueEntity) AddDef(env *GlobalEnv, node Node) {
	ve.update(env, func() bool { return ve.defs.Insert(node) })
}

func (ve *ValueEntity) RemoveDef(env *GlobalEnv, node Node) {
	ve.update(env, func() bool { return ve.defs.Remove(node) })
}

func (ve *ValueEntity) update(env *GlobalEnv, change func() bool) {
	existed := ve.Exist()
	if !change() {
		invariant("unbalanced declaration or definition of %s", ve.name)
	}
	if existed == ve.Exist() {
		return
	}
	if ve.kind == valueConst {
		env.enqueueChildModulesChanged(ve.owner, ve.name)
		return
	}
	for box := range ve.readBoxes.Items() {
		env.AddRun(box)
	}
}

func (ve *ValueEntity) addReadBox(box Box) {
	if !ve.readBoxes.Insert(box) {
		invariant("box %d reads %s twice", box.ID(), ve.name)
	}
}

func (ve *ValueEntity) removeReadBox(box Box) {
	if !ve.readBoxes.Remove(box) {
		invariant("box %d does not read %s", box.ID(), ve.name)
	}
}
