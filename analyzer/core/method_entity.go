package core

import (
	"github.com/cottand/typeflow/util"
)

// Builtin stands in for a method whose behaviour no signature can express.
// It wires edges for one receiver type and reports whether it handled the call;
// a declined call falls through to the declarations and definitions.
type Builtin func(env *GlobalEnv, changes *ChangeSet, node Node, recv Type, args *ActualArgs, ret BasicVertex) bool

// MethodEntity is the registry record of one method name on one side (instance
// or singleton) of a module
type MethodEntity struct {
	owner     *ModuleEntity
	singleton bool
	mid       string

	builtin Builtin
	decls   *util.OrderedSet[*MethodDeclBox]
	defs    *util.OrderedSet[*MethodDefBox]
	aliases *util.OrderedSet[*MethodAliasBox]

	callBoxes *util.OrderedSet[Box]
}

func newMethodEntity(owner *ModuleEntity, singleton bool, mid string) *MethodEntity {
	return &MethodEntity{
		owner:     owner,
		singleton: singleton,
		mid:       mid,
		decls:     util.NewOrderedSet[*MethodDeclBox](),
		defs:      util.NewOrderedSet[*MethodDefBox](),
		aliases:   util.NewOrderedSet[*MethodAliasBox](),
		callBoxes: util.NewOrderedSet[Box](),
	}
}

func (me *MethodEntity) Owner() *ModuleEntity { return me.owner }
func (me *MethodEntity) Singleton() bool      { return me.singleton }
func (me *MethodEntity) Mid() string          { return me.mid }

func (me *MethodEntity) Exist() bool {
	return me.builtin != nil || me.decls.Len() > 0 || me.defs.Len() > 0 || me.aliases.Len() > 0
}

func (me *MethodEntity) Decls() []*MethodDeclBox    { return me.decls.Slice() }
func (me *MethodEntity) Defs() []*MethodDefBox      { return me.defs.Slice() }
func (me *MethodEntity) Aliases() []*MethodAliasBox { return me.aliases.Slice() }

func (me *MethodEntity) String() string {
	sep := "#"
	if me.singleton {
		sep = "."
	}
	return me.owner.PathString() + sep + me.mid
}

func (me *MethodEntity) setBuiltin(b Builtin) {
	me.builtin = b
}

func (me *MethodEntity) addDecl(env *GlobalEnv, decl *MethodDeclBox) {
	if !me.decls.Insert(decl) {
		invariant("declaration of %s registered twice", me)
	}
	me.notifyCallers(env)
}

func (me *MethodEntity) removeDecl(env *GlobalEnv, decl *MethodDeclBox) {
	if !me.decls.Remove(decl) {
		invariant("removing a declaration %s does not have", me)
	}
	me.notifyCallers(env)
}

func (me *MethodEntity) addDef(env *GlobalEnv, def *MethodDefBox) {
	if !me.defs.Insert(def) {
		invariant("definition of %s registered twice", me)
	}
	me.notifyCallers(env)
}

func (me *MethodEntity) removeDef(env *GlobalEnv, def *MethodDefBox) {
	if !me.defs.Remove(def) {
		invariant("removing a definition %s does not have", me)
	}
	me.notifyCallers(env)
}

func (me *MethodEntity) addAlias(env *GlobalEnv, alias *MethodAliasBox) {
	if !me.aliases.Insert(alias) {
		invariant("alias %s registered twice", me)
	}
	me.notifyCallers(env)
}

func (me *MethodEntity) removeAlias(env *GlobalEnv, alias *MethodAliasBox) {
	if !me.aliases.Remove(alias) {
		invariant("removing an alias %s does not have", me)
	}
	me.notifyCallers(env)
}

func (me *MethodEntity) addCallBox(box Box) {
	if !me.callBoxes.Insert(box) {
		invariant("box %d depends on %s twice", box.ID(), me)
	}
}

func (me *MethodEntity) removeCallBox(box Box) {
	if !me.callBoxes.Remove(box) {
		invariant("box %d does not depend on %s", box.ID(), me)
	}
}

// CallBoxes are the boxes whose last run consulted this method
func (me *MethodEntity) CallBoxes() []Box {
	return me.callBoxes.Slice()
}

func (me *MethodEntity) notifyCallers(env *GlobalEnv) {
	for box := range me.callBoxes.Items() {
		env.AddRun(box)
	}
}
