package core

import (
	"fmt"

	"github.com/cottand/typeflow/util"
	"github.com/hashicorp/go-set/v3"
)

// CRef is the lexical scope a constant is read in: the module bodies enclosing
// the read, innermost first
type CRef struct {
	Cpath     []string
	Singleton bool
	Outer     *CRef
}

// ToplevelCRef is the scope of code outside any class or module body
func ToplevelCRef() *CRef {
	return &CRef{}
}

// Extend is the scope of a module body at cpath nested in c
func (c *CRef) Extend(cpath []string, singleton bool) *CRef {
	return &CRef{Cpath: cpath, Singleton: singleton, Outer: c}
}

func (c *CRef) IsToplevel() bool {
	return c.Outer == nil
}

type staticReadFollower interface {
	onStaticReadChanged(env *GlobalEnv, read *ConstRead)
}

type constReadKind int

const (
	lexicalRead constReadKind = iota
	scopedRead
	toplevelRead
)

// ConstRead resolves a constant name to a module and/or a constant entity.
//
// Every resolution first clears the registrations made by the previous one and
// then registers itself on every module it looks into, so that a change to any
// of those modules re-queues it.
type ConstRead struct {
	id    int
	node  Node
	name  string
	kind  constReadKind
	cref  *CRef
	cbase *ConstRead

	module    *ModuleEntity
	value     *ValueEntity
	resolved  bool
	destroyed bool
	walked    []*ModuleEntity
	followers *util.OrderedSet[staticReadFollower]
}

var (
	_ staticReadFollower = (*ConstRead)(nil)
	_ staticReadFollower = (*ModuleEntity)(nil)
	_ staticReadFollower = (*IsAFilter)(nil)
)

func newConstRead(env *GlobalEnv, node Node, name string, kind constReadKind) *ConstRead {
	r := &ConstRead{
		id:        env.newID(),
		node:      node,
		name:      name,
		kind:      kind,
		followers: util.NewOrderedSet[staticReadFollower](),
	}
	env.enqueueStaticReadChanged(r)
	return r
}

// NewConstRead reads name lexically from cref, like a bare `Foo`
func NewConstRead(env *GlobalEnv, node Node, name string, cref *CRef) *ConstRead {
	r := newConstRead(env, node, name, lexicalRead)
	r.cref = cref
	return r
}

// NewScopedConstRead reads name inside whatever cbase resolves to, like `Base::Foo`
func NewScopedConstRead(env *GlobalEnv, node Node, name string, cbase *ConstRead) *ConstRead {
	r := newConstRead(env, node, name, scopedRead)
	r.cbase = cbase
	cbase.addFollower(r)
	return r
}

// NewToplevelConstRead reads name from the toplevel, like `::Foo`
func NewToplevelConstRead(env *GlobalEnv, node Node, name string) *ConstRead {
	return newConstRead(env, node, name, toplevelRead)
}

func (r *ConstRead) ID() int    { return r.id }
func (r *ConstRead) Node() Node { return r.node }
func (r *ConstRead) Name() string {
	return r.name
}

// Module is the module the constant names, nil when it does not name one
func (r *ConstRead) Module() *ModuleEntity { return r.module }

// Value is the constant entity the name resolved to, nil when there is none
func (r *ConstRead) Value() *ValueEntity { return r.value }

// Resolved reports whether the read was resolved at least once, successfully or not
func (r *ConstRead) Resolved() bool { return r.resolved }

// Failed reports whether the last resolution found nothing
func (r *ConstRead) Failed() bool {
	return r.resolved && r.module == nil && r.value == nil
}

func (r *ConstRead) String() string {
	switch r.kind {
	case scopedRead:
		return fmt.Sprintf("%v::%s", r.cbase, r.name)
	case toplevelRead:
		return "::" + r.name
	}
	return r.name
}

func (r *ConstRead) addFollower(f staticReadFollower) {
	if !r.followers.Insert(f) {
		invariant("%v follows static read %s twice", f, r.name)
	}
}

func (r *ConstRead) removeFollower(f staticReadFollower) {
	if !r.followers.Remove(f) {
		invariant("%v does not follow static read %s", f, r.name)
	}
}

func (r *ConstRead) onStaticReadChanged(env *GlobalEnv, _ *ConstRead) {
	env.enqueueStaticReadChanged(r)
}

// Destroy clears every registration of the read. Its followers must be gone already.
func (r *ConstRead) Destroy(env *GlobalEnv) {
	if r.destroyed {
		invariant("static read %s destroyed twice", r.name)
	}
	r.destroyed = true
	r.unregister()
	if r.cbase != nil {
		r.cbase.removeFollower(r)
	}
}

func (r *ConstRead) unregister() {
	for _, mod := range r.walked {
		mod.unregisterStaticRead(r.name, r)
	}
	r.walked = nil
}

func (r *ConstRead) onScopeUpdated(env *GlobalEnv) {
	if r.destroyed {
		return
	}
	oldModule, oldValue, wasResolved := r.module, r.value, r.resolved
	r.unregister()
	r.module, r.value = nil, nil
	r.resolve(env)
	r.resolved = true
	if wasResolved && oldModule == r.module && oldValue == r.value {
		return
	}
	logger.Debug("static read changed", "read", r.String(), "module", r.module)
	for f := range r.followers.Items() {
		f.onStaticReadChanged(env, r)
	}
}

func (r *ConstRead) resolve(env *GlobalEnv) {
	visited := set.New[*ModuleEntity](8)
	check := func(mod *ModuleEntity) bool {
		if !visited.Insert(mod) {
			return false
		}
		return r.checkModule(mod)
	}
	checkAncestors := func(mod *ModuleEntity, stopAtObject bool) bool {
		found := false
		env.eachAncestor(mod, false, func(ancestor *ModuleEntity, _ bool) bool {
			if stopAtObject && ancestor == env.ModObject && mod != env.ModObject {
				return false
			}
			found = check(ancestor)
			return !found
		})
		return found
	}

	switch r.kind {
	case toplevelRead:
		check(env.root)
	case scopedRead:
		if base := r.cbase.Module(); base != nil {
			checkAncestors(base, true)
		}
	case lexicalRead:
		for cref := r.cref; cref != nil && !cref.IsToplevel(); cref = cref.Outer {
			if check(env.ResolveCpath(cref.Cpath)) {
				return
			}
		}
		if !r.cref.IsToplevel() && checkAncestors(env.ResolveCpath(r.cref.Cpath), false) {
			return
		}
		checkAncestors(env.root, false)
	}
}

// checkModule registers r on mod and reports whether mod defines the name
func (r *ConstRead) checkModule(mod *ModuleEntity) bool {
	mod.registerStaticRead(r.name, r)
	r.walked = append(r.walked, mod)

	ve := mod.consts[r.name]
	inner := mod.innerModules[r.name]
	if mod.IsRoot() && r.name == "Object" {
		inner = mod
	}
	if inner != nil && inner.Exist() {
		r.module = inner
		if ve != nil && ve.Exist() {
			r.value = ve
		}
		return true
	}
	if ve != nil && ve.Exist() {
		r.value = ve
		return true
	}
	return false
}
