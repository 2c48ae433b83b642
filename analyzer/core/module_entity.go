package core

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/cottand/typeflow/util"
	"github.com/hashicorp/go-set/v3"
)

type subclassChecker interface {
	runSubclassCheck(env *GlobalEnv)
}

// ModuleEntity is the registry record of one class or module, keyed by its
// fully qualified path. It is registered the first time something refers to
// it, and exists once some declaration or definition introduces it.
type ModuleEntity struct {
	id           int
	cpath        []string
	outer        *ModuleEntity
	innerModules map[string]*ModuleEntity

	decls          *util.OrderedSet[ModuleOrigin]
	defs           *util.OrderedSet[ModuleOrigin]
	includeOrigins *util.OrderedSet[IncludeOrigin]

	superclass       *ModuleEntity
	superclassFailed bool
	lastCandidate    *ModuleEntity
	lastCandidateBad bool
	includes         []*ModuleEntity
	prepends         []*ModuleEntity
	selfTypes        []*ModuleEntity

	// subclasses have this module as superclass, includers include, prepend or self-type it
	subclasses *util.OrderedSet[*ModuleEntity]
	includers  *util.OrderedSet[*ModuleEntity]

	consts  map[string]*ValueEntity
	methods [2]map[string]*MethodEntity
	ivars   [2]map[string]*ValueEntity
	cvars   map[string]*ValueEntity

	staticReads    map[string]*util.OrderedSet[*ConstRead]
	subclassChecks *util.OrderedSet[subclassChecker]
	cycleWatchers  *util.OrderedSet[*ModuleEntity]
}

func newModuleEntity(env *GlobalEnv, outer *ModuleEntity, cpath []string) *ModuleEntity {
	return &ModuleEntity{
		id:             env.newID(),
		cpath:          cpath,
		outer:          outer,
		innerModules:   make(map[string]*ModuleEntity),
		decls:          util.NewOrderedSet[ModuleOrigin](),
		defs:           util.NewOrderedSet[ModuleOrigin](),
		includeOrigins: util.NewOrderedSet[IncludeOrigin](),
		subclasses:     util.NewOrderedSet[*ModuleEntity](),
		includers:      util.NewOrderedSet[*ModuleEntity](),
		consts:         make(map[string]*ValueEntity),
		methods:        [2]map[string]*MethodEntity{make(map[string]*MethodEntity), make(map[string]*MethodEntity)},
		ivars:          [2]map[string]*ValueEntity{make(map[string]*ValueEntity), make(map[string]*ValueEntity)},
		cvars:          make(map[string]*ValueEntity),
		staticReads:    make(map[string]*util.OrderedSet[*ConstRead]),
		subclassChecks: util.NewOrderedSet[subclassChecker](),
		cycleWatchers:  util.NewOrderedSet[*ModuleEntity](),
	}
}

func singletonIndex(singleton bool) int {
	if singleton {
		return 1
	}
	return 0
}

func (m *ModuleEntity) inner(env *GlobalEnv, name string) *ModuleEntity {
	if m.IsRoot() && name == "Object" {
		return m
	}
	mod, ok := m.innerModules[name]
	if !ok {
		mod = newModuleEntity(env, m, append(slices.Clip(m.cpath), name))
		m.innerModules[name] = mod
	}
	return mod
}

func (m *ModuleEntity) Cpath() []string           { return m.cpath }
func (m *ModuleEntity) Outer() *ModuleEntity      { return m.outer }
func (m *ModuleEntity) IsRoot() bool              { return m.outer == nil }
func (m *ModuleEntity) Superclass() *ModuleEntity { return m.superclass }
func (m *ModuleEntity) SuperclassFailed() bool    { return m.superclassFailed }
func (m *ModuleEntity) Includes() []*ModuleEntity { return m.includes }
func (m *ModuleEntity) Prepends() []*ModuleEntity { return m.prepends }
func (m *ModuleEntity) Decls() []ModuleOrigin     { return m.decls.Slice() }
func (m *ModuleEntity) Defs() []ModuleOrigin      { return m.defs.Slice() }

// Name is the last segment of the path, "Object" for the root
func (m *ModuleEntity) Name() string {
	if len(m.cpath) == 0 {
		return "Object"
	}
	return m.cpath[len(m.cpath)-1]
}

func (m *ModuleEntity) PathString() string {
	if len(m.cpath) == 0 {
		return "Object"
	}
	return strings.Join(m.cpath, "::")
}

// ShowPath is the path as it is printed in declarations
func (m *ModuleEntity) ShowPath() string {
	return m.PathString()
}

func (m *ModuleEntity) String() string { return m.PathString() }

// Exist reports whether some declaration or definition introduces the module
func (m *ModuleEntity) Exist() bool {
	return m.IsRoot() || m.decls.Len() > 0 || m.defs.Len() > 0
}

func (m *ModuleEntity) IsClass() bool {
	if m.IsRoot() {
		return true
	}
	for origin := range util.ConcatIter(m.decls.Items(), m.defs.Items()) {
		if origin.IsClass() {
			return true
		}
	}
	return false
}

// TypeParams are the type parameters of the first declaration that has any
func (m *ModuleEntity) TypeParams() []string {
	for origin := range m.decls.Items() {
		if params := origin.TypeParams(); len(params) > 0 {
			return params
		}
	}
	return nil
}

func (m *ModuleEntity) AddDecl(env *GlobalEnv, origin ModuleOrigin) {
	m.addOrigin(env, m.decls, origin)
}

func (m *ModuleEntity) RemoveDecl(env *GlobalEnv, origin ModuleOrigin) {
	m.removeOrigin(env, m.decls, origin)
}

func (m *ModuleEntity) AddDef(env *GlobalEnv, origin ModuleOrigin) {
	m.addOrigin(env, m.defs, origin)
}

func (m *ModuleEntity) RemoveDef(env *GlobalEnv, origin ModuleOrigin) {
	m.removeOrigin(env, m.defs, origin)
}

func (m *ModuleEntity) addOrigin(env *GlobalEnv, origins *util.OrderedSet[ModuleOrigin], origin ModuleOrigin) {
	existed := m.Exist()
	if !origins.Insert(origin) {
		invariant("module origin registered twice on %s", m.PathString())
	}
	for _, read := range originReads(origin) {
		read.addFollower(m)
	}
	if !existed && m.outer != nil {
		env.enqueueChildModulesChanged(m.outer, m.Name())
	}
	env.enqueueParentModulesChanged(m)
}

func (m *ModuleEntity) removeOrigin(env *GlobalEnv, origins *util.OrderedSet[ModuleOrigin], origin ModuleOrigin) {
	if !origins.Remove(origin) {
		invariant("removing a module origin that %s does not have", m.PathString())
	}
	for _, read := range originReads(origin) {
		read.removeFollower(m)
	}
	if !m.Exist() && m.outer != nil {
		env.enqueueChildModulesChanged(m.outer, m.Name())
	}
	env.enqueueParentModulesChanged(m)
}

func originReads(origin ModuleOrigin) []*ConstRead {
	reads := slices.Clone(origin.SelfTypeReads())
	if read := origin.SuperclassRead(); read != nil {
		reads = append(reads, read)
	}
	return reads
}

// AddInclude registers an include or prepend statement of this module
func (m *ModuleEntity) AddInclude(env *GlobalEnv, origin IncludeOrigin) {
	if !m.includeOrigins.Insert(origin) {
		invariant("include registered twice on %s", m.PathString())
	}
	for _, read := range origin.IncludedReads() {
		read.addFollower(m)
	}
	env.enqueueParentModulesChanged(m)
}

func (m *ModuleEntity) RemoveInclude(env *GlobalEnv, origin IncludeOrigin) {
	if !m.includeOrigins.Remove(origin) {
		invariant("removing an include that %s does not have", m.PathString())
	}
	for _, read := range origin.IncludedReads() {
		read.removeFollower(m)
	}
	env.enqueueParentModulesChanged(m)
}

func (m *ModuleEntity) onStaticReadChanged(env *GlobalEnv, _ *ConstRead) {
	env.enqueueParentModulesChanged(m)
}

func (m *ModuleEntity) onChildModulesChanged(env *GlobalEnv, name string) {
	for read := range m.staticReads[name].Items() {
		env.enqueueStaticReadChanged(read)
	}
}

// declaredSuperclass is what the origins ask for, without the circularity guard
func (m *ModuleEntity) declaredSuperclass(env *GlobalEnv) (*ModuleEntity, bool) {
	if m == env.ModBasicObject || !m.IsClass() {
		return nil, false
	}
	for origin := range util.ConcatIter(m.decls.Items(), m.defs.Items()) {
		read := origin.SuperclassRead()
		if read == nil {
			continue
		}
		if mod := read.Module(); mod != nil {
			return mod, false
		}
		return nil, true
	}
	if m.IsRoot() {
		return env.ModBasicObject, false
	}
	return env.ModObject, false
}

func (m *ModuleEntity) computeSuperclass(env *GlobalEnv) (*ModuleEntity, bool) {
	candidate, failed := m.declaredSuperclass(env)
	if candidate != m.lastCandidate || failed != m.lastCandidateBad {
		m.lastCandidate, m.lastCandidateBad = candidate, failed
		for watcher := range m.cycleWatchers.Items() {
			if watcher != m {
				env.enqueueParentModulesChanged(watcher)
			}
		}
	}
	if failed {
		return nil, true
	}
	visited := set.New[*ModuleEntity](4)
	for c := candidate; c != nil && visited.Insert(c); c, _ = c.declaredSuperclass(env) {
		c.cycleWatchers.Insert(m)
		if c == m {
			return nil, true
		}
	}
	return candidate, false
}

func (m *ModuleEntity) computeIncludes() (includes, prepends []*ModuleEntity) {
	for origin := range m.includeOrigins.Items() {
		for _, read := range origin.IncludedReads() {
			mod := read.Module()
			if mod == nil || mod == m {
				continue
			}
			if origin.IsPrepend() {
				if !slices.Contains(prepends, mod) {
					prepends = append(prepends, mod)
				}
			} else if !slices.Contains(includes, mod) {
				includes = append(includes, mod)
			}
		}
	}
	return includes, prepends
}

func (m *ModuleEntity) computeSelfTypes() []*ModuleEntity {
	var selfTypes []*ModuleEntity
	for origin := range m.decls.Items() {
		for _, read := range origin.SelfTypeReads() {
			if mod := read.Module(); mod != nil && mod != m && !slices.Contains(selfTypes, mod) {
				selfTypes = append(selfTypes, mod)
			}
		}
	}
	return selfTypes
}

func (m *ModuleEntity) parentModules() []*ModuleEntity {
	return slices.Concat(m.includes, m.prepends, m.selfTypes)
}

// onParentModulesChanged recomputes the superclass and the mixins of m from its
// origins, and notifies everything below m when the ancestry changed
func (m *ModuleEntity) onParentModulesChanged(env *GlobalEnv) {
	superclass, failed := m.computeSuperclass(env)
	includes, prepends := m.computeIncludes()
	selfTypes := m.computeSelfTypes()

	superChanged := superclass != m.superclass || failed != m.superclassFailed
	mixinsChanged := !slices.Equal(includes, m.includes) || !slices.Equal(prepends, m.prepends) || !slices.Equal(selfTypes, m.selfTypes)
	if !superChanged && !mixinsChanged {
		return
	}
	before := m.instanceAncestors(env)

	if superclass != m.superclass {
		if m.superclass != nil {
			m.superclass.subclasses.Remove(m)
		}
		if superclass != nil {
			superclass.subclasses.Insert(m)
		}
	}
	m.superclass, m.superclassFailed = superclass, failed

	if mixinsChanged {
		oldParents := set.From(m.parentModules())
		m.includes, m.prepends, m.selfTypes = includes, prepends, selfTypes
		newParents := set.From(m.parentModules())
		for _, parent := range oldParents.Slice() {
			if !newParents.Contains(parent) {
				parent.includers.Remove(m)
			}
		}
		for _, parent := range m.parentModules() {
			if !oldParents.Contains(parent) {
				parent.includers.Insert(m)
			}
		}
	}
	logger.Debug("parent modules changed", "module", m.PathString(), "superclass", superclass, "failed", failed)

	after := m.instanceAncestors(env)
	checked := set.New[*ModuleEntity](len(before) + len(after))
	for _, ancestor := range slices.Concat(before, after) {
		if checked.Insert(ancestor) {
			ancestor.runSubclassChecks(env)
		}
	}
	env.onAncestorsUpdated(m)
}

func (m *ModuleEntity) instanceAncestors(env *GlobalEnv) []*ModuleEntity {
	var ancestors []*ModuleEntity
	env.eachAncestor(m, false, func(mod *ModuleEntity, _ bool) bool {
		ancestors = append(ancestors, mod)
		return true
	})
	return ancestors
}

// descendants are the modules whose ancestry contains m directly
func (m *ModuleEntity) descendants() iter.Seq[*ModuleEntity] {
	return util.ConcatIter(m.subclasses.Items(), m.includers.Items())
}

// Subclasses are the classes whose superclass is m
func (m *ModuleEntity) Subclasses() []*ModuleEntity {
	return m.subclasses.Slice()
}

func (m *ModuleEntity) addSubclassCheck(checker subclassChecker) {
	if !m.subclassChecks.Insert(checker) {
		invariant("subclass check registered twice on %s", m.PathString())
	}
}

func (m *ModuleEntity) removeSubclassCheck(checker subclassChecker) {
	if !m.subclassChecks.Remove(checker) {
		invariant("removing a subclass check that %s does not have", m.PathString())
	}
}

func (m *ModuleEntity) runSubclassChecks(env *GlobalEnv) {
	for checker := range m.subclassChecks.Items() {
		checker.runSubclassCheck(env)
	}
}

func (m *ModuleEntity) registerStaticRead(name string, read *ConstRead) {
	reads, ok := m.staticReads[name]
	if !ok {
		reads = util.NewOrderedSet[*ConstRead]()
		m.staticReads[name] = reads
	}
	reads.Insert(read)
}

func (m *ModuleEntity) unregisterStaticRead(name string, read *ConstRead) {
	reads, ok := m.staticReads[name]
	if !ok || !reads.Remove(read) {
		invariant("static read %s is not registered on %s", name, m.PathString())
	}
	if reads.Len() == 0 {
		delete(m.staticReads, name)
	}
}

func (m *ModuleEntity) allStaticReads() []*ConstRead {
	var reads []*ConstRead
	for _, name := range slices.Sorted(maps.Keys(m.staticReads)) {
		reads = append(reads, m.staticReads[name].Slice()...)
	}
	return reads
}

// Method returns the entity of the method mid, registering it if needed
func (m *ModuleEntity) Method(singleton bool, mid string) *MethodEntity {
	methods := m.methods[singletonIndex(singleton)]
	me, ok := methods[mid]
	if !ok {
		me = newMethodEntity(m, singleton, mid)
		methods[mid] = me
	}
	return me
}

// Const returns the entity of the constant name, registering it if needed
func (m *ModuleEntity) Const(env *GlobalEnv, name string) *ValueEntity {
	ve, ok := m.consts[name]
	if !ok {
		ve = newValueEntity(env, m, name, false, valueConst)
		m.consts[name] = ve
	}
	return ve
}

func (m *ModuleEntity) IVar(env *GlobalEnv, singleton bool, name string) *ValueEntity {
	ivars := m.ivars[singletonIndex(singleton)]
	ve, ok := ivars[name]
	if !ok {
		ve = newValueEntity(env, m, name, singleton, valueIVar)
		ivars[name] = ve
	}
	return ve
}

func (m *ModuleEntity) CVar(env *GlobalEnv, name string) *ValueEntity {
	ve, ok := m.cvars[name]
	if !ok {
		ve = newValueEntity(env, m, name, false, valueCVar)
		m.cvars[name] = ve
	}
	return ve
}

// InnerModules lists the registered inner modules that exist, sorted by name
func (m *ModuleEntity) InnerModules() []*ModuleEntity {
	var mods []*ModuleEntity
	for _, name := range slices.Sorted(maps.Keys(m.innerModules)) {
		if inner := m.innerModules[name]; inner.Exist() {
			mods = append(mods, inner)
		}
	}
	return mods
}

// Methods lists the existing methods, sorted by name
func (m *ModuleEntity) Methods(singleton bool) []*MethodEntity {
	methods := m.methods[singletonIndex(singleton)]
	var mes []*MethodEntity
	for _, mid := range slices.Sorted(maps.Keys(methods)) {
		if methods[mid].Exist() {
			mes = append(mes, methods[mid])
		}
	}
	return mes
}

// Consts lists the existing constants, sorted by name
func (m *ModuleEntity) Consts() []*ValueEntity {
	var ves []*ValueEntity
	for _, name := range slices.Sorted(maps.Keys(m.consts)) {
		if m.consts[name].Exist() {
			ves = append(ves, m.consts[name])
		}
	}
	return ves
}

// IVars lists the existing instance variables, sorted by name
func (m *ModuleEntity) IVars(singleton bool) []*ValueEntity {
	ivars := m.ivars[singletonIndex(singleton)]
	var ves []*ValueEntity
	for _, name := range slices.Sorted(maps.Keys(ivars)) {
		if ivars[name].Exist() {
			ves = append(ves, ivars[name])
		}
	}
	return ves
}

func (m *ModuleEntity) eachMethodEntity() iter.Seq[*MethodEntity] {
	return func(yield func(*MethodEntity) bool) {
		for _, methods := range m.methods {
			for _, mid := range slices.Sorted(maps.Keys(methods)) {
				if !yield(methods[mid]) {
					return
				}
			}
		}
	}
}

func (m *ModuleEntity) eachVariableEntity() iter.Seq[*ValueEntity] {
	return func(yield func(*ValueEntity) bool) {
		for _, vars := range []map[string]*ValueEntity{m.ivars[0], m.ivars[1], m.cvars} {
			for _, name := range slices.Sorted(maps.Keys(vars)) {
				if !yield(vars[name]) {
					return
				}
			}
		}
	}
}
