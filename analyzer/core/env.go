package core

import (
	"iter"
	"log/slog"

	"github.com/cottand/typeflow/internal/log"
	"github.com/cottand/typeflow/util"
	"github.com/hashicorp/go-set/v3"
)

var logger = log.DefaultLogger.With("section", "env")

// Options tune the engine. The zero value is not useful, start from DefaultOptions.
type Options struct {
	// AliasDepthLimit bounds how many aliases are followed when resolving a call
	AliasDepthLimit int
	// DiagnosticLimit is how many undefined-method diagnostics a call site reports
	// before summarising the rest as a count
	DiagnosticLimit int
	// MaxRuns bounds the number of box runs in one drain of the run queue, 0 means unbounded
	MaxRuns int
	// SubclassDispatch makes calls on implicit self also reach redefinitions in subclasses
	SubclassDispatch bool
}

func DefaultOptions() Options {
	return Options{
		AliasDepthLimit:  5,
		DiagnosticLimit:  3,
		SubclassDispatch: true,
	}
}

type staticEvalKind int

const (
	childModulesChanged staticEvalKind = iota
	staticReadChanged
	parentModulesChanged
)

func (k staticEvalKind) String() string {
	switch k {
	case childModulesChanged:
		return "child_modules_changed"
	case staticReadChanged:
		return "static_read_changed"
	default:
		return "parent_modules_changed"
	}
}

type staticEvalItem struct {
	kind staticEvalKind
	mod  *ModuleEntity
	name string
	read *ConstRead
}

// GlobalEnv is the registry of every module, method and value of one analysis
// session, together with the two queues that drive it to a fixpoint.
type GlobalEnv struct {
	Options Options

	lastID int
	root   *ModuleEntity
	gvars  map[string]*ValueEntity

	staticEvalQueue *util.Queue[staticEvalItem]
	runQueue        *util.Queue[Box]
	runCount        int

	instances  map[*ModuleEntity]*Instance
	singletons map[*ModuleEntity]*Singleton

	ModObject      *ModuleEntity
	ModBasicObject *ModuleEntity
	ModModule      *ModuleEntity
	ModClass       *ModuleEntity
	ModNilClass    *ModuleEntity
	ModTrueClass   *ModuleEntity
	ModFalseClass  *ModuleEntity
	ModInteger     *ModuleEntity
	ModFloat       *ModuleEntity
	ModString      *ModuleEntity
	ModSymbol      *ModuleEntity
	ModArray       *ModuleEntity
	ModHash        *ModuleEntity
	ModProc        *ModuleEntity
}

func NewGlobalEnv(opts Options) *GlobalEnv {
	env := &GlobalEnv{
		Options:         opts,
		gvars:           make(map[string]*ValueEntity),
		staticEvalQueue: util.NewQueue[staticEvalItem](),
		runQueue:        util.NewQueue[Box](),
		instances:       make(map[*ModuleEntity]*Instance),
		singletons:      make(map[*ModuleEntity]*Singleton),
	}
	env.root = newModuleEntity(env, nil, nil)
	env.ModObject = env.root
	env.ModBasicObject = env.ResolveCpath([]string{"BasicObject"})
	env.ModModule = env.ResolveCpath([]string{"Module"})
	env.ModClass = env.ResolveCpath([]string{"Class"})
	env.ModNilClass = env.ResolveCpath([]string{"NilClass"})
	env.ModTrueClass = env.ResolveCpath([]string{"TrueClass"})
	env.ModFalseClass = env.ResolveCpath([]string{"FalseClass"})
	env.ModInteger = env.ResolveCpath([]string{"Integer"})
	env.ModFloat = env.ResolveCpath([]string{"Float"})
	env.ModString = env.ResolveCpath([]string{"String"})
	env.ModSymbol = env.ResolveCpath([]string{"Symbol"})
	env.ModArray = env.ResolveCpath([]string{"Array"})
	env.ModHash = env.ResolveCpath([]string{"Hash"})
	env.ModProc = env.ResolveCpath([]string{"Proc"})
	installBuiltins(env)
	return env
}

func (env *GlobalEnv) newID() int {
	env.lastID++
	return env.lastID
}

// Root is the module of the toplevel, Object
func (env *GlobalEnv) Root() *ModuleEntity { return env.root }

// ResolveCpath returns the module registered at cpath, registering it (and its
// outer modules) when needed. A registered module need not exist.
func (env *GlobalEnv) ResolveCpath(cpath []string) *ModuleEntity {
	mod := env.root
	for _, name := range cpath {
		mod = mod.inner(env, name)
	}
	return mod
}

// LookupCpath is ResolveCpath without registering anything
func (env *GlobalEnv) LookupCpath(cpath []string) (*ModuleEntity, bool) {
	mod := env.root
	for _, name := range cpath {
		if mod.IsRoot() && name == "Object" {
			continue
		}
		inner, ok := mod.innerModules[name]
		if !ok {
			return nil, false
		}
		mod = inner
	}
	return mod, true
}

// GVar is the entity of the global variable name
func (env *GlobalEnv) GVar(name string) *ValueEntity {
	ve, ok := env.gvars[name]
	if !ok {
		ve = newValueEntity(env, env.root, name, false, valueGVar)
		env.gvars[name] = ve
	}
	return ve
}

// InstanceOf is the instance type of mod without type arguments
func (env *GlobalEnv) InstanceOf(mod *ModuleEntity) *Instance {
	inst, ok := env.instances[mod]
	if !ok {
		inst = NewInstance(mod)
		env.instances[mod] = inst
	}
	return inst
}

func (env *GlobalEnv) SingletonOf(mod *ModuleEntity) *Singleton {
	s, ok := env.singletons[mod]
	if !ok {
		s = NewSingleton(mod)
		env.singletons[mod] = s
	}
	return s
}

func (env *GlobalEnv) NilType() *Instance   { return env.InstanceOf(env.ModNilClass) }
func (env *GlobalEnv) TrueType() *Instance  { return env.InstanceOf(env.ModTrueClass) }
func (env *GlobalEnv) FalseType() *Instance { return env.InstanceOf(env.ModFalseClass) }

func (env *GlobalEnv) isNil(t Type) bool {
	inst, ok := t.(*Instance)
	return ok && inst.Mod == env.ModNilClass
}

func (env *GlobalEnv) isFalse(t Type) bool {
	inst, ok := t.(*Instance)
	return ok && inst.Mod == env.ModFalseClass
}

// ArrayOf is Array[elem]
func (env *GlobalEnv) ArrayOf(elem BasicVertex) *Instance {
	return NewInstance(env.ModArray, elem)
}

// HashOf is Hash[key, value]
func (env *GlobalEnv) HashOf(key, value BasicVertex) *Instance {
	return NewInstance(env.ModHash, key, value)
}

func (env *GlobalEnv) enqueueStaticEval(item staticEvalItem) {
	if env.staticEvalQueue.Push(item) {
		logger.Debug("static eval enqueued", "kind", item.kind.String(), "name", item.name)
	}
}

func (env *GlobalEnv) enqueueChildModulesChanged(outer *ModuleEntity, name string) {
	env.enqueueStaticEval(staticEvalItem{kind: childModulesChanged, mod: outer, name: name})
}

func (env *GlobalEnv) enqueueStaticReadChanged(read *ConstRead) {
	env.enqueueStaticEval(staticEvalItem{kind: staticReadChanged, read: read})
}

func (env *GlobalEnv) enqueueParentModulesChanged(mod *ModuleEntity) {
	env.enqueueStaticEval(staticEvalItem{kind: parentModulesChanged, mod: mod})
}

// AddRun queues box for execution unless it is already queued
func (env *GlobalEnv) AddRun(box Box) {
	env.runQueue.Push(box)
}

// DefineAll drains the static-eval queue: constant resolution and ancestry
// settle before any box runs.
func (env *GlobalEnv) DefineAll() {
	for {
		item, ok := env.staticEvalQueue.Pop()
		if !ok {
			return
		}
		switch item.kind {
		case childModulesChanged:
			item.mod.onChildModulesChanged(env, item.name)
		case staticReadChanged:
			item.read.onScopeUpdated(env)
		case parentModulesChanged:
			item.mod.onParentModulesChanged(env)
		}
	}
}

// RunAll drains both queues until neither has work left.
// The static-eval queue is drained before every box run.
func (env *GlobalEnv) RunAll() {
	env.runCount = 0
	for {
		env.DefineAll()
		box, ok := env.runQueue.Pop()
		if !ok {
			return
		}
		if env.Options.MaxRuns > 0 && env.runCount >= env.Options.MaxRuns {
			logger.Warn("run limit reached, dropping queued boxes", "limit", env.Options.MaxRuns, "dropped", env.runQueue.Len()+1)
			for _, ok := env.runQueue.Pop(); ok; _, ok = env.runQueue.Pop() {
			}
			return
		}
		env.runCount++
		box.Run(env)
	}
}

// Pending reports whether either queue has work left
func (env *GlobalEnv) Pending() bool {
	return env.staticEvalQueue.Len() > 0 || env.runQueue.Len() > 0
}

// eachAncestor walks the method resolution order of mod: for instances, prepended
// modules, the module, included modules (and self types), then the superclass;
// for singletons the singleton chain followed by the instance ancestors of Class
// (or Module). Returning false from yield stops the walk.
func (env *GlobalEnv) eachAncestor(mod *ModuleEntity, singleton bool, yield func(mod *ModuleEntity, singleton bool) bool) {
	visited := set.New[*ModuleEntity](8)
	if !singleton {
		walkInstanceAncestors(mod, visited, yield)
		return
	}
	isClass := mod.IsClass()
	for m := range env.superclassChain(mod) {
		if !yield(m, true) {
			return
		}
	}
	meta := env.ModModule
	if isClass {
		meta = env.ModClass
	}
	walkInstanceAncestors(meta, visited, yield)
}

func walkInstanceAncestors(mod *ModuleEntity, visited *set.Set[*ModuleEntity], yield func(*ModuleEntity, bool) bool) bool {
	if !visited.Insert(mod) {
		return true
	}
	for prepended := range util.Reverse(mod.prepends) {
		if !walkInstanceAncestors(prepended, visited, yield) {
			return false
		}
	}
	if !yield(mod, false) {
		return false
	}
	for included := range util.Reverse(mod.includes) {
		if !walkInstanceAncestors(included, visited, yield) {
			return false
		}
	}
	for _, selfType := range mod.selfTypes {
		if !walkInstanceAncestors(selfType, visited, yield) {
			return false
		}
	}
	if mod.superclass != nil {
		return walkInstanceAncestors(mod.superclass, visited, yield)
	}
	return true
}

// superclassChain yields mod and then its superclasses
func (env *GlobalEnv) superclassChain(mod *ModuleEntity) iter.Seq[*ModuleEntity] {
	return func(yield func(*ModuleEntity) bool) {
		visited := set.New[*ModuleEntity](4)
		for m := mod; m != nil && visited.Insert(m); m = m.superclass {
			if !yield(m) {
				return
			}
		}
	}
}

// IsSubclassOf reports whether sup is among the instance ancestors of sub
func (env *GlobalEnv) IsSubclassOf(sub, sup *ModuleEntity) bool {
	found := false
	env.eachAncestor(sub, false, func(mod *ModuleEntity, _ bool) bool {
		found = mod == sup
		return !found
	})
	return found
}

// isA reports whether a value of type t is_a? target
func (env *GlobalEnv) isA(t Type, target *ModuleEntity) bool {
	base := t.Base(env)
	if base == nil {
		return false
	}
	mod, singleton, ok := moduleOf(base)
	if !ok {
		return false
	}
	found := false
	env.eachAncestor(mod, singleton, func(m *ModuleEntity, s bool) bool {
		found = !s && m == target
		return !found
	})
	return found
}

// onAncestorsUpdated re-evaluates everything below mod whose result may depend on
// the ancestry of mod: static reads, call sites of their methods, variable reads
// and subclass checks.
func (env *GlobalEnv) onAncestorsUpdated(mod *ModuleEntity) {
	logger.Debug("ancestors updated", "module", slog.StringValue(mod.PathString()))
	visited := set.New[*ModuleEntity](8)
	var visit func(m *ModuleEntity)
	visit = func(m *ModuleEntity) {
		if !visited.Insert(m) {
			return
		}
		for _, read := range m.allStaticReads() {
			env.enqueueStaticReadChanged(read)
		}
		for me := range m.eachMethodEntity() {
			for box := range me.callBoxes.Items() {
				env.AddRun(box)
			}
		}
		for ve := range m.eachVariableEntity() {
			for box := range ve.readBoxes.Items() {
				env.AddRun(box)
			}
		}
		m.runSubclassChecks(env)
		for child := range m.descendants() {
			visit(child)
		}
	}
	visit(mod)
}

// respondsTo reports whether mod (or its singleton) has a method mid, registering
// the lookup as a dependency of changes
func (env *GlobalEnv) respondsTo(changes *ChangeSet, mod *ModuleEntity, singleton bool, mid string) bool {
	found := false
	env.eachAncestor(mod, singleton, func(m *ModuleEntity, s bool) bool {
		me := m.Method(s, mid)
		changes.AddDependedMethodEntity(me)
		found = me.Exist()
		return !found
	})
	return found
}
