package core

type builtinDef struct {
	cpath     []string
	singleton bool
	mid       string
	fn        Builtin
}

func builtinDefs() []builtinDef {
	return []builtinDef{
		{[]string{"Class"}, false, "new", classNew},
		{nil, false, "class", objectClass},
		{[]string{"Proc"}, false, "call", procCall},
		{[]string{"Array"}, false, "[]", arrayAref},
		{[]string{"Array"}, false, "[]=", arrayAset},
		{[]string{"Hash"}, false, "[]", hashAref},
		{[]string{"Hash"}, false, "[]=", hashAset},
	}
}

func installBuiltins(env *GlobalEnv) {
	for _, def := range builtinDefs() {
		env.ResolveCpath(def.cpath).Method(def.singleton, def.mid).setBuiltin(def.fn)
	}
}

// classNew makes an instance of the receiver and calls its initialize with the arguments
func classNew(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, args *ActualArgs, ret BasicVertex) bool {
	s, ok := recv.(*Singleton)
	if !ok {
		return false
	}
	var inst *Instance
	if params := s.Mod.TypeParams(); len(params) > 0 {
		typeArgs := make([]BasicVertex, len(params))
		for i, param := range params {
			typeArgs[i] = changes.NewVertex(env, newTypeArgKey{s.Mod, param})
		}
		inst = NewInstance(s.Mod, typeArgs...)
	} else {
		inst = env.InstanceOf(s.Mod)
	}
	src := changes.NewSource(env, inst)
	changes.AddMethodCallBox(env, src, "initialize", args, false)
	if l, ok := ret.(Listener); ok {
		changes.AddEdge(src, l)
	}
	return true
}

type newTypeArgKey struct {
	mod   *ModuleEntity
	param string
}

func objectClass(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, _ *ActualArgs, ret BasicVertex) bool {
	base := recv.Base(env)
	inst, ok := base.(*Instance)
	if !ok {
		return false
	}
	if l, ok := ret.(Listener); ok {
		changes.AddEdge(changes.NewSource(env, env.SingletonOf(inst.Mod)), l)
	}
	return true
}

func procCall(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, args *ActualArgs, ret BasicVertex) bool {
	proc, ok := recv.(*Proc)
	if !ok {
		return false
	}
	proc.Block.AcceptArgs(env, changes, args.Positionals, ret)
	return true
}

// literalIndex returns the integer literal passed as the first argument, normalised
// against the length of a tuple
func literalIndex(args *ActualArgs, length int) (int, bool) {
	if len(args.Nodes) == 0 || args.hasSplat() {
		return 0, false
	}
	lit, ok := args.Nodes[0].(IntLiteral)
	if !ok {
		return 0, false
	}
	idx := lit.IntValue()
	if idx < 0 {
		idx += length
	}
	return idx, true
}

func literalKey(args *ActualArgs) (string, bool) {
	if len(args.Nodes) == 0 || args.hasSplat() {
		return "", false
	}
	lit, ok := args.Nodes[0].(SymbolLiteral)
	if !ok {
		return "", false
	}
	return lit.SymbolValue(), true
}

func arrayAref(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, args *ActualArgs, ret BasicVertex) bool {
	tuple, ok := recv.(*Tuple)
	if !ok || len(args.Positionals) != 1 {
		return false
	}
	idx, ok := literalIndex(args, len(tuple.Elems))
	if !ok {
		return false
	}
	l, ok := ret.(Listener)
	if !ok {
		return true
	}
	if idx >= 0 && idx < len(tuple.Elems) {
		changes.AddEdge(tuple.Elems[idx], l)
	} else {
		changes.AddEdge(changes.NewSource(env, env.NilType()), l)
	}
	return true
}

func arrayAset(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, args *ActualArgs, ret BasicVertex) bool {
	tuple, ok := recv.(*Tuple)
	if !ok || len(args.Positionals) != 2 {
		return false
	}
	idx, ok := literalIndex(args, len(tuple.Elems))
	if !ok || idx < 0 || idx >= len(tuple.Elems) {
		return false
	}
	value := args.Positionals[1]
	if elem, ok := tuple.Elems[idx].(Listener); ok {
		changes.AddEdge(value, elem)
	}
	if l, ok := ret.(Listener); ok {
		changes.AddEdge(value, l)
	}
	return true
}

func hashAref(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, args *ActualArgs, ret BasicVertex) bool {
	rec, ok := recv.(*Record)
	if !ok || len(args.Positionals) != 1 {
		return false
	}
	key, ok := literalKey(args)
	if !ok {
		return false
	}
	l, ok := ret.(Listener)
	if !ok {
		return true
	}
	if field, ok := rec.Field(key); ok {
		changes.AddEdge(field, l)
	} else {
		changes.AddEdge(changes.NewSource(env, env.NilType()), l)
	}
	return true
}

func hashAset(env *GlobalEnv, changes *ChangeSet, _ Node, recv Type, args *ActualArgs, ret BasicVertex) bool {
	rec, ok := recv.(*Record)
	if !ok || len(args.Positionals) != 2 {
		return false
	}
	key, ok := literalKey(args)
	if !ok {
		return false
	}
	field, ok := rec.Field(key)
	if !ok {
		return false
	}
	value := args.Positionals[1]
	if l, ok := field.(Listener); ok {
		changes.AddEdge(value, l)
	}
	if l, ok := ret.(Listener); ok {
		changes.AddEdge(value, l)
	}
	return true
}
