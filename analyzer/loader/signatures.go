package loader

import (
	"slices"
	"strings"

	"github.com/cottand/typeflow/analyzer/ast"
	"gopkg.in/yaml.v3"
)

// LoadSignatures reads a declaration file. Types and method types are written
// in a compact RBS-like syntax inside YAML strings.
//
//	- class: Array[Elem]
//	  superclass: Object
//	  include: [Enumerable]
//	  methods:
//	    first: "() -> Elem?"
//	    map: "[U] () { (Elem) -> U } -> Array[U]"
//	  singleton_methods:
//	    "[]": "[U] (*U) -> Array[U]"
//	- const: VERSION
//	  type: String
func LoadSignatures(path string, data []byte) (*ast.Program, error) {
	l := &loader{file: path}
	root, err := l.document(data)
	if err != nil {
		return nil, err
	}
	body := &ast.Statements{Base: l.base(root)}
	for _, item := range root.Content {
		if decl := l.decl(item, nil); decl != nil {
			body.Body = append(body.Body, decl)
		}
	}
	if err := l.err(); err != nil {
		return nil, err
	}
	logger.Debug("loaded signatures", "path", path, "declarations", len(body.Body))
	return &ast.Program{Path: path, Body: body, Signature: true}, nil
}

// decl reads one top-level or nested declaration; vars are the type parameters in scope
func (l *loader) decl(n *yaml.Node, vars []string) ast.Node {
	if n.Kind != yaml.MappingNode {
		l.fail(n, "a declaration is a mapping")
		return nil
	}
	m := l.mapping(n)
	for _, kind := range []string{"class", "module", "interface"} {
		if v, ok := m.get(kind); ok {
			return l.moduleDecl(m, kind, v)
		}
	}
	if v, ok := m.get("const"); ok {
		return &ast.SigConstDecl{Base: l.base(n), Name: v.Value, Type: l.sigType(m.values["type"], n, vars)}
	}
	if v, ok := m.get("global"); ok {
		return &ast.SigVarDecl{Base: l.base(n), Kind: ast.GlobalVar, Name: v.Value, Type: l.sigType(m.values["type"], n, vars)}
	}
	l.fail(n, "unknown declaration with keys %v", m.keys)
	return nil
}

func (l *loader) moduleDecl(m *mapping, kind string, header *yaml.Node) ast.Node {
	name, params, err := parseHeader(header.Value)
	if err != nil {
		l.fail(header, "%v", err)
		return nil
	}
	d := &ast.SigModuleDecl{Base: l.base(m.node), Name: name, Params: params}
	switch kind {
	case "module":
		d.Kind = ast.KindModule
	case "interface":
		d.Kind = ast.KindInterface
	}
	if s, ok := m.get("superclass"); ok {
		d.Superclass = l.constNode(s)
	}
	if s, ok := m.get("self"); ok {
		for _, item := range seq(s) {
			d.SelfTypes = append(d.SelfTypes, l.constNode(item))
		}
	}
	vars := params

	for _, key := range []string{"include", "prepend"} {
		v, ok := m.get(key)
		if !ok {
			continue
		}
		inc := &ast.IncludeNode{Base: l.base(v), Prepend: key == "prepend"}
		for _, item := range seq(v) {
			// type arguments of included modules are not modelled
			path, _, _ := strings.Cut(item.Value, "[")
			if !isConstPath(path) {
				l.fail(item, "expected a module, found %q", item.Value)
				continue
			}
			inc.Modules = append(inc.Modules, l.constPath(item, path))
		}
		d.Members = append(d.Members, inc)
	}
	d.Members = append(d.Members, l.methodDecls(m, "methods", false, vars)...)
	d.Members = append(d.Members, l.methodDecls(m, "singleton_methods", true, vars)...)
	d.Members = append(d.Members, l.varDecls(m, "ivars", ast.InstanceVar, false, vars)...)
	d.Members = append(d.Members, l.varDecls(m, "singleton_ivars", ast.InstanceVar, true, vars)...)
	d.Members = append(d.Members, l.varDecls(m, "cvars", ast.ClassVar, false, vars)...)
	if v, ok := m.get("consts"); ok {
		cm := l.mapping(v)
		for _, name := range cm.keys {
			c := &ast.SigConstDecl{Base: l.base(cm.keyAt[name]), Name: name, Type: l.sigType(cm.values[name], cm.keyAt[name], nil)}
			d.Members = append(d.Members, c)
		}
	}
	for _, key := range []string{"aliases", "singleton_aliases"} {
		v, ok := m.get(key)
		if !ok {
			continue
		}
		am := l.mapping(v)
		for _, newName := range am.keys {
			alias := &ast.AliasNode{Base: l.base(am.keyAt[newName]), New: newName, Old: am.str(newName), Singleton: key == "singleton_aliases"}
			d.Members = append(d.Members, alias)
		}
	}
	if v, ok := m.get("body"); ok {
		for _, item := range seq(v) {
			if decl := l.decl(item, nil); decl != nil {
				d.Members = append(d.Members, decl)
			}
		}
	}
	return d
}

// methodDecls reads `name: overload` or `name: [overload, ...]` entries
func (l *loader) methodDecls(m *mapping, key string, singleton bool, vars []string) []ast.Node {
	v, ok := m.get(key)
	if !ok {
		return nil
	}
	mm := l.mapping(v)
	var decls []ast.Node
	for _, name := range mm.keys {
		def := &ast.SigDef{Base: l.base(mm.keyAt[name]), Name: name, Singleton: singleton}
		for _, o := range seq(mm.values[name]) {
			mt, err := ParseMethodType(o.Value, l.file, rangeOf(o), vars)
			if err != nil {
				l.fail(o, "%v", err)
				continue
			}
			def.Overloads = append(def.Overloads, mt)
		}
		decls = append(decls, def)
	}
	return decls
}

func (l *loader) varDecls(m *mapping, key string, kind ast.VarKind, singleton bool, vars []string) []ast.Node {
	v, ok := m.get(key)
	if !ok {
		return nil
	}
	vm := l.mapping(v)
	var decls []ast.Node
	for _, name := range vm.keys {
		if !strings.HasPrefix(name, "@") {
			l.fail(vm.keyAt[name], "variable %q needs its sigil", name)
			continue
		}
		decl := &ast.SigVarDecl{
			Base:      l.base(vm.keyAt[name]),
			Kind:      kind,
			Name:      name,
			Singleton: singleton,
			Type:      l.sigType(vm.values[name], vm.keyAt[name], vars),
		}
		decls = append(decls, decl)
	}
	return decls
}

func (l *loader) sigType(v, at *yaml.Node, vars []string) ast.SigTypeNode {
	if v == nil || v.Kind != yaml.ScalarNode {
		l.fail(at, "missing type")
		return &ast.SigBaseType{Kind: ast.BaseUntyped}
	}
	t, err := ParseType(v.Value, l.file, rangeOf(v), slices.Clone(vars))
	if err != nil {
		l.fail(v, "%v", err)
		return &ast.SigBaseType{Kind: ast.BaseUntyped}
	}
	return t
}
