package service

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/core"
)

const circularMarker = " # failed to identify its superclass"

// DumpDeclarations renders what path declares: classes and modules with their
// instance variables, constants and methods, as inferred so far.
// Top-level methods are shown inside `class Object`.
func (s *Service) DumpDeclarations(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.files[path]
	if !ok {
		return "", false
	}
	return s.cached("decls "+path, func() string {
		p := &printer{}
		p.toplevel(declarations(prog.Body.Body))
		return p.String()
	}), true
}

// DumpModule renders every method, constant and instance variable of the module
// at cpath, whichever file they come from, sorted by name
func (s *Service) DumpModule(cpath []string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mod, ok := s.env.LookupCpath(cpath)
	if !ok || !mod.Exist() {
		return "", false
	}
	return s.cached("module "+strings.Join(cpath, "::"), func() string {
		return dumpModule(mod)
	}), true
}

func dumpModule(mod *core.ModuleEntity) string {
	entries := immutable.NewSortedMap[string, string](nil)
	for i, inc := range mod.Prepends() {
		entries = entries.Set(fmt.Sprintf("0:p%03d", i), "prepend "+inc.ShowPath())
	}
	for i, inc := range mod.Includes() {
		entries = entries.Set(fmt.Sprintf("0:i%03d", i), "include "+inc.ShowPath())
	}
	for _, c := range mod.Consts() {
		entries = entries.Set("1:"+c.Name(), c.Name()+": "+c.Vertex().Show())
	}
	for _, singleton := range []bool{false, true} {
		prefix := "3:"
		if singleton {
			prefix = "4:"
		}
		for _, iv := range mod.IVars(singleton) {
			entries = entries.Set("2:"+prefix+iv.Name(), selfPrefix(singleton)+iv.Name()+": "+iv.Vertex().Show())
		}
		for _, me := range mod.Methods(singleton) {
			entries = entries.Set(prefix+me.Mid(), methodLine(me))
		}
	}

	p := &printer{}
	p.open(moduleHeader(mod))
	itr := entries.Iterator()
	for !itr.Done() {
		_, line, _ := itr.Next()
		p.line("%s", line)
	}
	p.close()
	return p.String()
}

func selfPrefix(singleton bool) string {
	if singleton {
		return "self."
	}
	return ""
}

func moduleHeader(mod *core.ModuleEntity) string {
	if !mod.IsClass() {
		return "module " + mod.ShowPath()
	}
	header := "class " + mod.ShowPath()
	switch {
	case mod.SuperclassFailed():
		header += circularMarker
	case mod.Superclass() != nil && mod.Superclass().PathString() != "Object":
		header += " < " + mod.Superclass().ShowPath()
	}
	return header
}

// methodLine renders the definitions of me when it has any, its declarations otherwise
func methodLine(me *core.MethodEntity) string {
	head := "def " + selfPrefix(me.Singleton()) + me.Mid()
	if sig := methodSignature(me); sig != "" {
		return head + ": " + sig
	}
	if aliases := me.Aliases(); len(aliases) > 0 {
		return "alias " + me.Mid() + " " + aliases[0].OldMid()
	}
	return head + " # builtin"
}

func methodSignature(me *core.MethodEntity) string {
	var sigs []string
	if defs := me.Defs(); len(defs) > 0 {
		for _, def := range defs {
			sigs = append(sigs, def.Show())
		}
		return strings.Join(sigs, " | ")
	}
	for _, decl := range me.Decls() {
		sigs = append(sigs, decl.Show())
	}
	return strings.Join(sigs, " | ")
}

// declarations collects the nodes that declare something, outermost first,
// without looking into method bodies or nested modules
func declarations(body []ast.Node) []ast.Node {
	var decls []ast.Node
	for _, stmt := range body {
		ast.Walk(stmt, func(n ast.Node) bool {
			switch n.(type) {
			case *ast.ModuleDef, *ast.DefNode, *ast.SigModuleDecl, *ast.SigDef:
				decls = append(decls, n)
				return false
			case *ast.ConstWrite, *ast.SigConstDecl, *ast.SigVarDecl, *ast.IncludeNode, *ast.AliasNode:
				decls = append(decls, n)
				return false
			}
			return true
		})
	}
	return decls
}

// instanceVars are the instance variables written anywhere in body outside nested modules
func instanceVars(body []ast.Node) []*core.ValueEntity {
	var ivars []*core.ValueEntity
	seen := map[*core.ValueEntity]bool{}
	for _, stmt := range body {
		ast.Walk(stmt, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.ModuleDef:
				return false
			case *ast.VarWrite:
				if n.Kind == ast.InstanceVar && n.Entity() != nil && !seen[n.Entity()] {
					seen[n.Entity()] = true
					ivars = append(ivars, n.Entity())
				}
			}
			return true
		})
	}
	return ivars
}

type printer struct {
	sb    strings.Builder
	depth int
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.depth))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) open(header string) {
	p.line("%s", header)
	p.depth++
}

func (p *printer) close() {
	p.depth--
	p.line("end")
}

func (p *printer) String() string { return p.sb.String() }

// toplevel wraps runs of top-level methods in `class Object`
func (p *printer) toplevel(decls []ast.Node) {
	var defs []ast.Node
	flush := func() {
		if len(defs) == 0 {
			return
		}
		p.open("class Object")
		p.members(defs)
		p.close()
		defs = nil
	}
	for _, n := range decls {
		switch n.(type) {
		case *ast.DefNode, *ast.SigDef:
			defs = append(defs, n)
			continue
		}
		flush()
		p.members([]ast.Node{n})
	}
	flush()
}

func (p *printer) members(decls []ast.Node) {
	for _, n := range decls {
		switch n := n.(type) {
		case *ast.ModuleDef:
			p.moduleDef(n)
		case *ast.SigModuleDecl:
			p.moduleDecl(n)
		case *ast.DefNode:
			if n.Box() != nil {
				p.line("def %s%s: %s", selfPrefix(n.Singleton), n.Name, n.Box().Show())
			}
		case *ast.SigDef:
			if n.Box() != nil {
				p.line("def %s%s: %s", selfPrefix(n.Singleton), n.Name, n.Box().Show())
			}
		case *ast.ConstWrite:
			if n.Entity() != nil {
				p.line("%s: %s", n.Name, n.Entity().Vertex().Show())
			}
		case *ast.SigConstDecl:
			p.line("%s: %s", n.Name, n.Type.Build())
		case *ast.SigVarDecl:
			p.line("%s%s: %s", selfPrefix(n.Singleton), n.Name, n.Type.Build())
		case *ast.IncludeNode:
			for _, m := range n.Modules {
				p.line("%s %s", n.Describe(), constName(m))
			}
		case *ast.AliasNode:
			p.line("alias %s%s %s", selfPrefix(n.Singleton), n.New, n.Old)
		}
	}
}

func (p *printer) moduleDef(n *ast.ModuleDef) {
	mod := n.Module()
	if mod == nil {
		return
	}
	header := "module " + strings.Join(n.Name, "::")
	if n.Class {
		header = "class " + strings.Join(n.Name, "::")
		switch {
		case mod.SuperclassFailed():
			header += circularMarker
		case n.Superclass != nil && mod.Superclass() != nil:
			header += " < " + mod.Superclass().ShowPath()
		}
	}
	p.open(header)
	for _, iv := range instanceVars(n.Body.Body) {
		p.line("%s: %s", iv.Name(), iv.Vertex().Show())
	}
	p.members(declarations(n.Body.Body))
	p.close()
}

func (p *printer) moduleDecl(n *ast.SigModuleDecl) {
	header := n.Kind.String() + " " + strings.Join(n.Name, "::")
	if len(n.Params) > 0 {
		header += "[" + strings.Join(n.Params, ", ") + "]"
	}
	if n.Superclass != nil {
		header += " < " + constName(n.Superclass)
	}
	p.open(header)
	p.members(n.Members)
	p.close()
}

// constName is the module a constant resolved to, or its written path
func constName(c *ast.ConstNode) string {
	if read := c.Read(); read != nil && read.Module() != nil {
		return read.Module().ShowPath()
	}
	return strings.Join(c.Path(), "::")
}
