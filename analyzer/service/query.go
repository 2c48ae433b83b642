package service

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/ir"
)

// pathAt lists the nodes of root containing pos, outermost first
func pathAt(root ast.Node, pos ir.Position) []ast.Node {
	var path []ast.Node
	ast.Walk(root, func(n ast.Node) bool {
		if !n.CodeRange().Contains(pos) {
			return false
		}
		path = append(path, n)
		return true
	})
	return path
}

// Hover describes what is at pos: the methods a call resolved to, the inferred
// signature of a definition, or the types of an expression
func (s *Service) Hover(path string, pos ir.Position) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.files[path]
	if !ok {
		return "", false
	}
	out := s.cached(fmt.Sprintf("hover %s %v", path, pos), func() string {
		return hover(pathAt(prog.Root(), pos), pos)
	})
	return out, out != ""
}

func hover(nodes []ast.Node, pos ir.Position) string {
	for i := len(nodes) - 1; i >= 0; i-- {
		switch n := nodes[i].(type) {
		case *ast.CallNode:
			if n.Box() == nil || !n.MidCodeRange().Contains(pos) {
				break
			}
			var lines []string
			for _, me := range n.Box().Resolved() {
				lines = append(lines, me.String()+": "+methodSignature(me))
			}
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
		case *ast.DefNode:
			if n.Box() != nil {
				return fmt.Sprintf("def %s%s: %s", selfPrefix(n.Singleton), n.Name, n.Box().Show())
			}
		case *ast.SigDef:
			if n.Box() != nil {
				return fmt.Sprintf("def %s%s: %s", selfPrefix(n.Singleton), n.Name, n.Box().Show())
			}
		case *ast.ModuleDef:
			if n.Module() != nil {
				return moduleHeader(n.Module())
			}
		case *ast.SigModuleDecl:
			if n.Module() != nil {
				return moduleHeader(n.Module())
			}
		}
		if _, ok := nodes[i].(*ast.Statements); ok {
			continue
		}
		if ret := nodes[i].Ret(); ret != nil {
			return core.ShowTypes(ret.Types())
		}
	}
	return ""
}

func locationOf(n core.Node) ir.Location {
	return ir.Location{File: n.SourceFile(), Range: n.CodeRange()}
}

func sortLocations(locs []ir.Location) []ir.Location {
	slices.SortFunc(locs, func(a, b ir.Location) int {
		if c := cmp.Compare(a.File, b.File); c != 0 {
			return c
		}
		switch {
		case a.Pos().Before(b.Pos()):
			return -1
		case b.Pos().Before(a.Pos()):
			return 1
		}
		return 0
	})
	return slices.Compact(locs)
}

// Definitions are the places that define or declare what is at pos
func (s *Service) Definitions(path string, pos ir.Position) []ir.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.files[path]
	if !ok {
		return nil
	}
	nodes := pathAt(prog.Root(), pos)
	for i := len(nodes) - 1; i >= 0; i-- {
		switch n := nodes[i].(type) {
		case *ast.CallNode:
			if n.Box() == nil || !n.MidCodeRange().Contains(pos) {
				continue
			}
			var locs []ir.Location
			for _, me := range n.Box().Resolved() {
				locs = append(locs, methodLocations(me)...)
			}
			return sortLocations(locs)
		case *ast.ConstNode:
			return sortLocations(constLocations(n.Read()))
		case *ast.VarRead:
			return sortLocations(s.varLocations(nodes[:i], n))
		}
	}
	return nil
}

func methodLocations(me *core.MethodEntity) []ir.Location {
	var locs []ir.Location
	for _, def := range me.Defs() {
		locs = append(locs, locationOf(def.Node()))
	}
	for _, decl := range me.Decls() {
		locs = append(locs, locationOf(decl.Node()))
	}
	for _, alias := range me.Aliases() {
		locs = append(locs, locationOf(alias.Node()))
	}
	return locs
}

func constLocations(read *core.ConstRead) []ir.Location {
	var locs []ir.Location
	switch {
	case read == nil:
	case read.Module() != nil:
		for _, origin := range read.Module().Decls() {
			locs = append(locs, locationOf(origin))
		}
		for _, origin := range read.Module().Defs() {
			locs = append(locs, locationOf(origin))
		}
	case read.Value() != nil:
		locs = valueLocations(read.Value())
	}
	return locs
}

func valueLocations(ve *core.ValueEntity) []ir.Location {
	var locs []ir.Location
	for _, n := range ve.Decls() {
		locs = append(locs, locationOf(n))
	}
	for _, n := range ve.Defs() {
		locs = append(locs, locationOf(n))
	}
	return locs
}

// enclosingModule is the module whose self a node below outer sees, and whether
// that self is the singleton
func (s *Service) enclosingModule(outer []ast.Node) (*core.ModuleEntity, bool) {
	var def *ast.DefNode
	for i := len(outer) - 1; i >= 0; i-- {
		switch n := outer[i].(type) {
		case *ast.DefNode:
			if def == nil {
				def = n
			}
		case *ast.ModuleDef:
			if n.Module() == nil {
				return nil, false
			}
			return n.Module(), def == nil || def.Singleton
		}
	}
	return s.env.Root(), def != nil && def.Singleton
}

func (s *Service) varLocations(outer []ast.Node, n *ast.VarRead) []ir.Location {
	if n.Kind == ast.GlobalVar {
		return valueLocations(s.env.GVar(n.Name))
	}
	mod, singleton := s.enclosingModule(outer)
	for ; mod != nil; mod = mod.Superclass() {
		var ve *core.ValueEntity
		if n.Kind == ast.ClassVar {
			ve = mod.CVar(s.env, n.Name)
		} else {
			ve = mod.IVar(s.env, singleton, n.Name)
		}
		if ve.Exist() {
			return valueLocations(ve)
		}
	}
	return nil
}

// References are the call sites of the method at pos, or the reads of the
// constant or module at pos, across every loaded file
func (s *Service) References(path string, pos ir.Position) []ir.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.files[path]
	if !ok {
		return nil
	}
	nodes := pathAt(prog.Root(), pos)
	for i := len(nodes) - 1; i >= 0; i-- {
		switch n := nodes[i].(type) {
		case *ast.CallNode:
			if n.Box() == nil || !n.MidCodeRange().Contains(pos) {
				continue
			}
			var locs []ir.Location
			for _, me := range n.Box().Resolved() {
				locs = append(locs, callers(me)...)
			}
			return sortLocations(locs)
		case *ast.DefNode:
			if n.Box() == nil {
				return nil
			}
			return sortLocations(callers(n.Box().Module().Method(n.Singleton, n.Name)))
		case *ast.SigDef:
			if n.Box() == nil {
				return nil
			}
			return sortLocations(callers(n.Box().Module().Method(n.Singleton, n.Name)))
		case *ast.ConstNode:
			if read := n.Read(); read != nil {
				return sortLocations(s.constReads(read.Module(), read.Value()))
			}
			return nil
		case *ast.ModuleDef:
			return sortLocations(s.constReads(n.Module(), nil))
		case *ast.SigModuleDecl:
			return sortLocations(s.constReads(n.Module(), nil))
		case *ast.ConstWrite:
			return sortLocations(s.constReads(nil, n.Entity()))
		}
	}
	return nil
}

// callers are the calls whose last run resolved to me
func callers(me *core.MethodEntity) []ir.Location {
	var locs []ir.Location
	for _, box := range me.CallBoxes() {
		call, ok := box.(*core.MethodCallBox)
		if ok && slices.Contains(call.Resolved(), me) {
			locs = append(locs, locationOf(call.Node()))
		}
	}
	return locs
}

// constReads are the constant reads resolving to mod, or to ve
func (s *Service) constReads(mod *core.ModuleEntity, ve *core.ValueEntity) []ir.Location {
	if mod == nil && ve == nil {
		return nil
	}
	var locs []ir.Location
	for _, prog := range s.files {
		ast.Walk(prog.Root(), func(n ast.Node) bool {
			c, ok := n.(*ast.ConstNode)
			if !ok || c.Read() == nil {
				return true
			}
			read := c.Read()
			if mod != nil && read.Module() == mod || ve != nil && read.Value() == ve {
				locs = append(locs, c.Location())
			}
			return true
		})
	}
	return locs
}
