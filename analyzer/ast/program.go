package ast

import (
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/ir"
)

// Program is the root of one source or signature file
type Program struct {
	Path string
	Body *Statements
	// Signature is set for declaration files
	Signature bool

	defined   bool
	installed bool
}

func (p *Program) Root() Node { return p.Body }

// Define registers the modules, constants, includes and static reads of the file
func (p *Program) Define(env *core.GlobalEnv) {
	if p.defined {
		panic("program " + p.Path + " defined twice")
	}
	Define(env, ToplevelScope(), p.Body)
	p.defined = true
}

func (p *Program) Undefine(env *core.GlobalEnv) {
	if !p.defined {
		return
	}
	Undefine(env, p.Body)
	p.defined = false
}

// Install wires the file into env. Define must have run and the static-eval queue
// must have been drained.
func (p *Program) Install(env *core.GlobalEnv) core.BasicVertex {
	p.installed = true
	return p.Body.Install(env, NewToplevelEnv(env))
}

func (p *Program) Uninstall(env *core.GlobalEnv) {
	if !p.installed {
		return
	}
	Uninstall(env, p.Body)
	p.installed = false
}

// NodeAt is the innermost node of the file at pos
func (p *Program) NodeAt(pos ir.Position) Node {
	return NodeAt(p.Body, pos)
}
