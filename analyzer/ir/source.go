// Package ir holds source locations shared by the node tree, the engine and diagnostics
package ir

import (
	"fmt"
)

// Position is a 1-based line and 0-based column in a source file
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p comes strictly before other
func (p Position) Before(other Position) bool {
	return p.Line < other.Line || p.Line == other.Line && p.Column < other.Column
}

// Positioner allows finding the location in the original source file.
// The easiest way to be a Positioner is to embed a Range
type Positioner interface {
	Pos() Position // position of first character belonging to the node
	End() Position // position of first character immediately after the node
}

type Range struct {
	PosStart Position
	PosEnd   Position
}

var NoRange = Range{}

func (r Range) Pos() Position { return r.PosStart }
func (r Range) End() Position { return r.PosEnd }
func (r Range) String() string {
	if r.PosStart == r.PosEnd {
		return r.PosStart.String()
	}
	return fmt.Sprintf("%v-%v", r.PosStart, r.PosEnd)
}

// Contains reports whether pos lies in [PosStart, PosEnd]
func (r Range) Contains(pos Position) bool {
	return !pos.Before(r.PosStart) && !r.PosEnd.Before(pos)
}

// Includes reports whether other lies fully inside r
func (r Range) Includes(other Range) bool {
	return r.Contains(other.PosStart) && r.Contains(other.PosEnd)
}

func RangeOf(p Positioner) Range {
	if p == nil {
		return NoRange
	}
	return Range{p.Pos(), p.End()}
}

func RangeBetween(fst, snd Positioner) Range {
	return Range{fst.Pos(), snd.End()}
}

// Location is a Range in a named file
type Location struct {
	File string
	Range
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%v", l.File, l.Range)
}
