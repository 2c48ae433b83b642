// Package diag defines the diagnostics reported while analysing a program.
//
// Diagnostics are values: two diagnostics with the same fields are the same
// diagnostic, which lets the engine diff the set a box produced in its last run
// against the set it produces now.
package diag

import (
	"fmt"

	"github.com/cottand/typeflow/analyzer/ir"
)

type ErrCode int

const (
	None ErrCode = iota
	UndefinedMethod
	FailedOverloads
	WrongArguments
	UnknownSuperclass
	UninitializedConstant
	ReturnMismatch
	Omitted
	UnsupportedConstruct
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

type Diagnostic interface {
	Error() string
	Code() ErrCode
	Severity() Severity
	ir.Positioner
}

func FormatWithCode(e Diagnostic) string {
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

// FormatWithLocation renders e as file:line:col: (Ecode) message
func FormatWithLocation(file string, e Diagnostic) string {
	return fmt.Sprintf("%s:%v: %s", file, e.Pos(), FormatWithCode(e))
}

type NewUndefinedMethod struct {
	ir.Range
	Receiver string
	Method   string
}

func (e NewUndefinedMethod) Error() string {
	return fmt.Sprintf("undefined method: %s#%s", e.Receiver, e.Method)
}
func (e NewUndefinedMethod) Code() ErrCode      { return UndefinedMethod }
func (e NewUndefinedMethod) Severity() Severity { return SeverityError }

type NewFailedOverloads struct {
	ir.Range
	Method string
}

func (e NewFailedOverloads) Error() string      { return "failed to resolve overloads" }
func (e NewFailedOverloads) Code() ErrCode      { return FailedOverloads }
func (e NewFailedOverloads) Severity() Severity { return SeverityError }

// NewWrongArguments reports an arity mismatch. Upper < 0 means unbounded.
type NewWrongArguments struct {
	ir.Range
	Actual int
	Lower  int
	Upper  int
}

func (e NewWrongArguments) Error() string {
	var expected string
	switch {
	case e.Upper < 0:
		expected = fmt.Sprintf("%d+", e.Lower)
	case e.Lower < e.Upper:
		expected = fmt.Sprintf("%d...%d", e.Lower, e.Upper)
	default:
		expected = fmt.Sprint(e.Lower)
	}
	return fmt.Sprintf("wrong number of arguments (%d for %s)", e.Actual, expected)
}
func (e NewWrongArguments) Code() ErrCode      { return WrongArguments }
func (e NewWrongArguments) Severity() Severity { return SeverityError }

type NewUnknownSuperclass struct {
	ir.Range
	Class string
}

func (e NewUnknownSuperclass) Error() string      { return "failed to identify its superclass" }
func (e NewUnknownSuperclass) Code() ErrCode      { return UnknownSuperclass }
func (e NewUnknownSuperclass) Severity() Severity { return SeverityError }

type NewUninitializedConstant struct {
	ir.Range
	Name string
}

func (e NewUninitializedConstant) Error() string {
	return fmt.Sprintf("uninitialized constant %s", e.Name)
}
func (e NewUninitializedConstant) Code() ErrCode      { return UninitializedConstant }
func (e NewUninitializedConstant) Severity() Severity { return SeverityError }

type NewReturnMismatch struct {
	ir.Range
	Expected string
	Actual   string
}

func (e NewReturnMismatch) Error() string {
	return fmt.Sprintf("expected: %s; actual: %s", e.Expected, e.Actual)
}
func (e NewReturnMismatch) Code() ErrCode      { return ReturnMismatch }
func (e NewReturnMismatch) Severity() Severity { return SeverityError }

type NewOmitted struct {
	ir.Range
	Count int
}

func (e NewOmitted) Error() string {
	return fmt.Sprintf("... and %d errors omitted", e.Count)
}
func (e NewOmitted) Code() ErrCode      { return Omitted }
func (e NewOmitted) Severity() Severity { return SeverityError }

type NewUnsupportedConstruct struct {
	ir.Range
	What string
}

func (e NewUnsupportedConstruct) Error() string {
	return fmt.Sprintf("%s is not supported; treated as untyped", e.What)
}
func (e NewUnsupportedConstruct) Code() ErrCode      { return UnsupportedConstruct }
func (e NewUnsupportedConstruct) Severity() Severity { return SeverityWarning }
