package loader

import (
	"slices"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/pkg/errors"
)

type token struct {
	kind rune
	text string
	off  int
}

// multi-character punctuation, merged from adjacent single characters
var compounds = []string{"::", "->", "**"}

func tokenize(src string) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	var scanErr error
	s.Error = func(_ *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = errors.New(msg)
		}
	}

	var toks []token
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		t := token{kind: tok, text: s.TokenText(), off: s.Position.Offset}
		if n := len(toks); n > 0 {
			prev := toks[n-1]
			if prev.off+len(prev.text) == t.off && slices.Contains(compounds, prev.text+t.text) {
				toks[n-1].text += t.text
				continue
			}
		}
		toks = append(toks, t)
	}
	return toks, scanErr
}

// sigParser reads the compact type syntax of signature files:
//
//	Integer | String?         union and optional
//	Array[Elem]  ::Foo::Bar   instances, with arguments and paths
//	[Integer, String]         tuple
//	{ name: String, ?age: Integer }
//	^(Integer) -> String      proc
//	:sym  1  "str"  true      literals
//	[U] (Integer, ?String, *Float, key: Symbol) { (Elem) -> U } -> U
type sigParser struct {
	toks []token
	pos  int
	src  string
	// every node gets the range of the scalar the text came from
	file string
	rng  ir.Range
	// vars are the type parameters in scope
	vars []string
	err  error
}

func newSigParser(src, file string, rng ir.Range, vars []string) (*sigParser, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, errors.Wrapf(err, "in %q", src)
	}
	return &sigParser{toks: toks, src: src, file: file, rng: rng, vars: slices.Clone(vars)}, nil
}

func (p *sigParser) base() ast.Base {
	return ast.Base{Range: p.rng, File: p.file}
}

func (p *sigParser) peekAt(i int) string {
	if p.pos+i >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos+i].text
}

func (p *sigParser) peek() string { return p.peekAt(0) }

func (p *sigParser) peekKind() rune {
	if p.pos >= len(p.toks) {
		return scanner.EOF
	}
	return p.toks[p.pos].kind
}

func (p *sigParser) next() token {
	if p.pos >= len(p.toks) {
		p.fail("unexpected end")
		return token{kind: scanner.EOF}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *sigParser) accept(text string) bool {
	if p.err == nil && p.peek() == text {
		p.pos++
		return true
	}
	return false
}

func (p *sigParser) expect(text string) {
	if !p.accept(text) {
		p.fail("expected %q, found %q", text, p.peek())
	}
}

func (p *sigParser) ident() string {
	t := p.next()
	if t.kind != scanner.Ident {
		p.fail("expected a name, found %q", t.text)
		return ""
	}
	return t.text
}

func (p *sigParser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = errors.Errorf("in %q: "+format, append([]any{p.src}, args...)...)
	}
}

func (p *sigParser) done() error {
	if p.err == nil && p.pos < len(p.toks) {
		p.fail("unexpected %q", p.peek())
	}
	return p.err
}

// keywordAhead reports whether the next tokens are `name:` and not `Name::`
func (p *sigParser) keywordAhead(skip int) bool {
	return p.peekKind() != scanner.EOF && p.pos+skip < len(p.toks) &&
		p.toks[p.pos+skip].kind == scanner.Ident && p.peekAt(skip+1) == ":"
}

func (p *sigParser) parseMethodType() *ast.SigMethodType {
	mt := &ast.SigMethodType{}
	mt.Base = p.base()
	if p.accept("[") {
		for p.err == nil {
			name := p.ident()
			mt.TypeParams = append(mt.TypeParams, name)
			p.vars = append(p.vars, name)
			if !p.accept(",") {
				break
			}
		}
		p.expect("]")
	}
	p.expect("(")
	p.parseParams(mt)
	p.expect(")")

	optional := p.peek() == "?" && p.peekAt(1) == "{"
	if optional {
		p.next()
	}
	if p.accept("{") {
		block := &ast.SigProcParam{Optional: optional}
		p.expect("(")
		block.Params = p.parsePositionals()
		p.expect(")")
		p.expect("->")
		block.Return = p.parseType()
		p.expect("}")
		mt.Block = block
	}
	p.expect("->")
	mt.Return = p.parseType()
	return mt
}

func (p *sigParser) parseParams(mt *ast.SigMethodType) {
	seenRest := false
	for p.err == nil && p.peek() != ")" && p.peek() != "" {
		switch {
		case p.accept("**"):
			mt.RestKeywords = p.parseType()
		case p.accept("*"):
			mt.Rest = p.parseType()
			seenRest = true
		case p.peek() == "?" && p.keywordAhead(1):
			p.next()
			name := p.ident()
			p.expect(":")
			mt.OptKeywords = append(mt.OptKeywords, ast.SigKeyword{Name: name, Type: p.parseType()})
		case p.accept("?"):
			mt.Opt = append(mt.Opt, p.parseType())
		case p.keywordAhead(0):
			name := p.ident()
			p.expect(":")
			mt.ReqKeywords = append(mt.ReqKeywords, ast.SigKeyword{Name: name, Type: p.parseType()})
		case seenRest:
			mt.Post = append(mt.Post, p.parseType())
		default:
			mt.Req = append(mt.Req, p.parseType())
		}
		p.skipParamName()
		if !p.accept(",") {
			break
		}
	}
}

func (p *sigParser) parsePositionals() []ast.SigTypeNode {
	var params []ast.SigTypeNode
	for p.err == nil && p.peek() != ")" && p.peek() != "" {
		p.accept("?")
		params = append(params, p.parseType())
		p.skipParamName()
		if !p.accept(",") {
			break
		}
	}
	return params
}

// skipParamName drops the optional name written after a parameter type
func (p *sigParser) skipParamName() {
	if p.peekKind() == scanner.Ident && unicode.IsLower(rune(p.peek()[0])) {
		p.next()
	}
}

func (p *sigParser) parseType() ast.SigTypeNode {
	first := p.parseOptional()
	if p.peek() != "|" {
		return first
	}
	union := &ast.SigUnionType{Types: []ast.SigTypeNode{first}}
	union.Base = p.base()
	for p.accept("|") {
		union.Types = append(union.Types, p.parseOptional())
	}
	return union
}

func (p *sigParser) parseOptional() ast.SigTypeNode {
	t := p.parsePrimary()
	for p.peek() == "?" && p.peekAt(1) != "{" && p.accept("?") {
		opt := &ast.SigOptionalType{Type: t}
		opt.Base = p.base()
		t = opt
	}
	return t
}

func (p *sigParser) parsePrimary() ast.SigTypeNode {
	if p.err != nil {
		return nil
	}
	switch {
	case p.accept("("):
		t := p.parseType()
		p.expect(")")
		return t
	case p.accept("["):
		tuple := &ast.SigTupleType{}
		tuple.Base = p.base()
		for p.err == nil && p.peek() != "]" {
			tuple.Elems = append(tuple.Elems, p.parseType())
			if !p.accept(",") {
				break
			}
		}
		p.expect("]")
		return tuple
	case p.accept("{"):
		return p.parseRecord()
	case p.accept("^"):
		proc := &ast.SigProcType{}
		proc.Base = p.base()
		p.expect("(")
		proc.Params = p.parsePositionals()
		p.expect(")")
		p.expect("->")
		proc.Return = p.parseType()
		return proc
	case p.peek() == ":" && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == scanner.Ident:
		p.next()
		return p.literal(core.LiteralSymbol, p.ident())
	case p.peekKind() == scanner.Int:
		return p.literal(core.LiteralInteger, p.next().text)
	case p.peek() == "-" && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == scanner.Int:
		p.next()
		return p.literal(core.LiteralInteger, "-"+p.next().text)
	case p.peekKind() == scanner.String:
		s, err := strconv.Unquote(p.next().text)
		if err != nil {
			p.fail("bad string literal: %v", err)
		}
		return p.literal(core.LiteralString, s)
	case p.peek() == "::" || p.peekKind() == scanner.Ident:
		return p.parseNamed()
	}
	p.fail("unexpected %q", p.peek())
	return nil
}

func (p *sigParser) literal(kind core.LiteralKind, value string) ast.SigTypeNode {
	lit := &ast.SigLiteralType{Kind: kind, Value: value}
	lit.Base = p.base()
	return lit
}

func (p *sigParser) parseRecord() ast.SigTypeNode {
	rec := &ast.SigRecordType{}
	rec.Base = p.base()
	for p.err == nil && p.peek() != "}" {
		optional := p.accept("?")
		name := p.ident()
		p.expect(":")
		rec.Fields = append(rec.Fields, ast.SigRecordField{Name: name, Type: p.parseType(), Optional: optional})
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return rec
}

func (p *sigParser) parseNamed() ast.SigTypeNode {
	toplevel := p.accept("::")
	name := p.ident()
	if !toplevel && p.peek() != "::" {
		switch name {
		case "true":
			return p.literal(core.LiteralTrue, name)
		case "false":
			return p.literal(core.LiteralFalse, name)
		case "singleton":
			p.expect("(")
			top := p.accept("::")
			named := &ast.SigNamedType{Name: p.parsePath(p.ident(), top), Singleton: true}
			named.Base = p.base()
			p.expect(")")
			return named
		}
		if kind, ok := ast.ParseBaseKind(name); ok {
			bt := &ast.SigBaseType{Kind: kind}
			bt.Base = p.base()
			return bt
		}
		if slices.Contains(p.vars, name) {
			v := &ast.SigVarType{Name: name}
			v.Base = p.base()
			return v
		}
	}
	named := &ast.SigNamedType{}
	named.Base = p.base()
	named.Name = p.parsePath(name, toplevel)
	if p.accept("[") {
		for p.err == nil && p.peek() != "]" {
			named.Args = append(named.Args, p.parseType())
			if !p.accept(",") {
				break
			}
		}
		p.expect("]")
	}
	return named
}

// parsePath reads the rest of `A::B::C` after its first segment
func (p *sigParser) parsePath(first string, toplevel bool) *ast.ConstNode {
	c := &ast.ConstNode{Base: p.base(), Name: first, Toplevel: toplevel}
	for p.err == nil && p.peek() == "::" {
		p.next()
		c = &ast.ConstNode{Base: p.base(), Name: p.ident(), Scope: c}
	}
	return c
}

// parseHeader reads a declaration name like `Array[Elem]` or `A::B`
func parseHeader(src string) (name []string, params []string, err error) {
	p, err := newSigParser(src, "", ir.NoRange, nil)
	if err != nil {
		return nil, nil, err
	}
	name = append(name, p.ident())
	for p.accept("::") {
		name = append(name, p.ident())
	}
	if p.accept("[") {
		for p.err == nil {
			// variance and bounds are not modelled
			p.accept("out")
			p.accept("in")
			params = append(params, p.ident())
			if !p.accept(",") {
				break
			}
		}
		p.expect("]")
	}
	return name, params, p.done()
}

// ParseType reads a standalone type, like the type of a constant declaration
func ParseType(src, file string, rng ir.Range, vars []string) (ast.SigTypeNode, error) {
	p, err := newSigParser(src, file, rng, vars)
	if err != nil {
		return nil, err
	}
	t := p.parseType()
	return t, p.done()
}

// ParseMethodType reads one overload of a method declaration
func ParseMethodType(src, file string, rng ir.Range, vars []string) (*ast.SigMethodType, error) {
	p, err := newSigParser(src, file, rng, vars)
	if err != nil {
		return nil, err
	}
	mt := p.parseMethodType()
	return mt, p.done()
}
