// Package loader reads programs and signatures written as YAML trees into ast
// nodes. Positions of nodes are the positions of their YAML mappings, so
// diagnostics and queries point back into the file that was loaded.
package loader

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/ir"
	"github.com/cottand/typeflow/internal/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var logger = log.DefaultLogger.With("section", "loader")

// SyntaxError is a malformed node of a loaded file
type SyntaxError struct {
	File string
	Pos  ir.Position
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%v: %s", e.File, e.Pos, e.Msg)
}

// SignatureSuffix marks the files ReadFile loads as signatures
const SignatureSuffix = ".sig.yaml"

// IsSignatureFile reports whether path holds declarations rather than a program
func IsSignatureFile(path string) bool {
	return strings.HasSuffix(path, SignatureSuffix)
}

// ReadFile loads the program or signature file at path, telling them apart by suffix
func ReadFile(path string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if IsSignatureFile(path) {
		return LoadSignatures(path, data)
	}
	return LoadProgram(path, data)
}

type loader struct {
	file string
	errs []error
}

func (l *loader) fail(n *yaml.Node, format string, args ...any) {
	l.errs = append(l.errs, &SyntaxError{File: l.file, Pos: posOf(n), Msg: fmt.Sprintf(format, args...)})
}

func (l *loader) err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return errors.Wrapf(stderrors.Join(l.errs...), "loading %s", l.file)
}

// document is the top-level sequence of a file, which may be empty
func (l *loader) document(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "loading %s", l.file)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.SequenceNode, Line: 1, Column: 1}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, errors.WithStack(&SyntaxError{File: l.file, Pos: posOf(root), Msg: "a file is a sequence of statements"})
	}
	return root, nil
}

func posOf(n *yaml.Node) ir.Position {
	return ir.Position{Line: n.Line, Column: max(n.Column-1, 0)}
}

// endOf is the position just after the last scalar below n
func endOf(n *yaml.Node) ir.Position {
	end := posOf(n)
	if n.Kind == yaml.ScalarNode {
		end.Column += len(n.Value)
		if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			end.Column += 2
		}
	}
	for _, child := range n.Content {
		if e := endOf(child); end.Before(e) {
			end = e
		}
	}
	return end
}

func rangeOf(n *yaml.Node) ir.Range {
	return ir.Range{PosStart: posOf(n), PosEnd: endOf(n)}
}

func (l *loader) base(n *yaml.Node) ast.Base {
	return ast.Base{Range: rangeOf(n), File: l.file}
}

// mapping is a YAML mapping with its keys in order
type mapping struct {
	node   *yaml.Node
	keys   []string
	values map[string]*yaml.Node
	keyAt  map[string]*yaml.Node
}

func (l *loader) mapping(n *yaml.Node) *mapping {
	m := &mapping{node: n, values: map[string]*yaml.Node{}, keyAt: map[string]*yaml.Node{}}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if _, dup := m.values[k.Value]; dup {
			l.fail(k, "duplicate key %q", k.Value)
		}
		m.keys = append(m.keys, k.Value)
		m.values[k.Value] = v
		m.keyAt[k.Value] = k
	}
	return m
}

func (m *mapping) get(key string) (*yaml.Node, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mapping) str(key string) string {
	if v, ok := m.values[key]; ok && v.Kind == yaml.ScalarNode {
		return v.Value
	}
	return ""
}

// seq is n as a list: the items of a sequence, nothing for null, n itself otherwise
func seq(n *yaml.Node) []*yaml.Node {
	switch {
	case n == nil || n.Tag == "!!null":
		return nil
	case n.Kind == yaml.SequenceNode:
		return n.Content
	}
	return []*yaml.Node{n}
}

func scalars(l *loader, n *yaml.Node) []string {
	var out []string
	for _, item := range seq(n) {
		if item.Kind != yaml.ScalarNode {
			l.fail(item, "expected a name")
			continue
		}
		out = append(out, item.Value)
	}
	return out
}
