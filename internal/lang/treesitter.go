package lang

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codeclass/internal/encode"
)

// Field names synthesized by the tree-sitter adapter.
const (
	// textField carries the source text of a named leaf.
	textField = "text"
	// childrenField collects named children that have no field name.
	childrenField = "children"
)

// newSitterLanguage registers a tree-sitter grammar under name.
func newSitterLanguage(name string, extensions []string, grammar *sitter.Language) *Language {
	return &Language{
		Name:       name,
		Extensions: extensions,
		newParser: func() Parser {
			p := sitter.NewParser()
			p.SetLanguage(grammar)
			return &sitterParser{parser: p}
		},
	}
}

type sitterParser struct {
	parser *sitter.Parser
}

func (p *sitterParser) Parse(ctx context.Context, path string, source []byte) (*Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		perr := &encode.ParseError{File: path, Err: syntaxError(root)}
		tree.Close()
		return nil, perr
	}
	return &Tree{Root: &sitterNode{node: root, source: source}, close: tree.Close}, nil
}

// syntaxError locates the first ERROR or MISSING node below n.
func syntaxError(n *sitter.Node) error {
	if n.Type() == "ERROR" || n.IsMissing() {
		p := n.StartPoint()
		return fmt.Errorf("syntax error at %d:%d near %q", p.Row+1, p.Column+1, n.Type())
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return syntaxError(child)
		}
	}
	return errors.New("syntax error")
}

// sitterNode exposes a named tree-sitter node through the encoder's
// field-inspection capability.
//
// Named children are grouped by their field name in order of first
// appearance; children without one are grouped under "children". Anonymous
// tokens are kept only when they carry a field name (operators, mostly).
// Named leaves expose their source text as the scalar field "text".
type sitterNode struct {
	node   *sitter.Node
	source []byte
}

func (n *sitterNode) Kind() string {
	return n.node.Type()
}

type sitterField struct {
	name   string
	nodes  []encode.Node
	tokens []string
}

func (n *sitterNode) Fields() []encode.Field {
	if n.node.NamedChildCount() == 0 {
		return []encode.Field{{Name: textField, Value: n.node.Content(n.source)}}
	}

	var order []*sitterField
	byName := make(map[string]*sitterField)
	get := func(name string) *sitterField {
		f, ok := byName[name]
		if !ok {
			f = &sitterField{name: name}
			byName[name] = f
			order = append(order, f)
		}
		return f
	}

	for i := 0; i < int(n.node.ChildCount()); i++ {
		child := n.node.Child(i)
		if child == nil || child.IsExtra() {
			continue
		}
		name := n.node.FieldNameForChild(i)
		if !child.IsNamed() {
			if name != "" {
				f := get(name)
				f.tokens = append(f.tokens, child.Type())
			}
			continue
		}
		if name == "" {
			name = childrenField
		}
		f := get(name)
		f.nodes = append(f.nodes, &sitterNode{node: child, source: n.source})
	}

	fields := make([]encode.Field, 0, len(order))
	for _, f := range order {
		switch len(f.nodes) {
		case 0:
		case 1:
			fields = append(fields, encode.Field{Name: f.name, Value: f.nodes[0]})
		default:
			fields = append(fields, encode.Field{Name: f.name, Value: f.nodes})
		}
		switch len(f.tokens) {
		case 0:
		case 1:
			fields = append(fields, encode.Field{Name: f.name, Value: f.tokens[0]})
		default:
			fields = append(fields, encode.Field{Name: f.name, Value: f.tokens})
		}
	}
	return fields
}
