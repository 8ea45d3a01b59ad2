// Package encode turns a parsed syntax tree into a typed directed hypergraph.
//
// Every structural tree node becomes an "ast" node. Every non-empty named
// field of a tree node becomes one hyperedge whose head is the owning node
// and whose tails are the field's children, or freshly created "ident" leaf
// nodes for scalar values.
package encode

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/phobologic/codeclass/internal/model"
)

// Node is the field-inspection capability a grammar must provide.
type Node interface {
	// Kind is the stable textual identity of the node's concrete kind.
	Kind() string
	// Fields lists the node's named fields in a fixed order.
	Fields() []Field
}

// Field is one named slot of a Node. Value may hold a Node, a []Node,
// a []string or []any of scalars, or a single scalar. Nil, empty and
// zero values are skipped.
type Field struct {
	Name  string
	Value any
}

var (
	// ErrTooDeep is returned when the tree exceeds Options.MaxDepth.
	ErrTooDeep = errors.New("syntax tree too deep")
	// ErrTooLarge is returned when the graph exceeds Options.MaxNodes.
	ErrTooLarge = errors.New("graph too large")
)

// ParseError reports a source file that its grammar could not parse.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// checkEvery is how many tree nodes are walked between context checks.
const checkEvery = 256

// Options bound the work done for a single tree. Zero means unlimited.
type Options struct {
	MaxDepth int
	MaxNodes int
}

// cursor holds the next free node and edge ids.
type cursor struct {
	node int
	edge int
}

type encoder struct {
	ctx     context.Context
	opts    Options
	g       *model.Graph
	visited int
}

// Encode walks root in preorder and returns its hypergraph.
func Encode(root Node) (*model.Graph, error) {
	return EncodeWithOptions(root, Options{})
}

// EncodeWithOptions is Encode with depth and size limits.
func EncodeWithOptions(root Node, opts Options) (*model.Graph, error) {
	return EncodeContext(context.Background(), root, opts)
}

// EncodeContext is EncodeWithOptions that stops with ctx's error once ctx
// is done.
func EncodeContext(ctx context.Context, root Node, opts Options) (*model.Graph, error) {
	e := &encoder{ctx: ctx, opts: opts, g: &model.Graph{}}
	if _, err := e.walk(root, cursor{}, 0); err != nil {
		return nil, err
	}
	return e.g, nil
}

// walk encodes the subtree rooted at n, whose id is at.node, and returns the
// cursor just past the subtree. Ids are only ever taken from the cursor that
// is passed in or returned by a child call.
func (e *encoder) walk(n Node, at cursor, depth int) (cursor, error) {
	if e.opts.MaxDepth > 0 && depth > e.opts.MaxDepth {
		return at, fmt.Errorf("%w: depth %d exceeds %d", ErrTooDeep, depth, e.opts.MaxDepth)
	}
	if e.visited%checkEvery == 0 {
		if err := e.ctx.Err(); err != nil {
			return at, err
		}
	}
	e.visited++

	self := at.node
	next := cursor{node: self + 1, edge: at.edge}
	if err := e.addNode(model.TypeAST, n.Kind()); err != nil {
		return at, err
	}

	for _, f := range n.Fields() {
		var err error
		switch v := f.Value.(type) {
		case Node:
			if isNilNode(v) {
				continue
			}
			edge := e.addEdge(f.Name, &next)
			e.incidence(edge, self, model.Head)
			e.incidence(edge, next.node, model.Tail)
			next, err = e.walk(v, next, depth+1)

		case []Node:
			children := slices.DeleteFunc(slices.Clone(v), isNilNode)
			if len(children) == 0 {
				continue
			}
			edge := e.addEdge(f.Name, &next)
			e.incidence(edge, self, model.Head)
			for _, child := range children {
				e.incidence(edge, next.node, model.Tail)
				if next, err = e.walk(child, next, depth+1); err != nil {
					break
				}
			}

		case []string:
			if len(v) == 0 {
				continue
			}
			next, err = e.scalars(f.Name, self, next, len(v), func(i int) string { return v[i] })

		case []any:
			if len(v) == 0 {
				continue
			}
			next, err = e.scalars(f.Name, self, next, len(v), func(i int) string { return fmt.Sprint(v[i]) })

		default:
			if !truthy(v) {
				continue
			}
			next, err = e.scalars(f.Name, self, next, 1, func(int) string { return fmt.Sprint(v) })
		}
		if err != nil {
			return at, err
		}
	}
	return next, nil
}

// scalars emits one hyperedge owned by head with count new ident leaves as tails.
func (e *encoder) scalars(name string, head int, next cursor, count int, value func(int) string) (cursor, error) {
	edge := e.addEdge(name, &next)
	e.incidence(edge, head, model.Head)
	for i := 0; i < count; i++ {
		if err := e.addNode(model.TypeIdent, value(i)); err != nil {
			return next, err
		}
		e.incidence(edge, next.node, model.Tail)
		next.node++
	}
	return next, nil
}

func (e *encoder) addNode(typ, feature string) error {
	if e.opts.MaxNodes > 0 && len(e.g.NodeTypes) >= e.opts.MaxNodes {
		return fmt.Errorf("%w: more than %d nodes", ErrTooLarge, e.opts.MaxNodes)
	}
	e.g.NodeTypes = append(e.g.NodeTypes, typ)
	e.g.NodeFeatures = append(e.g.NodeFeatures, feature)
	return nil
}

// addEdge allocates the next edge id from c.
func (e *encoder) addEdge(name string, c *cursor) int {
	id := c.edge
	c.edge++
	e.g.EdgeTypes = append(e.g.EdgeTypes, name)
	return id
}

func (e *encoder) incidence(edge, node int, role model.Role) {
	e.g.EdgeIDs = append(e.g.EdgeIDs, edge)
	e.g.NodeIDs = append(e.g.NodeIDs, node)
	e.g.Roles = append(e.g.Roles, role)
}

// truthy reports whether a scalar field value is worth a hyperedge.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String() != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return !rv.IsZero()
	}
	return true
}

func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}
