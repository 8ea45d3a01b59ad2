package lang

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"

	"github.com/phobologic/codeclass/internal/encode"
)

func init() {
	Languages["go"] = &Language{
		Name:       "go",
		Extensions: []string{".go"},
		newParser:  func() Parser { return goParser{} },
	}
}

// goParser parses Go with the standard library parser. The tree is walked
// by reflection over go/ast struct fields in declaration order.
type goParser struct{}

func (goParser) Parse(ctx context.Context, path string, source []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	file, err := parser.ParseFile(token.NewFileSet(), path, source, parser.SkipObjectResolution)
	if err != nil {
		return nil, &encode.ParseError{File: path, Err: err}
	}
	return &Tree{Root: goNode{node: file}}, nil
}

var posType = reflect.TypeOf(token.Pos(0))

// goSkipFields are exported go/ast fields that carry no syntax of their own:
// resolution state, comments, and lists derived from other fields.
var goSkipFields = map[string]struct{}{
	"Obj":        {},
	"Scope":      {},
	"Unresolved": {},
	"Imports":    {},
	"Comments":   {},
	"Doc":        {},
	"Comment":    {},
}

type goNode struct {
	node ast.Node
}

func (n goNode) Kind() string {
	return reflect.TypeOf(n.node).Elem().Name()
}

func (n goNode) Fields() []encode.Field {
	v := reflect.ValueOf(n.node).Elem()
	t := v.Type()

	fields := make([]encode.Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Type == posType {
			continue
		}
		if _, skip := goSkipFields[sf.Name]; skip {
			continue
		}
		if value := goValue(v.Field(i)); value != nil {
			fields = append(fields, encode.Field{Name: sf.Name, Value: value})
		}
	}
	return fields
}

// goValue converts a go/ast struct field into an encoder field value.
func goValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if n, ok := goAsNode(v); ok {
			return n
		}
		return nil
	case reflect.Slice:
		var nodes []encode.Node
		for i := 0; i < v.Len(); i++ {
			if n, ok := goAsNode(v.Index(i)); ok {
				nodes = append(nodes, n)
			}
		}
		if len(nodes) == 0 {
			return nil
		}
		return nodes
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	if v.CanInt() {
		return v.Int()
	}
	return nil
}

func goAsNode(v reflect.Value) (encode.Node, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		if v.Kind() == reflect.Pointer {
			break
		}
		v = v.Elem()
	}
	n, ok := v.Interface().(ast.Node)
	if !ok {
		return nil, false
	}
	return goNode{node: n}, true
}
