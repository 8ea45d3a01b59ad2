package encode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codeclass/internal/model"
)

// fake is a minimal grammar: a kind plus an ordered field list.
type fake struct {
	kind   string
	fields []Field
}

func (f *fake) Kind() string    { return f.kind }
func (f *fake) Fields() []Field { return f.fields }

func node(kind string, fields ...Field) *fake {
	return &fake{kind: kind, fields: fields}
}

func field(name string, v any) Field { return Field{Name: name, Value: v} }

// assignment is the tree for `x = 1`.
func assignment() *fake {
	return node("Assign",
		field("targets", []Node{node("Name", field("id", "x"))}),
		field("value", node("Constant", field("value", 1))),
	)
}

func TestEncodeAssignment(t *testing.T) {
	t.Parallel()

	g, err := Encode(assignment())
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"ast", "ast", "ident", "ast", "ident"}, g.NodeTypes)
	assert.Equal(t, []string{"Assign", "Name", "x", "Constant", "1"}, g.NodeFeatures)
	assert.Equal(t, []string{"targets", "id", "value", "value"}, g.EdgeTypes)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2, 3, 3}, g.EdgeIDs)
	assert.Equal(t, []int{0, 1, 1, 2, 0, 3, 3, 4}, g.NodeIDs)
	assert.Equal(t, []model.Role{
		model.Head, model.Tail,
		model.Head, model.Tail,
		model.Head, model.Tail,
		model.Head, model.Tail,
	}, g.Roles)
}

func TestEncodeSkipsEmptyFields(t *testing.T) {
	t.Parallel()

	var nilNode *fake
	root := node("Root",
		field("absent", nil),
		field("nil_node", nilNode),
		field("empty_list", []Node{}),
		field("empty_scalars", []string{}),
		field("empty_any", []any{}),
		field("empty_string", ""),
		field("false", false),
		field("zero", 0),
		field("zero_float32", float32(0)),
		field("zero_int32", int32(0)),
		field("zero_uint", uint(0)),
		field("nil_children", []Node{nil, nilNode}),
		field("kept", true),
	)

	g, err := Encode(root)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"kept"}, g.EdgeTypes)
	assert.Equal(t, []string{"Root", "true"}, g.NodeFeatures)
}

func TestEncodeSkipsNilChildren(t *testing.T) {
	t.Parallel()

	var nilNode *fake
	root := node("Block",
		field("body", []Node{nil, node("Pass"), nilNode, node("Break")}),
	)

	g, err := Encode(root)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"Block", "Pass", "Break"}, g.NodeFeatures)
	assert.Equal(t, []string{"body"}, g.EdgeTypes)
	assert.Equal(t, []int{0, 1, 2}, g.NodeIDs)
	assertTailOnce(t, g)
}

func TestEncodeNonzeroNumericKinds(t *testing.T) {
	t.Parallel()

	root := node("Constant",
		field("f", float32(1.5)),
		field("i", int8(-2)),
		field("u", uint16(7)),
	)

	g, err := Encode(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "i", "u"}, g.EdgeTypes)
	assert.Equal(t, []string{"Constant", "1.5", "-2", "7"}, g.NodeFeatures)
}

func TestEncodeContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := EncodeContext(ctx, assignment(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, g)

	g, err = EncodeContext(context.Background(), assignment(), Options{})
	require.NoError(t, err)
	assert.Len(t, g.NodeTypes, 5)
}

func TestEncodeScalarLists(t *testing.T) {
	t.Parallel()

	root := node("Global",
		field("names", []string{"a", "b", "c"}),
		field("mixed", []any{1, "two", 3.5}),
	)

	g, err := Encode(root)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"Global", "a", "b", "c", "1", "two", "3.5"}, g.NodeFeatures)
	assert.Equal(t, []string{"ast", "ident", "ident", "ident", "ident", "ident", "ident"}, g.NodeTypes)
	assert.Equal(t, []string{"names", "mixed"}, g.EdgeTypes)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1}, g.EdgeIDs)
	assert.Equal(t, []int{0, 1, 2, 3, 0, 4, 5, 6}, g.NodeIDs)
}

func TestEncodeSiblingSubtreesDoNotCollide(t *testing.T) {
	t.Parallel()

	deep := func(name string) Node {
		return node("Call",
			field("func", node("Name", field("id", name))),
			field("args", []Node{
				node("Constant", field("value", 1)),
				node("Constant", field("value", 2)),
			}),
		)
	}
	root := node("Module", field("body", []Node{deep("f"), deep("g")}))

	g, err := Encode(root)
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	// The second call starts right after the first subtree.
	assert.Equal(t, "Call", g.NodeFeatures[1])
	assert.Equal(t, "Call", g.NodeFeatures[8])
	assert.Equal(t, "g", g.NodeFeatures[10])
	assertTailOnce(t, g)
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	root := randomTree(rng, 0)

	first, err := Encode(root)
	require.NoError(t, err)
	second, err := Encode(root)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeRandomTreesHoldInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	for i := range 50 {
		t.Run(fmt.Sprintf("tree%d", i), func(t *testing.T) {
			g, err := Encode(randomTree(rng, 0))
			require.NoError(t, err)
			require.NoError(t, g.Validate())
			assert.Len(t, g.NodeFeatures, len(g.NodeTypes))
			assert.Equal(t, model.TypeAST, g.NodeTypes[0])
			assertTailOnce(t, g)
		})
	}
}

func TestEncodeLimits(t *testing.T) {
	t.Parallel()

	chain := func(depth int) Node {
		var n Node = node("Leaf", field("value", "v"))
		for range depth {
			n = node("Wrap", field("inner", n))
		}
		return n
	}

	tests := []struct {
		name    string
		root    Node
		opts    Options
		wantErr error
	}{
		{"unlimited", chain(50), Options{}, nil},
		{"within depth", chain(5), Options{MaxDepth: 5}, nil},
		{"too deep", chain(6), Options{MaxDepth: 5}, ErrTooDeep},
		{"within size", chain(3), Options{MaxNodes: 5}, nil},
		{"too large", chain(4), Options{MaxNodes: 5}, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := EncodeWithOptions(tt.root, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, g.Validate())
		})
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("unexpected token")
	err := fmt.Errorf("encoding: %w", &ParseError{File: "a.py", Err: inner})

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a.py", perr.File)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "parse a.py: unexpected token", perr.Error())
}

// assertTailOnce checks that every node except the root is the tail of
// exactly one incidence, which together with Validate means ids are dense.
func assertTailOnce(t *testing.T, g *model.Graph) {
	t.Helper()
	tails := make([]int, g.NumNodes())
	for i := range g.EdgeIDs {
		if g.Roles[i] == model.Tail {
			tails[g.NodeIDs[i]]++
		}
	}
	assert.Equal(t, 0, tails[0], "root must not be a tail")
	for n := 1; n < len(tails); n++ {
		assert.Equal(t, 1, tails[n], "node %d", n)
	}
}

func randomTree(rng *rand.Rand, depth int) Node {
	kinds := []string{"If", "For", "Call", "Name", "BinOp"}
	n := node(kinds[rng.IntN(len(kinds))])
	for f := range rng.IntN(4) {
		name := fmt.Sprintf("f%d", f)
		switch k := rng.IntN(5); {
		case k == 0 && depth < 4:
			n.fields = append(n.fields, field(name, randomTree(rng, depth+1)))
		case k == 1 && depth < 4:
			var kids []Node
			for range rng.IntN(3) {
				kids = append(kids, randomTree(rng, depth+1))
			}
			n.fields = append(n.fields, field(name, kids))
		case k == 2:
			n.fields = append(n.fields, field(name, []string{"a", "b"}[:rng.IntN(3)%2+1]))
		case k == 3:
			n.fields = append(n.fields, field(name, rng.IntN(3)))
		default:
			n.fields = append(n.fields, field(name, nil))
		}
	}
	return n
}
