package lang

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codeclass/internal/encode"
	"github.com/phobologic/codeclass/internal/model"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".py", "python"},
		{".c", "c"},
		{".h", "c"},
		{".go", "go"},
		{".rb", "ruby"},
		{".js", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"c", "go", "python", "ruby"}, Names())
}

func encodeSource(t *testing.T, langName, source string) *model.Graph {
	t.Helper()
	l := Languages[langName]
	require.NotNil(t, l, "language %q not registered", langName)

	tree, err := l.NewParser().Parse(context.Background(), "test"+l.Extensions[0], []byte(source))
	require.NoError(t, err)
	defer tree.Close()

	g, err := encode.Encode(tree.Root)
	require.NoError(t, err)
	require.NoError(t, g.Validate())
	return g
}

func TestPythonAssignment(t *testing.T) {
	t.Parallel()

	g := encodeSource(t, "python", "x = 1\n")

	assert.Equal(t, []string{"module", "expression_statement", "assignment", "identifier", "x", "integer", "1"}, g.NodeFeatures)
	assert.Equal(t, []string{"ast", "ast", "ast", "ast", "ident", "ast", "ident"}, g.NodeTypes)
	assert.Equal(t, []string{"children", "children", "left", "text", "right", "text"}, g.EdgeTypes)

	// left and right are both owned by the assignment node.
	for i := range g.EdgeIDs {
		inc := g.Incidence(i)
		if inc.Role != model.Head {
			continue
		}
		switch g.EdgeTypes[inc.Edge] {
		case "left", "right":
			assert.Equal(t, 2, inc.Node)
		}
	}
}

func TestPythonSyntaxError(t *testing.T) {
	t.Parallel()

	p := Languages["python"].NewParser()
	_, err := p.Parse(context.Background(), "bad.py", []byte("def (:\n"))
	require.Error(t, err)

	var perr *encode.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad.py", perr.File)
}

func TestCDeclaration(t *testing.T) {
	t.Parallel()

	g := encodeSource(t, "c", "int x = 1;\n")

	assert.Equal(t, "translation_unit", g.NodeFeatures[0])
	assert.Contains(t, g.NodeFeatures, "x")
	assert.Contains(t, g.NodeFeatures, "1")
	assert.Contains(t, g.EdgeTypes, "declarator")
	assert.Contains(t, g.EdgeTypes, "value")
}

func TestCSyntaxError(t *testing.T) {
	t.Parallel()

	p := Languages["c"].NewParser()
	_, err := p.Parse(context.Background(), "bad.c", []byte("int main( {\n"))

	var perr *encode.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad.c", perr.File)
}

func TestGoPackageClause(t *testing.T) {
	t.Parallel()

	g := encodeSource(t, "go", "package p\n")

	assert.Equal(t, []string{"File", "Ident", "p"}, g.NodeFeatures)
	assert.Equal(t, []string{"Name", "Name"}, g.EdgeTypes)
}

func TestGoTokenScalars(t *testing.T) {
	t.Parallel()

	g := encodeSource(t, "go", "package p\n\nvar x = 1 + 2\n")

	// BasicLit.Kind and BinaryExpr.Op are token.Token values rendered by String.
	assert.Contains(t, g.NodeFeatures, "INT")
	assert.Contains(t, g.NodeFeatures, "+")
	assert.Contains(t, g.EdgeTypes, "Op")
	assert.NotContains(t, g.EdgeTypes, "Obj")
}

func TestGoSyntaxError(t *testing.T) {
	t.Parallel()

	p := Languages["go"].NewParser()
	_, err := p.Parse(context.Background(), "bad.go", []byte("package\n"))

	var perr *encode.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad.go", perr.File)
}

func TestEncodingIsGrammarAgnostic(t *testing.T) {
	t.Parallel()

	sources := map[string]string{
		"python": "def f(a):\n    return a + 1\n",
		"c":      "int f(int a) { return a + 1; }\n",
		"go":     "package p\n\nfunc f(a int) int { return a + 1 }\n",
		"ruby":   "def f(a)\n  a + 1\nend\n",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := encodeSource(t, name, src)
			assert.Equal(t, model.TypeAST, g.NodeTypes[0])
			assert.Len(t, g.NodeFeatures, len(g.NodeTypes))
		})
	}
}
