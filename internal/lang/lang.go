// Package lang provides a language registry mapping file extensions to
// grammars whose syntax trees the hypergraph encoder can walk.
package lang

import (
	"context"
	"sort"
	"sync"

	"github.com/phobologic/codeclass/internal/encode"
)

// Language holds the configuration for a supported grammar.
type Language struct {
	Name       string
	Extensions []string

	// newParser builds a parser for this grammar.
	newParser func() Parser
}

// Parser parses one source file at a time into an encodable tree.
// Each goroutine must use its own parser (not thread-safe).
type Parser interface {
	// Parse returns the syntax tree of source. Malformed input yields an
	// *encode.ParseError naming path.
	Parse(ctx context.Context, path string, source []byte) (*Tree, error)
}

// Tree is a parsed file. Close releases any memory owned by the parser.
type Tree struct {
	Root  encode.Node
	close func()
}

// Close releases the tree. It is safe to call on a nil Tree.
func (t *Tree) Close() {
	if t != nil && t.close != nil {
		t.close()
	}
}

// NewParser creates a fresh parser for this language.
func (l *Language) NewParser() Parser {
	return l.newParser()
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Names returns the registered language names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
