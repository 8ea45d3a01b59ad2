package lang

import (
	"github.com/smacker/go-tree-sitter/c"
)

func init() {
	Languages["c"] = newSitterLanguage("c", []string{".c", ".h"}, c.GetLanguage())
}
