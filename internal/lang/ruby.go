package lang

import (
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	Languages["ruby"] = newSitterLanguage("ruby", []string{".rb"}, ruby.GetLanguage())
}
