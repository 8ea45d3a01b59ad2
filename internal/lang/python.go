package lang

import (
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = newSitterLanguage("python", []string{".py"}, python.GetLanguage())
}
