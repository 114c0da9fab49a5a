package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"klepto/internal/core/errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

// LanguageRust is the only grammar the engine understands.
const LanguageRust = "rust"

// GrammarLoader owns the compiled tree-sitter languages and the file
// extensions routed to each of them.
type GrammarLoader struct {
	languages  map[string]*sitter.Language
	extensions map[string]string
}

func NewGrammarLoader() *GrammarLoader {
	return &GrammarLoader{
		languages: map[string]*sitter.Language{
			LanguageRust: sitter.NewLanguage(tree_sitter_rust.Language()),
		},
		extensions: map[string]string{
			".rs": LanguageRust,
		},
	}
}

func (gl *GrammarLoader) Language(id string) (*sitter.Language, error) {
	lang, ok := gl.languages[id]
	if !ok {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("grammar not loaded: %s", id))
	}
	return lang, nil
}

// LanguageForPath routes a file to a grammar by extension. It returns "" for
// unsupported files.
func (gl *GrammarLoader) LanguageForPath(path string) string {
	return gl.extensions[strings.ToLower(filepath.Ext(path))]
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(gl.extensions))
	for ext := range gl.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
