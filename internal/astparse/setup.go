package astparse

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Language identifies which grammar a file is parsed with.
type Language int

const (
	LangUnknown Language = iota
	LangCSharp
	LangTypeScript
	LangTSX
)

// LanguageForExt maps a lowercase file extension (with leading dot) to a
// Language, or LangUnknown if the extension is outside the two families
// this package grounds: a C-family curly-braces language and a
// TypeScript-family language.
func LanguageForExt(ext string) Language {
	switch strings.ToLower(ext) {
	case ".cs":
		return LangCSharp
	case ".ts", ".mts", ".cts", ".js", ".mjs", ".cjs":
		return LangTypeScript
	case ".tsx", ".jsx":
		return LangTSX
	default:
		return LangUnknown
	}
}

func sitterLanguage(lang Language) *tree_sitter.Language {
	switch lang {
	case LangCSharp:
		return tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	case LangTypeScript:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case LangTSX:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		return nil
	}
}

// parseSource parses content with lang's grammar and returns the tree.
// The caller must call tree.Close() when done.
func parseSource(lang Language, content []byte) (*tree_sitter.Tree, error) {
	sl := sitterLanguage(lang)
	if sl == nil {
		return nil, fmt.Errorf("astparse: unsupported language %d", lang)
	}
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(sl); err != nil {
		return nil, fmt.Errorf("astparse: set language: %w", err)
	}
	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("astparse: parse returned nil tree")
	}
	return tree, nil
}

func newQuery(lang Language, source string) (*tree_sitter.Query, error) {
	sl := sitterLanguage(lang)
	q, qerr := tree_sitter.NewQuery(sl, source)
	if qerr != nil {
		return nil, fmt.Errorf("astparse: compile query: %w", qerr)
	}
	return q, nil
}
