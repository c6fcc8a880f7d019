// Package exports locates the default-exported function of a JavaScript or
// TypeScript source file using tree-sitter.
package exports

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageFor returns the grammar for a file extension, or nil when the file
// is not a script this package understands.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs":
		return javascript.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return nil
	}
}

// Supported reports whether DefaultFunctionName can parse files with this path.
func Supported(path string) bool {
	return languageFor(path) != nil
}

// DefaultFunctionName returns the identifier of the function declared by a
// top-level
//
//	export default function Name(...) { ... }
//
// statement (async allowed). Anonymous default functions, default-exported
// classes, arrows and other expressions report false, as do files whose
// extension is not one of .js, .jsx, .mjs, .ts or .tsx.
//
// The first matching statement wins. Source that fails to parse reports
// false rather than an error.
func DefaultFunctionName(path string, src []byte) (string, bool) {
	lang := languageFor(path)
	if lang == nil || len(src) == 0 {
		return "", false
	}

	// Parsers are not safe for concurrent use, one per call keeps this
	// function free of shared state.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return "", false
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "export_statement" || !isDefault(stmt) {
			continue
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil || decl.Type() != "function_declaration" {
			continue
		}
		name := decl.ChildByFieldName("name")
		if name == nil {
			continue
		}
		return name.Content(src), true
	}
	return "", false
}

// isDefault reports whether an export_statement carries the default keyword.
func isDefault(stmt *sitter.Node) bool {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		if stmt.Child(i).Type() == "default" {
			return true
		}
	}
	return false
}
