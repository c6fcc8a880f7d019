package entry

import (
	"fmt"
	"sort"
	"strings"
)

const (
	bodyHeader = "// Auto-generated imports\n"
	bodyFooter = "\n\n// Your main.js code here\n"
)

// candidateExtensions are the file types the entry module may import.
var candidateExtensions = map[string]bool{
	".ts":   true,
	".js":   true,
	".tsx":  true,
	".jsx":  true,
	".css":  true,
	".scss": true,
	".svg":  true,
}

// Item is a classified file ready for synthesis.
type Item struct {
	// ImportPath is the slash-separated path relative to the entry file's
	// directory, e.g. "../src/pages/about.ts".
	ImportPath string
	Class      Classification
}

// Synthesize renders the entry module body. Items are ordered by import path
// first, so the output depends only on the set of items.
func Synthesize(items []Item) string {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ImportPath < sorted[j].ImportPath
	})

	locals := localNames(sorted)
	statements := make([]string, 0, len(sorted))
	for i, it := range sorted {
		if stmt := statement(it, locals[i]); stmt != "" {
			statements = append(statements, stmt)
		}
	}

	var b strings.Builder
	b.WriteString(bodyHeader)
	b.WriteString(strings.Join(statements, "\n"))
	b.WriteString(bodyFooter)
	return b.String()
}

// localNames picks the import binding for every item with a symbol. The first
// item exporting a name keeps it; later ones get name_N with the smallest N
// that no other item exports or was already given.
func localNames(items []Item) []string {
	locals := make([]string, len(items))
	taken := make(map[string]bool)
	var dupes []int

	for i, it := range items {
		if !it.Class.HasSymbol() || it.Class.Kind == Ignored {
			continue
		}
		if taken[it.Class.Symbol] {
			dupes = append(dupes, i)
			continue
		}
		taken[it.Class.Symbol] = true
		locals[i] = it.Class.Symbol
	}

	for _, i := range dupes {
		symbol := items[i].Class.Symbol
		for n := 2; ; n++ {
			name := fmt.Sprintf("%s_%d", symbol, n)
			if !taken[name] {
				taken[name] = true
				locals[i] = name
				break
			}
		}
	}
	return locals
}

// statement renders the import, and route guard if any, for one item.
func statement(it Item, local string) string {
	spec := jsString(it.ImportPath)

	switch it.Class.Kind {
	case NonPageModule:
		if local == "" {
			return fmt.Sprintf("import %s;", spec)
		}
		return fmt.Sprintf("import %s from %s;", local, spec)

	case HomePage, StaticPage:
		if local == "" {
			return ""
		}
		return guarded(local, spec, fmt.Sprintf("window.location.pathname === %s", jsString(it.Class.Route)))

	case SlugPage:
		if local == "" {
			return ""
		}
		return guarded(local, spec, fmt.Sprintf("window.location.pathname.startsWith(%s)", jsString(it.Class.Route)))

	default:
		return ""
	}
}

func guarded(local, spec, cond string) string {
	return fmt.Sprintf("import %s from %s;\nif (%s) {\n  %s();\n}", local, spec, cond, local)
}

// jsString quotes s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
