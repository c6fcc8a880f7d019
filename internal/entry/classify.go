package entry

import (
	"path"
	"strings"
)

// Kind describes how a source file contributes to the entry module.
type Kind int

const (
	// Ignored files contribute nothing.
	Ignored Kind = iota
	// NonPageModule files are imported without a route guard.
	NonPageModule
	// StaticPage files run when the location equals their route.
	StaticPage
	// SlugPage files run when the location starts with their route prefix.
	SlugPage
	// HomePage files run when the location is the site root.
	HomePage
)

func (k Kind) String() string {
	switch k {
	case NonPageModule:
		return "module"
	case StaticPage:
		return "page"
	case SlugPage:
		return "slug"
	case HomePage:
		return "home"
	default:
		return "ignored"
	}
}

const (
	pagesSegment  = "pages"
	stylesSegment = "styles"
	globalPrefix  = "global"
	slugMarker    = "[slug]"
	homeRoute     = "/home"
)

// Classification is the result of classifying one file.
type Classification struct {
	Kind Kind
	// Route is the exact route for StaticPage and the prefix for SlugPage.
	Route string
	// Symbol is the default-exported function name, empty when absent.
	Symbol string
}

// HasSymbol reports whether the file has a default-exported function.
func (c Classification) HasSymbol() bool {
	return c.Symbol != ""
}

// Classify decides how the file at srcPath (slash-separated, relative to the
// source root) contributes to the entry module. symbol is the file's
// default-exported function name, or "" if it has none.
//
// Precedence for page files is HomePage, then SlugPage, then StaticPage.
func Classify(srcPath string, symbol string) Classification {
	segments := strings.Split(srcPath, "/")

	if route, ok := pageRoute(segments); ok {
		c := Classification{Symbol: symbol}
		switch {
		case route == homeRoute:
			c.Kind = HomePage
			c.Route = "/"
		case strings.Contains(route, slugMarker):
			c.Kind = SlugPage
			c.Route = route[:strings.Index(route, slugMarker)]
		default:
			c.Kind = StaticPage
			c.Route = route
		}
		return c
	}

	if hasSegment(segments[:len(segments)-1], stylesSegment) || strings.HasPrefix(segments[0], globalPrefix) {
		return Classification{Kind: NonPageModule, Symbol: symbol}
	}

	return Classification{Kind: Ignored}
}

// pageRoute returns the route of a file below a pages directory: the path
// after the first pages segment with its extension stripped.
func pageRoute(segments []string) (string, bool) {
	for i, seg := range segments[:len(segments)-1] {
		if seg != pagesSegment {
			continue
		}
		rest := strings.Join(segments[i+1:], "/")
		return "/" + strings.TrimSuffix(rest, path.Ext(rest)), true
	}
	return "", false
}

func hasSegment(segments []string, want string) bool {
	for _, seg := range segments {
		if seg == want {
			return true
		}
	}
	return false
}
