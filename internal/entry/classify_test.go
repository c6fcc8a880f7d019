package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		symbol string
		want   Classification
	}{
		{
			name:   "home page",
			path:   "pages/home.ts",
			symbol: "Home",
			want:   Classification{Kind: HomePage, Route: "/", Symbol: "Home"},
		},
		{
			name:   "home page without export",
			path:   "pages/home.js",
			symbol: "",
			want:   Classification{Kind: HomePage, Route: "/"},
		},
		{
			name:   "homepage is a static page",
			path:   "pages/homepage.ts",
			symbol: "HomePage",
			want:   Classification{Kind: StaticPage, Route: "/homepage", Symbol: "HomePage"},
		},
		{
			name:   "nested home is a static page",
			path:   "pages/docs/home.ts",
			symbol: "DocsHome",
			want:   Classification{Kind: StaticPage, Route: "/docs/home", Symbol: "DocsHome"},
		},
		{
			name:   "static page",
			path:   "pages/about.tsx",
			symbol: "About",
			want:   Classification{Kind: StaticPage, Route: "/about", Symbol: "About"},
		},
		{
			name:   "nested static page",
			path:   "pages/blog/archive.js",
			symbol: "Archive",
			want:   Classification{Kind: StaticPage, Route: "/blog/archive", Symbol: "Archive"},
		},
		{
			name:   "slug page",
			path:   "pages/blog/[slug].ts",
			symbol: "BlogPost",
			want:   Classification{Kind: SlugPage, Route: "/blog/", Symbol: "BlogPost"},
		},
		{
			name:   "slug directory",
			path:   "pages/shop/[slug]/index.ts",
			symbol: "Product",
			want:   Classification{Kind: SlugPage, Route: "/shop/", Symbol: "Product"},
		},
		{
			name:   "nested pages directory",
			path:   "features/pages/pricing.ts",
			symbol: "Pricing",
			want:   Classification{Kind: StaticPage, Route: "/pricing", Symbol: "Pricing"},
		},
		{
			name:   "style with no export",
			path:   "styles/main.scss",
			symbol: "",
			want:   Classification{Kind: NonPageModule},
		},
		{
			name:   "script under styles with export",
			path:   "styles/theme.ts",
			symbol: "applyTheme",
			want:   Classification{Kind: NonPageModule, Symbol: "applyTheme"},
		},
		{
			name:   "global file",
			path:   "global.ts",
			symbol: "",
			want:   Classification{Kind: NonPageModule},
		},
		{
			name:   "global directory",
			path:   "globals/reset.css",
			symbol: "",
			want:   Classification{Kind: NonPageModule},
		},
		{
			name:   "component is ignored",
			path:   "components/button.ts",
			symbol: "Button",
			want:   Classification{Kind: Ignored},
		},
		{
			name:   "file named pages is ignored",
			path:   "lib/pages.ts",
			symbol: "Pages",
			want:   Classification{Kind: Ignored},
		},
		{
			name:   "global below root is ignored",
			path:   "lib/global.ts",
			symbol: "",
			want:   Classification{Kind: Ignored},
		},
		{
			name:   "pages take precedence over styles",
			path:   "styles/pages/print.ts",
			symbol: "Print",
			want:   Classification{Kind: StaticPage, Route: "/print", Symbol: "Print"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path, tt.symbol))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "module", NonPageModule.String())
	assert.Equal(t, "page", StaticPage.String())
	assert.Equal(t, "slug", SlugPage.String())
	assert.Equal(t, "home", HomePage.String())
}
