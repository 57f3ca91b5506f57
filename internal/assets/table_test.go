package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
)

func touch(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o600))
	}
}

func TestTable_Lookup(t *testing.T) {
	tbl := NewTable(t.TempDir(), config.Default())

	assert.Equal(t, Entry{Glob: "src/*.html", Base: "src", Dest: "dist"}, tbl.Lookup(Markup))
	assert.Equal(t, Entry{Glob: "src/js/**/*.js", Base: "src/js", Dest: "dist/js", Entry: "src/js/script.js"}, tbl.Lookup(Scripts))
	assert.Equal(t, "dist/images", tbl.Lookup(VectorSprites).Dest)
	assert.Equal(t, "src/images", tbl.Lookup(RasterImages).Base)
	assert.Equal(t, Entry{}, tbl.Lookup(Category("unknown")))
}

func TestTable_Files(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"src/index.html", "src/about.html", "src/partials/head.html",
		"src/images/b.png", "src/images/a.jpg", "src/images/icons/x.gif", "src/images/notes.txt",
		"src/images/sprites/arrow.svg",
	)
	tbl := NewTable(root, config.Default())

	markup, err := tbl.Files(Markup)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/about.html", "src/index.html"}, markup)

	images, err := tbl.Files(RasterImages)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/images/a.jpg", "src/images/b.png", "src/images/icons/x.gif", "src/images/sprites/arrow.svg"}, images)

	fonts, err := tbl.Files(Fonts)
	require.NoError(t, err)
	assert.Empty(t, fonts, "a missing source directory is not an error")
}

func TestTable_Match(t *testing.T) {
	tbl := NewTable(t.TempDir(), config.Default())

	tests := []struct {
		path string
		want []Category
	}{
		{"src/index.html", []Category{Markup}},
		{"src/partials/head.html", nil},
		{"src/scss/main.scss", []Category{Styles}},
		{"src/js/lib/util.js", []Category{Scripts}},
		{"src/fonts/Inter.ttf", []Category{Fonts}},
		{"src/images/photo.jpeg", []Category{RasterImages}},
		{"src/images/sprites/arrow.svg", []Category{RasterImages, VectorSprites}},
		{"README.md", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tbl.Match(tt.path)); diff != "" {
				t.Errorf("Match(%q) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestTable_PathHelpers(t *testing.T) {
	root := t.TempDir()
	tbl := NewTable(root, config.Default())

	rel, ok := tbl.Rel(filepath.Join(root, "src", "index.html"))
	require.True(t, ok)
	assert.Equal(t, "src/index.html", rel)

	_, ok = tbl.Rel(filepath.Dir(root))
	assert.False(t, ok)

	assert.Equal(t, filepath.Join(root, "src", "js", "a.js"), tbl.Abs("src/js/a.js"))
	assert.Equal(t, "icons/x.gif", tbl.OutputPath(RasterImages, "src/images/icons/x.gif"))
	assert.Equal(t, "index.html", tbl.OutputPath(Markup, "src/index.html"))
	assert.Equal(t, "arrow.svg", tbl.OutputPath(VectorSprites, "src/images/sprites/arrow.svg"))
}

func TestTable_WatchRoots(t *testing.T) {
	tbl := NewTable(t.TempDir(), config.Default())
	assert.Equal(t, []string{"src"}, tbl.WatchRoots())

	cfg := config.Default()
	cfg.Source.Markup = "pages/*.html"
	cfg.Source.Fonts = "assets/fonts/*.ttf"
	tbl = NewTable(t.TempDir(), cfg)
	assert.Equal(t, []string{"assets/fonts", "pages", "src"}, tbl.WatchRoots())
}
