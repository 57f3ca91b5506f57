// Package assets maps asset categories to their source globs and destination directories.
package assets

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Entry is one row of the path table. All paths are project-relative in slash form.
type Entry struct {
	Glob string
	// Base is the static prefix of Glob; output paths are computed relative to it.
	Base string
	Dest string
	// Entry is the single bundler entry module (Scripts only).
	Entry string
}

// Table is the immutable path table for one project root.
type Table struct {
	root     string
	destBase string
	sprite   string
	entries  map[Category]Entry
}

// NewTable builds the path table from validated configuration.
func NewTable(root string, cfg *config.Config) *Table {
	src, dst := cfg.Source, cfg.Dist
	entry := func(glob, dest string) Entry {
		base, _ := doublestar.SplitPattern(glob)
		if base == "." {
			base = ""
		}
		return Entry{Glob: glob, Base: base, Dest: dest}
	}
	scripts := entry(src.Scripts, dst.Scripts)
	scripts.Entry = src.ScriptEntry

	return &Table{
		root:     root,
		destBase: dst.Base,
		sprite:   dst.SpriteFile,
		entries: map[Category]Entry{
			Markup:        entry(src.Markup, dst.Base),
			Styles:        entry(src.Styles, dst.Styles),
			Scripts:       scripts,
			Fonts:         entry(src.Fonts, dst.Fonts),
			RasterImages:  entry(src.Pictures, dst.Images),
			VectorSprites: entry(src.Sprites, dst.Images),
		},
	}
}

// Root returns the absolute project root.
func (t *Table) Root() string { return t.root }

// DestBase returns the destination base directory (project-relative).
func (t *Table) DestBase() string { return t.destBase }

// SpriteFile returns the sprite sheet name, relative to the sprite destination.
func (t *Table) SpriteFile() string { return t.sprite }

// Lookup returns the entry for c, or the zero Entry for an unknown category.
func (t *Table) Lookup(c Category) Entry {
	return t.entries[c]
}

// Files lists the project-relative files matching c's glob, sorted. A missing
// source directory yields an empty list.
func (t *Table) Files(c Category) ([]string, error) {
	e, ok := t.entries[c]
	if !ok {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(t.root), e.Glob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to list source files").
			WithContext("category", string(c)).WithContext("pattern", e.Glob).Build()
	}
	sort.Strings(matches)
	return matches, nil
}

// Match returns every category whose glob matches the project-relative path, in
// declaration order. A sprite source matches both RasterImages and VectorSprites.
func (t *Table) Match(rel string) []Category {
	rel = filepath.ToSlash(rel)
	var out []Category
	for _, c := range AllCategories() {
		if ok, _ := doublestar.Match(t.entries[c].Glob, rel); ok {
			out = append(out, c)
		}
	}
	return out
}

// Rel converts an absolute path into a project-relative slash path. The second
// result is false when abs lies outside the root.
func (t *Table) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(t.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// Abs converts a project-relative slash path into an absolute path.
func (t *Table) Abs(rel string) string {
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

// OutputPath maps a source file of category c to its path relative to c's destination.
func (t *Table) OutputPath(c Category, rel string) string {
	base := t.entries[c].Base
	if base == "" {
		return rel
	}
	out := strings.TrimPrefix(rel, base+"/")
	return path.Clean(out)
}

// WatchRoots returns the distinct static directory prefixes of every glob, sorted.
// Nested roots are collapsed into their parent.
func (t *Table) WatchRoots() []string {
	seen := map[string]bool{}
	var roots []string
	for _, c := range AllCategories() {
		base := t.entries[c].Base
		if base == "" {
			base = "."
		}
		if !seen[base] {
			seen[base] = true
			roots = append(roots, base)
		}
	}
	sort.Strings(roots)
	var out []string
	for _, r := range roots {
		nested := false
		for _, o := range out {
			if covers(o, r) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r)
		}
	}
	return out
}

func covers(parent, child string) bool {
	return parent == "." || parent == child || strings.HasPrefix(child, parent+"/")
}

// ReadFile reads a project-relative file.
func (t *Table) ReadFile(rel string) ([]byte, fs.FileInfo, error) {
	abs := t.Abs(rel)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(abs) // #nosec G304 -- path comes from the project glob
	if err != nil {
		return nil, nil, err
	}
	return data, info, nil
}
