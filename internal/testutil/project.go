package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Project is a temporary project root.
type Project struct {
	t    testing.TB
	Root string
}

// NewProject creates an empty project in a test temp dir.
func NewProject(t testing.TB) *Project {
	t.Helper()
	return &Project{t: t, Root: t.TempDir()}
}

// Path returns the absolute path of a slash-separated project-relative path.
func (p *Project) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// Write creates rel with data, including parent directories.
func (p *Project) Write(rel string, data []byte) *Project {
	p.t.Helper()
	abs := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(abs), dirPermissions); err != nil {
		p.t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, data, filePermissions); err != nil {
		p.t.Fatalf("write %s: %v", rel, err)
	}
	return p
}

// WriteString is Write for text fixtures.
func (p *Project) WriteString(rel, content string) *Project {
	p.t.Helper()
	return p.Write(rel, []byte(content))
}

// Backdate sets the modification time of rel to d in the past.
func (p *Project) Backdate(rel string, d time.Duration) *Project {
	p.t.Helper()
	ts := time.Now().Add(-d)
	if err := os.Chtimes(p.Path(rel), ts, ts); err != nil {
		p.t.Fatalf("chtimes %s: %v", rel, err)
	}
	return p
}

// Read returns the contents of rel, failing the test when it is missing.
func (p *Project) Read(rel string) []byte {
	p.t.Helper()
	// #nosec G304 -- test helper, paths are controlled by test code
	data, err := os.ReadFile(p.Path(rel))
	if err != nil {
		p.t.Fatalf("read %s: %v", rel, err)
	}
	return data
}

// Standard writes a small project covering every asset category.
func (p *Project) Standard() *Project {
	p.t.Helper()
	return p.
		WriteString("src/partials/header.html", "<header>@@title</header>").
		WriteString("src/index.html", `<html><body>@@include('partials/header.html', {"title": "Home"})<main>hi</main></body></html>`).
		WriteString("src/scss/main.scss", ".card {\n  color: red;\n  margin: 0px;\n}\n").
		WriteString("src/js/util.js", "export const add = (a, b) => a + b;\n").
		WriteString("src/js/script.js", "import { add } from './util.js';\nconsole.log(add(1, 2));\n").
		Write("src/fonts/Inter.ttf", TTF()).
		Write("src/images/photo.png", PNG(10, 10)).
		WriteString("src/images/sprites/arrow.svg", SVG("M0 0L10 10")).
		WriteString("src/images/sprites/icons/close.svg", SVG("M10 0L0 10"))
}
