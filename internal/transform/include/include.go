// Package include expands @@include directives in markup files.
//
//	@@include('partials/header.html', {"title": "Home"})
//
// Paths resolve against the directory of the including file. The optional
// parameter object is exposed to the included file as @@name variables and is
// inherited by nested includes.
package include

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

const maxDepth = 32

var (
	directiveRe = regexp.MustCompile(`@@include\(\s*['"]([^'"]+)['"]\s*(?:,\s*(\{[^)]*\}))?\s*\)`)
	variableRe  = regexp.MustCompile(`@@([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)`)
)

// Engine expands include directives for files beneath root.
type Engine struct {
	root string
}

func New(root string) *Engine {
	return &Engine{root: root}
}

// Expand returns data with every directive replaced. rel is the project-relative
// path of the file data came from.
func (e *Engine) Expand(rel string, data []byte) ([]byte, error) {
	return e.expand(filepath.Join(e.root, filepath.FromSlash(rel)), data, nil, nil)
}

// Step adapts the engine to a chain step.
func (e *Engine) Step(name string) pipeline.Step {
	return pipeline.Map(name, func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := e.Expand(a.Source, a.Contents)
		if err != nil {
			return nil, err
		}
		c := a.Clone()
		c.Contents = out
		return c, nil
	})
}

func (e *Engine) expand(file string, data []byte, vars map[string]any, stack []string) ([]byte, error) {
	for _, s := range stack {
		if s == file {
			return nil, ferrors.SourceError("include cycle").
				WithPath(e.display(file)).
				WithContext("chain", strings.Join(e.displayAll(append(stack, file)), " -> ")).
				Build()
		}
	}
	if len(stack) >= maxDepth {
		return nil, ferrors.SourceError("include nesting too deep").WithPath(e.display(file)).Build()
	}
	stack = append(stack, file)

	var out bytes.Buffer
	last := 0
	for _, m := range directiveRe.FindAllSubmatchIndex(data, -1) {
		out.Write(data[last:m[0]])
		last = m[1]

		target := string(data[m[2]:m[3]])
		local := vars
		if m[4] >= 0 {
			params, err := parseParams(data[m[4]:m[5]])
			if err != nil {
				return nil, ferrors.SourceError("invalid include parameters").
					WithCause(err).WithPath(e.display(file)).
					WithContext("line", lineOf(data, m[0])).Build()
			}
			local = merge(vars, params)
		}

		incPath := filepath.Join(filepath.Dir(file), filepath.FromSlash(target))
		body, err := os.ReadFile(incPath) // #nosec G304 -- include targets come from project sources
		if err != nil {
			return nil, ferrors.SourceError("included file not found").
				WithCause(err).WithPath(e.display(file)).
				WithContext("line", lineOf(data, m[0])).
				WithContext("include", target).Build()
		}
		expanded, err := e.expand(incPath, body, local, stack)
		if err != nil {
			return nil, err
		}
		out.Write(substitute(expanded, local))
	}
	out.Write(data[last:])
	return out.Bytes(), nil
}

func parseParams(raw []byte) (map[string]any, error) {
	params := map[string]any{}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func merge(parent, child map[string]any) map[string]any {
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

// substitute replaces @@name references with known variables; unknown names are left alone.
func substitute(data []byte, vars map[string]any) []byte {
	if len(vars) == 0 {
		return data
	}
	return variableRe.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(m[2:])
		v, ok := lookup(vars, name)
		if !ok {
			return m
		}
		return []byte(v)
	})
}

// lookup resolves dotted names into nested parameter objects.
func lookup(vars map[string]any, name string) (string, bool) {
	var cur any = vars
	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[part]; !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case map[string]any, []any:
		return "", false
	case nil:
		return "", true
	default:
		return fmt.Sprint(v), true
	}
}

func lineOf(data []byte, offset int) int {
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

func (e *Engine) display(file string) string {
	if rel, err := filepath.Rel(e.root, file); err == nil {
		return filepath.ToSlash(rel)
	}
	return file
}

func (e *Engine) displayAll(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = e.display(f)
	}
	return out
}
