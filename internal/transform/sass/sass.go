// Package sass compiles SCSS stylesheets to CSS.
package sass

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Compiler abstracts how a stylesheet is compiled. The default BinaryCompiler runs
// the dart-sass executable; tests and plain-CSS projects use PassthroughCompiler.
type Compiler interface {
	// Compile turns the stylesheet at path (absolute) into CSS.
	Compile(ctx context.Context, path string) ([]byte, error)
}

// BinaryCompiler invokes the sass binary.
type BinaryCompiler struct {
	Binary    string
	LoadPaths []string
	// Root is used to report error locations relative to the project.
	Root string
}

// dart-sass ends its error report with "  path line:col  root stylesheet".
var locationRe = regexp.MustCompile(`(?m)^\s+(\S+)\s+(\d+):(\d+)\s+`)

func (b *BinaryCompiler) Compile(ctx context.Context, path string) ([]byte, error) {
	bin := b.Binary
	if bin == "" {
		bin = "sass"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, ferrors.ToolError("stylesheet compiler not found").
			WithCause(err).WithContext("tool", bin).Build()
	}

	args := []string{"--no-source-map", "--style=expanded", "--no-color"}
	for _, lp := range b.LoadPaths {
		args = append(args, "--load-path="+lp)
	}
	args = append(args, path)

	// #nosec G204 -- binary and arguments come from validated configuration
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = b.Root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log := logfields.Logger(ctx).With(logfields.Path(b.relative(path)))
	log.Debug("Invoking sass")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, ferrors.ToolError("stylesheet compiler failed to run").
				WithCause(err).WithContext("tool", bin).Build()
		}
		return nil, b.sourceError(path, stderr.String(), err)
	}
	if s := stderr.String(); s != "" {
		log.Warn("Sass reported warnings", slog.String("output", strings.TrimSpace(s)))
	}
	return stdout.Bytes(), nil
}

func (b *BinaryCompiler) sourceError(path, output string, cause error) error {
	msg := strings.TrimSpace(output)
	first := msg
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		first = msg[:i]
	}
	first = strings.TrimPrefix(first, "Error: ")
	if first == "" {
		first = "stylesheet compilation failed"
	}

	builder := ferrors.SourceError(first).WithCause(cause).WithPath(b.relative(path))
	if m := locationRe.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		builder = builder.WithPath(filepath.ToSlash(m[1])).WithContext("line", line).WithContext("column", col)
	}
	return builder.WithContext("output", msg).Build()
}

func (b *BinaryCompiler) relative(path string) string {
	if b.Root == "" {
		return path
	}
	if rel, err := filepath.Rel(b.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// PassthroughCompiler returns the stylesheet unchanged; the input must already be CSS.
type PassthroughCompiler struct{}

func (PassthroughCompiler) Compile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the project glob
	if err != nil {
		return nil, ferrors.SourceError("stylesheet not readable").WithCause(err).WithPath(path).Build()
	}
	return data, nil
}

// Step compiles every non-partial stylesheet and renames it to .css. Partials
// (leading underscore) are only reachable through imports.
func Step(name, root string, c Compiler) pipeline.Step {
	return pipeline.Step{Name: name, Fn: func(ctx context.Context, in []*pipeline.Asset) ([]*pipeline.Asset, error) {
		out := make([]*pipeline.Asset, 0, len(in))
		for _, a := range in {
			if strings.HasPrefix(filepath.Base(a.Path), "_") {
				continue
			}
			css, err := c.Compile(ctx, filepath.Join(root, filepath.FromSlash(a.Source)))
			if err != nil {
				return nil, err
			}
			out = append(out, &pipeline.Asset{
				Source:   a.Source,
				Path:     pipeline.WithExt(a.Path, ".css"),
				Contents: css,
				ModTime:  a.ModTime,
			})
		}
		return out, nil
	}}
}
