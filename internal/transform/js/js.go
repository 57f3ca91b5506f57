// Package js bundles the script entry module and minifies the bundle.
package js

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	mjs "github.com/tdewolff/minify/v2/js"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

const mediaType = "application/javascript"

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps "es2015"-style names onto esbuild targets.
func ParseTarget(raw string) (api.Target, error) {
	t, ok := targets[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return api.DefaultTarget, ferrors.ConfigError("unknown script target").WithContext("target", raw).Build()
	}
	return t, nil
}

// Bundler resolves an entry module and everything it imports into one script.
type Bundler interface {
	// Bundle returns the bundle for entry (absolute). outfile is the absolute path the
	// bundle will be written to; source map references are made relative to it.
	Bundle(ctx context.Context, entry, outfile string) ([]byte, error)
}

// ESBuildBundler bundles in-process with esbuild: IIFE output, transpiled to Target,
// with an inline source map.
type ESBuildBundler struct {
	Root   string
	Target api.Target
}

func (b *ESBuildBundler) Bundle(_ context.Context, entry, outfile string) ([]byte, error) {
	res := api.Build(api.BuildOptions{
		EntryPoints:   []string{entry},
		Outfile:       outfile,
		AbsWorkingDir: b.Root,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatIIFE,
		Target:        b.Target,
		Sourcemap:     api.SourceMapInline,
		LogLevel:      api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, transform.FromESBuild(b.relative(entry), res.Errors)
	}
	for _, f := range res.OutputFiles {
		if strings.HasSuffix(f.Path, ".js") {
			return f.Contents, nil
		}
	}
	return nil, ferrors.ToolError("bundler produced no script output").WithPath(b.relative(entry)).Build()
}

func (b *ESBuildBundler) relative(p string) string {
	if rel, err := filepath.Rel(b.Root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

// BundleStep replaces the batch with the bundle of the entry module, named name
// relative to the destination dir. A missing entry yields an empty batch.
func BundleStep(stepName string, bundler Bundler, root, entry, destDir, name string) pipeline.Step {
	return pipeline.Step{Name: stepName, Fn: func(ctx context.Context, _ []*pipeline.Asset) ([]*pipeline.Asset, error) {
		abs := filepath.Join(root, filepath.FromSlash(entry))
		info, err := os.Stat(abs)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, ferrors.FileSystemError("failed to stat script entry").WithCause(err).WithPath(entry).Build()
		}
		code, err := bundler.Bundle(ctx, abs, filepath.Join(destDir, filepath.FromSlash(name)))
		if err != nil {
			return nil, err
		}
		return []*pipeline.Asset{{Source: entry, Path: name, Contents: code, ModTime: info.ModTime()}}, nil
	}}
}

// Minifier shrinks bundles.
type Minifier struct {
	m *minify.M
}

func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc(mediaType, mjs.Minify)
	return &Minifier{m: m}
}

func (mn *Minifier) Minify(path string, src []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := mn.m.Minify(mediaType, &out, bytes.NewReader(src)); err != nil {
		return nil, ferrors.SourceError("script minification failed").WithCause(err).WithPath(path).Build()
	}
	return out.Bytes(), nil
}

// Step minifies every asset.
func (mn *Minifier) Step(name string) pipeline.Step {
	return pipeline.Map(name, func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := mn.Minify(a.Source, a.Contents)
		if err != nil {
			return nil, err
		}
		c := a.Clone()
		c.Contents = out
		return c, nil
	})
}
