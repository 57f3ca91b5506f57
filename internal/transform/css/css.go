// Package css vendor-prefixes and minifies compiled stylesheets.
package css

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	mcss "github.com/tdewolff/minify/v2/css"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

const mediaType = "text/css"

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var engineRe = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+)*)$`)

// ParseEngines converts targets such as "chrome80" or "safari13.1" into esbuild engines.
func ParseEngines(targets []string) ([]api.Engine, error) {
	out := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		m := engineRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
		if m == nil {
			return nil, ferrors.ConfigError("invalid browser target").WithContext("target", t).Build()
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, ferrors.ConfigError("unknown browser engine").WithContext("target", t).Build()
		}
		out = append(out, api.Engine{Name: name, Version: m[2]})
	}
	return out, nil
}

// Prefixer adds vendor prefixes required by the configured browser engines.
type Prefixer struct {
	engines []api.Engine
}

func NewPrefixer(engines []api.Engine) *Prefixer {
	return &Prefixer{engines: engines}
}

// Prefix returns the prefixed stylesheet. Rules keep their cascade order.
func (p *Prefixer) Prefix(path string, src []byte) ([]byte, error) {
	res := api.Transform(string(src), api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    p.engines,
		Sourcefile: path,
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, transform.FromESBuild(path, res.Errors)
	}
	return res.Code, nil
}

// Step prefixes every asset.
func (p *Prefixer) Step(name string) pipeline.Step {
	return pipeline.Map(name, func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := p.Prefix(a.Source, a.Contents)
		if err != nil {
			return nil, err
		}
		c := a.Clone()
		c.Contents = out
		return c, nil
	})
}

// Minifier shrinks stylesheets.
type Minifier struct {
	m *minify.M
}

func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc(mediaType, mcss.Minify)
	return &Minifier{m: m}
}

func (mn *Minifier) Minify(path string, src []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := mn.m.Minify(mediaType, &out, bytes.NewReader(src)); err != nil {
		return nil, ferrors.SourceError("stylesheet minification failed").WithCause(err).WithPath(path).Build()
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
