package font

import (
	"context"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// WOFFStep converts each TrueType asset to .woff.
func WOFFStep(name string) pipeline.Step {
	return convert(name, ".woff", ToWOFF)
}

// WOFF2Step converts each TrueType asset to .woff2.
func WOFF2Step(name string) pipeline.Step {
	return convert(name, ".woff2", ToWOFF2)
}

func convert(name, ext string, fn func([]byte) ([]byte, error)) pipeline.Step {
	return pipeline.Map(name, func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := fn(a.Contents)
		if err != nil {
			if ce, ok := ferrors.AsClassified(err); ok {
				return nil, ce.WithContext("path", a.Source)
			}
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "font conversion failed").WithPath(a.Source).Build()
		}
		return &pipeline.Asset{Source: a.Source, Path: pipeline.WithExt(a.Path, ext), Contents: out, ModTime: a.ModTime}, nil
	})
}
