// Package imageopt optimizes raster and vector images and derives WebP copies.
package imageopt

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	_ "image/jpeg" // image.Decode for WebP sources
	"image/png"

	"github.com/pixiv/go-libjpeg/jpeg"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

const svgMediaType = "image/svg+xml"

// Optimizer re-encodes images per format: GIF frames through the palette encoder,
// JPEG as progressive scans at a fixed quality, PNG at best compression, and SVG through a markup
// minifier that keeps viewBox and ids. An optimized result larger than its input is
// discarded in favour of the original.
type Optimizer struct {
	jpegQuality int
	svg         *minify.M
}

func NewOptimizer(jpegQuality int) *Optimizer {
	m := minify.New()
	m.AddFunc(svgMediaType, svg.Minify)
	return &Optimizer{jpegQuality: jpegQuality, svg: m}
}

// Optimize returns the optimized bytes for an image identified by its extension.
// Unknown extensions pass through.
func (o *Optimizer) Optimize(ext string, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch ext {
	case ".png":
		out, err = o.png(data)
	case ".jpg", ".jpeg":
		out, err = o.jpeg(data)
	case ".gif":
		out, err = o.gif(data)
	case ".svg":
		out, err = o.svgMin(data)
	default:
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

func (o *Optimizer) png(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) jpeg(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data), &jpeg.DecoderOptions{})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	opts := &jpeg.EncoderOptions{Quality: o.jpegQuality, OptimizeCoding: true, ProgressiveMode: true}
	if err := jpeg.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) gif(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) svgMin(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := o.svg.Minify(svgMediaType, &buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Step optimizes every asset.
func (o *Optimizer) Step(name string) pipeline.Step {
	return pipeline.Map(name, func(_ context.Context, a *pipeline.Asset) (*pipeline.Asset, error) {
		out, err := o.Optimize(a.Ext(), a.Contents)
		if err != nil {
			return nil, ferrors.SourceError("image optimization failed").WithCause(err).WithPath(a.Source).Build()
		}
		c := a.Clone()
		c.Contents = out
		return c, nil
	})
}

// decode reads the first frame of any raster format the optimizer knows.
func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
