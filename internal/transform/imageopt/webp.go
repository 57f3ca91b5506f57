package imageopt

import (
	"bytes"
	"context"

	"github.com/chai2010/webp"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// WebPEncoder derives lossy WebP copies of raster images.
type WebPEncoder struct {
	quality float32
}

func NewWebPEncoder(quality float32) *WebPEncoder {
	return &WebPEncoder{quality: quality}
}

// Encode converts a PNG, JPEG or GIF (first frame) to WebP.
func (e *WebPEncoder) Encode(data []byte) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: e.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Supports reports whether a WebP copy is derived for the extension. Vector images are not rasterized.
func Supports(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// Step appends a .webp sibling for every raster asset; the originals stay in the batch.
func (e *WebPEncoder) Step(name string) pipeline.Step {
	return pipeline.Step{Name: name, Fn: func(_ context.Context, in []*pipeline.Asset) ([]*pipeline.Asset, error) {
		out := make([]*pipeline.Asset, 0, 2*len(in))
		for _, a := range in {
			out = append(out, a)
			if !Supports(a.Ext()) {
				continue
			}
			data, err := e.Encode(a.Contents)
			if err != nil {
				return nil, ferrors.SourceError("webp encoding failed").WithCause(err).WithPath(a.Source).Build()
			}
			out = append(out, &pipeline.Asset{
				Source:   a.Source,
				Path:     pipeline.WithExt(a.Path, ".webp"),
				Contents: data,
				ModTime:  a.ModTime,
			})
		}
		return out, nil
	}}
}

// IsWebP selects the derived copies for writing.
func IsWebP(a *pipeline.Asset) bool { return a.Ext() == ".webp" }
