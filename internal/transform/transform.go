// Package transform holds helpers shared by the asset transformers in its subpackages.
package transform

import (
	"github.com/evanw/esbuild/pkg/api"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// FromESBuild converts the first esbuild error into a classified source error.
func FromESBuild(path string, msgs []api.Message) error {
	msg := msgs[0]
	b := ferrors.SourceError(msg.Text).WithPath(path)
	if loc := msg.Location; loc != nil {
		if loc.File != "" {
			b = b.WithPath(loc.File)
		}
		b = b.WithContext("line", loc.Line).WithContext("column", loc.Column)
	}
	if len(msgs) > 1 {
		b = b.WithContext("more_errors", len(msgs)-1)
	}
	return b.Build()
}
