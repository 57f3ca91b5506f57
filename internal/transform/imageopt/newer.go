package imageopt

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// NewerStep drops assets whose destination copy is at least as recent as the source.
func NewerStep(name, destDir string) pipeline.Step {
	return pipeline.Filter(name, func(a *pipeline.Asset) bool {
		info, err := os.Stat(filepath.Join(destDir, filepath.FromSlash(a.Path)))
		if err != nil {
			return true
		}
		return info.ModTime().Before(a.ModTime)
	})
}
