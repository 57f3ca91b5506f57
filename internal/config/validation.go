package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Validate checks the invariants the pipeline relies on: valid globs, destination
// directories strictly beneath the destination base, and a destination base that a
// clean can delete without touching sources.
func (c *Config) Validate() error {
	globs := map[string]string{
		"source.markup":   c.Source.Markup,
		"source.styles":   c.Source.Styles,
		"source.scripts":  c.Source.Scripts,
		"source.fonts":    c.Source.Fonts,
		"source.pictures": c.Source.Pictures,
		"source.sprites":  c.Source.Sprites,
	}
	for field, g := range globs {
		if g == "" {
			return ferrors.ConfigError("source glob must not be empty").WithContext("field", field).Build()
		}
		if !doublestar.ValidatePattern(g) {
			return ferrors.ConfigError("invalid source glob").
				WithContext("field", field).WithContext("pattern", g).Build()
		}
	}
	if c.Source.ScriptEntry == "" {
		return ferrors.ConfigError("script entry module must be set").WithContext("field", "source.script_entry").Build()
	}

	base := c.Dist.Base
	if base == "" || base == "." || strings.HasPrefix(base, "..") || path.IsAbs(base) {
		return ferrors.ConfigError("destination base must be a relative directory inside the project").
			WithContext("field", "dist.base").WithContext("value", base).Build()
	}
	if c.Source.Base != "" && (within(c.Source.Base, base) || within(base, c.Source.Base)) {
		return ferrors.ConfigError("destination base overlaps the source tree").
			WithContext("dist", base).WithContext("source", c.Source.Base).Build()
	}
	dirs := map[string]string{
		"dist.styles":  c.Dist.Styles,
		"dist.scripts": c.Dist.Scripts,
		"dist.fonts":   c.Dist.Fonts,
		"dist.images":  c.Dist.Images,
	}
	for field, d := range dirs {
		if d == "" || !within(base, d) {
			return ferrors.ConfigError("destination directory must be beneath the destination base").
				WithContext("field", field).WithContext("value", d).WithContext("base", base).Build()
		}
	}
	if c.Dist.SpriteFile == "" || path.IsAbs(c.Dist.SpriteFile) || strings.HasPrefix(path.Clean(c.Dist.SpriteFile), "..") {
		return ferrors.ConfigError("sprite file must be a file name inside the images directory").
			WithContext("value", c.Dist.SpriteFile).Build()
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ferrors.ConfigError("server port out of range").WithContext("port", c.Server.Port).Build()
	}
	if c.Server.ReloadDelay < 0 {
		return ferrors.ConfigError("reload delay must not be negative").Build()
	}
	if c.Images.JPEGQuality < 1 || c.Images.JPEGQuality > 100 {
		return ferrors.ConfigError("jpeg quality must be within 1..100").
			WithContext("value", c.Images.JPEGQuality).Build()
	}
	if c.Images.WebPQuality < 0 || c.Images.WebPQuality > 100 {
		return ferrors.ConfigError("webp quality must be within 0..100").
			WithContext("value", fmt.Sprint(c.Images.WebPQuality)).Build()
	}
	return nil
}

// within reports whether child equals parent or lies beneath it (slash paths).
func within(parent, child string) bool {
	if parent == child {
		return true
	}
	return strings.HasPrefix(child, strings.TrimSuffix(parent, "/")+"/")
}
