package pipeline

import (
	"path"
	"strings"
	"time"
)

// Asset is one file flowing through a chain.
type Asset struct {
	// Source is the project-relative source path the asset derives from.
	Source string
	// Path is the output path relative to the stage destination directory.
	Path     string
	Contents []byte
	ModTime  time.Time
}

// Clone returns a copy that shares no mutable state with a.
func (a *Asset) Clone() *Asset {
	c := *a
	c.Contents = append([]byte(nil), a.Contents...)
	return &c
}

// Ext returns the lower-cased extension of Path, including the dot.
func (a *Asset) Ext() string {
	return strings.ToLower(path.Ext(a.Path))
}

// WithExt returns p with its extension replaced by ext.
func WithExt(p, ext string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ext
}

// WithSuffix inserts suffix before the extension: "main.css" -> "main.min.css".
func WithSuffix(p, suffix string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + suffix + ext
}
