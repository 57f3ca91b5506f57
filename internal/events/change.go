package events

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetpipe/internal/assets"
)

// Op is the kind of filesystem change.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// OpFromFSNotify maps an fsnotify operation. Chmod-only events yield false.
func OpFromFSNotify(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	default:
		return "", false
	}
}

// ChangeEvent reports that a source file of one category changed. A file owned by
// several categories produces one event per category.
type ChangeEvent struct {
	Category assets.Category
	// Path is project-relative in slash form.
	Path string
	Op   Op
	At   time.Time
}

// Removed reports whether the file no longer exists at Path.
func (e ChangeEvent) Removed() bool { return e.Op == OpRemove || e.Op == OpRename }
