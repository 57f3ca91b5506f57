// Package watch turns filesystem changes into per-category change events and
// dispatches each event to the stages that own it.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetpipe/internal/assets"
	"git.home.luguber.info/inful/assetpipe/internal/events"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// FSSource watches the source directories of every category and publishes one
// events.ChangeEvent per owning category for each relevant file change.
type FSSource struct {
	table    *assets.Table
	bus      *events.Bus
	recorder metrics.Recorder
	watcher  *fsnotify.Watcher
}

// NewFSSource starts watching the table's watch roots. A root that does not exist
// yet is covered by watching its nearest existing ancestor inside the project.
func NewFSSource(table *assets.Table, bus *events.Bus, recorder metrics.Recorder) (*FSSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create filesystem watcher").Build()
	}
	s := &FSSource{table: table, bus: bus, recorder: metrics.OrNoop(recorder), watcher: w}
	for _, root := range table.WatchRoots() {
		dir := s.nearestExisting(table.Abs(root))
		if err := s.addRecursive(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return s, nil
}

// Run forwards filesystem events until ctx is done, then closes the watcher.
func (s *FSSource) Run(ctx context.Context) error {
	defer func() { _ = s.watcher.Close() }()
	log := logfields.Logger(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if err := s.handle(ctx, ev); err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return nil
				}
				log.Warn("Failed to publish change", logfields.Path(ev.Name), logfields.Error(err))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// WatchList returns the directories currently watched.
func (s *FSSource) WatchList() []string { return s.watcher.WatchList() }

func (s *FSSource) handle(ctx context.Context, ev fsnotify.Event) error {
	if Ignored(ev.Name) {
		return nil
	}
	op, ok := events.OpFromFSNotify(ev.Op)
	if !ok {
		return nil
	}
	if op == events.OpCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return s.adoptDir(ctx, ev.Name)
		}
	}
	return s.publish(ctx, ev.Name, op)
}

// adoptDir starts watching a new directory and reports files that appeared in it
// before the watch was in place.
func (s *FSSource) adoptDir(ctx context.Context, dir string) error {
	if err := s.addRecursive(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // best effort
		}
		return s.publish(ctx, p, events.OpCreate)
	})
}

func (s *FSSource) publish(ctx context.Context, abs string, op events.Op) error {
	rel, ok := s.table.Rel(abs)
	if !ok || s.inDest(rel) {
		return nil
	}
	at := time.Now()
	for _, c := range s.table.Match(rel) {
		s.recorder.IncChangeEvent(string(c))
		logfields.Logger(ctx).Debug("Source changed", logfields.Category(string(c)), logfields.Path(rel), logfields.Op(string(op)))
		if err := s.bus.Publish(ctx, events.ChangeEvent{Category: c, Path: rel, Op: op, At: at}); err != nil {
			return err
		}
	}
	return nil
}

func (s *FSSource) inDest(rel string) bool {
	dest := s.table.DestBase()
	return rel == dest || strings.HasPrefix(rel, dest+"/")
}

func (s *FSSource) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // vanished while walking
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && Ignored(p) {
			return filepath.SkipDir
		}
		if rel, ok := s.table.Rel(p); ok && s.inDest(rel) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(p); err != nil {
			slog.Warn("Failed to watch directory", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

func (s *FSSource) nearestExisting(dir string) string {
	root := filepath.Clean(s.table.Root())
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if dir == root || parent == dir {
			return root
		}
		dir = parent
	}
}

// Ignored reports whether a path is a hidden, editor temp or OS metadata file.
func Ignored(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913": // vim write probe
		return true
	}
	return false
}
