package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

type traceKey struct{}

type trace struct {
	mu      sync.Mutex
	written []string
}

func (t *trace) add(p string) {
	t.mu.Lock()
	t.written = append(t.written, p)
	t.mu.Unlock()
}

func (t *trace) paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.written...)
}

func traceFrom(ctx context.Context) *trace {
	if tr, ok := ctx.Value(traceKey{}).(*trace); ok {
		return tr
	}
	return &trace{}
}

// Write stores every asset beneath dir (absolute) and passes the batch on unchanged.
func Write(name, dir string) Step {
	return WriteIf(name, dir, nil)
}

// WriteIf is Write restricted to the assets keep accepts; a nil keep accepts all.
// The whole batch is passed on either way.
func WriteIf(name, dir string, keep func(a *Asset) bool) Step {
	return Step{Name: name, Fn: func(ctx context.Context, in []*Asset) ([]*Asset, error) {
		tr := traceFrom(ctx)
		for _, a := range in {
			if keep != nil && !keep(a) {
				continue
			}
			dst := filepath.Join(dir, filepath.FromSlash(a.Path))
			if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
				return nil, ferrors.FileSystemError("failed to create destination directory").
					WithCause(err).WithPath(filepath.Dir(dst)).Build()
			}
			// #nosec G306 -- build output is meant to be world-readable
			if err := os.WriteFile(dst, a.Contents, 0o644); err != nil {
				return nil, ferrors.FileSystemError("failed to write output").
					WithCause(err).WithPath(dst).Build()
			}
			tr.add(dst)
		}
		return in, nil
	}}
}

// Rename inserts suffix before each asset's extension.
func Rename(name, suffix string) Step {
	return Map(name, func(_ context.Context, a *Asset) (*Asset, error) {
		c := a.Clone()
		c.Path = WithSuffix(a.Path, suffix)
		return c, nil
	})
}

// Notifier receives the destination paths (relative to the served root) a stage wrote.
type Notifier interface {
	Stream(paths []string)
}

// Stream reports everything written so far in this run to n. A nil notifier makes
// it the identity step.
func Stream(name string, n Notifier, servedRoot string) Step {
	return Step{Name: name, Fn: func(ctx context.Context, in []*Asset) ([]*Asset, error) {
		if n == nil {
			return in, nil
		}
		written := traceFrom(ctx).paths()
		if len(written) == 0 {
			return in, nil
		}
		rel := make([]string, 0, len(written))
		for _, p := range written {
			r, err := filepath.Rel(servedRoot, p)
			if err != nil {
				continue
			}
			rel = append(rel, filepath.ToSlash(r))
		}
		n.Stream(rel)
		return in, nil
	}}
}
