package build

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one node of the build plan.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Kind distinguishes composite tasks.
type Kind string

const (
	KindSeries   Kind = "series"
	KindSequence Kind = "sequence"
	KindParallel Kind = "parallel"
)

// Group is a composite task running its children in series or in parallel.
type Group struct {
	name     string
	kind     Kind
	children []Task
}

// Series runs children in order and stops at the first failure or cancellation.
func Series(name string, children ...Task) *Group {
	return &Group{name: name, kind: KindSeries, children: children}
}

// Sequence runs children in order like Series, but a failed child does not stop
// the ones after it. Errors are joined; cancellation still stops the run.
func Sequence(name string, children ...Task) *Group {
	return &Group{name: name, kind: KindSequence, children: children}
}

// Parallel runs children concurrently. Every child runs to completion; their
// errors are joined.
func Parallel(name string, children ...Task) *Group {
	return &Group{name: name, kind: KindParallel, children: children}
}

func (g *Group) Name() string { return g.name }

func (g *Group) Kind() Kind { return g.kind }

// Children returns the direct children in declaration order.
func (g *Group) Children() []Task {
	out := make([]Task, len(g.children))
	copy(out, g.children)
	return out
}

func (g *Group) Run(ctx context.Context) error {
	if g.kind == KindSeries {
		for _, c := range g.children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	if g.kind == KindSequence {
		var errs []error
		for _, c := range g.children {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if err := c.Run(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	var (
		eg   errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, c := range g.children {
		eg.Go(func() error {
			if err := c.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

// Func wraps fn as a leaf task.
func Func(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

func (f *funcTask) Name() string                  { return f.name }
func (f *funcTask) Run(ctx context.Context) error { return f.fn(ctx) }
