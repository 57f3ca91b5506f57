package pipeline

import (
	"context"
	"fmt"
)

// StepFunc transforms a batch of assets.
type StepFunc func(ctx context.Context, in []*Asset) ([]*Asset, error)

// Step is a named chain element. Bridged marks a no-op standing in for a skipped optimization.
type Step struct {
	Name    string
	Fn      StepFunc
	Bridged bool
}

// Noop returns the identity step.
func Noop(name string) Step {
	return Step{
		Name:    name,
		Fn:      func(_ context.Context, in []*Asset) ([]*Asset, error) { return in, nil },
		Bridged: true,
	}
}

// When returns step if cond holds and a bridge with the same name otherwise.
func When(cond bool, step Step) Step {
	if cond {
		return step
	}
	return Noop(step.Name)
}

// Map lifts a per-asset transform into a step.
func Map(name string, fn func(ctx context.Context, a *Asset) (*Asset, error)) Step {
	return Step{Name: name, Fn: func(ctx context.Context, in []*Asset) ([]*Asset, error) {
		out := make([]*Asset, 0, len(in))
		for _, a := range in {
			b, err := fn(ctx, a)
			if err != nil {
				return nil, err
			}
			if b != nil {
				out = append(out, b)
			}
		}
		return out, nil
	}}
}

// Filter keeps the assets for which keep returns true.
func Filter(name string, keep func(a *Asset) bool) Step {
	return Map(name, func(_ context.Context, a *Asset) (*Asset, error) {
		if keep(a) {
			return a, nil
		}
		return nil, nil
	})
}

// Chain is an ordered, fixed sequence of steps for one stage.
type Chain []Step

// Names returns the step names in order.
func (c Chain) Names() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Name
	}
	return out
}

// Bridged returns the names of steps currently replaced by the identity bridge.
func (c Chain) Bridged() []string {
	var out []string
	for _, s := range c {
		if s.Bridged {
			out = append(out, s.Name)
		}
	}
	return out
}

// Outcome is the result of one chain run.
type Outcome struct {
	Assets []*Asset
	// Written lists the absolute paths produced by write steps, in write order.
	Written []string
}

// Run feeds in through every step. The first failing step aborts the run and its
// error is returned as a *StageError naming stage and step.
func (c Chain) Run(ctx context.Context, stage string, in []*Asset) (*Outcome, error) {
	tr := &trace{}
	ctx = context.WithValue(ctx, traceKey{}, tr)
	cur := in
	for _, s := range c {
		next, err := s.Fn(ctx, cur)
		if err != nil {
			return &Outcome{Assets: cur, Written: tr.paths()}, &StageError{Stage: stage, Step: s.Name, Err: err}
		}
		cur = next
	}
	return &Outcome{Assets: cur, Written: tr.paths()}, nil
}

// Builder assembles a Chain fluently.
type Builder struct{ steps []Step }

func NewBuilder() *Builder { return &Builder{steps: make([]Step, 0, 8)} }

// Add appends a step unconditionally.
func (b *Builder) Add(step Step) *Builder {
	b.steps = append(b.steps, step)
	return b
}

// AddIf appends step when cond holds and the identity bridge otherwise.
func (b *Builder) AddIf(cond bool, step Step) *Builder {
	return b.Add(When(cond, step))
}

// Build returns a copy of the assembled chain.
func (b *Builder) Build() Chain {
	out := make(Chain, len(b.steps))
	copy(out, b.steps)
	return out
}

// StageError records which stage and step rejected the input.
type StageError struct {
	Stage string
	Step  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s step %s: %v", e.Stage, e.Step, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
