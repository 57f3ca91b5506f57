package watch

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/events"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/stages"
)

// Coordinator routes change events to the stages of their category. Events are
// handled one at a time, in arrival order, without batching.
type Coordinator struct {
	set *stages.Set
}

// NewCoordinator returns a coordinator dispatching to set.
func NewCoordinator(set *stages.Set) *Coordinator {
	return &Coordinator{set: set}
}

// Run dispatches events until ctx is done or the channel closes. Stage failures
// are logged and never end the loop.
func (c *Coordinator) Run(ctx context.Context, in <-chan events.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			c.Dispatch(ctx, ev)
		}
	}
}

// Dispatch runs every stage owning ev.Category once, in order. Per-file stages
// process only ev.Path and are skipped when it was removed; aggregate stages
// reload their full source set.
func (c *Coordinator) Dispatch(ctx context.Context, ev events.ChangeEvent) {
	log := logfields.Logger(ctx).With(logfields.Category(string(ev.Category)), logfields.Path(ev.Path))
	for _, st := range c.set.For(ev.Category) {
		if ctx.Err() != nil {
			return
		}
		if ev.Removed() && st.Scope == stages.PerFile {
			log.Debug("Source removed; nothing to rebuild", logfields.Stage(st.Name))
			continue
		}
		log.Debug("Dispatching change", logfields.Stage(st.Name), logfields.Op(string(ev.Op)))
		if _, err := st.Run(ctx, ev.Path); err != nil && ctx.Err() == nil {
			log.Warn("Rebuild after change failed", logfields.Stage(st.Name), logfields.Error(err))
		}
	}
}
