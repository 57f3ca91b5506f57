package server

import (
	"context"
	"path"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/events"
)

// Reloader turns build activity into browser notifications. Source changes
// schedule a page reload after a settle delay; a burst of changes produces one
// reload. Stylesheet writes reported through Stream are pushed at once so the
// client can swap them without reloading.
type Reloader struct {
	hub   Broadcaster
	delay time.Duration
	kick  chan struct{}
}

// NewReloader returns a reloader with the given settle delay.
func NewReloader(hub Broadcaster, delay time.Duration) *Reloader {
	return &Reloader{hub: hub, delay: delay, kick: make(chan struct{}, 1)}
}

// Stream receives the destination paths a stage has just written.
func (r *Reloader) Stream(paths []string) {
	if len(paths) == 0 {
		return
	}
	if onlyStylesheets(paths) {
		r.hub.Broadcast(ReloadEvent{Kind: ReloadCSS, Paths: paths})
		return
	}
	r.Schedule()
}

// Schedule requests a debounced page reload.
func (r *Reloader) Schedule() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run debounces change events and scheduled reloads until ctx is done.
func (r *Reloader) Run(ctx context.Context, changes <-chan events.ChangeEvent) error {
	timer := time.NewTimer(r.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			timer.Reset(r.delay)
		case <-r.kick:
			timer.Reset(r.delay)
		case <-timer.C:
			r.hub.Broadcast(ReloadEvent{Kind: ReloadPage})
		}
	}
}

func onlyStylesheets(paths []string) bool {
	for _, p := range paths {
		if path.Ext(p) != ".css" {
			return false
		}
	}
	return true
}
