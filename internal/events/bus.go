// Package events is a typed in-process event bus. The filesystem source publishes
// change events on it; the watch coordinator and the reload debouncer consume them
// through independent subscriptions.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Bus delivers published values to every subscription of a matching type.
// Publish blocks until each subscriber has accepted the value or ctx is done.
// Nothing is persisted.
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type]map[uint64]*subscription
	nextID atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

type subscription struct {
	deliver func(ctx context.Context, v any) error
	stop    func()
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]map[uint64]*subscription)}
}

// Subscribe returns a channel receiving every published value assignable to T and a
// function that cancels the subscription. An interface T matches every implementing
// type; a concrete T matches only itself. The channel is closed on unsubscribe or
// when the bus closes.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	topic := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	var closeOnce sync.Once
	closeCh := func() { closeOnce.Do(func() { close(ch) }) }

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*subscription)
	}
	b.topics[topic][id] = &subscription{
		deliver: func(ctx context.Context, v any) error {
			select {
			case ch <- v.(T):
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event delivery canceled").
					WithContext("event_type", topic.String()).
					Build()
			}
		},
		stop: closeCh,
	}

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if subs, ok := b.topics[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
			b.mu.Unlock()
			closeCh()
		})
	}
}

// Publish delivers v to every matching subscription in turn.
func (b *Bus) Publish(ctx context.Context, v any) error {
	if v == nil {
		return ferrors.ValidationError("cannot publish a nil event").Build()
	}
	if b.closed.Load() {
		return ferrors.RuntimeError("event bus is closed").Build()
	}

	vt := reflect.TypeOf(v)
	var targets []*subscription
	b.mu.RLock()
	for topic, subs := range b.topics {
		if topic != vt && (topic.Kind() != reflect.Interface || !vt.Implements(topic)) {
			continue
		}
		for _, s := range subs {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// Close rejects further publishes and closes every subscription channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)
		b.mu.Lock()
		topics := b.topics
		b.topics = make(map[reflect.Type]map[uint64]*subscription)
		b.mu.Unlock()

		for _, subs := range topics {
			for _, s := range subs {
				s.stop()
			}
		}
	})
}
