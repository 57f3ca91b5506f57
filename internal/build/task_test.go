package build

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) task(name string, err error) Task {
	return Func(name, func(context.Context) error {
		r.mu.Lock()
		r.log = append(r.log, name)
		r.mu.Unlock()
		return err
	})
}

func TestSeriesRunsInOrderAndStopsAtFirstFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	err := Series("s", rec.task("a", nil), rec.task("b", boom), rec.task("c", nil)).Run(t.Context())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, rec.log)
}

func TestSeriesChecksCancellationBetweenChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	rec := &recorder{}
	stop := Func("stop", func(context.Context) error { cancel(); return nil })

	err := Series("s", rec.task("a", nil), stop, rec.task("c", nil)).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, rec.log)
}

func TestSequenceRunsEveryChildInOrderAndJoinsErrors(t *testing.T) {
	rec := &recorder{}
	errA, errB := errors.New("a failed"), errors.New("b failed")
	err := Sequence("q", rec.task("a", errA), rec.task("b", errB), rec.task("c", nil)).Run(t.Context())

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"a", "b", "c"}, rec.log)
}

func TestSequenceStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	rec := &recorder{}
	boom := errors.New("boom")
	stop := Func("stop", func(context.Context) error { cancel(); return boom })

	err := Sequence("q", rec.task("a", nil), stop, rec.task("c", nil)).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, rec.log)
}

func TestParallelRunsEveryChildAndJoinsErrors(t *testing.T) {
	rec := &recorder{}
	errA, errC := errors.New("a failed"), errors.New("c failed")
	err := Parallel("p", rec.task("a", errA), rec.task("b", nil), rec.task("c", errC)).Run(t.Context())

	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, rec.log)
}

func TestParallelChildrenOverlap(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	child := func(name string) Task {
		return Func(name, func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- Parallel("p", child("a"), child("b")).Run(t.Context()) }()

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), peak.Load())
}

func TestGroupChildrenIsACopy(t *testing.T) {
	g := Series("s", Func("a", nil))
	kids := g.Children()
	kids[0] = Func("x", nil)
	assert.Equal(t, "a", g.Children()[0].Name())
	assert.Equal(t, KindSeries, g.Kind())
}
