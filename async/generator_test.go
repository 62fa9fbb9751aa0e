package async

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records continuations the way a manager would queue them.
type fakeScheduler struct {
	continuations []uint64
	priorities    []uint64
}

func (s *fakeScheduler) ScheduleContinuation(generatorID, priority uint64) {
	s.continuations = append(s.continuations, generatorID)
	s.priorities = append(s.priorities, priority)
}

func TestGeneratorYieldsInOrder(t *testing.T) {
	g := New[int](func(y *Yielder[int]) error {
		y.Yield(1)
		y.Yield(2)
		y.Yield(3)
		return nil
	})

	assert.Equal(t, StateValueReadyProducerSuspended, g.State())

	var got []int
	for g.Advance() == StatusYielded {
		got = append(got, g.Value())
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, g.Finished())
	assert.False(t, g.Cancelled())
	assert.NoError(t, g.Err())
}

func TestGeneratorBodyIsLazy(t *testing.T) {
	ran := false
	g := New[int](func(*Yielder[int]) error {
		ran = true
		return nil
	})
	assert.False(t, ran)
	require.Equal(t, StatusFinished, g.Advance())
	assert.True(t, ran)
}

func TestGeneratorStateDuringYield(t *testing.T) {
	g := New[int](func(y *Yielder[int]) error {
		y.Yield(1)
		return nil
	})

	require.Equal(t, StatusYielded, g.Advance())
	assert.Equal(t, StateValueReadyConsumerRunning, g.State())
	require.Equal(t, StatusFinished, g.Advance())
}

func TestGeneratorError(t *testing.T) {
	boom := errors.New("boom")
	g := NewTask(func(*Yielder[Empty]) error {
		return boom
	})

	require.Equal(t, StatusFinished, g.Advance())
	assert.ErrorIs(t, g.Err(), boom)
}

func TestGeneratorPanicBecomesFault(t *testing.T) {
	g := NewTask(func(*Yielder[Empty]) error {
		panic("kaboom")
	})

	require.Equal(t, StatusFinished, g.Advance())
	require.Error(t, g.Err())
	assert.Contains(t, g.Err().Error(), "kaboom")
}

func TestAwaitUnsetAutoResetSuspends(t *testing.T) {
	sched := &fakeScheduler{}
	ev := NewAutoResetEvent(false)

	resumed := false
	g := NewTask(func(y *Yielder[Empty]) error {
		y.Await(ev)
		resumed = true
		return nil
	})
	g.Bind(sched, 7, 100)

	require.Equal(t, StatusSuspended, g.Advance())
	assert.Equal(t, StateValueNotReadyConsumerSuspended, g.State())
	assert.False(t, resumed)
	assert.Empty(t, sched.continuations)

	// Setting the event schedules the continuation at the awaiter's
	// priority; the loop then advances the generator.
	ev.Set()
	require.Equal(t, []uint64{g.ID()}, sched.continuations)
	require.Equal(t, []uint64{100}, sched.priorities)
	assert.False(t, ev.IsSet(), "waiter consumed the set")

	require.Equal(t, StatusFinished, g.Advance())
	assert.True(t, resumed)
}

func TestAwaitSetAutoResetDoesNotSuspend(t *testing.T) {
	ev := NewAutoResetEvent(true)
	g := NewTask(func(y *Yielder[Empty]) error {
		y.Await(ev)
		return nil
	})
	g.Bind(&fakeScheduler{}, 1, 1)

	require.Equal(t, StatusFinished, g.Advance())
	assert.False(t, ev.IsSet(), "await consumed the latch")
}

func TestManualResetReleasesAllWaiters(t *testing.T) {
	sched := &fakeScheduler{}
	ev := NewManualResetEvent(false)

	gens := make([]*Task, 3)
	for i := range gens {
		g := NewTask(func(y *Yielder[Empty]) error {
			y.Await(ev)
			return nil
		})
		g.Bind(sched, uint64(i+1), 10)
		require.Equal(t, StatusSuspended, g.Advance())
		gens[i] = g
	}

	ev.Set()
	assert.Len(t, sched.continuations, 3)
	assert.True(t, ev.IsSet(), "manual reset stays set")

	for _, g := range gens {
		require.Equal(t, StatusFinished, g.Advance())
	}

	// Once set, further awaits complete without suspending.
	g := NewTask(func(y *Yielder[Empty]) error {
		y.Await(ev)
		return nil
	})
	g.Bind(sched, 9, 10)
	require.Equal(t, StatusFinished, g.Advance())

	ev.Reset()
	assert.False(t, ev.IsSet())
}

func TestAwaitAnotherGenerator(t *testing.T) {
	sched := &fakeScheduler{}

	inner := New[int](func(y *Yielder[int]) error {
		y.Yield(10)
		return nil
	})
	inner.Bind(sched, 1, 5)

	outerDone := false
	outer := NewTask(func(y *Yielder[Empty]) error {
		y.Await(inner)
		outerDone = true
		return nil
	})
	outer.Bind(sched, 2, 5)

	require.Equal(t, StatusSuspended, outer.Advance())

	// Drive the inner generator to completion; its finish releases the
	// outer's continuation.
	require.Equal(t, StatusYielded, inner.Advance())
	require.Equal(t, StatusFinished, inner.Advance())
	require.Equal(t, []uint64{outer.ID()}, sched.continuations)

	require.Equal(t, StatusFinished, outer.Advance())
	assert.True(t, outerDone)
}

func TestRequestCancellationBeforeFirstAdvance(t *testing.T) {
	ran := false
	g := NewTask(func(*Yielder[Empty]) error {
		ran = true
		return nil
	})

	g.RequestCancellation()
	assert.True(t, g.Cancelled())
	assert.False(t, g.Finished())
	assert.False(t, ran)
	assert.Equal(t, StatusFinished, g.Advance())
}

func TestRequestCancellationAtYieldUnwinds(t *testing.T) {
	cleanedUp := false
	afterYield := false
	g := New[int](func(y *Yielder[int]) error {
		defer func() { cleanedUp = true }()
		y.Yield(1)
		afterYield = true
		return nil
	})

	require.Equal(t, StatusYielded, g.Advance())
	g.RequestCancellation()

	assert.True(t, g.Cancelled())
	assert.False(t, g.Finished())
	assert.True(t, cleanedUp, "producer deferred cleanup ran")
	assert.False(t, afterYield, "producer did not continue past the yield")
}

func TestRequestCancellationTwicePanics(t *testing.T) {
	g := NewTask(func(*Yielder[Empty]) error { return nil })
	g.RequestCancellation()
	assert.Panics(t, func() { g.RequestCancellation() })
}

func TestRequestCancellationWhileConsumerSuspendedPanics(t *testing.T) {
	ev := NewAutoResetEvent(false)
	g := NewTask(func(y *Yielder[Empty]) error {
		y.Await(ev)
		return nil
	})
	g.Bind(&fakeScheduler{}, 1, 1)
	require.Equal(t, StatusSuspended, g.Advance())

	assert.Panics(t, func() { g.RequestCancellation() })
}

func TestCancelAtNextSuspensionUnwindsOnResume(t *testing.T) {
	ev := NewAutoResetEvent(false)
	sched := &fakeScheduler{}

	afterAwait := false
	cleanedUp := false
	g := NewTask(func(y *Yielder[Empty]) error {
		defer func() { cleanedUp = true }()
		y.Await(ev)
		afterAwait = true
		return nil
	})
	g.Bind(sched, 1, 1)
	require.Equal(t, StatusSuspended, g.Advance())

	g.CancelAtNextSuspension()
	ev.Set()
	require.Equal(t, StatusFinished, g.Advance())

	assert.True(t, g.Cancelled())
	assert.False(t, g.Finished())
	assert.False(t, afterAwait, "producer unwound instead of continuing")
	assert.True(t, cleanedUp)
}

func TestExactlyOneOfFinishedOrCancelled(t *testing.T) {
	finished := NewTask(func(*Yielder[Empty]) error { return nil })
	require.Equal(t, StatusFinished, finished.Advance())
	assert.True(t, finished.Finished())
	assert.False(t, finished.Cancelled())

	cancelled := NewTask(func(y *Yielder[Empty]) error {
		y.Yield(Empty{})
		return nil
	})
	require.Equal(t, StatusYielded, cancelled.Advance())
	cancelled.RequestCancellation()
	assert.False(t, cancelled.Finished())
	assert.True(t, cancelled.Cancelled())
}

func TestAwaitOnUnboundGeneratorFaults(t *testing.T) {
	ev := NewAutoResetEvent(false)
	g := NewTask(func(y *Yielder[Empty]) error {
		y.Await(ev)
		return nil
	})

	require.Equal(t, StatusFinished, g.Advance())
	require.Error(t, g.Err())
	assert.Contains(t, g.Err().Error(), "unbound")
}
