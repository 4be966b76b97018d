package fiber

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsFiberToExit(t *testing.T) {
	s := NewScheduler(2, 0)
	defer s.Stop()

	done := make(chan struct{})
	f, err := s.Add(func(ctx *Context) {
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fiber never ran")
	}

	assert.Eventually(t, func() bool { return f.State() == StateExited }, time.Second, time.Millisecond)
}

func TestSchedulerYieldRequeuesFiber(t *testing.T) {
	s := NewScheduler(1, 0)
	defer s.Stop()

	var rounds int
	var mu sync.Mutex
	done := make(chan struct{})
	_, err := s.Add(func(ctx *Context) {
		for i := 0; i < 3; i++ {
			mu.Lock()
			rounds++
			mu.Unlock()
			ctx.Yield()
		}
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fiber never completed its rounds")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, rounds)
}

func TestSchedulerSleepAndWakeup(t *testing.T) {
	s := NewScheduler(1, 0)
	defer s.Stop()

	woke := make(chan struct{})
	var id ID
	ready := make(chan struct{})
	f, err := s.Add(func(ctx *Context) {
		id = ctx.ID()
		close(ready)
		ctx.Sleep()
		close(woke)
	})
	require.NoError(t, err)
	<-ready

	assert.Eventually(t, func() bool { return f.State() == StateSleeping }, time.Second, time.Millisecond)

	assert.True(t, s.Wakeup(id))

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("fiber never woke up")
	}
}

func TestSchedulerWakeupUnknownIDReturnsFalse(t *testing.T) {
	s := NewScheduler(1, 0)
	defer s.Stop()

	assert.False(t, s.Wakeup(ID(999)))
}

func TestSchedulerAddRespectsMaxFibers(t *testing.T) {
	s := NewScheduler(1, 1)
	defer s.Stop()

	block := make(chan struct{})
	_, err := s.Add(func(ctx *Context) { <-block })
	require.NoError(t, err)

	_, err = s.Add(func(ctx *Context) {})
	assert.ErrorIs(t, err, ErrResourceExhausted)

	close(block)
}

func TestSchedulerStopRejectsNewFibers(t *testing.T) {
	s := NewScheduler(1, 0)
	s.Stop()

	_, err := s.Add(func(ctx *Context) {})
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestSchedulerInterruptObservedAtYield(t *testing.T) {
	s := NewScheduler(1, 0)
	defer s.Stop()

	stopped := make(chan struct{})
	ready := make(chan struct{})
	f, err := s.Add(func(ctx *Context) {
		close(ready)
		for !ctx.Interrupted() {
			ctx.Yield()
		}
		close(stopped)
	})
	require.NoError(t, err)
	<-ready

	f.Interrupt()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("fiber never observed interrupt")
	}
}

func TestFiberIDNotReusedUntilRemoved(t *testing.T) {
	s := NewScheduler(1, 0)
	defer s.Stop()

	done1 := make(chan struct{})
	f1, err := s.Add(func(ctx *Context) { close(done1) })
	require.NoError(t, err)
	<-done1
	assert.Eventually(t, func() bool { return f1.State() == StateExited }, time.Second, time.Millisecond)

	done2 := make(chan struct{})
	f2, err := s.Add(func(ctx *Context) { close(done2) })
	require.NoError(t, err)
	<-done2

	assert.NotEqual(t, f1.ID(), f2.ID())
}
