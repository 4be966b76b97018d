package modest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRunsAnUnguardedOperation(t *testing.T) {
	e := NewEngine(Config{PoolSize: 2})
	defer e.Stop()

	var ran atomic.Bool
	op := NewOperation(RunnableFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}))

	require.NoError(t, e.Queue(op))
	require.NoError(t, op.Join(context.Background()))
	assert.True(t, ran.Load())
	assert.NoError(t, op.Err())
}

func TestEngineGuardBlocksUntilStateAllows(t *testing.T) {
	e := NewEngine(Config{PoolSize: 2})
	defer e.Stop()

	var ran atomic.Bool
	op := NewOperation(
		RunnableFunc(func(ctx context.Context) error {
			ran.Store(true)
			return nil
		}),
		WithGuard(GuardFunc{
			CanExecuteFunc: func(s *State, op *Operation) bool {
				v, ok := s.GetBoolNoLock("open")
				return ok && v
			},
		}),
	)

	require.NoError(t, e.Queue(op))

	// Give the dispatcher a moment to evaluate the guard; it must not
	// have admitted the operation yet.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.False(t, op.IsStarted())

	e.State().SetBool("open", true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, op.Join(ctx))
	assert.True(t, ran.Load())
}

func TestEngineGuardCancelSurfacesAtJoin(t *testing.T) {
	e := NewEngine(Config{PoolSize: 1})
	defer e.Stop()

	op := NewOperation(
		RunnableFunc(func(ctx context.Context) error { return nil }),
		WithGuard(GuardFunc{
			CanExecuteFunc: func(s *State, op *Operation) bool { return false },
			MustCancelFunc: func(s *State, op *Operation) bool { return true },
		}),
	)

	require.NoError(t, e.Queue(op))
	err := op.Join(context.Background())
	assert.ErrorIs(t, err, ErrGuardCancel)
	assert.False(t, op.IsStarted())
}

func TestEngineStopFlushesQueuedOperations(t *testing.T) {
	e := NewEngine(Config{PoolSize: 1})

	blocker := make(chan struct{})
	busy := NewOperation(RunnableFunc(func(ctx context.Context) error {
		<-blocker
		return nil
	}))
	require.NoError(t, e.Queue(busy))

	queued := NewOperation(RunnableFunc(func(ctx context.Context) error { return nil }))
	require.NoError(t, e.Queue(queued))

	e.Stop()
	close(blocker)

	err := queued.Join(context.Background())
	assert.ErrorIs(t, err, ErrEngineStopped)
	assert.True(t, queued.IsStopped())
}

func TestEngineCurrentReturnsRunningOperation(t *testing.T) {
	e := NewEngine(Config{PoolSize: 1})
	defer e.Stop()

	var seenSelf atomic.Bool
	var op *Operation
	op = NewOperation(RunnableFunc(func(ctx context.Context) error {
		if e.Current(ctx) == op {
			seenSelf.Store(true)
		}
		return nil
	}))
	require.NoError(t, e.Queue(op))
	require.NoError(t, op.Join(context.Background()))
	assert.True(t, seenSelf.Load())
}

func TestOperationInterruptCancelsContext(t *testing.T) {
	e := NewEngine(Config{PoolSize: 1})
	defer e.Stop()

	started := make(chan struct{})
	op := NewOperation(RunnableFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	require.NoError(t, e.Queue(op))
	<-started
	op.Interrupt()

	require.ErrorIs(t, op.Join(context.Background()), context.Canceled)
	assert.Error(t, op.Err())
}
