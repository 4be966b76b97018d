package modest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// defaultThreadExpire is how long a pooled worker waits idle before
// it terminates and gives its slot back to the pool, matching the
// runtime's 2-minute default.
const defaultThreadExpire = 2 * time.Minute

// pooledWorker is a goroutine in the ThreadPool's free list: it holds
// one semaphore permit for its entire lifetime (spawn to expire), an
// idle-expire timer, and a pointer to the Operation it is currently
// running, if any — the Go rendering of the runtime's "pooled thread".
type pooledWorker struct {
	pool    *ThreadPool
	jobs    chan *Operation
	current atomic.Pointer[Operation]
}

func (w *pooledWorker) loop() {
	timer := time.NewTimer(w.pool.expire)
	defer timer.Stop()
	for {
		select {
		case op := <-w.jobs:
			w.current.Store(op)
			w.pool.runOperation(op)
			w.current.Store(nil)
			w.pool.onComplete(op)
			if !w.pool.park(w) {
				w.pool.release()
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.pool.expire)
		case <-timer.C:
			if w.pool.removeIdle(w) {
				w.pool.release()
				return
			}
			// Lost the race with an assignment; keep looping.
			timer.Reset(w.pool.expire)
		case <-w.pool.stopCh:
			if w.pool.removeIdle(w) {
				w.pool.release()
			}
			return
		}
	}
}

// ThreadPool is a fixed-or-growing pool of worker goroutines gated by
// a bounded semaphore, matching the runtime's thread pool: runJob may
// block waiting for a worker, tryRunJob never blocks.
type ThreadPool struct {
	capacity   int64
	expire     time.Duration
	sem        *semaphore.Weighted
	onComplete func(*Operation)
	tracer     trace.Tracer // nil is a valid, zero-cost no-op

	mu       sync.Mutex
	idle     []*pooledWorker
	stopped  bool
	liveSize int64
	stopCh   chan struct{}
}

// NewThreadPool creates a pool with the given capacity (maximum
// concurrently live workers; 0 means unbounded) and idle-expire
// duration (0 selects the default). onComplete is invoked from the
// worker's own goroutine after the Operation finishes running — never
// from the Operation itself.
func NewThreadPool(capacity int, expire time.Duration, onComplete func(*Operation)) *ThreadPool {
	if expire <= 0 {
		expire = defaultThreadExpire
	}
	cap64 := int64(capacity)
	if cap64 <= 0 {
		cap64 = int64(^uint64(0) >> 1) // effectively unbounded
	}
	return &ThreadPool{
		capacity:   cap64,
		expire:     expire,
		sem:        semaphore.NewWeighted(cap64),
		onComplete: onComplete,
		stopCh:     make(chan struct{}),
	}
}

// SetTracer attaches a Tracer that runOperation will wrap every
// Operation run in a span. Safe to call before the pool has any
// workers; never safe to call concurrently with itself.
func (p *ThreadPool) SetTracer(t trace.Tracer) { p.tracer = t }

// TryRunJob attempts to hand op to a worker without blocking. It
// returns false if the pool is saturated and no worker is idle.
func (p *ThreadPool) TryRunJob(op *Operation) bool {
	w := p.popIdle()
	if w == nil {
		if !p.sem.TryAcquire(1) {
			return false
		}
		w = p.spawn()
	}
	w.jobs <- op
	return true
}

// RunJob hands op to a worker, blocking the caller until one becomes
// available or ctx is done.
func (p *ThreadPool) RunJob(ctx context.Context, op *Operation) error {
	w := p.popIdle()
	if w == nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return ErrInterrupted
		}
		w = p.spawn()
	}
	w.jobs <- op
	return nil
}

// ActiveCount returns the number of workers currently live (running
// or idle, not yet expired).
func (p *ThreadPool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.liveSize)
}

// Stop prevents idle workers from being reused; idle workers exit
// immediately, already-running workers finish their current Operation
// and then exit rather than parking. Safe to call more than once.
func (p *ThreadPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()
	close(p.stopCh)
}

func (p *ThreadPool) spawn() *pooledWorker {
	p.mu.Lock()
	p.liveSize++
	p.mu.Unlock()
	w := &pooledWorker{pool: p, jobs: make(chan *Operation, 1)}
	go w.loop()
	return w
}

func (p *ThreadPool) popIdle() *pooledWorker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || len(p.idle) == 0 {
		return nil
	}
	n := len(p.idle) - 1
	w := p.idle[n]
	p.idle = p.idle[:n]
	return w
}

// park returns a worker to the free list. It reports false if the
// pool has been stopped, in which case the worker must exit.
func (p *ThreadPool) park(w *pooledWorker) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.idle = append(p.idle, w)
	return true
}

// removeIdle removes w from the free list if still present (it may
// already have been popped for a new job), reporting whether it was
// removed.
func (p *ThreadPool) removeIdle(w *pooledWorker) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.idle {
		if c == w {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return true
		}
	}
	return false
}

func (p *ThreadPool) release() {
	p.mu.Lock()
	p.liveSize--
	p.mu.Unlock()
	p.sem.Release(1)
}

// runOperation executes op's Runnable, wiring up the context that
// Interrupt cancels and recovering from a panicking Runnable as a
// RunnableFailure so the completion hook and Post mutator still run.
func (p *ThreadPool) runOperation(op *Operation) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = withOperation(ctx, op)
	op.markStarted(ctx, cancel)
	defer cancel()

	if op.runnable == nil {
		return
	}

	var span trace.Span
	if p.tracer != nil {
		name := op.name
		if name == "" {
			name = "operation"
		}
		ctx, span = p.tracer.Start(ctx, name)
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		return op.runnable.Run(ctx)
	}()
	op.setRunErr(err)

	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// PanicError wraps a recovered panic value from a Runnable so it
// surfaces through Operation.Err() / Join rather than crashing the
// worker goroutine.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "modest: runnable panicked"
}
