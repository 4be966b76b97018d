// Package modest implements the Engine/Operation Dispatcher, the
// State admission-control store, and the pooled-thread worker pool
// they share — the guarded job scheduler the rest of the runtime
// submits work to. Named after the "Modest engine" it descends from:
// Operations suspend on State, never the other way around.
package modest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Config tunes an Engine's worker pool.
type Config struct {
	// PoolSize is the maximum number of concurrently live workers.
	// Zero means unbounded.
	PoolSize int

	// ThreadExpire is how long an idle worker waits before it
	// terminates. Zero selects the default of 2 minutes.
	ThreadExpire time.Duration

	// Tracer, if non-nil, wraps every Operation run in a span.
	Tracer trace.Tracer
}

// Engine owns a State and an Operation Dispatcher. It is the public
// entry point the rest of the runtime submits Operations to.
type Engine struct {
	state *State
	pool  *ThreadPool
	disp  *dispatcher
}

// NewEngine creates a ready-to-use Engine per cfg.
func NewEngine(cfg Config) *Engine {
	state := NewState()
	pool := NewThreadPool(cfg.PoolSize, cfg.ThreadExpire, nil)
	if cfg.Tracer != nil {
		pool.SetTracer(cfg.Tracer)
	}
	disp := newDispatcher(state, pool)
	return &Engine{state: state, pool: pool, disp: disp}
}

// State returns the Engine's State store, for Guards and Mutators
// constructed outside this package to close over.
func (e *Engine) State() *State { return e.state }

// Queue appends op to the dispatch queue in submission order. It
// never fails synchronously except after the Engine has been
// stopped.
func (e *Engine) Queue(op *Operation) error {
	return e.disp.queueOperation(op)
}

// Interrupt marks every queued and running Operation interrupted.
func (e *Engine) Interrupt() {
	e.disp.interruptAll()
}

// Join blocks the caller until op is stopped or ctx is done.
func (e *Engine) Join(ctx context.Context, op *Operation) error {
	return op.Join(ctx)
}

// Current returns the Operation whose Runnable is executing on the
// calling goroutine, given its context, or nil.
func (e *Engine) Current(ctx context.Context) *Operation {
	return OperationFromContext(ctx)
}

// QueuedCount returns the number of Operations awaiting admission.
func (e *Engine) QueuedCount() int { return e.disp.queuedCount() }

// LiveCount returns the number of Operations either queued or
// currently running.
func (e *Engine) LiveCount() int { return e.disp.liveCount() }

// PoolSize returns the number of workers currently live in the pool.
func (e *Engine) PoolSize() int { return e.pool.ActiveCount() }

// Stop interrupts every running Operation, flushes every still-queued
// Operation, and shuts down the dispatcher and worker pool. Joiners
// on flushed Operations unblock with stopped=true and
// ErrEngineStopped.
func (e *Engine) Stop() {
	e.disp.stop()
}
