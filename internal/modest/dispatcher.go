package modest

import (
	"context"
	"sync"
)

type dispatchAction int

const (
	actionAdmitted dispatchAction = iota
	actionWaiting
	actionCanceled
)

// dispatcher serializes admission of Operations against an Engine's
// State. A single dispatch goroutine walks the FIFO queue on every
// wake-up, admitting what it can, skipping what must wait, and
// canceling what a guard rejects outright.
type dispatcher struct {
	state *State
	pool  *ThreadPool

	mu      sync.Mutex
	queue   []*Operation
	live    map[*Operation]struct{}
	stopped bool

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

func newDispatcher(state *State, pool *ThreadPool) *dispatcher {
	d := &dispatcher{
		state:  state,
		pool:   pool,
		live:   make(map[*Operation]struct{}),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	pool.onComplete = d.completed
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	defer close(d.doneCh)
	for {
		select {
		case <-d.wake:
			d.dispatchJobs()
		case <-d.stopCh:
			return
		}
	}
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// queueOperation appends op to the dispatch queue in submission order.
func (d *dispatcher) queueOperation(op *Operation) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrEngineStopped
	}
	d.queue = append(d.queue, op)
	d.live[op] = struct{}{}
	d.mu.Unlock()
	d.signal()
	return nil
}

// evaluate reports what should happen to op given the current State,
// assuming the State lock is already held.
func (d *dispatcher) evaluate(op *Operation) dispatchAction {
	if op.guard == nil {
		return actionAdmitted
	}
	if op.guard.CanExecute(d.state, op) {
		return actionAdmitted
	}
	if !op.IsInterrupted() && !op.guard.MustCancel(d.state, op) {
		return actionWaiting
	}
	return actionCanceled
}

// dispatchJobs walks the queue once, admitting, skipping, or
// canceling each candidate in turn. If the thread pool is saturated
// when an Operation is admitted, it degrades to a blocking RunJob for
// that one Operation and returns rather than stalling the rest of the
// queue behind it.
func (d *dispatcher) dispatchJobs() {
	d.mu.Lock()
	i := 0
	for i < len(d.queue) {
		op := d.queue[i]

		d.state.Lock()
		switch d.evaluate(op) {
		case actionAdmitted:
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			if op.mutator != nil {
				op.mutator.Pre(d.state, op)
			}
			d.state.Unlock()

			if d.pool.TryRunJob(op) {
				continue
			}

			// Pool saturated: fall back to a blocking run for this
			// one Operation rather than stall the whole queue.
			d.mu.Unlock()
			_ = d.pool.RunJob(context.Background(), op)
			return

		case actionCanceled:
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			d.state.Unlock()
			delete(d.live, op)
			op.stop(ErrGuardCancel)

		default: // actionWaiting
			d.state.Unlock()
			i++
		}
	}
	d.mu.Unlock()
}

// completed is the Engine's completion hook, invoked by the pool
// worker's own goroutine after an Operation's Runnable returns — not
// by the Operation itself, so the live map can be safely pruned here
// even if it held the Operation's last reference.
func (d *dispatcher) completed(op *Operation) {
	d.state.Lock()
	if op.mutator != nil {
		op.mutator.Post(d.state, op)
	}
	d.state.Unlock()

	op.stop(nil)

	d.mu.Lock()
	delete(d.live, op)
	d.mu.Unlock()

	d.signal()
}

// interruptAll marks every queued or running Operation interrupted.
func (d *dispatcher) interruptAll() {
	d.mu.Lock()
	ops := make([]*Operation, 0, len(d.live))
	for op := range d.live {
		ops = append(ops, op)
	}
	d.mu.Unlock()
	for _, op := range ops {
		op.Interrupt()
	}
}

// stop flushes every still-queued Operation (never admitted, so they
// finish with started=false, stopped=true) and interrupts every
// running Operation, then halts the dispatch loop and the pool.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	queued := d.queue
	d.queue = nil
	inQueue := make(map[*Operation]bool, len(queued))
	for _, op := range queued {
		inQueue[op] = true
		delete(d.live, op)
	}
	running := make([]*Operation, 0, len(d.live))
	for op := range d.live {
		running = append(running, op)
	}
	d.mu.Unlock()

	for _, op := range queued {
		op.stop(ErrEngineStopped)
	}
	for _, op := range running {
		op.Interrupt()
	}

	close(d.stopCh)
	<-d.doneCh
	d.pool.Stop()
}

func (d *dispatcher) queuedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *dispatcher) liveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}
