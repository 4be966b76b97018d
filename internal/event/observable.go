package event

import (
	"context"
	"sync"

	"github.com/arturoeanton/go-git-analyzer-ollama/internal/modest"
	"github.com/arturoeanton/go-git-analyzer-ollama/internal/syncutil"
)

// Observable accepts Event submissions, rewrites ids through its tap
// graph, and dispatches each resulting (event, observer) pair as an
// Operation on the engine it was started with.
type Observable struct {
	engine *modest.Engine

	mu        sync.Mutex
	taps      map[ID][]ID
	observers map[ID][]Observer
	queue     []Event
	sequence  uint64

	dispatchLock *syncutil.ExclusiveLock
	dispatch     bool

	drainOp *modest.Operation
}

// NewObservable creates an Observable that will dispatch through
// engine once Start is called.
func NewObservable(engine *modest.Engine) *Observable {
	return &Observable{
		engine:       engine,
		taps:         make(map[ID][]ID),
		observers:    make(map[ID][]Observer),
		dispatchLock: syncutil.NewExclusiveLock(),
	}
}

// RegisterObserver subscribes observer to events tapped through id.
// The self-entry (id -> id) is created if this is the first
// registration or tap touching id.
func (ob *Observable) RegisterObserver(observer Observer, id ID) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.ensureSelfTap(id)
	ob.observers[id] = append(ob.observers[id], observer)
}

// UnregisterObserver removes the first matching registration of
// observer under id, if any.
func (ob *Observable) UnregisterObserver(observer Observer, id ID) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	list := ob.observers[id]
	for i, o := range list {
		if o == observer {
			ob.observers[id] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// AddTap makes events arriving for id also fan out to tap. Both id
// and tap gain their self-entry if they do not already have one.
func (ob *Observable) AddTap(id, tap ID) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.ensureSelfTap(id)
	ob.taps[id] = append(ob.taps[id], tap)
	ob.ensureSelfTap(tap)
}

// RemoveTap removes the first (id -> tap) edge, if present. The
// self-entries it leaves behind are never removed by this call.
func (ob *Observable) RemoveTap(id, tap ID) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	list := ob.taps[id]
	for i, t := range list {
		if t == tap {
			ob.taps[id] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (ob *Observable) ensureSelfTap(id ID) {
	for _, t := range ob.taps[id] {
		if t == id {
			return
		}
	}
	ob.taps[id] = append(ob.taps[id], id)
}

// Schedule assigns id and a sequence number to e. If async, e is
// queued for the drain Operation to pick up; otherwise it is
// dispatched immediately on the calling goroutine.
func (ob *Observable) Schedule(e Event, id ID, async bool) {
	ob.mu.Lock()
	e = e.withID(id)
	ob.sequence++
	e = e.withSequence(ob.sequence)
	if !async {
		ob.dispatchEvent(context.Background(), e)
		ob.mu.Unlock()
		return
	}
	ob.queue = append(ob.queue, e)
	ob.mu.Unlock()

	ob.dispatchLock.Lock()
	ob.dispatch = true
	ob.dispatchLock.NotifyAll()
	ob.dispatchLock.Unlock()
}

// dispatchEvent walks the tap graph rooted at e's id, launching one
// Operation per (tapped-id, observer) pair, and waits for all of them
// (and, transitively, everything the tap graph fans out to) before
// returning. Callers must hold ob.mu.
func (ob *Observable) dispatchEvent(ctx context.Context, e Event) {
	var ops []*modest.Operation
	ob.fanOut(e, e.ID(), &ops)
	if len(ops) == 0 {
		return
	}
	ob.mu.Unlock()
	interrupted := false
	for _, op := range ops {
		if err := ob.engine.Join(ctx, op); err != nil {
			interrupted = true
		}
	}
	if interrupted {
		for _, op := range ops {
			op.Interrupt()
		}
		for _, op := range ops {
			_ = ob.engine.Join(context.Background(), op)
		}
	}
	ob.mu.Lock()
}

func (ob *Observable) fanOut(e Event, id ID, ops *[]*modest.Operation) {
	for _, target := range ob.taps[id] {
		if target == id {
			for _, observer := range ob.observers[id] {
				observer := observer
				op := modest.NewOperation(modest.RunnableFunc(func(ctx context.Context) error {
					observer.HandleEvent(e)
					return nil
				}), modest.WithName("event-dispatch"))
				if err := ob.engine.Queue(op); err == nil {
					*ops = append(*ops, op)
				}
			}
		} else {
			ob.fanOut(e, target, ops)
		}
	}
}

// drainQueue dispatches every currently queued event in submission
// order. Serial events block the loop until their fan-out completes;
// parallel events would too under this straightforward drain loop,
// since dispatchEvent always awaits its own fan-out — the distinction
// only matters for a future multi-queue drain, where a parallel event
// could be handed to a sibling queue instead of blocking this one.
func (ob *Observable) drainQueue(ctx context.Context, op *modest.Operation) {
	ob.mu.Lock()
	for len(ob.queue) > 0 && !op.IsInterrupted() {
		e := ob.queue[0]
		ob.queue = ob.queue[1:]
		ob.dispatchEvent(ctx, e)
	}
	ob.dispatchLock.Lock()
	ob.dispatch = false
	ob.dispatchLock.Unlock()
	ob.mu.Unlock()
}

// Start launches the drain Operation on engine. A second call before
// Stop is a no-op, so at most one drain Operation runs per Observable
// at a time; Start after Stop launches a new one.
func (ob *Observable) Start() {
	ob.mu.Lock()
	if ob.drainOp != nil {
		ob.mu.Unlock()
		return
	}
	ob.dispatchLock.Lock()
	ob.dispatch = true
	ob.dispatchLock.Unlock()
	op := modest.NewOperation(modest.RunnableFunc(ob.run), modest.WithName("observable-drain"))
	ob.drainOp = op
	ob.mu.Unlock()
	_ = ob.engine.Queue(op)
}

// Stop interrupts the drain Operation and waits for it to finish.
func (ob *Observable) Stop() {
	ob.mu.Lock()
	op := ob.drainOp
	ob.mu.Unlock()
	if op == nil {
		return
	}
	op.Interrupt()
	ob.dispatchLock.Lock()
	ob.dispatchLock.NotifyAll()
	ob.dispatchLock.Unlock()
	_ = op.Join(context.Background())
	ob.mu.Lock()
	ob.drainOp = nil
	ob.mu.Unlock()
}

// run is the drain Operation's Runnable body: repeatedly wait for
// something to dispatch, then dispatch until the queue is empty.
func (ob *Observable) run(ctx context.Context) error {
	op := modest.OperationFromContext(ctx)
	for op == nil || !op.IsInterrupted() {
		ob.dispatchLock.Lock()
		for !ob.dispatch {
			if op != nil && op.IsInterrupted() {
				ob.dispatchLock.Unlock()
				return nil
			}
			ob.dispatchLock.Wait()
		}
		ob.dispatchLock.Unlock()
		if op != nil && op.IsInterrupted() {
			return nil
		}
		ob.drainQueue(ctx, op)
	}
	return nil
}
