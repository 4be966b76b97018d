package fiber

import "sync/atomic"

// ID identifies a Fiber within a Scheduler. Zero is reserved as the
// invalid ID and is never assigned.
type ID uint32

// InvalidID is never assigned to a real Fiber.
const InvalidID ID = 0

// State is one of a Fiber's four lifecycle states.
type State int32

const (
	// StateNew is a Fiber that has been added but never yet swapped
	// onto a worker.
	StateNew State = iota
	// StateRunning is a Fiber that has run at least once and is
	// neither sleeping nor exited — it may be actively executing on
	// a worker right now, or simply waiting its turn in the runnable
	// queue.
	StateRunning
	// StateSleeping is a Fiber removed from the runnable queue
	// because it has nothing to do; only wakeup() returns it.
	StateSleeping
	// StateExited is terminal; re-entry is impossible.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

type verdict int

const (
	verdictYield verdict = iota
	// verdictMaybeSleep is sent by Yield whenever a canSleep hook is
	// attached. Yield does not call the hook itself: the scheduler
	// evaluates it under its own lock before committing to
	// StateSleeping, so a message that arrives before that commit is
	// never lost.
	verdictMaybeSleep
	// verdictSleep is an unconditional sleep requested via Context.Sleep,
	// independent of any canSleep hook.
	verdictSleep
	verdictExit
)

// Context is handed to a Fiber's body. Yield and Sleep are the only
// suspension points: a Fiber that never calls either cannot be
// preempted, and Interrupted is only ever observed at those points.
type Context struct {
	fiber *Fiber
}

// ID returns the calling Fiber's identifier.
func (c *Context) ID() ID { return c.fiber.id }

// Interrupted reports whether Interrupt has been requested on this
// Fiber. Checked by convention at safe points inside the Fiber body.
func (c *Context) Interrupted() bool { return c.fiber.interrupted.Load() }

// Yield cooperatively hands control back to the scheduler. If the
// Fiber was constructed with a canSleep hook, the scheduler re-checks
// it under its own lock and transitions to Sleeping only if it still
// holds; otherwise the Fiber is re-queued at the tail of the runnable
// queue for its next turn.
func (c *Context) Yield() {
	f := c.fiber
	if f.canSleep != nil {
		f.yieldCh <- verdictMaybeSleep
	} else {
		f.yieldCh <- verdictYield
	}
	<-f.resumeCh
}

// Sleep forces the Fiber to Sleeping regardless of any canSleep hook,
// until woken by Scheduler.Wakeup.
func (c *Context) Sleep() {
	f := c.fiber
	f.yieldCh <- verdictSleep
	<-f.resumeCh
}

// Fiber is a schedulable cooperative task with its own goroutine
// stack, a fixed identifier, and a back-reference to the scheduler
// running it.
type Fiber struct {
	id        ID
	scheduler *Scheduler
	stackSize int

	fn       func(ctx *Context)
	canSleep func() bool

	state       atomic.Int32
	interrupted atomic.Bool

	resumeCh chan struct{}
	yieldCh  chan verdict
}

// ID returns the Fiber's identifier.
func (f *Fiber) ID() ID { return f.id }

// State returns the Fiber's current lifecycle state.
func (f *Fiber) State() State { return State(f.state.Load()) }

// StackSize returns the stack size the Fiber was created with.
func (f *Fiber) StackSize() int { return f.stackSize }

// Interrupt requests that the Fiber stop at its next Yield/Sleep
// point. There is no preemption: a Fiber that never yields cannot be
// canceled this way.
func (f *Fiber) Interrupt() { f.interrupted.Store(true) }

// IsInterrupted reports whether Interrupt has been called.
func (f *Fiber) IsInterrupted() bool { return f.interrupted.Load() }

func (f *Fiber) loop() {
	<-f.resumeCh
	f.fn(&Context{fiber: f})
	f.yieldCh <- verdictExit
}
