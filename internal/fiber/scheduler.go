package fiber

import "sync"

// FiberOption configures a Fiber at Add time.
type FiberOption func(*Fiber)

// WithStackSize records a cosmetic stack size for the Fiber. Go
// goroutine stacks grow on demand, so this has no runtime effect
// beyond introspection, but it keeps the field the runtime's fibers
// always carry.
func WithStackSize(size int) FiberOption {
	return func(f *Fiber) { f.stackSize = size }
}

func withCanSleep(hook func() bool) FiberOption {
	return func(f *Fiber) { f.canSleep = hook }
}

// Scheduler runs N worker goroutines, each repeatedly picking a
// runnable Fiber, swapping its context in, and running it until it
// yields, sleeps, or exits.
type Scheduler struct {
	maxFibers int

	mu       sync.Mutex
	cond     *sync.Cond
	fibers   map[ID]*Fiber
	runnable []*Fiber
	nextID   uint32
	stopped  bool

	wg sync.WaitGroup
}

// NewScheduler starts workers goroutines immediately. maxFibers caps
// the number of simultaneously registered fibers; zero means
// unbounded.
func NewScheduler(workers, maxFibers int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	s := &Scheduler{
		maxFibers: maxFibers,
		fibers:    make(map[ID]*Fiber),
	}
	s.cond = sync.NewCond(&s.mu)
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}
	return s
}

// Add registers a new Fiber running fn and starts its backing
// goroutine. The Fiber begins in StateNew and is swapped in for the
// first time by whichever worker picks it up next.
func (s *Scheduler) Add(fn func(ctx *Context), opts ...FiberOption) (*Fiber, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSchedulerStopped
	}
	if s.maxFibers > 0 && len(s.fibers) >= s.maxFibers {
		s.mu.Unlock()
		return nil, ErrResourceExhausted
	}
	s.nextID++
	if s.nextID == uint32(InvalidID) {
		s.nextID++
	}
	f := &Fiber{
		id:        ID(s.nextID),
		scheduler: s,
		fn:        fn,
		resumeCh:  make(chan struct{}),
		yieldCh:   make(chan verdict),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.state.Store(int32(StateNew))
	s.fibers[f.id] = f
	s.runnable = append(s.runnable, f)
	s.mu.Unlock()

	go f.loop()
	s.cond.Signal()
	return f, nil
}

// Wakeup moves a Sleeping Fiber back onto the runnable queue. It is a
// no-op if the Fiber is unknown, already runnable, or exited.
func (s *Scheduler) Wakeup(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fibers[id]
	if !ok || f.State() != StateSleeping {
		return false
	}
	f.state.Store(int32(StateRunning))
	s.runnable = append(s.runnable, f)
	s.cond.Signal()
	return true
}

// Lookup returns the Fiber registered under id, if any.
func (s *Scheduler) Lookup(id ID) (*Fiber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fibers[id]
	return f, ok
}

// Count returns the number of currently registered (non-exited)
// fibers.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fibers)
}

// Stop halts every worker once its current fiber yields, sleeps, or
// exits. Already-registered fibers that never yield again are left
// running to completion; they simply won't be picked up again once
// they do.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		f := s.popRunnable()
		if f == nil {
			return
		}
		s.runOnce(f)
	}
}

func (s *Scheduler) popRunnable() *Fiber {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.runnable) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if s.stopped || len(s.runnable) == 0 {
		return nil
	}
	f := s.runnable[0]
	s.runnable = s.runnable[1:]
	return f
}

func (s *Scheduler) requeue(f *Fiber) {
	s.mu.Lock()
	s.runnable = append(s.runnable, f)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *Scheduler) remove(f *Fiber) {
	s.mu.Lock()
	delete(s.fibers, f.id)
	s.mu.Unlock()
}

// runOnce swaps f's context in, blocks until it yields/sleeps/exits,
// and updates scheduler bookkeeping accordingly.
func (s *Scheduler) runOnce(f *Fiber) {
	f.state.Store(int32(StateRunning))
	f.resumeCh <- struct{}{}
	v := <-f.yieldCh
	switch v {
	case verdictExit:
		f.state.Store(int32(StateExited))
		s.remove(f)
	case verdictSleep:
		f.state.Store(int32(StateSleeping))
	case verdictMaybeSleep:
		s.commitMaybeSleep(f)
	default: // verdictYield
		f.state.Store(int32(StateRunning))
		s.requeue(f)
	}
}

// commitMaybeSleep evaluates f's canSleep hook under s.mu — the same
// lock Wakeup contends on — and only then commits the Sleeping
// transition. A message that arrives after the Fiber yielded but
// before this check is still visible to the hook, so the Fiber stays
// runnable instead of missing its wakeup.
func (s *Scheduler) commitMaybeSleep(f *Fiber) {
	s.mu.Lock()
	if f.canSleep != nil && !f.canSleep() {
		f.state.Store(int32(StateRunning))
		s.runnable = append(s.runnable, f)
		s.mu.Unlock()
		s.cond.Signal()
		return
	}
	f.state.Store(int32(StateSleeping))
	s.mu.Unlock()
}
