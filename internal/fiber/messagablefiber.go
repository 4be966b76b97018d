package fiber

import "sync"

// MessagableFiber wraps a Fiber with a double-buffered inbox: one
// slice accumulates newly arrived messages while the fiber drains a
// separate slice handed to it by GetMessages, so a sender never
// blocks behind however long the fiber takes to process its last
// batch.
type MessagableFiber struct {
	fiber  *Fiber
	center *MessageCenter

	mu       sync.Mutex
	incoming []Message
}

// NewMessagableFiber registers a MessagableFiber with center and
// starts it on scheduler. fn receives both the suspension Context and
// the MessagableFiber itself, so it can call GetMessages and
// SendMessage from within its own body.
func NewMessagableFiber(scheduler *Scheduler, center *MessageCenter, fn func(ctx *Context, mf *MessagableFiber), opts ...FiberOption) (*MessagableFiber, error) {
	mf := &MessagableFiber{center: center}

	wrapped := func(ctx *Context) {
		center.register(mf)
		defer center.unregister(mf.fiber.ID())
		fn(ctx, mf)
	}

	allOpts := append([]FiberOption{withCanSleep(mf.canSleep)}, opts...)
	f, err := scheduler.Add(wrapped, allOpts...)
	if err != nil {
		return nil, err
	}
	mf.fiber = f
	return mf, nil
}

// ID returns the underlying Fiber's identifier.
func (mf *MessagableFiber) ID() ID { return mf.fiber.ID() }

// Fiber returns the wrapped Fiber.
func (mf *MessagableFiber) Fiber() *Fiber { return mf.fiber }

func (mf *MessagableFiber) canSleep() bool {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return len(mf.incoming) == 0
}

func (mf *MessagableFiber) addMessage(msg Message) {
	mf.mu.Lock()
	mf.incoming = append(mf.incoming, msg)
	mf.mu.Unlock()
	mf.fiber.scheduler.Wakeup(mf.fiber.ID())
}

// GetMessages atomically swaps out the current inbox and returns it,
// leaving a fresh empty slice for concurrent senders. Returns nil if
// nothing has arrived.
func (mf *MessagableFiber) GetMessages() []Message {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if len(mf.incoming) == 0 {
		return nil
	}
	batch := mf.incoming
	mf.incoming = nil
	return batch
}

// SendMessage delivers msg to the fiber identified by id through the
// shared MessageCenter.
func (mf *MessagableFiber) SendMessage(id ID, msg Message) bool {
	return mf.center.Send(id, msg)
}
