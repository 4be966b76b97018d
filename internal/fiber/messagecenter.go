package fiber

import "github.com/arturoeanton/go-git-analyzer-ollama/internal/syncutil"

// Message is an untyped, schemaless payload exchanged between fibers.
// Senders and receivers agree on shape out of band.
type Message = any

// MessageCenter addresses MessagableFibers by ID and hands off
// messages to their inboxes. Lookup is a shared (read) lock; delivery
// into a specific fiber's inbox is serialized by that fiber's own
// mutex, so one busy fiber never blocks lookups for the rest.
type MessageCenter struct {
	lock   syncutil.SharedLock
	fibers map[ID]*MessagableFiber
}

// NewMessageCenter returns an empty MessageCenter.
func NewMessageCenter() *MessageCenter {
	return &MessageCenter{fibers: make(map[ID]*MessagableFiber)}
}

func (c *MessageCenter) register(mf *MessagableFiber) {
	c.lock.LockExclusive()
	defer c.lock.UnlockExclusive()
	c.fibers[mf.fiber.ID()] = mf
}

func (c *MessageCenter) unregister(id ID) {
	c.lock.LockExclusive()
	defer c.lock.UnlockExclusive()
	delete(c.fibers, id)
}

// Send appends msg to id's inbox and wakes it if it was sleeping. It
// reports false if no MessagableFiber is registered under id.
func (c *MessageCenter) Send(id ID, msg Message) bool {
	c.lock.LockShared()
	mf, ok := c.fibers[id]
	c.lock.UnlockShared()
	if !ok {
		return false
	}
	mf.addMessage(msg)
	return true
}
