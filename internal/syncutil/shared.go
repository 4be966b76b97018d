package syncutil

import "sync"

// SharedLock is a reader/writer lock. Many callers may hold it for
// reading concurrently (the message center's fiber lookups); exactly
// one may hold it for writing (fiber registration and removal).
type SharedLock struct {
	mu sync.RWMutex
}

// LockShared acquires the lock for reading.
func (l *SharedLock) LockShared() { l.mu.RLock() }

// UnlockShared releases a read lock.
func (l *SharedLock) UnlockShared() { l.mu.RUnlock() }

// LockExclusive acquires the lock for writing.
func (l *SharedLock) LockExclusive() { l.mu.Lock() }

// UnlockExclusive releases a write lock.
func (l *SharedLock) UnlockExclusive() { l.mu.Unlock() }
