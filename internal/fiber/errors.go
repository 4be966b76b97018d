// Package fiber provides user-space cooperative tasks multiplexed
// onto a fixed pool of scheduler worker goroutines, plus a message
// center that lets fibers address each other by identifier.
//
// Go gives no portable way to save and restore a raw stack and
// register file outside of assembly, but it already gives every
// goroutine exactly what a fiber needs: its own growable stack,
// cooperatively resumed by the runtime scheduler. This package's
// "context swap" is therefore a goroutine blocked on a channel pair —
// Yield/Sleep send a verdict to the scheduler and then block waiting
// to be resumed — which is the same trick generator-style coroutine
// libraries use in idiomatic Go.
package fiber

import "errors"

var (
	// ErrResourceExhausted is returned by Scheduler.Add when the
	// configured fiber ceiling has been reached — the Go-native
	// analog of a failed stack allocation.
	ErrResourceExhausted = errors.New("fiber: resource exhausted")

	// ErrSchedulerStopped is returned by Add after Stop has been
	// called.
	ErrSchedulerStopped = errors.New("fiber: scheduler stopped")
)
