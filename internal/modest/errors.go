package modest

import "errors"

// Sentinel errors for the engine: a blocking wait interrupted, a
// guard deciding cancellation, pool exhaustion, a State lookup miss,
// and a stopped engine. A Runnable's own failure has no sentinel: the
// Operation carries the Runnable's returned error, or a *PanicError.
var (
	// ErrInterrupted is returned by a blocking wait that observed an
	// interrupt request before it could complete normally.
	ErrInterrupted = errors.New("modest: interrupted")

	// ErrGuardCancel is attached to an Operation whose guard decided
	// it must be canceled rather than admitted.
	ErrGuardCancel = errors.New("modest: operation canceled by guard")

	// ErrResourceExhausted names the pool-exhaustion condition
	// (capacity reached and none idle). No function in this package
	// returns it: TryRunJob reports that condition by returning false,
	// and RunJob waits instead.
	ErrResourceExhausted = errors.New("modest: resource exhausted")

	// ErrNotFound names a typed State read that misses, either because
	// the variable does not exist or exists with another type. No
	// function in this package returns it: the State accessors report
	// a miss through their boolean result.
	ErrNotFound = errors.New("modest: state variable not found")

	// ErrEngineStopped is returned by Queue/Join after the engine has
	// been stopped.
	ErrEngineStopped = errors.New("modest: engine stopped")
)
