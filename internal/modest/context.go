package modest

import "context"

type operationCtxKey struct{}

// OperationFromContext returns the Operation currently running on the
// calling goroutine's context, or nil if ctx was not derived from one
// handed to a Runnable by an Engine. This is the Go-native rendering
// of the runtime's Engine.current(): rather than a thread-local
// lookup, the Operation rides along on the context the Runnable is
// already given.
func OperationFromContext(ctx context.Context) *Operation {
	op, _ := ctx.Value(operationCtxKey{}).(*Operation)
	return op
}

func withOperation(ctx context.Context, op *Operation) context.Context {
	return context.WithValue(ctx, operationCtxKey{}, op)
}
