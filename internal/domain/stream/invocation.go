package stream

import (
	"context"

	"github.com/google/uuid"
)

// Invocation identifies a single handler invocation. Runtimes may attach one
// to the context; otherwise the handler generates it.
type Invocation struct {
	ID      string
	Attempt int
}

type invocationKey struct{}

// NewInvocation returns an Invocation with a fresh random identifier.
func NewInvocation() Invocation { return Invocation{ID: uuid.NewString(), Attempt: 1} }

// WithInvocation stores inv in ctx.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFromContext returns the Invocation stored in ctx, if any.
func InvocationFromContext(ctx context.Context) (Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(Invocation)
	return inv, ok
}
