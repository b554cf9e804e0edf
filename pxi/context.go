package pxi

import "context"

type interruptKey struct{}

// WithInterrupt marks ctx as running in the receive path of a link. Code
// that would wait for the peer must not be called with such a context.
func WithInterrupt(ctx context.Context) context.Context {
	return context.WithValue(ctx, interruptKey{}, true)
}

// IsInterrupt reports whether ctx was created by WithInterrupt.
func IsInterrupt(ctx context.Context) bool {
	v, _ := ctx.Value(interruptKey{}).(bool)
	return v
}
