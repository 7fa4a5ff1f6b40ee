// Package core defines the core interfaces and types for the AI gateway.
package core

import "context"

// Backend is a model-serving client bound to one model and one set of
// invocation parameters. Invoke sends the messages and returns the raw
// textual reply.
type Backend interface {
	Invoke(ctx context.Context, messages []Message) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, messages []Message) (string, error)

// Invoke calls f.
func (f BackendFunc) Invoke(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
