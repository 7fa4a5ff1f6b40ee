package llmclient

import (
	"context"
	"time"
)

// RequestInfo describes a backend call that is about to start.
type RequestInfo struct {
	Provider  string
	Model     string
	Operation string
	Start     time.Time
}

// ResponseInfo describes a finished backend call.
type ResponseInfo struct {
	Provider   string
	Model      string
	Operation  string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks lets observers (metrics, tracing) watch every backend invocation.
// Both fields are optional.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
}

// Begin fires OnRequestStart and returns the possibly enriched context plus a
// finish func that must be called exactly once with the outcome.
func (h Hooks) Begin(ctx context.Context, info RequestInfo) (context.Context, func(statusCode int, err error)) {
	if info.Start.IsZero() {
		info.Start = time.Now()
	}
	if h.OnRequestStart != nil {
		if next := h.OnRequestStart(ctx, info); next != nil {
			ctx = next
		}
	}
	return ctx, func(statusCode int, err error) {
		if h.OnRequestEnd == nil {
			return
		}
		h.OnRequestEnd(ctx, ResponseInfo{
			Provider:   info.Provider,
			Model:      info.Model,
			Operation:  info.Operation,
			StatusCode: statusCode,
			Duration:   time.Since(info.Start),
			Err:        err,
		})
	}
}
