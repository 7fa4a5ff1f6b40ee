// Package gateway routes chat and image requests to the local or cloud
// backend and returns every reply in the uniform core.ChatResponse envelope.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"aigateway/internal/core"
)

// Operation names, used for logs, metrics and the audit trail.
const (
	OperationChat         = "chat"
	OperationAnalyzeImage = "analyze_image"
	OperationEstimateAge  = "estimate_age"
)

// HandleResolver produces a ClientHandle per request. *Resolver implements it.
type HandleResolver interface {
	Resolve(provider core.Provider, kind Kind, modelName string) (*ClientHandle, error)
}

// Gateway is the single entry point for the three operations.
// It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	resolver HandleResolver
}

// New creates a Gateway.
func New(resolver HandleResolver) *Gateway {
	return &Gateway{resolver: resolver}
}

// Chat sends a plain text message.
func (g *Gateway) Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error) {
	return g.run(ctx, OperationChat, KindChat, req.Provider, req.ModelName, func() ([]core.Message, error) {
		if req.Message == "" {
			return nil, core.NewMissingInputError("message is required")
		}
		return BuildChat(req.Message), nil
	})
}

// AnalyzeImage describes an image, using req.CustomPrompt when set.
func (g *Gateway) AnalyzeImage(ctx context.Context, req core.ImageRequest) (*core.ChatResponse, error) {
	return g.run(ctx, OperationAnalyzeImage, KindVision, req.Provider, req.ModelName, func() ([]core.Message, error) {
		return BuildImageAnalysis(req.Image, req.MIMEType, req.CustomPrompt)
	})
}

// EstimateAge estimates the age of the most prominent person in an image.
// req.CustomPrompt is ignored.
func (g *Gateway) EstimateAge(ctx context.Context, req core.ImageRequest) (*core.ChatResponse, error) {
	return g.run(ctx, OperationEstimateAge, KindVision, req.Provider, req.ModelName, func() ([]core.Message, error) {
		return BuildAgeEstimation(req.Image, req.MIMEType)
	})
}

// run is the shared skeleton: resolve, build, invoke, map. Errors are
// returned unchanged and nothing is retried.
func (g *Gateway) run(
	ctx context.Context,
	operation string,
	kind Kind,
	provider core.Provider,
	modelName string,
	build func() ([]core.Message, error),
) (*core.ChatResponse, error) {
	if provider == "" {
		provider = core.DefaultProvider
	}

	handle, err := g.resolver.Resolve(provider, kind, modelName)
	if err != nil {
		return nil, err
	}

	messages, err := build()
	if err != nil {
		return nil, err
	}

	ctx = core.WithOperation(ctx, operation)
	start := time.Now()
	content, err := handle.Invoke(ctx, messages)
	if err != nil {
		slog.DebugContext(ctx, "backend invocation failed",
			"operation", operation,
			"provider", handle.Provider,
			"model", handle.Model,
			"request_id", core.GetRequestID(ctx),
			"error", err,
		)
		return nil, err
	}

	slog.DebugContext(ctx, "backend invocation completed",
		"operation", operation,
		"provider", handle.Provider,
		"model", handle.Model,
		"request_id", core.GetRequestID(ctx),
		"duration", time.Since(start),
	)

	return &core.ChatResponse{
		Provider:        handle.Provider,
		Model:           handle.Model,
		ResponseContent: content,
	}, nil
}
