package gateway

import (
	"context"
	"net/http"

	"aigateway/internal/core"
	"aigateway/internal/llmclient"
	"aigateway/internal/providers/gemini"
	"aigateway/internal/providers/ollama"
)

// Kind selects the default-model column: plain chat or multimodal.
type Kind int

const (
	KindChat Kind = iota
	KindVision
)

func (k Kind) String() string {
	if k == KindVision {
		return "vision"
	}
	return "chat"
}

// Default model names per provider and kind.
const (
	DefaultLocalChatModel   = "llama3"
	DefaultLocalVisionModel = "llama3.2-vision"
	DefaultCloudModel       = "gemini-1.5-flash"
)

// DefaultModel returns the model used when the caller names none.
func DefaultModel(provider core.Provider, kind Kind) (string, error) {
	switch provider {
	case core.ProviderLocal:
		if kind == KindVision {
			return DefaultLocalVisionModel, nil
		}
		return DefaultLocalChatModel, nil
	case core.ProviderCloud:
		return DefaultCloudModel, nil
	default:
		return "", core.NewInvalidProviderError(string(provider))
	}
}

// Config is the process-wide backend configuration the Resolver reads.
// The Resolver never modifies it.
type Config struct {
	// LocalBaseURL is the Ollama root URL (OLLAMA_BASE_URL).
	LocalBaseURL string
	// CloudAPIKey is the Gemini credential (GOOGLE_API_KEY).
	CloudAPIKey string
	// CloudBaseURL optionally overrides the Gemini endpoint.
	CloudBaseURL string

	// HTTPClient is shared by every backend built by the Resolver.
	HTTPClient *http.Client
	Hooks      llmclient.Hooks
}

// BackendBuilder builds a backend bound to a single model.
type BackendBuilder func(model string) core.Backend

// ClientHandle is the per-request binding of a provider, a resolved model and
// the backend that serves it. It is never cached or shared between requests.
type ClientHandle struct {
	Provider core.Provider
	Model    string
	Backend  core.Backend
}

// Invoke forwards to the backend.
func (h *ClientHandle) Invoke(ctx context.Context, messages []core.Message) (string, error) {
	return h.Backend.Invoke(ctx, messages)
}

// Resolver maps (provider, kind, model override) to a ClientHandle.
type Resolver struct {
	cfg   Config
	local BackendBuilder
	cloud BackendBuilder
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithLocalBuilder replaces the Ollama backend constructor.
func WithLocalBuilder(b BackendBuilder) ResolverOption {
	return func(r *Resolver) { r.local = b }
}

// WithCloudBuilder replaces the Gemini backend constructor.
func WithCloudBuilder(b BackendBuilder) ResolverOption {
	return func(r *Resolver) { r.cloud = b }
}

// NewResolver creates a Resolver over cfg.
func NewResolver(cfg Config, opts ...ResolverOption) *Resolver {
	r := &Resolver{cfg: cfg}
	r.local = r.newLocal
	r.cloud = r.newCloud
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) newLocal(model string) core.Backend {
	return ollama.New(ollama.Config{
		BaseURL:     r.cfg.LocalBaseURL,
		Model:       model,
		Temperature: ollama.DefaultTemperature,
		HTTPClient:  r.cfg.HTTPClient,
		Hooks:       r.cfg.Hooks,
	})
}

func (r *Resolver) newCloud(model string) core.Backend {
	return gemini.New(gemini.Config{
		APIKey:          r.cfg.CloudAPIKey,
		Model:           model,
		MaxOutputTokens: gemini.DefaultMaxOutputTokens,
		BaseURL:         r.cfg.CloudBaseURL,
		HTTPClient:      r.cfg.HTTPClient,
		Hooks:           r.cfg.Hooks,
	})
}

// Resolve builds a fresh ClientHandle. modelName overrides the default model
// when non-empty. Backend reachability is not checked here.
func (r *Resolver) Resolve(provider core.Provider, kind Kind, modelName string) (*ClientHandle, error) {
	model := modelName
	if model == "" {
		var err error
		if model, err = DefaultModel(provider, kind); err != nil {
			return nil, err
		}
	}

	var backend core.Backend
	switch provider {
	case core.ProviderLocal:
		backend = r.local(model)
	case core.ProviderCloud:
		backend = r.cloud(model)
	default:
		return nil, core.NewInvalidProviderError(string(provider))
	}

	return &ClientHandle{
		Provider: provider,
		Model:    model,
		Backend:  backend,
	}, nil
}
