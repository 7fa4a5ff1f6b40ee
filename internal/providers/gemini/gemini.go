// Package gemini provides the cloud backend: Google Gemini through the
// official genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"aigateway/internal/core"
	"aigateway/internal/llmclient"
)

const (
	// DefaultMaxOutputTokens bounds every generation.
	DefaultMaxOutputTokens int32 = 2048

	providerName = "cloud"
)

// Config configures a Backend.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int32
	// BaseURL overrides the Gemini API endpoint; empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
	Hooks      llmclient.Hooks
}

// Backend implements core.Backend for Gemini
type Backend struct {
	cfg Config
}

// New creates a Backend bound to cfg.Model. No network activity happens
// until Invoke.
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Model returns the model name this backend sends.
func (b *Backend) Model() string {
	return b.cfg.Model
}

func (b *Backend) newClient(ctx context.Context) (*genai.Client, error) {
	if b.cfg.APIKey == "" {
		return nil, core.NewAuthenticationError(providerName, "GOOGLE_API_KEY is not configured")
	}
	cc := &genai.ClientConfig{
		APIKey:     b.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.cfg.HTTPClient,
	}
	if b.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, core.NewProviderError(providerName, http.StatusBadGateway, "failed to create client: "+err.Error(), err)
	}
	return client, nil
}

// Invoke sends messages to generateContent and returns the reply text verbatim.
func (b *Backend) Invoke(ctx context.Context, messages []core.Message) (string, error) {
	contents, err := toContents(messages)
	if err != nil {
		return "", err
	}

	client, err := b.newClient(ctx)
	if err != nil {
		return "", err
	}

	ctx, finish := b.cfg.Hooks.Begin(ctx, llmclient.RequestInfo{
		Provider:  providerName,
		Model:     b.cfg.Model,
		Operation: core.GetOperation(ctx),
	})

	resp, err := client.Models.GenerateContent(ctx, b.cfg.Model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: b.cfg.MaxOutputTokens,
	})
	if err != nil {
		gwErr := convertError(err)
		finish(gwErr.StatusCode, gwErr)
		return "", gwErr
	}

	if len(resp.Candidates) == 0 {
		msg := "no candidates returned"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			msg = fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		gwErr := core.NewProviderError(providerName, http.StatusBadGateway, msg, nil)
		finish(http.StatusOK, gwErr)
		return "", gwErr
	}

	finish(http.StatusOK, nil)
	return resp.Text(), nil
}

func toContents(messages []core.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}

		if !m.IsMultimodal() {
			contents = append(contents, genai.NewContentFromText(m.Text, role))
			continue
		}

		parts := make([]*genai.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case core.PartText:
				parts = append(parts, genai.NewPartFromText(p.Text))
			case core.PartImageURL:
				if p.ImageURL == nil {
					return nil, core.NewMissingInputError("image part has no URL")
				}
				mimeType, data, err := core.DecodeDataURI(p.ImageURL.URL)
				if err != nil {
					return nil, core.NewInvalidRequestError("image part is not a base64 data URI", err)
				}
				parts = append(parts, genai.NewPartFromBytes(data, mimeType))
			default:
				return nil, core.NewInvalidRequestError("unsupported content part type: "+p.Type, nil)
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, nil
}

// convertError maps SDK errors onto gateway errors using the HTTP status the
// API reported.
func convertError(err error) *core.GatewayError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		gwErr := core.ParseProviderError(providerName, apiErr.Code, []byte(apiErr.Message), err)
		gwErr.Err = err
		return gwErr
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		gwErr := core.ParseProviderError(providerName, apiErrPtr.Code, []byte(apiErrPtr.Message), err)
		gwErr.Err = err
		return gwErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewProviderError(providerName, http.StatusGatewayTimeout, "request to Gemini did not complete: "+err.Error(), err)
	}
	return core.NewProviderError(providerName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
}
