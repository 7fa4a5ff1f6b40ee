// Package ollama provides the local backend: an Ollama server reached through
// its OpenAI-compatible chat completions endpoint.
package ollama

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"aigateway/internal/core"
	"aigateway/internal/llmclient"
)

const (
	// DefaultBaseURL is where a stock Ollama install listens.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultTemperature is sent with every chat completion.
	DefaultTemperature = 0.7

	providerName = "local"
)

// Config configures a Backend.
type Config struct {
	// BaseURL is the Ollama root URL, without the /v1 suffix.
	BaseURL     string
	Model       string
	Temperature float64
	// HTTPClient is optional; a shared client avoids a new connection pool per request.
	HTTPClient *http.Client
	Hooks      llmclient.Hooks
}

// Backend implements core.Backend for Ollama
type Backend struct {
	client      *llmclient.Client
	model       string
	temperature float64
}

// New creates a Backend bound to cfg.Model.
func New(cfg Config) *Backend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	b := &Backend{
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
	clientCfg := llmclient.Config{
		ProviderName: providerName,
		BaseURL:      baseURL + "/v1",
		Hooks:        cfg.Hooks,
	}
	if cfg.HTTPClient != nil {
		b.client = llmclient.NewWithHTTPClient(cfg.HTTPClient, clientCfg, setHeaders)
	} else {
		b.client = llmclient.New(clientCfg, setHeaders)
	}
	return b
}

// Model returns the model name this backend sends.
func (b *Backend) Model() string {
	return b.model
}

// setHeaders forwards the request ID so Ollama logs can be correlated.
func setHeaders(req *http.Request) {
	if requestID := core.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// chatMessage carries either a plain string or a list of content parts,
// matching the two shapes the OpenAI-compatible endpoint accepts.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

func toChatMessages(messages []core.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		if m.IsMultimodal() {
			out[i] = chatMessage{Role: m.Role, Content: m.Parts}
			continue
		}
		out[i] = chatMessage{Role: m.Role, Content: m.Text}
	}
	return out
}

// Invoke sends messages to /v1/chat/completions and returns the first
// choice's content verbatim.
func (b *Backend) Invoke(ctx context.Context, messages []core.Message) (string, error) {
	resp, err := b.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Model:    b.model,
		Body: chatRequest{
			Model:       b.model,
			Messages:    toChatMessages(messages),
			Temperature: b.temperature,
		},
	})
	if err != nil {
		return "", err
	}

	content := gjson.GetBytes(resp.Body, "choices.0.message.content")
	if !content.Exists() {
		return "", core.NewProviderError(providerName, http.StatusBadGateway,
			"malformed response: missing choices[0].message.content", nil)
	}
	return content.String(), nil
}
