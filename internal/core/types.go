package core

import "strings"

// Provider identifies one of the two interchangeable backends.
type Provider string

const (
	// ProviderLocal is a locally hosted Ollama server.
	ProviderLocal Provider = "local"
	// ProviderCloud is the Google Gemini API.
	ProviderCloud Provider = "cloud"
)

// DefaultProvider is used when a request carries no provider.
const DefaultProvider = ProviderLocal

// Providers lists every known provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderLocal, ProviderCloud}
}

// Wire names accepted for backward compatibility with older clients.
const (
	aliasOllama = "ollama"
	aliasGoogle = "google"
)

// ParseProvider maps a caller-supplied provider string to a Provider.
// An empty value selects DefaultProvider. "ollama" and "google" are accepted
// as names for local and cloud; anything else must match exactly.
func ParseProvider(value string) (Provider, error) {
	switch strings.TrimSpace(value) {
	case "":
		return DefaultProvider, nil
	case string(ProviderLocal), aliasOllama:
		return ProviderLocal, nil
	case string(ProviderCloud), aliasGoogle:
		return ProviderCloud, nil
	default:
		return "", NewInvalidProviderError(value)
	}
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	return p == ProviderLocal || p == ProviderCloud
}

func (p Provider) String() string {
	return string(p)
}

// ChatRequest is a plain text chat turn.
type ChatRequest struct {
	Message   string   `json:"message"`
	Provider  Provider `json:"provider,omitempty"`
	ModelName string   `json:"modelName,omitempty"`
}

// ImageRequest carries a decoded image for the multimodal operations.
// CustomPrompt is only honored by image analysis.
type ImageRequest struct {
	Image        []byte   `json:"-"`
	MIMEType     string   `json:"-"`
	Provider     Provider `json:"provider,omitempty"`
	ModelName    string   `json:"modelName,omitempty"`
	CustomPrompt string   `json:"customPrompt,omitempty"`
}

// ChatResponse is the uniform envelope returned by every gateway operation.
type ChatResponse struct {
	Provider        Provider `json:"provider"`
	Model           string   `json:"model"`
	ResponseContent string   `json:"responseContent"`
}

// Message roles understood by both backends.
const (
	RoleUser = "user"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// Message is a single provider-agnostic turn. Exactly one of Text or Parts is set.
type Message struct {
	Role  string        `json:"role"`
	Text  string        `json:"-"`
	Parts []ContentPart `json:"-"`
}

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL holds an image reference; the gateway always uses a data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// IsMultimodal reports whether the message carries content parts.
func (m Message) IsMultimodal() bool {
	return len(m.Parts) > 0
}
