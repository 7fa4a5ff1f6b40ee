package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigateway/internal/core"
)

func TestNew_Model(t *testing.T) {
	b := New(Config{Model: "llama3"})

	assert.Equal(t, "llama3", b.Model())
}

func TestInvoke_TrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	b := New(Config{BaseURL: server.URL + "/", Model: "llama3", HTTPClient: server.Client()})
	got, err := b.Invoke(context.Background(), []core.Message{{Role: core.RoleUser, Text: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestInvoke(t *testing.T) {
	tests := []struct {
		name         string
		messages     []core.Message
		statusCode   int
		responseBody string
		want         string
		wantErrType  core.ErrorType
		checkRequest func(*testing.T, map[string]interface{})
	}{
		{
			name:         "plain text message",
			messages:     []core.Message{{Role: core.RoleUser, Text: "Hello, how are you?"}},
			statusCode:   http.StatusOK,
			responseBody: `{"id":"chatcmpl-1","model":"llama3","choices":[{"index":0,"message":{"role":"assistant","content":"  I'm fine!\n"},"finish_reason":"stop"}]}`,
			want:         "  I'm fine!\n",
			checkRequest: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "llama3", body["model"])
				assert.Equal(t, 0.7, body["temperature"])
				assert.Equal(t, false, body["stream"])
				msgs := body["messages"].([]interface{})
				if !assert.Len(t, msgs, 1) {
					return
				}
				msg := msgs[0].(map[string]interface{})
				assert.Equal(t, "user", msg["role"])
				assert.Equal(t, "Hello, how are you?", msg["content"])
			},
		},
		{
			name: "multimodal message",
			messages: []core.Message{{Role: core.RoleUser, Parts: []core.ContentPart{
				{Type: core.PartText, Text: "what is this"},
				{Type: core.PartImageURL, ImageURL: &core.ImageURL{URL: "data:image/png;base64,AAEC"}},
			}}},
			statusCode:   http.StatusOK,
			responseBody: `{"choices":[{"message":{"role":"assistant","content":"a cat"}}]}`,
			want:         "a cat",
			checkRequest: func(t *testing.T, body map[string]interface{}) {
				msg := body["messages"].([]interface{})[0].(map[string]interface{})
				parts := msg["content"].([]interface{})
				if !assert.Len(t, parts, 2) {
					return
				}
				text := parts[0].(map[string]interface{})
				assert.Equal(t, "text", text["type"])
				assert.Equal(t, "what is this", text["text"])
				image := parts[1].(map[string]interface{})
				assert.Equal(t, "image_url", image["type"])
				assert.Equal(t, "data:image/png;base64,AAEC", image["image_url"].(map[string]interface{})["url"])
			},
		},
		{
			name:         "model not pulled",
			messages:     []core.Message{{Role: core.RoleUser, Text: "hi"}},
			statusCode:   http.StatusNotFound,
			responseBody: `{"error":{"message":"model \"llama3\" not found, try pulling it first","type":"api_error"}}`,
			wantErrType:  core.ErrorTypeInvalidRequest,
		},
		{
			name:         "server error",
			messages:     []core.Message{{Role: core.RoleUser, Text: "hi"}},
			statusCode:   http.StatusInternalServerError,
			responseBody: `{"error":{"message":"out of memory"}}`,
			wantErrType:  core.ErrorTypeProvider,
		},
		{
			name:         "malformed response",
			messages:     []core.Message{{Role: core.RoleUser, Text: "hi"}},
			statusCode:   http.StatusOK,
			responseBody: `{"choices":[]}`,
			wantErrType:  core.ErrorTypeProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "req-123", r.Header.Get("X-Request-ID"))

				raw, _ := io.ReadAll(r.Body)
				var body map[string]interface{}
				if assert.NoError(t, json.Unmarshal(raw, &body)) && tt.checkRequest != nil {
					tt.checkRequest(t, body)
				}

				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			b := New(Config{
				BaseURL:     server.URL,
				Model:       "llama3",
				Temperature: DefaultTemperature,
				HTTPClient:  server.Client(),
			})

			ctx := core.WithRequestID(context.Background(), "req-123")
			got, err := b.Invoke(ctx, tt.messages)

			if tt.wantErrType != "" {
				var gwErr *core.GatewayError
				require.True(t, errors.As(err, &gwErr), "expected GatewayError, got %v", err)
				assert.Equal(t, tt.wantErrType, gwErr.Type)
				assert.Equal(t, "local", gwErr.Provider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
