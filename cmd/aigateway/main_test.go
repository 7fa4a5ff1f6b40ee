package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigateway/internal/core"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// isolate points config loading at an empty directory and the given Ollama URL.
func isolate(t *testing.T, ollamaURL string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("AIGATEWAY_CONFIG", "")
	t.Setenv("OLLAMA_BASE_URL", ollamaURL)
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")
}

func fakeOllama(t *testing.T, reply string, got *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.Equal(t, "/v1/chat/completions", r.URL.Path) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			_ = json.Unmarshal(body, got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"message": map[string]interface{}{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatCommand(t *testing.T) {
	var sent map[string]interface{}
	srv := fakeOllama(t, "Hello back", &sent)
	isolate(t, srv.URL)

	cmd := newChatCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--model", "mistral", "hello", "there"})

	require.NoError(t, cmd.Execute())

	var resp core.ChatResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, core.ProviderLocal, resp.Provider)
	assert.Equal(t, "mistral", resp.Model)
	assert.Equal(t, "Hello back", resp.ResponseContent)
	assert.Equal(t, "mistral", sent["model"])
}

func TestEstimateAgeCommand(t *testing.T) {
	srv := fakeOllama(t, "About 35 years old.", nil)
	isolate(t, srv.URL)

	path := filepath.Join(t.TempDir(), "face.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	cmd := newEstimateAgeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	var resp core.ChatResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "llama3.2-vision", resp.Model)
	assert.Equal(t, "About 35 years old.", resp.ResponseContent)
}

func TestCommands_RejectUnknownProvider(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")

	cmd := newChatCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--provider", "openai", "hi"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidProvider)
}

func TestAnalyzeImageCommand_MissingFile(t *testing.T) {
	cmd := newAnalyzeImageCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.png")})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read image")
}

func TestImageRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	req, err := imageRequest(path, backendFlags{provider: "cloud", model: "gemini-pro"})

	require.NoError(t, err)
	assert.Equal(t, "image/png", req.MIMEType)
	assert.Equal(t, core.ProviderCloud, req.Provider)
	assert.Equal(t, "gemini-pro", req.ModelName)
	assert.Equal(t, pngHeader, req.Image)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "aigateway")
}
