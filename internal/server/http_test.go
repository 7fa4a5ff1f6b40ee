package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigateway/internal/auditlog"
	"aigateway/internal/core"

	_ "aigateway/cmd/aigateway/docs"
)

func TestRequestIDMiddleware(t *testing.T) {
	srv := New(&mockGateway{}, nil)

	t.Run("generates request ID when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		if got == "" {
			t.Fatal("expected X-Request-ID in response header, got empty")
		}
		// UUID format (8-4-4-4-12 hex digits)
		if len(got) != 36 {
			t.Errorf("expected UUID (36 chars), got %q (%d chars)", got, len(got))
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "my-custom-id")
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "my-custom-id" {
			t.Errorf("expected response header X-Request-ID to be %q, got %q", "my-custom-id", got)
		}
	})
}

// ctxGateway captures the request ID visible to the gateway.
type ctxGateway struct {
	mockGateway
	requestID string
}

func (g *ctxGateway) Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error) {
	g.requestID = core.GetRequestID(ctx)
	return &core.ChatResponse{Provider: req.Provider, Model: "llama3", ResponseContent: "ok"}, nil
}

func TestRequestIDReachesGateway(t *testing.T) {
	gw := &ctxGateway{}
	srv := New(gw, nil)

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trace-42")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-42", gw.requestID)
}

func TestRoutes(t *testing.T) {
	mock := &mockGateway{response: &core.ChatResponse{Provider: core.ProviderLocal, Model: "llama3", ResponseContent: "ok"}}
	srv := New(mock, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ai/chat", http.StatusMethodNotAllowed},
		{http.MethodPost, "/ai/analyze-image", http.StatusBadRequest},
		{http.MethodPost, "/ai/estimate-age", http.StatusBadRequest},
		{http.MethodPost, "/v1/chat/completions", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestBodySizeLimit(t *testing.T) {
	mock := &mockGateway{response: &core.ChatResponse{}}
	srv := New(mock, &Config{BodySizeLimit: "1K"})

	big := `{"message":"` + strings.Repeat("a", 4096) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, mock.chatReq)
}

func TestMetricsEndpoint(t *testing.T) {
	tests := []struct {
		name           string
		config         *Config
		requestPath    string
		expectedStatus int
		expectBody     string
	}{
		{
			name:           "metrics enabled - default endpoint accessible",
			config:         &Config{MetricsEnabled: true, MetricsEndpoint: "/metrics"},
			requestPath:    "/metrics",
			expectedStatus: http.StatusOK,
			expectBody:     "go_goroutines",
		},
		{
			name:           "metrics enabled - empty endpoint defaults to /metrics",
			config:         &Config{MetricsEnabled: true},
			requestPath:    "/metrics",
			expectedStatus: http.StatusOK,
			expectBody:     "go_goroutines",
		},
		{
			name:           "metrics disabled - endpoint returns 404",
			config:         &Config{MetricsEnabled: false, MetricsEndpoint: "/metrics"},
			requestPath:    "/metrics",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "nil config - metrics disabled by default",
			requestPath:    "/metrics",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "custom metrics endpoint path is cleaned",
			config:         &Config{MetricsEnabled: true, MetricsEndpoint: "/internal//metrics/"},
			requestPath:    "/internal/metrics",
			expectedStatus: http.StatusOK,
			expectBody:     "# TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&mockGateway{}, tt.config)

			req := httptest.NewRequest(http.MethodGet, tt.requestPath, nil)
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectBody)
			}
		})
	}
}

func TestSwaggerEndpoint(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		srv := New(&mockGateway{}, &Config{SwaggerEnabled: true})

		req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "swagger")
	})

	t.Run("doc.json describes the gateway", func(t *testing.T) {
		srv := New(&mockGateway{}, &Config{SwaggerEnabled: true})

		req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "aigateway API")
		assert.Contains(t, body, "/ai/estimate-age")
	})

	t.Run("disabled", func(t *testing.T) {
		srv := New(&mockGateway{}, &Config{SwaggerEnabled: false})

		req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// captureLogger keeps every audit entry in memory.
type captureLogger struct {
	mu      sync.Mutex
	entries []*auditlog.LogEntry
}

func (l *captureLogger) Write(entry *auditlog.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *captureLogger) Config() auditlog.Config {
	return auditlog.Config{Enabled: true, BufferSize: 1, FlushInterval: time.Second}
}

func (l *captureLogger) Close() error { return nil }

func TestAuditLogging(t *testing.T) {
	audit := &captureLogger{}
	mock := &mockGateway{err: core.NewAuthenticationError("cloud", "API key not valid")}
	srv := New(mock, &Config{AuditLogger: audit})

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(`{"message":"hi","provider":"cloud","modelName":"gemini-pro"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "audit-1")
	srv.ServeHTTP(httptest.NewRecorder(), req)

	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, "chat", entry.Operation)
	assert.Equal(t, "cloud", entry.Provider)
	assert.Equal(t, "gemini-pro", entry.Model)
	assert.Equal(t, http.StatusUnauthorized, entry.StatusCode)
	assert.Equal(t, "authentication_error", entry.ErrorType)
	assert.Equal(t, "audit-1", entry.RequestID)
}

func TestAuditLogging_FailedCallRecordsDefaultModel(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      func(t *testing.T) (*bytes.Buffer, string)
		wantModel string
	}{
		{
			name: "chat on cloud",
			path: "/ai/chat",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBufferString(`{"message":"hi","provider":"cloud"}`), echo.MIMEApplicationJSON
			},
			wantModel: "gemini-1.5-flash",
		},
		{
			name: "estimate age on local",
			path: "/ai/estimate-age",
			body: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartBody(t, part{field: "image", filename: "face.png", contentType: "image/png", data: pngHeader})
			},
			wantModel: "llama3.2-vision",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &captureLogger{}
			mock := &mockGateway{err: core.NewProviderError("local", http.StatusBadGateway, "connection refused", nil)}
			srv := New(mock, &Config{AuditLogger: audit})

			body, contentType := tt.body(t)
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			require.Len(t, audit.entries, 1)
			assert.Equal(t, tt.wantModel, audit.entries[0].Model)
			assert.Equal(t, "provider_error", audit.entries[0].ErrorType)
		})
	}
}
