// Package app wires configuration, backends, audit logging and the HTTP
// server together and controls their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"aigateway/config"
	"aigateway/internal/auditlog"
	"aigateway/internal/gateway"
	"aigateway/internal/httpclient"
	"aigateway/internal/llmclient"
	"aigateway/internal/observability"
	"aigateway/internal/server"
)

// App represents the main application with all its dependencies.
type App struct {
	config  *config.Config
	gateway *gateway.Gateway
	audit   *auditlog.Result
	server  *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	app := &App{
		config:  cfg,
		gateway: NewGateway(cfg),
	}

	auditResult, err := auditlog.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit logging: %w", err)
	}
	app.audit = auditResult

	app.logStartupInfo()

	app.server = server.New(app.gateway, &server.Config{
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
		SwaggerEnabled:  cfg.Server.SwaggerEnabled,
		AuditLogger:     auditResult.Logger,
	})

	return app, nil
}

// NewGateway builds the gateway and its backend resolver from cfg. Backend
// metrics are recorded only when metrics are enabled.
func NewGateway(cfg *config.Config) *gateway.Gateway {
	var hooks llmclient.Hooks
	if cfg.Metrics.Enabled {
		hooks = observability.NewPrometheusHooks()
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTP.TimeoutDuration()

	resolver := gateway.NewResolver(gateway.Config{
		LocalBaseURL: cfg.Backends.OllamaBaseURL,
		CloudAPIKey:  cfg.Backends.GoogleAPIKey,
		CloudBaseURL: cfg.Backends.GoogleBaseURL,
		HTTPClient:   httpclient.New(httpCfg),
		Hooks:        hooks,
	})
	return gateway.New(resolver)
}

// Gateway returns the request gateway.
func (a *App) Gateway() *gateway.Gateway {
	return a.gateway
}

// AuditLogger returns the audit logger interface.
func (a *App) AuditLogger() auditlog.LoggerInterface {
	if a.audit == nil {
		return nil
	}
	return a.audit.Logger
}

// Handler exposes the HTTP server for in-process use.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and then flushes the audit log.
// It is idempotent; calls after the first are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			slog.Error("audit logger close error", "error", err)
			errs = append(errs, fmt.Errorf("audit close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("backends configured",
		"local", cfg.Backends.OllamaBaseURL,
		"cloud_key_set", cfg.Backends.GoogleAPIKey != "",
	)
	if cfg.Backends.GoogleAPIKey == "" {
		slog.Warn("GOOGLE_API_KEY not set - requests with provider=cloud will fail authentication")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.AuditLog.Enabled {
		slog.Info("audit logging enabled",
			"storage_type", cfg.Storage.Type,
			"retention_days", cfg.AuditLog.RetentionDays,
		)
	} else {
		slog.Info("audit logging disabled")
	}

	if cfg.Server.SwaggerEnabled {
		slog.Info("swagger UI enabled", "path", "/swagger/index.html")
	}
}
