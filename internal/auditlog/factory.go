package auditlog

import (
	"context"
	"errors"
	"fmt"

	"aigateway/config"
)

// Result holds the initialized audit logger and the database connection
// behind it. The caller is responsible for calling Close.
type Result struct {
	Logger LoggerInterface

	release func() error
}

// Close flushes the logger and then releases the database connection.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Logger != nil {
		if err := r.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logger close: %w", err))
		}
	}
	if r.release != nil {
		if err := r.release(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		r.release = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates an audit logger from configuration.
// If audit logging is disabled it returns a NoopLogger and opens no database.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if !cfg.AuditLog.Enabled {
		return &Result{Logger: &NoopLogger{}}, nil
	}

	store, release, err := openLogStore(ctx, cfg.Storage, cfg.AuditLog.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log storage: %w", err)
	}

	return &Result{
		Logger:  NewLogger(store, buildLoggerConfig(cfg.AuditLog)),
		release: release,
	}, nil
}

// buildLoggerConfig creates an auditlog.Config from config.AuditLogConfig.
func buildLoggerConfig(c config.AuditLogConfig) Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.RetentionDays = c.RetentionDays
	if c.BufferSize > 0 {
		cfg.BufferSize = c.BufferSize
	}
	if d := c.FlushIntervalDuration(); d > 0 {
		cfg.FlushInterval = d
	}
	return cfg
}
