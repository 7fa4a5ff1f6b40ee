package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AIGATEWAY_CONFIG", "PORT", "BODY_SIZE_LIMIT", "OLLAMA_BASE_URL", "GOOGLE_API_KEY",
		"GOOGLE_BASE_URL", "LOG_FORMAT", "LOG_LEVEL", "METRICS_ENABLED", "METRICS_ENDPOINT",
		"SWAGGER_ENABLED", "AUDIT_LOG_ENABLED", "AUDIT_LOG_RETENTION_DAYS", "AUDIT_LOG_BUFFER_SIZE",
		"AUDIT_LOG_FLUSH_INTERVAL", "STORAGE_TYPE", "SQLITE_PATH", "POSTGRES_URL",
		"POSTGRES_MAX_CONNS", "MONGODB_URL", "MONGODB_DATABASE", "HTTP_TIMEOUT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "http://localhost:11434", cfg.Backends.OllamaBaseURL)
	assert.Empty(t, cfg.Backends.GoogleAPIKey)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.False(t, cfg.AuditLog.Enabled)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 600*time.Second, cfg.HTTP.TimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.AuditLog.FlushIntervalDuration())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("GOOGLE_API_KEY", "AIza-test")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("AUDIT_LOG_ENABLED", "true")
	t.Setenv("AUDIT_LOG_BUFFER_SIZE", "50")
	t.Setenv("HTTP_TIMEOUT", "30")

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Backends.OllamaBaseURL)
	assert.Equal(t, "AIza-test", cfg.Backends.GoogleAPIKey)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.AuditLog.Enabled)
	assert.Equal(t, 50, cfg.AuditLog.BufferSize)
	assert.Equal(t, 30*time.Second, cfg.HTTP.TimeoutDuration())
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("PORT=7070\nGOOGLE_API_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("PORT")
		_ = os.Unsetenv("GOOGLE_API_KEY")
	})

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "from-dotenv", cfg.Backends.GoogleAPIKey)
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("PORT=7070\n"), 0o600))
	t.Setenv("PORT", "9090")

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_YAMLFileWithExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "gpu-box")
	yamlContent := `
server:
  port: "4000"
backends:
  ollama_base_url: "http://${OLLAMA_HOST}:11434"
  google_api_key: "${UNSET_KEY:-}"
storage:
  type: postgresql
  postgresql:
    url: "postgres://u:p@db/aigateway"
`
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o600))
	t.Setenv("AIGATEWAY_CONFIG", path)
	t.Setenv("PORT", "4001")

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, "4001", cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, "http://gpu-box:11434", cfg.Backends.OllamaBaseURL)
	assert.Empty(t, cfg.Backends.GoogleAPIKey)
	assert.Equal(t, "postgresql", cfg.Storage.Type)
	assert.Equal(t, 10, cfg.Storage.PostgreSQL.MaxConns, "unset nested fields keep defaults")
}

func TestLoad_ExplicitConfigMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIGATEWAY_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load(nil)

	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}},
		{"bad ollama url", map[string]string{"OLLAMA_BASE_URL": "not a url"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"bad storage type", map[string]string{"STORAGE_TYPE": "redis"}},
		{"bad bool", map[string]string{"METRICS_ENABLED": "sometimes"}},
		{"bad int", map[string]string{"HTTP_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"HTTP_TIMEOUT": "0"}},
		{"body limit too big", map[string]string{"BODY_SIZE_LIMIT": "1G"}},
		{"postgres without url", map[string]string{"AUDIT_LOG_ENABLED": "true", "STORAGE_TYPE": "postgresql"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(nil)

			assert.Error(t, err)
		})
	}
}

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(newFlagSet(t, "--port", "5050", "--log-format", "json"))

	require.NoError(t, err)
	assert.Equal(t, "5050", cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "warn", cfg.Logging.Level, "unset flags leave lower layers alone")
	assert.Equal(t, "http://localhost:11434", cfg.Backends.OllamaBaseURL)
}

func TestLoad_ConfigFlag(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "flag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audit_log:\n  buffer_size: 25\nhttp:\n  timeout: \"45\"\n"), 0o600))
	t.Setenv("AIGATEWAY_CONFIG", filepath.Join(t.TempDir(), "ignored.yaml"))

	cfg, err := Load(newFlagSet(t, "--config", path))

	require.NoError(t, err)
	assert.Equal(t, 25, cfg.AuditLog.BufferSize)
	assert.Equal(t, 45*time.Second, cfg.HTTP.TimeoutDuration())
}

func TestLoad_DefaultConfigFileInWorkingDir(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("metrics:\n  enabled: false\n"), 0o600))

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "10M", cfg.Server.BodySizeLimit)
	assert.Equal(t, 10, cfg.Storage.PostgreSQL.MaxConns)
	assert.Equal(t, "aigateway", cfg.Storage.MongoDB.Database)
	assert.NoError(t, cfg.Validate())
}

func TestValidateBodySizeLimit(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"empty string is valid", "", false},
		{"plain number", "1048576", false},
		{"kilobytes lowercase", "100k", false},
		{"kilobytes with B suffix", "100KB", false},
		{"megabytes uppercase", "10M", false},
		{"megabytes with B suffix", "10MB", false},
		{"whitespace trimmed", "  10M  ", false},
		{"minimum valid (1KB)", "1K", false},
		{"maximum valid (100MB)", "100M", false},

		{"invalid format with letters", "abc", true},
		{"invalid unit", "10X", true},
		{"negative number", "-10M", true},
		{"decimal number", "10.5M", true},
		{"empty unit with B", "10B", true},
		{"below minimum (100 bytes)", "100", true},
		{"above maximum (200MB)", "200M", true},
		{"above maximum (1GB)", "1G", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBodySizeLimit(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
