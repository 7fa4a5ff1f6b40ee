// Package config provides configuration management for the application.
//
// Values are layered by viper, lowest priority first: built-in defaults, an
// optional YAML file (config.yaml, or the path in AIGATEWAY_CONFIG or
// --config), the environment (seeded from an optional .env file), and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backends BackendsConfig `mapstructure:"backends"`
	Logging  LogConfig      `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	AuditLog AuditLogConfig `mapstructure:"audit_log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string `mapstructure:"port" validate:"required,numeric"`
	BodySizeLimit  string `mapstructure:"body_size_limit"`
	SwaggerEnabled bool   `mapstructure:"swagger_enabled"`
}

// BackendsConfig holds the connection settings of the two model backends.
type BackendsConfig struct {
	// OllamaBaseURL is the root of the local Ollama server.
	OllamaBaseURL string `mapstructure:"ollama_base_url" validate:"required,url"`
	// GoogleAPIKey authenticates Gemini calls. Empty is allowed; cloud
	// requests then fail with an authentication error.
	GoogleAPIKey string `mapstructure:"google_api_key"`
	// GoogleBaseURL overrides the Gemini endpoint (tests, proxies).
	GoogleBaseURL string `mapstructure:"google_base_url" validate:"omitempty,url"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Format is "auto" (colored when attached to a terminal), "text" or "json".
	Format string `mapstructure:"format" validate:"oneof=auto text json"`
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint" validate:"startswith=/"`
}

// AuditLogConfig holds request audit settings
type AuditLogConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// RetentionDays of 0 keeps entries forever.
	RetentionDays int `mapstructure:"retention_days" validate:"gte=0"`
	BufferSize    int `mapstructure:"buffer_size" validate:"gt=0"`
	// FlushInterval in seconds.
	FlushInterval int `mapstructure:"flush_interval" validate:"gt=0"`
}

// StorageConfig selects and configures the audit log database.
type StorageConfig struct {
	Type       string           `mapstructure:"type" validate:"oneof=sqlite postgresql mongodb"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgresql"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgreSQLConfig holds PostgreSQL settings
type PostgreSQLConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns" validate:"gte=0"`
}

// MongoDBConfig holds MongoDB settings
type MongoDBConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// HTTPConfig configures the outbound HTTP client shared by both backends.
type HTTPConfig struct {
	// Timeout in seconds for a whole backend call.
	Timeout int `mapstructure:"timeout" validate:"gt=0"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c HTTPConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// FlushIntervalDuration returns FlushInterval as a time.Duration.
func (c AuditLogConfig) FlushIntervalDuration() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// envKeys maps each config key onto the environment variable that sets it.
var envKeys = map[string]string{
	"server.port":                  "PORT",
	"server.body_size_limit":       "BODY_SIZE_LIMIT",
	"server.swagger_enabled":       "SWAGGER_ENABLED",
	"backends.ollama_base_url":     "OLLAMA_BASE_URL",
	"backends.google_api_key":      "GOOGLE_API_KEY",
	"backends.google_base_url":     "GOOGLE_BASE_URL",
	"logging.format":               "LOG_FORMAT",
	"logging.level":                "LOG_LEVEL",
	"metrics.enabled":              "METRICS_ENABLED",
	"metrics.endpoint":             "METRICS_ENDPOINT",
	"audit_log.enabled":            "AUDIT_LOG_ENABLED",
	"audit_log.retention_days":     "AUDIT_LOG_RETENTION_DAYS",
	"audit_log.buffer_size":        "AUDIT_LOG_BUFFER_SIZE",
	"audit_log.flush_interval":     "AUDIT_LOG_FLUSH_INTERVAL",
	"storage.type":                 "STORAGE_TYPE",
	"storage.sqlite.path":          "SQLITE_PATH",
	"storage.postgresql.url":       "POSTGRES_URL",
	"storage.postgresql.max_conns": "POSTGRES_MAX_CONNS",
	"storage.mongodb.url":          "MONGODB_URL",
	"storage.mongodb.database":     "MONGODB_DATABASE",
	"http.timeout":                 "HTTP_TIMEOUT",
}

// flagKeys maps command-line flags registered by RegisterFlags onto config keys.
var flagKeys = map[string]string{
	"port":       "server.port",
	"ollama-url": "backends.ollama_base_url",
	"log-format": "logging.format",
	"log-level":  "logging.level",
}

const configFileKey = "config_file"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.body_size_limit", "10M")
	v.SetDefault("server.swagger_enabled", true)
	v.SetDefault("backends.ollama_base_url", "http://localhost:11434")
	v.SetDefault("backends.google_api_key", "")
	v.SetDefault("backends.google_base_url", "")
	v.SetDefault("logging.format", "auto")
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("audit_log.enabled", false)
	v.SetDefault("audit_log.retention_days", 30)
	v.SetDefault("audit_log.buffer_size", 1000)
	v.SetDefault("audit_log.flush_interval", 5)
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite.path", "data/aigateway.db")
	v.SetDefault("storage.postgresql.url", "")
	v.SetDefault("storage.postgresql.max_conns", 10)
	v.SetDefault("storage.mongodb.url", "")
	v.SetDefault("storage.mongodb.database", "aigateway")
	v.SetDefault("http.timeout", 600)
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// RegisterFlags adds the command-line overrides Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file (env AIGATEWAY_CONFIG, default config.yaml)")
	fs.String("port", "", "HTTP listen port (env PORT)")
	fs.String("ollama-url", "", "Ollama base URL (env OLLAMA_BASE_URL)")
	fs.String("log-format", "", "log format: auto, text or json (env LOG_FORMAT)")
	fs.String("log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
}

// Load reads configuration from file, environment and flags. flags may be
// nil; otherwise only flags the user actually set take effect.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// .env is optional; godotenv never overrides variables already set.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv(configFileKey, "AIGATEWAY_CONFIG"); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	path := v.GetString(configFileKey)
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	if err := mergeYAML(v, path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if f := flags.Lookup("config"); f != nil {
		if err := v.BindPFlag(configFileKey, f); err != nil {
			return err
		}
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// mergeYAML expands ${VAR} references in the file and merges it under the
// environment and flag layers.
func mergeYAML(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal([]byte(expandString(string(data))), &values); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return v.MergeConfigMap(values)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. Unset or empty variables
// without a default are left as-is.
func expandString(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if val := os.Getenv(name); val != "" {
			return val
		}
		if hasDefault {
			return def
		}
		return match
	})
}

var validate = validator.New()

// Validate checks field constraints and the body size limit format.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ValidateBodySizeLimit(c.Server.BodySizeLimit); err != nil {
		return err
	}
	switch c.Storage.Type {
	case "postgresql":
		if c.AuditLog.Enabled && c.Storage.PostgreSQL.URL == "" {
			return errors.New("invalid configuration: POSTGRES_URL is required for postgresql storage")
		}
	case "mongodb":
		if c.AuditLog.Enabled && c.Storage.MongoDB.URL == "" {
			return errors.New("invalid configuration: MONGODB_URL is required for mongodb storage")
		}
	}
	return nil
}

const (
	minBodySizeLimit = 1 << 10
	maxBodySizeLimit = 100 << 20
)

var bodySizePattern = regexp.MustCompile(`^(\d+)(?:([KMGkmg])[Bb]?)?$`)

// ValidateBodySizeLimit accepts echo-style sizes such as "512K", "10M" or
// "10MB" between 1KB and 100MB. Empty means the default.
func ValidateBodySizeLimit(limit string) error {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return nil
	}
	m := bodySizePattern.FindStringSubmatch(limit)
	if m == nil {
		return fmt.Errorf("invalid body size limit %q: expected a number with optional K, M or G suffix", limit)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid body size limit %q: %w", limit, err)
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n <<= 10
	case "M":
		n <<= 20
	case "G":
		n <<= 30
	}
	if n < minBodySizeLimit || n > maxBodySizeLimit {
		return fmt.Errorf("invalid body size limit %q: must be between 1K and 100M", limit)
	}
	return nil
}
