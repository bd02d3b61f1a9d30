// ABOUTME: Configuration loading and parsing for coven-identity
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength matches the HS256 secret floor enforced by internal/auth.
const MinJWTSecretLength = 32

// Config represents the complete coven-identity configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Tailscale    TailscaleConfig    `yaml:"tailscale" toml:"tailscale"`
	Database     DatabaseConfig     `yaml:"database" toml:"database"`
	Auth         AuthConfig         `yaml:"auth" toml:"auth"`
	Verification VerificationConfig `yaml:"verification" toml:"verification"`
	Ownership    OwnershipConfig    `yaml:"ownership" toml:"ownership"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// VerificationConfig holds verification code settings
type VerificationConfig struct {
	CodeTTL       time.Duration `yaml:"-" toml:"-"`
	CodeLength    int           `yaml:"code_length" toml:"code_length"`
	MaxAttempts   int           `yaml:"max_attempts" toml:"max_attempts"`
	AttemptWindow time.Duration `yaml:"-" toml:"-"`
	BcryptCost    int           `yaml:"bcrypt_cost" toml:"bcrypt_cost"`

	// Raw string values for unmarshaling
	CodeTTLRaw       string `yaml:"code_ttl" toml:"code_ttl"`
	AttemptWindowRaw string `yaml:"attempt_window" toml:"attempt_window"`
}

// OwnershipConfig lists the resource kinds repointed by merge and split.
type OwnershipConfig struct {
	ResourceKinds []string `yaml:"resource_kinds" toml:"resource_kinds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr: "0.0.0.0:50061",
			HTTPAddr: "0.0.0.0:8081",
		},
		Tailscale: TailscaleConfig{
			Hostname: "coven-identity",
		},
		Database: DatabaseConfig{
			Path:   "/var/lib/coven-identity/identity.db",
			Driver: "sqlite",
		},
		Auth: AuthConfig{
			TokenTTL:    720 * time.Hour,
			TokenTTLRaw: "720h",
		},
		Verification: VerificationConfig{
			CodeTTL:          15 * time.Minute,
			CodeLength:       6,
			MaxAttempts:      5,
			AttemptWindow:    15 * time.Minute,
			BcryptCost:       10,
			CodeTTLRaw:       "15m",
			AttemptWindowRaw: "15m",
		},
		Ownership: OwnershipConfig{
			ResourceKinds: []string{"file_path", "table_path", "collection", "reminder", "workflow"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Fields the file leaves out keep the values from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server addresses are required unless Tailscale is enabled
	if !c.Tailscale.Enabled {
		if c.Server.GRPCAddr == "" {
			return fmt.Errorf("server.grpc_addr is required (or enable tailscale)")
		}
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required (or enable tailscale)")
		}
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Database.Driver {
	case "", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	v := c.Verification
	if v.CodeLength < 4 || v.CodeLength > 10 {
		return fmt.Errorf("verification.code_length must be between 4 and 10, got %d", v.CodeLength)
	}
	if v.CodeTTL <= 0 {
		return fmt.Errorf("verification.code_ttl must be positive")
	}
	if v.MaxAttempts < 1 {
		return fmt.Errorf("verification.max_attempts must be at least 1")
	}
	if v.AttemptWindow <= 0 {
		return fmt.Errorf("verification.attempt_window must be positive")
	}

	if len(c.Ownership.ResourceKinds) == 0 {
		return fmt.Errorf("ownership.resource_kinds must list at least one kind")
	}
	for _, kind := range c.Ownership.ResourceKinds {
		if strings.TrimSpace(kind) == "" {
			return fmt.Errorf("ownership.resource_kinds must not contain empty kinds")
		}
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"verification.code_ttl", cfg.Verification.CodeTTLRaw, &cfg.Verification.CodeTTL},
		{"verification.attempt_window", cfg.Verification.AttemptWindowRaw, &cfg.Verification.AttemptWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Save writes cfg to path, as TOML when the extension is .toml and as YAML
// otherwise, creating the parent directory. The file is readable only by
// its owner since it may carry the signing secret.
func Save(path string, cfg *Config, header string) error {
	var buf bytes.Buffer
	for _, line := range strings.Split(strings.TrimRight(header, "\n"), "\n") {
		if line != "" {
			fmt.Fprintf(&buf, "# %s\n", line)
		}
	}
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
