// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  grpc_addr: "127.0.0.1:6000"
  http_addr: "127.0.0.1:6001"

database:
  path: "./test.db"
  driver: "sqlite3"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  token_ttl: "24h"

verification:
  code_ttl: "10m"
  code_length: 8
  max_attempts: 3
  attempt_window: "1h"

ownership:
  resource_kinds: [file_path, notebook]

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.Server.GRPCAddr)
	assert.Equal(t, "127.0.0.1:6001", cfg.Server.HTTPAddr)
	assert.Equal(t, "./test.db", cfg.Database.Path)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Verification.CodeTTL)
	assert.Equal(t, 8, cfg.Verification.CodeLength)
	assert.Equal(t, 3, cfg.Verification.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Verification.AttemptWindow)
	assert.Equal(t, []string{"file_path", "notebook"}, cfg.Ownership.ResourceKinds)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Fields not in the file keep their defaults.
	assert.Equal(t, 10, cfg.Verification.BcryptCost)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
grpc_addr = "127.0.0.1:7000"
http_addr = "127.0.0.1:7001"

[database]
path = "./identity.db"

[verification]
code_ttl = "5m"
max_attempts = 2

[ownership]
resource_kinds = ["reminder"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.GRPCAddr)
	assert.Equal(t, "./identity.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Verification.CodeTTL)
	assert.Equal(t, 2, cfg.Verification.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Verification.AttemptWindow)
	assert.Equal(t, []string{"reminder"}, cfg.Ownership.ResourceKinds)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_IDENTITY_SECRET", "secret-from-env-that-is-32-bytes")
	t.Setenv("TEST_IDENTITY_DB", "/tmp/from-env.db")

	path := writeConfig(t, "config.yaml", `
database:
  path: "${TEST_IDENTITY_DB}"
auth:
  jwt_secret: "${TEST_IDENTITY_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, "secret-from-env-that-is-32-bytes", cfg.Auth.JWTSecret)
}

func TestLoad_UnsetEnvVarDisablesAuth(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
auth:
  jwt_secret: "${TEST_IDENTITY_SECRET_THAT_IS_NOT_SET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad duration",
			content: "verification:\n  code_ttl: \"soon\"\n",
			wantErr: "verification.code_ttl",
		},
		{
			name:    "short secret",
			content: "auth:\n  jwt_secret: \"short\"\n",
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "code length too small",
			content: "verification:\n  code_length: 3\n",
			wantErr: "verification.code_length",
		},
		{
			name:    "no resource kinds",
			content: "ownership:\n  resource_kinds: []\n",
			wantErr: "ownership.resource_kinds",
		},
		{
			name:    "unknown driver",
			content: "database:\n  driver: \"postgres\"\n",
			wantErr: "database.driver",
		},
		{
			name:    "malformed yaml",
			content: "server: [unclosed\n",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate_Tailscale(t *testing.T) {
	cfg := Default()
	cfg.Server = ServerConfig{}
	require.Error(t, cfg.Validate(), "addresses are required without tailscale")

	cfg.Tailscale.Enabled = true
	require.NoError(t, cfg.Validate())

	cfg.Tailscale.Hostname = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tailscale.hostname")
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSave_LoadsBack(t *testing.T) {
	for _, name := range []string{"identity.yaml", "identity.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.Path = "/tmp/identity.db"
			cfg.Auth.JWTSecret = strings.Repeat("k", 32)
			cfg.Verification.CodeTTLRaw = "5m"

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, Save(path, cfg, "generated for a test"))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(data), "# generated for a test\n"))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "/tmp/identity.db", loaded.Database.Path)
			assert.Equal(t, cfg.Auth.JWTSecret, loaded.Auth.JWTSecret)
			assert.Equal(t, 5*time.Minute, loaded.Verification.CodeTTL)
			assert.Equal(t, cfg.Ownership.ResourceKinds, loaded.Ownership.ResourceKinds)
		})
	}
}
