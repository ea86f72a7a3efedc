package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("LICENSEGATE_CONFIG", path)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LICENSEGATE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "licensegate.db", cfg.Store.DSN)
	assert.False(t, cfg.Security.RequireSignature)
	assert.Equal(t, 100*time.Millisecond, cfg.Security.DelayMin)
	assert.Equal(t, 300*time.Millisecond, cfg.Security.DelayMax)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 9090
store:
  driver: memory
security:
  signing_secret: file-secret
  require_signature: true
logging:
  level: debug
  format: text
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "file-secret", cfg.Security.SigningSecret)
	assert.True(t, cfg.Security.RequireSignature)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 9090
`)
	t.Setenv("LICENSEGATE_SERVER_PORT", "7070")
	t.Setenv("LICENSEGATE_SECURITY_SIGNING_SECRET", "env-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Security.SigningSecret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "unknown store driver",
		},
		{
			name:    "sqlite without dsn",
			mutate:  func(c *Config) { c.Store.DSN = "" },
			wantErr: "requires a dsn",
		},
		{
			name:    "strict mode without secret",
			mutate:  func(c *Config) { c.Security.RequireSignature = true },
			wantErr: "signing_secret is empty",
		},
		{
			name: "inverted delay window",
			mutate: func(c *Config) {
				c.Security.DelayMin = 500 * time.Millisecond
				c.Security.DelayMax = 100 * time.Millisecond
			},
			wantErr: "invalid delay window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
