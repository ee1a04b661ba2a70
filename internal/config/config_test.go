package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	InitFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "openai", cfg.Provider.Default)
	assert.Zero(t, cfg.Provider.Timeout)
	assert.Equal(t, 12, cfg.Context.MaxFiles)
	assert.Equal(t, 1500, cfg.Context.MaxChars)
	assert.Equal(t, 6, cfg.Context.HistoryMessages)
	assert.Equal(t, 300*time.Millisecond, cfg.Applier.ChangeDelay)
	assert.Equal(t, []string{"install", "build", "start"}, cfg.Pipeline.Steps)
	assert.Equal(t, 800*time.Millisecond, cfg.Pipeline.StepDelay)
	assert.Equal(t, "npm install", cfg.Pipeline.InstallCommand)
	assert.Equal(t, "npm run dev", cfg.Pipeline.DevCommand)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CODE_EDITOR_SERVER_PORT", "9090")
	t.Setenv("CODE_EDITOR_PROVIDER_TIMEOUT", "30s")
	t.Setenv("CODE_EDITOR_CONTEXT_MAX_FILES", "4")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_URL", "postgres://localhost/editor")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 4, cfg.Context.MaxFiles)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://localhost/editor", cfg.Database.URL)
}

func TestLoad_PrefixedSecretWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "generic")
	t.Setenv("CODE_EDITOR_AUTH_JWT_SECRET", "prefixed")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Auth.JWTSecret)
}

func TestLoad_ConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
auth:
  jwt_secret: from-file
provider:
  default: anthropic
  base_urls:
    openai: http://localhost:4000/v1
pipeline:
  steps: [lint, build]
`), 0o644))

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(newCommand(t, "--config", path))
		require.NoError(t, err)

		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
		assert.Equal(t, "anthropic", cfg.Provider.Default)
		assert.Equal(t, "http://localhost:4000/v1", cfg.Provider.BaseURLs["openai"])
		assert.Equal(t, []string{"lint", "build"}, cfg.Pipeline.Steps)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("CODE_EDITOR_SERVER_PORT", "7100")

		cfg, err := Load(newCommand(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, 7100, cfg.Server.Port)
	})

	t.Run("flags override everything", func(t *testing.T) {
		t.Setenv("CODE_EDITOR_SERVER_PORT", "7100")

		cfg, err := Load(newCommand(t, "--config", path, "--port", "7200", "--provider", "gemini", "--step-delay", "0s"))
		require.NoError(t, err)
		assert.Equal(t, 7200, cfg.Server.Port)
		assert.Equal(t, "gemini", cfg.Provider.Default)
		assert.Zero(t, cfg.Pipeline.StepDelay)
	})

	t.Run("unset flags keep file values", func(t *testing.T) {
		cfg, err := Load(newCommand(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.Provider.Default)
	})
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(newCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(nil)
		require.NoError(t, err)
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "  " }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, true},
		{"negative provider timeout", func(c *Config) { c.Provider.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg := valid()
	cfg.Auth.JWTSecret = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
}
