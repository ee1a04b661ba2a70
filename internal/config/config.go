package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CODE_EDITOR_SERVER_PORT
const EnvPrefix = "CODE_EDITOR"

// ErrMissingJWTSecret is returned when no token signing key is configured
var ErrMissingJWTSecret = errors.New("auth.jwt_secret (or JWT_SECRET) is required")

// Config is the server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Provider ProviderConfig `mapstructure:"provider"`
	Context  ContextConfig  `mapstructure:"context"`
	Applier  ApplierConfig  `mapstructure:"applier"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Session  SessionConfig  `mapstructure:"session"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type ProviderConfig struct {
	Default  string            `mapstructure:"default"`
	Model    string            `mapstructure:"model"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	BaseURLs map[string]string `mapstructure:"base_urls"`
}

type ContextConfig struct {
	MaxFiles        int `mapstructure:"max_files"`
	MaxChars        int `mapstructure:"max_chars"`
	HistoryMessages int `mapstructure:"history_messages"`
}

type ApplierConfig struct {
	ChangeDelay time.Duration `mapstructure:"change_delay"`
}

type PipelineConfig struct {
	Steps          []string      `mapstructure:"steps"`
	StepDelay      time.Duration `mapstructure:"step_delay"`
	WorkDir        string        `mapstructure:"work_dir"`
	DevServerURL   string        `mapstructure:"dev_server_url"`
	InstallCommand string        `mapstructure:"install_command"`
	DevCommand     string        `mapstructure:"dev_command"`
}

type SessionConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must not be negative, got %s", c.Provider.Timeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("database.url", "")

	v.SetDefault("provider.default", "openai")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.timeout", time.Duration(0))
	v.SetDefault("provider.base_urls", map[string]string{})

	v.SetDefault("context.max_files", 12)
	v.SetDefault("context.max_chars", 1500)
	v.SetDefault("context.history_messages", 6)

	v.SetDefault("applier.change_delay", 300*time.Millisecond)

	v.SetDefault("pipeline.steps", []string{"install", "build", "start"})
	v.SetDefault("pipeline.step_delay", 800*time.Millisecond)
	v.SetDefault("pipeline.work_dir", filepath.Join(os.TempDir(), "code-editor"))
	v.SetDefault("pipeline.dev_server_url", "http://localhost:5173")
	v.SetDefault("pipeline.install_command", "npm install")
	v.SetDefault("pipeline.dev_command", "npm run dev")

	v.SetDefault("session.idle_timeout", 2*time.Hour)
	v.SetDefault("session.janitor_interval", time.Minute)
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"port":             "server.port",
	"database-url":     "database.url",
	"provider":         "provider.default",
	"model":            "provider.model",
	"provider-timeout": "provider.timeout",
	"change-delay":     "applier.change_delay",
	"step-delay":       "pipeline.step_delay",
	"work-dir":         "pipeline.work_dir",
}

// InitFlags registers the server flags on cmd
func InitFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a configuration file (YAML, JSON or TOML)")
	flags.IntP("port", "p", 8080, "HTTP port")
	flags.String("database-url", "", "Postgres DSN for the proposal audit trail; empty keeps proposals in memory")
	flags.String("provider", "openai", "Default provider for new sessions (openai, anthropic, gemini)")
	flags.String("model", "", "Default model; empty uses the provider's default")
	flags.Duration("provider-timeout", 0, "Provider request timeout; 0 waits indefinitely")
	flags.Duration("change-delay", 300*time.Millisecond, "Delay between applied changes")
	flags.Duration("step-delay", 800*time.Millisecond, "Delay per simulated pipeline step")
	flags.String("work-dir", "", "Root directory for runtime previews")
}

// Load resolves the configuration from defaults, an optional file, the
// environment and the flags of cmd, in increasing precedence. cmd may be nil.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET: %w", err)
	}
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}

	if cmd != nil {
		if err := readConfigFile(v, cmd); err != nil {
			return nil, err
		}
		if err := bindFlags(v, cmd); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, cmd *cobra.Command) error {
	flag := cmd.Flags().Lookup("config")
	if flag == nil || flag.Value.String() == "" {
		return nil
	}

	v.SetConfigFile(flag.Value.String())
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", flag.Value.String(), err)
	}
	return nil
}

// bindFlags binds only flags the user set, so an unset flag never
// shadows a value from the environment or the config file.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}
