// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Healer      HealerConfig      `mapstructure:"healer" yaml:"healer"`
	GitHub      GitHubConfig      `mapstructure:"github" yaml:"github"`
	Sandbox     SandboxConfig     `mapstructure:"sandbox" yaml:"sandbox"`
	Runner      RunnerConfig      `mapstructure:"runner" yaml:"runner"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Attestation AttestationConfig `mapstructure:"attestation" yaml:"attestation"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// HealerConfig tunes the healing loop. MaxAttempts and SessionTimeout bound
// the loop; RequireFork selects the fork policy (false means fall back to
// cloning the original repository when forking fails, which requires the
// bot token to carry write scope on it).
type HealerConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`
	EmitterGrace   time.Duration `mapstructure:"emitter_grace" yaml:"emitter_grace"`
	RequireFork    bool          `mapstructure:"require_fork" yaml:"require_fork"`
	// DefaultTeamName and DefaultLeaderName seed the healing branch name
	// when the start request does not carry its own.
	DefaultTeamName   string `mapstructure:"default_team_name" yaml:"default_team_name"`
	DefaultLeaderName string `mapstructure:"default_leader_name" yaml:"default_leader_name"`
}

// GitHubConfig defines the hosting API credentials and committer identity.
type GitHubConfig struct {
	Token       string `mapstructure:"token" yaml:"-"`
	BotUser     string `mapstructure:"bot_user" yaml:"bot_user"`
	APIBaseURL  string `mapstructure:"api_base_url" yaml:"api_base_url"`
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
}

// SandboxConfig controls the session workspaces.
type SandboxConfig struct {
	// Root is the parent directory for all sandboxes. Empty means the
	// system temp directory.
	Root string `mapstructure:"root" yaml:"root"`
	// CommandTimeout is the default hard timeout for shell invocations
	// that do not specify their own.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// RunnerConfig bounds dependency installation and test execution.
type RunnerConfig struct {
	InstallTimeout time.Duration `mapstructure:"install_timeout" yaml:"install_timeout"`
	TestTimeout    time.Duration `mapstructure:"test_timeout" yaml:"test_timeout"`
}

// LLMProvider defines the supported model providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for a single model.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// LLMConfig routes generation requests to a fast or powerful model.
type LLMConfig struct {
	Fast     LLMModelConfig `mapstructure:"fast" yaml:"fast"`
	Powerful LLMModelConfig `mapstructure:"powerful" yaml:"powerful"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	// Path is the badger database directory. Empty selects the in-memory
	// store, which does not survive a restart.
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AttestationConfig configures the optional fix-attestation recorder.
type AttestationConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"-"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "mendbot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Healer --
	v.SetDefault("healer.max_attempts", 5)
	v.SetDefault("healer.session_timeout", "5m")
	v.SetDefault("healer.emitter_grace", "10s")
	v.SetDefault("healer.require_fork", false)
	v.SetDefault("healer.default_team_name", "mendbot")
	v.SetDefault("healer.default_leader_name", "auto")

	// -- GitHub --
	v.SetDefault("github.bot_user", "")
	v.SetDefault("github.api_base_url", "")
	v.SetDefault("github.author_name", "mendbot")
	v.SetDefault("github.author_email", "mendbot@users.noreply.github.com")

	// -- Sandbox --
	v.SetDefault("sandbox.root", "")
	v.SetDefault("sandbox.command_timeout", "60s")

	// -- Runner --
	v.SetDefault("runner.install_timeout", "3m")
	v.SetDefault("runner.test_timeout", "2m")

	// -- LLM --
	v.SetDefault("llm.fast.provider", "gemini")
	v.SetDefault("llm.fast.model", "gemini-2.5-flash")
	v.SetDefault("llm.fast.api_timeout", "60s")
	v.SetDefault("llm.fast.temperature", 0.2)
	v.SetDefault("llm.powerful.provider", "gemini")
	v.SetDefault("llm.powerful.model", "gemini-2.5-pro")
	v.SetDefault("llm.powerful.api_timeout", "120s")
	v.SetDefault("llm.powerful.temperature", 0.1)

	// -- Store --
	v.SetDefault("store.path", "")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	// -- Attestation --
	v.SetDefault("attestation.enabled", false)
	v.SetDefault("attestation.endpoint", "")
	v.SetDefault("attestation.timeout", "10s")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	_ = v.BindEnv("github.token", "MENDBOT_GITHUB_TOKEN")
	_ = v.BindEnv("llm.fast.api_key", "MENDBOT_LLM_API_KEY")
	_ = v.BindEnv("llm.powerful.api_key", "MENDBOT_LLM_API_KEY")
	_ = v.BindEnv("attestation.api_key", "MENDBOT_ATTEST_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal does not consult BindEnv for keys absent from the file.
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("MENDBOT_GITHUB_TOKEN")
	}
	if cfg.LLM.Fast.APIKey == "" {
		cfg.LLM.Fast.APIKey = os.Getenv("MENDBOT_LLM_API_KEY")
	}
	if cfg.LLM.Powerful.APIKey == "" {
		cfg.LLM.Powerful.APIKey = os.Getenv("MENDBOT_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Healer.MaxAttempts <= 0 {
		return fmt.Errorf("healer.max_attempts must be a positive integer")
	}
	if c.Healer.SessionTimeout <= 0 {
		return fmt.Errorf("healer.session_timeout must be a positive duration")
	}
	if c.Runner.TestTimeout <= 0 || c.Runner.InstallTimeout <= 0 {
		return fmt.Errorf("runner timeouts must be positive durations")
	}
	if c.Attestation.Enabled && c.Attestation.Endpoint == "" {
		return fmt.Errorf("attestation.endpoint is required when attestation is enabled")
	}
	return nil
}

// SandboxRoot resolves the sandbox parent directory.
func (c *Config) SandboxRoot() string {
	if c.Sandbox.Root != "" {
		return c.Sandbox.Root
	}
	return filepath.Join(os.TempDir(), "mendbot")
}
