// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

// Config is the root of all runtime configuration. Values are resolved by
// viper with the usual precedence: defaults, then config file, then
// PERISCOPE_* environment variables, then command-line flags.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger" json:"logger"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent" json:"agent"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser" json:"browser"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model" json:"model"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report" json:"report"`
}

// LoggerConfig holds the settings for the global structured logger.
type LoggerConfig struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	// Format selects the encoder: "console" or "json".
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source" json:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	// LogFile enables a rotating file sink when non-empty.
	LogFile    string `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
	Colors     bool   `mapstructure:"colors" yaml:"colors" json:"colors"`
}

// AgentConfig bounds the control loop.
type AgentConfig struct {
	// MaxSteps is the hard stop on executed actions per session.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps" json:"max_steps"`
	// ContextWindow is the number of most recent turns retained for the
	// model. Must be at least 1.
	ContextWindow int `mapstructure:"context_window" yaml:"context_window" json:"context_window"`
	// FailureTolerance is the number of consecutive action execution
	// failures after which the session is declared stuck.
	FailureTolerance int `mapstructure:"failure_tolerance" yaml:"failure_tolerance" json:"failure_tolerance"`
	// StartURL is loaded before the first inference call.
	StartURL string `mapstructure:"start_url" yaml:"start_url" json:"start_url"`
}

// BrowserConfig shapes the managed Chrome instance and the executor.
type BrowserConfig struct {
	// Headless is off by default; the agent is meant to drive a visible tab.
	Headless       bool  `mapstructure:"headless" yaml:"headless" json:"headless"`
	ViewportWidth  int64 `mapstructure:"viewport_width" yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int64 `mapstructure:"viewport_height" yaml:"viewport_height" json:"viewport_height"`
	// HighlightCursor injects a visual marker at the pointer position
	// before each screenshot.
	HighlightCursor bool `mapstructure:"highlight_cursor" yaml:"highlight_cursor" json:"highlight_cursor"`
	// NavigationTimeout bounds full page loads.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout" json:"navigation_timeout"`
	// SettleDelay is the fixed pause between an action and its screenshot,
	// giving the page time to render the consequences.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay" json:"settle_delay"`
	// ActionsPerSecond paces executor dispatch against the shared tab.
	// Zero disables pacing.
	ActionsPerSecond float64 `mapstructure:"actions_per_second" yaml:"actions_per_second" json:"actions_per_second"`
}

// Viewport returns the configured tab dimensions as a schemas value.
func (b BrowserConfig) Viewport() schemas.Viewport {
	return schemas.Viewport{Width: b.ViewportWidth, Height: b.ViewportHeight}
}

// Provider selects the inference backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
)

// ModelConfig describes the vision model endpoint.
type ModelConfig struct {
	Provider Provider `mapstructure:"provider" yaml:"provider" json:"provider"`
	Model    string   `mapstructure:"model" yaml:"model" json:"model"`
	// Endpoint is the base URL for the ollama provider.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	// APIKey authenticates the gemini provider. Bound to
	// PERISCOPE_MODEL_API_KEY with GEMINI_API_KEY as a fallback.
	APIKey string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	// APITimeout is the total budget for one inference call including
	// transient-error retries.
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout" json:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
}

// ReportConfig controls run output artifacts.
type ReportConfig struct {
	SaveScreenshots bool `mapstructure:"save_screenshots" yaml:"save_screenshots" json:"save_screenshots"`
	// ScreenshotDir is the parent directory; each session writes into a
	// subdirectory keyed by its ID.
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir" json:"screenshot_dir"`
	// Output is the run report path. Empty writes the report to stdout.
	Output string `mapstructure:"output" yaml:"output" json:"output"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "periscope")
	v.SetDefault("logger.log_file", "periscope.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors", true)

	// -- Agent --
	v.SetDefault("agent.max_steps", 50)
	v.SetDefault("agent.context_window", 5)
	v.SetDefault("agent.failure_tolerance", 3)
	v.SetDefault("agent.start_url", "https://www.google.com")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.highlight_cursor", false)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.settle_delay", "500ms")
	v.SetDefault("browser.actions_per_second", 2.0)

	// -- Model --
	v.SetDefault("model.provider", "ollama")
	v.SetDefault("model.model", "qwen3-vl:8b")
	v.SetDefault("model.endpoint", "http://localhost:11434")
	v.SetDefault("model.api_timeout", "120s")
	v.SetDefault("model.temperature", 0.0)

	// -- Report --
	v.SetDefault("report.save_screenshots", false)
	v.SetDefault("report.screenshot_dir", "screenshots")
	v.SetDefault("report.output", "")
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper resolves and validates the full configuration from a
// viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("model.api_key", "PERISCOPE_MODEL_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Violations are
// startup-fatal and wrap the shared configuration sentinel so callers can
// distinguish them from runtime failures.
func (c *Config) Validate() error {
	if c.Agent.ContextWindow < 1 {
		return fmt.Errorf("%w: agent.context_window must be at least 1, got %d", schemas.ErrConfiguration, c.Agent.ContextWindow)
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("%w: agent.max_steps must be at least 1, got %d", schemas.ErrConfiguration, c.Agent.MaxSteps)
	}
	if c.Agent.FailureTolerance < 1 {
		return fmt.Errorf("%w: agent.failure_tolerance must be at least 1, got %d", schemas.ErrConfiguration, c.Agent.FailureTolerance)
	}
	if c.Agent.StartURL == "" {
		return fmt.Errorf("%w: agent.start_url is required", schemas.ErrConfiguration)
	}
	if c.Browser.ViewportWidth < 1 || c.Browser.ViewportHeight < 1 {
		return fmt.Errorf("%w: browser viewport must be positive, got %dx%d", schemas.ErrConfiguration, c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.ActionsPerSecond < 0 {
		return fmt.Errorf("%w: browser.actions_per_second must not be negative", schemas.ErrConfiguration)
	}
	switch c.Model.Provider {
	case ProviderOllama:
		if c.Model.Endpoint == "" {
			return fmt.Errorf("%w: model.endpoint is required for the ollama provider", schemas.ErrConfiguration)
		}
	case ProviderGemini:
		if c.Model.APIKey == "" {
			return fmt.Errorf("%w: model.api_key is required for the gemini provider (set PERISCOPE_MODEL_API_KEY)", schemas.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown model.provider %q", schemas.ErrConfiguration, c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("%w: model.model is required", schemas.ErrConfiguration)
	}
	if c.Model.APITimeout <= 0 {
		return fmt.Errorf("%w: model.api_timeout must be a positive duration", schemas.ErrConfiguration)
	}
	return nil
}
