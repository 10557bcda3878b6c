package llm

import (
	"os"
	"strings"
	"time"

	"github.com/kbukum/uniai/util"
	"github.com/kbukum/uniai/validation"
)

// Configuration defaults.
const (
	DefaultTemperature = 1.0
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
)

// Config holds everything needed to bind one provider instance. It is
// constructed once at client creation or provider switch and validated
// eagerly; out-of-range values fail fast and are never clamped.
type Config struct {
	// Provider selects the backend (e.g., "openai", "deepseek"). Must match
	// a provider registered via Register.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider" validate:"required"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key" yaml:"api_key" mapstructure:"api_key" validate:"required"`

	// Model is the model identifier (e.g., "gpt-4o-mini", "deepseek-chat").
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// SystemPrompt seeds the conversation with a leading system message.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt" mapstructure:"system_prompt"`

	// Temperature is the sampling temperature in [0.0, 2.0]. Nil means the
	// default of 1.0; an explicit 0.0 is preserved.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature" mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`

	// MaxTokens limits response length. 0 means provider default.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens" mapstructure:"max_tokens" validate:"omitempty,gt=0"`

	// MaxHistory bounds the number of non-system messages kept in memory.
	// 0 means unbounded.
	MaxHistory int `json:"max_history,omitempty" yaml:"max_history" mapstructure:"max_history" validate:"omitempty,gt=0"`

	// Timeout bounds each network round trip. Defaults to 60s. A chat call
	// with retries may take up to Timeout * (MaxRetries + 1) overall.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// MaxRetries is how many times a failed provider call is retried. Nil
	// means the default of 3; an explicit 0 disables retries.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries" mapstructure:"max_retries" validate:"omitempty,gte=0"`
}

// ApplyDefaults fills unset fields with their defaults. Explicitly set
// zero values on pointer fields are left alone.
func (c *Config) ApplyDefaults() {
	if c.Temperature == nil {
		c.Temperature = util.Ptr(DefaultTemperature)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == nil {
		c.MaxRetries = util.Ptr(DefaultMaxRetries)
	}
}

// Validate checks all fields and returns a configuration error naming every
// violation. Call ApplyDefaults first when zero values should mean defaults.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// ConfigFromEnv assembles a Config for the named provider from environment
// variables. The API key comes from <PROVIDER>_API_KEY (OPENAI_API_KEY and
// so on), falling back to UNIAI_API_KEY; model, base URL and system prompt
// come from UNIAI_MODEL, UNIAI_BASE_URL and UNIAI_SYSTEM_PROMPT. The result
// still goes through ApplyDefaults and Validate in New.
func ConfigFromEnv(provider string) Config {
	envName := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	return Config{
		Provider:     provider,
		APIKey:       util.Coalesce(os.Getenv(envName+"_API_KEY"), os.Getenv("UNIAI_API_KEY")),
		Model:        os.Getenv("UNIAI_MODEL"),
		BaseURL:      os.Getenv("UNIAI_BASE_URL"),
		SystemPrompt: os.Getenv("UNIAI_SYSTEM_PROMPT"),
	}
}
