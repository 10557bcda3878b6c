// Package deepseek implements the provider contract for DeepSeek.
// DeepSeek exposes an OpenAI-compatible chat completions API, so this
// package reuses the openai transport under its own name and endpoint.
package deepseek

import (
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/llm/openai"
)

const (
	// ProviderName is the registered name for the DeepSeek provider.
	ProviderName = "deepseek"

	// DefaultBaseURL is DeepSeek's public API endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is DeepSeek's general-purpose chat model.
	DefaultModel = "deepseek-chat"
)

func init() {
	llm.Register(ProviderName, New)
}

// New creates a DeepSeek provider from the given config.
func New(cfg llm.Config) (llm.Provider, error) {
	return openai.NewCompatible(ProviderName, DefaultBaseURL, cfg)
}

// DefaultConfig returns a Config for DeepSeek with the default model filled in.
func DefaultConfig(apiKey string) llm.Config {
	return llm.Config{Provider: ProviderName, APIKey: apiKey, Model: DefaultModel}
}
