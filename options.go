package uniai

import "time"

// switchConfig collects the optional overrides for SwitchProvider. Fields
// left nil inherit from the current session.
type switchConfig struct {
	dropHistory  bool
	baseURL      *string
	systemPrompt *string
	temperature  *float64
	maxTokens    *int
	maxHistory   *int
	timeout      *time.Duration
	maxRetries   *int
}

// SwitchOption customizes a provider switch.
type SwitchOption func(*switchConfig)

// WithKeepHistory controls whether the conversation survives the switch.
// History is kept by default; passing false starts the new provider from
// a fresh conversation holding only the system prompt.
func WithKeepHistory(keep bool) SwitchOption {
	return func(sw *switchConfig) { sw.dropHistory = !keep }
}

// WithBaseURL points the new provider at a custom endpoint. The base URL
// never carries over from the previous provider, so set it explicitly on
// every switch that needs one.
func WithBaseURL(baseURL string) SwitchOption {
	return func(sw *switchConfig) { sw.baseURL = &baseURL }
}

// WithSystemPrompt replaces the system prompt as part of the switch.
func WithSystemPrompt(prompt string) SwitchOption {
	return func(sw *switchConfig) { sw.systemPrompt = &prompt }
}

// WithTemperature overrides the inherited sampling temperature.
func WithTemperature(temperature float64) SwitchOption {
	return func(sw *switchConfig) { sw.temperature = &temperature }
}

// WithMaxTokens overrides the inherited completion token cap.
func WithMaxTokens(maxTokens int) SwitchOption {
	return func(sw *switchConfig) { sw.maxTokens = &maxTokens }
}

// WithMaxHistory overrides the inherited history capacity. When history
// is kept and the new capacity is smaller, the oldest turns are evicted
// immediately.
func WithMaxHistory(maxHistory int) SwitchOption {
	return func(sw *switchConfig) { sw.maxHistory = &maxHistory }
}

// WithTimeout overrides the inherited per-attempt request timeout.
func WithTimeout(timeout time.Duration) SwitchOption {
	return func(sw *switchConfig) { sw.timeout = &timeout }
}

// WithMaxRetries overrides the inherited retry budget.
func WithMaxRetries(maxRetries int) SwitchOption {
	return func(sw *switchConfig) { sw.maxRetries = &maxRetries }
}
