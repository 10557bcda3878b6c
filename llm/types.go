package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn. Messages are value types; once
// appended to a history they are never mutated.
type Message struct {
	Role    string `json:"role" yaml:"role"` // "system", "user", "assistant"
	Content string `json:"content" yaml:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Finish reasons reported by providers.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishError  = "error"
)

// Usage reports token consumption for a single round trip.
// TotalTokens equals PromptTokens + CompletionTokens when the provider
// reports all three.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the normalized output of a non-streaming chat call.
type ChatResponse struct {
	// Content is the generated text.
	Content string `json:"content"`
	// Model is the model that produced the response.
	Model string `json:"model"`
	// Usage reports token consumption, if the provider supplied it.
	Usage Usage `json:"usage"`
	// FinishReason is why generation stopped ("stop", "length", ...).
	FinishReason string `json:"finish_reason"`
}

// StreamChunk is a single piece of a streamed response.
type StreamChunk struct {
	// Content is the text fragment.
	Content string `json:"content"`
	// FinishReason is set on the final chunk when the provider reports one.
	FinishReason string `json:"finish_reason,omitempty"`
	// Done indicates this is the final chunk.
	Done bool `json:"done"`
	// Err is set when a streaming error occurs. A chunk with Err set is
	// always the last one delivered.
	Err error `json:"-"`
}
