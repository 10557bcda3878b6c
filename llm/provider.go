package llm

import "context"

// Provider is the contract every backend implements. A provider binds one
// Config to one transport client and translates between the normalized
// message model and its vendor's wire format.
//
// Implementations must not mutate the history slice passed to Chat or
// StreamChat.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Chat performs one blocking round trip over the given history and
	// returns the normalized response.
	Chat(ctx context.Context, history []Message) (*ChatResponse, error)

	// StreamChat issues a streaming request and returns a channel of
	// chunks. The channel is always closed when the stream ends, whether
	// by completion, error, or context cancellation. A chunk with Err set
	// terminates the stream; a chunk with Done set is the normal final
	// chunk. Abandoning the stream is safe: cancel the context to release
	// the transport promptly.
	StreamChat(ctx context.Context, history []Message) (<-chan StreamChunk, error)
}

// Factory constructs a provider from a validated config. Construction is
// purely local setup; it must not perform network calls. Malformed
// credentials or endpoints fail with a configuration error.
type Factory func(cfg Config) (Provider, error)
