package uniai

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/logger"
	"github.com/kbukum/uniai/memory"
	"github.com/kbukum/uniai/resilience"
	"github.com/kbukum/uniai/util"
)

// Client is a conversation session against one LLM provider. It owns the
// conversation memory, wraps provider calls with retries, and can switch
// providers mid-conversation.
//
// A Client is built for sequential use: one logical conversation, one
// caller at a time. Wrap it in your own locking if you share it.
type Client struct {
	cfg      llm.Config
	provider llm.Provider
	mem      *memory.Memory
	log      *logger.Logger

	// backoffBase seeds the exponential backoff between retries.
	backoffBase time.Duration
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithLogger replaces the default logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a Client for the configured provider. Configuration is
// validated eagerly and the provider backend is constructed up front, so
// any configuration mistake surfaces here rather than on the first call.
// No network traffic happens until the first chat.
func New(cfg llm.Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()

	provider, err := llm.New(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:         cfg,
		provider:    provider,
		mem:         memory.NewWithSystemPrompt(cfg.SystemPrompt, cfg.MaxHistory),
		log:         logger.NewDefault("uniai").WithComponent("client"),
		backoffBase: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.log.Debug("client created", logger.Fields(
		"provider", provider.Name(),
		"model", cfg.Model,
	))
	return c, nil
}

// Chat sends a user message and returns the assistant's reply.
//
// The user turn is recorded before the provider call and stays recorded
// even when the call fails, so a later retry by the caller sees the same
// conversation. The assistant turn is recorded only on success.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	resp, err := c.ChatWithResponse(ctx, message)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatWithResponse is Chat with the full provider response, including
// token usage and the finish reason.
func (c *Client) ChatWithResponse(ctx context.Context, message string) (*llm.ChatResponse, error) {
	c.mem.Append(llm.UserMessage(message))
	history := c.mem.History()

	resp, err := resilience.Retry(ctx, c.retryConfig(), func() (*llm.ChatResponse, error) {
		return c.provider.Chat(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	c.mem.Append(llm.AssistantMessage(resp.Content))
	return resp, nil
}

// StreamChunks sends a user message and streams the reply as typed chunks.
//
// The user turn is recorded immediately. The assistant turn is recorded
// once the stream ends cleanly, assembled from the streamed fragments; a
// stream that fails midway records nothing, leaving only the user turn.
// Cancel the context to abandon the stream.
func (c *Client) StreamChunks(ctx context.Context, message string) (<-chan llm.StreamChunk, error) {
	c.mem.Append(llm.UserMessage(message))
	history := c.mem.History()

	upstream, err := resilience.Retry(ctx, c.retryConfig(), func() (<-chan llm.StreamChunk, error) {
		return c.provider.StreamChat(ctx, history)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		var parts []string
		completed := false
		failed := false

		for chunk := range upstream {
			if chunk.Err != nil {
				failed = true
			} else if chunk.Content != "" {
				parts = append(parts, chunk.Content)
			}
			if chunk.Done {
				completed = true
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}

		if failed || ctx.Err() != nil {
			return
		}
		if !completed {
			// The provider closed the channel without a final chunk or an
			// error. Treat it as a truncated stream.
			select {
			case out <- llm.StreamChunk{Err: apperrors.Timeout(c.provider.Name(), io.ErrUnexpectedEOF)}:
			case <-ctx.Done():
			}
			return
		}

		c.mem.Append(llm.AssistantMessage(strings.Join(parts, "")))
	}()

	return out, nil
}

// Stream sends a user message and invokes fn for every text fragment of
// the reply. It blocks until the stream ends and returns nil on a clean
// finish, the stream's error on failure, or fn's error if fn aborts the
// stream. Memory bookkeeping matches StreamChunks.
func (c *Client) Stream(ctx context.Context, message string, fn func(fragment string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := c.StreamChunks(ctx, message)
	if err != nil {
		return err
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			return chunk.Err
		}
		if chunk.Content == "" {
			continue
		}
		if err := fn(chunk.Content); err != nil {
			cancel()
			return err
		}
	}
	return nil
}

// SwitchProvider replaces the backend mid-conversation. Settings not
// overridden by options carry over from the current session: temperature,
// max tokens, timeout, retry budget, and the active system prompt. The
// base URL never carries over, since endpoints are provider-specific.
//
// The switch is all-or-nothing. When the new configuration is invalid or
// the provider is unknown, the client keeps its current provider, config,
// and history untouched.
func (c *Client) SwitchProvider(providerID, apiKey, model string, opts ...SwitchOption) error {
	var sw switchConfig
	for _, opt := range opts {
		opt(&sw)
	}

	next := llm.Config{
		Provider:   providerID,
		APIKey:     apiKey,
		Model:      model,
		MaxTokens:  c.cfg.MaxTokens,
		MaxHistory: c.cfg.MaxHistory,
		Timeout:    c.cfg.Timeout,
	}
	if c.cfg.Temperature != nil {
		next.Temperature = util.Ptr(*c.cfg.Temperature)
	}
	if c.cfg.MaxRetries != nil {
		next.MaxRetries = util.Ptr(*c.cfg.MaxRetries)
	}
	if prompt, ok := c.mem.SystemPrompt(); ok {
		next.SystemPrompt = prompt
	}

	if sw.baseURL != nil {
		next.BaseURL = *sw.baseURL
	}
	if sw.systemPrompt != nil {
		next.SystemPrompt = *sw.systemPrompt
	}
	if sw.temperature != nil {
		next.Temperature = util.Ptr(*sw.temperature)
	}
	if sw.maxTokens != nil {
		next.MaxTokens = *sw.maxTokens
	}
	if sw.maxHistory != nil {
		next.MaxHistory = *sw.maxHistory
	}
	if sw.timeout != nil {
		next.Timeout = *sw.timeout
	}
	if sw.maxRetries != nil {
		next.MaxRetries = util.Ptr(*sw.maxRetries)
	}
	next.ApplyDefaults()

	provider, err := llm.New(next)
	if err != nil {
		return err
	}

	previous := c.provider.Name()
	c.cfg = next
	c.provider = provider

	if sw.dropHistory {
		c.mem = memory.NewWithSystemPrompt(next.SystemPrompt, next.MaxHistory)
	} else {
		if sw.systemPrompt != nil {
			c.mem.SetSystemPrompt(*sw.systemPrompt)
		}
		if sw.maxHistory != nil {
			c.mem.SetMaxHistory(*sw.maxHistory)
		}
	}

	c.log.Info("switched provider", logger.Fields(
		"from", previous,
		"to", provider.Name(),
		"model", next.Model,
		"keep_history", !sw.dropHistory,
	))
	return nil
}

// History returns a copy of the conversation so far, system prompt first
// when one is set.
func (c *Client) History() []llm.Message {
	return c.mem.History()
}

// RestoreHistory replaces the conversation with the given messages,
// applying the usual capacity and system prompt rules.
func (c *Client) RestoreHistory(msgs []llm.Message) {
	c.mem.Restore(msgs)
}

// ClearHistory empties the conversation. With keepSystemPrompt the pinned
// system prompt survives; without it the memory is fully reset.
func (c *Client) ClearHistory(keepSystemPrompt bool) {
	c.mem.Clear(keepSystemPrompt)
}

// PopLast removes and returns the most recent turn. The system prompt is
// never popped. Useful for undoing a user turn left behind by a failed
// call before retrying with different wording.
func (c *Client) PopLast() (llm.Message, bool) {
	return c.mem.PopLast()
}

// SetSystemPrompt replaces the active system prompt without touching the
// rest of the conversation. An empty prompt removes it.
func (c *Client) SetSystemPrompt(prompt string) {
	c.mem.SetSystemPrompt(prompt)
}

// SystemPrompt returns the active system prompt, if any.
func (c *Client) SystemPrompt() (string, bool) {
	return c.mem.SystemPrompt()
}

// Provider returns the current provider name.
func (c *Client) Provider() string {
	return c.provider.Name()
}

// Model returns the current model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Config returns a copy of the active configuration.
func (c *Client) Config() llm.Config {
	return c.cfg
}

func (c *Client) String() string {
	return fmt.Sprintf("uniai.Client(provider=%s, model=%s, history=%d)",
		c.provider.Name(), c.cfg.Model, c.mem.Len())
}

// retryConfig derives the retry behavior for one provider call. Only
// errors the taxonomy marks retryable are retried; the attempt budget is
// the configured retry count plus the initial attempt.
func (c *Client) retryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    util.Deref(c.cfg.MaxRetries) + 1,
		InitialBackoff: c.backoffBase,
		MaxBackoff:     8 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        apperrors.IsRetryable,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.log.Debug("provider call failed, retrying", logger.Fields(
				"provider", c.provider.Name(),
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", err.Error(),
			))
		},
	}
}
