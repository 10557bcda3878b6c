// Package openai implements the provider contract for OpenAI's chat
// completions API and any endpoint that speaks the same wire format.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/httpclient"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/util"
)

const (
	// ProviderName is the registered name for the OpenAI provider.
	ProviderName = "openai"

	// DefaultBaseURL is OpenAI's public API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is a sensible default for cost-conscious chat use.
	DefaultModel = "gpt-4o-mini"

	chatPath = "/chat/completions"

	// doneSentinel terminates an OpenAI event stream.
	doneSentinel = "[DONE]"
)

func init() {
	llm.Register(ProviderName, New)
}

// Provider talks to an OpenAI-compatible chat completions endpoint.
type Provider struct {
	name   string
	cfg    llm.Config
	client *httpclient.Client
}

// New creates an OpenAI provider from the given config.
func New(cfg llm.Config) (llm.Provider, error) {
	return NewCompatible(ProviderName, DefaultBaseURL, cfg)
}

// DefaultConfig returns a Config for OpenAI with the default model filled in.
func DefaultConfig(apiKey string) llm.Config {
	return llm.Config{Provider: ProviderName, APIKey: apiKey, Model: DefaultModel}
}

// NewCompatible creates a provider for any OpenAI-compatible API under a
// different name and default endpoint. Construction is purely local; no
// network call is made.
func NewCompatible(name, defaultBaseURL string, cfg llm.Config) (llm.Provider, error) {
	client, err := httpclient.New(httpclient.Config{
		BaseURL: util.Coalesce(cfg.BaseURL, defaultBaseURL),
		Timeout: cfg.Timeout,
		Auth:    httpclient.BearerAuth(cfg.APIKey),
	})
	if err != nil {
		return nil, apperrors.Configuration(err.Error())
	}

	return &Provider{name: name, cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.name }

// Chat performs one blocking chat completion round trip.
func (p *Provider) Chat(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
	resp, err := p.client.Do(ctx, &httpclient.Request{
		Method: http.MethodPost,
		Path:   chatPath,
		Body:   p.buildPayload(history, false),
	})
	if err != nil {
		return nil, p.translateError(err)
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		return nil, apperrors.API(p.name, http.StatusBadGateway, "malformed response body").WithCause(err)
	}
	if len(cr.Choices) == 0 {
		return nil, apperrors.API(p.name, http.StatusBadGateway, "response did not include choices")
	}

	choice := cr.Choices[0]
	return &llm.ChatResponse{
		Content:      choice.Message.Content,
		Model:        util.Coalesce(cr.Model, p.cfg.Model),
		Usage:        cr.Usage.toUsage(),
		FinishReason: choice.FinishReason,
	}, nil
}

// StreamChat issues a streaming chat completion and delivers chunks over the
// returned channel. Cancel the context to abandon the stream; the transport
// is released promptly and the channel is closed.
func (p *Provider) StreamChat(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
	stream, err := p.client.DoStream(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		Path:    chatPath,
		Body:    p.buildPayload(history, true),
		Headers: map[string]string{"Accept": "text/event-stream"},
	})
	if err != nil {
		return nil, p.translateError(err)
	}
	if stream.SSE == nil {
		stream.Close()
		return nil, apperrors.API(p.name, stream.StatusCode, "expected an event stream response")
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		sawFinal := false
		for {
			event, err := stream.SSE.Next()
			if errors.Is(err, io.EOF) {
				if !sawFinal {
					send(ctx, ch, llm.StreamChunk{Err: apperrors.Timeout(p.name, io.ErrUnexpectedEOF)})
				}
				return
			}
			if err != nil {
				send(ctx, ch, llm.StreamChunk{Err: apperrors.Timeout(p.name, err)})
				return
			}

			data := strings.TrimSpace(event.Data)
			if data == "" {
				continue
			}
			if data == doneSentinel {
				if !sawFinal {
					send(ctx, ch, llm.StreamChunk{Done: true, FinishReason: llm.FinishStop})
				}
				return
			}

			var sr streamResponse
			if err := json.Unmarshal([]byte(data), &sr); err != nil {
				send(ctx, ch, llm.StreamChunk{
					Err: apperrors.API(p.name, http.StatusBadGateway, "malformed stream chunk").WithCause(err),
				})
				return
			}
			if len(sr.Choices) == 0 {
				continue
			}

			choice := sr.Choices[0]
			chunk := llm.StreamChunk{
				Content:      choice.Delta.Content,
				FinishReason: choice.FinishReason,
				Done:         choice.FinishReason != "",
			}
			if chunk.Content == "" && !chunk.Done {
				continue
			}
			if chunk.Done {
				sawFinal = true
			}
			if !send(ctx, ch, chunk) {
				return
			}
		}
	}()

	return ch, nil
}

// send delivers a chunk unless the context is cancelled first. It reports
// whether the chunk was delivered.
func send(ctx context.Context, ch chan<- llm.StreamChunk, chunk llm.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// --- wire types ---

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *usageBlock  `json:"usage,omitempty"`
}

type chatChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type streamResponse struct {
	Choices []streamChoice `json:"choices"`
}

type streamChoice struct {
	Delta        wireMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *usageBlock) toUsage() llm.Usage {
	if u == nil {
		return llm.Usage{}
	}
	return llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// buildPayload maps the normalized history onto the chat completions schema.
// The leading system message comes from the history; when the history has
// none and the config carries a system prompt, it is prepended here.
func (p *Provider) buildPayload(history []llm.Message, stream bool) chatPayload {
	messages := make([]wireMessage, 0, len(history)+1)
	if p.cfg.SystemPrompt != "" && !startsWithSystem(history) {
		messages = append(messages, wireMessage{Role: llm.RoleSystem, Content: p.cfg.SystemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, wireMessage{Role: msg.Role, Content: msg.Content})
	}

	payload := chatPayload{
		Model:       p.cfg.Model,
		Messages:    messages,
		Temperature: p.cfg.Temperature,
		Stream:      stream,
	}
	if p.cfg.MaxTokens > 0 {
		payload.MaxTokens = util.Ptr(p.cfg.MaxTokens)
	}
	return payload
}

func startsWithSystem(history []llm.Message) bool {
	return len(history) > 0 && history[0].Role == llm.RoleSystem
}

// --- error translation ---

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// vendorMessage extracts the error message from an OpenAI-style error body.
func vendorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// translateError maps transport failures into the shared error taxonomy.
func (p *Provider) translateError(err error) error {
	var httpErr *httpclient.Error
	if !errors.As(err, &httpErr) {
		return apperrors.Internal(err).WithProvider(p.name)
	}

	switch httpErr.Code {
	case httpclient.ErrCodeAuth:
		return apperrors.Authentication(p.name, httpErr.StatusCode).WithCause(httpErr)
	case httpclient.ErrCodeRateLimit:
		return apperrors.RateLimited(p.name).WithCause(httpErr)
	case httpclient.ErrCodeTimeout, httpclient.ErrCodeConnection:
		return apperrors.Timeout(p.name, httpErr)
	default:
		return apperrors.API(p.name, httpErr.StatusCode, vendorMessage(httpErr.Body)).WithCause(httpErr)
	}
}
