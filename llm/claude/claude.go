// Package claude implements the provider contract for Anthropic's Claude
// messages API.
//
// Claude differs from OpenAI-style APIs in three ways this package has to
// bridge: the system prompt travels as a top-level field instead of a
// message, max_tokens is mandatory, and the event stream is made of named
// SSE events rather than a plain data feed.
package claude

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
	// ProviderName is the registered name for the Claude provider.
	ProviderName = "claude"

	// DefaultBaseURL is Anthropic's public API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultModel is a capable general-purpose Claude model.
	DefaultModel = "claude-3-5-sonnet-20241022"

	// defaultMaxTokens is used when the config leaves max_tokens unset,
	// since the messages API refuses requests without it.
	defaultMaxTokens = 4096

	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"
)

func init() {
	llm.Register(ProviderName, New)
}

// Provider talks to the Anthropic messages API.
type Provider struct {
	cfg    llm.Config
	client *httpclient.Client
}

// New creates a Claude provider from the given config.
func New(cfg llm.Config) (llm.Provider, error) {
	client, err := httpclient.New(httpclient.Config{
		BaseURL: util.Coalesce(cfg.BaseURL, DefaultBaseURL),
		Timeout: cfg.Timeout,
		Auth:    httpclient.APIKeyAuthHeader(cfg.APIKey, "x-api-key"),
		Headers: map[string]string{"anthropic-version": apiVersion},
	})
	if err != nil {
		return nil, apperrors.Configuration(err.Error())
	}

	return &Provider{cfg: cfg, client: client}, nil
}

// DefaultConfig returns a Config for Claude with the default model filled in.
func DefaultConfig(apiKey string) llm.Config {
	return llm.Config{Provider: ProviderName, APIKey: apiKey, Model: DefaultModel}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Chat performs one blocking messages API round trip.
func (p *Provider) Chat(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
	resp, err := p.client.Do(ctx, &httpclient.Request{
		Method: http.MethodPost,
		Path:   messagesPath,
		Body:   p.buildPayload(history, false),
	})
	if err != nil {
		return nil, p.translateError(err)
	}

	var mr messageResponse
	if err := json.Unmarshal(resp.Body, &mr); err != nil {
		return nil, apperrors.API(ProviderName, http.StatusBadGateway, "malformed response body").WithCause(err)
	}
	if len(mr.Content) == 0 {
		return nil, apperrors.API(ProviderName, http.StatusBadGateway, "response did not include content blocks")
	}

	return &llm.ChatResponse{
		Content:      joinTextBlocks(mr.Content),
		Model:        util.Coalesce(mr.Model, p.cfg.Model),
		Usage:        mr.Usage.toUsage(),
		FinishReason: normalizeStopReason(mr.StopReason),
	}, nil
}

// StreamChat issues a streaming messages call. Claude delivers named SSE
// events; text arrives in content_block_delta events and the closing
// message_stop event marks a clean end of stream.
func (p *Provider) StreamChat(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
	stream, err := p.client.DoStream(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		Path:    messagesPath,
		Body:    p.buildPayload(history, true),
		Headers: map[string]string{"Accept": "text/event-stream"},
	})
	if err != nil {
		return nil, p.translateError(err)
	}
	if stream.SSE == nil {
		stream.Close()
		return nil, apperrors.API(ProviderName, stream.StatusCode, "expected an event stream response")
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		finishReason := llm.FinishStop
		for {
			event, err := stream.SSE.Next()
			if errors.Is(err, io.EOF) {
				send(ctx, ch, llm.StreamChunk{Err: apperrors.Timeout(ProviderName, io.ErrUnexpectedEOF)})
				return
			}
			if err != nil {
				send(ctx, ch, llm.StreamChunk{Err: apperrors.Timeout(ProviderName, err)})
				return
			}

			var se streamEvent
			if err := json.Unmarshal([]byte(event.Data), &se); err != nil {
				send(ctx, ch, llm.StreamChunk{
					Err: apperrors.API(ProviderName, http.StatusBadGateway, "malformed stream event").WithCause(err),
				})
				return
			}

			switch se.Type {
			case "content_block_delta":
				if se.Delta.Text == "" {
					continue
				}
				if !send(ctx, ch, llm.StreamChunk{Content: se.Delta.Text}) {
					return
				}
			case "message_delta":
				if se.Delta.StopReason != "" {
					finishReason = normalizeStopReason(se.Delta.StopReason)
				}
			case "message_stop":
				send(ctx, ch, llm.StreamChunk{Done: true, FinishReason: finishReason})
				return
			case "error":
				send(ctx, ch, llm.StreamChunk{
					Err: apperrors.API(ProviderName, http.StatusServiceUnavailable, se.Error.Message),
				})
				return
			}
		}
	}()

	return ch, nil
}

func send(ctx context.Context, ch chan<- llm.StreamChunk, chunk llm.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// --- wire types ---

type messagePayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messageResponse struct {
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usageBlock     `json:"usage"`
}

type usageBlock struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u usageBlock) toUsage() llm.Usage {
	return llm.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildPayload maps the normalized history onto the messages API schema.
// System messages are lifted into the top-level system field; user and
// assistant turns pass through as text content blocks. Vendor constraints
// on message ordering are left to the API to enforce.
func (p *Provider) buildPayload(history []llm.Message, stream bool) messagePayload {
	messages := make([]wireMessage, 0, len(history))
	var systemParts []string
	if p.cfg.SystemPrompt != "" && !startsWithSystem(history) {
		systemParts = append(systemParts, p.cfg.SystemPrompt)
	}

	for _, msg := range history {
		if msg.Role == llm.RoleSystem {
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
			continue
		}
		messages = append(messages, wireMessage{
			Role:    msg.Role,
			Content: []contentBlock{{Type: "text", Text: msg.Content}},
		})
	}

	maxTokens := p.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return messagePayload{
		Model:       p.cfg.Model,
		Messages:    messages,
		System:      strings.Join(systemParts, "\n\n"),
		MaxTokens:   maxTokens,
		Temperature: p.cfg.Temperature,
		Stream:      stream,
	}
}

func startsWithSystem(history []llm.Message) bool {
	return len(history) > 0 && history[0].Role == llm.RoleSystem
}

func joinTextBlocks(blocks []contentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// normalizeStopReason maps Anthropic stop reasons onto the shared values.
func normalizeStopReason(reason string) string {
	switch reason {
	case "", "end_turn", "stop_sequence":
		return llm.FinishStop
	case "max_tokens":
		return llm.FinishLength
	default:
		return strings.ToLower(reason)
	}
}

// --- error translation ---

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func vendorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func (p *Provider) translateError(err error) error {
	var httpErr *httpclient.Error
	if !errors.As(err, &httpErr) {
		return apperrors.Internal(err).WithProvider(ProviderName)
	}

	switch httpErr.Code {
	case httpclient.ErrCodeAuth:
		return apperrors.Authentication(ProviderName, httpErr.StatusCode).WithCause(httpErr)
	case httpclient.ErrCodeRateLimit:
		return apperrors.RateLimited(ProviderName).WithCause(httpErr)
	case httpclient.ErrCodeTimeout, httpclient.ErrCodeConnection:
		return apperrors.Timeout(ProviderName, httpErr)
	default:
		return apperrors.API(ProviderName, httpErr.StatusCode, vendorMessage(httpErr.Body)).WithCause(httpErr)
	}
}
