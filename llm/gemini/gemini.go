// Package gemini implements the provider contract for Google's Gemini API.
//
// Gemini does not accept role-tagged chat messages the way OpenAI-style
// APIs do, so the conversation is flattened into a single labeled prompt
// before each call.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/httpclient"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/util"
)

const (
	// ProviderName is the registered name for the Gemini provider.
	ProviderName = "gemini"

	// DefaultBaseURL is the Gemini REST endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is a fast, inexpensive Gemini model.
	DefaultModel = "gemini-1.5-flash"
)

func init() {
	llm.Register(ProviderName, New)
}

// Provider talks to the Gemini generateContent API.
type Provider struct {
	cfg    llm.Config
	client *httpclient.Client
}

// New creates a Gemini provider from the given config.
func New(cfg llm.Config) (llm.Provider, error) {
	client, err := httpclient.New(httpclient.Config{
		BaseURL: util.Coalesce(cfg.BaseURL, DefaultBaseURL),
		Timeout: cfg.Timeout,
		Auth:    httpclient.APIKeyAuthQuery(cfg.APIKey, "key"),
	})
	if err != nil {
		return nil, apperrors.Configuration(err.Error())
	}

	return &Provider{cfg: cfg, client: client}, nil
}

// DefaultConfig returns a Config for Gemini with the default model filled in.
func DefaultConfig(apiKey string) llm.Config {
	return llm.Config{Provider: ProviderName, APIKey: apiKey, Model: DefaultModel}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Chat performs one blocking generateContent round trip.
func (p *Provider) Chat(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
	resp, err := p.client.Do(ctx, &httpclient.Request{
		Method: http.MethodPost,
		Path:   p.modelPath("generateContent"),
		Body:   p.buildPayload(history),
	})
	if err != nil {
		return nil, p.translateError(err)
	}

	var gr generateResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return nil, apperrors.API(ProviderName, http.StatusBadGateway, "malformed response body").WithCause(err)
	}
	if len(gr.Candidates) == 0 {
		return nil, apperrors.API(ProviderName, http.StatusBadGateway, "response did not include candidates")
	}

	candidate := gr.Candidates[0]
	return &llm.ChatResponse{
		Content:      candidate.Content.text(),
		Model:        p.cfg.Model,
		Usage:        gr.UsageMetadata.toUsage(),
		FinishReason: normalizeFinishReason(candidate.FinishReason),
	}, nil
}

// StreamChat issues a streaming generateContent call and delivers chunks
// over the returned channel. Gemini streams carry no terminating sentinel,
// so a final chunk is synthesized when the event stream ends cleanly.
func (p *Provider) StreamChat(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
	stream, err := p.client.DoStream(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		Path:    p.modelPath("streamGenerateContent"),
		Query:   map[string]string{"alt": "sse"},
		Body:    p.buildPayload(history),
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
				send(ctx, ch, llm.StreamChunk{Done: true, FinishReason: finishReason})
				return
			}
			if err != nil {
				send(ctx, ch, llm.StreamChunk{Err: apperrors.Timeout(ProviderName, err)})
				return
			}

			data := strings.TrimSpace(event.Data)
			if data == "" {
				continue
			}

			var gr generateResponse
			if err := json.Unmarshal([]byte(data), &gr); err != nil {
				send(ctx, ch, llm.StreamChunk{
					Err: apperrors.API(ProviderName, http.StatusBadGateway, "malformed stream chunk").WithCause(err),
				})
				return
			}
			if len(gr.Candidates) == 0 {
				continue
			}

			candidate := gr.Candidates[0]
			if candidate.FinishReason != "" {
				finishReason = normalizeFinishReason(candidate.FinishReason)
			}
			if text := candidate.Content.text(); text != "" {
				if !send(ctx, ch, llm.StreamChunk{Content: text}) {
					return
				}
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

func (p *Provider) modelPath(method string) string {
	return fmt.Sprintf("/models/%s:%s", url.PathEscape(p.cfg.Model), method)
}

// --- wire types ---

type generatePayload struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

func (c content) text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (u *usageMetadata) toUsage() llm.Usage {
	if u == nil {
		return llm.Usage{}
	}
	return llm.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

// buildPayload flattens the history into one labeled prompt. The config
// system prompt is included only when the history carries none of its own.
func (p *Provider) buildPayload(history []llm.Message) generatePayload {
	lines := make([]string, 0, len(history)+1)
	if p.cfg.SystemPrompt != "" && !startsWithSystem(history) {
		lines = append(lines, "System: "+p.cfg.SystemPrompt)
	}
	for _, msg := range history {
		lines = append(lines, roleLabel(msg.Role)+" "+msg.Content)
	}

	payload := generatePayload{
		Contents: []content{{Parts: []part{{Text: strings.Join(lines, "\n")}}}},
		GenerationConfig: &generationConfig{
			Temperature: p.cfg.Temperature,
		},
	}
	if p.cfg.MaxTokens > 0 {
		payload.GenerationConfig.MaxOutputTokens = util.Ptr(p.cfg.MaxTokens)
	}
	return payload
}

func startsWithSystem(history []llm.Message) bool {
	return len(history) > 0 && history[0].Role == llm.RoleSystem
}

func roleLabel(role string) string {
	switch role {
	case llm.RoleSystem:
		return "System:"
	case llm.RoleAssistant:
		return "Assistant:"
	default:
		return "User:"
	}
}

// normalizeFinishReason maps Gemini finish reasons onto the shared values.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "", "STOP":
		return llm.FinishStop
	case "MAX_TOKENS":
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
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
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
