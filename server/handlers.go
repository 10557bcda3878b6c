package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/uniai"
	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/logger"
	"github.com/kbukum/uniai/observability"
	"github.com/kbukum/uniai/util"
)

// API exposes the chat gateway routes over a session registry.
type API struct {
	sessions *Sessions
	metrics  *observability.ChatMetrics
	log      *logger.Logger
}

// NewAPI creates the route handlers. metrics may be nil when telemetry is
// disabled.
func NewAPI(sessions *Sessions, metrics *observability.ChatMetrics, log *logger.Logger) *API {
	return &API{
		sessions: sessions,
		metrics:  metrics,
		log:      log.WithComponent("api"),
	}
}

// RegisterRoutes mounts the v1 API.
func (a *API) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/chat", a.handleChat)
	v1.POST("/chat/stream", a.handleChatStream)
	v1.POST("/provider", a.handleSwitchProvider)
	v1.GET("/history", a.handleGetHistory)
	v1.DELETE("/history", a.handleClearHistory)
	v1.DELETE("/history/last", a.handlePopLast)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type chatReply struct {
	SessionID    string    `json:"session_id"`
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	Usage        llm.Usage `json:"usage"`
	FinishReason string    `json:"finish_reason"`
}

func (a *API) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Configuration(err.Error()))
		return
	}
	sessionID := orNewSessionID(req.SessionID)

	ctx := c.Request.Context()
	client, release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer release()

	start := time.Now()
	resp, err := client.ChatWithResponse(ctx, req.Message)
	a.recordChat(ctx, client, err, time.Since(start), resp)
	a.sessions.Persist(ctx, sessionID, client)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	RespondOK(c, chatReply{
		SessionID:    sessionID,
		Content:      resp.Content,
		Model:        resp.Model,
		Usage:        resp.Usage,
		FinishReason: resp.FinishReason,
	})
}

// SSE event payloads for the streaming endpoint.
type streamMessageEvent struct {
	Content string `json:"content"`
}

type streamDoneEvent struct {
	SessionID    string `json:"session_id"`
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
}

func (a *API) handleChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Configuration(err.Error()))
		return
	}
	sessionID := orNewSessionID(req.SessionID)

	ctx := c.Request.Context()
	client, release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer release()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		RespondWithError(c, apperrors.Internal(fmt.Errorf("response writer does not support streaming")))
		return
	}

	chunks, err := client.StreamChunks(ctx, req.Message)
	if err != nil {
		// The user turn is recorded even when the stream never opened.
		a.sessions.Persist(ctx, sessionID, client)
		a.recordChat(ctx, client, err, 0, nil)
		RespondWithError(c, err)
		return
	}

	// The stream is live: switch the response to SSE. Long streams must
	// outlive the server's write timeout.
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		a.log.Warn("could not clear write deadline", logger.Fields("error", err.Error()))
	}
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	if a.metrics != nil {
		a.metrics.StreamStarted(ctx)
		defer a.metrics.StreamEnded(ctx)
	}

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	var full strings.Builder
	finishReason := llm.FinishStop
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			// Caller went away; the partial turn is discarded upstream.
			a.sessions.Persist(context.Background(), sessionID, client)
			return

		case chunk, open := <-chunks:
			if !open {
				writeSSE(c.Writer, flusher, "done", streamDoneEvent{
					SessionID:    sessionID,
					Content:      full.String(),
					Model:        client.Model(),
					FinishReason: finishReason,
				})
				a.recordChat(ctx, client, nil, time.Since(start), nil)
				a.sessions.Persist(ctx, sessionID, client)
				return
			}
			if chunk.Err != nil {
				writeSSE(c.Writer, flusher, "error", errorPayload(chunk.Err))
				a.recordChat(ctx, client, chunk.Err, time.Since(start), nil)
				a.sessions.Persist(ctx, sessionID, client)
				return
			}
			if chunk.Content != "" {
				full.WriteString(chunk.Content)
				writeSSE(c.Writer, flusher, "message", streamMessageEvent{Content: chunk.Content})
			}
			if chunk.Done && chunk.FinishReason != "" {
				finishReason = chunk.FinishReason
			}

		case <-keepAlive.C:
			fmt.Fprintf(c.Writer, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

type switchRequest struct {
	SessionID      string   `json:"session_id"`
	Provider       string   `json:"provider" binding:"required"`
	APIKey         string   `json:"api_key"`
	Model          string   `json:"model"`
	BaseURL        string   `json:"base_url"`
	SystemPrompt   *string  `json:"system_prompt"`
	Temperature    *float64 `json:"temperature"`
	MaxTokens      *int     `json:"max_tokens"`
	MaxHistory     *int     `json:"max_history"`
	MaxRetries     *int     `json:"max_retries"`
	TimeoutSeconds *int     `json:"timeout_seconds"`
	KeepHistory    *bool    `json:"keep_history"`
}

type switchReply struct {
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

func (a *API) handleSwitchProvider(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.Configuration(err.Error()))
		return
	}
	sessionID := orNewSessionID(req.SessionID)

	ctx := c.Request.Context()
	client, release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer release()

	apiKey := req.APIKey
	if apiKey == "" {
		// No key in the request: fall back to the gateway's environment.
		apiKey = llm.ConfigFromEnv(req.Provider).APIKey
	}

	opts := switchOptions(req)
	if err := client.SwitchProvider(req.Provider, apiKey, req.Model, opts...); err != nil {
		RespondWithError(c, err)
		return
	}
	a.sessions.Persist(ctx, sessionID, client)

	a.log.Info("session switched provider", logger.Fields(
		"session_id", sessionID,
		"provider", client.Provider(),
		"model", client.Model(),
		"api_key", util.MaskSecret(apiKey, 4),
	))
	RespondOK(c, switchReply{SessionID: sessionID, Provider: client.Provider(), Model: client.Model()})
}

func switchOptions(req switchRequest) []uniai.SwitchOption {
	var opts []uniai.SwitchOption
	if req.KeepHistory != nil {
		opts = append(opts, uniai.WithKeepHistory(*req.KeepHistory))
	}
	if req.BaseURL != "" {
		opts = append(opts, uniai.WithBaseURL(req.BaseURL))
	}
	if req.SystemPrompt != nil {
		opts = append(opts, uniai.WithSystemPrompt(*req.SystemPrompt))
	}
	if req.Temperature != nil {
		opts = append(opts, uniai.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, uniai.WithMaxTokens(*req.MaxTokens))
	}
	if req.MaxHistory != nil {
		opts = append(opts, uniai.WithMaxHistory(*req.MaxHistory))
	}
	if req.MaxRetries != nil {
		opts = append(opts, uniai.WithMaxRetries(*req.MaxRetries))
	}
	if req.TimeoutSeconds != nil {
		opts = append(opts, uniai.WithTimeout(time.Duration(*req.TimeoutSeconds)*time.Second))
	}
	return opts
}

type historyReply struct {
	SessionID string        `json:"session_id"`
	Messages  []llm.Message `json:"messages"`
}

func (a *API) handleGetHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		RespondWithError(c, apperrors.MissingField("session_id"))
		return
	}

	client, release, err := a.sessions.Acquire(c.Request.Context(), sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer release()

	RespondOK(c, historyReply{SessionID: sessionID, Messages: client.History()})
}

func (a *API) handleClearHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		RespondWithError(c, apperrors.MissingField("session_id"))
		return
	}
	keepSystemPrompt := c.DefaultQuery("keep_system_prompt", "true") == "true"

	ctx := c.Request.Context()
	client, release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer release()

	client.ClearHistory(keepSystemPrompt)
	a.sessions.Persist(ctx, sessionID, client)
	RespondNoContent(c)
}

func (a *API) handlePopLast(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		RespondWithError(c, apperrors.MissingField("session_id"))
		return
	}

	ctx := c.Request.Context()
	client, release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer release()

	msg, ok := client.PopLast()
	if !ok {
		RespondWithError(c, apperrors.New(apperrors.ErrCodeConfiguration, "history is empty", http.StatusNotFound))
		return
	}
	a.sessions.Persist(ctx, sessionID, client)
	RespondOK(c, gin.H{"session_id": sessionID, "removed": msg})
}

// orNewSessionID keeps a caller-supplied id or mints a fresh one.
func orNewSessionID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// recordChat feeds the chat metrics, tolerating a nil instrument set.
func (a *API) recordChat(ctx context.Context, client *uniai.Client, err error, d time.Duration, resp *llm.ChatResponse) {
	if a.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if appErr, ok := apperrors.AsAppError(err); ok {
			status = strings.ToLower(string(appErr.Code))
		}
	}
	var usage llm.Usage
	model := client.Model()
	if resp != nil {
		usage = resp.Usage
		model = resp.Model
	}
	a.metrics.RecordChat(ctx, client.Provider(), model, status, d, usage)
}

// writeSSE writes one named server-sent event and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// errorPayload renders the taxonomy error body sent on SSE error events.
func errorPayload(err error) apperrors.ErrorResponse {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.ToResponse()
	}
	return apperrors.Internal(err).ToResponse()
}
