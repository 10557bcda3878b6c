package uniai

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	apperrors "github.com/kbukum/uniai/errors"
	"github.com/kbukum/uniai/llm"
	"github.com/kbukum/uniai/util"
)

type stubProvider struct {
	name     string
	chatFn   func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error)
	streamFn func(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Chat(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
	return s.chatFn(ctx, history)
}

func (s *stubProvider) StreamChat(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
	return s.streamFn(ctx, history)
}

// replyWith builds a chat function that always answers with the same text.
func replyWith(content string) func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
	return func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: content, Model: "stub-model", FinishReason: llm.FinishStop}, nil
	}
}

// chunkStream builds a stream function that plays back fixed chunks.
func chunkStream(chunks ...llm.StreamChunk) func(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
	return func(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
		ch := make(chan llm.StreamChunk)
		go func() {
			defer close(ch)
			for _, chunk := range chunks {
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

func newStubClient(t *testing.T, p *stubProvider, mutate func(*llm.Config)) *Client {
	t.Helper()
	if p.name == "" {
		p.name = "stub"
	}
	llm.Register(p.name, func(llm.Config) (llm.Provider, error) { return p, nil })

	cfg := llm.Config{
		Provider:   p.name,
		APIKey:     "test-key",
		Model:      "stub-model",
		Timeout:    time.Second,
		MaxRetries: util.Ptr(0),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.backoffBase = time.Millisecond
	return c
}

func historyStrings(msgs []llm.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role + ":" + m.Content
	}
	return out
}

func assertHistory(t *testing.T, c *Client, want ...string) {
	t.Helper()
	got := historyStrings(c.History())
	if len(want) == 0 {
		if len(got) != 0 {
			t.Fatalf("History() = %v, want empty", got)
		}
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("History() = %v, want %v", got, want)
	}
}

func TestChat_RecordsBothTurns(t *testing.T) {
	var seen []llm.Message
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		seen = history
		return &llm.ChatResponse{Content: "hello", Model: "stub-model", FinishReason: llm.FinishStop}, nil
	}}
	c := newStubClient(t, p, nil)

	reply, err := c.Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "hello" {
		t.Errorf("Chat() = %q, want %q", reply, "hello")
	}

	if got := historyStrings(seen); !reflect.DeepEqual(got, []string{"user:hi"}) {
		t.Errorf("provider saw %v, want [user:hi]", got)
	}
	assertHistory(t, c, "user:hi", "assistant:hello")
}

func TestChat_FailureLeavesUserTurn(t *testing.T) {
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		return nil, apperrors.API("stub", 400, "bad request")
	}}
	c := newStubClient(t, p, nil)

	_, err := c.Chat(context.Background(), "hi")
	if err == nil {
		t.Fatal("Chat() error = nil, want error")
	}
	assertHistory(t, c, "user:hi")
}

func TestChat_RetriesExactBudget(t *testing.T) {
	attempts := 0
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		attempts++
		return nil, apperrors.RateLimited("stub")
	}}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.MaxRetries = util.Ptr(2)
	})

	_, err := c.Chat(context.Background(), "hi")
	if !apperrors.IsRateLimited(err) {
		t.Fatalf("IsRateLimited(err) = false for %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly max retries + 1 = 3", attempts)
	}
}

func TestChat_RetryThenSuccess(t *testing.T) {
	attempts := 0
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, apperrors.API("stub", 503, "unavailable")
		}
		return &llm.ChatResponse{Content: "recovered", FinishReason: llm.FinishStop}, nil
	}}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.MaxRetries = util.Ptr(3)
	})

	reply, err := c.Chat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "recovered" {
		t.Errorf("Chat() = %q, want %q", reply, "recovered")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	assertHistory(t, c, "user:hi", "assistant:recovered")
}

func TestChat_AuthErrorNotRetried(t *testing.T) {
	attempts := 0
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		attempts++
		return nil, apperrors.Authentication("stub", 401)
	}}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.MaxRetries = util.Ptr(5)
	})

	_, err := c.Chat(context.Background(), "hi")
	if !apperrors.IsAuthentication(err) {
		t.Fatalf("IsAuthentication(err) = false for %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (authentication errors are not retryable)", attempts)
	}
}

func TestChat_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		attempts++
		return nil, apperrors.API("stub", 422, "invalid input")
	}}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.MaxRetries = util.Ptr(5)
	})

	if _, err := c.Chat(context.Background(), "hi"); err == nil {
		t.Fatal("Chat() error = nil, want error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx errors are not retryable)", attempts)
	}
}

func TestChat_BoundedHistorySnapshot(t *testing.T) {
	var snapshots [][]string
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		snapshots = append(snapshots, historyStrings(history))
		return &llm.ChatResponse{Content: "b", FinishReason: llm.FinishStop}, nil
	}}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.MaxHistory = 2
	})

	if _, err := c.Chat(context.Background(), "a"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if _, err := c.Chat(context.Background(), "c"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	want := []string{"assistant:b", "user:c"}
	if !reflect.DeepEqual(snapshots[1], want) {
		t.Errorf("second snapshot = %v, want %v (oldest turn evicted)", snapshots[1], want)
	}
	assertHistory(t, c, "user:c", "assistant:b")
}

func TestNew_InvalidTemperatureFailsBeforeProviderInit(t *testing.T) {
	factoryCalled := false
	llm.Register("eager-check", func(llm.Config) (llm.Provider, error) {
		factoryCalled = true
		return &stubProvider{name: "eager-check"}, nil
	})

	_, err := New(llm.Config{
		Provider:    "eager-check",
		APIKey:      "k",
		Model:       "m",
		Temperature: util.Ptr(2.5),
	})
	if !apperrors.IsConfiguration(err) {
		t.Fatalf("IsConfiguration(err) = false for %v", err)
	}
	if factoryCalled {
		t.Error("provider factory was called despite invalid config")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(llm.Config{Provider: "no-such-backend", APIKey: "k", Model: "m"})
	if !apperrors.IsConfiguration(err) {
		t.Fatalf("IsConfiguration(err) = false for %v", err)
	}
	if !strings.Contains(err.Error(), "forgot to import") {
		t.Errorf("err = %v, want a hint about importing the backend package", err)
	}
}

func TestNew_SeedsSystemPrompt(t *testing.T) {
	p := &stubProvider{chatFn: replyWith("ok")}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.SystemPrompt = "Be terse."
	})

	assertHistory(t, c, "system:Be terse.")
	prompt, ok := c.SystemPrompt()
	if !ok || prompt != "Be terse." {
		t.Errorf("SystemPrompt() = %q, %v, want %q, true", prompt, ok, "Be terse.")
	}
}

func TestStreamChunks_CleanFinishRecordsAssistantTurn(t *testing.T) {
	p := &stubProvider{streamFn: chunkStream(
		llm.StreamChunk{Content: "Hel"},
		llm.StreamChunk{Content: "lo"},
		llm.StreamChunk{Done: true, FinishReason: llm.FinishStop},
	)}
	c := newStubClient(t, p, nil)

	ch, err := c.StreamChunks(context.Background(), "hi")
	if err != nil {
		t.Fatalf("StreamChunks() error = %v", err)
	}

	var parts []string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("chunk error = %v", chunk.Err)
		}
		if chunk.Content != "" {
			parts = append(parts, chunk.Content)
		}
	}
	if got := strings.Join(parts, ""); got != "Hello" {
		t.Errorf("streamed content = %q, want %q", got, "Hello")
	}
	assertHistory(t, c, "user:hi", "assistant:Hello")
}

func TestStreamChunks_MidStreamFailureDiscardsPartial(t *testing.T) {
	p := &stubProvider{streamFn: chunkStream(
		llm.StreamChunk{Content: "par"},
		llm.StreamChunk{Content: "tial"},
		llm.StreamChunk{Err: apperrors.Timeout("stub", nil)},
	)}
	c := newStubClient(t, p, nil)

	ch, err := c.StreamChunks(context.Background(), "hi")
	if err != nil {
		t.Fatalf("StreamChunks() error = %v", err)
	}

	var sawErr error
	for chunk := range ch {
		if chunk.Err != nil {
			sawErr = chunk.Err
		}
	}
	if sawErr == nil {
		t.Fatal("no error chunk delivered")
	}
	assertHistory(t, c, "user:hi")
}

func TestStreamChunks_CloseWithoutFinalIsTruncation(t *testing.T) {
	p := &stubProvider{streamFn: chunkStream(
		llm.StreamChunk{Content: "cut"},
	)}
	c := newStubClient(t, p, nil)

	ch, err := c.StreamChunks(context.Background(), "hi")
	if err != nil {
		t.Fatalf("StreamChunks() error = %v", err)
	}

	var last llm.StreamChunk
	for chunk := range ch {
		last = chunk
	}
	if last.Err == nil || !apperrors.IsTimeout(last.Err) {
		t.Fatalf("last chunk = %+v, want timeout error for truncated stream", last)
	}
	assertHistory(t, c, "user:hi")
}

func TestStreamChunks_InitialCallFailureLeavesUserTurn(t *testing.T) {
	attempts := 0
	p := &stubProvider{streamFn: func(ctx context.Context, history []llm.Message) (<-chan llm.StreamChunk, error) {
		attempts++
		return nil, apperrors.RateLimited("stub")
	}}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.MaxRetries = util.Ptr(1)
	})

	_, err := c.StreamChunks(context.Background(), "hi")
	if !apperrors.IsRateLimited(err) {
		t.Fatalf("IsRateLimited(err) = false for %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (initial stream call is retried)", attempts)
	}
	assertHistory(t, c, "user:hi")
}

func TestStream_InvokesCallbackPerFragment(t *testing.T) {
	p := &stubProvider{streamFn: chunkStream(
		llm.StreamChunk{Content: "a"},
		llm.StreamChunk{Content: "b"},
		llm.StreamChunk{Done: true, FinishReason: llm.FinishStop},
	)}
	c := newStubClient(t, p, nil)

	var got []string
	err := c.Stream(context.Background(), "hi", func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("fragments = %v, want [a b]", got)
	}
	assertHistory(t, c, "user:hi", "assistant:ab")
}

func TestStream_CallbackErrorAbortsStream(t *testing.T) {
	p := &stubProvider{streamFn: chunkStream(
		llm.StreamChunk{Content: "a"},
		llm.StreamChunk{Content: "b"},
		llm.StreamChunk{Done: true, FinishReason: llm.FinishStop},
	)}
	c := newStubClient(t, p, nil)

	abort := apperrors.Internal(nil)
	err := c.Stream(context.Background(), "hi", func(fragment string) error {
		return abort
	})
	if err != abort {
		t.Fatalf("Stream() error = %v, want the callback error", err)
	}
	assertHistory(t, c, "user:hi")
}

func TestStream_PropagatesStreamError(t *testing.T) {
	p := &stubProvider{streamFn: chunkStream(
		llm.StreamChunk{Content: "a"},
		llm.StreamChunk{Err: apperrors.API("stub", 502, "upstream died")},
	)}
	c := newStubClient(t, p, nil)

	err := c.Stream(context.Background(), "hi", func(string) error { return nil })
	if !apperrors.IsAPI(err) {
		t.Fatalf("IsAPI(err) = false for %v", err)
	}
}

func TestSwitchProvider_KeepsHistoryByDefault(t *testing.T) {
	first := &stubProvider{name: "first-backend", chatFn: replyWith("from first")}
	c := newStubClient(t, first, func(cfg *llm.Config) {
		cfg.SystemPrompt = "Stay helpful."
	})

	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	before := c.History()

	second := &stubProvider{name: "second-backend", chatFn: replyWith("from second")}
	llm.Register(second.name, func(llm.Config) (llm.Provider, error) { return second, nil })

	if err := c.SwitchProvider(second.name, "new-key", "new-model"); err != nil {
		t.Fatalf("SwitchProvider() error = %v", err)
	}

	if !reflect.DeepEqual(c.History(), before) {
		t.Errorf("History() = %v, want unchanged %v", historyStrings(c.History()), historyStrings(before))
	}
	if c.Provider() != second.name {
		t.Errorf("Provider() = %q, want %q", c.Provider(), second.name)
	}
	if c.Model() != "new-model" {
		t.Errorf("Model() = %q, want %q", c.Model(), "new-model")
	}

	reply, err := c.Chat(context.Background(), "again")
	if err != nil {
		t.Fatalf("Chat() after switch error = %v", err)
	}
	if reply != "from second" {
		t.Errorf("Chat() = %q, want the new backend's reply", reply)
	}
}

func TestSwitchProvider_DropHistoryReseedsSystemPrompt(t *testing.T) {
	first := &stubProvider{name: "drop-first", chatFn: replyWith("ok")}
	c := newStubClient(t, first, func(cfg *llm.Config) {
		cfg.SystemPrompt = "Original prompt."
	})
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	second := &stubProvider{name: "drop-second", chatFn: replyWith("ok")}
	llm.Register(second.name, func(llm.Config) (llm.Provider, error) { return second, nil })

	if err := c.SwitchProvider(second.name, "k", "m", WithKeepHistory(false)); err != nil {
		t.Fatalf("SwitchProvider() error = %v", err)
	}
	assertHistory(t, c, "system:Original prompt.")
}

func TestSwitchProvider_InheritsSettings(t *testing.T) {
	first := &stubProvider{name: "inherit-first", chatFn: replyWith("ok")}
	c := newStubClient(t, first, func(cfg *llm.Config) {
		cfg.Temperature = util.Ptr(0.25)
		cfg.MaxTokens = 99
		cfg.Timeout = 7 * time.Second
		cfg.MaxRetries = util.Ptr(4)
		cfg.BaseURL = "https://first.example.com"
		cfg.SystemPrompt = "Carry me."
	})

	var seenCfg llm.Config
	llm.Register("inherit-second", func(cfg llm.Config) (llm.Provider, error) {
		seenCfg = cfg
		return &stubProvider{name: "inherit-second", chatFn: replyWith("ok")}, nil
	})

	if err := c.SwitchProvider("inherit-second", "k2", "m2"); err != nil {
		t.Fatalf("SwitchProvider() error = %v", err)
	}

	if seenCfg.Temperature == nil || *seenCfg.Temperature != 0.25 {
		t.Errorf("Temperature = %v, want inherited 0.25", seenCfg.Temperature)
	}
	if seenCfg.MaxTokens != 99 {
		t.Errorf("MaxTokens = %d, want inherited 99", seenCfg.MaxTokens)
	}
	if seenCfg.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want inherited 7s", seenCfg.Timeout)
	}
	if seenCfg.MaxRetries == nil || *seenCfg.MaxRetries != 4 {
		t.Errorf("MaxRetries = %v, want inherited 4", seenCfg.MaxRetries)
	}
	if seenCfg.SystemPrompt != "Carry me." {
		t.Errorf("SystemPrompt = %q, want inherited from memory", seenCfg.SystemPrompt)
	}
	if seenCfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want empty (endpoints never carry over)", seenCfg.BaseURL)
	}
}

func TestSwitchProvider_Overrides(t *testing.T) {
	first := &stubProvider{name: "override-first", chatFn: replyWith("ok")}
	c := newStubClient(t, first, nil)

	var seenCfg llm.Config
	llm.Register("override-second", func(cfg llm.Config) (llm.Provider, error) {
		seenCfg = cfg
		return &stubProvider{name: "override-second", chatFn: replyWith("ok")}, nil
	})

	err := c.SwitchProvider("override-second", "k2", "m2",
		WithBaseURL("https://second.example.com"),
		WithTemperature(0.5),
		WithMaxTokens(123),
		WithTimeout(3*time.Second),
		WithMaxRetries(1),
		WithSystemPrompt("New prompt."),
		WithMaxHistory(4),
	)
	if err != nil {
		t.Fatalf("SwitchProvider() error = %v", err)
	}

	if seenCfg.BaseURL != "https://second.example.com" {
		t.Errorf("BaseURL = %q, want the override", seenCfg.BaseURL)
	}
	if seenCfg.Temperature == nil || *seenCfg.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", seenCfg.Temperature)
	}
	if seenCfg.MaxTokens != 123 {
		t.Errorf("MaxTokens = %d, want 123", seenCfg.MaxTokens)
	}
	if seenCfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", seenCfg.Timeout)
	}
	if seenCfg.MaxRetries == nil || *seenCfg.MaxRetries != 1 {
		t.Errorf("MaxRetries = %v, want 1", seenCfg.MaxRetries)
	}
	if seenCfg.SystemPrompt != "New prompt." {
		t.Errorf("SystemPrompt = %q, want %q", seenCfg.SystemPrompt, "New prompt.")
	}
	if seenCfg.MaxHistory != 4 {
		t.Errorf("MaxHistory = %d, want 4", seenCfg.MaxHistory)
	}

	prompt, _ := c.SystemPrompt()
	if prompt != "New prompt." {
		t.Errorf("SystemPrompt() = %q, want the override applied to memory", prompt)
	}
}

func TestSwitchProvider_AllOrNothing(t *testing.T) {
	p := &stubProvider{name: "atomic-stub", chatFn: replyWith("ok")}
	c := newStubClient(t, p, nil)
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	before := c.History()
	beforeCfg := c.Config()

	t.Run("unknown provider", func(t *testing.T) {
		err := c.SwitchProvider("never-registered", "k", "m")
		if !apperrors.IsConfiguration(err) {
			t.Fatalf("IsConfiguration(err) = false for %v", err)
		}
	})

	t.Run("invalid override", func(t *testing.T) {
		err := c.SwitchProvider(p.name, "k", "m", WithTemperature(9.9))
		if !apperrors.IsConfiguration(err) {
			t.Fatalf("IsConfiguration(err) = false for %v", err)
		}
	})

	if c.Provider() != p.name {
		t.Errorf("Provider() = %q, want unchanged %q", c.Provider(), p.name)
	}
	if !reflect.DeepEqual(c.Config(), beforeCfg) {
		t.Errorf("Config() changed after failed switch")
	}
	if !reflect.DeepEqual(c.History(), before) {
		t.Errorf("History() changed after failed switch")
	}
}

func TestClearHistory(t *testing.T) {
	p := &stubProvider{chatFn: replyWith("hello")}
	c := newStubClient(t, p, func(cfg *llm.Config) {
		cfg.SystemPrompt = "Keep me."
	})
	if _, err := c.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	c.ClearHistory(true)
	assertHistory(t, c, "system:Keep me.")

	c.ClearHistory(false)
	assertHistory(t, c)
}

func TestPopLast(t *testing.T) {
	p := &stubProvider{chatFn: func(ctx context.Context, history []llm.Message) (*llm.ChatResponse, error) {
		return nil, apperrors.API("stub", 400, "rejected")
	}}
	c := newStubClient(t, p, nil)

	if _, err := c.Chat(context.Background(), "bad wording"); err == nil {
		t.Fatal("Chat() error = nil, want error")
	}
	assertHistory(t, c, "user:bad wording")

	msg, ok := c.PopLast()
	if !ok || msg.Content != "bad wording" {
		t.Fatalf("PopLast() = %+v, %v, want the failed user turn", msg, ok)
	}
	assertHistory(t, c)
}

func TestString(t *testing.T) {
	p := &stubProvider{name: "repr-stub", chatFn: replyWith("ok")}
	c := newStubClient(t, p, nil)

	got := c.String()
	if !strings.Contains(got, "repr-stub") || !strings.Contains(got, "stub-model") {
		t.Errorf("String() = %q, want it to name the provider and model", got)
	}
}
