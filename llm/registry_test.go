package llm

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/kbukum/uniai/errors"
)

type fakeProvider struct {
	name string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Chat(ctx context.Context, history []Message) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok", FinishReason: FinishStop}, nil
}

func (p *fakeProvider) StreamChat(ctx context.Context, history []Message) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

// swapRegistry replaces the global registry for the duration of a test.
func swapRegistry(t *testing.T) {
	t.Helper()
	providersMu.Lock()
	saved := providers
	providers = map[string]Factory{}
	providersMu.Unlock()

	t.Cleanup(func() {
		providersMu.Lock()
		providers = saved
		providersMu.Unlock()
	})
}

func TestRegister_LastWins(t *testing.T) {
	swapRegistry(t)

	Register("dup", func(cfg Config) (Provider, error) {
		return &fakeProvider{name: "first"}, nil
	})
	Register("dup", func(cfg Config) (Provider, error) {
		return &fakeProvider{name: "second"}, nil
	})

	cfg := validConfig()
	cfg.Provider = "dup"
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if p.Name() != "second" {
		t.Errorf("Name() = %q, want %q (last registration wins)", p.Name(), "second")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	swapRegistry(t)

	cfg := validConfig()
	cfg.Provider = "nope"
	_, err := New(cfg)
	if err == nil {
		t.Fatal("New() = nil error for unknown provider")
	}
	if !apperrors.IsConfiguration(err) {
		t.Errorf("IsConfiguration() = false for %v", err)
	}
	if !strings.Contains(err.Error(), `unknown provider "nope"`) {
		t.Errorf("error = %q, want mention of unknown provider", err.Error())
	}
}

func TestNew_ValidatesBeforeFactory(t *testing.T) {
	swapRegistry(t)

	called := false
	Register("strict", func(cfg Config) (Provider, error) {
		called = true
		return &fakeProvider{name: "strict"}, nil
	})

	cfg := validConfig()
	cfg.Provider = "strict"
	cfg.APIKey = ""
	if _, err := New(cfg); err == nil {
		t.Fatal("New() = nil error for missing api key")
	}
	if called {
		t.Error("factory was called despite invalid config")
	}
}

func TestNew_FactorySeesDefaults(t *testing.T) {
	swapRegistry(t)

	var seen Config
	Register("observe", func(cfg Config) (Provider, error) {
		seen = cfg
		return &fakeProvider{name: "observe"}, nil
	})

	cfg := validConfig()
	cfg.Provider = "observe"
	if _, err := New(cfg); err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if seen.Temperature == nil || *seen.Temperature != 1.0 {
		t.Errorf("factory temperature = %v, want defaulted 1.0", seen.Temperature)
	}
	if seen.Timeout != DefaultTimeout {
		t.Errorf("factory timeout = %v, want %v", seen.Timeout, DefaultTimeout)
	}
	if seen.MaxRetries == nil || *seen.MaxRetries != 3 {
		t.Errorf("factory max retries = %v, want defaulted 3", seen.MaxRetries)
	}
}

func TestProviders_Sorted(t *testing.T) {
	swapRegistry(t)

	Register("zeta", func(cfg Config) (Provider, error) { return &fakeProvider{}, nil })
	Register("alpha", func(cfg Config) (Provider, error) { return &fakeProvider{}, nil })

	got := Providers()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("Providers() = %v, want [alpha zeta]", got)
	}
}
