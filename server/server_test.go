package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestServer_StartStop(t *testing.T) {
	// Port 0 binds an ephemeral port so tests don't collide.
	srv := New(Config{Host: "127.0.0.1"}, testLogger())
	srv.RegisterDefaultEndpoints("uniai-test", nil)
	srv.Handle("/custom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "custom handler")
	}))

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	base := "http://" + srv.Addr()
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(base + "/custom")
	if err != nil {
		t.Fatalf("GET /custom error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "custom handler" {
		t.Errorf("/custom body = %q, want the mounted handler's output", body)
	}

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := http.Get(base + "/health"); err == nil {
		t.Error("GET /health succeeded after shutdown")
	}
}

func TestServer_InfoEndpoint(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1"}, testLogger())
	srv.RegisterDefaultEndpoints("uniai-test", nil)

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop(ctx)

	resp, err := http.Get("http://" + srv.Addr() + "/info")
	if err != nil {
		t.Fatalf("GET /info error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/info status = %d, want 200", resp.StatusCode)
	}
}
