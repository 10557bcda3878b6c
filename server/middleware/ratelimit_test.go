package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func rateLimitEngine(cfg RateLimitConfig) *gin.Engine {
	e := gin.New()
	e.Use(RateLimit(cfg))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return e
}

func hitWithKey(e *gin.Engine, key string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Test-Key", key)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w.Code
}

func headerKey(c *gin.Context) string {
	return c.GetHeader("X-Test-Key")
}

func TestRateLimit_EnforcesBudget(t *testing.T) {
	e := rateLimitEngine(RateLimitConfig{RequestsPerMinute: 3, KeyFunc: headerKey})

	for i := 0; i < 3; i++ {
		if code := hitWithKey(e, "a"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, code)
		}
	}
	if code := hitWithKey(e, "a"); code != http.StatusTooManyRequests {
		t.Errorf("request over budget status = %d, want 429", code)
	}
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	e := rateLimitEngine(RateLimitConfig{RequestsPerMinute: 1, KeyFunc: headerKey})

	if code := hitWithKey(e, "a"); code != http.StatusOK {
		t.Fatalf("first key status = %d, want 200", code)
	}
	if code := hitWithKey(e, "a"); code != http.StatusTooManyRequests {
		t.Fatalf("first key second hit status = %d, want 429", code)
	}
	if code := hitWithKey(e, "b"); code != http.StatusOK {
		t.Errorf("second key status = %d, want 200 (budgets are per key)", code)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := &rateLimiter{requests: make(map[string][]time.Time), limit: 1}
	rl.requests["k"] = []time.Time{time.Now().Add(-2 * time.Minute)}

	if !rl.allow("k") {
		t.Error("allow() = false, want true once the old request left the window")
	}
	if rl.allow("k") {
		t.Error("allow() = true, want false with the budget spent")
	}
}

func TestPruneBefore(t *testing.T) {
	now := time.Now()
	times := []time.Time{
		now.Add(-90 * time.Second),
		now.Add(-30 * time.Second),
		now.Add(-time.Second),
	}
	kept := pruneBefore(times, now.Add(-time.Minute))
	if len(kept) != 2 {
		t.Errorf("pruneBefore kept %d entries, want 2", len(kept))
	}
}

func TestSessionKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x?session_id=abc", nil)
	if got := SessionKey(c); got != "abc" {
		t.Errorf("SessionKey() = %q, want %q", got, "abc")
	}

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	if got := SessionKey(c2); got == "" {
		t.Error("SessionKey() = \"\", want the client IP fallback")
	}
}
