package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/uniai/errors"
)

func TestRespondWithError_AppErrorKeepsStatusAndCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithError(c, apperrors.RateLimited("openai"))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if body := decodeError(t, w); body.Code != apperrors.ErrCodeRateLimited {
		t.Errorf("error code = %q, want %q", body.Code, apperrors.ErrCodeRateLimited)
	}
}

func TestRespondWithError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrapped := errors.Join(errors.New("outer"), apperrors.Authentication("openai", http.StatusUnauthorized))
	RespondWithError(c, wrapped)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 (AppError found via errors.As)", w.Code)
	}
}

func TestRespondWithError_PlainErrorBecomesGeneric500(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithError(c, errors.New("database exploded at 10.0.0.7"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeError(t, w)
	if body.Message != "An unexpected error occurred." {
		t.Errorf("message = %q, want the generic message (internals must not leak)", body.Message)
	}
}

func TestRespondOK_WrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondOK(c, gin.H{"value": 7})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"data":{"value":7}}` {
		t.Errorf("body = %s, want the data envelope", got)
	}
}
