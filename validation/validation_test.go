package validation

import (
	"strings"
	"testing"

	apperrors "github.com/kbukum/uniai/errors"
)

type sample struct {
	Name     string   `json:"name" validate:"required"`
	Endpoint string   `json:"endpoint" validate:"omitempty,url"`
	Weight   *float64 `json:"weight" validate:"omitempty,gte=0,lte=2"`
	Count    int      `json:"count" validate:"omitempty,gt=0"`
}

func TestStruct_Valid(t *testing.T) {
	w := 1.5
	s := sample{Name: "ok", Endpoint: "https://example.com", Weight: &w, Count: 3}
	if err := Struct(s); err != nil {
		t.Fatalf("Struct() error: %v", err)
	}
}

func TestStruct_MissingRequired(t *testing.T) {
	err := Struct(sample{})
	if err == nil {
		t.Fatal("Struct() = nil, want error for missing name")
	}
	if !apperrors.IsConfiguration(err) {
		t.Errorf("IsConfiguration() = false for %v", err)
	}
	if !strings.Contains(err.Error(), "name: is required") {
		t.Errorf("error = %q, want mention of required name", err.Error())
	}
}

func TestStruct_RangeViolation(t *testing.T) {
	w := 2.5
	err := Struct(sample{Name: "ok", Weight: &w})
	if err == nil {
		t.Fatal("Struct() = nil, want error for weight > 2")
	}
	if !strings.Contains(err.Error(), "weight: must be at most 2") {
		t.Errorf("error = %q, want lte message for weight", err.Error())
	}
}

func TestStruct_NilPointerSkipped(t *testing.T) {
	if err := Struct(sample{Name: "ok"}); err != nil {
		t.Fatalf("Struct() error for nil optional pointer: %v", err)
	}
}

func TestStruct_CollectsAllFields(t *testing.T) {
	w := -1.0
	err := Struct(sample{Weight: &w, Count: -2})
	if err == nil {
		t.Fatal("Struct() = nil, want combined error")
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("error type = %T, want *AppError", err)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		t.Fatalf("Details[fields] type = %T, want []FieldError", appErr.Details["fields"])
	}
	if len(fields) != 3 {
		t.Errorf("got %d field errors, want 3 (name, weight, count)", len(fields))
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MaxRetries", "max_retries"},
		{"APIKey", "a_p_i_key"},
		{"simple", "simple"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
