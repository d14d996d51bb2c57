package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "content must not be empty",
	}

	expected := "invalid_request_error: content must not be empty"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrRateLimit,
		Message: "too many requests",
		Code:    "RESOURCE_EXHAUSTED",
	}

	expected := "rate_limit_error: too many requests (code: RESOURCE_EXHAUSTED)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("rate limit exceeded", 60)
	if err.Type != ErrRateLimit {
		t.Errorf("Type = %v, want %v", err.Type, ErrRateLimit)
	}
	if err.RetryAfter == nil || *err.RetryAfter != 60 {
		t.Errorf("RetryAfter = %v, want 60", err.RetryAfter)
	}
}

func TestNewProviderError_Unwraps(t *testing.T) {
	underlying := errors.New("connection reset")
	err := NewProviderError("gemini", underlying)
	if err.Type != ErrProvider {
		t.Fatalf("Type=%v, want %v", err.Type, ErrProvider)
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("errors.Is(err, underlying)=false, want true")
	}
	if err.Message != "gemini: connection reset" {
		t.Fatalf("Message=%q", err.Message)
	}
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		typ  ErrorType
		want bool
	}{
		{ErrRateLimit, true},
		{ErrOverloaded, true},
		{ErrAPI, true},
		{ErrInvalidRequest, false},
		{ErrNotFound, false},
		{ErrProvider, false},
	}
	for _, tt := range tests {
		e := &Error{Type: tt.typ}
		if got := e.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%s)=%v, want %v", tt.typ, got, tt.want)
		}
	}
}
