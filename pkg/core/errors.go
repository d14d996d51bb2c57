package core

import (
	"fmt"
)

// Error is the canonical error carried across the gateway and providers.
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Param         string    `json:"param,omitempty"`
	Code          string    `json:"code,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
	RetryAfter    *int      `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrConflict       ErrorType = "conflict_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"
)

func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

func NewRateLimitError(message string, retryAfter int) *Error {
	return &Error{
		Type:       ErrRateLimit,
		Message:    message,
		RetryAfter: &retryAfter,
	}
}

func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

func NewOverloadedError(message string) *Error {
	return &Error{
		Type:    ErrOverloaded,
		Message: message,
	}
}

// NewProviderError wraps an upstream failure under the provider name.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:          ErrProvider,
		Message:       fmt.Sprintf("%s: %v", provider, underlying),
		ProviderError: underlying,
	}
}

// IsRetryable reports whether the same request may succeed if sent again.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}
