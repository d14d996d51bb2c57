package gemini

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/core"
)

// geminiError represents an error response from Gemini API.
type geminiError struct {
	Error *geminiErrorBody `json:"error"`
}

type geminiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Details []struct {
		Type   string `json:"@type"`
		Reason string `json:"reason,omitempty"`
		Domain string `json:"domain,omitempty"`
	} `json:"details,omitempty"`
}

// parseError parses an HTTP error response from Gemini.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var geminiErr geminiError
	if err := json.Unmarshal(body, &geminiErr); err != nil || geminiErr.Error == nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &core.Error{
			Type:    typeFromHTTPStatus(resp.StatusCode, core.ErrProvider),
			Message: msg,
		}
	}

	errType := typeFromStatus(geminiErr.Error.Status)
	errType = typeFromHTTPStatus(resp.StatusCode, errType)

	return &core.Error{
		Type:          errType,
		Message:       geminiErr.Error.Message,
		Code:          geminiErr.Error.Status,
		ProviderError: geminiErr.Error,
	}
}

// streamError converts an error object delivered inside the SSE stream.
func streamError(body *geminiErrorBody) error {
	return &core.Error{
		Type:          typeFromStatus(body.Status),
		Message:       body.Message,
		Code:          body.Status,
		ProviderError: body,
	}
}

// typeFromStatus maps Gemini status codes to our error types.
func typeFromStatus(status string) core.ErrorType {
	switch status {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		return core.ErrInvalidRequest
	case "UNAUTHENTICATED":
		return core.ErrAuthentication
	case "PERMISSION_DENIED":
		return core.ErrPermission
	case "NOT_FOUND":
		return core.ErrNotFound
	case "RESOURCE_EXHAUSTED":
		return core.ErrRateLimit
	case "INTERNAL":
		return core.ErrAPI
	case "UNAVAILABLE":
		return core.ErrOverloaded
	default:
		return core.ErrProvider
	}
}

func typeFromHTTPStatus(code int, fallback core.ErrorType) core.ErrorType {
	switch code {
	case http.StatusTooManyRequests:
		return core.ErrRateLimit
	case http.StatusServiceUnavailable:
		return core.ErrOverloaded
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.ErrAuthentication
	}
	return fallback
}
