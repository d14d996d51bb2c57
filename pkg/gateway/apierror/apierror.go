// Package apierror maps internal errors onto the canonical JSON error body
// and an HTTP status.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

type Envelope struct {
	Error *core.Error `json:"error"`
}

func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, statusFromType(coreErr.Type)
	}

	// Store errors that escaped without being mapped.
	if errors.Is(err, chat.ErrSessionNotFound) || errors.Is(err, chat.ErrMessageNotFound) || errors.Is(err, chat.ErrAgentNotFound) {
		return &core.Error{
			Type:      core.ErrNotFound,
			Message:   err.Error(),
			RequestID: requestID,
		}, http.StatusNotFound
	}
	var ve *chat.ValidationError
	if errors.As(err, &ve) && ve != nil {
		return &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   ve.Message,
			Param:     ve.Param,
			RequestID: requestID,
		}, http.StatusBadRequest
	}

	// Request body decoding.
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "request body too large",
			Code:      "body_too_large",
			RequestID: requestID,
		}, http.StatusRequestEntityTooLarge
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		out := &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "invalid JSON body: " + err.Error(),
			RequestID: requestID,
		}
		if typeErr != nil {
			out.Param = typeErr.Field
		}
		return out, http.StatusBadRequest
	}

	// Unknown errors: treat as internal API error (do not leak details by default).
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrConflict:
		return http.StatusConflict
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return 529
	case core.ErrProvider:
		return http.StatusBadGateway
	case core.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
