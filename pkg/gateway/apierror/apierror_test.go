package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

func TestFromError_ContextCanceled_Is408Cancelled(t *testing.T) {
	ce, status := FromError(context.Canceled, "req_test")
	if status != 408 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrAPI {
		t.Fatalf("type=%q", ce.Type)
	}
	if ce.Code != "cancelled" {
		t.Fatalf("code=%q", ce.Code)
	}
	if ce.RequestID != "req_test" {
		t.Fatalf("request_id=%q", ce.RequestID)
	}
}

func TestFromError_Overloaded_Is529(t *testing.T) {
	ce, status := FromError(&core.Error{Type: core.ErrOverloaded, Message: "overloaded"}, "req_test")
	if status != 529 {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrOverloaded {
		t.Fatalf("type=%q", ce.Type)
	}
}

func TestFromError_CoreErrorCopiedWithRequestID(t *testing.T) {
	in := core.NewInvalidRequestErrorWithParam("text is required", "text")
	ce, status := FromError(fmt.Errorf("send: %w", in), "req_1")
	if status != http.StatusBadRequest || ce.Param != "text" || ce.RequestID != "req_1" {
		t.Fatalf("got status=%d err=%+v", status, ce)
	}
	if in.RequestID != "" {
		t.Fatalf("input error mutated: %+v", in)
	}
}

func TestFromError_StoreErrors(t *testing.T) {
	ce, status := FromError(fmt.Errorf("%w: s1", chat.ErrSessionNotFound), "req")
	if status != http.StatusNotFound || ce.Type != core.ErrNotFound {
		t.Fatalf("not found: status=%d err=%+v", status, ce)
	}
	ce, status = FromError(&chat.ValidationError{Param: "name", Message: "required"}, "req")
	if status != http.StatusBadRequest || ce.Param != "name" {
		t.Fatalf("validation: status=%d err=%+v", status, ce)
	}
}

func TestFromError_DecodeErrors(t *testing.T) {
	var v struct{ N int }
	err := json.Unmarshal([]byte(`{"N":"x"}`), &v)
	ce, status := FromError(err, "req")
	if status != http.StatusBadRequest || ce.Param != "N" {
		t.Fatalf("type error: status=%d err=%+v", status, ce)
	}
	_, status = FromError(&http.MaxBytesError{Limit: 10}, "req")
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("max bytes status=%d", status)
	}
}

func TestFromError_UnknownIsOpaque(t *testing.T) {
	ce, status := FromError(errors.New("secret detail"), "req")
	if status != http.StatusInternalServerError || ce.Message != "internal error" {
		t.Fatalf("status=%d err=%+v", status, ce)
	}
}
