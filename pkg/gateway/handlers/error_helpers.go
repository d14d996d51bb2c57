package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/apierror"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/mw"
)

func writeCoreErrorJSON(w http.ResponseWriter, reqID string, coreErr *core.Error, status int) {
	if coreErr != nil && coreErr.RequestID == "" {
		coreErr.RequestID = reqID
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: coreErr})
}

// writeErr maps err onto the JSON error envelope.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	reqID := requestIDFromRequest(r)
	coreErr, status := apierror.FromError(err, reqID)
	if coreErr.RetryAfter != nil && *coreErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", itoa(*coreErr.RetryAfter))
	}
	writeCoreErrorJSON(w, reqID, coreErr, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &maxErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return err
		}
		return core.NewInvalidRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

func requestIDFromRequest(r *http.Request) string {
	if id, ok := mw.RequestIDFrom(r.Context()); ok {
		return id
	}
	return ""
}
