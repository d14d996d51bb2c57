package handlers

import (
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromRequest(r)
	writeCoreErrorJSON(w, reqID, &core.Error{
		Type:      core.ErrNotFound,
		Message:   "not found",
		RequestID: reqID,
	}, http.StatusNotFound)
}
