package handlers

import (
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/assistant"
	"github.com/vango-go/gemini-omnichat/pkg/core/codelab"
)

// CodeHandler serves the code lab: porting and diagnosis run as ordinary
// chat turns, and the viewer lists the code blocks of a session.
type CodeHandler struct {
	Messages MessagesHandler
}

type portRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type diagnoseRequest struct {
	Code   string `json:"code"`
	Errors string `json:"errors"`
}

type snippetsResponse struct {
	Snippets []codelab.Snippet `json:"snippets"`
}

func (h CodeHandler) Port(w http.ResponseWriter, r *http.Request) {
	var req portRequest
	if err := decodeJSON(w, r, h.Messages.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	prompt, err := codelab.PortingPrompt(req.Source, req.Target)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.Messages.stream(w, r, assistant.SendInput{SessionID: r.PathValue("id"), Text: prompt})
}

func (h CodeHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := decodeJSON(w, r, h.Messages.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	prompt, err := codelab.DiagnosisPrompt(req.Code, req.Errors)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.Messages.stream(w, r, assistant.SendInput{SessionID: r.PathValue("id"), Text: prompt})
}

func (h CodeHandler) Snippets(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := h.Messages.Assistant.Store().Session(id)
	if !ok {
		writeErr(w, r, core.NewNotFoundError("session not found: "+id))
		return
	}
	snippets := codelab.ExtractSnippets(sess.Messages)
	if snippets == nil {
		snippets = []codelab.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippetsResponse{Snippets: snippets})
}
