package handlers

import (
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

// AgentsHandler lists and creates agents.
type AgentsHandler struct {
	Store        *chat.Store
	MaxBodyBytes int64
}

type agentsResponse struct {
	Agents []chat.Agent `json:"agents"`
}

func (h AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	agents := h.Store.Snapshot().Agents
	if agents == nil {
		agents = []chat.Agent{}
	}
	writeJSON(w, http.StatusOK, agentsResponse{Agents: agents})
}

func (h AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in chat.AgentInput
	if err := decodeJSON(w, r, h.MaxBodyBytes, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	agent, err := chat.NewAgent(in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if _, err := h.Store.Dispatch(chat.AddAgent{Agent: agent}); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}
