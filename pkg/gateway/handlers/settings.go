package handlers

import (
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/codelab"
)

type SettingsHandler struct {
	Store        *chat.Store
	MaxBodyBytes int64
}

// settingsPatch leaves unset fields at their current value.
type settingsPatch struct {
	Language       *string `json:"language"`
	SelectedModel  *string `json:"selected_model"`
	ThinkingMode   *bool   `json:"thinking_mode"`
	ComparisonMode *bool   `json:"comparison_mode"`
}

func (h SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Snapshot().Settings)
}

func (h SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := decodeJSON(w, r, h.MaxBodyBytes, &patch); err != nil {
		writeErr(w, r, err)
		return
	}

	next := h.Store.Snapshot().Settings
	if patch.Language != nil {
		lang, ok := chat.MatchLanguage(*patch.Language)
		if !ok {
			writeErr(w, r, core.NewInvalidRequestErrorWithParam("language must be ja or en", "language"))
			return
		}
		next.Language = lang
	}
	if patch.SelectedModel != nil {
		next.SelectedModel = chat.ModelID(*patch.SelectedModel)
	}
	if patch.ThinkingMode != nil {
		next.ThinkingMode = *patch.ThinkingMode
	}
	if patch.ComparisonMode != nil {
		next.ComparisonMode = *patch.ComparisonMode
	}

	state, err := h.Store.Dispatch(chat.UpdateSettings{Settings: next})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Settings)
}

type QuickActionsHandler struct{}

func (QuickActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, struct {
		QuickActions []codelab.QuickAction `json:"quick_actions"`
	}{QuickActions: codelab.QuickActions()})
}
