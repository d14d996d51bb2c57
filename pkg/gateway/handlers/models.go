package handlers

import (
	"net/http"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/generation"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
)

type ModelsHandler struct {
	Config config.Config
}

type modelsResponse struct {
	Models   []modelInfo  `json:"models"`
	Default  chat.ModelID `json:"default"`
	Fallback chat.ModelID `json:"fallback"`
}

type modelInfo struct {
	ID        chat.ModelID `json:"id"`
	HighPower bool         `json:"high_power,omitempty"`
	Default   bool         `json:"default,omitempty"`
	Fallback  bool         `json:"fallback,omitempty"`
}

func (h ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	def := chat.ModelID(h.Config.DefaultModel)
	if !chat.IsKnownModel(def) {
		def = chat.DefaultModel
	}

	known := chat.KnownModels()
	out := make([]modelInfo, 0, len(known))
	for _, id := range known {
		out = append(out, modelInfo{
			ID:        id,
			HighPower: generation.IsHighPower(id),
			Default:   id == def,
			Fallback:  id == chat.FallbackModel,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, modelsResponse{Models: out, Default: def, Fallback: chat.FallbackModel})
}
