package httpapi

import (
	"net/http"

	"github.com/carevox/carevox/internal/flow"
	"github.com/carevox/carevox/internal/scriptgen"
)

type scriptInfo struct {
	Title string       `json:"title"`
	Steps int          `json:"steps"`
	Flow  flow.FlowMap `json:"flow"`
}

// handleListScripts returns the scripts available without generation.
func (s *Server) handleListScripts(w http.ResponseWriter, _ *http.Request) {
	builtin := flow.Builtin()
	respondJSON(w, http.StatusOK, map[string]any{
		"scripts": []scriptInfo{
			{Title: builtin.Title, Steps: len(builtin.Steps), Flow: builtin},
		},
		"generation_enabled": s.generator.Enabled(),
	})
}

func (s *Server) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	if !s.generator.Enabled() {
		respondError(w, http.StatusNotImplemented, "generation_disabled", "script generation requires a configured model backend")
		return
	}

	var req scriptgen.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	generated, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadGateway, "generation_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, generated)
}
