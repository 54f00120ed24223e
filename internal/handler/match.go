package handler

import (
	"net/http"
	"strings"

	"github.com/promptgate/promptgate/internal/service"
)

// MatchHandler exposes the keyword matching engine over HTTP.
type MatchHandler struct {
	matcher *service.Matcher
}

func NewMatchHandler(matcher *service.Matcher) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

type matchRequest struct {
	Requirement string `json:"requirement"`
	Locale      string `json:"locale,omitempty"`
	AllowRegex  bool   `json:"allowRegex,omitempty"`
}

// Match resolves a free-text requirement to a prompt template.
// POST /api/v1/prompt/match
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	// A blank requirement is the one validation failure worth a 400; business
	// misses are part of the result shape, not HTTP errors.
	if strings.TrimSpace(req.Requirement) == "" {
		writeError(w, http.StatusBadRequest, "Requirement is required")
		return
	}

	result := h.matcher.Match(r.Context(), req.Requirement, req.Locale, req.AllowRegex)
	writeJSON(w, http.StatusOK, result)
}
