package handler

import (
	"errors"
	"net/http"

	"github.com/promptgate/promptgate/internal/server/middleware"
	"github.com/promptgate/promptgate/internal/service"
)

// TokenHandler serves the token-scoped self-service endpoints: the caller's
// own token listing and the prompts visible to the presented token. The MCP
// server binds the same PromptService methods; business rules live there,
// not here.
type TokenHandler struct {
	prompts *service.PromptService
}

func NewTokenHandler(prompts *service.PromptService) *TokenHandler {
	return &TokenHandler{prompts: prompts}
}

// ListOwnTokens returns the masked tokens of the presenting key's owner.
// GET /api/v1/tokens
func (h *TokenHandler) ListOwnTokens(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(middleware.TokenHeader)

	tokens, err := h.prompts.ListTokensForOwner(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tokens: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(tokens))
	for _, t := range tokens {
		resources = append(resources, map[string]interface{}{
			"id":           t.ID,
			"name":         t.Name,
			"masked_key":   t.MaskedKey,
			"status":       t.Status,
			"issued_at":    t.IssuedAt,
			"expires_at":   t.ExpiresAt,
			"last_used_at": t.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, listResponse(resources))
}

// ListOwnPrompts returns the prompt templates mapped to the presented token.
// GET /api/v1/prompts
func (h *TokenHandler) ListOwnPrompts(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(middleware.TokenHeader)

	prompts, err := h.prompts.GetPromptsForToken(r.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrTokenInactive) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to list prompts: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(prompts))
	for i := range prompts {
		p := &prompts[i]
		resources = append(resources, map[string]interface{}{
			"id":      p.ID,
			"name":    p.Name,
			"content": p.Content,
			"version": p.Version,
			"locale":  p.Locale,
		})
	}
	writeJSON(w, http.StatusOK, listResponse(resources))
}
