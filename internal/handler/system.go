package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/server/middleware"
	"github.com/promptgate/promptgate/internal/service"
	"github.com/promptgate/promptgate/internal/store"
)

// SystemHandler implements the admin management API: members, tokens,
// keyword rules, prompt templates, and token-prompt mappings.
type SystemHandler struct {
	store  *store.Store
	tokens *service.TokenService
}

func NewSystemHandler(st *store.Store, tokens *service.TokenService) *SystemHandler {
	return &SystemHandler{store: st, tokens: tokens}
}

// actorEmail resolves the acting admin's identity for audit fields.
func (h *SystemHandler) actorEmail(r *http.Request) string {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		return ""
	}
	member, err := h.store.GetMember(r.Context(), principal.MemberID)
	if err != nil {
		return fmt.Sprintf("member:%d", principal.MemberID)
	}
	return member.Email
}

// ---------------------------------------------------------------------------
// Member management
// ---------------------------------------------------------------------------

type createMemberRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateMember registers a new member account.
// POST /api/v1/system/member
func (h *SystemHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	member := &model.Member{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: service.HashPassword(req.Password),
		IsAdmin:      req.IsAdmin,
		Status:       model.MemberActive,
	}
	if err := h.store.CreateMember(r.Context(), member); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Member with this email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create member: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, memberToMap(member))
}

// ListMembers returns all member accounts.
// GET /api/v1/system/member
func (h *SystemHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members: "+err.Error())
		return
	}
	resources := make([]map[string]interface{}, 0, len(members))
	for i := range members {
		resources = append(resources, memberToMap(&members[i]))
	}
	writeJSON(w, http.StatusOK, listResponse(resources))
}

// DisableMember soft-disables a member and revokes all of their issued
// tokens in the same unit of work.
// DELETE /api/v1/system/member/{memberId}
func (h *SystemHandler) DisableMember(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memberId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid member ID")
		return
	}

	if err := h.tokens.DisableMember(r.Context(), id, h.actorEmail(r)); err != nil {
		if errors.Is(err, service.ErrMemberNotFound) {
			writeError(w, http.StatusNotFound, "Member not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to disable member: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Member disabled, tokens revoked",
	})
}

// ---------------------------------------------------------------------------
// Token management
// ---------------------------------------------------------------------------

type issueTokenRequest struct {
	MemberID        int64  `json:"member_id"`
	Name            string `json:"name"`
	LifetimeSeconds int64  `json:"lifetime_seconds,omitempty"` // 0 = never expires
}

type issueTokenResponse struct {
	ID        int64      `json:"id"`
	TokenKey  string     `json:"token_key"` // Plaintext, shown ONCE.
	MemberID  int64      `json:"member_id"`
	Name      string     `json:"name"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IssueToken creates a new token for a member and returns the raw key once.
// POST /api/v1/system/token
func (h *SystemHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.MemberID == 0 {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	token, err := h.tokens.Issue(r.Context(), req.MemberID, req.Name,
		time.Duration(req.LifetimeSeconds)*time.Second, h.actorEmail(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMemberNotFound):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Member not found: %d", req.MemberID))
		case errors.Is(err, service.ErrMemberDisabled):
			writeError(w, http.StatusBadRequest, "Member is disabled")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, issueTokenResponse{
		ID:        token.ID,
		TokenKey:  token.TokenKey,
		MemberID:  token.MemberID,
		Name:      token.Name,
		IssuedAt:  token.IssuedAt,
		ExpiresAt: token.ExpiresAt,
	})
}

// ListTokens returns all tokens with masked keys.
// GET /api/v1/system/token
func (h *SystemHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.store.ListTokens(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tokens: "+err.Error())
		return
	}
	resources := make([]map[string]interface{}, 0, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		resources = append(resources, map[string]interface{}{
			"id":           t.ID,
			"masked_key":   t.MaskedKey(),
			"member_id":    t.MemberID,
			"name":         t.Name,
			"status":       t.Status,
			"issued_at":    t.IssuedAt,
			"expires_at":   t.ExpiresAt,
			"revoked_at":   t.RevokedAt,
			"last_used_at": t.LastUsedAt,
			"created_by":   t.CreatedBy,
		})
	}
	writeJSON(w, http.StatusOK, listResponse(resources))
}

// RevokeToken revokes a token by its key.
// DELETE /api/v1/system/token/{tokenKey}
func (h *SystemHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "tokenKey")
	if err := h.tokens.Revoke(r.Context(), key, h.actorEmail(r)); err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			writeError(w, http.StatusNotFound, "Token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke token: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Token revoked",
	})
}

// ---------------------------------------------------------------------------
// Keyword rule management
// ---------------------------------------------------------------------------

type keywordRequest struct {
	Keyword          string `json:"keyword"`
	IsRegex          bool   `json:"is_regex"`
	Locale           string `json:"locale,omitempty"`
	PromptTemplateID int64  `json:"prompt_template_id"`
	Status           string `json:"status,omitempty"`
}

// CreateKeyword adds a keyword rule.
// POST /api/v1/system/keyword
func (h *SystemHandler) CreateKeyword(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "Keyword is required")
		return
	}
	if _, err := h.store.GetPromptTemplate(r.Context(), req.PromptTemplateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Prompt template not found: %d", req.PromptTemplateID))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate template: "+err.Error())
		return
	}

	keyword := &model.KeywordPrompt{
		Keyword:          req.Keyword,
		IsRegex:          req.IsRegex,
		Locale:           req.Locale,
		PromptTemplateID: req.PromptTemplateID,
		Status:           model.RuleActive,
	}
	if err := h.store.CreateKeywordPrompt(r.Context(), keyword); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Keyword already exists for this locale")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create keyword: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, keywordToMap(keyword))
}

// ListKeywords returns all keyword rules.
// GET /api/v1/system/keyword
func (h *SystemHandler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.store.ListKeywordPrompts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list keywords: "+err.Error())
		return
	}
	resources := make([]map[string]interface{}, 0, len(keywords))
	for i := range keywords {
		resources = append(resources, keywordToMap(&keywords[i]))
	}
	writeJSON(w, http.StatusOK, listResponse(resources))
}

// UpdateKeyword replaces a keyword rule's pattern, target, and status.
// PUT /api/v1/system/keyword/{keywordId}
func (h *SystemHandler) UpdateKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keywordId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid keyword ID")
		return
	}
	var req keywordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "Keyword is required")
		return
	}

	keyword, err := h.store.GetKeywordPrompt(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Keyword not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load keyword: "+err.Error())
		return
	}

	keyword.Keyword = req.Keyword
	keyword.IsRegex = req.IsRegex
	keyword.Locale = req.Locale
	if req.PromptTemplateID != 0 {
		keyword.PromptTemplateID = req.PromptTemplateID
	}
	if req.Status != "" {
		keyword.Status = model.RuleStatus(req.Status)
	}

	if err := h.store.UpdateKeywordPrompt(r.Context(), keyword); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Keyword already exists for this locale")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update keyword: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keywordToMap(keyword))
}

// DisableKeyword soft-disables a keyword rule.
// DELETE /api/v1/system/keyword/{keywordId}
func (h *SystemHandler) DisableKeyword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keywordId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid keyword ID")
		return
	}
	if err := h.store.DisableKeywordPrompt(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Keyword not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to disable keyword: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Keyword disabled"})
}

// ---------------------------------------------------------------------------
// Prompt template management
// ---------------------------------------------------------------------------

type templateRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Version int    `json:"version,omitempty"`
	Locale  string `json:"locale,omitempty"`
	Status  string `json:"status,omitempty"`
}

// CreateTemplate adds a prompt template.
// POST /api/v1/system/template
func (h *SystemHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Name and content are required")
		return
	}

	tpl := &model.PromptTemplate{
		Name:    req.Name,
		Content: req.Content,
		Version: req.Version,
		Locale:  req.Locale,
		Status:  model.RuleActive,
	}
	if err := h.store.CreatePromptTemplate(r.Context(), tpl); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Template with this name, version, and locale already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create template: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, templateToMap(tpl))
}

// ListTemplates returns all prompt templates.
// GET /api/v1/system/template
func (h *SystemHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListPromptTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates: "+err.Error())
		return
	}
	resources := make([]map[string]interface{}, 0, len(templates))
	for i := range templates {
		resources = append(resources, templateToMap(&templates[i]))
	}
	writeJSON(w, http.StatusOK, listResponse(resources))
}

// UpdateTemplate updates a template's content and status.
// PUT /api/v1/system/template/{templateId}
func (h *SystemHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "templateId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}
	var req templateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tpl, err := h.store.GetPromptTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load template: "+err.Error())
		return
	}

	if req.Content != "" {
		tpl.Content = req.Content
	}
	if req.Status != "" {
		tpl.Status = model.RuleStatus(req.Status)
	}
	if err := h.store.UpdatePromptTemplate(r.Context(), tpl); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update template: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, templateToMap(tpl))
}

// DisableTemplate soft-disables a template. Keyword rules and mappings that
// reference it stop resolving but are kept.
// DELETE /api/v1/system/template/{templateId}
func (h *SystemHandler) DisableTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "templateId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}
	if err := h.store.DisablePromptTemplate(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to disable template: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Template disabled"})
}

// ---------------------------------------------------------------------------
// Token-prompt mapping management
// ---------------------------------------------------------------------------

type mappingRequest struct {
	PromptTemplateID int64 `json:"prompt_template_id"`
}

// CreateMapping grants a token visibility into a template.
// POST /api/v1/system/token/{tokenKey}/prompts
func (h *SystemHandler) CreateMapping(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "tokenKey")
	var req mappingRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	token, err := h.store.GetTokenByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load token: "+err.Error())
		return
	}
	if _, err := h.store.GetPromptTemplate(r.Context(), req.PromptTemplateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Prompt template not found: %d", req.PromptTemplateID))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate template: "+err.Error())
		return
	}

	mapping := &model.TokenPromptMapping{TokenID: token.ID, PromptTemplateID: req.PromptTemplateID}
	if err := h.store.CreateTokenPromptMapping(r.Context(), mapping); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Mapping already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create mapping: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                 mapping.ID,
		"token_id":           mapping.TokenID,
		"prompt_template_id": mapping.PromptTemplateID,
		"status":             mapping.Status,
	})
}

// RemoveMapping withdraws a token's visibility into a template.
// DELETE /api/v1/system/token/{tokenKey}/prompts/{templateId}
func (h *SystemHandler) RemoveMapping(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "tokenKey")
	templateID, err := strconv.ParseInt(chi.URLParam(r, "templateId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}

	token, err := h.store.GetTokenByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Token not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load token: "+err.Error())
		return
	}

	if err := h.store.RemoveTokenPromptMapping(r.Context(), token.ID, templateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Mapping not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to remove mapping: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Mapping removed"})
}

// ---------------------------------------------------------------------------
// Serialization helpers (never expose password hashes or raw token keys)
// ---------------------------------------------------------------------------

func memberToMap(m *model.Member) map[string]interface{} {
	return map[string]interface{}{
		"id":         m.ID,
		"email":      m.Email,
		"name":       m.Name,
		"is_admin":   m.IsAdmin,
		"status":     m.Status,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
}

func keywordToMap(k *model.KeywordPrompt) map[string]interface{} {
	return map[string]interface{}{
		"id":                 k.ID,
		"keyword":            k.Keyword,
		"is_regex":           k.IsRegex,
		"locale":             k.Locale,
		"prompt_template_id": k.PromptTemplateID,
		"status":             k.Status,
		"created_at":         k.CreatedAt,
		"updated_at":         k.UpdatedAt,
	}
}

func templateToMap(t *model.PromptTemplate) map[string]interface{} {
	return map[string]interface{}{
		"id":         t.ID,
		"name":       t.Name,
		"content":    t.Content,
		"version":    t.Version,
		"locale":     t.Locale,
		"status":     t.Status,
		"created_at": t.CreatedAt,
		"updated_at": t.UpdatedAt,
	}
}
