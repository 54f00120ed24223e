package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/promptgate/promptgate/internal/service"
)

// SessionHandler handles member login. A successful login returns a signed
// session JWT plus a freshly issued opaque API token; the token is what the
// gatekeeper enforces, the JWT is a conventional signed-claims session.
type SessionHandler struct {
	auth   *service.AuthService
	tokens *service.TokenService
	jwtTTL time.Duration
}

func NewSessionHandler(auth *service.AuthService, tokens *service.TokenService, jwtTTL time.Duration) *SessionHandler {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &SessionHandler{auth: auth, tokens: tokens, jwtTTL: jwtTTL}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionToken string `json:"session_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	APIToken     string `json:"api_token"` // Plaintext, shown ONCE.
	MemberID     int64  `json:"member_id"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"is_admin"`
}

// Login verifies credentials and issues a session.
// POST /auth/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	member, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Authentication error: "+err.Error())
		return
	}

	sessionToken, err := h.auth.IssueJWT(member.ID, member.Email, h.jwtTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session: "+err.Error())
		return
	}

	apiToken, err := h.tokens.Issue(r.Context(), member.ID, "login "+time.Now().UTC().Format("2006-01-02"), 0, member.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		SessionToken: sessionToken,
		TokenType:    "bearer",
		ExpiresIn:    int(h.jwtTTL.Seconds()),
		APIToken:     apiToken.TokenKey,
		MemberID:     member.ID,
		Email:        member.Email,
		IsAdmin:      member.IsAdmin,
	})
}

// Logout invalidates the current session. JWTs are stateless, so this is a
// client-side discard; revoking the API token is a separate, explicit call.
// DELETE /auth/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}
