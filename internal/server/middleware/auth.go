package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/promptgate/promptgate/internal/service"
)

// TokenHeader is the fixed header carrying the opaque API token.
const TokenHeader = "X-Token-Key"

// excludedPrefixes bypass the gatekeeper entirely: auth, docs, and probes.
// Matching is case-insensitive; root is an exact match so /api is still
// gated.
var excludedPrefixes = []string{"/auth", "/swagger", "/openapi", "/scalar", "/healthz", "/readyz"}

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// Gatekeeper returns the HTTP middleware enforcing token validity before any
// business logic runs. It extracts the credential from the X-Token-Key
// header and delegates to the token service; the validation's persistence
// side effects (last-used stamp, lazy expiry) complete before the request
// proceeds. Rejections are a short plain-text 401 that does not distinguish
// unknown, revoked, and expired keys; that distinction goes to the log only,
// since it would otherwise let a caller probe key state.
func Gatekeeper(tokens *service.TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypassesGate(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(TokenHeader)
			if key == "" {
				writeUnauthorized(w)
				return
			}

			principal, err := tokens.Validate(r.Context(), key)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrTokenNotFound),
					errors.Is(err, service.ErrTokenRevoked),
					errors.Is(err, service.ErrTokenExpired):
					logger.Warn("request rejected",
						"path", r.URL.Path,
						"reason", err.Error(),
						"request_id", GetRequestID(r.Context()),
					)
					writeUnauthorized(w)
				default:
					logger.Error("token validation failed",
						"path", r.URL.Path,
						"error", err,
						"request_id", GetRequestID(r.Context()),
					)
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin enforces that the authenticated principal's member has the
// admin flag. It must run after Gatekeeper.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || !principal.IsAdmin {
				http.Error(w, "admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *service.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*service.Principal); ok {
		return p
	}
	return nil
}

func bypassesGate(path string) bool {
	if path == "/" {
		return true
	}
	lower := strings.ToLower(path)
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized: missing or invalid token", http.StatusUnauthorized)
}
