package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/torqsys/tenantd/internal/domain"
	"github.com/torqsys/tenantd/pkg/authtoken"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	sessionKey   contextKey = "session_id"
)

// WithIdentity returns a context carrying the principal and session id, as
// Auth would inject them. Intended for handler tests and internal callers.
func WithIdentity(ctx context.Context, principal *domain.Principal, sessionID string) context.Context {
	ctx = context.WithValue(ctx, principalKey, principal)
	return context.WithValue(ctx, sessionKey, sessionID)
}

// PrincipalFrom returns the authenticated principal injected by Auth.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok
}

// SessionFrom returns the session id injected by Auth.
func SessionFrom(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionKey).(string)
	return sid, ok
}

// Auth is a middleware factory that validates the bearer session token and
// injects the principal and session id into the request context. It is the
// edge where the authentication provider's identity enters the engine; the
// email is already lowercase-normalized by the token layer.
func Auth(secretKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				logger.Warn("missing bearer token", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: session token required", http.StatusUnauthorized)
				return
			}

			claims, err := authtoken.Validate(token, secretKey)
			if err != nil {
				logger.Warn("invalid session token", "remote_addr", r.RemoteAddr, "error", err)
				http.Error(w, "Unauthorized: invalid session token", http.StatusUnauthorized)
				return
			}

			principal := &domain.Principal{ID: claims.Subject, Email: claims.Email}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			ctx = context.WithValue(ctx, sessionKey, claims.SessionID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
