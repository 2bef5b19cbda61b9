package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/torqsys/tenantd/internal/adapter/api/middleware"
	"github.com/torqsys/tenantd/internal/domain"
	"github.com/torqsys/tenantd/internal/usecase"
)

// errorResponse is the JSON body returned for a failed resolution.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// SessionHandler serves the resolved-context surface: read the current
// context, retry a failed resolution, and sign out.
type SessionHandler struct {
	resolver      *usecase.TenantResolver
	impersonation *ImpersonationHandler
	logger        *slog.Logger
}

// NewSessionHandler creates a new SessionHandler. The impersonation handler
// is consulted only to release its per-session state on sign-out.
func NewSessionHandler(resolver *usecase.TenantResolver, impersonation *ImpersonationHandler, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		resolver:      resolver,
		impersonation: impersonation,
		logger:        logger,
	}
}

// GetContext returns the session's ResolvedContext, resolving first if this
// principal has not been resolved yet.
func (h *SessionHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := identity(w, r)
	if !ok {
		return
	}

	h.resolver.EnsureResolved(r.Context(), sessionID, principal)
	h.writeContext(w, sessionID)
}

// Retry re-runs resolution from scratch for the current principal. This is
// the manual retry action offered to users after a resolution failure.
func (h *SessionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := identity(w, r)
	if !ok {
		return
	}

	h.resolver.EnsureResolved(r.Context(), sessionID, principal)
	h.resolver.Retry(r.Context(), sessionID)
	h.writeContext(w, sessionID)
}

// SignOut clears the session's markers and published context.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	_, sessionID, ok := identity(w, r)
	if !ok {
		return
	}

	h.resolver.OnPrincipalChange(r.Context(), sessionID, nil)
	h.impersonation.EvictLimiter(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) writeContext(w http.ResponseWriter, sessionID string) {
	resolved, resErr := h.resolver.ResolvedContext(sessionID)
	if resErr != nil {
		writeResolutionError(w, resErr)
		return
	}
	if resolved == nil {
		http.Error(w, "Unauthorized: no resolved context", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resolved); err != nil {
		h.logger.Error("failed to encode resolved context", "error", err)
	}
}

// identity extracts the principal and session id injected by the auth
// middleware, failing the request when either is absent.
func identity(w http.ResponseWriter, r *http.Request) (*domain.Principal, string, bool) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, "", false
	}
	sessionID, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, "", false
	}
	return principal, sessionID, true
}

// writeResolutionError maps the resolution error taxonomy onto HTTP statuses.
func writeResolutionError(w http.ResponseWriter, resErr *domain.ResolutionError) {
	status := http.StatusForbidden
	switch {
	case errors.Is(resErr.Err, domain.ErrTenantNotFound):
		status = http.StatusNotFound
	case errors.Is(resErr.Err, domain.ErrDirectoryUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(resErr.Err, domain.ErrImpersonationPrecondition):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     resErr.Err.Error(),
		Code:      resErr.Code,
		Retryable: resErr.Retryable(),
	})
}
