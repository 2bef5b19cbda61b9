package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/torqsys/tenantd/internal/adapter/metrics"
	"github.com/torqsys/tenantd/internal/domain"
	"github.com/torqsys/tenantd/internal/usecase"
)

// startRequest is the body of an impersonation start.
type startRequest struct {
	TenantID string `json:"tenant_id"`
}

// ImpersonationHandler serves impersonation start/stop. Starts are
// rate-limited per session to slow down probing of tenant ids.
type ImpersonationHandler struct {
	resolver  *usecase.TenantResolver
	ledger    *usecase.ImpersonationLedger
	evaluator *usecase.PermissionEvaluator
	metrics   *metrics.ResolverMetrics
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewImpersonationHandler creates a new ImpersonationHandler. startsPerMin
// bounds impersonation start attempts per session.
func NewImpersonationHandler(
	resolver *usecase.TenantResolver,
	ledger *usecase.ImpersonationLedger,
	evaluator *usecase.PermissionEvaluator,
	m *metrics.ResolverMetrics,
	logger *slog.Logger,
	startsPerMin int,
) *ImpersonationHandler {
	return &ImpersonationHandler{
		resolver:  resolver,
		ledger:    ledger,
		evaluator: evaluator,
		metrics:   m,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(float64(startsPerMin) / 60.0),
		burst:     startsPerMin,
	}
}

func (h *ImpersonationHandler) limiter(sessionID string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[sessionID] = l
	}
	return l
}

// EvictLimiter drops the rate-limiter state for a session. Called on sign-out
// so the map does not accumulate an entry for every session id ever seen.
func (h *ImpersonationHandler) EvictLimiter(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.limiters, sessionID)
}

// Start begins impersonating the requested tenant. Only a resolved platform
// operator may impersonate; the target must exist and be active.
func (h *ImpersonationHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := identity(w, r)
	if !ok {
		return
	}

	h.resolver.EnsureResolved(r.Context(), sessionID, principal)

	if !h.evaluator.IsPlatformOperator(sessionID) {
		h.logger.Warn("impersonation denied for non-operator",
			"session_id", sessionID,
			"principal_id", principal.ID,
		)
		h.count("start", "rejected")
		http.Error(w, "Forbidden: impersonation requires a platform operator", http.StatusForbidden)
		return
	}

	if !h.limiter(sessionID).Allow() {
		h.count("start", "rejected")
		http.Error(w, "Too many impersonation attempts", http.StatusTooManyRequests)
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	// The operator's own scope is whatever tenant is currently resolved,
	// usually none. Stop restores exactly this value.
	originalScope := ""
	if resolved, _ := h.resolver.ResolvedContext(sessionID); resolved != nil && resolved.TenantID != nil {
		originalScope = *resolved.TenantID
	}

	if err := h.ledger.Start(r.Context(), sessionID, req.TenantID, originalScope); err != nil {
		h.count("start", outcomeFor(err))
		writeLedgerError(w, err)
		return
	}
	h.count("start", "success")

	h.resolver.Retry(r.Context(), sessionID)
	h.writeContext(w, sessionID)
}

// Stop ends impersonation and restores the operator's own scope. Stopping
// while not impersonating succeeds without effect.
func (h *ImpersonationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	principal, sessionID, ok := identity(w, r)
	if !ok {
		return
	}

	h.resolver.EnsureResolved(r.Context(), sessionID, principal)

	if err := h.ledger.Stop(r.Context(), sessionID); err != nil {
		h.count("stop", outcomeFor(err))
		writeLedgerError(w, err)
		return
	}
	h.count("stop", "success")

	h.resolver.Retry(r.Context(), sessionID)
	h.writeContext(w, sessionID)
}

func (h *ImpersonationHandler) writeContext(w http.ResponseWriter, sessionID string) {
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

func (h *ImpersonationHandler) count(action, outcome string) {
	if h.metrics != nil {
		h.metrics.Impersonation.WithLabelValues(action, outcome).Inc()
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, domain.ErrImpersonationPrecondition) {
		return "rejected"
	}
	return "error"
}

func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrImpersonationPrecondition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     err.Error(),
		Code:      domain.ErrorCode(err),
		Retryable: errors.Is(err, domain.ErrDirectoryUnavailable),
	})
}
