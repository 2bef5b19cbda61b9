package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/torqsys/tenantd/internal/adapter/metrics"
	"github.com/torqsys/tenantd/internal/adapter/theme"
	"github.com/torqsys/tenantd/internal/domain"
)

// sessionState is the resolver's view of one session. gen increments on every
// principal change; a resolution result is published only if its generation is
// still current, so a slow lookup for a previous principal can never overwrite
// the context of a newer one.
type sessionState struct {
	gen       uint64
	principal *domain.Principal
	resolved  *domain.ResolvedContext
	resErr    *domain.ResolutionError
}

// TenantResolver produces exactly one ResolvedContext per principal-change
// event. It is the only component allowed to decide which tenant's data a
// session may see.
type TenantResolver struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	dir       domain.DirectoryRepository
	ledger    *ImpersonationLedger
	sanitizer *theme.Sanitizer
	metrics   *metrics.ResolverMetrics
	logger    *slog.Logger
}

// NewTenantResolver wires the resolver to its collaborators.
func NewTenantResolver(dir domain.DirectoryRepository, ledger *ImpersonationLedger, sanitizer *theme.Sanitizer, m *metrics.ResolverMetrics, logger *slog.Logger) *TenantResolver {
	return &TenantResolver{
		sessions:  make(map[string]*sessionState),
		dir:       dir,
		ledger:    ledger,
		sanitizer: sanitizer,
		metrics:   m,
		logger:    logger,
	}
}

// ResolvedContext returns the current published context for a session, or the
// resolution error that superseded it. Both are nil when the session has never
// resolved or has signed out.
func (r *TenantResolver) ResolvedContext(sessionID string) (*domain.ResolvedContext, *domain.ResolutionError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return st.resolved, st.resErr
}

// OnPrincipalChange runs a full resolution for the session's new principal.
// A nil principal is a sign-out: all markers are cleared and the published
// context is destroyed. The call blocks for the duration of the resolution,
// but a principal change arriving concurrently supersedes this run: its result
// is discarded rather than published.
func (r *TenantResolver) OnPrincipalChange(ctx context.Context, sessionID string, principal *domain.Principal) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		r.sessions[sessionID] = st
	}
	st.gen++
	gen := st.gen
	st.principal = principal
	if principal == nil {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if principal == nil {
		if err := r.ledger.SignOut(ctx, sessionID); err != nil {
			r.logger.Error("failed to clear markers on sign-out", "session_id", sessionID, "error", err)
		}
		return
	}

	r.runResolution(ctx, sessionID, gen, principal)
}

// EnsureResolved resolves only when the presented principal differs from the
// session's last known one, or when the session has no published result yet.
// It is the per-request entry point used by the HTTP layer.
func (r *TenantResolver) EnsureResolved(ctx context.Context, sessionID string, principal *domain.Principal) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if ok && st.principal != nil && st.principal.ID == principal.ID && (st.resolved != nil || st.resErr != nil) {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.OnPrincipalChange(ctx, sessionID, principal)
}

// Retry re-runs resolution for the session's current principal. It is the
// manual retry action surfaced to users after a resolution failure.
func (r *TenantResolver) Retry(ctx context.Context, sessionID string) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok || st.principal == nil {
		r.mu.Unlock()
		return
	}
	st.gen++
	gen := st.gen
	principal := st.principal
	r.mu.Unlock()

	r.runResolution(ctx, sessionID, gen, principal)
}

func (r *TenantResolver) runResolution(ctx context.Context, sessionID string, gen uint64, principal *domain.Principal) {
	start := time.Now()
	runID := uuid.NewString()

	resolved, err := r.resolve(ctx, sessionID, gen, principal)

	outcome := "success"
	var resErr *domain.ResolutionError
	if err != nil {
		resErr = domain.NewResolutionError(err)
		outcome = resErr.Code
		r.logger.Warn("resolution failed",
			"run_id", runID,
			"session_id", sessionID,
			"principal_id", principal.ID,
			"code", resErr.Code,
			"error", err,
		)
	} else {
		r.logger.Info("resolution complete",
			"run_id", runID,
			"session_id", sessionID,
			"principal_id", principal.ID,
			"class", resolved.Class,
			"tenant_id", tenantIDForLog(resolved.TenantID),
			"impersonating", resolved.IsImpersonating,
		)
	}
	if r.metrics != nil {
		r.metrics.Resolutions.WithLabelValues(outcome).Inc()
		r.metrics.Duration.Observe(time.Since(start).Seconds())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok || st.gen != gen {
		// A newer principal change superseded this run. Publishing now could
		// leak a previous user's tenant scope into the current session.
		if r.metrics != nil {
			r.metrics.StaleDiscarded.Inc()
		}
		return
	}
	st.resolved = resolved
	st.resErr = resErr
}

// resolve implements the resolution algorithm. Branch order is significant and
// first match wins: ledger impersonation state, then the operator directory,
// then the tenant-user directory, then fail closed.
func (r *TenantResolver) resolve(ctx context.Context, sessionID string, gen uint64, principal *domain.Principal) (*domain.ResolvedContext, error) {
	state, markers, err := r.ledger.State(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}

	var (
		class          domain.UserClass
		profile        domain.Profile
		tenantID       string
		originalTenant *string
	)

	switch {
	case state == StateImpersonating:
		// Impersonation always wins. The operator keeps their own profile and
		// privileges; only the data scope changes.
		class = domain.ClassImpersonatingOperator
		tenantID = *markers.ImpersonatedTenantID
		originalTenant = markers.OriginalTenantID

		op, err := r.dir.FindOperatorProfile(ctx, principal.ID)
		switch {
		case err == nil:
			profile = *op
		case errors.Is(err, domain.ErrNotFound):
			// Tolerated: impersonation state is the authority here and the
			// operator's profile fields are cosmetic in this branch.
			profile = domain.Profile{PrincipalID: principal.ID, Email: principal.Email}
		default:
			return nil, fmt.Errorf("%w: operator lookup: %v", domain.ErrDirectoryUnavailable, err)
		}

	default:
		op, err := r.dir.FindOperatorProfile(ctx, principal.ID)
		switch {
		case err == nil:
			class = domain.ClassPlatformOperator
			profile = *op
		case errors.Is(err, domain.ErrNotFound):
			tu, err := r.dir.FindTenantUserProfile(ctx, principal.ID)
			switch {
			case err == nil:
				class = domain.ClassTenantUser
				profile = *tu
				if tu.TenantID == "" {
					r.clearScope(ctx, sessionID, gen)
					return nil, domain.ErrMissingTenantScope
				}
				tenantID = tu.TenantID
			case errors.Is(err, domain.ErrNotFound):
				r.clearScope(ctx, sessionID, gen)
				return nil, domain.ErrUnregisteredPrincipal
			default:
				return nil, fmt.Errorf("%w: tenant-user lookup: %v", domain.ErrDirectoryUnavailable, err)
			}
		default:
			return nil, fmt.Errorf("%w: operator lookup: %v", domain.ErrDirectoryUnavailable, err)
		}
	}

	// The format check runs before any tenant-record fetch, including for ids
	// read back from the ledger.
	if tenantID != "" && !domain.ValidTenantID(tenantID) {
		r.clearScope(ctx, sessionID, gen)
		r.logger.Error("malformed tenant id rejected",
			"session_id", sessionID,
			"principal_id", principal.ID,
			"tenant_id", tenantID,
		)
		return nil, domain.ErrMalformedTenantID
	}

	record := domain.PlatformIdentity()
	rawTheme := domain.RawTheme(nil)
	if tenantID != "" {
		rec, err := r.dir.FindTenantRecord(ctx, tenantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				r.clearScope(ctx, sessionID, gen)
				return nil, domain.ErrTenantNotFound
			}
			return nil, fmt.Errorf("%w: tenant record: %v", domain.ErrDirectoryUnavailable, err)
		}
		if !rec.Active {
			// A deactivated tenant must never be enterable, impersonation or
			// not, and no stale scoping may survive it.
			r.clearScope(ctx, sessionID, gen)
			return nil, domain.ErrTenantDeactivated
		}
		record = *rec

		raw, err := r.dir.FindTenantTheme(ctx, tenantID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: tenant theme: %v", domain.ErrDirectoryUnavailable, err)
		}
		rawTheme = raw
	}

	resolved := r.buildContext(class, profile, tenantID, originalTenant, record, rawTheme)

	// A superseded run must not touch the active-tenant marker either: the
	// marker already belongs to the newer resolution.
	if !r.isCurrent(sessionID, gen) {
		return resolved, nil
	}

	if tenantID != "" {
		if err := r.ledger.SetActiveTenant(ctx, sessionID, tenantID); err != nil {
			return nil, fmt.Errorf("%w: persisting active tenant: %v", domain.ErrDirectoryUnavailable, err)
		}
	} else {
		// Platform operator: a leftover active-tenant marker would scope
		// stateless API calls to a tenant this session no longer inhabits.
		if err := r.ledger.ClearActiveTenant(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("%w: clearing active tenant: %v", domain.ErrDirectoryUnavailable, err)
		}
	}

	return resolved, nil
}

func (r *TenantResolver) buildContext(class domain.UserClass, profile domain.Profile, tenantID string, originalTenant *string, record domain.TenantRecord, rawTheme domain.RawTheme) *domain.ResolvedContext {
	operator := class != domain.ClassTenantUser

	role := profile.Role
	permissions := profile.Permissions
	if operator {
		role = domain.RoleSuperAdmin
		permissions = []string{domain.PermissionAll}
	} else if role == "" {
		role = domain.RoleAtendente
	}
	if permissions == nil {
		permissions = []string{}
	}

	sanitized := domain.DefaultTheme()
	if tenantID != "" {
		sanitized = r.sanitizer.Sanitize(rawTheme)
	}

	ctx := &domain.ResolvedContext{
		Class:              class,
		DisplayName:        record.DisplayName,
		LegalName:          record.LegalName,
		TaxID:              record.TaxID,
		Slug:               record.Slug,
		LogoRef:            record.LogoRef,
		Plan:               record.Plan,
		Active:             record.Active,
		Theme:              sanitized,
		Role:               role,
		Permissions:        permissions,
		IsImpersonating:    class == domain.ClassImpersonatingOperator,
		IsPlatformOperator: operator,
		ResolvedAt:         time.Now().UTC(),
	}
	if tenantID != "" {
		ctx.TenantID = &tenantID
	}
	if ctx.IsImpersonating {
		ctx.OriginalTenantID = originalTenant
	}
	return ctx
}

func (r *TenantResolver) isCurrent(sessionID string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	return ok && st.gen == gen
}

// clearScope drops the active-tenant marker after a fatal resolution error so
// the rest of the platform cannot keep operating against a stale or invalid
// scope. Transient directory outages deliberately do not come through here.
// A superseded run is skipped entirely: the marker belongs to the newer
// resolution and must not be cleared by a run whose result will be discarded.
func (r *TenantResolver) clearScope(ctx context.Context, sessionID string, gen uint64) {
	if !r.isCurrent(sessionID, gen) {
		return
	}
	if err := r.ledger.ClearActiveTenant(ctx, sessionID); err != nil {
		r.logger.Error("failed to clear active tenant marker", "session_id", sessionID, "error", err)
	}
}

func tenantIDForLog(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
