package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/torqsys/tenantd/internal/domain"
)

// LedgerState is one of the two impersonation states.
type LedgerState string

const (
	StateNormal        LedgerState = "normal"
	StateImpersonating LedgerState = "impersonating"
)

// ImpersonationLedger owns the three session markers and the two-state
// machine over them. All marker access in the service goes through its typed
// methods; nothing else touches the marker store for impersonation state.
type ImpersonationLedger struct {
	markers domain.MarkerRepository
	dir     domain.DirectoryRepository
	logger  *slog.Logger
}

// NewImpersonationLedger creates a ledger over the given marker store. The
// directory is consulted only to validate impersonation targets.
func NewImpersonationLedger(markers domain.MarkerRepository, dir domain.DirectoryRepository, logger *slog.Logger) *ImpersonationLedger {
	return &ImpersonationLedger{
		markers: markers,
		dir:     dir,
		logger:  logger,
	}
}

// State reads the session markers and reports the current state. The
// invariant "impersonation marker set implies original marker set" is enforced
// here: an impersonation marker without a return path is treated as corrupt,
// cleared, and reported as Normal so a flagged-but-unrestorable state is
// never exposed.
func (l *ImpersonationLedger) State(ctx context.Context, sessionID string) (LedgerState, domain.SessionMarkers, error) {
	m, err := l.markers.Get(ctx, sessionID)
	if err != nil {
		return StateNormal, domain.SessionMarkers{}, fmt.Errorf("reading session markers: %w", err)
	}

	if m.ImpersonatedTenantID != nil && m.OriginalTenantID == nil {
		l.logger.Error("impersonation marker without restore marker, clearing",
			"session_id", sessionID,
			"impersonated_tenant", *m.ImpersonatedTenantID,
		)
		if err := l.markers.ClearImpersonationMarker(ctx, sessionID); err != nil {
			return StateNormal, domain.SessionMarkers{}, fmt.Errorf("clearing orphan impersonation marker: %w", err)
		}
		m.ImpersonatedTenantID = nil
	}

	if m.Impersonating() {
		return StateImpersonating, m, nil
	}
	return StateNormal, m, nil
}

// Start transitions Normal → Impersonating. Preconditions: the target tenant
// id is well-formed, the tenant record exists and is active, and the session
// is not already impersonating. On any precondition failure no marker is
// changed. originalScope is the operator's own scope to restore on stop;
// empty means "no tenant" (the usual case for a platform operator).
func (l *ImpersonationLedger) Start(ctx context.Context, sessionID, targetTenantID, originalScope string) error {
	if !domain.ValidTenantID(targetTenantID) {
		return fmt.Errorf("%w: invalid target tenant id %q", domain.ErrImpersonationPrecondition, targetTenantID)
	}

	state, _, err := l.State(ctx, sessionID)
	if err != nil {
		return err
	}
	if state == StateImpersonating {
		return fmt.Errorf("%w: already impersonating, stop first", domain.ErrImpersonationPrecondition)
	}

	record, err := l.dir.FindTenantRecord(ctx, targetTenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: target tenant %q does not exist", domain.ErrImpersonationPrecondition, targetTenantID)
		}
		return fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	if !record.Active {
		return fmt.Errorf("%w: target tenant %q is deactivated", domain.ErrImpersonationPrecondition, targetTenantID)
	}

	if err := l.markers.WriteImpersonation(ctx, sessionID, targetTenantID, originalScope); err != nil {
		return fmt.Errorf("writing impersonation markers: %w", err)
	}

	l.logger.Info("impersonation started",
		"session_id", sessionID,
		"target_tenant", targetTenantID,
		"original_scope", originalScope,
	)
	return nil
}

// Stop transitions Impersonating → Normal, restoring the active tenant to the
// recorded original scope. Stopping while already Normal is a no-op success to
// tolerate duplicate UI triggers. An impersonation marker with no original
// marker is a precondition failure: the caller must not assume a safe state
// and should force a full re-resolution.
func (l *ImpersonationLedger) Stop(ctx context.Context, sessionID string) error {
	m, err := l.markers.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reading session markers: %w", err)
	}

	if m.ImpersonatedTenantID == nil {
		return nil
	}
	if m.OriginalTenantID == nil {
		return fmt.Errorf("%w: restore marker missing", domain.ErrImpersonationPrecondition)
	}

	if err := l.markers.ClearImpersonation(ctx, sessionID, *m.OriginalTenantID); err != nil {
		return fmt.Errorf("clearing impersonation markers: %w", err)
	}

	l.logger.Info("impersonation stopped",
		"session_id", sessionID,
		"restored_scope", *m.OriginalTenantID,
	)
	return nil
}

// SignOut unconditionally clears all three markers, from any state.
func (l *ImpersonationLedger) SignOut(ctx context.Context, sessionID string) error {
	if err := l.markers.ClearAll(ctx, sessionID); err != nil {
		return fmt.Errorf("clearing session markers: %w", err)
	}
	return nil
}

// SetActiveTenant persists the resolved active tenant so stateless API calls
// elsewhere can read the active scope without re-running resolution.
func (l *ImpersonationLedger) SetActiveTenant(ctx context.Context, sessionID, tenantID string) error {
	return l.markers.SetActiveTenant(ctx, sessionID, tenantID)
}

// ClearActiveTenant removes the active tenant marker.
func (l *ImpersonationLedger) ClearActiveTenant(ctx context.Context, sessionID string) error {
	return l.markers.ClearActiveTenant(ctx, sessionID)
}
