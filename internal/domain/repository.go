package domain

import "context"

// DirectoryRepository is the read-only view of the tenant directory. All
// lookups return ErrNotFound for absent rows; any other error is treated by
// the resolver as ErrDirectoryUnavailable.
type DirectoryRepository interface {
	// FindOperatorProfile looks up a principal in the platform-operator
	// directory.
	FindOperatorProfile(ctx context.Context, principalID string) (*Profile, error)

	// FindTenantUserProfile looks up a principal in the tenant-user directory.
	FindTenantUserProfile(ctx context.Context, principalID string) (*Profile, error)

	// FindTenantRecord fetches a tenant's configuration record.
	FindTenantRecord(ctx context.Context, tenantID string) (*TenantRecord, error)

	// FindTenantTheme fetches a tenant's raw theme payload. A tenant without a
	// stored theme yields an empty payload, not ErrNotFound.
	FindTenantTheme(ctx context.Context, tenantID string) (RawTheme, error)
}

// MarkerRepository persists the three session-scoped markers. Multi-marker
// writes are atomic: no reader may observe a half-written impersonation
// transition.
type MarkerRepository interface {
	// Get returns the current markers for a session. Absent markers are nil.
	Get(ctx context.Context, sessionID string) (SessionMarkers, error)

	// SetActiveTenant stores the resolved active tenant id.
	SetActiveTenant(ctx context.Context, sessionID, tenantID string) error

	// ClearActiveTenant removes the active tenant marker.
	ClearActiveTenant(ctx context.Context, sessionID string) error

	// WriteImpersonation atomically records an impersonation start: the
	// impersonated tenant, the original scope to restore, and the new active
	// tenant. An empty originalScope records "operator scope".
	WriteImpersonation(ctx context.Context, sessionID, targetTenantID, originalScope string) error

	// ClearImpersonation atomically ends impersonation, restoring the active
	// tenant marker to originalScope (cleared entirely when originalScope is
	// empty, i.e. operator scope).
	ClearImpersonation(ctx context.Context, sessionID, originalScope string) error

	// ClearImpersonationMarker removes only the impersonation marker, leaving
	// the rest untouched. Used to repair a corrupt ledger state observed on
	// read.
	ClearImpersonationMarker(ctx context.Context, sessionID string) error

	// ClearAll removes every marker for the session. Used on sign-out.
	ClearAll(ctx context.Context, sessionID string) error
}
