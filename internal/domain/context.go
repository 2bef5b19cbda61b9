package domain

import "time"

// ResolvedContext is the single published result of tenant resolution for a
// principal. It is immutable once published: a new resolution supersedes it,
// sign-out destroys it. Every tenant-scoped read and write elsewhere in the
// platform trusts this object unconditionally.
type ResolvedContext struct {
	TenantID           *string   `json:"tenant_id"` // nil for a non-impersonating platform operator
	Class              UserClass `json:"class"`
	DisplayName        string    `json:"display_name"`
	LegalName          string    `json:"legal_name"`
	TaxID              string    `json:"tax_id"`
	Slug               string    `json:"slug"`
	LogoRef            string    `json:"logo_ref,omitempty"`
	Plan               string    `json:"plan"`
	Active             bool      `json:"active"`
	Theme              Theme     `json:"theme"`
	Role               string    `json:"role"`
	Permissions        []string  `json:"permissions"`
	IsImpersonating    bool      `json:"is_impersonating"`
	OriginalTenantID   *string   `json:"original_tenant_id"` // set only while impersonating
	IsPlatformOperator bool      `json:"is_platform_operator"`
	ResolvedAt         time.Time `json:"resolved_at"`
}

// SessionMarkers are the three session-scoped values persisted for the
// lifetime of a session. A nil pointer means the marker is absent. An empty
// OriginalTenantID string is meaningful: it records that the impersonating
// operator's own scope is "no tenant" and must be restored as such.
type SessionMarkers struct {
	ActiveTenantID       *string
	ImpersonatedTenantID *string
	OriginalTenantID     *string
}

// Impersonating reports whether the markers describe the impersonating state
// with a known return path. The ledger treats a set impersonation marker with
// a missing original marker as corrupt, never as impersonating.
func (m SessionMarkers) Impersonating() bool {
	return m.ImpersonatedTenantID != nil && m.OriginalTenantID != nil
}
