package domain

import "regexp"

// TenantRecord is a tenant's configuration as stored in the directory.
// Created by the provisioning workflow; read-only to this service.
type TenantRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	LegalName   string `json:"legal_name"`
	TaxID       string `json:"tax_id"`
	Slug        string `json:"slug"`
	LogoRef     string `json:"logo_ref,omitempty"`
	Plan        string `json:"plan"`
	Active      bool   `json:"active"`
}

// tenantIDPattern is the only accepted tenant id shape. Anything else is
// treated as a security violation, not a transient error.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidTenantID reports whether id is non-empty and contains only
// alphanumerics, hyphens, and underscores.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// PlatformIdentity is the built-in record used for platform operators, who
// are not scoped to any tenant.
func PlatformIdentity() TenantRecord {
	return TenantRecord{
		DisplayName: "Torq - Administração SaaS",
		LegalName:   "Torq Sistemas",
		Slug:        "torq-admin",
		Plan:        "premium",
		Active:      true,
	}
}
