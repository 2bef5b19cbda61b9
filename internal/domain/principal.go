package domain

// Principal is the authenticated identity for the current session, as
// reported by the authentication provider. The id is opaque to this service;
// the email is lowercase-normalized at the token boundary.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserClass identifies how a principal relates to the tenancy model.
// Exactly one class is resolved per principal, always from directory lookups,
// never from client-declared data.
type UserClass string

const (
	ClassPlatformOperator      UserClass = "platform-operator"
	ClassTenantUser            UserClass = "tenant-user"
	ClassImpersonatingOperator UserClass = "impersonating-operator"
)

// Role names carried on directory profiles. RoleSuperAdmin and the
// PermissionAll token override every permission check.
const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleAtendente  = "atendente"
	RoleFinanceiro = "financeiro"
)

// PermissionAll is the universal wildcard capability granted to platform
// operators.
const PermissionAll = "all"

// Profile is a directory row for a principal, from either the operator
// directory or the tenant-user directory. TenantID is empty for operators.
type Profile struct {
	PrincipalID string   `json:"principal_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	TenantID    string   `json:"tenant_id,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}
