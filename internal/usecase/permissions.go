package usecase

import "github.com/torqsys/tenantd/internal/domain"

// ContextSource provides the current published context for a session.
// Satisfied by *TenantResolver.
type ContextSource interface {
	ResolvedContext(sessionID string) (*domain.ResolvedContext, *domain.ResolutionError)
}

// PermissionEvaluator answers role and permission predicates against the
// published ResolvedContext. The super-admin role and the universal wildcard
// token satisfy every query. Without a successfully resolved context every
// predicate is false: fail closed, never fail open.
type PermissionEvaluator struct {
	source ContextSource
}

// NewPermissionEvaluator creates an evaluator over the given context source.
func NewPermissionEvaluator(source ContextSource) *PermissionEvaluator {
	return &PermissionEvaluator{source: source}
}

func (e *PermissionEvaluator) current(sessionID string) *domain.ResolvedContext {
	resolved, resErr := e.source.ResolvedContext(sessionID)
	if resErr != nil {
		return nil
	}
	return resolved
}

// HasRole reports whether the session's resolved role matches, with the
// super-admin override.
func (e *PermissionEvaluator) HasRole(sessionID, role string) bool {
	rc := e.current(sessionID)
	if rc == nil {
		return false
	}
	if rc.Role == domain.RoleSuperAdmin {
		return true
	}
	return rc.Role == role
}

// HasPermission reports whether the session holds the capability token, with
// the wildcard and super-admin overrides.
func (e *PermissionEvaluator) HasPermission(sessionID, token string) bool {
	rc := e.current(sessionID)
	if rc == nil {
		return false
	}
	if rc.Role == domain.RoleSuperAdmin {
		return true
	}
	for _, p := range rc.Permissions {
		if p == domain.PermissionAll || p == token {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the session holds an administrative role.
func (e *PermissionEvaluator) IsAdmin(sessionID string) bool {
	rc := e.current(sessionID)
	if rc == nil {
		return false
	}
	return rc.Role == domain.RoleSuperAdmin || rc.Role == domain.RoleAdmin
}

// IsPlatformOperator reports whether the session resolved as a platform
// operator (impersonating or not).
func (e *PermissionEvaluator) IsPlatformOperator(sessionID string) bool {
	rc := e.current(sessionID)
	return rc != nil && rc.IsPlatformOperator
}
