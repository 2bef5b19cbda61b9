package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when a row is absent.
	ErrNotFound = errors.New("not found")

	// ErrUnregisteredPrincipal: authenticated but present in neither directory.
	ErrUnregisteredPrincipal = errors.New("principal not registered in any directory")

	// ErrMissingTenantScope: tenant-user profile lacks a tenant id.
	ErrMissingTenantScope = errors.New("tenant user profile has no tenant id")

	// ErrMalformedTenantID: tenant id failed the format check. Treated as a
	// security violation, not a transient error.
	ErrMalformedTenantID = errors.New("tenant id contains invalid characters")

	// ErrTenantNotFound: resolved tenant id has no tenant record.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantDeactivated: tenant record exists but is explicitly inactive.
	ErrTenantDeactivated = errors.New("tenant is deactivated")

	// ErrDirectoryUnavailable: I/O failure during a directory lookup. The only
	// retryable resolution error; existing markers are preserved.
	ErrDirectoryUnavailable = errors.New("tenant directory unavailable")

	// ErrImpersonationPrecondition: invalid impersonation target, or the
	// restore marker is missing on stop.
	ErrImpersonationPrecondition = errors.New("impersonation precondition failed")
)

// ResolutionError is the explicit error state published instead of a
// ResolvedContext when resolution fails. It always wraps one of the sentinel
// errors above.
type ResolutionError struct {
	Code string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed (%s): %v", e.Code, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Retryable reports whether a manual retry can plausibly succeed without any
// directory change. Only transient directory outages qualify.
func (e *ResolutionError) Retryable() bool {
	return errors.Is(e.Err, ErrDirectoryUnavailable)
}

// NewResolutionError wraps err with the taxonomy code matching its sentinel.
func NewResolutionError(err error) *ResolutionError {
	return &ResolutionError{Code: ErrorCode(err), Err: err}
}

// ErrorCode maps an error to its taxonomy code for logs and API responses.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnregisteredPrincipal):
		return "unregistered_principal"
	case errors.Is(err, ErrMissingTenantScope):
		return "missing_tenant_scope"
	case errors.Is(err, ErrMalformedTenantID):
		return "malformed_tenant_id"
	case errors.Is(err, ErrTenantNotFound):
		return "tenant_not_found"
	case errors.Is(err, ErrTenantDeactivated):
		return "tenant_deactivated"
	case errors.Is(err, ErrDirectoryUnavailable):
		return "directory_unavailable"
	case errors.Is(err, ErrImpersonationPrecondition):
		return "impersonation_precondition"
	default:
		return "internal"
	}
}
