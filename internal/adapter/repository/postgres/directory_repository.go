package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/torqsys/tenantd/internal/domain"
)

// DirectoryRepository implements domain.DirectoryRepository against the
// PostgreSQL tenant directory.
type DirectoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDirectoryRepository creates a new PostgreSQL directory repository.
func NewDirectoryRepository(db *sql.DB, logger *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// FindOperatorProfile looks up a principal in the platform-operator directory.
func (r *DirectoryRepository) FindOperatorProfile(ctx context.Context, principalID string) (*domain.Profile, error) {
	query := `SELECT principal_id, email, display_name FROM operators WHERE principal_id = $1`

	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, query, principalID).Scan(&p.PrincipalID, &p.Email, &p.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying operator profile: %w", err)
	}
	p.Role = domain.RoleSuperAdmin
	p.Permissions = []string{domain.PermissionAll}
	return p, nil
}

// FindTenantUserProfile looks up a principal in the tenant-user directory.
func (r *DirectoryRepository) FindTenantUserProfile(ctx context.Context, principalID string) (*domain.Profile, error) {
	query := `SELECT principal_id, email, display_name, tenant_id, role, permissions
	          FROM tenant_users WHERE principal_id = $1`

	p := &domain.Profile{}
	var tenantID sql.NullString
	var permissions pq.StringArray
	err := r.db.QueryRowContext(ctx, query, principalID).Scan(
		&p.PrincipalID, &p.Email, &p.DisplayName, &tenantID, &p.Role, &permissions,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying tenant user profile: %w", err)
	}
	p.TenantID = tenantID.String
	p.Permissions = permissions
	return p, nil
}

// FindTenantRecord fetches a tenant's configuration record.
func (r *DirectoryRepository) FindTenantRecord(ctx context.Context, tenantID string) (*domain.TenantRecord, error) {
	query := `SELECT id, display_name, legal_name, tax_id, slug, COALESCE(logo_ref, ''), plan, active
	          FROM tenants WHERE id = $1`

	t := &domain.TenantRecord{}
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&t.ID, &t.DisplayName, &t.LegalName, &t.TaxID, &t.Slug, &t.LogoRef, &t.Plan, &t.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying tenant record: %w", err)
	}
	return t, nil
}

// FindTenantTheme fetches a tenant's raw theme payload. A tenant without a
// stored theme yields an empty payload.
func (r *DirectoryRepository) FindTenantTheme(ctx context.Context, tenantID string) (domain.RawTheme, error) {
	query := `SELECT payload FROM tenant_themes WHERE tenant_id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RawTheme{}, nil
		}
		return nil, fmt.Errorf("querying tenant theme: %w", err)
	}

	raw := domain.RawTheme{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		// A corrupt payload is not a directory outage; the sanitizer will fall
		// back to defaults on an empty payload.
		r.logger.Warn("discarding undecodable tenant theme payload", "tenant_id", tenantID, "error", err)
		return domain.RawTheme{}, nil
	}
	return raw, nil
}
