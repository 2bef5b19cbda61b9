package mocks

import (
	"context"
	"sync"

	"github.com/torqsys/tenantd/internal/domain"
)

// MockDirectoryRepository is an in-memory implementation of
// domain.DirectoryRepository for testing. Lookup errors can be injected per
// method, and LookupGate (when set) is invoked with the principal id before
// every profile lookup so tests can stall a resolution in flight.
type MockDirectoryRepository struct {
	mu sync.Mutex

	Operators   map[string]*domain.Profile
	TenantUsers map[string]*domain.Profile
	Tenants     map[string]*domain.TenantRecord
	Themes      map[string]domain.RawTheme

	OperatorErr   error
	TenantUserErr error
	TenantErr     error
	ThemeErr      error

	LookupGate func(principalID string)

	TenantFetches []string
}

func (m *MockDirectoryRepository) FindOperatorProfile(ctx context.Context, principalID string) (*domain.Profile, error) {
	if m.LookupGate != nil {
		m.LookupGate(principalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OperatorErr != nil {
		return nil, m.OperatorErr
	}
	p, ok := m.Operators[principalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockDirectoryRepository) FindTenantUserProfile(ctx context.Context, principalID string) (*domain.Profile, error) {
	if m.LookupGate != nil {
		m.LookupGate(principalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TenantUserErr != nil {
		return nil, m.TenantUserErr
	}
	p, ok := m.TenantUsers[principalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockDirectoryRepository) FindTenantRecord(ctx context.Context, tenantID string) (*domain.TenantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TenantFetches = append(m.TenantFetches, tenantID)
	if m.TenantErr != nil {
		return nil, m.TenantErr
	}
	t, ok := m.Tenants[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (m *MockDirectoryRepository) FindTenantTheme(ctx context.Context, tenantID string) (domain.RawTheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ThemeErr != nil {
		return nil, m.ThemeErr
	}
	return m.Themes[tenantID], nil
}

// MockMarkerRepository is an in-memory implementation of
// domain.MarkerRepository for testing.
type MockMarkerRepository struct {
	mu       sync.Mutex
	sessions map[string]map[string]string

	GetErr   error
	WriteErr error
}

func (m *MockMarkerRepository) fields(sessionID string) map[string]string {
	if m.sessions == nil {
		m.sessions = make(map[string]map[string]string)
	}
	f, ok := m.sessions[sessionID]
	if !ok {
		f = make(map[string]string)
		m.sessions[sessionID] = f
	}
	return f
}

func (m *MockMarkerRepository) Get(ctx context.Context, sessionID string) (domain.SessionMarkers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.SessionMarkers{}, m.GetErr
	}
	f := m.fields(sessionID)
	markers := domain.SessionMarkers{}
	if v, ok := f["active_tenant_id"]; ok {
		markers.ActiveTenantID = &v
	}
	if v, ok := f["impersonated_tenant_id"]; ok {
		markers.ImpersonatedTenantID = &v
	}
	if v, ok := f["original_tenant_id"]; ok {
		markers.OriginalTenantID = &v
	}
	return markers, nil
}

func (m *MockMarkerRepository) SetActiveTenant(ctx context.Context, sessionID, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.fields(sessionID)["active_tenant_id"] = tenantID
	return nil
}

func (m *MockMarkerRepository) ClearActiveTenant(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	delete(m.fields(sessionID), "active_tenant_id")
	return nil
}

func (m *MockMarkerRepository) WriteImpersonation(ctx context.Context, sessionID, targetTenantID, originalScope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	f := m.fields(sessionID)
	f["impersonated_tenant_id"] = targetTenantID
	f["original_tenant_id"] = originalScope
	f["active_tenant_id"] = targetTenantID
	return nil
}

func (m *MockMarkerRepository) ClearImpersonation(ctx context.Context, sessionID, originalScope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	f := m.fields(sessionID)
	delete(f, "impersonated_tenant_id")
	delete(f, "original_tenant_id")
	if originalScope == "" {
		delete(f, "active_tenant_id")
	} else {
		f["active_tenant_id"] = originalScope
	}
	return nil
}

func (m *MockMarkerRepository) ClearImpersonationMarker(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	delete(m.fields(sessionID), "impersonated_tenant_id")
	return nil
}

func (m *MockMarkerRepository) ClearAll(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	delete(m.sessions, sessionID)
	return nil
}

// SetMarker seeds a raw marker value for test setup.
func (m *MockMarkerRepository) SetMarker(sessionID, field, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields(sessionID)[field] = value
}

// Marker returns a raw marker value and whether it is set.
func (m *MockMarkerRepository) Marker(sessionID, field string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.fields(sessionID)[field]
	return v, ok
}
