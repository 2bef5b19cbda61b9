package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/torqsys/tenantd/internal/adapter/api/middleware"
	"github.com/torqsys/tenantd/internal/adapter/theme"
	"github.com/torqsys/tenantd/internal/domain"
	"github.com/torqsys/tenantd/internal/domain/mocks"
	"github.com/torqsys/tenantd/internal/usecase"
)

type testStack struct {
	dir      *mocks.MockDirectoryRepository
	markers  *mocks.MockMarkerRepository
	resolver *usecase.TenantResolver
	ledger   *usecase.ImpersonationLedger
	session  *SessionHandler
	imp      *ImpersonationHandler
}

func newTestStack(dir *mocks.MockDirectoryRepository) *testStack {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	markers := &mocks.MockMarkerRepository{}
	ledger := usecase.NewImpersonationLedger(markers, dir, logger)
	sanitizer := theme.NewSanitizer(logger, nil)
	resolver := usecase.NewTenantResolver(dir, ledger, sanitizer, nil, logger)
	evaluator := usecase.NewPermissionEvaluator(resolver)

	imp := NewImpersonationHandler(resolver, ledger, evaluator, nil, logger, 60)
	return &testStack{
		dir:      dir,
		markers:  markers,
		resolver: resolver,
		ledger:   ledger,
		session:  NewSessionHandler(resolver, imp, logger),
		imp:      imp,
	}
}

func authedRequest(method, path, body string, principal *domain.Principal, sessionID string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), principal, sessionID))
}

func TestSessionHandler_GetContext(t *testing.T) {
	t.Run("Tenant User Context", func(t *testing.T) {
		stack := newTestStack(&mocks.MockDirectoryRepository{
			TenantUsers: map[string]*domain.Profile{
				"u1": {PrincipalID: "u1", TenantID: "acme-1", Role: "admin"},
			},
			Tenants: map[string]*domain.TenantRecord{
				"acme-1": {ID: "acme-1", DisplayName: "Acme Motors", Active: true},
			},
		})

		rec := httptest.NewRecorder()
		stack.session.GetContext(rec, authedRequest(http.MethodGet, "/v1/session/context", "", &domain.Principal{ID: "u1"}, "s1"))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resolved domain.ResolvedContext
		if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if resolved.TenantID == nil || *resolved.TenantID != "acme-1" {
			t.Error("expected tenant id acme-1 in response")
		}
	})

	t.Run("Unregistered Principal Maps To Forbidden", func(t *testing.T) {
		stack := newTestStack(&mocks.MockDirectoryRepository{})

		rec := httptest.NewRecorder()
		stack.session.GetContext(rec, authedRequest(http.MethodGet, "/v1/session/context", "", &domain.Principal{ID: "ghost"}, "s1"))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid error body: %v", err)
		}
		if body.Code != "unregistered_principal" {
			t.Errorf("expected unregistered_principal code, got %q", body.Code)
		}
		if body.Retryable {
			t.Error("unregistered principal is not retryable")
		}
	})

	t.Run("Directory Outage Maps To Service Unavailable", func(t *testing.T) {
		stack := newTestStack(&mocks.MockDirectoryRepository{
			OperatorErr: io.ErrUnexpectedEOF,
		})

		rec := httptest.NewRecorder()
		stack.session.GetContext(rec, authedRequest(http.MethodGet, "/v1/session/context", "", &domain.Principal{ID: "u1"}, "s1"))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid error body: %v", err)
		}
		if !body.Retryable {
			t.Error("directory outage must be flagged retryable")
		}
	})
}

func TestImpersonationHandler(t *testing.T) {
	operatorDir := func() *mocks.MockDirectoryRepository {
		return &mocks.MockDirectoryRepository{
			Operators: map[string]*domain.Profile{
				"op": {PrincipalID: "op", Email: "ops@torq.com"},
			},
			Tenants: map[string]*domain.TenantRecord{
				"acme-1": {ID: "acme-1", DisplayName: "Acme Motors", Active: true},
			},
		}
	}

	t.Run("Operator Start And Stop", func(t *testing.T) {
		stack := newTestStack(operatorDir())
		principal := &domain.Principal{ID: "op"}

		rec := httptest.NewRecorder()
		stack.imp.Start(rec, authedRequest(http.MethodPost, "/v1/session/impersonation", `{"tenant_id":"acme-1"}`, principal, "s1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on start, got %d: %s", rec.Code, rec.Body.String())
		}

		var resolved domain.ResolvedContext
		if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if !resolved.IsImpersonating || resolved.TenantID == nil || *resolved.TenantID != "acme-1" {
			t.Errorf("expected impersonated context for acme-1, got %+v", resolved)
		}
		if resolved.Role != domain.RoleSuperAdmin {
			t.Error("impersonation keeps operator privileges")
		}

		rec = httptest.NewRecorder()
		stack.imp.Stop(rec, authedRequest(http.MethodDelete, "/v1/session/impersonation", "", principal, "s1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on stop, got %d: %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if resolved.IsImpersonating || resolved.TenantID != nil {
			t.Errorf("expected operator context restored, got %+v", resolved)
		}
	})

	t.Run("Tenant User Cannot Impersonate", func(t *testing.T) {
		dir := operatorDir()
		dir.TenantUsers = map[string]*domain.Profile{
			"u1": {PrincipalID: "u1", TenantID: "acme-1"},
		}
		stack := newTestStack(dir)

		rec := httptest.NewRecorder()
		stack.imp.Start(rec, authedRequest(http.MethodPost, "/v1/session/impersonation", `{"tenant_id":"acme-1"}`, &domain.Principal{ID: "u1"}, "s2"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if _, ok := stack.markers.Marker("s2", "impersonated_tenant_id"); ok {
			t.Error("no impersonation marker may be written for a tenant user")
		}
	})

	t.Run("Unknown Target Rejected", func(t *testing.T) {
		stack := newTestStack(operatorDir())

		rec := httptest.NewRecorder()
		stack.imp.Start(rec, authedRequest(http.MethodPost, "/v1/session/impersonation", `{"tenant_id":"ghost"}`, &domain.Principal{ID: "op"}, "s1"))
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Sign Out Evicts Limiter State", func(t *testing.T) {
		stack := newTestStack(operatorDir())
		principal := &domain.Principal{ID: "op"}

		rec := httptest.NewRecorder()
		stack.imp.Start(rec, authedRequest(http.MethodPost, "/v1/session/impersonation", `{"tenant_id":"acme-1"}`, principal, "s1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on start, got %d: %s", rec.Code, rec.Body.String())
		}
		if _, ok := stack.imp.limiters["s1"]; !ok {
			t.Fatal("expected limiter state after a start")
		}

		rec = httptest.NewRecorder()
		stack.session.SignOut(rec, authedRequest(http.MethodDelete, "/v1/session", "", principal, "s1"))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 on sign-out, got %d", rec.Code)
		}
		if _, ok := stack.imp.limiters["s1"]; ok {
			t.Error("expected limiter state evicted on sign-out")
		}
	})

	t.Run("Stop While Normal Is No-Op Success", func(t *testing.T) {
		stack := newTestStack(operatorDir())

		rec := httptest.NewRecorder()
		stack.imp.Stop(rec, authedRequest(http.MethodDelete, "/v1/session/impersonation", "", &domain.Principal{ID: "op"}, "s1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
