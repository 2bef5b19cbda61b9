package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/torqsys/tenantd/internal/domain"
	"github.com/torqsys/tenantd/internal/domain/mocks"
)

func testLedger(dir *mocks.MockDirectoryRepository, markers *mocks.MockMarkerRepository) *ImpersonationLedger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImpersonationLedger(markers, dir, logger)
}

func activeTenant(id string) map[string]*domain.TenantRecord {
	return map[string]*domain.TenantRecord{
		id: {ID: id, DisplayName: "Acme", Active: true},
	}
}

func TestImpersonationLedger_StartStop(t *testing.T) {
	ctx := context.Background()

	t.Run("Round Trip Restores Prior Scope", func(t *testing.T) {
		markers := &mocks.MockMarkerRepository{}
		ledger := testLedger(&mocks.MockDirectoryRepository{Tenants: activeTenant("acme-1")}, markers)

		if err := ledger.Start(ctx, "s1", "acme-1", ""); err != nil {
			t.Fatalf("expected start to succeed, got %v", err)
		}

		state, m, err := ledger.State(ctx, "s1")
		if err != nil {
			t.Fatalf("unexpected state error: %v", err)
		}
		if state != StateImpersonating {
			t.Fatalf("expected impersonating state, got %s", state)
		}
		if m.ActiveTenantID == nil || *m.ActiveTenantID != "acme-1" {
			t.Error("expected active tenant marker to be the impersonated tenant")
		}
		if m.OriginalTenantID == nil || *m.OriginalTenantID != "" {
			t.Error("expected original scope marker to record operator scope")
		}

		if err := ledger.Stop(ctx, "s1"); err != nil {
			t.Fatalf("expected stop to succeed, got %v", err)
		}

		state, m, err = ledger.State(ctx, "s1")
		if err != nil {
			t.Fatalf("unexpected state error: %v", err)
		}
		if state != StateNormal {
			t.Errorf("expected normal state after stop, got %s", state)
		}
		if m.ActiveTenantID != nil {
			t.Error("expected active tenant marker cleared back to operator scope")
		}
		if m.ImpersonatedTenantID != nil || m.OriginalTenantID != nil {
			t.Error("expected impersonation markers cleared")
		}
	})

	t.Run("Round Trip Restores Tenant Scope", func(t *testing.T) {
		markers := &mocks.MockMarkerRepository{}
		ledger := testLedger(&mocks.MockDirectoryRepository{Tenants: activeTenant("acme-1")}, markers)

		if err := ledger.Start(ctx, "s1", "acme-1", "own-shop"); err != nil {
			t.Fatalf("expected start to succeed, got %v", err)
		}
		if err := ledger.Stop(ctx, "s1"); err != nil {
			t.Fatalf("expected stop to succeed, got %v", err)
		}

		if v, ok := markers.Marker("s1", "active_tenant_id"); !ok || v != "own-shop" {
			t.Errorf("expected active tenant restored to own-shop, got %q (set=%v)", v, ok)
		}
	})

	t.Run("Stop Twice Is Idempotent", func(t *testing.T) {
		markers := &mocks.MockMarkerRepository{}
		ledger := testLedger(&mocks.MockDirectoryRepository{Tenants: activeTenant("acme-1")}, markers)

		if err := ledger.Start(ctx, "s1", "acme-1", ""); err != nil {
			t.Fatalf("expected start to succeed, got %v", err)
		}
		if err := ledger.Stop(ctx, "s1"); err != nil {
			t.Fatalf("first stop failed: %v", err)
		}
		if err := ledger.Stop(ctx, "s1"); err != nil {
			t.Fatalf("second stop should be a no-op success, got %v", err)
		}
	})
}

func TestImpersonationLedger_StartPreconditions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		tenants map[string]*domain.TenantRecord
		target  string
	}{
		{"Empty Target", activeTenant("acme-1"), ""},
		{"Malformed Target", activeTenant("acme-1"), "acme;drop"},
		{"Unknown Tenant", activeTenant("acme-1"), "ghost"},
		{"Deactivated Tenant", map[string]*domain.TenantRecord{
			"acme-1": {ID: "acme-1", Active: false},
		}, "acme-1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			markers := &mocks.MockMarkerRepository{}
			ledger := testLedger(&mocks.MockDirectoryRepository{Tenants: tc.tenants}, markers)

			err := ledger.Start(ctx, "s1", tc.target, "")
			if !errors.Is(err, domain.ErrImpersonationPrecondition) {
				t.Fatalf("expected precondition error, got %v", err)
			}

			// No markers may change on a failed start.
			if _, ok := markers.Marker("s1", "impersonated_tenant_id"); ok {
				t.Error("impersonation marker must not be written on failure")
			}
			if _, ok := markers.Marker("s1", "active_tenant_id"); ok {
				t.Error("active tenant marker must not be written on failure")
			}
		})
	}

	t.Run("Already Impersonating", func(t *testing.T) {
		markers := &mocks.MockMarkerRepository{}
		dir := &mocks.MockDirectoryRepository{Tenants: map[string]*domain.TenantRecord{
			"acme-1": {ID: "acme-1", Active: true},
			"acme-2": {ID: "acme-2", Active: true},
		}}
		ledger := testLedger(dir, markers)

		if err := ledger.Start(ctx, "s1", "acme-1", ""); err != nil {
			t.Fatalf("first start failed: %v", err)
		}
		err := ledger.Start(ctx, "s1", "acme-2", "")
		if !errors.Is(err, domain.ErrImpersonationPrecondition) {
			t.Fatalf("expected precondition error on double start, got %v", err)
		}
		if v, _ := markers.Marker("s1", "impersonated_tenant_id"); v != "acme-1" {
			t.Errorf("original impersonation must be untouched, got %q", v)
		}
	})
}

func TestImpersonationLedger_CorruptState(t *testing.T) {
	ctx := context.Background()

	t.Run("Orphan Marker Repaired On Read", func(t *testing.T) {
		markers := &mocks.MockMarkerRepository{}
		markers.SetMarker("s1", "impersonated_tenant_id", "acme-1")
		ledger := testLedger(&mocks.MockDirectoryRepository{}, markers)

		state, m, err := ledger.State(ctx, "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state != StateNormal {
			t.Errorf("expected normal state, got %s", state)
		}
		if m.ImpersonatedTenantID != nil {
			t.Error("corrupt state must not surface an impersonated tenant")
		}
		if _, ok := markers.Marker("s1", "impersonated_tenant_id"); ok {
			t.Error("expected orphan impersonation marker to be cleared")
		}
	})

	t.Run("Stop With Missing Restore Marker", func(t *testing.T) {
		markers := &mocks.MockMarkerRepository{}
		markers.SetMarker("s1", "impersonated_tenant_id", "acme-1")
		ledger := testLedger(&mocks.MockDirectoryRepository{}, markers)

		err := ledger.Stop(ctx, "s1")
		if !errors.Is(err, domain.ErrImpersonationPrecondition) {
			t.Fatalf("expected precondition error, got %v", err)
		}
	})
}

func TestImpersonationLedger_SignOut(t *testing.T) {
	ctx := context.Background()

	markers := &mocks.MockMarkerRepository{}
	ledger := testLedger(&mocks.MockDirectoryRepository{Tenants: activeTenant("acme-1")}, markers)

	if err := ledger.Start(ctx, "s1", "acme-1", ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ledger.SignOut(ctx, "s1"); err != nil {
		t.Fatalf("sign-out failed: %v", err)
	}

	for _, field := range []string{"active_tenant_id", "impersonated_tenant_id", "original_tenant_id"} {
		if _, ok := markers.Marker("s1", field); ok {
			t.Errorf("expected %s cleared on sign-out", field)
		}
	}
}
