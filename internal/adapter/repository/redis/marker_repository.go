package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/torqsys/tenantd/internal/domain"
)

const (
	fieldActiveTenant       = "active_tenant_id"
	fieldImpersonatedTenant = "impersonated_tenant_id"
	fieldOriginalTenant     = "original_tenant_id"
)

// MarkerRepository implements domain.MarkerRepository on a Redis hash per
// session. Multi-field transitions go through MULTI/EXEC so no concurrent
// resolution can read a half-written ledger state.
type MarkerRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMarkerRepository creates a Redis-backed marker repository. ttl bounds
// the lifetime of a session's markers; every write refreshes it.
func NewMarkerRepository(client *redis.Client, ttl time.Duration, logger *slog.Logger) *MarkerRepository {
	return &MarkerRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(sessionID string) string {
	return "tenantd:session:" + sessionID
}

// Get returns the current markers for a session.
func (r *MarkerRepository) Get(ctx context.Context, sessionID string) (domain.SessionMarkers, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return domain.SessionMarkers{}, fmt.Errorf("reading session hash: %w", err)
	}

	markers := domain.SessionMarkers{}
	if v, ok := fields[fieldActiveTenant]; ok {
		markers.ActiveTenantID = &v
	}
	if v, ok := fields[fieldImpersonatedTenant]; ok {
		markers.ImpersonatedTenantID = &v
	}
	if v, ok := fields[fieldOriginalTenant]; ok {
		markers.OriginalTenantID = &v
	}
	return markers, nil
}

// SetActiveTenant stores the resolved active tenant id.
func (r *MarkerRepository) SetActiveTenant(ctx context.Context, sessionID, tenantID string) error {
	key := sessionKey(sessionID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldActiveTenant, tenantID)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting active tenant marker: %w", err)
	}
	return nil
}

// ClearActiveTenant removes the active tenant marker.
func (r *MarkerRepository) ClearActiveTenant(ctx context.Context, sessionID string) error {
	if err := r.client.HDel(ctx, sessionKey(sessionID), fieldActiveTenant).Err(); err != nil {
		return fmt.Errorf("clearing active tenant marker: %w", err)
	}
	return nil
}

// WriteImpersonation atomically records an impersonation start.
func (r *MarkerRepository) WriteImpersonation(ctx context.Context, sessionID, targetTenantID, originalScope string) error {
	key := sessionKey(sessionID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldImpersonatedTenant, targetTenantID,
			fieldOriginalTenant, originalScope,
			fieldActiveTenant, targetTenantID,
		)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing impersonation markers: %w", err)
	}
	return nil
}

// ClearImpersonation atomically ends impersonation, restoring the active
// tenant to originalScope or clearing it when the scope is operator-level.
func (r *MarkerRepository) ClearImpersonation(ctx context.Context, sessionID, originalScope string) error {
	key := sessionKey(sessionID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, fieldImpersonatedTenant, fieldOriginalTenant)
		if originalScope == "" {
			pipe.HDel(ctx, key, fieldActiveTenant)
		} else {
			pipe.HSet(ctx, key, fieldActiveTenant, originalScope)
		}
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing impersonation markers: %w", err)
	}
	return nil
}

// ClearImpersonationMarker removes only the impersonation marker. Used to
// repair a corrupt ledger state observed on read.
func (r *MarkerRepository) ClearImpersonationMarker(ctx context.Context, sessionID string) error {
	if err := r.client.HDel(ctx, sessionKey(sessionID), fieldImpersonatedTenant).Err(); err != nil {
		return fmt.Errorf("clearing impersonation marker: %w", err)
	}
	return nil
}

// ClearAll removes every marker for the session.
func (r *MarkerRepository) ClearAll(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting session hash: %w", err)
	}
	return nil
}
