// Package queue implements the typed queue manager over the durable local
// store: enqueue, list-pending, mark-synced, requeue, purge. Every mutating
// call is a durable write; no in-memory state is authoritative.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncline/internal/apperrors"
	"syncline/internal/model"
)

type Storage interface {
	InsertRecord(ctx context.Context, rec *model.QueueRecord) error
	SelectPendingByTenant(ctx context.Context, tenantID string) ([]model.QueueRecord, error)
	SelectFailedByTenant(ctx context.Context, tenantID string) ([]model.QueueRecord, error)
	SelectTenantsWithPending(ctx context.Context) ([]string, error)
	UpdateAsSynced(ctx context.Context, id uuid.UUID) error
	UpdateAsFailed(ctx context.Context, id uuid.UUID, reason string) error
	UpdateAsPending(ctx context.Context, id uuid.UUID) error
	UpdateAttempts(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

type Manager struct {
	l       *zap.Logger
	storage Storage
}

func NewManager(l *zap.Logger, storage Storage) *Manager {
	return &Manager{
		l:       l,
		storage: storage,
	}
}

// Enqueue validates the request, assigns an id and durably persists the
// record before returning. Durability precedes transmission: the caller gets
// the id only once the write has committed.
func (m *Manager) Enqueue(ctx context.Context, req model.EnqueueRequest) (uuid.UUID, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return uuid.Nil, apperrors.ErrTenantIDMissing
	}

	if strings.TrimSpace(req.Endpoint) == "" {
		return uuid.Nil, apperrors.ErrEndpointMissing
	}

	if !req.Method.Valid() {
		return uuid.Nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidMethod, req.Method)
	}

	rec := &model.QueueRecord{
		ID:       uuid.New(),
		TenantID: req.TenantID,
		Endpoint: req.Endpoint,
		Method:   req.Method,
		Payload:  req.Payload,
		Headers:  req.Headers,
	}

	if err := m.storage.InsertRecord(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue record: %w", err)
	}

	m.l.Debug("Record enqueued",
		zap.String("record_id", rec.ID.String()),
		zap.String("tenant_id", rec.TenantID),
		zap.Int64("ts", rec.Timestamp),
	)

	return rec.ID, nil
}

// ListPending returns the tenant's unsynced records in ascending timestamp
// order. Safe to call again after partial processing.
func (m *Manager) ListPending(ctx context.Context, tenantID string) ([]model.QueueRecord, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperrors.ErrTenantIDMissing
	}

	return m.storage.SelectPendingByTenant(ctx, tenantID)
}

// ListFailed returns the tenant's terminally failed records.
func (m *Manager) ListFailed(ctx context.Context, tenantID string) ([]model.QueueRecord, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperrors.ErrTenantIDMissing
	}

	return m.storage.SelectFailedByTenant(ctx, tenantID)
}

// TenantsWithPending lists tenants that still have pending work, used by the
// replay engine to resume after a restart.
func (m *Manager) TenantsWithPending(ctx context.Context) ([]string, error) {
	return m.storage.SelectTenantsWithPending(ctx)
}

// MarkSynced is idempotent: marking twice, or an unknown id, is a no-op.
func (m *Manager) MarkSynced(ctx context.Context, id uuid.UUID) error {
	return m.storage.UpdateAsSynced(ctx, id)
}

// MarkFailed moves a record to the terminal failed state. The record stays
// queryable via ListFailed; it is never silently dropped.
func (m *Manager) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return m.storage.UpdateAsFailed(ctx, id, reason)
}

// Requeue moves a failed record back to pending with its original timestamp.
func (m *Manager) Requeue(ctx context.Context, id uuid.UUID) error {
	err := m.storage.UpdateAsPending(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrRecordNotFailed
	}

	return err
}

// RecordAttempt persists retry bookkeeping for a record.
func (m *Manager) RecordAttempt(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return m.storage.UpdateAttempts(ctx, id, attempts, lastError)
}

// Remove deletes a record. Idempotent.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	return m.storage.DeleteRecord(ctx, id)
}
