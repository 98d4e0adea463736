// Package service implements the gateway's mutation application flow: an
// idempotency check, the applied-mutation insert and the outbox insert in
// one transaction, then a hub publication.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"syncline/internal/gateway/repository"
	"syncline/internal/model"
)

type MutationRepository interface {
	Pool() *pgxpool.Pool
	InsertApplied(ctx context.Context, ext repository.RepoExtension, mutation *model.AppliedMutation) error
	SelectByIdempotencyKey(ctx context.Context, ext repository.RepoExtension, tenantID, key string) (*model.AppliedMutation, error)
}

type OutboxRepository interface {
	InsertMessage(ctx context.Context, ext repository.RepoExtension, message model.OutboxMessage) error
}

type EventHub interface {
	Publish(ctx context.Context, evt model.Event)
}

type MutationService struct {
	l            *zap.Logger
	mutationRepo MutationRepository
	outboxRepo   OutboxRepository
	hub          EventHub
}

func NewMutationService(l *zap.Logger, mutationRepo MutationRepository, outboxRepo OutboxRepository, hub EventHub) *MutationService {
	return &MutationService{
		l:            l,
		mutationRepo: mutationRepo,
		outboxRepo:   outboxRepo,
		hub:          hub,
	}
}

// Apply accepts one mutation delivery. A key that was already applied
// returns the stored first response with Applied=false and produces no new
// event, so redeliveries after a lost acknowledgment have a single effect.
func (s *MutationService) Apply(
	ctx context.Context,
	tenantID, endpoint string,
	method model.Method,
	idempotencyKey string,
	payload json.RawMessage,
) (*model.MutationResponse, error) {
	existing, err := s.mutationRepo.SelectByIdempotencyKey(ctx, nil, tenantID, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	if existing != nil {
		s.l.Debug("Duplicate delivery acknowledged",
			zap.String("tenant_id", tenantID),
			zap.String("idempotency_key", idempotencyKey),
		)

		return &model.MutationResponse{
			ID:      existing.ID.String(),
			Applied: false,
			Entity:  existing.Response,
		}, nil
	}

	mutation := &model.AppliedMutation{
		ID:             uuid.New(),
		TenantID:       tenantID,
		IdempotencyKey: idempotencyKey,
		Endpoint:       endpoint,
		Method:         method,
		Payload:        payload,
		Response:       payload,
	}

	eventPayload, err := json.Marshal(model.MutationSyncedPayload{
		RecordID: idempotencyKey,
		Endpoint: endpoint,
		Method:   method,
		Entity:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}

	outboxMsg := model.OutboxMessage{
		ID:       mutation.ID,
		TenantID: tenantID,
		Channel:  model.ChannelMutationApplied,
		Payload:  eventPayload,
	}

	if err := s.applyTx(ctx, mutation, outboxMsg); err != nil {
		return nil, err
	}

	s.hub.Publish(ctx, model.Event{
		Channel:  model.ChannelMutationApplied,
		TenantID: tenantID,
		Payload:  eventPayload,
		At:       time.Now().UTC(),
	})

	return &model.MutationResponse{
		ID:      mutation.ID.String(),
		Applied: true,
		Entity:  mutation.Response,
	}, nil
}

func (s *MutationService) applyTx(ctx context.Context, mutation *model.AppliedMutation, outboxMsg model.OutboxMessage) (err error) {
	tx, err := s.mutationRepo.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rErr := tx.Rollback(ctx); rErr != nil {
				err = fmt.Errorf("%w, failed to rollback transaction: %w", err, rErr)
			}
		}
	}()

	if err := s.mutationRepo.InsertApplied(ctx, tx, mutation); err != nil {
		return fmt.Errorf("insert applied mutation: %w", err)
	}

	if err := s.outboxRepo.InsertMessage(ctx, tx, outboxMsg); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
