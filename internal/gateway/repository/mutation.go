package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"syncline/internal/model"
)

type MutationRepository struct {
	db *pgxpool.Pool
}

func NewMutationRepository(db *pgxpool.Pool) *MutationRepository {
	return &MutationRepository{
		db: db,
	}
}

func (r *MutationRepository) Pool() *pgxpool.Pool {
	return r.db
}

// InsertApplied stores an accepted mutation. The unique index on
// (tenant_id, idempotency_key) makes redelivery a conflict, not a duplicate.
func (r *MutationRepository) InsertApplied(ctx context.Context, ext RepoExtension, mutation *model.AppliedMutation) error {
	if ext == nil {
		ext = r.db
	}

	const query = `
		INSERT INTO sync.applied_mutations (id, tenant_id, idempotency_key, endpoint, method, payload, response)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING applied_at;
	`

	err := ext.QueryRow(ctx, query,
		mutation.ID,
		mutation.TenantID,
		mutation.IdempotencyKey,
		mutation.Endpoint,
		string(mutation.Method),
		mutation.Payload,
		mutation.Response,
	).Scan(&mutation.AppliedAt)
	if err != nil {
		return err
	}

	return nil
}

// SelectByIdempotencyKey returns the previously applied mutation for the
// tenant and key, or nil when the key has not been seen.
func (r *MutationRepository) SelectByIdempotencyKey(ctx context.Context, ext RepoExtension, tenantID, key string) (*model.AppliedMutation, error) {
	if ext == nil {
		ext = r.db
	}

	const query = `
		SELECT id, tenant_id, idempotency_key, endpoint, method, payload, response, applied_at
		FROM sync.applied_mutations
		WHERE tenant_id = $1 AND idempotency_key = $2;
	`

	var (
		mutation model.AppliedMutation
		method   string
	)

	err := ext.QueryRow(ctx, query, tenantID, key).Scan(
		&mutation.ID,
		&mutation.TenantID,
		&mutation.IdempotencyKey,
		&mutation.Endpoint,
		&method,
		&mutation.Payload,
		&mutation.Response,
		&mutation.AppliedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	mutation.Method = model.Method(method)

	return &mutation, nil
}
