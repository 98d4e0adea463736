// Package tenant carries the active tenant identifier through contexts.
// Every queue and bus operation is partitioned by it.
package tenant

import (
	"context"

	"syncline/internal/apperrors"
)

type ctxKey struct{}

// WithTenant returns a context carrying the tenant id.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// FromContext extracts the tenant id set by WithTenant.
func FromContext(ctx context.Context) (string, error) {
	value := ctx.Value(ctxKey{})
	if value == nil {
		return "", apperrors.ErrContextValueDoesNotExist
	}

	tenantID, ok := value.(string)
	if !ok || tenantID == "" {
		return "", apperrors.ErrContextValueInvalidType
	}

	return tenantID, nil
}
