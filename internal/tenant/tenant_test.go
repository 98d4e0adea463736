package tenant

import (
	"context"
	"errors"
	"testing"

	"syncline/internal/apperrors"
)

func TestWithTenantRoundTrip(t *testing.T) {
	ctx := WithTenant(context.Background(), "acme")

	got, err := FromContext(ctx)
	if err != nil {
		t.Fatalf("FromContext() error = %v", err)
	}

	if got != "acme" {
		t.Fatalf("FromContext() = %q, want %q", got, "acme")
	}
}

func TestFromContextMissingValue(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, apperrors.ErrContextValueDoesNotExist) {
		t.Fatalf("FromContext() error = %v, want %v", err, apperrors.ErrContextValueDoesNotExist)
	}
}

func TestFromContextEmptyTenant(t *testing.T) {
	ctx := WithTenant(context.Background(), "")

	if _, err := FromContext(ctx); !errors.Is(err, apperrors.ErrContextValueInvalidType) {
		t.Fatalf("FromContext() error = %v, want %v", err, apperrors.ErrContextValueInvalidType)
	}
}

func TestWithTenantOverrides(t *testing.T) {
	ctx := WithTenant(WithTenant(context.Background(), "acme"), "globex")

	got, err := FromContext(ctx)
	if err != nil {
		t.Fatalf("FromContext() error = %v", err)
	}

	if got != "globex" {
		t.Fatalf("FromContext() = %q, want %q", got, "globex")
	}
}
