package jwt

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestNewTenantTokenRoundTrip(t *testing.T) {
	token, err := NewTenantToken(testSecret, "acme", time.Minute)
	if err != nil {
		t.Fatalf("NewTenantToken() error = %v", err)
	}

	tenantID, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	if tenantID != "acme" {
		t.Fatalf("tenant = %q, want %q", tenantID, "acme")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTenantToken(testSecret, "acme", time.Minute)
	if err != nil {
		t.Fatalf("NewTenantToken() error = %v", err)
	}

	if _, err := ValidateToken(token, []byte("other-secret")); err == nil {
		t.Fatal("ValidateToken() error = nil with wrong secret, want error")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := NewTenantToken(testSecret, "acme", -time.Minute)
	if err != nil {
		t.Fatalf("NewTenantToken() error = %v", err)
	}

	if _, err := ValidateToken(token, testSecret); err == nil {
		t.Fatal("ValidateToken() error = nil for expired token, want error")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token", testSecret); err == nil {
		t.Fatal("ValidateToken() error = nil for garbage, want error")
	}
}

func TestNewTenantTokenExtraClaims(t *testing.T) {
	token, err := NewTenantToken(testSecret, "acme", time.Minute, WithClaim("role", "admin"))
	if err != nil {
		t.Fatalf("NewTenantToken() error = %v", err)
	}

	tenantID, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	if tenantID != "acme" {
		t.Fatalf("tenant = %q, want %q", tenantID, "acme")
	}
}

func TestValidateTokenRequiresTenantClaim(t *testing.T) {
	token, err := NewTenantToken(testSecret, "", time.Minute)
	if err != nil {
		t.Fatalf("NewTenantToken() error = %v", err)
	}

	if _, err := ValidateToken(token, testSecret); !errors.Is(err, ErrTenantClaimMissing) {
		t.Fatalf("ValidateToken() error = %v, want %v", err, ErrTenantClaimMissing)
	}
}
