// Package jwt issues and validates the HMAC tenant tokens the gateway and
// the sync daemon authenticate with.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TenantClaim = "tenant_id"

var ErrTenantClaimMissing = errors.New("tenant claim is missing")

type TokenOption func(claims jwt.MapClaims)

func WithClaim(key string, value any) TokenOption {
	return func(claims jwt.MapClaims) {
		claims[key] = value
	}
}

// NewTenantToken signs a token carrying the tenant id.
func NewTenantToken(secret []byte, tenantID string, ttl time.Duration, opts ...TokenOption) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["exp"] = time.Now().UTC().Add(ttl).Unix()
	claims["iat"] = time.Now().UTC().Unix()
	claims[TenantClaim] = tenantID

	for _, opt := range opts {
		opt(claims)
	}

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken parses the token and returns the tenant id it carries.
func ValidateToken(tokenStr string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	tenantID, ok := claims[TenantClaim].(string)
	if !ok || tenantID == "" {
		return "", ErrTenantClaimMissing
	}

	return tenantID, nil
}
