package client

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kongman/internal/storage/models"
)

// TokenSource mints the bearer token sent for jwt-hs256 profiles.
type TokenSource interface {
	Token(ctx context.Context, cred models.JWTAuth) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context, cred models.JWTAuth) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context, cred models.JWTAuth) (string, error) {
	return f(ctx, cred)
}

// DefaultTokenTTL is the lifetime of tokens minted by HS256Signer.
const DefaultTokenTTL = 5 * time.Minute

var defaultSigner TokenSource = HS256Signer{}

// HS256Signer mints short-lived tokens in the form Kong's jwt plugin
// expects: the credential key goes in "iss" and the token is signed with
// HMAC-SHA256 over the credential secret.
type HS256Signer struct {
	TTL time.Duration
	Now func() time.Time
}

func (s HS256Signer) Token(_ context.Context, cred models.JWTAuth) (string, error) {
	if cred.Key == "" || cred.Secret == "" {
		return "", fmt.Errorf("jwt key and secret are required")
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    cred.Key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString([]byte(cred.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
