package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/devtasks/internal/models"
)

// TokenCodec signs and parses HS512 JWTs. It holds no keys.
type TokenCodec struct {
	now func() time.Time
}

func NewTokenCodec() *TokenCodec {
	return &TokenCodec{now: time.Now}
}

// NewTokenCodecWithClock is for tests.
func NewTokenCodecWithClock(now func() time.Time) *TokenCodec {
	return &TokenCodec{now: now}
}

// Encode fills in IssuedAt, ExpiresAt (now + lifetime) and a fresh ID, and
// returns the signed token together with the payload it carries.
// Times are truncated to seconds.
func (c *TokenCodec) Encode(payload models.TokenPayload, key []byte, lifetime time.Duration) (string, models.TokenPayload, error) {
	now := c.now().Truncate(time.Second)

	payload.ID = uuid.NewString()
	payload.IssuedAt = now
	payload.ExpiresAt = now.Add(lifetime)

	claims := jwt.RegisteredClaims{
		ID:        payload.ID,
		Subject:   payload.Subject.Email,
		IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", models.TokenPayload{}, fmt.Errorf("signed string: %w", err)
	}

	return signedToken, payload, nil
}

// Decode returns ErrTokenInvalidSignature, ErrTokenMalformed or ErrTokenExpired.
// A token is expired from the instant of its exp claim onwards.
func (c *TokenCodec) Decode(token string, key []byte) (models.TokenPayload, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return models.TokenPayload{}, classify(err)
	}
	if parsed == nil || !parsed.Valid {
		return models.TokenPayload{}, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return models.TokenPayload{}, fmt.Errorf("%w: missing subject or iat", ErrTokenMalformed)
	}

	return models.TokenPayload{
		ID:        claims.ID,
		Subject:   models.Identity{Email: claims.Subject},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}
