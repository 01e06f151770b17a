package service

import (
	"errors"
	"fmt"

	"github.com/rryowa/devtasks/internal/storage"
)

// Codec errors. They never leave the package: TokenPolicy collapses them into ErrInvalidToken.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenMalformed        = errors.New("token is malformed")
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAlreadyExists       = errors.New("account already exists")
	ErrUnauthorized        = errors.New("authorization header is missing")
	ErrMalformedAuthHeader = errors.New("authorization header is not a bearer token")
	ErrInvalidPayload      = errors.New("invalid payload")
	ErrTaskNotFound        = errors.New("task not found")
	ErrUpstreamUnavailable = storage.ErrUpstreamUnavailable
)

// upstream marks a store failure as ErrUpstreamUnavailable, keeping the cause.
// A key the store refused to build is the caller's fault and becomes ErrInvalidPayload.
func upstream(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidPayload, err)
	case errors.Is(err, ErrUpstreamUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
	}
}
