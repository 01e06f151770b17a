package service

import (
	"strings"

	"github.com/rryowa/devtasks/internal/models"
)

const bearerScheme = "Bearer"

type AuthGate struct {
	tokens *TokenPolicy
}

func NewAuthGate(tokens *TokenPolicy) *AuthGate {
	return &AuthGate{tokens: tokens}
}

// Authenticate checks an Authorization header value of the form "Bearer <token>".
func (g *AuthGate) Authenticate(header string) (models.Identity, error) {
	if header == "" {
		return models.Identity{}, ErrUnauthorized
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
		return models.Identity{}, ErrMalformedAuthHeader
	}

	return g.tokens.VerifyAccess(parts[1])
}
