package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/storage"
)

type ReuseNotifier interface {
	NotifyRefreshReuse(ctx context.Context, email string)
}

// AuthService issues token pairs on register and login, and rotates them on
// refresh. Each refresh token can be exchanged exactly once.
type AuthService struct {
	tokens      *TokenPolicy
	accounts    storage.AccountRepository
	revocations storage.RevocationStore
	hasher      PasswordHasher
	notifier    ReuseNotifier
	log         *zap.SugaredLogger

	// compared against when the email is unknown so both login failures cost the same
	dummyHash string
}

func NewAuthService(
	tokens *TokenPolicy,
	accounts storage.AccountRepository,
	revocations storage.RevocationStore,
	hasher PasswordHasher,
	notifier ReuseNotifier,
	log *zap.SugaredLogger,
) *AuthService {
	dummy, err := hasher.Hash("devtasks-dummy-password")
	if err != nil {
		log.Warnw("failed to prepare dummy password hash", "error", err)
	}

	return &AuthService{
		tokens:      tokens,
		accounts:    accounts,
		revocations: revocations,
		hasher:      hasher,
		notifier:    notifier,
		log:         log,
		dummyHash:   dummy,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (models.TokenPair, error) {
	if email == "" || password == "" {
		return models.TokenPair{}, ErrInvalidPayload
	}

	_, err := s.accounts.GetAccount(ctx, email)
	switch {
	case err == nil, errors.Is(err, storage.ErrCorruptRecord):
		return models.TokenPair{}, ErrAlreadyExists
	case !errors.Is(err, storage.ErrAccountNotFound):
		return models.TokenPair{}, upstream("lookup account", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return models.TokenPair{}, err
	}

	err = s.accounts.CreateAccount(ctx, models.Account{Email: email, PasswordHash: digest})
	if errors.Is(err, storage.ErrAccountExists) {
		return models.TokenPair{}, ErrAlreadyExists
	}
	if err != nil {
		return models.TokenPair{}, upstream("create account", err)
	}

	s.log.Infow("Account registered", "email", email)
	return s.tokens.IssuePair(models.Identity{Email: email})
}

// Login returns ErrInvalidCredentials for an unknown email, an unreadable
// account record and a wrong password alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	account, err := s.accounts.GetAccount(ctx, email)
	if errors.Is(err, storage.ErrCorruptRecord) {
		s.log.Warnw("Account record cannot be decoded", "email", email, "error", err)
	}
	if errors.Is(err, storage.ErrAccountNotFound) || errors.Is(err, storage.ErrCorruptRecord) {
		s.hasher.Verify(password, s.dummyHash)
		return models.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.TokenPair{}, upstream("lookup account", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return models.TokenPair{}, ErrInvalidCredentials
	}

	return s.tokens.IssuePair(models.Identity{Email: account.Email})
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked before the pair is returned; a second exchange, sequential or
// concurrent, fails with ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	id, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return models.TokenPair{}, upstream("check revocation", err)
	}
	if revoked {
		s.reportReuse(ctx, id)
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	claimed, err := s.revocations.Revoke(ctx, refreshToken, s.tokens.TTL(RefreshToken))
	if err != nil {
		return models.TokenPair{}, upstream("revoke refresh token", err)
	}
	if !claimed {
		s.reportReuse(ctx, id)
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(id)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("rotate tokens: %w", err)
	}

	s.log.Debugw("Refresh token rotated", "email", id.Email)
	return pair, nil
}

// Logout revokes the refresh token. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	id, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}

	if _, err := s.revocations.Revoke(ctx, refreshToken, s.tokens.TTL(RefreshToken)); err != nil {
		return upstream("revoke refresh token", err)
	}

	s.log.Infow("Logged out", "email", id.Email)
	return nil
}

func (s *AuthService) reportReuse(ctx context.Context, id models.Identity) {
	s.log.Warnw("Revoked refresh token presented again", "email", id.Email)
	if s.notifier != nil {
		s.notifier.NotifyRefreshReuse(ctx, id.Email)
	}
}
