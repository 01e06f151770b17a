package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/util"
)

type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

type tokenSpec struct {
	key []byte
	ttl time.Duration
}

// TokenPolicy knows the key and lifetime of each token kind. A token is only
// ever checked against the key of its own kind.
type TokenPolicy struct {
	codec *TokenCodec
	specs map[TokenKind]tokenSpec
	log   *zap.SugaredLogger
}

func NewTokenPolicy(cfg *util.TokenConfig, codec *TokenCodec, log *zap.SugaredLogger) *TokenPolicy {
	return &TokenPolicy{
		codec: codec,
		specs: map[TokenKind]tokenSpec{
			AccessToken:  {key: cfg.AccessKey, ttl: cfg.AccessTTL},
			RefreshToken: {key: cfg.RefreshKey, ttl: cfg.RefreshTTL},
		},
		log: log,
	}
}

func (p *TokenPolicy) IssueAccess(id models.Identity) (string, error) {
	return p.issue(AccessToken, id)
}

func (p *TokenPolicy) IssueRefresh(id models.Identity) (string, error) {
	return p.issue(RefreshToken, id)
}

func (p *TokenPolicy) VerifyAccess(token string) (models.Identity, error) {
	return p.verify(AccessToken, token)
}

func (p *TokenPolicy) VerifyRefresh(token string) (models.Identity, error) {
	return p.verify(RefreshToken, token)
}

func (p *TokenPolicy) TTL(kind TokenKind) time.Duration {
	return p.specs[kind].ttl
}

// IssuePair создает пару access/refresh для одного пользователя.
func (p *TokenPolicy) IssuePair(id models.Identity) (models.TokenPair, error) {
	access, err := p.IssueAccess(id)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := p.IssueRefresh(id)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (p *TokenPolicy) issue(kind TokenKind, id models.Identity) (string, error) {
	spec := p.specs[kind]
	token, _, err := p.codec.Encode(models.TokenPayload{Subject: id}, spec.key, spec.ttl)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", kind, err)
	}
	return token, nil
}

// verify hides the reason of a failure from the caller; it is only logged.
func (p *TokenPolicy) verify(kind TokenKind, token string) (models.Identity, error) {
	payload, err := p.codec.Decode(token, p.specs[kind].key)
	if err != nil {
		p.log.Debugw("Token rejected", "kind", kind.String(), "reason", err)
		return models.Identity{}, ErrInvalidToken
	}
	return payload.Subject, nil
}
