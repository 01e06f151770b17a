package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/devtasks/internal/storage"
)

const (
	revokedKeyPrefix = "revoked:"
	revokedValue     = "revoked"
)

type RevocationStore struct {
	client *redis.Client
}

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke uses SETNX, so exactly one of several concurrent callers gets true.
func (s *RevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, revokedKey(token), revokedValue, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis setnx: %w", storage.ErrUpstreamUnavailable, err)
	}
	return ok, nil
}

// IsRevoked проверяет наличие токена в Redis.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	result, err := s.client.Get(ctx, revokedKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("%w: redis get: %w", storage.ErrUpstreamUnavailable, err)
	}
	return result == revokedValue, nil
}

func revokedKey(token string) string {
	return revokedKeyPrefix + storage.HashToken(token)
}
