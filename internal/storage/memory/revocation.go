package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/storage"
)

type RevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	log     *zap.SugaredLogger
}

func NewRevocationStore(log *zap.SugaredLogger) *RevocationStore {
	return &RevocationStore{
		revoked: make(map[string]time.Time),
		log:     log,
	}
}

// Entries are kept forever; ttl is only recorded.
func (s *RevocationStore) Revoke(_ context.Context, token string, ttl time.Duration) (bool, error) {
	key := storage.HashToken(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.revoked[key]; ok {
		s.log.Debugw("Token already revoked", "tokenHash", key)
		return false, nil
	}
	s.revoked[key] = time.Now().Add(ttl)
	s.log.Debugw("Token revoked", "tokenHash", key, "ttl", ttl)

	return true, nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.revoked[storage.HashToken(token)]
	return ok, nil
}
