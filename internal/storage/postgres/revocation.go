package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rryowa/devtasks/internal/storage"
)

type RevocationStore struct {
	db storage.DBTX
}

func NewRevocationStore(db storage.DBTX) *RevocationStore {
	return &RevocationStore{db: db}
}

// Revoke relies on the primary key: only the first insert affects a row.
func (r *RevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	query := `INSERT INTO revoked_tokens (token_hash, expires_at) VALUES ($1, $2) ON CONFLICT (token_hash) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, storage.HashToken(token), time.Now().UTC().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("%w: insert revoked token: %w", storage.ErrUpstreamUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`
	if err := r.db.QueryRowContext(ctx, query, storage.HashToken(token)).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: select revoked token: %w", storage.ErrUpstreamUnavailable, err)
	}
	return exists, nil
}
