package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/rryowa/devtasks/internal/models"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrUpstreamUnavailable = errors.New("upstream store unavailable")
)

var (
	// ErrInvalidKey is returned for an email that cannot name a storage key.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrCorruptRecord is returned when a stored value does not decode into the expected type.
	ErrCorruptRecord = errors.New("stored record cannot be decoded")
)

type AccountRepository interface {
	GetAccount(ctx context.Context, email string) (*models.Account, error)
	// CreateAccount returns ErrAccountExists if the email is taken.
	CreateAccount(ctx context.Context, account models.Account) error
}

// TaskRepository stores the whole task list of a user under one key.
type TaskRepository interface {
	GetTasks(ctx context.Context, email string) ([]models.Task, error)
	PutTasks(ctx context.Context, email string, tasks []models.Task) error
}

type RevocationStore interface {
	// Revoke atomically marks the token as revoked and reports whether this
	// call did the transition. Revoking twice is a no-op returning false.
	Revoke(ctx context.Context, token string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// HashToken is the key every RevocationStore files a token under.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
