package keypath

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/storage"
	"github.com/rryowa/devtasks/internal/util"
)

// DB is the subset of keypath.Client the repositories need.
type DB interface {
	Get(ctx context.Context, path string, dst any) (bool, error)
	Put(ctx context.Context, path string, value any) error
}

// userSegment turns an email into exactly one path segment, so that no email
// can address another user's keys.
func userSegment(email string) (string, error) {
	if email == "" || email == "." || email == ".." || strings.ContainsFunc(email, unicode.IsControl) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, email)
	}
	return url.PathEscape(email), nil
}

func userPath(email string) (string, error) {
	seg, err := userSegment(email)
	if err != nil {
		return "", err
	}
	return "users/" + seg, nil
}

func tasksPath(email string) (string, error) {
	seg, err := userSegment(email)
	if err != nil {
		return "", err
	}
	return "users/" + seg + "/tasks", nil
}

func revokedPath(hash string) string { return "revoked/" + hash }

type AccountRepository struct {
	db    DB
	locks util.KeyLock
	log   *zap.SugaredLogger
}

func NewAccountRepository(db DB, log *zap.SugaredLogger) *AccountRepository {
	return &AccountRepository{db: db, log: log}
}

func (r *AccountRepository) GetAccount(ctx context.Context, email string) (*models.Account, error) {
	path, err := userPath(email)
	if err != nil {
		return nil, storage.ErrAccountNotFound
	}
	var account models.Account
	found, err := r.db.Get(ctx, path, &account)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !found {
		return nil, storage.ErrAccountNotFound
	}
	return &account, nil
}

func (r *AccountRepository) CreateAccount(ctx context.Context, account models.Account) error {
	path, err := userPath(account.Email)
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(account.Email)
	defer unlock()

	var existing models.Account
	found, err := r.db.Get(ctx, path, &existing)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if found {
		return storage.ErrAccountExists
	}

	if err := r.db.Put(ctx, path, account); err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	r.log.Debugw("Account stored", "email", account.Email)
	return nil
}

type TaskRepository struct {
	db DB
}

func NewTaskRepository(db DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) GetTasks(ctx context.Context, email string) ([]models.Task, error) {
	path, err := tasksPath(email)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if _, err := r.db.Get(ctx, path, &tasks); err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) PutTasks(ctx context.Context, email string, tasks []models.Task) error {
	path, err := tasksPath(email)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	if err := r.db.Put(ctx, path, tasks); err != nil {
		return fmt.Errorf("put tasks: %w", err)
	}
	return nil
}

type revocationEntry struct {
	RevokedAt int64 `json:"revoked_at"`
	ExpiresAt int64 `json:"expires_at"`
}

type RevocationStore struct {
	db    DB
	locks util.KeyLock
}

func NewRevocationStore(db DB) *RevocationStore {
	return &RevocationStore{db: db}
}

func (s *RevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	hash := storage.HashToken(token)

	unlock := s.locks.Lock(hash)
	defer unlock()

	var entry revocationEntry
	found, err := s.db.Get(ctx, revokedPath(hash), &entry)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	if found {
		return false, nil
	}

	now := time.Now().UTC()
	entry = revocationEntry{RevokedAt: now.Unix(), ExpiresAt: now.Add(ttl).Unix()}
	if err := s.db.Put(ctx, revokedPath(hash), entry); err != nil {
		return false, fmt.Errorf("put revoked token: %w", err)
	}
	return true, nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	var entry revocationEntry
	found, err := s.db.Get(ctx, revokedPath(storage.HashToken(token)), &entry)
	if err != nil {
		return false, fmt.Errorf("get revoked token: %w", err)
	}
	return found, nil
}
