package memory

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/storage"
)

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	log      *zap.SugaredLogger
}

func NewAccountRepository(log *zap.SugaredLogger) *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]models.Account),
		log:      log,
	}
}

func (r *AccountRepository) GetAccount(_ context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[email]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return &account, nil
}

func (r *AccountRepository) CreateAccount(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.Email]; ok {
		return storage.ErrAccountExists
	}
	r.accounts[account.Email] = account
	r.log.Debugw("Account created", "email", account.Email)

	return nil
}

type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string][]models.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{
		tasks: make(map[string][]models.Task),
	}
}

func (r *TaskRepository) GetTasks(_ context.Context, email string) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.tasks[email]), nil
}

func (r *TaskRepository) PutTasks(_ context.Context, email string, tasks []models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[email] = slices.Clone(tasks)
	return nil
}
