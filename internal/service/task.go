package service

import (
	"context"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/models"
	"github.com/rryowa/devtasks/internal/storage"
	"github.com/rryowa/devtasks/internal/util"
)

const (
	minTaskID = 100000
	maxTaskID = 999999
)

// TaskService keeps each user's tasks as one list in the task store. Writes for
// the same user are serialized so concurrent edits don't overwrite each other.
type TaskService struct {
	tasks storage.TaskRepository
	log   *zap.SugaredLogger
	locks util.KeyLock
}

func NewTaskService(tasks storage.TaskRepository, log *zap.SugaredLogger) *TaskService {
	return &TaskService{
		tasks: tasks,
		log:   log,
	}
}

func (s *TaskService) List(ctx context.Context, user models.Identity) ([]models.Task, error) {
	tasks, err := s.tasks.GetTasks(ctx, user.Email)
	if err != nil {
		return nil, upstream("list tasks", err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

func (s *TaskService) Create(ctx context.Context, user models.Identity, name string) (models.Task, error) {
	if name == "" {
		return models.Task{}, ErrInvalidPayload
	}

	var created models.Task
	err := s.update(ctx, user, func(tasks []models.Task) ([]models.Task, error) {
		created = models.Task{Name: name, ID: newTaskID(tasks), Status: models.TaskStatusIncomplete}
		return append(tasks, created), nil
	})
	if err != nil {
		return models.Task{}, err
	}

	s.log.Debugw("Task created", "email", user.Email, "taskID", created.ID)
	return created, nil
}

func (s *TaskService) UpdateStatus(ctx context.Context, user models.Identity, id int, status string) (models.Task, error) {
	if id == 0 || status == "" {
		return models.Task{}, ErrInvalidPayload
	}

	var updated models.Task
	err := s.update(ctx, user, func(tasks []models.Task) ([]models.Task, error) {
		i := slices.IndexFunc(tasks, func(t models.Task) bool { return t.ID == id })
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		updated = tasks[i]
		updated.Status = status
		return append(slices.Delete(tasks, i, i+1), updated), nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, user models.Identity, id int) error {
	if id == 0 {
		return ErrInvalidPayload
	}

	return s.update(ctx, user, func(tasks []models.Task) ([]models.Task, error) {
		i := slices.IndexFunc(tasks, func(t models.Task) bool { return t.ID == id })
		if i < 0 {
			return nil, ErrTaskNotFound
		}
		return slices.Delete(tasks, i, i+1), nil
	})
}

func (s *TaskService) update(ctx context.Context, user models.Identity, fn func([]models.Task) ([]models.Task, error)) error {
	unlock := s.locks.Lock(user.Email)
	defer unlock()

	tasks, err := s.tasks.GetTasks(ctx, user.Email)
	if err != nil {
		return upstream("load tasks", err)
	}

	tasks, err = fn(tasks)
	if err != nil {
		return err
	}

	if err := s.tasks.PutTasks(ctx, user.Email, tasks); err != nil {
		return upstream("store tasks", err)
	}
	return nil
}

func newTaskID(existing []models.Task) int {
	for {
		id := minTaskID + rand.IntN(maxTaskID-minTaskID+1)
		if !slices.ContainsFunc(existing, func(t models.Task) bool { return t.ID == id }) {
			return id
		}
	}
}
