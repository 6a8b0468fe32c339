package tasks

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskflow/core/internal/models"
	"github.com/taskflow/core/internal/store"
)

var (
	ErrEmptyName     = errors.New("task name is empty")
	ErrDuplicateName = errors.New("task with this name already exists")
	ErrNotFound      = errors.New("task not found")
	ErrStorage       = errors.New("failed to persist tasks")
)

// Service implements task CRUD over the store document.
type Service struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(st *store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger, now: time.Now}
}

// All returns every task in insertion order. Any read problem yields an
// empty list.
func (s *Service) All() []models.Task {
	tasks := []models.Task{}
	s.store.Read(store.Tasks, &tasks)
	return tasks
}

// Pending returns the incomplete tasks, order preserved.
func (s *Service) Pending() []models.Task {
	pending := []models.Task{}
	for _, t := range s.All() {
		if !t.Completed {
			pending = append(pending, t)
		}
	}
	return pending
}

// Add appends a new task. The name is trimmed and must be unique among all
// tasks, compared case-insensitively.
func (s *Service) Add(name string) (*models.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	tasks := s.All()
	for _, t := range tasks {
		if strings.EqualFold(t.Name, name) {
			s.logger.Warn("duplicate task name rejected", zap.String("name", name))
			return nil, ErrDuplicateName
		}
	}

	now := s.now()
	task := models.Task{
		ID:        uuid.New().String(),
		Name:      name,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tasks = append(tasks, task)
	if !s.store.Write(store.Tasks, tasks) {
		return nil, ErrStorage
	}
	s.logger.Info("task added", zap.String("id", task.ID), zap.String("name", name))
	return &task, nil
}

// SetCompleted sets a task's completion state and refreshes its updated_at.
func (s *Service) SetCompleted(id string, completed bool) error {
	tasks := s.All()
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Completed = completed
			tasks[i].UpdatedAt = s.now()
			if !s.store.Write(store.Tasks, tasks) {
				return ErrStorage
			}
			return nil
		}
	}
	return ErrNotFound
}

// Toggle flips a task's completion state.
func (s *Service) Toggle(id string) (*models.Task, error) {
	tasks := s.All()
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Completed = !tasks[i].Completed
			tasks[i].UpdatedAt = s.now()
			if !s.store.Write(store.Tasks, tasks) {
				return nil, ErrStorage
			}
			return &tasks[i], nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a task by id, preserving the order of the rest.
func (s *Service) Delete(id string) error {
	tasks := s.All()
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tasks) {
		return ErrNotFound
	}
	if !s.store.Write(store.Tasks, kept) {
		return ErrStorage
	}
	s.logger.Info("task deleted", zap.String("id", id))
	return nil
}
