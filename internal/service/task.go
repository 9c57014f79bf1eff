package service

import (
	"context"
	"errors"
	"strings"

	"github.com/BuzzLyutic/task-sync/internal/model"
	"github.com/BuzzLyutic/task-sync/internal/sync"
)

var (
	ErrValidation = errors.New("validation error")
)

// TaskService - фасад приложения; вся политика согласования живет в движке,
// здесь только валидация на границе создания и нормализация enum-значений
type TaskService struct {
	engine *sync.Engine
}

func NewTaskService(engine *sync.Engine) *TaskService {
	return &TaskService{engine: engine}
}

func (s *TaskService) Add(ctx context.Context, t model.Task) (model.Task, error) {
	if err := s.validate(t); err != nil {
		return t, err
	}
	return s.engine.Add(ctx, normalize(t))
}

func (s *TaskService) Update(ctx context.Context, t model.Task) (model.Task, error) {
	if err := s.validate(t); err != nil {
		return t, err
	}
	return s.engine.Update(ctx, normalize(t))
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.engine.Delete(ctx, id)
}

func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	return s.engine.List(ctx)
}

func (s *TaskService) Watch(ctx context.Context) <-chan []model.Task {
	return s.engine.Watch(ctx)
}

func (s *TaskService) SyncAll(ctx context.Context) error {
	return s.engine.SyncAll(ctx)
}

func (s *TaskService) Refresh(ctx context.Context) error {
	return s.engine.Refresh(ctx)
}

func (s *TaskService) UnsyncedCount(ctx context.Context) (int, error) {
	return s.engine.UnsyncedCount(ctx)
}

func (s *TaskService) UnsyncedTasks(ctx context.Context) ([]model.Task, error) {
	return s.engine.UnsyncedTasks(ctx)
}

func (s *TaskService) validate(t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrValidation
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrValidation
	}
	return nil
}

func normalize(t model.Task) model.Task {
	t.Priority = model.ParsePriority(string(t.Priority))
	t.Status = model.ParseStatus(string(t.Status))
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t
}
