package store

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/task-sync/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// RecordStore определяет интерфейс локального хранилища записей
type RecordStore interface {
	GetAll(ctx context.Context) ([]model.Task, error)
	GetByID(ctx context.Context, id string) (model.Task, error)
	GetUnsynced(ctx context.Context) ([]model.Task, error)
	Insert(ctx context.Context, t model.Task) error
	InsertMany(ctx context.Context, ts []model.Task) error
	Update(ctx context.Context, t model.Task) (model.Task, error)
	DeleteByID(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string) error
	MarkUnsynced(ctx context.Context, id string) error
	RenameID(ctx context.Context, oldID, newID string) error
	DeleteAll(ctx context.Context) error
	Watch(ctx context.Context) <-chan []model.Task
}
