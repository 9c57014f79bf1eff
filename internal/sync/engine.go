package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync/internal/model"
	"github.com/BuzzLyutic/task-sync/internal/remote"
	"github.com/BuzzLyutic/task-sync/internal/store"
)

// Engine согласует локальное хранилище с удаленным источником истины.
// Локальная запись всегда синхронна и обязательна, push наружу - best-effort:
// его ошибка не всплывает к вызывающему, запись остается is_synced=false
// до следующего прохода SyncAll.
type Engine struct {
	store  store.RecordStore
	remote remote.Client
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewEngine(st store.RecordStore, rc remote.Client, logger *zap.Logger) *Engine {
	return &Engine{
		store:  st,
		remote: rc,
		logger: logger,
	}
}

// Add сохраняет запись локально и возвращает управление; push уходит в фоне.
// Пустой id заменяется клиентским uuid - сервер потом выдаст свой, и запись
// будет переименована.
func (e *Engine) Add(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsSynced = false
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	if err := e.store.Insert(ctx, t); err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	e.logger.Debug("task saved locally", zap.String("id", t.ID))

	e.background(func(bgCtx context.Context) {
		if err := e.Push(bgCtx, t); err != nil {
			e.logger.Warn("initial push failed, task kept unsynced",
				zap.String("id", t.ID), zap.Error(err))
		}
	})

	return t, nil
}

// Update пишет новые значения локально со сброшенным флагом синхронизации,
// затем в фоне повторяет их на сервер через create-as-upsert.
func (e *Engine) Update(ctx context.Context, t model.Task) (model.Task, error) {
	t.IsSynced = false
	updated, err := e.store.Update(ctx, t)
	if err != nil {
		return t, fmt.Errorf("update task: %w", err)
	}

	e.background(func(bgCtx context.Context) {
		if err := e.pushExisting(bgCtx, updated); err != nil {
			e.logger.Warn("update push failed, task kept unsynced",
				zap.String("id", updated.ID), zap.Error(err))
		}
	})

	return updated, nil
}

// Delete удаляет локально безусловно. Для синхронизированной записи сначала
// пробуем удалить на сервере; not-found-класс означает, что сервер записи
// не знал (клиентский id так и не дошел) - просто чистим локально. Любая
// другая ошибка тоже не блокирует локальное удаление, иначе задача зависнет
// неудаляемой. Возможное расхождение с сервером - осознанная цена.
func (e *Engine) Delete(ctx context.Context, id string) error {
	t, err := e.store.GetByID(ctx, id)
	if err != nil && !errors.Is(err, store.ErrorNotFound) {
		return err
	}

	if err == nil && t.IsSynced {
		if derr := e.remote.Delete(ctx, id); derr != nil {
			if remote.IsNotFound(derr) {
				e.logger.Info("remote never knew the task, deleting locally",
					zap.String("id", id))
			} else {
				e.logger.Warn("remote delete failed, deleting locally anyway",
					zap.String("id", id), zap.Error(derr))
			}
		} else {
			e.logger.Debug("deleted from remote", zap.String("id", id))
		}
	}

	return e.store.DeleteByID(ctx, id)
}

// Refresh (pull) затягивает список с сервера и заливает его в хранилище
// одним батчем; пришедшее с сервера синхронизировано по определению.
// Ошибка листинга всплывает: pull - явный запрос свежих данных,
// деградировать тут нечем.
func (e *Engine) Refresh(ctx context.Context) error {
	remoteTasks, err := e.remote.List(ctx)
	if err != nil {
		return fmt.Errorf("list remote tasks: %w", err)
	}

	records := make([]model.Task, 0, len(remoteTasks))
	for _, rt := range remoteTasks {
		records = append(records, fromRemote(rt))
	}

	if err := e.store.InsertMany(ctx, records); err != nil {
		return fmt.Errorf("store remote tasks: %w", err)
	}
	e.logger.Info("refreshed from remote", zap.Int("count", len(records)))
	return nil
}

// SyncAll повторяет push для всего несинхронизированного набора. Ошибка на
// одной записи не останавливает остальные: push идемпотентен (upsert по id).
func (e *Engine) SyncAll(ctx context.Context) error {
	unsynced, err := e.store.GetUnsynced(ctx)
	if err != nil {
		return err
	}

	for _, t := range unsynced {
		if err := e.Push(ctx, t); err != nil {
			e.logger.Warn("sync failed, task kept unsynced",
				zap.String("id", t.ID), zap.Error(err))
		}
	}
	return nil
}

// Push выполняет полный add-push: create-as-upsert, переименование под
// серверный id, пометка синхронизированной.
func (e *Engine) Push(ctx context.Context, t model.Task) error {
	created, err := e.remote.Create(ctx, toCreateRequest(t))
	if err != nil {
		return err
	}

	serverID := created.ID
	if serverID != "" && serverID != t.ID {
		e.logger.Debug("server assigned new id",
			zap.String("local", t.ID), zap.String("server", serverID))
		if err := e.store.RenameID(ctx, t.ID, serverID); err != nil {
			return fmt.Errorf("rename %s -> %s: %w", t.ID, serverID, err)
		}
	} else {
		serverID = t.ID
	}

	return e.store.MarkSynced(ctx, serverID)
}

// pushExisting - путь обновления: сервер уже знает id, переименование не нужно
func (e *Engine) pushExisting(ctx context.Context, t model.Task) error {
	if _, err := e.remote.Create(ctx, toCreateRequest(t)); err != nil {
		return err
	}
	return e.store.MarkSynced(ctx, t.ID)
}

func (e *Engine) List(ctx context.Context) ([]model.Task, error) {
	return e.store.GetAll(ctx)
}

func (e *Engine) Watch(ctx context.Context) <-chan []model.Task {
	return e.store.Watch(ctx)
}

func (e *Engine) UnsyncedTasks(ctx context.Context) ([]model.Task, error) {
	return e.store.GetUnsynced(ctx)
}

func (e *Engine) UnsyncedCount(ctx context.Context) (int, error) {
	tasks, err := e.store.GetUnsynced(ctx)
	if err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// Wait блокируется до завершения всех фоновых push. Нужен тестам и
// graceful shutdown; обрыв процесса раньше просто бросает push - локальная
// запись уже durable, остальное доберет SyncAll.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Фоновый push отвязан от контекста вызова: ответ вызывающему
// не должен зависеть от сети.
func (e *Engine) background(fn func(context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(context.Background())
	}()
}

func toCreateRequest(t model.Task) remote.CreateRequest {
	return remote.CreateRequest{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority.Wire(),
		Status:      t.Status.Wire(),
		Tags:        t.Tags,
	}
}

func fromRemote(rt remote.Task) model.Task {
	tags := rt.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Task{
		ID:          rt.ID,
		Title:       rt.Title,
		Description: rt.Description,
		DueDate:     rt.DueDate,
		Priority:    model.PriorityFromWire(rt.Priority),
		Status:      model.StatusFromWire(rt.Status),
		Tags:        tags,
		IsSynced:    true,
	}
}
