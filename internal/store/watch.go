package store

import (
	"context"
	"sync"

	"github.com/BuzzLyutic/task-sync/internal/model"
)

// watchHub рассылает снапшот всех записей подписчикам после каждой записи.
// Канал подписчика буферизован на один элемент: если читатель отстает,
// устаревший снапшот вытесняется свежим.
type watchHub struct {
	mu       sync.Mutex
	subs     map[int]chan []model.Task
	nextID   int
	snapshot func(context.Context) ([]model.Task, error)
}

func newWatchHub(snapshot func(context.Context) ([]model.Task, error)) *watchHub {
	return &watchHub{
		subs:     make(map[int]chan []model.Task),
		snapshot: snapshot,
	}
}

func (h *watchHub) Watch(ctx context.Context) <-chan []model.Task {
	ch := make(chan []model.Task, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	// Сразу отдаем текущее состояние. Отправка неблокирующая: между
	// регистрацией подписчика и этим моментом notify() мог уже заполнить буфер.
	if ts, err := h.snapshot(ctx); err == nil {
		send(ch, ts)
	}

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}()

	return ch
}

func (h *watchHub) notify() {
	ts, err := h.snapshot(context.Background())
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		send(ch, ts)
	}
}

// send кладет снапшот в канал, вытесняя устаревший, и никогда не блокируется.
func send(ch chan []model.Task, ts []model.Task) {
	select {
	case ch <- ts:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ts:
		default:
		}
	}
}
