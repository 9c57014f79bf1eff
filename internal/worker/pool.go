package worker

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync/internal/model"
	"github.com/BuzzLyutic/task-sync/internal/store"
	"github.com/BuzzLyutic/task-sync/internal/sync"
)

// Pool - фоновый проход повторной синхронизации: диспетчер по тикеру
// перечитывает несинхронизированный набор, воркеры толкают записи на сервер.
// Повторный push безопасен - create это upsert по id.
type Pool struct {
	engine   *sync.Engine
	store    store.RecordStore
	logger   *zap.Logger
	count    int
	interval time.Duration
	wg       stdsync.WaitGroup
	stop     chan struct{}
	queue    chan model.Task
}

func NewPool(engine *sync.Engine, st store.RecordStore, logger *zap.Logger, count int, interval time.Duration) *Pool {
	return &Pool{
		engine:   engine,
		store:    st,
		logger:   logger,
		count:    count,
		interval: interval,
		stop:     make(chan struct{}),
		queue:    make(chan model.Task, 64),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting sync pool", zap.Int("workers", p.count), zap.Duration("interval", p.interval))

	p.wg.Add(1)
	go p.dispatch(ctx)

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Stop() {
	p.logger.Info("Stopping sync pool...")
	close(p.stop)
	p.wg.Wait()
	p.logger.Info("Sync pool stopped")
}

func (p *Pool) dispatch(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			unsynced, err := p.store.GetUnsynced(ctx)
			if err != nil {
				p.logger.Error("dispatch error", zap.Error(err))
				continue
			}
			for _, t := range unsynced {
				select {
				case p.queue <- t:
				default:
					// Очередь полна - остаток доберет следующий тик
				}
			}
		}
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case t := <-p.queue:
			if err := p.engine.Push(ctx, t); err != nil {
				p.logger.Warn("background push failed",
					zap.Int("worker", id), zap.String("task_id", t.ID), zap.Error(err))
				continue
			}
			p.logger.Info("Task synced",
				zap.Int("worker", id), zap.String("task_id", t.ID))
		}
	}
}
