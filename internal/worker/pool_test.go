package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync/internal/model"
	"github.com/BuzzLyutic/task-sync/internal/remote"
	"github.com/BuzzLyutic/task-sync/internal/store"
	"github.com/BuzzLyutic/task-sync/internal/sync"
)

// countingRemote выдает серверные id и считает вызовы
type countingRemote struct {
	creates atomic.Int32
	next    atomic.Int32
}

func (c *countingRemote) List(ctx context.Context) ([]remote.Task, error) {
	return []remote.Task{}, nil
}

func (c *countingRemote) Create(ctx context.Context, req remote.CreateRequest) (remote.CreatedTask, error) {
	c.creates.Add(1)
	return remote.CreatedTask{ID: fmt.Sprintf("srv-%d", c.next.Add(1))}, nil
}

func (c *countingRemote) Delete(ctx context.Context, id string) error {
	return nil
}

func TestPool_SyncsUnsyncedTasks(t *testing.T) {
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Insert(ctx, model.Task{
			ID:          fmt.Sprintf("local-%d", i),
			Title:       fmt.Sprintf("Task %d", i),
			Description: "x",
		}))
	}

	rc := &countingRemote{}
	logger := zap.NewNop()
	engine := sync.NewEngine(st, rc, logger)

	pool := NewPool(engine, st, logger, 2, 50*time.Millisecond)
	pool.Start(ctx)

	assert.Eventually(t, func() bool {
		unsynced, err := st.GetUnsynced(ctx)
		return err == nil && len(unsynced) == 0
	}, 5*time.Second, 25*time.Millisecond, "all tasks should be pushed")

	pool.Stop()

	// Повторный push идемпотентен, поэтому записей ровно пять, все под
	// серверными id, даже если какой-то тик успел толкнуть запись дважды
	all, err := st.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	for _, task := range all {
		assert.True(t, task.IsSynced)
		assert.Contains(t, task.ID, "srv-")
	}
	assert.GreaterOrEqual(t, rc.creates.Load(), int32(5))
}

func TestPool_StopIsClean(t *testing.T) {
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer st.Close()

	engine := sync.NewEngine(st, &countingRemote{}, zap.NewNop())
	pool := NewPool(engine, st, zap.NewNop(), 3, 10*time.Millisecond)

	pool.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	pool.Stop() // не должен зависнуть или паниковать
}
