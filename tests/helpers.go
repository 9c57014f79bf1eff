package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync/internal/handler"
	"github.com/BuzzLyutic/task-sync/internal/remote"
	"github.com/BuzzLyutic/task-sync/internal/service"
	"github.com/BuzzLyutic/task-sync/internal/store"
	syncengine "github.com/BuzzLyutic/task-sync/internal/sync"
)

// SetupTestDB создает тестовую БД с помощью testcontainers
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	// Находим путь к миграциям
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filename))
	migrationsPath := filepath.Join(projectRoot, "migrations")

	// Создаем PostgreSQL контейнер
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(filepath.Join(migrationsPath, "001_create_tasks.up.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// TruncateTasks очищает таблицу задач
func TruncateTasks(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), "TRUNCATE tasks"); err != nil {
		t.Fatalf("Failed to truncate tasks: %v", err)
	}
}

// WaitForCondition ждет выполнения условия с таймаутом
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

type fakeTask struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// FakeRemote - удаленный todo API в памяти: list/create-as-upsert/delete
// плюс рубильник offline для эмуляции недоступной сети
type FakeRemote struct {
	mu      sync.Mutex
	tasks   map[string]fakeTask
	order   []string
	nextID  int
	offline atomic.Bool

	CreateCalls atomic.Int32
	DeleteCalls atomic.Int32

	Server *httptest.Server
}

func NewFakeRemote(t *testing.T) *FakeRemote {
	t.Helper()
	f := &FakeRemote{tasks: make(map[string]fakeTask)}

	r := chi.NewRouter()
	r.Get("/todos", f.list)
	r.Post("/todos", f.create)
	r.Delete("/todos/{id}", f.delete)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeRemote) SetOffline(offline bool) {
	f.offline.Store(offline)
}

// Seed кладет задачу на "сервер" напрямую, мимо HTTP
func (f *FakeRemote) Seed(task fakeTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		f.order = append(f.order, task.ID)
	}
	f.tasks[task.ID] = task
}

func (f *FakeRemote) SeedSimple(id, title string) {
	f.Seed(fakeTask{ID: id, Title: title, Description: "seeded", Priority: "Medium", Status: "Not Started", Tags: []string{}})
}

func (f *FakeRemote) Forget(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
}

func (f *FakeRemote) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[id]
	return ok
}

func (f *FakeRemote) list(w http.ResponseWriter, r *http.Request) {
	if f.offline.Load() {
		http.Error(w, `{"error":"offline"}`, http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	out := make([]fakeTask, 0, len(f.order))
	for _, id := range f.order {
		if task, ok := f.tasks[id]; ok {
			out = append(out, task)
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// create ведет себя как upsert: повтор с тем же title заменяет запись и
// возвращает прежний id, как делает настоящий API при известном идентификаторе
func (f *FakeRemote) create(w http.ResponseWriter, r *http.Request) {
	f.CreateCalls.Add(1)
	if f.offline.Load() {
		http.Error(w, `{"error":"offline"}`, http.StatusServiceUnavailable)
		return
	}

	var req fakeTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	id := ""
	for existingID, existing := range f.tasks {
		if existing.Title == req.Title {
			id = existingID
			break
		}
	}
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("srv-%d", f.nextID)
		f.order = append(f.order, id)
	}
	req.ID = id
	f.tasks[id] = req
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Todo created successfully",
		"data": map[string]interface{}{
			"id":          id,
			"title":       req.Title,
			"description": req.Description,
			"dueDate":     req.DueDate,
			"priority":    req.Priority,
			"status":      req.Status,
			"tags":        req.Tags,
		},
	})
}

func (f *FakeRemote) delete(w http.ResponseWriter, r *http.Request) {
	f.DeleteCalls.Add(1)
	if f.offline.Load() {
		http.Error(w, `{"error":"offline"}`, http.StatusServiceUnavailable)
		return
	}

	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.tasks[id]
	delete(f.tasks, id)
	f.mu.Unlock()

	if !ok {
		http.Error(w, `{"error":"todo not found"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
}

// App - собранное в памяти приложение для e2e: sqlite :memory: + фейковый
// удаленный API + настоящий роутер
type App struct {
	Server *httptest.Server
	Store  *store.SQLiteStore
	Engine *syncengine.Engine
	Remote *FakeRemote
}

func SetupApp(t *testing.T) *App {
	t.Helper()

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fake := NewFakeRemote(t)
	logger := zap.NewNop()

	remoteClient := remote.NewHTTPClient(fake.Server.URL, logger)
	engine := syncengine.NewEngine(st, remoteClient, logger)
	taskService := service.NewTaskService(engine)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})
	taskHandler.Routes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &App{
		Server: server,
		Store:  st,
		Engine: engine,
		Remote: fake,
	}
}
