package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-sync/internal/config"
	"github.com/BuzzLyutic/task-sync/internal/handler"
	"github.com/BuzzLyutic/task-sync/internal/remote"
	"github.com/BuzzLyutic/task-sync/internal/service"
	"github.com/BuzzLyutic/task-sync/internal/store"
	syncengine "github.com/BuzzLyutic/task-sync/internal/sync"
	"github.com/BuzzLyutic/task-sync/internal/worker"
)

func main() {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg := config.Load()

	// Локальное хранилище: по умолчанию встраиваемый sqlite,
	// postgres - для развертывания на общем хосте
	var recordStore store.RecordStore
	switch cfg.DBDriver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to Database.")
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			log.Fatal("Failed to ping the Database.")
		}
		recordStore = store.NewPostgresStore(pool)
	default:
		st, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal("Failed to open local database.")
		}
		defer st.Close()
		recordStore = st
	}
	logger.Info("Local store is ready", zap.String("driver", cfg.DBDriver))

	remoteClient := remote.NewHTTPClient(cfg.RemoteBaseURL, logger)
	engine := syncengine.NewEngine(recordStore, remoteClient, logger)
	taskService := service.NewTaskService(engine)
	taskHandler := handler.NewTaskHandler(taskService, logger)

	// Стартовый pull - best-effort: без сети работаем с тем, что есть локально
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := engine.Refresh(ctx); err != nil {
			logger.Warn("initial refresh failed, starting with local data", zap.Error(err))
		}
	}()

	r := chi.NewRouter() // Создаем роутер
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})
	taskHandler.Routes(r)

	// Фоновый проход пересинхронизации
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	pool := worker.NewPool(engine, recordStore, logger, cfg.WorkerCount, cfg.SyncInterval)
	pool.Start(workerCtx)

	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started at ", zap.String("port", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: ", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	pool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Shutdown error: ", zap.Error(err))
	}
	logger.Info("Server stopped succsessfully!")
}
