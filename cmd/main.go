package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/controller"
	"todo-api/internal/database"
	"todo-api/internal/queue"
	"todo-api/internal/repository"
	"todo-api/internal/routes"
	"todo-api/internal/service"
	"todo-api/internal/worker"
	"todo-api/pkg/logger"
)

func main() {
	// Real environment wins over .env.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetDefault(logger.New(os.Stdout, cfg.LogLevel))

	db, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Database not available; exiting", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}

	var opts []service.Option

	var rdb *redis.Client
	var todoCache *cache.TodoCache
	if cfg.CacheEnabled() {
		rdb, err = cache.NewClient(ctx, cfg)
		if err != nil {
			logger.Warn(ctx, "Redis unavailable; serving without list cache", "error", err)
		} else {
			defer rdb.Close()
			todoCache = cache.NewTodoCache(rdb, cfg.CacheTTL)
			opts = append(opts, service.WithCache(todoCache))
		}
	}

	if cfg.EventsEnabled() {
		queue.EnsureTopic(ctx, cfg)
		publisher := queue.NewPublisher(queue.NewWriter(ctx, cfg))
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error(ctx, "Kafka writer close failed", "error", err)
			}
		}()
		opts = append(opts, service.WithEvents(publisher))
	}

	svc := service.NewTodoService(repository.NewStore(db), opts...)

	workerCtx, stopWorker := context.WithCancel(ctx)
	var workers sync.WaitGroup
	// Remote events invalidate through the service, which also fences in-flight list reads.
	if cfg.EventsEnabled() && todoCache != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(workerCtx, worker.NewReader(cfg), svc)
		}()
	}

	handler := controller.NewTodoHandler(svc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(handler, cfg.CORSAllowOrigins),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server shutdown error", "error", err)
	}
	stopWorker()
	workers.Wait()
	logger.Info(ctx, "Server stopped")
}
