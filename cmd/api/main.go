package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/adapter/postgres"
	redisadapter "github.com/user/page-inventory/internal/adapter/redis"
	"github.com/user/page-inventory/internal/delivery/http/handler"
	"github.com/user/page-inventory/internal/delivery/http/router"
	"github.com/user/page-inventory/internal/usecase"
	"github.com/user/page-inventory/pkg/config"
	"github.com/user/page-inventory/pkg/logger"
	"github.com/user/page-inventory/pkg/metrics"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	metrics.Init()

	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		log.Fatal("unable to connect to postgres", zap.Error(err))
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("unable to connect to redis", zap.Error(err))
	}

	store := postgres.NewVersionStore(dbpool, log)
	visitedRepo := redisadapter.NewVisitedRepo(rdb)
	queueRepo := redisadapter.NewQueueRepo(rdb)

	urlManager := usecase.NewURLManager(visitedRepo, queueRepo, store, log, cfg.Crawler.DedupWindow)

	apiHandler := handler.NewHandler(urlManager, store, log)
	httpRouter := router.New(apiHandler, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting api server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
