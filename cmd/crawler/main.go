package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/page-inventory/internal/adapter/chromedp"
	"github.com/user/page-inventory/internal/adapter/openai"
	"github.com/user/page-inventory/internal/adapter/postgres"
	redisadapter "github.com/user/page-inventory/internal/adapter/redis"
	"github.com/user/page-inventory/internal/adapter/scrapeproxy"
	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/internal/usecase"
	"github.com/user/page-inventory/pkg/config"
	"github.com/user/page-inventory/pkg/logger"
	"github.com/user/page-inventory/pkg/metrics"
)

const idleWait = 2 * time.Second

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	var fetcher repository.Fetcher
	if cfg.Proxy.APIKey != "" {
		opts := []scrapeproxy.Option{scrapeproxy.WithRateLimit(cfg.Proxy.RatePerSecond)}
		if cfg.Proxy.Endpoint != "" {
			opts = append(opts, scrapeproxy.WithEndpoint(cfg.Proxy.Endpoint))
		}
		if cfg.Proxy.PremiumProxy {
			opts = append(opts, scrapeproxy.WithPremiumProxy(true))
		}
		fetcher = scrapeproxy.NewClient(cfg.Proxy.APIKey, log, opts...)
		log.Info("using rendering proxy fetcher")
	} else {
		fetcher = chromedp.NewFetcher(cfg.Crawler.Workers, cfg.Crawler.PageLoadTimeout, log)
		log.Info("using local headless chrome fetcher")
	}

	extractor := openai.NewExtractor(cfg.OpenAI.APIKey, log, openai.WithModel(cfg.OpenAI.Model))

	cataloguer := usecase.NewCataloguer(store, fetcher, extractor, visitedRepo, log, usecase.CataloguerOptions{
		RenderJS:    cfg.Crawler.RenderJS,
		Screenshots: cfg.Crawler.Screenshots,
		DedupWindow: cfg.Crawler.DedupWindow,
	})
	worker := usecase.NewQueueWorker(queueRepo, cataloguer, log)

	log.Info("starting queue workers", zap.Int("workers", cfg.Crawler.Workers))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Crawler.Workers; i++ {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				err := worker.ProcessNext(ctx)
				if errors.Is(err, repository.ErrQueueEmpty) {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(idleWait):
					}
					continue
				}
				if err != nil {
					log.Error("worker iteration failed", zap.Error(err))
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("workers exited", zap.Error(err))
		os.Exit(1)
	}
	log.Info("workers stopped")
}
