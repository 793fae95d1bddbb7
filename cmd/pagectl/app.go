package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/adapter/airtable"
	"github.com/user/page-inventory/internal/adapter/chromedp"
	"github.com/user/page-inventory/internal/adapter/openai"
	"github.com/user/page-inventory/internal/adapter/postgres"
	redisadapter "github.com/user/page-inventory/internal/adapter/redis"
	"github.com/user/page-inventory/internal/adapter/scrapeproxy"
	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/internal/usecase"
	"github.com/user/page-inventory/pkg/config"
)

// app wires the shared dependencies lazily; each command builds only
// what it needs.
type app struct {
	cfg *config.Config
	log *zap.Logger

	pool *pgxpool.Pool
}

func (a *app) store(ctx context.Context) (repository.VersionStore, error) {
	if a.pool == nil {
		pool, err := pgxpool.New(ctx, a.cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
	}
	return postgres.NewVersionStore(a.pool, a.log), nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.log.Sync()
}

func (a *app) visited(ctx context.Context) (repository.VisitedRepository, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return redisadapter.NewVisitedRepo(rdb), nil
}

func (a *app) fetcher() repository.Fetcher {
	if a.cfg.Proxy.APIKey != "" {
		opts := []scrapeproxy.Option{scrapeproxy.WithRateLimit(a.cfg.Proxy.RatePerSecond)}
		if a.cfg.Proxy.Endpoint != "" {
			opts = append(opts, scrapeproxy.WithEndpoint(a.cfg.Proxy.Endpoint))
		}
		if a.cfg.Proxy.PremiumProxy {
			opts = append(opts, scrapeproxy.WithPremiumProxy(true))
		}
		return scrapeproxy.NewClient(a.cfg.Proxy.APIKey, a.log, opts...)
	}
	return chromedp.NewFetcher(a.cfg.Crawler.Workers, a.cfg.Crawler.PageLoadTimeout, a.log)
}

func (a *app) batchDriver(ctx context.Context) (*usecase.BatchDriver, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	visited, err := a.visited(ctx)
	if err != nil {
		return nil, err
	}
	extractor := openai.NewExtractor(a.cfg.OpenAI.APIKey, a.log, openai.WithModel(a.cfg.OpenAI.Model))

	cataloguer := usecase.NewCataloguer(store, a.fetcher(), extractor, visited, a.log, usecase.CataloguerOptions{
		RenderJS:    a.cfg.Crawler.RenderJS,
		Screenshots: a.cfg.Crawler.Screenshots,
		DedupWindow: a.cfg.Crawler.DedupWindow,
	})
	return usecase.NewBatchDriver(cataloguer, a.log, usecase.BatchOptions{
		Workers:             a.cfg.Crawler.Workers,
		CooldownWindow:      a.cfg.Crawler.CooldownWindow,
		CooldownMinFailures: a.cfg.Crawler.CooldownMinFailures,
		CooldownPause:       a.cfg.Crawler.CooldownPause,
	}), nil
}

func (a *app) crmSyncer(ctx context.Context) (usecase.CRMSyncer, error) {
	if a.cfg.Airtable.APIKey == "" || a.cfg.Airtable.BaseID == "" {
		return nil, fmt.Errorf("airtable api_key and base_id must be configured")
	}
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	opts := []airtable.Option{airtable.WithExcludedHosts(a.cfg.Airtable.ExcludedHosts)}
	if a.cfg.Airtable.View != "" {
		opts = append(opts, airtable.WithView(a.cfg.Airtable.View))
	}
	crm := airtable.NewClient(a.cfg.Airtable.APIKey, a.cfg.Airtable.BaseID, a.cfg.Airtable.Table, a.log, opts...)
	return usecase.NewCRMSyncer(store, crm, a.log), nil
}
