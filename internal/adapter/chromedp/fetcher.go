// Package chromedp implements the Fetcher port against a local
// headless Chrome, for running without a rendering proxy.
package chromedp

import (
	"context"
	"sync"
	"time"

	cdp "github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/repository"
)

type Fetcher struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
	logger        *zap.Logger
}

// NewFetcher builds a headless-Chrome fetcher. Allocator contexts are
// pooled so concurrent fetches reuse browser processes instead of
// spawning one per page.
func NewFetcher(maxConcurrency int, pageLoadTimeout time.Duration, logger *zap.Logger) *Fetcher {
	pool := &sync.Pool{
		New: func() interface{} {
			opts := append(cdp.DefaultExecAllocatorOptions[:],
				cdp.Flag("headless", true),
				cdp.Flag("disable-gpu", true),
				cdp.Flag("no-sandbox", true),
				cdp.Flag("disable-dev-shm-usage", true),
				cdp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
			)
			allocCtx, _ := cdp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}
	for i := 0; i < maxConcurrency; i++ {
		pool.Put(pool.Get())
	}
	return &Fetcher{
		allocatorPool: pool,
		timeout:       pageLoadTimeout,
		logger:        logger,
	}
}

// FetchHTML renders the page and returns its outer HTML. renderJS is
// accepted for interface parity; a local browser always executes
// scripts.
func (f *Fetcher) FetchHTML(ctx context.Context, url string, _ bool) (*repository.FetchResult, error) {
	allocCtx := f.allocatorPool.Get().(context.Context)
	defer f.allocatorPool.Put(allocCtx)

	taskCtx, cancel := cdp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, f.timeout)
	defer cancel()

	start := time.Now()

	var (
		html     string
		location string
	)
	resp, err := cdp.RunResponse(taskCtx,
		cdp.Navigate(url),
		cdp.OuterHTML("html", &html),
		cdp.Location(&location),
	)
	if err != nil {
		f.logger.Warn("headless fetch failed",
			zap.String("url", url),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	status := 200
	if resp != nil {
		status = int(resp.Status)
	}

	f.logger.Debug("headless fetch complete",
		zap.String("url", url),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)))

	return &repository.FetchResult{
		StatusCode:  status,
		Body:        html,
		ResolvedURL: location,
	}, nil
}

// FetchScreenshot captures a full-page screenshot at 90% quality.
func (f *Fetcher) FetchScreenshot(ctx context.Context, url string) ([]byte, error) {
	allocCtx := f.allocatorPool.Get().(context.Context)
	defer f.allocatorPool.Put(allocCtx)

	taskCtx, cancel := cdp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, f.timeout)
	defer cancel()

	var shot []byte
	err := cdp.Run(taskCtx,
		cdp.Navigate(url),
		cdp.FullScreenshot(&shot, 90),
	)
	if err != nil {
		f.logger.Warn("screenshot failed", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	return shot, nil
}
