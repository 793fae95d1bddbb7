package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/page-inventory/pkg/metrics"
)

// BatchSummary is the accounting for one batch run.
type BatchSummary struct {
	Total     int
	OK        int
	Skipped   int
	Failed    int
	Cooldowns int
	Elapsed   time.Duration
}

type BatchOptions struct {
	Workers int

	// Cooldown trips when the last CooldownWindow outcomes contain at
	// least CooldownMinFailures failures and failures are at least half
	// the window. All workers then pause for CooldownPause.
	CooldownWindow      int
	CooldownMinFailures int
	CooldownPause       time.Duration
}

// BatchDriver fans a URL list out over catalogue workers. A burst of
// failures usually means the proxy or the target site is throttling, so
// the driver pauses the whole batch rather than burning the list.
type BatchDriver struct {
	cataloguer Cataloguer
	logger     *zap.Logger
	opts       BatchOptions

	mu        sync.Mutex
	window    []bool // true = failure, newest last
	paused    bool
	cooldowns int
}

func NewBatchDriver(cataloguer Cataloguer, logger *zap.Logger, opts BatchOptions) *BatchDriver {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CooldownWindow <= 0 {
		opts.CooldownWindow = 20
	}
	if opts.CooldownMinFailures <= 0 {
		opts.CooldownMinFailures = 5
	}
	return &BatchDriver{
		cataloguer: cataloguer,
		logger:     logger,
		opts:       opts,
	}
}

// Run processes urls with the configured worker count and returns the
// batch accounting. Individual failures never abort the batch; only
// context cancellation does.
func (d *BatchDriver) Run(ctx context.Context, urls []string) (*BatchSummary, error) {
	start := time.Now()
	summary := &BatchSummary{Total: len(urls)}

	var mu sync.Mutex
	jobs := make(chan string)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			for u := range jobs {
				if err := d.waitForCooldown(ctx); err != nil {
					return err
				}

				outcome, err := d.cataloguer.Catalogue(ctx, u)
				if err != nil {
					d.logger.Warn("catalogue failed", zap.String("url", u), zap.Error(err))
				}

				mu.Lock()
				switch outcome {
				case OutcomeOK:
					summary.OK++
				case OutcomeSkipped:
					summary.Skipped++
				default:
					summary.Failed++
				}
				mu.Unlock()

				if outcome != OutcomeSkipped {
					d.record(ctx, outcome == OutcomeFailed)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()

	d.mu.Lock()
	summary.Cooldowns = d.cooldowns
	d.mu.Unlock()
	summary.Elapsed = time.Since(start)

	d.logger.Info("batch complete",
		zap.Int("total", summary.Total),
		zap.Int("ok", summary.OK),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("cooldowns", summary.Cooldowns),
		zap.Duration("elapsed", summary.Elapsed))

	return summary, err
}

// record pushes one outcome into the sliding window and trips the
// cooldown when the failure share crosses the threshold. Skipped pages
// do not enter the window.
func (d *BatchDriver) record(ctx context.Context, failed bool) {
	d.mu.Lock()

	d.window = append(d.window, failed)
	if len(d.window) > d.opts.CooldownWindow {
		d.window = d.window[1:]
	}

	failures := 0
	for _, f := range d.window {
		if f {
			failures++
		}
	}

	trip := !d.paused &&
		failures >= d.opts.CooldownMinFailures &&
		failures*2 >= len(d.window)

	if trip {
		d.paused = true
		d.cooldowns++
		d.window = d.window[:0]
	}
	d.mu.Unlock()

	if !trip {
		return
	}

	metrics.CooldownsTotal.Inc()
	d.logger.Warn("failure burst detected, pausing batch",
		zap.Int("recent_failures", failures),
		zap.Duration("pause", d.opts.CooldownPause))

	go func() {
		select {
		case <-time.After(d.opts.CooldownPause):
		case <-ctx.Done():
		}
		d.mu.Lock()
		d.paused = false
		d.mu.Unlock()
	}()
}

// waitForCooldown blocks while a cooldown pause is active.
func (d *BatchDriver) waitForCooldown(ctx context.Context) error {
	for {
		d.mu.Lock()
		paused := d.paused
		d.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
