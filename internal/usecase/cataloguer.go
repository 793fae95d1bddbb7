package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/canonical"
	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/markup"
	"github.com/user/page-inventory/internal/reconcile"
	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/pkg/metrics"
)

// Outcome classifies one catalogue attempt for accounting and the
// batch driver's failure window.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Bodies below this size from a JS render are usually a bot wall or an
// empty shell; the page is refetched without rendering before giving up.
const minRenderedBody = 1024

// Cataloguer runs the full pipeline for one URL: fetch, extract,
// reconcile, persist.
type Cataloguer interface {
	Catalogue(ctx context.Context, rawURL string) (Outcome, error)
}

type CataloguerOptions struct {
	RenderJS    bool
	Screenshots bool
	DedupWindow time.Duration
}

type cataloguer struct {
	store     repository.VersionStore
	fetcher   repository.Fetcher
	extractor repository.Extractor
	visited   repository.VisitedRepository
	keyer     *canonical.Keyer
	logger    *zap.Logger
	opts      CataloguerOptions
}

func NewCataloguer(
	store repository.VersionStore,
	fetcher repository.Fetcher,
	extractor repository.Extractor,
	visited repository.VisitedRepository,
	logger *zap.Logger,
	opts CataloguerOptions,
) Cataloguer {
	// Batch runs hit the same URLs repeatedly; memoize the keying.
	keyer, _ := canonical.NewKeyer(4096)
	return &cataloguer{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		visited:   visited,
		keyer:     keyer,
		logger:    logger,
		opts:      opts,
	}
}

// Catalogue processes one URL end to end. Dead pages (4xx) are recorded
// as catalogued versions with just the status; transport failures are
// recorded with the synthetic 599 and count as failures; extraction
// errors persist nothing so a bad model response cannot poison history.
func (c *cataloguer) Catalogue(ctx context.Context, rawURL string) (Outcome, error) {
	normalized, pageID := c.keyer.Key(rawURL)

	if c.visited != nil {
		seen, err := c.visited.IsVisited(ctx, pageID)
		if err != nil {
			c.logger.Warn("visited lookup failed, proceeding", zap.String("url", normalized), zap.Error(err))
		} else if seen {
			metrics.CataloguesTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
			return OutcomeSkipped, nil
		}
	}

	start := time.Now()
	res, err := c.fetch(ctx, normalized)
	if err != nil {
		metrics.CataloguesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, fmt.Errorf("fetch %s: %w", normalized, err)
	}
	metrics.CatalogueDuration.WithLabelValues(domainOf(normalized)).Observe(time.Since(start).Seconds())

	snap := &entity.PageSnapshot{
		PageID:       pageID,
		URL:          normalized,
		CanonicalURL: normalized,
		StatusCode:   res.StatusCode,
	}

	switch {
	case res.StatusCode >= 500:
		// Includes the synthetic 599. The version is recorded so the
		// failure is visible, but the attempt counts against the batch.
		if err := c.store.Upsert(ctx, snap); err != nil {
			return OutcomeFailed, err
		}
		metrics.CataloguesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, nil

	case res.StatusCode >= 400:
		// Dead page. Definitive outcome, nothing to extract.
		if err := c.store.Upsert(ctx, snap); err != nil {
			return OutcomeFailed, err
		}
		c.markVisited(ctx, pageID)
		metrics.CataloguesTotal.WithLabelValues(string(OutcomeOK)).Inc()
		return OutcomeOK, nil
	}

	// page_id hashes the stored canonical URL, so aliases declaring the
	// same <link rel="canonical"> collapse onto one page.
	snap.CanonicalURL = markup.ExtractCanonical(res.Body, firstNonEmpty(res.ResolvedURL, normalized))
	snap.PageID = canonical.PageID(snap.CanonicalURL)

	category, template := markup.ExtractPageMeta(res.Body)
	snap.TemplateType = template
	if !c.crmOwnsTaxonomy(ctx, normalized) {
		snap.PrimaryCategory = category
		snap.Vertical = markup.VerticalFor(category)
	}

	hasCoupons, _ := markup.DetectCoupons(res.Body)
	affiliates := markup.ExtractAffiliateListings(res.Body)

	var screenshot []byte
	if c.opts.Screenshots {
		screenshot, _ = c.fetcher.FetchScreenshot(ctx, normalized)
	}

	extraction, err := c.extractor.Extract(ctx, normalized, res.Body, screenshot)
	if err != nil {
		metrics.CataloguesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, fmt.Errorf("extract %s: %w", normalized, err)
	}

	extraction.HasCoupons = extraction.HasCoupons || hasCoupons
	if len(extraction.Listings) == 0 {
		extraction.Listings = affiliates
	}

	merged := reconcile.Merge(*extraction)
	snap.HasCoupons = extraction.HasCoupons
	snap.HasPromotions = merged.HasPromotions
	snap.BrandList = merged.BrandList
	snap.BrandPositions = merged.BrandPositions
	snap.ProductList = merged.ProductList
	snap.ProductPositions = merged.ProductPositions

	if err := c.store.Upsert(ctx, snap); err != nil {
		metrics.CataloguesTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, fmt.Errorf("persist %s: %w", normalized, err)
	}

	c.markVisited(ctx, snap.PageID)
	if snap.PageID != pageID {
		// The alias key enters the dedup set too so resubmitting the
		// request URL inside the window still short-circuits.
		c.markVisited(ctx, pageID)
	}
	metrics.CataloguesTotal.WithLabelValues(string(OutcomeOK)).Inc()
	c.logger.Info("page catalogued",
		zap.String("url", normalized),
		zap.Int("status", res.StatusCode),
		zap.Int("brands", len(snap.BrandList)),
		zap.Bool("coupons", snap.HasCoupons))
	return OutcomeOK, nil
}

// fetch runs the rendered fetch, degrading to a plain fetch when the
// rendered body looks like a shell or the render pipeline errored.
func (c *cataloguer) fetch(ctx context.Context, pageURL string) (*repository.FetchResult, error) {
	res, err := c.fetcher.FetchHTML(ctx, pageURL, c.opts.RenderJS)
	if err != nil {
		return nil, err
	}
	if !c.opts.RenderJS {
		return res, nil
	}
	if res.StatusCode >= 400 && res.StatusCode < 500 {
		// Definitive dead page; a plain refetch would not change it.
		return res, nil
	}
	if res.StatusCode < 400 && len(strings.TrimSpace(res.Body)) >= minRenderedBody {
		return res, nil
	}

	c.logger.Debug("rendered fetch unusable, retrying without js",
		zap.String("url", pageURL),
		zap.Int("status", res.StatusCode),
		zap.Int("body_bytes", len(res.Body)))

	plain, err := c.fetcher.FetchHTML(ctx, pageURL, false)
	if err != nil || plain.StatusCode >= 400 {
		// Keep the original outcome; the retry was opportunistic.
		return res, nil
	}
	return plain, nil
}

// crmOwnsTaxonomy reports whether the page's latest version is linked
// to a CRM record. Linked pages get category/vertical from the CRM
// sync, never from the crawl.
func (c *cataloguer) crmOwnsTaxonomy(ctx context.Context, pageURL string) bool {
	latest, err := c.store.LatestByURL(ctx, pageURL)
	return err == nil && latest.CRMLinked()
}

func (c *cataloguer) markVisited(ctx context.Context, pageID string) {
	if c.visited == nil || c.opts.DedupWindow <= 0 {
		return
	}
	if err := c.visited.MarkVisited(ctx, pageID, c.opts.DedupWindow); err != nil {
		c.logger.Warn("failed to mark page visited", zap.String("page_id", pageID), zap.Error(err))
	}
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
