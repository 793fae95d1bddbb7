package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/canonical"
	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/repository"
)

// ErrRecentlyCatalogued is returned by Submit when the page was already
// processed inside the dedup window and force is false.
var ErrRecentlyCatalogued = errors.New("page catalogued recently")

// URLManager accepts URL submissions and reports their processing state.
type URLManager interface {
	// Submit queues a URL for cataloguing and returns its page id.
	Submit(ctx context.Context, url string, force bool) (string, error)
	// Status reports where a previously submitted URL stands.
	Status(ctx context.Context, url string) (*entity.CrawlStatus, error)
	// Recatalogue clones the page's latest version into a fresh
	// uncatalogued row and clears the dedup mark so the next batch
	// refreshes it.
	Recatalogue(ctx context.Context, url string) error
}

type urlManager struct {
	visited repository.VisitedRepository
	queue   repository.QueueRepository
	store   repository.VersionStore
	logger  *zap.Logger
	dedup   time.Duration
}

func NewURLManager(
	visited repository.VisitedRepository,
	queue repository.QueueRepository,
	store repository.VersionStore,
	logger *zap.Logger,
	dedupWindow time.Duration,
) URLManager {
	return &urlManager{
		visited: visited,
		queue:   queue,
		store:   store,
		logger:  logger,
		dedup:   dedupWindow,
	}
}

func (m *urlManager) Submit(ctx context.Context, rawURL string, force bool) (string, error) {
	normalized := canonical.Normalize(rawURL)
	pageID := canonical.PageID(normalized)

	if force {
		if err := m.visited.RemoveVisited(ctx, pageID); err != nil {
			m.logger.Warn("failed to clear dedup mark for forced submit",
				zap.String("url", normalized), zap.Error(err))
		}
	} else {
		seen, err := m.visited.IsVisited(ctx, pageID)
		if err != nil {
			return "", err
		}
		if seen {
			return pageID, ErrRecentlyCatalogued
		}
	}

	if err := m.queue.Push(ctx, normalized); err != nil {
		return "", err
	}

	// The queue mark is provisional; a worker re-marks it on
	// completion. Losing this write only risks a duplicate enqueue.
	if err := m.visited.MarkVisited(ctx, pageID, m.dedup); err != nil {
		m.logger.Warn("failed to mark page visited after enqueue",
			zap.String("url", normalized), zap.Error(err))
	}

	return pageID, nil
}

func (m *urlManager) Status(ctx context.Context, rawURL string) (*entity.CrawlStatus, error) {
	normalized := canonical.Normalize(rawURL)
	pageID := canonical.PageID(normalized)

	latest, err := m.store.LatestCatalogued(ctx, pageID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if latest != nil {
		return &entity.CrawlStatus{
			URL:           normalized,
			CurrentStatus: "completed",
			LastSeen:      &latest.LastSeen,
		}, nil
	}

	seen, err := m.visited.IsVisited(ctx, pageID)
	if err != nil {
		return nil, err
	}
	status := "not_found"
	if seen {
		status = "pending"
	}
	return &entity.CrawlStatus{URL: normalized, CurrentStatus: status}, nil
}

func (m *urlManager) Recatalogue(ctx context.Context, rawURL string) error {
	normalized := canonical.Normalize(rawURL)

	if err := m.store.MarkForRecatalogue(ctx, normalized); err != nil {
		return err
	}
	if err := m.visited.RemoveVisited(ctx, canonical.PageID(normalized)); err != nil {
		m.logger.Warn("failed to clear dedup mark after recatalogue request",
			zap.String("url", normalized), zap.Error(err))
	}
	return nil
}
