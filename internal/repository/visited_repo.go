package repository

import (
	"context"
	"time"
)

// VisitedRepository deduplicates recently catalogued pages so a URL
// submitted twice inside the dedup window is only processed once.
// Keys are page ids, so URL synonyms share one visit mark.
type VisitedRepository interface {
	// MarkVisited records that a page was processed, expiring after the
	// given window.
	MarkVisited(ctx context.Context, pageID string, expiry time.Duration) error
	// IsVisited reports whether the page was processed recently.
	IsVisited(ctx context.Context, pageID string) (bool, error)
	// RemoveVisited clears the mark, used for forced re-catalogues.
	RemoveVisited(ctx context.Context, pageID string) error
}
