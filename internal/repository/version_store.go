package repository

import (
	"context"

	"github.com/user/page-inventory/internal/entity"
)

// Facets are the distinct filterable values currently in the inventory.
type Facets struct {
	Brands            []string
	PrimaryCategories []string
	Verticals         []string
}

// URLStatus carries the CRM-relevant state of a stored URL, taken from
// its newest version row; the CRM sync diffs these against the CRM
// export in both directions.
type URLStatus struct {
	URL        string
	PageStatus *string
	StatusCode int
}

// VersionStore is the single write path to the page inventory table.
// All workers persist through it, never via ad hoc SQL, so the per-page
// serialization guarantees of Upsert hold regardless of concurrency.
type VersionStore interface {
	// Upsert applies the versioning policy for snap.PageID inside one
	// transaction: overwrite the pending (catalogued=0) row if one
	// exists, otherwise insert a new version row (preserving catalogued
	// history), otherwise insert the first row for the page.
	Upsert(ctx context.Context, snap *entity.PageSnapshot) error

	// UpsertRecord overwrites a specific known row (e.g. completing a
	// placeholder with crawl results). A missing row degrades to an
	// insert rather than failing.
	UpsertRecord(ctx context.Context, recordID int64, snap *entity.PageSnapshot) error

	// LatestCatalogued returns the newest catalogued version of a page,
	// or ErrNotFound.
	LatestCatalogued(ctx context.Context, pageID string) (*entity.PageVersion, error)

	// LatestByURL returns the newest version row stored under the given
	// URL regardless of catalogued state, or ErrNotFound.
	LatestByURL(ctx context.Context, url string) (*entity.PageVersion, error)

	// Query returns the latest version per page matching the filter,
	// plus the total match count for pagination.
	Query(ctx context.Context, filter entity.PageFilter) ([]*entity.PageVersion, int, error)

	// Facets lists the distinct brands, categories and verticals in the
	// inventory.
	Facets(ctx context.Context) (*Facets, error)

	// UncataloguedURLs returns URLs of rows still awaiting a crawl
	// outcome (status_code = 0). limit <= 0 means no limit.
	UncataloguedURLs(ctx context.Context, limit int) ([]string, error)

	// MarkForRecatalogue clones the latest version of the page stored
	// under url into a fresh uncatalogued row, carrying page identity
	// and CRM fields over. Returns ErrNotFound when the URL is unknown.
	MarkForRecatalogue(ctx context.Context, url string) error

	// URLStatusIndex returns one entry per stored URL, taken from its
	// newest version row, for CRM diffing.
	URLStatusIndex(ctx context.Context) ([]URLStatus, error)

	// UpdatePageStatus sets the CRM page_status across every version of
	// the page stored under url; returns the number of rows touched.
	UpdatePageStatus(ctx context.Context, url, status string) (int64, error)

	// Purge hard-deletes all versions of a page. Admin use only; normal
	// operation never deletes rows.
	Purge(ctx context.Context, pageID string) (int64, error)
}
