package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/repository"
)

// latestPerPageSQL is the explicit versioning index: the newest
// catalogued row per page_id, used by every listing query instead of
// per-call-site MAX(last_seen) joins.
const latestPerPageSQL = `SELECT DISTINCT ON (page_id) ` + versionColumns + `
	FROM page_versions
	WHERE catalogued = 1
	ORDER BY page_id, last_seen DESC, id DESC`

var sortColumns = map[string]struct{}{
	"page_id":          {},
	"url":              {},
	"status_code":      {},
	"primary_category": {},
	"vertical":         {},
	"template_type":    {},
	"first_seen":       {},
	"last_seen":        {},
}

// LatestCatalogued returns the newest catalogued version of a page.
func (s *VersionStoreImpl) LatestCatalogued(ctx context.Context, pageID string) (*entity.PageVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM page_versions
		WHERE page_id = $1 AND catalogued = 1
		ORDER BY last_seen DESC, id DESC
		LIMIT 1;`
	v, err := scanVersion(s.db.QueryRow(ctx, query, pageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return v, err
}

// LatestByURL returns the newest version row stored under a URL,
// regardless of catalogued state.
func (s *VersionStoreImpl) LatestByURL(ctx context.Context, url string) (*entity.PageVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM page_versions
		WHERE url = $1
		ORDER BY last_seen DESC, id DESC
		LIMIT 1;`
	v, err := scanVersion(s.db.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return v, err
}

// Query lists the latest catalogued version per page matching the
// filter, plus the total match count for pagination.
func (s *VersionStoreImpl) Query(ctx context.Context, filter entity.PageFilter) ([]*entity.PageVersion, int, error) {
	where, args := buildFilter(filter)

	var total int
	countSQL := `SELECT COUNT(*) FROM (` + latestPerPageSQL + `) p` + where + `;`
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}

	listSQL := `SELECT ` + versionColumns + ` FROM (` + latestPerPageSQL + `) p` + where +
		` ORDER BY ` + sortClause(filter.Sort)
	// Limit <= 0 means the full match set; CSV exports depend on it.
	if filter.Limit > 0 {
		listSQL += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, filter.Limit)
	}
	listSQL += fmt.Sprintf(` OFFSET $%d;`, len(args)+1)
	args = append(args, filter.Offset)

	rows, err := s.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var versions []*entity.PageVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, err
		}
		versions = append(versions, v)
	}
	return versions, total, rows.Err()
}

// Facets lists distinct brands, categories and verticals held in the
// inventory, for the API's filter dropdowns.
func (s *VersionStoreImpl) Facets(ctx context.Context) (*repository.Facets, error) {
	facets := &repository.Facets{}

	collect := func(query string, dst *[]string) error {
		rows, err := s.db.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return err
			}
			*dst = append(*dst, v)
		}
		return rows.Err()
	}

	if err := collect(
		`SELECT DISTINCT jsonb_array_elements_text(brand_list) AS b FROM page_versions ORDER BY b;`,
		&facets.Brands,
	); err != nil {
		return nil, fmt.Errorf("brand facets: %w", err)
	}
	if err := collect(
		`SELECT DISTINCT primary_category FROM page_versions WHERE primary_category IS NOT NULL ORDER BY primary_category;`,
		&facets.PrimaryCategories,
	); err != nil {
		return nil, fmt.Errorf("category facets: %w", err)
	}
	if err := collect(
		`SELECT DISTINCT vertical FROM page_versions WHERE vertical IS NOT NULL ORDER BY vertical;`,
		&facets.Verticals,
	); err != nil {
		return nil, fmt.Errorf("vertical facets: %w", err)
	}
	return facets, nil
}

// UncataloguedURLs returns URLs of rows still awaiting a crawl outcome.
func (s *VersionStoreImpl) UncataloguedURLs(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT DISTINCT url FROM page_versions WHERE status_code = 0`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query+`;`, args...)
	if err != nil {
		return nil, fmt.Errorf("list uncatalogued urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// MarkForRecatalogue clones the latest version of the page stored under
// url into a fresh uncatalogued row so the next cataloguer pass picks it
// up. Page identity and CRM fields carry over; signal fields reset. A
// page that already has a pending row is left alone.
func (s *VersionStoreImpl) MarkForRecatalogue(ctx context.Context, url string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin recatalogue for %s: %w", url, err)
	}
	defer tx.Rollback(ctx)

	var v struct {
		pageID       string
		canonicalURL string
		category     *string
		vertical     *string
		airtableID   *string
		channel      *string
		team         *string
		brand        *string
		pageStatus   *string
	}
	err = tx.QueryRow(ctx, `
		SELECT page_id, canonical_url, primary_category, vertical,
		       airtable_id, channel, team, brand, page_status
		FROM page_versions
		WHERE url = $1
		ORDER BY last_seen DESC, id DESC
		LIMIT 1
		FOR UPDATE;`, url,
	).Scan(&v.pageID, &v.canonicalURL, &v.category, &v.vertical,
		&v.airtableID, &v.channel, &v.team, &v.brand, &v.pageStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load latest version for %s: %w", url, err)
	}

	var pending bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM page_versions WHERE page_id = $1 AND catalogued = 0);`,
		v.pageID,
	).Scan(&pending)
	if err != nil {
		return fmt.Errorf("check pending version for %s: %w", url, err)
	}
	if !pending {
		today := s.today()
		_, err = tx.Exec(ctx, `
			INSERT INTO page_versions (
				page_id, url, canonical_url, status_code, catalogued,
				primary_category, vertical, airtable_id, channel, team, brand,
				page_status, first_seen, last_seen
			) VALUES ($1, $2, $3, 0, 0, $4, $5, $6, $7, $8, $9, $10, $11, $11);`,
			v.pageID, url, v.canonicalURL, v.category, v.vertical,
			v.airtableID, v.channel, v.team, v.brand, v.pageStatus, today,
		)
		if err != nil {
			return fmt.Errorf("insert recatalogue row for %s: %w", url, err)
		}
	}

	return tx.Commit(ctx)
}

// URLStatusIndex returns one entry per stored URL, taken from its
// newest version row.
func (s *VersionStoreImpl) URLStatusIndex(ctx context.Context) ([]repository.URLStatus, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (url) url, page_status, status_code
		FROM page_versions
		ORDER BY url, last_seen DESC, id DESC;`)
	if err != nil {
		return nil, fmt.Errorf("url status index: %w", err)
	}
	defer rows.Close()

	var index []repository.URLStatus
	for rows.Next() {
		var e repository.URLStatus
		if err := rows.Scan(&e.URL, &e.PageStatus, &e.StatusCode); err != nil {
			return nil, err
		}
		index = append(index, e)
	}
	return index, rows.Err()
}

// UpdatePageStatus sets page_status across every version of a URL.
func (s *VersionStoreImpl) UpdatePageStatus(ctx context.Context, url, status string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE page_versions SET page_status = $2 WHERE url = $1;`, url, status)
	if err != nil {
		return 0, fmt.Errorf("update page_status for %s: %w", url, err)
	}
	return tag.RowsAffected(), nil
}

// Purge hard-deletes every version of a page. Admin path only.
func (s *VersionStoreImpl) Purge(ctx context.Context, pageID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM page_versions WHERE page_id = $1;`, pageID)
	if err != nil {
		return 0, fmt.Errorf("purge page %s: %w", pageID, err)
	}
	return tag.RowsAffected(), nil
}

func buildFilter(filter entity.PageFilter) (string, []any) {
	var conds []string
	var args []any
	next := func() int { return len(args) + 1 }

	if filter.Coupons != nil {
		conds = append(conds, fmt.Sprintf("has_coupons = $%d", next()))
		args = append(args, *filter.Coupons)
	}
	if filter.Promotions != nil {
		conds = append(conds, fmt.Sprintf("has_promotions = $%d", next()))
		args = append(args, *filter.Promotions)
	}
	for _, b := range filter.Brands {
		conds = append(conds, fmt.Sprintf("brand_list ? $%d", next()))
		args = append(args, b)
	}
	for _, p := range filter.Products {
		conds = append(conds, fmt.Sprintf("product_list ? $%d", next()))
		args = append(args, p)
	}
	if filter.PrimaryCategory != "" {
		conds = append(conds, fmt.Sprintf("primary_category = $%d", next()))
		args = append(args, filter.PrimaryCategory)
	}
	if filter.Vertical != "" {
		conds = append(conds, fmt.Sprintf("vertical = $%d", next()))
		args = append(args, filter.Vertical)
	}
	if filter.TemplateType != "" {
		conds = append(conds, fmt.Sprintf("template_type = $%d", next()))
		args = append(args, filter.TemplateType)
	}
	if filter.StatusCode != nil {
		conds = append(conds, fmt.Sprintf("status_code = $%d", next()))
		args = append(args, *filter.StatusCode)
	}
	if filter.Search != "" {
		conds = append(conds, fmt.Sprintf("(url ILIKE $%d OR canonical_url ILIKE $%d)", next(), next()+1))
		like := "%" + filter.Search + "%"
		args = append(args, like, like)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// sortClause validates a "column:direction" sort against the column
// whitelist, defaulting to last_seen descending.
func sortClause(sort string) string {
	col, dir, _ := strings.Cut(sort, ":")
	if _, ok := sortColumns[col]; !ok {
		col = "last_seen"
		dir = "desc"
	}
	if strings.EqualFold(dir, "asc") {
		return col + " ASC"
	}
	return col + " DESC"
}

func scanVersion(row pgx.Row) (*entity.PageVersion, error) {
	var v entity.PageVersion
	var brandJSON, productJSON []byte
	err := row.Scan(
		&v.ID,
		&v.PageID,
		&v.URL,
		&v.CanonicalURL,
		&v.StatusCode,
		&v.PrimaryCategory,
		&v.Vertical,
		&v.TemplateType,
		&v.HasCoupons,
		&v.HasPromotions,
		&brandJSON,
		&v.BrandPositions,
		&productJSON,
		&v.ProductPositions,
		&v.FirstSeen,
		&v.LastSeen,
		&v.Catalogued,
		&v.AirtableID,
		&v.Channel,
		&v.Team,
		&v.Brand,
		&v.PageStatus,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(brandJSON, &v.BrandList); err != nil {
		return nil, fmt.Errorf("decode brand_list: %w", err)
	}
	if err := json.Unmarshal(productJSON, &v.ProductList); err != nil {
		return nil, fmt.Errorf("decode product_list: %w", err)
	}
	if v.BrandList == nil {
		v.BrandList = []string{}
	}
	if v.ProductList == nil {
		v.ProductList = []string{}
	}
	return &v, nil
}
