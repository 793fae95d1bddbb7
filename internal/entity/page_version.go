package entity

import "time"

// PageVersion mirrors one row of the `page_versions` PostgreSQL table.
// Several rows may share a PageID; each row is one observed snapshot of
// the logical page. At most one row per PageID may have Catalogued == 0.
type PageVersion struct {
	ID               int64
	PageID           string
	URL              string
	CanonicalURL     string
	StatusCode       int // 0 means the row is a placeholder that has not been fetched yet
	PrimaryCategory  *string
	Vertical         *string
	TemplateType     *string
	HasCoupons       bool
	HasPromotions    bool
	BrandList        []string // stored as JSONB, never null
	BrandPositions   *string
	ProductList      []string // stored as JSONB, never null
	ProductPositions *string
	FirstSeen        time.Time
	LastSeen         time.Time
	Catalogued       int

	// CRM-owned columns. The cataloguer treats these as read-only context.
	AirtableID *string
	Channel    *string
	Team       *string
	Brand      *string
	PageStatus *string
}

// CRMLinked reports whether this version carries CRM sync data. When it
// does, primary_category and vertical belong to the CRM and the crawl
// path must not touch them.
func (v *PageVersion) CRMLinked() bool {
	return v.AirtableID != nil && *v.AirtableID != ""
}

// PageSnapshot is the input to VersionStore.Upsert: one freshly observed
// state of a page. Optional pointer fields are written only when set, so
// a crawl-driven caller that leaves PrimaryCategory/Vertical nil cannot
// clobber CRM-owned values.
type PageSnapshot struct {
	PageID           string
	URL              string
	CanonicalURL     string
	StatusCode       int
	PrimaryCategory  *string
	Vertical         *string
	TemplateType     *string
	HasCoupons       bool
	HasPromotions    bool
	BrandList        []string
	BrandPositions   *string
	ProductList      []string
	ProductPositions *string

	// Catalogued overrides the computed flag when non-nil. When nil the
	// store derives it: 1 if StatusCode != 0, else 0.
	Catalogued *int

	// CRM fields, set only by the CRM sync path.
	AirtableID *string
	Channel    *string
	Team       *string
	Brand      *string
	PageStatus *string
}

// PageFilter narrows listing queries and the CSV export.
type PageFilter struct {
	Coupons         *bool
	Promotions      *bool
	Brands          []string
	Products        []string
	PrimaryCategory string
	Vertical        string
	TemplateType    string
	StatusCode      *int
	Search          string
	Limit           int
	Offset          int
	Sort            string // "column:asc|desc", defaults to last_seen:desc
}

// CrawlStatus is the API-facing processing state of a submitted URL.
type CrawlStatus struct {
	URL           string
	CurrentStatus string // "pending", "completed", "not_found"
	LastSeen      *time.Time
}
