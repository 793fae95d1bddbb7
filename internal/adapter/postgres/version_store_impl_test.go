package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/repository"
)

var (
	testDay  = time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)
	nilStr   *string
	emptyArr = []byte(`[]`)
)

func newTestStore(t *testing.T) (*VersionStoreImpl, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := NewVersionStore(mock, zap.NewNop())
	store.now = func() time.Time { return testDay.Add(9 * time.Hour) }
	return store, mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	assert.NoError(t, mock.ExpectationsWereMet())
}

// anyArgs returns n AnyArg matchers; pgxmock v4 requires the argument
// count to match even when the values are irrelevant to the test.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func crawlSnapshot(pageID string) *entity.PageSnapshot {
	return &entity.PageSnapshot{
		PageID:       pageID,
		URL:          "https://example.com/deals",
		CanonicalURL: "https://example.com/deals",
		StatusCode:   200,
		HasCoupons:   true,
		BrandList:    []string{"Acme"},
	}
}

func TestUpsert_NewPage(t *testing.T) {
	store, mock := newTestStore(t)
	snap := crawlSnapshot("page-1")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO page_versions").
		WithArgs(
			"page-1",
			"https://example.com/deals",
			"https://example.com/deals",
			200,
			nilStr, nilStr, nilStr, // category, vertical, template untouched
			true, false,
			[]byte(`["Acme"]`), nilStr, emptyArr, nilStr,
			testDay, testDay, // first_seen == last_seen == today
			1, // catalogued derived from status_code != 0
			nilStr, nilStr, nilStr, nilStr, nilStr,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), snap))
	expectationsMet(t, mock)
}

func TestUpsert_PendingRowUpdatedInPlace(t *testing.T) {
	store, mock := newTestStore(t)
	snap := crawlSnapshot("page-1")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("UPDATE page_versions").
		WithArgs(
			int64(7),
			"https://example.com/deals",
			"https://example.com/deals",
			200,
			nilStr, nilStr, nilStr,
			true, false,
			[]byte(`["Acme"]`), nilStr, emptyArr, nilStr,
			testDay, // last_seen advanced; first_seen not in the statement
			1,
			nilStr, nilStr, nilStr, nilStr, nilStr,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), snap))
	expectationsMet(t, mock)
}

func TestUpsert_NewVersionWhenNoPendingRow(t *testing.T) {
	// A page whose only rows are catalogued gets a fresh version row;
	// history is never mutated.
	store, mock := newTestStore(t)
	snap := crawlSnapshot("page-2")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-2").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO page_versions").
		WithArgs(anyArgs(21)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), snap))
	expectationsMet(t, mock)
}

func TestUpsert_PlaceholderStaysUncatalogued(t *testing.T) {
	store, mock := newTestStore(t)
	snap := &entity.PageSnapshot{
		PageID:       "page-3",
		URL:          "https://example.com/new",
		CanonicalURL: "https://example.com/new",
		StatusCode:   0, // not fetched yet
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-3").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO page_versions").
		WithArgs(
			"page-3",
			"https://example.com/new",
			"https://example.com/new",
			0,
			nilStr, nilStr, nilStr,
			false, false,
			emptyArr, nilStr, emptyArr, nilStr,
			testDay, testDay,
			0, // catalogued derived: status_code == 0
			nilStr, nilStr, nilStr, nilStr, nilStr,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), snap))
	expectationsMet(t, mock)
}

func TestUpsertRecord_MissingRowDegradesToInsert(t *testing.T) {
	store, mock := newTestStore(t)
	snap := crawlSnapshot("page-4")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE page_versions").
		WithArgs(anyArgs(20)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO page_versions").
		WithArgs(anyArgs(21)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertRecord(context.Background(), 42, snap))
	expectationsMet(t, mock)
}

func TestUpsertRecord_UpdatesTargetedRow(t *testing.T) {
	store, mock := newTestStore(t)
	snap := crawlSnapshot("page-4")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE page_versions").
		WithArgs(anyArgs(20)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertRecord(context.Background(), 42, snap))
	expectationsMet(t, mock)
}

func TestUpsert_InsertRaceRetriesAsUpdate(t *testing.T) {
	// Two concurrent first upserts both miss the pending lookup; the
	// loser's insert hits the partial unique index and retries into the
	// winner's pending row.
	store, mock := newTestStore(t)
	snap := crawlSnapshot("page-6")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-6").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO page_versions").
		WithArgs(anyArgs(21)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_page_versions_pending"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-6").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("UPDATE page_versions").
		WithArgs(anyArgs(20)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), snap))
	expectationsMet(t, mock)
}

func TestUpsert_CrawlPathNeverSuppliesCategory(t *testing.T) {
	// The crawl path leaves category/vertical nil; the statement's
	// COALESCE keeps CRM-owned values in place. The CRM sync path is
	// the only caller that populates these pointers.
	store, mock := newTestStore(t)

	category := "Insurance"
	vertical := "Finance"
	crmSnap := crawlSnapshot("page-5")
	crmSnap.PrimaryCategory = &category
	crmSnap.Vertical = &vertical

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM page_versions").
		WithArgs("page-5").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec("UPDATE page_versions").
		WithArgs(
			int64(9),
			"https://example.com/deals",
			"https://example.com/deals",
			200,
			&category, &vertical, nilStr,
			true, false,
			[]byte(`["Acme"]`), nilStr, emptyArr, nilStr,
			testDay,
			1,
			nilStr, nilStr, nilStr, nilStr, nilStr,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), crmSnap))
	expectationsMet(t, mock)
}

func TestLatestCatalogued_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.LatestCatalogued(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	expectationsMet(t, mock)
}

var queryCols = []string{
	"id", "page_id", "url", "canonical_url", "status_code",
	"primary_category", "vertical", "template_type", "has_coupons",
	"has_promotions", "brand_list", "brand_positions", "product_list",
	"product_positions", "first_seen", "last_seen", "catalogued",
	"airtable_id", "channel", "team", "brand", "page_status",
}

func queryRow(id int64, pageID string, positions *string) []any {
	return []any{
		id, pageID, "https://example.com/deals",
		"https://example.com/deals", 200,
		nilStr, nilStr, nilStr, true, true,
		[]byte(`["Acme"]`), positions, []byte(`[]`), nilStr,
		testDay, testDay, 1,
		nilStr, nilStr, nilStr, nilStr, nilStr,
	}
}

func TestQuery_ScansVersions(t *testing.T) {
	store, mock := newTestStore(t)

	positions := "Acme:P1"
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM \\(SELECT DISTINCT ON").
		WithArgs(true, 50, 0).
		WillReturnRows(pgxmock.NewRows(queryCols).AddRow(queryRow(1, "page-1", &positions)...))

	coupons := true
	versions, total, err := store.Query(context.Background(), entity.PageFilter{Coupons: &coupons, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, versions, 1)
	assert.Equal(t, "page-1", versions[0].PageID)
	assert.Equal(t, []string{"Acme"}, versions[0].BrandList)
	assert.Empty(t, versions[0].ProductList)
	require.NotNil(t, versions[0].BrandPositions)
	assert.Equal(t, "Acme:P1", *versions[0].BrandPositions)
	expectationsMet(t, mock)
}

func TestQuery_NoLimitReturnsFullSet(t *testing.T) {
	// Limit <= 0 must not fall back to a page size: exports pass 0 and
	// expect every matching row.
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("FROM \\(SELECT DISTINCT ON").
		WithArgs(0). // offset only, no LIMIT argument
		WillReturnRows(pgxmock.NewRows(queryCols).
			AddRow(queryRow(1, "page-1", nilStr)...).
			AddRow(queryRow(2, "page-2", nilStr)...))

	versions, total, err := store.Query(context.Background(), entity.PageFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, versions, 2)
	expectationsMet(t, mock)
}

func TestURLStatusIndex_LatestRowPerURL(t *testing.T) {
	store, mock := newTestStore(t)

	live := "Live"
	mock.ExpectQuery(`SELECT DISTINCT ON \(url\) url, page_status, status_code`).
		WillReturnRows(pgxmock.NewRows([]string{"url", "page_status", "status_code"}).
			AddRow("https://example.com/deals", &live, 200).
			AddRow("https://example.com/gone", nilStr, 404))

	index, err := store.URLStatusIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, index, 2)
	require.NotNil(t, index[0].PageStatus)
	assert.Equal(t, "Live", *index[0].PageStatus)
	assert.Equal(t, 404, index[1].StatusCode)
	expectationsMet(t, mock)
}

func TestBuildFilter(t *testing.T) {
	coupons := true
	status := 200
	where, args := buildFilter(entity.PageFilter{
		Coupons:    &coupons,
		Brands:     []string{"Acme", "Globex"},
		Vertical:   "Finance",
		StatusCode: &status,
		Search:     "deals",
	})

	assert.Contains(t, where, "has_coupons = $1")
	assert.Contains(t, where, "brand_list ? $2")
	assert.Contains(t, where, "brand_list ? $3")
	assert.Contains(t, where, "vertical = $4")
	assert.Contains(t, where, "status_code = $5")
	assert.Contains(t, where, "url ILIKE $6 OR canonical_url ILIKE $7")
	assert.Equal(t, []any{true, "Acme", "Globex", "Finance", 200, "%deals%", "%deals%"}, args)
}

func TestSortClause(t *testing.T) {
	tests := []struct {
		name     string
		sort     string
		expected string
	}{
		{name: "default", sort: "", expected: "last_seen DESC"},
		{name: "explicit asc", sort: "url:asc", expected: "url ASC"},
		{name: "explicit desc", sort: "first_seen:desc", expected: "first_seen DESC"},
		{name: "unknown column rejected", sort: "password:asc", expected: "last_seen DESC"},
		{name: "missing direction defaults desc", sort: "status_code", expected: "status_code DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sortClause(tt.sort))
		})
	}
}

func TestUpdatePageStatus(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("UPDATE page_versions SET page_status").
		WithArgs("https://example.com/deals", "Inactive").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.UpdatePageStatus(context.Background(), "https://example.com/deals", "Inactive")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	expectationsMet(t, mock)
}

func TestPurge(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM page_versions").
		WithArgs("page-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := store.Purge(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	expectationsMet(t, mock)
}
