package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/canonical"
	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

// --- stubs ---

type fetchCall struct {
	url      string
	renderJS bool
}

type stubFetcher struct {
	calls   []fetchCall
	results []*repository.FetchResult // consumed in order
	err     error
}

func (f *stubFetcher) FetchHTML(_ context.Context, url string, renderJS bool) (*repository.FetchResult, error) {
	f.calls = append(f.calls, fetchCall{url, renderJS})
	if f.err != nil {
		return nil, f.err
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

func (f *stubFetcher) FetchScreenshot(context.Context, string) ([]byte, error) {
	return []byte("png"), nil
}

type stubExtractor struct {
	result *entity.ExtractionResult
	err    error
	calls  int
}

func (e *stubExtractor) Extract(context.Context, string, string, []byte) (*entity.ExtractionResult, error) {
	e.calls++
	return e.result, e.err
}

type stubStore struct {
	repository.VersionStore // panic on unstubbed methods

	upserts []*entity.PageSnapshot
	latest  *entity.PageVersion
}

func (s *stubStore) Upsert(_ context.Context, snap *entity.PageSnapshot) error {
	s.upserts = append(s.upserts, snap)
	return nil
}

func (s *stubStore) LatestByURL(context.Context, string) (*entity.PageVersion, error) {
	if s.latest == nil {
		return nil, repository.ErrNotFound
	}
	return s.latest, nil
}

type stubVisited struct {
	seen    map[string]bool
	marked  []string
	removed []string
}

func (v *stubVisited) MarkVisited(_ context.Context, pageID string, _ time.Duration) error {
	v.marked = append(v.marked, pageID)
	return nil
}

func (v *stubVisited) IsVisited(_ context.Context, pageID string) (bool, error) {
	return v.seen[pageID], nil
}

func (v *stubVisited) RemoveVisited(_ context.Context, pageID string) error {
	v.removed = append(v.removed, pageID)
	return nil
}

// ---

func bigBody(inner string) string {
	return "<html><body>" + inner + strings.Repeat("<p>filler</p>", 200) + "</body></html>"
}

func newTestCataloguer(store *stubStore, fetcher *stubFetcher, ex *stubExtractor, visited *stubVisited) Cataloguer {
	return NewCataloguer(store, fetcher, ex, visited, zap.NewNop(), CataloguerOptions{
		RenderJS:    true,
		DedupWindow: time.Hour,
	})
}

func TestCatalogue_FullPipeline(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{results: []*repository.FetchResult{{
		StatusCode: 200,
		Body: bigBody(`<link rel="canonical" href="https://example.com/best-vpns">
			<script id="pageLevelData">{"PrimaryCategory": "Tech", "TemplateName": "listicle-v2"}</script>
			<p>Use promo code SAVE10 today</p>`),
	}}}
	ex := &stubExtractor{result: &entity.ExtractionResult{
		PageType: "listicle",
		Listings: []entity.Listing{
			{BrandName: "NordVPN", Position: "1", Location: entity.LocationMainList, HasPromotion: true},
		},
	}}
	visited := &stubVisited{seen: map[string]bool{}}

	outcome, err := newTestCataloguer(store, fetcher, ex, visited).
		Catalogue(context.Background(), "https://example.com/best-vpns?utm_source=mail")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)

	require.Len(t, store.upserts, 1)
	snap := store.upserts[0]
	assert.Equal(t, "https://example.com/best-vpns", snap.URL)
	assert.Equal(t, canonical.PageID("https://example.com/best-vpns"), snap.PageID)
	assert.Equal(t, "https://example.com/best-vpns", snap.CanonicalURL)
	assert.Equal(t, 200, snap.StatusCode)
	if assert.NotNil(t, snap.PrimaryCategory) {
		assert.Equal(t, "Tech", *snap.PrimaryCategory)
	}
	if assert.NotNil(t, snap.Vertical) {
		assert.Equal(t, "Shopping", *snap.Vertical)
	}
	if assert.NotNil(t, snap.TemplateType) {
		assert.Equal(t, "listicle-v2", *snap.TemplateType)
	}
	assert.True(t, snap.HasCoupons) // heuristic hit even though model said nothing
	assert.True(t, snap.HasPromotions)
	assert.Equal(t, []string{"NordVPN"}, snap.BrandList)
	if assert.NotNil(t, snap.BrandPositions) {
		assert.Equal(t, "NordVPN:1", *snap.BrandPositions)
	}

	// Processed pages enter the dedup set.
	assert.Equal(t, []string{snap.PageID}, visited.marked)
}

func TestCatalogue_AliasKeysOnDeclaredCanonical(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{results: []*repository.FetchResult{{
		StatusCode: 200,
		Body:       bigBody(`<link rel="canonical" href="https://example.com/master-page">`),
	}}}
	ex := &stubExtractor{result: &entity.ExtractionResult{PageType: "other"}}
	visited := &stubVisited{seen: map[string]bool{}}

	outcome, err := newTestCataloguer(store, fetcher, ex, visited).
		Catalogue(context.Background(), "https://example.com/alias-page")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)

	require.Len(t, store.upserts, 1)
	snap := store.upserts[0]
	assert.Equal(t, "https://example.com/alias-page", snap.URL)
	assert.Equal(t, "https://example.com/master-page", snap.CanonicalURL)
	// page_id is a pure function of the stored canonical, so every
	// alias declaring this canonical lands on the same page.
	assert.Equal(t, canonical.PageID("https://example.com/master-page"), snap.PageID)

	// Both keys enter the dedup set so neither spelling is refetched
	// inside the window.
	assert.ElementsMatch(t, []string{
		canonical.PageID("https://example.com/master-page"),
		canonical.PageID("https://example.com/alias-page"),
	}, visited.marked)
}

func TestCatalogue_DeadPageRecordedWithoutExtraction(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{results: []*repository.FetchResult{{StatusCode: 404}}}
	ex := &stubExtractor{}
	visited := &stubVisited{seen: map[string]bool{}}

	outcome, err := newTestCataloguer(store, fetcher, ex, visited).
		Catalogue(context.Background(), "https://example.com/gone")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)

	require.Len(t, store.upserts, 1)
	assert.Equal(t, 404, store.upserts[0].StatusCode)
	assert.Zero(t, ex.calls)
	assert.Len(t, visited.marked, 1)
}

func TestCatalogue_TransportFailureCountsAsFailed(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{results: []*repository.FetchResult{{StatusCode: 599}, {StatusCode: 599}}}
	visited := &stubVisited{seen: map[string]bool{}}

	outcome, err := newTestCataloguer(store, fetcher, &stubExtractor{}, visited).
		Catalogue(context.Background(), "https://example.com/down")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	// The failure is still recorded as a version row.
	require.Len(t, store.upserts, 1)
	assert.Equal(t, 599, store.upserts[0].StatusCode)
	// But does not enter the dedup set: a later batch retries it.
	assert.Empty(t, visited.marked)
}

func TestCatalogue_ExtractionFailurePersistsNothing(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{results: []*repository.FetchResult{{StatusCode: 200, Body: bigBody("")}}}
	ex := &stubExtractor{err: repository.ErrExtractionFailed}
	visited := &stubVisited{seen: map[string]bool{}}

	outcome, err := newTestCataloguer(store, fetcher, ex, visited).
		Catalogue(context.Background(), "https://example.com/p")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, store.upserts)
	assert.Empty(t, visited.marked)
}

func TestCatalogue_RecentlySeenSkipped(t *testing.T) {
	pageID := canonical.PageID("https://example.com/seen")
	store := &stubStore{}
	fetcher := &stubFetcher{}
	visited := &stubVisited{seen: map[string]bool{pageID: true}}

	outcome, err := newTestCataloguer(store, fetcher, &stubExtractor{}, visited).
		Catalogue(context.Background(), "https://example.com/seen")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, fetcher.calls)
}

func TestCatalogue_CRMLinkedPageKeepsItsTaxonomy(t *testing.T) {
	airtableID := "recABC"
	store := &stubStore{latest: &entity.PageVersion{AirtableID: &airtableID}}
	fetcher := &stubFetcher{results: []*repository.FetchResult{{
		StatusCode: 200,
		Body:       bigBody(`<script id="pageLevelData">{"PrimaryCategory": "Tech"}</script>`),
	}}}
	ex := &stubExtractor{result: &entity.ExtractionResult{PageType: "other"}}
	visited := &stubVisited{seen: map[string]bool{}}

	_, err := newTestCataloguer(store, fetcher, ex, visited).
		Catalogue(context.Background(), "https://example.com/linked")
	require.NoError(t, err)

	require.Len(t, store.upserts, 1)
	assert.Nil(t, store.upserts[0].PrimaryCategory)
	assert.Nil(t, store.upserts[0].Vertical)
}

func TestCatalogue_ShellBodyRetriedWithoutJS(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{results: []*repository.FetchResult{
		{StatusCode: 200, Body: "<html></html>"}, // too small to be a real render
		{StatusCode: 200, Body: bigBody("plain fetch content")},
	}}
	ex := &stubExtractor{result: &entity.ExtractionResult{PageType: "other"}}
	visited := &stubVisited{seen: map[string]bool{}}

	outcome, err := newTestCataloguer(store, fetcher, ex, visited).
		Catalogue(context.Background(), "https://example.com/shell")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome)

	require.Len(t, fetcher.calls, 2)
	assert.True(t, fetcher.calls[0].renderJS)
	assert.False(t, fetcher.calls[1].renderJS)
}
