package repository

import "context"

// FetchResult is the outcome of one page fetch through the rendering
// backend. StatusCode carries the origin status; 599 is the synthetic
// code for a hard transport failure.
type FetchResult struct {
	StatusCode  int
	Body        string
	ResolvedURL string // final URL after redirects, empty if unknown
}

// Fetcher retrieves rendered page content. Implementations own their
// retry policy and request pacing; callers see only the final outcome.
type Fetcher interface {
	// FetchHTML fetches a page, optionally with JavaScript rendering.
	FetchHTML(ctx context.Context, url string, renderJS bool) (*FetchResult, error)

	// FetchScreenshot captures a full-page screenshot. Best effort:
	// implementations return an empty slice rather than failing the
	// pipeline when a screenshot cannot be produced.
	FetchScreenshot(ctx context.Context, url string) ([]byte, error)
}
