package repository

import "errors"

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrQueueEmpty is returned by Pop when no URL is pending.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrExtractionFailed wraps any failure of the extraction model.
	// Callers seeing it must abstain from persisting anything for the
	// URL in question.
	ErrExtractionFailed = errors.New("extraction failed")
)
