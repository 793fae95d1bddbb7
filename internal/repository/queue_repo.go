package repository

import "context"

// QueueRepository is the FIFO queue of URLs awaiting cataloguing.
// Workers pull from it one URL at a time.
type QueueRepository interface {
	// Push adds a URL to the end of the queue.
	Push(ctx context.Context, url string) error
	// Pop removes and returns the URL at the front of the queue.
	// Returns ErrQueueEmpty when nothing is pending.
	Pop(ctx context.Context) (string, error)
	// Size returns the current queue depth.
	Size(ctx context.Context) (int64, error)
}
