package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const visitedKeyPrefix = "inventory:visited:"

// VisitedRepoImpl provides the VisitedRepository contract using expiring
// Redis keys. Keys are page ids, already content-addressed, so no extra
// hashing is needed here.
type VisitedRepoImpl struct {
	client *redis.Client
}

// NewVisitedRepo creates a new instance of VisitedRepoImpl.
func NewVisitedRepo(client *redis.Client) *VisitedRepoImpl {
	return &VisitedRepoImpl{client: client}
}

// MarkVisited records a processed page with the given expiry window.
func (r *VisitedRepoImpl) MarkVisited(ctx context.Context, pageID string, expiry time.Duration) error {
	return r.client.SetEx(ctx, visitedKeyPrefix+pageID, "1", expiry).Err()
}

// IsVisited reports whether the page was processed inside the window.
func (r *VisitedRepoImpl) IsVisited(ctx context.Context, pageID string) (bool, error) {
	n, err := r.client.Exists(ctx, visitedKeyPrefix+pageID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RemoveVisited clears the mark, used for forced re-catalogues.
func (r *VisitedRepoImpl) RemoveVisited(ctx context.Context, pageID string) error {
	return r.client.Del(ctx, visitedKeyPrefix+pageID).Err()
}
