package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/pkg/metrics"
)

// QueueWorker drains the submission queue one URL at a time.
type QueueWorker interface {
	// ProcessNext pops and catalogues one URL. Returns
	// repository.ErrQueueEmpty when there is nothing to do.
	ProcessNext(ctx context.Context) error
}

type queueWorker struct {
	queue      repository.QueueRepository
	cataloguer Cataloguer
	logger     *zap.Logger
}

func NewQueueWorker(queue repository.QueueRepository, cataloguer Cataloguer, logger *zap.Logger) QueueWorker {
	return &queueWorker{queue: queue, cataloguer: cataloguer, logger: logger}
}

func (w *queueWorker) ProcessNext(ctx context.Context) error {
	u, err := w.queue.Pop(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrQueueEmpty) {
			return err
		}
		return fmt.Errorf("pop queue: %w", err)
	}

	if depth, err := w.queue.Size(ctx); err == nil {
		metrics.URLsInQueue.Set(float64(depth))
	}

	outcome, err := w.cataloguer.Catalogue(ctx, u)
	if err != nil {
		w.logger.Error("queued url failed", zap.String("url", u), zap.Error(err))
		return nil
	}
	w.logger.Debug("queued url processed", zap.String("url", u), zap.String("outcome", string(outcome)))
	return nil
}
