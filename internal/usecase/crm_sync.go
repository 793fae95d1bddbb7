package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/canonical"
	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/pkg/metrics"
)

// CRM page statuses the sync acts on.
const (
	crmStatusActive = "Active"
	crmStatusPaused = "Paused"
)

// SyncSummary is the accounting for one CRM sync run.
type SyncSummary struct {
	Records      int
	Placeholders int
	Updated      int
	Paused       int
	Unchanged    int
	Errors       int
}

// CRMSyncer reconciles the inventory against the CRM export: pages the
// CRM knows but the inventory doesn't become uncatalogued placeholders,
// and page-status changes propagate to every stored version. The one
// write-back goes the other way: an Active CRM record whose page the
// crawler last saw dead gets paused in the CRM.
type CRMSyncer interface {
	Sync(ctx context.Context) (*SyncSummary, error)
}

type crmSyncer struct {
	store  repository.VersionStore
	crm    repository.CRMClient
	logger *zap.Logger
}

func NewCRMSyncer(store repository.VersionStore, crm repository.CRMClient, logger *zap.Logger) CRMSyncer {
	return &crmSyncer{store: store, crm: crm, logger: logger}
}

func (s *crmSyncer) Sync(ctx context.Context) (*SyncSummary, error) {
	records, err := s.crm.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list crm records: %w", err)
	}

	index, err := s.store.URLStatusIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("load url status index: %w", err)
	}

	// One entry per stored URL, carrying its latest page_status and the
	// last observed crawl status code.
	statusByURL := make(map[string]repository.URLStatus, len(index))
	for _, e := range index {
		statusByURL[canonical.Normalize(e.URL)] = e
	}

	summary := &SyncSummary{Records: len(records)}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		normalized := canonical.Normalize(rec.LandingPage)

		current, known := statusByURL[normalized]
		switch {
		case !known:
			if err := s.createPlaceholder(ctx, normalized, rec); err != nil {
				s.logger.Error("placeholder creation failed",
					zap.String("url", normalized),
					zap.String("record_id", rec.RecordID),
					zap.Error(err))
				summary.Errors++
				continue
			}
			summary.Placeholders++
			metrics.CRMRecordsSynced.WithLabelValues("placeholder_created").Inc()

		case rec.PageStatus == crmStatusActive && current.StatusCode >= 400:
			if err := s.pauseDeadPage(ctx, normalized, rec); err != nil {
				s.logger.Error("dead page pause failed",
					zap.String("url", normalized),
					zap.String("record_id", rec.RecordID),
					zap.Error(err))
				summary.Errors++
				continue
			}
			summary.Paused++
			metrics.CRMRecordsSynced.WithLabelValues("paused_dead").Inc()

		case rec.PageStatus != "" && (current.PageStatus == nil || *current.PageStatus != rec.PageStatus):
			n, err := s.store.UpdatePageStatus(ctx, normalized, rec.PageStatus)
			if err != nil {
				s.logger.Error("page status update failed",
					zap.String("url", normalized),
					zap.Error(err))
				summary.Errors++
				continue
			}
			s.logger.Debug("page status propagated",
				zap.String("url", normalized),
				zap.String("status", rec.PageStatus),
				zap.Int64("rows", n))
			summary.Updated++
			metrics.CRMRecordsSynced.WithLabelValues("status_updated").Inc()

		default:
			summary.Unchanged++
			metrics.CRMRecordsSynced.WithLabelValues("unchanged").Inc()
		}
	}

	s.logger.Info("crm sync complete",
		zap.Int("records", summary.Records),
		zap.Int("placeholders", summary.Placeholders),
		zap.Int("updated", summary.Updated),
		zap.Int("paused", summary.Paused),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

// pauseDeadPage writes the pause back to the CRM record and mirrors it
// locally so the next run sees both sides in agreement.
func (s *crmSyncer) pauseDeadPage(ctx context.Context, normalized string, rec entity.CRMRecord) error {
	if err := s.crm.UpdatePageStatus(ctx, rec.RecordID, crmStatusPaused); err != nil {
		return fmt.Errorf("pause crm record %s: %w", rec.RecordID, err)
	}
	if _, err := s.store.UpdatePageStatus(ctx, normalized, crmStatusPaused); err != nil {
		return fmt.Errorf("mirror pause for %s: %w", normalized, err)
	}
	return nil
}

// createPlaceholder inserts an uncatalogued row carrying the CRM's
// assignment fields. StatusCode 0 marks it as never fetched; the next
// batch run picks it up via UncataloguedURLs.
func (s *crmSyncer) createPlaceholder(ctx context.Context, normalized string, rec entity.CRMRecord) error {
	snap := &entity.PageSnapshot{
		PageID:       canonical.PageID(normalized),
		URL:          normalized,
		CanonicalURL: normalized,
		AirtableID:   &rec.RecordID,
	}
	if rec.PrimaryCategory != "" {
		snap.PrimaryCategory = &rec.PrimaryCategory
	}
	if rec.Vertical != "" {
		snap.Vertical = &rec.Vertical
	}
	if rec.Channel != "" {
		snap.Channel = &rec.Channel
	}
	if rec.Team != "" {
		snap.Team = &rec.Team
	}
	if rec.Brand != "" {
		snap.Brand = &rec.Brand
	}
	if rec.PageStatus != "" {
		snap.PageStatus = &rec.PageStatus
	}
	return s.store.Upsert(ctx, snap)
}
