package repository

import (
	"context"

	"github.com/user/page-inventory/internal/entity"
)

// CRMClient talks to the spreadsheet CRM that owns page assignments.
// The CRM is the sole writer of category/vertical for linked pages.
type CRMClient interface {
	// ListRecords fetches every landing-page record from the configured
	// CRM view.
	ListRecords(ctx context.Context) ([]entity.CRMRecord, error)

	// UpdatePageStatus writes a new page status back to one CRM record.
	UpdatePageStatus(ctx context.Context, recordID, status string) error
}
