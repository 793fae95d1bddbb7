package repository

import (
	"context"

	"github.com/user/page-inventory/internal/entity"
)

// Extractor turns rendered page content into structured listing and
// promotion signals. It fails loudly: on any error the caller must not
// persist anything for the URL, so partial model output never reaches
// the inventory.
type Extractor interface {
	Extract(ctx context.Context, url, html string, screenshot []byte) (*entity.ExtractionResult, error)
}
