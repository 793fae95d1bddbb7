package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/entity"
)

// DB is the subset of pgxpool.Pool the store needs; narrowed so tests
// can substitute a mock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VersionStoreImpl provides the VersionStore contract over PostgreSQL.
// Every upsert runs in one transaction; the pending-row lookup takes a
// row lock (FOR UPDATE) so concurrent upserts for the same page_id
// serialize instead of racing into duplicate pending rows.
type VersionStoreImpl struct {
	db     DB
	logger *zap.Logger
	now    func() time.Time
}

// NewVersionStore creates a new instance of VersionStoreImpl.
func NewVersionStore(db DB, logger *zap.Logger) *VersionStoreImpl {
	return &VersionStoreImpl{db: db, logger: logger, now: time.Now}
}

const versionColumns = `id, page_id, url, canonical_url, status_code, primary_category, vertical,
		template_type, has_coupons, has_promotions, brand_list, brand_positions,
		product_list, product_positions, first_seen, last_seen, catalogued,
		airtable_id, channel, team, brand, page_status`

const insertVersionSQL = `
	INSERT INTO page_versions (
		page_id, url, canonical_url, status_code, primary_category, vertical,
		template_type, has_coupons, has_promotions, brand_list, brand_positions,
		product_list, product_positions, first_seen, last_seen, catalogued,
		airtable_id, channel, team, brand, page_status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21);`

// updateVersionSQL overwrites the mutable fields of one row. Category,
// vertical and the CRM columns go through COALESCE so a caller that
// leaves them nil cannot disturb values owned by the CRM sync.
const updateVersionSQL = `
	UPDATE page_versions SET
		url = $2,
		canonical_url = $3,
		status_code = $4,
		primary_category = COALESCE($5, primary_category),
		vertical = COALESCE($6, vertical),
		template_type = $7,
		has_coupons = $8,
		has_promotions = $9,
		brand_list = $10,
		brand_positions = $11,
		product_list = $12,
		product_positions = $13,
		last_seen = $14,
		catalogued = $15,
		airtable_id = COALESCE($16, airtable_id),
		channel = COALESCE($17, channel),
		team = COALESCE($18, team),
		brand = COALESCE($19, brand),
		page_status = COALESCE($20, page_status)
	WHERE id = $1;`

const selectPendingSQL = `
	SELECT id FROM page_versions
	WHERE page_id = $1 AND catalogued = 0
	ORDER BY id
	LIMIT 1
	FOR UPDATE;`

// Upsert applies the versioning policy for snap.PageID in one
// transaction: a pending (catalogued=0) row is overwritten in place
// with last_seen advanced and first_seen untouched; otherwise a fresh
// version row is inserted with first_seen = last_seen = today.
//
// Two concurrent first upserts for a page both see no pending row and
// both try to insert; the partial unique index on (page_id) WHERE
// catalogued = 0 rejects the loser, which then retries and takes the
// update path against the winner's row.
func (s *VersionStoreImpl) Upsert(ctx context.Context, snap *entity.PageSnapshot) error {
	err := s.upsertOnce(ctx, snap)
	if isUniqueViolation(err) {
		err = s.upsertOnce(ctx, snap)
	}
	return err
}

func (s *VersionStoreImpl) upsertOnce(ctx context.Context, snap *entity.PageSnapshot) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert for page %s: %w", snap.PageID, err)
	}
	defer tx.Rollback(ctx)

	var pendingID int64
	err = tx.QueryRow(ctx, selectPendingSQL, snap.PageID).Scan(&pendingID)
	switch {
	case err == nil:
		if err := s.updateRow(ctx, tx, pendingID, snap); err != nil {
			return err
		}
	case errors.Is(err, pgx.ErrNoRows):
		// Either a brand-new page or a new version after a catalogued
		// row; both insert, preserving any existing history.
		if err := s.insertRow(ctx, tx, snap); err != nil {
			return err
		}
	default:
		return fmt.Errorf("lookup pending version for page %s: %w", snap.PageID, err)
	}

	return tx.Commit(ctx)
}

// UpsertRecord overwrites a specific row, typically completing a CRM
// placeholder with crawl results. A vanished row degrades to an insert.
func (s *VersionStoreImpl) UpsertRecord(ctx context.Context, recordID int64, snap *entity.PageSnapshot) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert for record %d: %w", recordID, err)
	}
	defer tx.Rollback(ctx)

	args, err := s.updateArgs(recordID, snap)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateVersionSQL, args...)
	if err != nil {
		return fmt.Errorf("update record %d: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("targeted version row missing, inserting instead",
			zap.Int64("record_id", recordID),
			zap.String("page_id", snap.PageID))
		if err := s.insertRow(ctx, tx, snap); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *VersionStoreImpl) insertRow(ctx context.Context, tx pgx.Tx, snap *entity.PageSnapshot) error {
	brandJSON, productJSON, err := listJSON(snap)
	if err != nil {
		return err
	}
	today := s.today()
	_, err = tx.Exec(ctx, insertVersionSQL,
		snap.PageID,
		snap.URL,
		snap.CanonicalURL,
		snap.StatusCode,
		snap.PrimaryCategory,
		snap.Vertical,
		snap.TemplateType,
		snap.HasCoupons,
		snap.HasPromotions,
		brandJSON,
		snap.BrandPositions,
		productJSON,
		snap.ProductPositions,
		today,
		today,
		catalogued(snap),
		snap.AirtableID,
		snap.Channel,
		snap.Team,
		snap.Brand,
		snap.PageStatus,
	)
	if err != nil {
		return fmt.Errorf("insert version for page %s: %w", snap.PageID, err)
	}
	return nil
}

func (s *VersionStoreImpl) updateRow(ctx context.Context, tx pgx.Tx, rowID int64, snap *entity.PageSnapshot) error {
	args, err := s.updateArgs(rowID, snap)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, updateVersionSQL, args...); err != nil {
		return fmt.Errorf("update pending version for page %s: %w", snap.PageID, err)
	}
	return nil
}

func (s *VersionStoreImpl) updateArgs(rowID int64, snap *entity.PageSnapshot) ([]any, error) {
	brandJSON, productJSON, err := listJSON(snap)
	if err != nil {
		return nil, err
	}
	return []any{
		rowID,
		snap.URL,
		snap.CanonicalURL,
		snap.StatusCode,
		snap.PrimaryCategory,
		snap.Vertical,
		snap.TemplateType,
		snap.HasCoupons,
		snap.HasPromotions,
		brandJSON,
		snap.BrandPositions,
		productJSON,
		snap.ProductPositions,
		s.today(),
		catalogued(snap),
		snap.AirtableID,
		snap.Channel,
		snap.Team,
		snap.Brand,
		snap.PageStatus,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// catalogued derives the completion flag when the caller did not pin it:
// a non-zero status code means a definitive crawl outcome was recorded.
func catalogued(snap *entity.PageSnapshot) int {
	if snap.Catalogued != nil {
		return *snap.Catalogued
	}
	if snap.StatusCode != 0 {
		return 1
	}
	return 0
}

// listJSON serializes the brand/product lists, defaulting nil to [].
func listJSON(snap *entity.PageSnapshot) ([]byte, []byte, error) {
	brands := snap.BrandList
	if brands == nil {
		brands = []string{}
	}
	products := snap.ProductList
	if products == nil {
		products = []string{}
	}
	brandJSON, err := json.Marshal(brands)
	if err != nil {
		return nil, nil, err
	}
	productJSON, err := json.Marshal(products)
	if err != nil {
		return nil, nil, err
	}
	return brandJSON, productJSON, nil
}

func (s *VersionStoreImpl) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
