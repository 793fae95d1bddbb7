package response

import (
	"time"

	"github.com/user/page-inventory/internal/entity"
)

type SubmitURLResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	PageID  string `json:"page_id"`
}

type CrawlStatusResponse struct {
	URL           string     `json:"url"`
	CurrentStatus string     `json:"current_status"` // "pending", "completed", "not_found"
	LastSeen      *time.Time `json:"last_seen,omitempty"`
}

// PageVersionResponse is the API shape of one inventory row.
type PageVersionResponse struct {
	ID               int64    `json:"id"`
	PageID           string   `json:"page_id"`
	URL              string   `json:"url"`
	CanonicalURL     string   `json:"canonical_url"`
	StatusCode       int      `json:"status_code"`
	PrimaryCategory  *string  `json:"primary_category"`
	Vertical         *string  `json:"vertical"`
	TemplateType     *string  `json:"template_type"`
	HasCoupons       bool     `json:"has_coupons"`
	HasPromotions    bool     `json:"has_promotions"`
	BrandList        []string `json:"brand_list"`
	BrandPositions   *string  `json:"brand_positions"`
	ProductList      []string `json:"product_list"`
	ProductPositions *string  `json:"product_positions"`
	FirstSeen        string   `json:"first_seen"`
	LastSeen         string   `json:"last_seen"`
	Catalogued       int      `json:"catalogued"`
	Channel          *string  `json:"channel,omitempty"`
	Team             *string  `json:"team,omitempty"`
	Brand            *string  `json:"brand,omitempty"`
	PageStatus       *string  `json:"page_status,omitempty"`
}

type PageListResponse struct {
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Pages  []PageVersionResponse `json:"pages"`
}

type FacetsResponse struct {
	Brands            []string `json:"brands"`
	PrimaryCategories []string `json:"primary_categories"`
	Verticals         []string `json:"verticals"`
}

const dateLayout = "2006-01-02"

func FromPageVersion(v *entity.PageVersion) PageVersionResponse {
	return PageVersionResponse{
		ID:               v.ID,
		PageID:           v.PageID,
		URL:              v.URL,
		CanonicalURL:     v.CanonicalURL,
		StatusCode:       v.StatusCode,
		PrimaryCategory:  v.PrimaryCategory,
		Vertical:         v.Vertical,
		TemplateType:     v.TemplateType,
		HasCoupons:       v.HasCoupons,
		HasPromotions:    v.HasPromotions,
		BrandList:        v.BrandList,
		BrandPositions:   v.BrandPositions,
		ProductList:      v.ProductList,
		ProductPositions: v.ProductPositions,
		FirstSeen:        v.FirstSeen.Format(dateLayout),
		LastSeen:         v.LastSeen.Format(dateLayout),
		Catalogued:       v.Catalogued,
		Channel:          v.Channel,
		Team:             v.Team,
		Brand:            v.Brand,
		PageStatus:       v.PageStatus,
	}
}
