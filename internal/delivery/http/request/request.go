package request

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/user/page-inventory/internal/entity"
)

type SubmitURLRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

type RecatalogueRequest struct {
	URL string `json:"url"`
}

// ParsePageFilter reads the listing/export query parameters.
func ParsePageFilter(r *http.Request) entity.PageFilter {
	q := r.URL.Query()

	filter := entity.PageFilter{
		Brands:          splitParam(q.Get("brand")),
		Products:        splitParam(q.Get("product")),
		PrimaryCategory: q.Get("category"),
		Vertical:        q.Get("vertical"),
		TemplateType:    q.Get("template"),
		Search:          q.Get("q"),
		Sort:            q.Get("sort"),
	}

	if v := q.Get("coupons"); v != "" {
		b := v == "true" || v == "1"
		filter.Coupons = &b
	}
	if v := q.Get("promotions"); v != "" {
		b := v == "true" || v == "1"
		filter.Promotions = &b
	}
	if v := q.Get("status_code"); v != "" {
		if code, err := strconv.Atoi(v); err == nil {
			filter.StatusCode = &code
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	return filter
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
