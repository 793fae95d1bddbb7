package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/delivery/http/request"
	"github.com/user/page-inventory/internal/delivery/http/response"
	"github.com/user/page-inventory/internal/repository"
	"github.com/user/page-inventory/internal/usecase"
)

type Handler struct {
	urlManager usecase.URLManager
	store      repository.VersionStore
	logger     *zap.Logger
}

func NewHandler(urlManager usecase.URLManager, store repository.VersionStore, logger *zap.Logger) *Handler {
	return &Handler{
		urlManager: urlManager,
		store:      store,
		logger:     logger,
	}
}

func (h *Handler) HandleSubmitURL(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !plausibleURL(req.URL) {
		h.writeJSONError(w, "invalid url", http.StatusBadRequest)
		return
	}

	pageID, err := h.urlManager.Submit(r.Context(), req.URL, req.Force)
	if err != nil {
		if errors.Is(err, usecase.ErrRecentlyCatalogued) {
			h.writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("submit failed", zap.String("url", req.URL), zap.Error(err))
		h.writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.SubmitURLResponse{
		Status:  "accepted",
		Message: "URL queued for cataloguing.",
		PageID:  pageID,
	})
}

func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	urlParam := r.URL.Query().Get("url")
	if urlParam == "" {
		h.writeJSONError(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	status, err := h.urlManager.Status(r.Context(), urlParam)
	if err != nil {
		h.logger.Error("status lookup failed", zap.String("url", urlParam), zap.Error(err))
		h.writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if status.CurrentStatus == "not_found" {
		h.writeJSONError(w, "no catalogue record for url", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, response.CrawlStatusResponse{
		URL:           status.URL,
		CurrentStatus: status.CurrentStatus,
		LastSeen:      status.LastSeen,
	})
}

func (h *Handler) HandleRecatalogue(w http.ResponseWriter, r *http.Request) {
	var req request.RecatalogueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !plausibleURL(req.URL) {
		h.writeJSONError(w, "invalid url", http.StatusBadRequest)
		return
	}

	if err := h.urlManager.Recatalogue(r.Context(), req.URL); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeJSONError(w, "url not in inventory", http.StatusNotFound)
			return
		}
		h.logger.Error("recatalogue failed", zap.String("url", req.URL), zap.Error(err))
		h.writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

const defaultPageLimit = 50

func (h *Handler) HandleListPages(w http.ResponseWriter, r *http.Request) {
	filter := request.ParsePageFilter(r)
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}

	pages, total, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("page query failed", zap.Error(err))
		h.writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.PageListResponse{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Pages:  make([]response.PageVersionResponse, 0, len(pages)),
	}
	for _, p := range pages {
		resp.Pages = append(resp.Pages, response.FromPageVersion(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

var csvHeader = []string{
	"page_id", "url", "canonical_url", "status_code",
	"primary_category", "vertical", "template_type",
	"has_coupons", "has_promotions",
	"brand_list", "brand_positions", "product_list", "product_positions",
	"first_seen", "last_seen", "catalogued",
	"channel", "team", "brand", "page_status",
}

func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter := request.ParsePageFilter(r)
	// The export ignores pagination and streams the full match set.
	filter.Limit = 0
	filter.Offset = 0

	pages, _, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("export query failed", zap.Error(err))
		h.writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="pages.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, p := range pages {
		v := response.FromPageVersion(p)
		_ = cw.Write([]string{
			v.PageID, v.URL, v.CanonicalURL, strconv.Itoa(v.StatusCode),
			deref(v.PrimaryCategory), deref(v.Vertical), deref(v.TemplateType),
			strconv.FormatBool(v.HasCoupons), strconv.FormatBool(v.HasPromotions),
			strings.Join(v.BrandList, "; "), deref(v.BrandPositions),
			strings.Join(v.ProductList, "; "), deref(v.ProductPositions),
			v.FirstSeen, v.LastSeen, strconv.Itoa(v.Catalogued),
			deref(v.Channel), deref(v.Team), deref(v.Brand), deref(v.PageStatus),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("csv export write failed", zap.Error(err))
	}
}

func (h *Handler) HandleGetFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.store.Facets(r.Context())
	if err != nil {
		h.logger.Error("facets query failed", zap.Error(err))
		h.writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.FacetsResponse{
		Brands:            facets.Brands,
		PrimaryCategories: facets.PrimaryCategories,
		Verticals:         facets.Verticals,
	})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write json response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// plausibleURL rejects obviously broken input before normalization
// papers over it.
func plausibleURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host != "" && strings.Contains(u.Host, ".")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
