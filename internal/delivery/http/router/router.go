package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/delivery/http/handler"
	"github.com/user/page-inventory/internal/delivery/http/middleware"
)

func New(h *handler.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/crawl", h.HandleSubmitURL)
		r.Get("/status", h.HandleGetStatus)
		r.Post("/recatalogue", h.HandleRecatalogue)

		r.Get("/pages", h.HandleListPages)
		r.Get("/pages/export.csv", h.HandleExportCSV)
		r.Get("/facets", h.HandleGetFacets)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
