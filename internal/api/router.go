package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.HTTPRequestTimeout))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/process-ocr", s.handleProcessOCR)
		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleCleanup)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)
		r.Post("/send-text", s.handleSendText)
		r.Post("/test-connection", s.handleTestConnection)
		r.Get("/mappings", s.handleMappings)
	})

	return r
}
