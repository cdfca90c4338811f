// Package api exposes the scan pipeline over HTTP for the capture frontend:
// one endpoint to process an image and a handful of endpoints for history,
// statistics, export, and pushing results into Odoo.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/JM200322/proyecto-ocr-odoo/internal/config"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/monitoring"
	"github.com/JM200322/proyecto-ocr-odoo/internal/odoo"
	"github.com/JM200322/proyecto-ocr-odoo/internal/scan"
	"github.com/JM200322/proyecto-ocr-odoo/pkg/models"
)

// ScanService runs one scan end to end.
type ScanService interface {
	Process(ctx context.Context, req scan.Request) (*models.ScanJob, error)
}

// HistoryStore is the slice of the database layer the handlers need.
type HistoryStore interface {
	RecentJobs(ctx context.Context, limit, offset int) ([]models.ScanJob, error)
	AllJobs(ctx context.Context) ([]models.ScanJob, error)
	Stats(ctx context.Context, days int) (*models.Stats, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	SaveERPRecord(ctx context.Context, rec *models.ERPRecord) (int64, error)
}

// OdooService pushes text into Odoo.
type OdooService interface {
	Authenticate(ctx context.Context, instanceName string) (int64, error)
	SendText(ctx context.Context, instanceName, mappingType, text string) (*odoo.PushResult, error)
	Instances() []string
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server's collaborators. History, Odoo, Metrics, and the
// pingers are optional; the matching endpoints degrade gracefully when a
// dependency is absent.
type Deps struct {
	Scans     ScanService
	History   HistoryStore
	Odoo      OdooService
	Metrics   *monitoring.Metrics
	DBPing    Pinger
	CachePing Pinger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	cfg     *config.Config
	scans   ScanService
	history HistoryStore
	odoo    OdooService
	metrics *monitoring.Metrics
	pings   map[string]Pinger
	router  http.Handler
	httpSrv *http.Server
	log     zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		scans:   deps.Scans,
		history: deps.History,
		odoo:    deps.Odoo,
		metrics: deps.Metrics,
		pings:   make(map[string]Pinger),
		log:     logger.WithComponent("api"),
	}
	if deps.DBPing != nil {
		s.pings["postgres"] = deps.DBPing
	}
	if deps.CachePing != nil {
		s.pings["redis"] = deps.CachePing
	}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.HTTPRequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info().Str("addr", s.cfg.HTTPAddr).Msg("HTTP server listening")
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
