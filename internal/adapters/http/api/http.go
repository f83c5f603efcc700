// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/loftrank/internal/app"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ImportDependencies
	JobDependencies
	ReportDependencies
}

// ImportDependencies covers synchronous and queued imports.
type ImportDependencies interface {
	ImportBatch(ctx context.Context, season string, raws []model.RawEntry) (types.ImportResult, error)
	SubmitImport(ctx context.Context, season, requestID string, raws []model.RawEntry) (types.Job, bool, error)
}

// JobDependencies exposes import job polling.
type JobDependencies interface {
	Job(ctx context.Context, id string) (types.Job, error)
}

// ReportDependencies exposes season reports.
type ReportDependencies interface {
	SeasonReport(ctx context.Context, season string, opts service.ReportOptions) (types.SeasonReport, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	importHandler *ImportHandler
	jobHandler    *JobHandler
	reportHandler *ReportHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		importHandler: NewImportHandler(deps, o.maxBodyBytes),
		jobHandler:    NewJobHandler(deps),
		reportHandler: NewReportHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", withMetrics("healthz", s.healthHandler.HandleHealth))
	mux.HandleFunc("GET /stats", withMetrics("stats", s.statsHandler.HandleStats))
	mux.HandleFunc("POST /seasons/{season}/import", withMetrics("import", s.importHandler.HandleImport))
	mux.HandleFunc("POST /seasons/{season}/jobs", withMetrics("jobs_submit", s.importHandler.HandleSubmitJob))
	mux.HandleFunc("GET /seasons/{season}/report", withMetrics("report", s.reportHandler.HandleGetReport))
	mux.HandleFunc("GET /jobs/{id}", withMetrics("jobs_get", s.jobHandler.HandleGetJob))
}
