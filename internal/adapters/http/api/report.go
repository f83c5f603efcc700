package api

import (
	"fmt"
	"net/http"

	service "github.com/okian/loftrank/internal/app"
)

// Accepted values of the sort query parameter.
const (
	sortStorage = "id"
	sortIndex   = "index"
)

// ReportHandler handles season report requests.
type ReportHandler struct {
	deps ReportDependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleGetReport handles GET /seasons/{season}/report[?sort=index] requests.
func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report"
	var opts service.ReportOptions
	switch sort := r.URL.Query().Get("sort"); sort {
	case "", sortStorage:
	case sortIndex:
		opts.SortByIndex = true
	default:
		writeFailure(w, WrapKind(op, ErrUnknownSort, fmt.Errorf("%q", sort)))
		return
	}

	report, err := h.deps.SeasonReport(r.Context(), r.PathValue("season"), opts)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
