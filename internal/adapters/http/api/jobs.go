package api

import (
	"net/http"
)

// JobHandler handles import job polling.
type JobHandler struct {
	deps JobDependencies
}

// NewJobHandler creates a new job handler.
func NewJobHandler(deps JobDependencies) *JobHandler {
	return &JobHandler{deps: deps}
}

// HandleGetJob handles GET /jobs/{id} requests.
func (h *JobHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
