package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/types"
)

// RequestIDHeader carries the client's idempotency key for queued imports.
const RequestIDHeader = "Idempotency-Key"

const maxRequestIDLength = 128

// ImportHandler handles season import requests.
type ImportHandler struct {
	deps         ImportDependencies
	maxBodyBytes int64
}

// NewImportHandler creates a new import handler.
func NewImportHandler(deps ImportDependencies, maxBodyBytes int64) *ImportHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &ImportHandler{deps: deps, maxBodyBytes: maxBodyBytes}
}

// jobResponse is a job plus whether it came from an earlier submission.
type jobResponse struct {
	types.Job
	Duplicate bool `json:"duplicate"`
}

// HandleImport handles POST /seasons/{season}/import requests.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import"
	raws, err := h.readBatch(w, r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	result, err := h.deps.ImportBatch(r.Context(), r.PathValue("season"), raws)
	if err != nil {
		writeImportFailure(w, err, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSubmitJob handles POST /seasons/{season}/jobs requests.
func (h *ImportHandler) HandleSubmitJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_job"
	requestID, err := requestIDFrom(r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrInvalidHeader, err))
		return
	}
	raws, err := h.readBatch(w, r)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	job, duplicate, err := h.deps.SubmitImport(r.Context(), r.PathValue("season"), requestID, raws)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, jobResponse{Job: job, Duplicate: true})
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, jobResponse{Job: job})
}

func (h *ImportHandler) readBatch(w http.ResponseWriter, r *http.Request) ([]model.RawEntry, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, ErrBodyTooLarge
		}
		return nil, err
	}
	return model.ParseRawBatch(body)
}

// requestIDFrom reads the idempotency key from the header, falling back to
// the requestId query parameter.
func requestIDFrom(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("requestId"))
	}
	if len(id) > maxRequestIDLength {
		return "", errors.New("longer than 128 characters")
	}
	return id, nil
}
