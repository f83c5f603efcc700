package api

import (
	"encoding/json"
	"net/http"

	"github.com/okian/loftrank/internal/domain/types"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Result lists what an import persisted before it failed.
	Result *types.ImportResult `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	tagErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and writes the matching error response.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// writeImportFailure is writeFailure plus the partial import result, when
// the import got far enough to have one.
func writeImportFailure(w http.ResponseWriter, err error, result types.ImportResult) {
	if result.Season == "" {
		writeFailure(w, err)
		return
	}
	status, code := classify(err)
	tagErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error(), Result: &result})
}
