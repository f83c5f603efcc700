package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/loftrank/pkg/metrics"
)

// Error severities reported with each failed request.
const (
	severityHigh   = "high"
	severityMedium = "medium"
)

// withMetrics records request count and latency per route, and for failed
// requests the error code the handler wrote (see writeError).
func withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(route, r.Method, status)
		metrics.RecordHTTPRequestDuration(route, r.Method, status, float64(time.Since(start).Milliseconds()))

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.errorCode
		if code == "" {
			// status written without writeError
			code = "status_" + status
		}
		metrics.RecordErrorByEndpoint(route, r.Method, code)
		metrics.RecordErrorByType(code, severity(rec.status))
	}
}

// severity is high when the service is at fault or shedding load, medium
// when the request was wrong.
func severity(status int) string {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return severityHigh
	}
	return severityMedium
}

// statusRecorder remembers the status and error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	errorCode string
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// tagErrorCode records code on w when w is a statusRecorder.
func tagErrorCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.errorCode = code
	}
}
