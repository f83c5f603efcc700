package api

import (
	"errors"
	"fmt"
	"net/http"

	queue "github.com/okian/loftrank/internal/adapters/mq/queue"
	repository "github.com/okian/loftrank/internal/adapters/repository"
	service "github.com/okian/loftrank/internal/app"
	"github.com/okian/loftrank/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrUnknownSort   = errors.New("unknown sort order")
	ErrInvalidHeader = errors.New("invalid request id")
)

// NewKind tags kind with the operation that produced it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags kind with op and keeps cause in the message.
func WrapKind(op string, kind, cause error) error {
	if cause == nil {
		return NewKind(op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrBodyTooLarge), errors.As(err, &maxBytes), errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ErrBadRequest), errors.Is(err, model.ErrBatchShape),
		errors.Is(err, service.ErrInvalidSeason), errors.Is(err, ErrUnknownSort), errors.Is(err, ErrInvalidHeader):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, repository.ErrStorage), errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
