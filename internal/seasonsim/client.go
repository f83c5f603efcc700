package seasonsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/loftrank/internal/domain/types"
)

// Sentinel kinds for client errors.
var (
	ErrRequest      = errors.New("request failed")
	ErrBackpressure = errors.New("service is applying backpressure")
)

// StatusError is a non-2xx response decoded from the {code, message} body.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match ErrRequest, and ErrBackpressure on 429.
func (e *StatusError) Unwrap() []error {
	if e.Status == http.StatusTooManyRequests {
		return []error{ErrRequest, ErrBackpressure}
	}
	return []error{ErrRequest}
}

// Client talks to the loftrank HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks that /healthz answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// Import runs a synchronous import of batch into season.
func (c *Client) Import(ctx context.Context, season string, batch any) (types.ImportResult, error) {
	var res types.ImportResult
	err := c.do(ctx, http.MethodPost, "/seasons/"+url.PathEscape(season)+"/import", nil, batch, &res)
	return res, err
}

// Submit queues batch for import. The returned bool reports a duplicate
// request id.
func (c *Client) Submit(ctx context.Context, season, requestID string, batch any) (types.Job, bool, error) {
	var ack struct {
		types.Job
		Duplicate bool `json:"duplicate"`
	}
	header := http.Header{}
	if requestID != "" {
		header.Set("Idempotency-Key", requestID)
	}
	err := c.do(ctx, http.MethodPost, "/seasons/"+url.PathEscape(season)+"/jobs", header, batch, &ack)
	return ack.Job, ack.Duplicate, err
}

// Job fetches an import job.
func (c *Client) Job(ctx context.Context, id string) (types.Job, error) {
	var job types.Job
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, nil, &job)
	return job, err
}

// Report fetches the season report.
func (c *Client) Report(ctx context.Context, season string, sortByIndex bool) (types.SeasonReport, error) {
	path := "/seasons/" + url.PathEscape(season) + "/report"
	if sortByIndex {
		path += "?sort=index"
	}
	var report types.SeasonReport
	err := c.do(ctx, http.MethodGet, path, nil, nil, &report)
	return report, err
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrRequest, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		se := &StatusError{Status: resp.StatusCode}
		var eb struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &eb) == nil {
			se.Code, se.Message = eb.Code, eb.Message
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRequest, err)
	}
	return nil
}
