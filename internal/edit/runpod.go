package edit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Status is the local view of a backend job's lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut is assigned locally when the deadline passes. The
	// backend job is not cancelled; its real outcome stays unknown.
	StatusTimedOut Status = "TIMED_OUT"
)

// Terminal reports whether the status is final. Terminal states are never
// revisited.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// Job tracks one submitted edit. Output is the raw result blob returned
// by the backend on completion.
type Job struct {
	ID     string
	Status Status
	Output json.RawMessage
	Error  string
}

// ErrMissingEndpoint indicates a client configured without an endpoint ID.
var ErrMissingEndpoint = errors.New("edit: backend endpoint id is required")

// ClientOptions configures the serverless backend client.
type ClientOptions struct {
	BaseURL    string
	EndpointID string
	APIKey     string
	HTTPClient *http.Client

	// PollInterval is the first wait between polls; it doubles up to
	// MaxPollInterval. PollRetries bounds consecutive transient failures.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollRetries     int

	Logger *zerolog.Logger
}

// Client submits workflow payloads to the serverless queue and polls the
// status endpoint until a terminal state or the deadline.
type Client struct {
	httpClient *http.Client
	baseURL    string
	endpointID string
	apiKey     string

	pollInterval    time.Duration
	maxPollInterval time.Duration
	pollRetries     int

	logger zerolog.Logger

	// Injected for tests; defaults to the wall clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(opts ClientOptions) (*Client, error) {
	endpointID := strings.TrimSpace(opts.EndpointID)
	if endpointID == "" {
		return nil, ErrMissingEndpoint
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.runpod.ai"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxPollInterval := opts.MaxPollInterval
	if maxPollInterval < pollInterval {
		maxPollInterval = 30 * time.Second
	}
	pollRetries := opts.PollRetries
	if pollRetries <= 0 {
		pollRetries = 3
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		httpClient:      httpClient,
		baseURL:         baseURL,
		endpointID:      endpointID,
		apiKey:          strings.TrimSpace(opts.APIKey),
		pollInterval:    pollInterval,
		maxPollInterval: maxPollInterval,
		pollRetries:     pollRetries,
		logger:          logger,
		now:             time.Now,
		sleep:           sleepCtx,
	}, nil
}

type submitRequest struct {
	Input *JobPayload `json:"input"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Submit creates the backend job with a single POST. There is no automatic
// resubmission: a transport failure here may or may not have created a
// billable job, so the caller gets the error instead of a duplicate.
func (c *Client) Submit(ctx context.Context, payload *JobPayload) (*Job, error) {
	body, err := json.Marshal(submitRequest{Input: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrSubmission, err)
	}
	endpoint := fmt.Sprintf("%s/v2/%s/run", c.baseURL, c.endpointID)
	raw, status, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSubmission, status, strings.TrimSpace(string(raw)))
	}
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSubmission, err)
	}
	if decoded.ID == "" {
		return nil, fmt.Errorf("%w: backend returned no job id", ErrSubmission)
	}
	job := &Job{ID: decoded.ID, Status: mapBackendStatus(decoded.Status)}
	c.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("edit: job submitted")
	return job, nil
}

// AwaitCompletion polls until the job is terminal or the wall-clock
// deadline passes. The deadline starts now and is never reset; transient
// poll failures are retried up to the configured count within it. On
// timeout the job is marked TIMED_OUT locally and returned without error.
func (c *Client) AwaitCompletion(ctx context.Context, job *Job, timeout time.Duration) (*Job, error) {
	if job == nil || job.ID == "" {
		return nil, fmt.Errorf("%w: no job to await", ErrPoll)
	}
	deadline := c.now().Add(timeout)
	interval := c.pollInterval
	failures := 0

	for {
		if !c.now().Before(deadline) {
			job.Status = StatusTimedOut
			c.logger.Warn().Str("job_id", job.ID).Dur("timeout", timeout).Msg("edit: job deadline passed, outcome unknown")
			return job, nil
		}

		st, err := c.pollOnce(ctx, job.ID)
		switch {
		case err != nil && ctx.Err() != nil:
			return job, fmt.Errorf("%w: %v", ErrPoll, ctx.Err())
		case err != nil:
			failures++
			if failures > c.pollRetries {
				return job, fmt.Errorf("%w: job %s: %v", ErrPoll, job.ID, err)
			}
			c.logger.Warn().Err(err).Str("job_id", job.ID).Int("attempt", failures).Msg("edit: transient poll failure")
		default:
			failures = 0
			job.Status = mapBackendStatus(st.Status)
			job.Output = st.Output
			job.Error = st.Error
			if job.Status.Terminal() {
				c.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("edit: job reached terminal state")
				return job, nil
			}
			if !knownBackendStatus(st.Status) {
				return job, fmt.Errorf("%w: job %s: unknown backend status %q", ErrPoll, job.ID, st.Status)
			}
		}

		if err := c.sleep(ctx, interval); err != nil {
			return job, fmt.Errorf("%w: %v", ErrPoll, err)
		}
		if interval *= 2; interval > c.maxPollInterval {
			interval = c.maxPollInterval
		}
	}
}

// pollOnce is a single idempotent status read, safe to repeat.
func (c *Client) pollOnce(ctx context.Context, jobID string) (*statusResponse, error) {
	endpoint := fmt.Sprintf("%s/v2/%s/status/%s", c.baseURL, c.endpointID, jobID)
	raw, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("status endpoint returned %d: %s", status, strings.TrimSpace(string(raw)))
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &decoded, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// mapBackendStatus folds the serverless queue vocabulary into the local
// state machine.
func mapBackendStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN_QUEUE", "PENDING", "":
		return StatusPending
	case "IN_PROGRESS", "RUNNING":
		return StatusRunning
	case "COMPLETED":
		return StatusCompleted
	case "FAILED":
		return StatusFailed
	case "CANCELLED":
		return StatusCancelled
	default:
		return Status(strings.ToUpper(strings.TrimSpace(s)))
	}
}

func knownBackendStatus(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN_QUEUE", "PENDING", "", "IN_PROGRESS", "RUNNING", "COMPLETED", "FAILED", "CANCELLED":
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
